package cmsblog

import (
	"encoding/xml"
	"io"
	"time"
)

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description,omitempty"`
	Author      string `xml:"author,omitempty"`
	PubDate     string `xml:"pubDate,omitempty"`
	GUID        string `xml:"guid"`
}

// writeRSS writes an RSS 2.0 feed of posts to w.
func writeRSS(w io.Writer, cfg SiteConfig, posts []PostSummary) error {
	base := cfg.URL
	items := make([]rssItem, 0, len(posts))
	for _, p := range posts {
		pubDate := ""
		if !p.FirstPublicationDate.IsZero() {
			pubDate = p.FirstPublicationDate.Format(time.RFC1123Z)
		}
		postURL := BuildURL(base, "post", p.UID)
		items = append(items, rssItem{
			Title:       p.Title,
			Link:        postURL,
			Description: p.Subtitle,
			Author:      p.Author,
			PubDate:     pubDate,
			GUID:        postURL,
		})
	}
	feed := rssXML{
		Version: "2.0",
		Channel: rssChannel{
			Title:       cfg.Name,
			Link:        BuildURL(base),
			Description: cfg.Description,
			Items:       items,
		},
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	return xml.NewEncoder(w).Encode(feed)
}
