package cmsblog

import (
	"encoding/xml"
	"io"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc string `xml:"loc"`
}

// writeSitemap writes the home page and every enumerated post route to w.
func writeSitemap(w io.Writer, base string, paths Paths) error {
	urls := []sitemapURL{
		{Loc: BuildURL(base)},
	}
	for _, p := range paths.Params {
		urls = append(urls, sitemapURL{Loc: BuildURL(base, "post", p.Slug)})
	}
	sitemap := sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	return xml.NewEncoder(w).Encode(sitemap)
}
