package cmsblog

import (
	"time"
)

// Post is a CMS post document shaped for rendering.
type Post struct {
	UID                  string
	Title                string
	Subtitle             string
	BannerURL            string
	BannerAlt            string
	Author               string
	FirstPublicationDate time.Time
	LastPublicationDate  time.Time
	Content              []PostBlock
	ReadingMinutes       int
}

// Edited reports whether the post was republished after its first
// publication.
func (p Post) Edited() bool {
	if p.FirstPublicationDate.IsZero() || p.LastPublicationDate.IsZero() {
		return false
	}
	return !p.FirstPublicationDate.Equal(p.LastPublicationDate)
}

// Link returns the site path of the post.
func (p Post) Link() string {
	return "/post/" + p.UID
}

// PostBlock is one content section with its body rendered as sanitized
// HTML and as plain text.
type PostBlock struct {
	Heading string
	HTML    string
	Text    string
}

// Neighbor is the minimal projection of an adjacent post.
type Neighbor struct {
	UID   string
	Title string
}

// Link returns the site path of the neighbor.
func (n Neighbor) Link() string {
	return "/post/" + n.UID
}

// PostPage is everything the post template needs.
type PostPage struct {
	Post     Post
	Previous *Neighbor
	Next     *Neighbor
	Preview  bool
}

// PostSummary is a post as listed on the home page.
type PostSummary struct {
	UID                  string
	Title                string
	Subtitle             string
	Author               string
	FirstPublicationDate time.Time
}

// Link returns the site path of the post.
func (p PostSummary) Link() string {
	return "/post/" + p.UID
}

// HomePage is one page of the post listing.
type HomePage struct {
	Posts    []PostSummary
	Page     int
	NextPage int // 0 when there are no more pages
	Preview  bool
}

// PathParams identifies one pre-generated post route.
type PathParams struct {
	Slug string `json:"slug"`
}

// Paths is the set of post routes to generate ahead of time. Fallback
// permits slugs outside the set to be resolved on demand.
type Paths struct {
	Params   []PathParams `json:"paths"`
	Fallback bool         `json:"fallback"`
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	Image       string
}
