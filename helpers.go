package cmsblog

import (
	"encoding/json"
	"net/url"
	"path"
	"strconv"
	"time"
)

// BuildURL joins a base URL with path segments. With no segments it
// returns the base with a root path.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join("/", u.Path, path.Join(pathSegments...))
	return u.String()
}

// WebsiteJsonLD returns a JSON-LD string for a WebSite schema using SiteConfig.
func WebsiteJsonLD(cfg SiteConfig) string {
	data := map[string]interface{}{
		"@context":    "https://schema.org",
		"@type":       "WebSite",
		"name":        cfg.Name,
		"url":         BuildURL(cfg.URL),
		"description": cfg.Description,
	}
	if cfg.Author != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  cfg.Author,
		}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// BlogPostingJsonLD returns a JSON-LD string for a BlogPosting schema.
func BlogPostingJsonLD(post Post, cfg SiteConfig) string {
	postURL := BuildURL(cfg.URL, "post", post.UID)
	data := map[string]interface{}{
		"@context":    "https://schema.org",
		"@type":       "BlogPosting",
		"headline":    post.Title,
		"description": post.Subtitle,
		"url":         postURL,
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   postURL,
		},
		"timeRequired": "PT" + strconv.Itoa(post.ReadingMinutes) + "M",
	}
	if !post.FirstPublicationDate.IsZero() {
		data["datePublished"] = post.FirstPublicationDate.Format(time.RFC3339)
	}
	if post.Edited() {
		data["dateModified"] = post.LastPublicationDate.Format(time.RFC3339)
	}
	if post.BannerURL != "" {
		data["image"] = post.BannerURL
	}
	author := post.Author
	if author == "" {
		author = cfg.Author
	}
	if author != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  author,
		}
	}
	if cfg.Name != "" {
		data["publisher"] = map[string]string{
			"@type": "Organization",
			"name":  cfg.Name,
		}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}
