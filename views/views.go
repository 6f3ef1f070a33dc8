// Package views holds the default templates of a cmsblog site, written as
// templ components. After editing a .templ file, run `templ generate` from
// the module root.
package views

import (
	"strconv"

	"github.com/a-h/templ"

	"github.com/eringen/cmsblog"
)

// Funcs returns the default view functions.
func Funcs() cmsblog.ViewFuncs {
	return cmsblog.ViewFuncs{
		Home:        Home,
		Post:        Post,
		Loading:     Loading,
		NotFound:    NotFound,
		ServerError: ServerError,
	}
}

// page is what the document shell needs from every view.
type page struct {
	cfg     cmsblog.SiteConfig
	meta    cmsblog.PageMeta
	jsonLD  string
	preview bool
}

func (p page) labels() *labels {
	return localeFor(p.cfg.Locale)
}

func homePage(hp cmsblog.HomePage, cfg cmsblog.SiteConfig) page {
	canonical := cmsblog.BuildURL(cfg.URL)
	title := cfg.Name
	if hp.Page > 1 {
		canonical = cmsblog.BuildURL(cfg.URL, "page", strconv.Itoa(hp.Page))
		title += " | " + strconv.Itoa(hp.Page)
	}
	return page{
		cfg: cfg,
		meta: cmsblog.PageMeta{
			Title:       title,
			Description: cfg.Description,
			URL:         canonical,
			OGType:      "website",
		},
		jsonLD:  cmsblog.WebsiteJsonLD(cfg),
		preview: hp.Preview,
	}
}

func postPage(pp cmsblog.PostPage, cfg cmsblog.SiteConfig) page {
	post := pp.Post
	return page{
		cfg: cfg,
		meta: cmsblog.PageMeta{
			Title:       post.Title,
			Description: post.Subtitle,
			URL:         cmsblog.BuildURL(cfg.URL, "post", post.UID),
			OGType:      "article",
			Image:       post.BannerURL,
		},
		jsonLD:  cmsblog.BlogPostingJsonLD(post, cfg),
		preview: pp.Preview,
	}
}

func bannerAlt(p cmsblog.Post) string {
	if p.BannerAlt != "" {
		return p.BannerAlt
	}
	return "banner"
}

// jsonLD embeds a JSON-LD document. data comes from encoding/json, which
// escapes '<', so it cannot close the script element.
func jsonLD(data string) templ.Component {
	return templ.Raw(`<script type="application/ld+json">` + data + `</script>`)
}
