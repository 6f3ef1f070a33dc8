// Package richtext models CMS structured text as a typed block/span tree and
// renders it to escaped HTML or plain text.
package richtext

import (
	"bytes"
	"html"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Block types.
const (
	Heading1     = "heading1"
	Heading2     = "heading2"
	Heading3     = "heading3"
	Heading4     = "heading4"
	Heading5     = "heading5"
	Heading6     = "heading6"
	Paragraph    = "paragraph"
	Preformatted = "preformatted"
	ListItem     = "list-item"
	OListItem    = "o-list-item"
	Image        = "image"
	Embed        = "embed"
)

// Span types.
const (
	Strong    = "strong"
	Em        = "em"
	Hyperlink = "hyperlink"
	Label     = "label"
)

// RichText is an ordered list of blocks as delivered by the CMS.
type RichText []Block

// Block is one structured text element.
type Block struct {
	Type       string      `json:"type" yaml:"type"`
	Text       string      `json:"text,omitempty" yaml:"text,omitempty"`
	Spans      []Span      `json:"spans,omitempty" yaml:"spans,omitempty"`
	URL        string      `json:"url,omitempty" yaml:"url,omitempty"`
	Alt        string      `json:"alt,omitempty" yaml:"alt,omitempty"`
	Dimensions *Dimensions `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	Oembed     *Oembed     `json:"oembed,omitempty" yaml:"oembed,omitempty"`
}

// Dimensions of an image block.
type Dimensions struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Oembed carries the metadata of an embed block. Provider HTML is not
// part of the model.
type Oembed struct {
	EmbedURL string `json:"embed_url" yaml:"embed_url"`
	Title    string `json:"title,omitempty" yaml:"title,omitempty"`
}

// Span marks up the [Start, End) range of a block's text. Offsets are in
// UTF-16 code units, as produced by the CMS editor.
type Span struct {
	Start int       `json:"start" yaml:"start"`
	End   int       `json:"end" yaml:"end"`
	Type  string    `json:"type" yaml:"type"`
	Data  *SpanData `json:"data,omitempty" yaml:"data,omitempty"`
}

// SpanData holds hyperlink targets and label names.
type SpanData struct {
	LinkType string `json:"link_type,omitempty" yaml:"link_type,omitempty"`
	URL      string `json:"url,omitempty" yaml:"url,omitempty"`
	Target   string `json:"target,omitempty" yaml:"target,omitempty"`
	ID       string `json:"id,omitempty" yaml:"id,omitempty"`
	UID      string `json:"uid,omitempty" yaml:"uid,omitempty"`
	Type     string `json:"type,omitempty" yaml:"type,omitempty"`
	IsBroken bool   `json:"isBroken,omitempty" yaml:"isBroken,omitempty"`
	Label    string `json:"label,omitempty" yaml:"label,omitempty"`
}

// DocumentLink identifies a CMS document a link points to.
type DocumentLink struct {
	ID   string
	UID  string
	Type string
}

// LinkResolver maps a document link to a site path.
type LinkResolver func(DocumentLink) string

// AsText returns the plain text of rt with blocks joined by sep.
func AsText(rt RichText, sep string) string {
	parts := make([]string, 0, len(rt))
	for _, b := range rt {
		if b.Text == "" {
			continue
		}
		parts = append(parts, b.Text)
	}
	return strings.Join(parts, sep)
}

// AsHTML renders rt as HTML. All text is escaped and all URLs pass through
// SafeURL; nothing from the CMS is emitted verbatim.
func AsHTML(rt RichText, resolve LinkResolver) string {
	var buf bytes.Buffer
	list := ""
	closeList := func() {
		if list != "" {
			buf.WriteString("</" + list + ">")
			list = ""
		}
	}
	for _, b := range rt {
		switch b.Type {
		case ListItem, OListItem:
			want := "ul"
			if b.Type == OListItem {
				want = "ol"
			}
			if list != want {
				closeList()
				buf.WriteString("<" + want + ">")
				list = want
			}
			buf.WriteString("<li>")
			buf.WriteString(renderSpans(b.Text, b.Spans, resolve))
			buf.WriteString("</li>")
			continue
		}
		closeList()
		switch b.Type {
		case Heading1, Heading2, Heading3, Heading4, Heading5, Heading6:
			tag := "h" + b.Type[len(b.Type)-1:]
			buf.WriteString("<" + tag + ">")
			buf.WriteString(renderSpans(b.Text, b.Spans, resolve))
			buf.WriteString("</" + tag + ">")
		case Paragraph:
			buf.WriteString("<p>")
			buf.WriteString(renderSpans(b.Text, b.Spans, resolve))
			buf.WriteString("</p>")
		case Preformatted:
			buf.WriteString("<pre>")
			buf.WriteString(renderSpans(b.Text, b.Spans, resolve))
			buf.WriteString("</pre>")
		case Image:
			src := SafeURL(b.URL)
			if src == "" {
				continue
			}
			buf.WriteString(`<p class="block-img"><img src="` + src + `" alt="` + html.EscapeString(b.Alt) + `"`)
			if b.Dimensions != nil && b.Dimensions.Width > 0 && b.Dimensions.Height > 0 {
				buf.WriteString(` width="` + strconv.Itoa(b.Dimensions.Width) + `" height="` + strconv.Itoa(b.Dimensions.Height) + `"`)
			}
			buf.WriteString(` loading="lazy" decoding="async"/></p>`)
		case Embed:
			if b.Oembed == nil {
				continue
			}
			href := SafeURL(b.Oembed.EmbedURL)
			if href == "" {
				continue
			}
			title := b.Oembed.Title
			if title == "" {
				title = b.Oembed.EmbedURL
			}
			buf.WriteString(`<p class="block-embed"><a href="` + href + `" target="_blank" rel="noopener noreferrer">` + html.EscapeString(title) + `</a></p>`)
		}
	}
	closeList()
	return buf.String()
}

// renderSpans writes text with its spans applied. Overlapping spans that do
// not nest are split at boundaries so the output is always well formed.
func renderSpans(text string, spans []Span, resolve LinkResolver) string {
	units := utf16.Encode([]rune(text))
	n := len(units)

	valid := make([]Span, 0, len(spans))
	for _, s := range spans {
		if s.Start < 0 {
			s.Start = 0
		}
		if s.End > n {
			s.End = n
		}
		if s.Start >= s.End {
			continue
		}
		valid = append(valid, s)
	}
	sort.SliceStable(valid, func(i, j int) bool {
		if valid[i].Start != valid[j].Start {
			return valid[i].Start < valid[j].Start
		}
		return valid[i].End > valid[j].End
	})

	cuts := map[int]struct{}{0: {}, n: {}}
	for _, s := range valid {
		cuts[s.Start] = struct{}{}
		cuts[s.End] = struct{}{}
	}
	bounds := make([]int, 0, len(cuts))
	for c := range cuts {
		bounds = append(bounds, c)
	}
	sort.Ints(bounds)

	var buf strings.Builder
	var open []int
	for i := 0; i+1 < len(bounds); i++ {
		from, to := bounds[i], bounds[i+1]
		var active []int
		for idx, s := range valid {
			if s.Start <= from && s.End >= to {
				active = append(active, idx)
			}
		}
		keep := 0
		for keep < len(open) && keep < len(active) && open[keep] == active[keep] {
			keep++
		}
		for j := len(open) - 1; j >= keep; j-- {
			buf.WriteString(closeTag(valid[open[j]], resolve))
		}
		for _, idx := range active[keep:] {
			buf.WriteString(openTag(valid[idx], resolve))
		}
		open = active
		buf.WriteString(escapeText(string(utf16.Decode(units[from:to]))))
	}
	for j := len(open) - 1; j >= 0; j-- {
		buf.WriteString(closeTag(valid[open[j]], resolve))
	}
	return buf.String()
}

func openTag(s Span, resolve LinkResolver) string {
	switch s.Type {
	case Strong:
		return "<strong>"
	case Em:
		return "<em>"
	case Label:
		if s.Data != nil && s.Data.Label != "" {
			return `<span class="` + html.EscapeString(s.Data.Label) + `">`
		}
		return "<span>"
	case Hyperlink:
		href := linkHref(s.Data, resolve)
		if href == "" {
			return ""
		}
		attrs := ""
		if s.Data.Target != "" {
			attrs = ` target="` + html.EscapeString(s.Data.Target) + `" rel="noopener noreferrer"`
		}
		return `<a href="` + href + `"` + attrs + `>`
	}
	return ""
}

func closeTag(s Span, resolve LinkResolver) string {
	switch s.Type {
	case Strong:
		return "</strong>"
	case Em:
		return "</em>"
	case Label:
		return "</span>"
	case Hyperlink:
		if linkHref(s.Data, resolve) == "" {
			return ""
		}
		return "</a>"
	}
	return ""
}

func linkHref(d *SpanData, resolve LinkResolver) string {
	if d == nil {
		return ""
	}
	if d.LinkType == "Document" {
		if d.IsBroken || resolve == nil {
			return ""
		}
		return SafeURL(resolve(DocumentLink{ID: d.ID, UID: d.UID, Type: d.Type}))
	}
	return SafeURL(d.URL)
}

func escapeText(s string) string {
	return strings.ReplaceAll(html.EscapeString(s), "\n", "<br />")
}

// SafeURL validates and sanitizes a URL for use in HTML attributes.
func SafeURL(raw string) string {
	val := strings.TrimSpace(raw)
	if val == "" {
		return ""
	}
	if strings.HasPrefix(val, "/") || strings.HasPrefix(val, "#") {
		if strings.HasPrefix(val, "//") {
			return ""
		}
		return html.EscapeString(val)
	}
	parsed, err := url.Parse(val)
	if err != nil || parsed.Scheme == "" {
		return ""
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https", "mailto", "tel":
		return html.EscapeString(val)
	default:
		return ""
	}
}
