package richtext

import (
	"strings"
	"testing"
)

func TestAsText(t *testing.T) {
	rt := RichText{
		{Type: Heading2, Text: "Intro"},
		{Type: Paragraph, Text: "first paragraph"},
		{Type: Image, URL: "https://images.example.com/a.png"},
		{Type: Paragraph, Text: "second"},
	}
	got := AsText(rt, " ")
	want := "Intro first paragraph second"
	if got != want {
		t.Errorf("AsText = %q, want %q", got, want)
	}
	if got := AsText(nil, " "); got != "" {
		t.Errorf("AsText(nil) = %q, want empty", got)
	}
}

func TestAsHTMLBlocks(t *testing.T) {
	tests := []struct {
		name  string
		input RichText
		want  string
	}{
		{"paragraph", RichText{{Type: Paragraph, Text: "hello"}}, "<p>hello</p>"},
		{"heading", RichText{{Type: Heading3, Text: "Title"}}, "<h3>Title</h3>"},
		{"preformatted", RichText{{Type: Preformatted, Text: "a := 1"}}, "<pre>a := 1</pre>"},
		{"newline", RichText{{Type: Paragraph, Text: "a\nb"}}, "<p>a<br />b</p>"},
		{"escaped", RichText{{Type: Paragraph, Text: `<script>alert("x")</script>`}}, "<p>&lt;script&gt;alert(&#34;x&#34;)&lt;/script&gt;</p>"},
		{"unknown type skipped", RichText{{Type: "table", Text: "x"}}, ""},
	}
	for _, tt := range tests {
		got := AsHTML(tt.input, nil)
		if got != tt.want {
			t.Errorf("%s: AsHTML = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestAsHTMLGroupsListItems(t *testing.T) {
	rt := RichText{
		{Type: ListItem, Text: "one"},
		{Type: ListItem, Text: "two"},
		{Type: OListItem, Text: "first"},
		{Type: Paragraph, Text: "after"},
	}
	got := AsHTML(rt, nil)
	want := "<ul><li>one</li><li>two</li></ul><ol><li>first</li></ol><p>after</p>"
	if got != want {
		t.Errorf("AsHTML = %q, want %q", got, want)
	}
}

func TestAsHTMLSpans(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		spans []Span
		want  string
	}{
		{
			"strong",
			"bold text",
			[]Span{{Start: 0, End: 4, Type: Strong}},
			"<p><strong>bold</strong> text</p>",
		},
		{
			"nested",
			"abc def",
			[]Span{{Start: 0, End: 7, Type: Strong}, {Start: 4, End: 7, Type: Em}},
			"<p><strong>abc <em>def</em></strong></p>",
		},
		{
			"overlapping",
			"abcdefgh",
			[]Span{{Start: 0, End: 5, Type: Strong}, {Start: 3, End: 8, Type: Em}},
			"<p><strong>abc<em>de</em></strong><em>fgh</em></p>",
		},
		{
			"web link",
			"see docs",
			[]Span{{Start: 4, End: 8, Type: Hyperlink, Data: &SpanData{LinkType: "Web", URL: "https://go.dev", Target: "_blank"}}},
			`<p>see <a href="https://go.dev" target="_blank" rel="noopener noreferrer">docs</a></p>`,
		},
		{
			"unsafe link dropped",
			"click",
			[]Span{{Start: 0, End: 5, Type: Hyperlink, Data: &SpanData{LinkType: "Web", URL: "javascript:alert(1)"}}},
			"<p>click</p>",
		},
		{
			"label",
			"note",
			[]Span{{Start: 0, End: 4, Type: Label, Data: &SpanData{Label: "codespan"}}},
			`<p><span class="codespan">note</span></p>`,
		},
		{
			"out of range clamped",
			"abc",
			[]Span{{Start: 1, End: 99, Type: Em}, {Start: 2, End: 2, Type: Strong}},
			"<p>a<em>bc</em></p>",
		},
		{
			"utf16 offsets",
			"olá 🚀 mundo",
			[]Span{{Start: 7, End: 12, Type: Strong}},
			"<p>olá 🚀 <strong>mundo</strong></p>",
		},
	}
	for _, tt := range tests {
		got := AsHTML(RichText{{Type: Paragraph, Text: tt.text, Spans: tt.spans}}, nil)
		if got != tt.want {
			t.Errorf("%s: AsHTML = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestAsHTMLDocumentLinkUsesResolver(t *testing.T) {
	resolve := func(l DocumentLink) string {
		if l.Type == "posts" {
			return "/post/" + l.UID
		}
		return "/"
	}
	rt := RichText{{
		Type: Paragraph,
		Text: "read next",
		Spans: []Span{
			{Start: 5, End: 9, Type: Hyperlink, Data: &SpanData{LinkType: "Document", ID: "X1", UID: "next-post", Type: "posts"}},
		},
	}}
	got := AsHTML(rt, resolve)
	want := `<p>read <a href="/post/next-post">next</a></p>`
	if got != want {
		t.Errorf("AsHTML = %q, want %q", got, want)
	}

	broken := rt
	broken[0].Spans[0].Data.IsBroken = true
	if got := AsHTML(broken, resolve); got != "<p>read next</p>" {
		t.Errorf("broken link AsHTML = %q", got)
	}
}

func TestAsHTMLImageAndEmbed(t *testing.T) {
	rt := RichText{
		{Type: Image, URL: "https://images.example.com/a.png", Alt: `a "quoted" alt`, Dimensions: &Dimensions{Width: 800, Height: 600}},
		{Type: Image, URL: "data:text/html;base64,AAAA"},
		{Type: Embed, Oembed: &Oembed{EmbedURL: "https://www.youtube.com/watch?v=1", Title: "Talk"}},
	}
	got := AsHTML(rt, nil)
	if !strings.Contains(got, `<img src="https://images.example.com/a.png" alt="a &#34;quoted&#34; alt" width="800" height="600"`) {
		t.Errorf("image not rendered as expected: %q", got)
	}
	if strings.Contains(got, "data:") {
		t.Errorf("unsafe image URL should be dropped: %q", got)
	}
	if !strings.Contains(got, `<a href="https://www.youtube.com/watch?v=1" target="_blank" rel="noopener noreferrer">Talk</a>`) {
		t.Errorf("embed should render as a link: %q", got)
	}
}

func TestSafeURL(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"https://example.com/a?b=1&c=2", "https://example.com/a?b=1&amp;c=2"},
		{"/post/hello", "/post/hello"},
		{"#top", "#top"},
		{"mailto:me@example.com", "mailto:me@example.com"},
		{"javascript:alert(1)", ""},
		{"//evil.example.com", ""},
		{"", ""},
		{"relative/path", ""},
	}
	for _, tt := range tests {
		if got := SafeURL(tt.input); got != tt.want {
			t.Errorf("SafeURL(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
