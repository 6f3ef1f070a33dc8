package cmsblog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/eringen/cmsblog/cms"
	"github.com/eringen/cmsblog/cms/cmstest"
)

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("palavra ", n))
}

func day(n int) time.Time {
	return time.Date(2021, 3, n, 12, 0, 0, 0, time.UTC)
}

func TestReadingMinutes(t *testing.T) {
	tests := []struct {
		name  string
		texts []string
		want  int
	}{
		{"400 words", []string{words(400)}, 2},
		{"50 words", []string{words(50)}, 1},
		{"empty", nil, 1},
		{"rounds down", []string{words(299)}, 1},
		{"rounds up", []string{words(300)}, 2},
		{"all blocks count", []string{words(200), words(200), words(200)}, 3},
		{"irregular whitespace", []string{"  um\tdois\n\ntrês  "}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ReadingMinutes(tt.texts...); got != tt.want {
				t.Errorf("ReadingMinutes() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFindNeighbors(t *testing.T) {
	list := []Neighbor{{UID: "a", Title: "A"}, {UID: "b", Title: "B"}, {UID: "c", Title: "C"}}
	name := func(n *Neighbor) string {
		if n == nil {
			return "<nil>"
		}
		return n.UID
	}

	tests := []struct {
		slug     string
		list     []Neighbor
		wantPrev string
		wantNext string
	}{
		{"b", list, "a", "c"},
		{"a", list, "<nil>", "b"},
		{"c", list, "b", "<nil>"},
		{"missing", list, "<nil>", "<nil>"},
		{"a", list[:1], "<nil>", "<nil>"},
		{"a", nil, "<nil>", "<nil>"},
	}
	for _, tt := range tests {
		prev, next := FindNeighbors(tt.list, tt.slug)
		if name(prev) != tt.wantPrev || name(next) != tt.wantNext {
			t.Errorf("FindNeighbors(%d items, %q) = %s/%s, want %s/%s",
				len(tt.list), tt.slug, name(prev), name(next), tt.wantPrev, tt.wantNext)
		}
	}
}

func newTestBuilder(docs ...cms.Document) (*Builder, *cmstest.Client) {
	client := &cmstest.Client{}
	client.Add("", docs...)
	return NewBuilder(client, "posts"), client
}

func TestBuildPost(t *testing.T) {
	b, _ := newTestBuilder(
		cmstest.Post("1", "a", "A", day(1), "one"),
		cmstest.Post("2", "b", "B", day(2), words(400), words(200)),
		cmstest.Post("3", "c", "C", day(3), "three"),
	)

	page, err := b.BuildPost(context.Background(), "b", "")
	if err != nil {
		t.Fatalf("BuildPost failed: %v", err)
	}
	post := page.Post
	if post.Title != "B" || post.Author != "Ada Lovelace" {
		t.Errorf("post = %q by %q", post.Title, post.Author)
	}
	if post.BannerURL != "https://images.example.com/b.png" {
		t.Errorf("BannerURL = %q", post.BannerURL)
	}
	if len(post.Content) != 2 {
		t.Fatalf("Content blocks = %d, want 2", len(post.Content))
	}
	if post.Content[0].Heading != "Section A" {
		t.Errorf("Heading = %q, want %q", post.Content[0].Heading, "Section A")
	}
	if !strings.HasPrefix(post.Content[0].HTML, "<p>palavra") {
		t.Errorf("HTML = %q", post.Content[0].HTML)
	}
	if post.ReadingMinutes != 3 {
		t.Errorf("ReadingMinutes = %d, want 3", post.ReadingMinutes)
	}
	if page.Previous == nil || page.Previous.UID != "a" || page.Previous.Title != "A" {
		t.Errorf("Previous = %+v, want a", page.Previous)
	}
	if page.Next == nil || page.Next.UID != "c" {
		t.Errorf("Next = %+v, want c", page.Next)
	}
	if page.Preview {
		t.Error("Preview should be false without a ref")
	}
	if post.Edited() {
		t.Error("post with equal publication dates should not be edited")
	}
}

func TestBuildPostNotFound(t *testing.T) {
	b, _ := newTestBuilder(cmstest.Post("1", "a", "A", day(1)))
	_, err := b.BuildPost(context.Background(), "zzz", "")
	if !errors.Is(err, ErrPostNotFound) {
		t.Errorf("err = %v, want ErrPostNotFound", err)
	}
}

func TestBuildPostUnderPreviewRef(t *testing.T) {
	b, client := newTestBuilder(cmstest.Post("1", "a", "A", day(1)))
	client.Add("preview-ref", cmstest.Post("1", "a", "A (draft)", day(1)))

	page, err := b.BuildPost(context.Background(), "a", "preview-ref")
	if err != nil {
		t.Fatalf("BuildPost failed: %v", err)
	}
	if page.Post.Title != "A (draft)" || !page.Preview {
		t.Errorf("page = %q preview=%v, want draft in preview", page.Post.Title, page.Preview)
	}

	_, err = b.BuildPost(context.Background(), "a", "expired")
	if !errors.Is(err, cms.ErrInvalidRef) {
		t.Errorf("err = %v, want cms.ErrInvalidRef", err)
	}
}

func TestBuildPostCMSFailure(t *testing.T) {
	b, client := newTestBuilder(cmstest.Post("1", "a", "A", day(1)))
	client.Err = cmstest.ErrUnavailable

	_, err := b.BuildPost(context.Background(), "a", "")
	if !errors.Is(err, cmstest.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
	if errors.Is(err, ErrPostNotFound) {
		t.Error("outage must not be reported as not found")
	}
}

func TestProjectPostEdited(t *testing.T) {
	doc := cmstest.Post("1", "a", "A", day(1), "text")
	doc.LastPublicationDate = cms.Time{Time: day(5)}

	post, err := (&Builder{PostType: "posts"}).ProjectPost(doc)
	if err != nil {
		t.Fatalf("ProjectPost failed: %v", err)
	}
	if !post.Edited() {
		t.Error("post republished later should be edited")
	}
	if !post.LastPublicationDate.Equal(day(5)) {
		t.Errorf("LastPublicationDate = %v", post.LastPublicationDate)
	}
}

func TestEnumeratePaths(t *testing.T) {
	var docs []cms.Document
	for i := 0; i < 250; i++ {
		docs = append(docs, cmstest.Post(strconv.Itoa(i), fmt.Sprintf("post-%d", i), "T", day(1)))
	}
	docs = append(docs, cmstest.Post("dup", docs[0].UID, "Duplicate", day(2)))
	docs = append(docs, cms.Document{ID: "page", UID: "about", Type: "page"})
	b, client := newTestBuilder(docs...)

	paths, err := b.EnumeratePaths(context.Background())
	if err != nil {
		t.Fatalf("EnumeratePaths failed: %v", err)
	}
	if !paths.Fallback {
		t.Error("Fallback should be true")
	}
	if len(paths.Params) != 250 {
		t.Errorf("paths = %d, want 250", len(paths.Params))
	}
	seen := make(map[string]bool)
	for _, p := range paths.Params {
		if seen[p.Slug] {
			t.Errorf("duplicate slug %q", p.Slug)
		}
		if p.Slug == "about" {
			t.Error("non-post documents must not be enumerated")
		}
		seen[p.Slug] = true
	}
	if n := len(client.Calls()); n != 3 {
		t.Errorf("queries = %d, want 3 pages of 100", n)
	}
}

func TestListPosts(t *testing.T) {
	var docs []cms.Document
	for i := 1; i <= 25; i++ {
		docs = append(docs, cmstest.Post(strconv.Itoa(i), fmt.Sprintf("p%d", i), "T", day(1)))
	}
	b, _ := newTestBuilder(docs...)

	home, err := b.ListPosts(context.Background(), 1, "")
	if err != nil {
		t.Fatalf("ListPosts failed: %v", err)
	}
	if len(home.Posts) != 20 || home.NextPage != 2 {
		t.Errorf("page 1 = %d posts, next %d; want 20, 2", len(home.Posts), home.NextPage)
	}
	home, err = b.ListPosts(context.Background(), 2, "")
	if err != nil {
		t.Fatalf("ListPosts failed: %v", err)
	}
	if len(home.Posts) != 5 || home.NextPage != 0 {
		t.Errorf("page 2 = %d posts, next %d; want 5, 0", len(home.Posts), home.NextPage)
	}
	if home.Posts[0].Author != "Ada Lovelace" {
		t.Errorf("Author = %q", home.Posts[0].Author)
	}
}
