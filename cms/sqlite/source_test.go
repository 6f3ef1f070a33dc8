package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/eringen/cmsblog/cms"
	"github.com/eringen/cmsblog/cms/cmstest"
)

func setupTestSource(t *testing.T) *Source {
	t.Helper()
	s, err := NewSource(filepath.Join(t.TempDir(), "data", "content.db"))
	if err != nil {
		t.Fatalf("failed to create source: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func day(n int) time.Time {
	return time.Date(2024, 1, n, 12, 0, 0, 0, time.UTC)
}

func TestPutAndGetByUID(t *testing.T) {
	s := setupTestSource(t)
	ctx := context.Background()

	doc := cmstest.Post("X1", "first-post", "First Post", day(1), "hello there")
	if err := s.Put(ctx, "", doc); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := s.GetByUID(ctx, "posts", "first-post", cms.QueryOptions{})
	if err != nil {
		t.Fatalf("GetByUID failed: %v", err)
	}
	if got.ID != "X1" {
		t.Errorf("ID = %q, want %q", got.ID, "X1")
	}
	if !got.FirstPublicationDate.Equal(day(1)) {
		t.Errorf("FirstPublicationDate = %v, want %v", got.FirstPublicationDate, day(1))
	}
	var data cms.PostData
	if err := got.DecodeData(&data); err != nil {
		t.Fatalf("DecodeData failed: %v", err)
	}
	if data.Title != "First Post" {
		t.Errorf("Title = %q, want %q", data.Title, "First Post")
	}

	if _, err := s.GetByUID(ctx, "posts", "nope", cms.QueryOptions{}); !errors.Is(err, cms.ErrNotFound) {
		t.Errorf("GetByUID missing err = %v, want ErrNotFound", err)
	}
	if _, err := s.GetByUID(ctx, "page", "first-post", cms.QueryOptions{}); !errors.Is(err, cms.ErrNotFound) {
		t.Errorf("GetByUID wrong type err = %v, want ErrNotFound", err)
	}
}

func TestPutRequiresIDAndType(t *testing.T) {
	s := setupTestSource(t)
	if err := s.Put(context.Background(), "", cms.Document{UID: "x"}); err == nil {
		t.Error("Put without id should fail")
	}
}

func TestQueryOrderAndPaging(t *testing.T) {
	s := setupTestSource(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		uid := "post-" + string(rune('0'+i))
		if err := s.Put(ctx, "", cmstest.Post("ID"+uid, uid, uid, day(i))); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	if err := s.Put(ctx, "", cms.Document{ID: "P1", UID: "about", Type: "page"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	resp, err := s.Query(ctx, []cms.Predicate{cms.TypeIs("posts")}, cms.QueryOptions{PageSize: 2})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if resp.TotalResultsSize != 5 || resp.TotalPages != 3 {
		t.Errorf("totals = %d/%d, want 5/3", resp.TotalResultsSize, resp.TotalPages)
	}
	if len(resp.Results) != 2 || resp.Results[0].UID != "post-5" || resp.Results[1].UID != "post-4" {
		t.Errorf("first page = %v, want post-5, post-4", uids(resp.Results))
	}

	all, err := cms.QueryAll(ctx, s, []cms.Predicate{cms.TypeIs("posts")}, cms.QueryOptions{PageSize: 2}, 0)
	if err != nil {
		t.Fatalf("QueryAll failed: %v", err)
	}
	if got := strings.Join(uids(all), ","); got != "post-5,post-4,post-3,post-2,post-1" {
		t.Errorf("QueryAll order = %s", got)
	}

	asc, err := s.Query(ctx, []cms.Predicate{cms.TypeIs("posts")}, cms.QueryOptions{
		PageSize:  10,
		Orderings: []string{"document.first_publication_date"},
	})
	if err != nil {
		t.Fatalf("Query ascending failed: %v", err)
	}
	if got := strings.Join(uids(asc.Results), ","); got != "post-1,post-2,post-3,post-4,post-5" {
		t.Errorf("ascending order = %s", got)
	}
	if _, err := s.Query(ctx, nil, cms.QueryOptions{Orderings: []string{"my.posts.title"}}); err == nil {
		t.Error("unsupported ordering should fail")
	}

	if _, err := s.Query(ctx, []cms.Predicate{"[fulltext(document,\"x\")]"}, cms.QueryOptions{}); err == nil {
		t.Error("unsupported predicate should fail")
	}
}

func TestPreviewRefShadowsPublished(t *testing.T) {
	s := setupTestSource(t)
	ctx := context.Background()

	if err := s.Put(ctx, "", cmstest.Post("X1", "post", "Published title", day(1))); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	draft := cmstest.Post("X1", "post", "Draft title", day(1))
	if err := s.Put(ctx, "preview-1", draft); err != nil {
		t.Fatalf("Put draft failed: %v", err)
	}
	if err := s.Put(ctx, "preview-1", cmstest.Post("X2", "new-post", "Unpublished", time.Time{})); err != nil {
		t.Fatalf("Put draft failed: %v", err)
	}

	title := func(ref cms.Ref, uid string) string {
		t.Helper()
		doc, err := s.GetByUID(ctx, "posts", uid, cms.QueryOptions{Ref: ref})
		if err != nil {
			t.Fatalf("GetByUID(%q, %q) failed: %v", ref, uid, err)
		}
		var data cms.PostData
		if err := doc.DecodeData(&data); err != nil {
			t.Fatal(err)
		}
		return data.Title
	}

	if got := title("", "post"); got != "Published title" {
		t.Errorf("published title = %q", got)
	}
	if got := title("preview-1", "post"); got != "Draft title" {
		t.Errorf("preview title = %q", got)
	}
	if got := title("preview-1", "new-post"); got != "Unpublished" {
		t.Errorf("preview-only title = %q", got)
	}
	if _, err := s.GetByUID(ctx, "posts", "new-post", cms.QueryOptions{}); !errors.Is(err, cms.ErrNotFound) {
		t.Errorf("preview-only doc leaked into published content: %v", err)
	}

	resp, err := s.Query(ctx, []cms.Predicate{cms.TypeIs("posts")}, cms.QueryOptions{Ref: "preview-1"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if resp.TotalResultsSize != 2 {
		t.Errorf("preview query total = %d, want 2", resp.TotalResultsSize)
	}

	if _, err := s.GetByID(ctx, "X1", cms.QueryOptions{Ref: "expired"}); !errors.Is(err, cms.ErrInvalidRef) {
		t.Errorf("unknown ref err = %v, want ErrInvalidRef", err)
	}

	if err := s.Delete(ctx, "preview-1", "X1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if got := title("preview-1", "post"); got != "Published title" {
		t.Errorf("after delete preview title = %q", got)
	}
}

func TestImport(t *testing.T) {
	s := setupTestSource(t)
	ctx := context.Background()

	fixture := `
documents:
  - id: "YF1"
    uid: hello-world
    type: posts
    first_publication_date: "2021-03-25T19:25:28+0000"
    last_publication_date: "2021-03-26T10:00:00+0000"
    data:
      title: Hello world
      author: Ada
      banner:
        url: https://images.example.com/banner.png
      content:
        - heading: Intro
          body:
            - type: paragraph
              text: Some text
              spans:
                - {start: 0, end: 4, type: strong}
  - ref: "https://repo.prismic.io/previews/abc"
    id: "YF2"
    uid: draft
    type: posts
    data:
      title: Draft
`
	n, err := s.Import(ctx, strings.NewReader(fixture))
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Import count = %d, want 2", n)
	}

	doc, err := s.GetByUID(ctx, "posts", "hello-world", cms.QueryOptions{})
	if err != nil {
		t.Fatalf("GetByUID failed: %v", err)
	}
	if doc.LastPublicationDate.Equal(doc.FirstPublicationDate.Time) {
		t.Error("publication dates should differ")
	}
	var data cms.PostData
	if err := doc.DecodeData(&data); err != nil {
		t.Fatalf("DecodeData failed: %v", err)
	}
	if len(data.Content) != 1 || len(data.Content[0].Body) != 1 || len(data.Content[0].Body[0].Spans) != 1 {
		t.Fatalf("content not decoded: %+v", data.Content)
	}

	if _, err := s.GetByUID(ctx, "posts", "draft", cms.QueryOptions{Ref: "https://repo.prismic.io/previews/abc"}); err != nil {
		t.Errorf("draft should be visible under its ref: %v", err)
	}

	if _, err := s.Import(ctx, strings.NewReader("")); !errors.Is(err, errEmptyFixture) {
		t.Errorf("empty import err = %v, want errEmptyFixture", err)
	}
	if _, err := s.Import(ctx, strings.NewReader("documents:\n  - id: X\n    type: posts\n    first_publication_date: soon\n")); err == nil {
		t.Error("bad date should fail import")
	}
}

func TestImportTOMLFile(t *testing.T) {
	s := setupTestSource(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "posts.toml")
	fixture := `
[[documents]]
id = "T1"
uid = "from-toml"
type = "posts"
first_publication_date = "2021-04-01T08:00:00+0000"

[documents.data]
title = "From TOML"
author = "Grace"

[[documents.data.content]]
heading = "Intro"

[[documents.data.content.body]]
type = "paragraph"
text = "one two three"
`
	if err := os.WriteFile(path, []byte(fixture), 0o644); err != nil {
		t.Fatal(err)
	}
	n, err := s.ImportFile(ctx, path)
	if err != nil {
		t.Fatalf("ImportFile failed: %v", err)
	}
	if n != 1 {
		t.Errorf("ImportFile count = %d, want 1", n)
	}

	doc, err := s.GetByUID(ctx, "posts", "from-toml", cms.QueryOptions{})
	if err != nil {
		t.Fatalf("GetByUID failed: %v", err)
	}
	var data cms.PostData
	if err := doc.DecodeData(&data); err != nil {
		t.Fatalf("DecodeData failed: %v", err)
	}
	if data.Title != "From TOML" || len(data.Content) != 1 || data.Content[0].Body[0].Text != "one two three" {
		t.Errorf("data = %+v", data)
	}
}

func uids(docs []cms.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.UID
	}
	return out
}
