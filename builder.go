package cmsblog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/eringen/cmsblog/cms"
	"github.com/eringen/cmsblog/richtext"
)

// ErrPostNotFound is returned when a slug does not match any post.
var ErrPostNotFound = errors.New("post not found")

const (
	// wordsPerMinute is the reading speed used for the reading time estimate.
	wordsPerMinute = 200
	// neighborLimit caps how many posts are scanned to find neighbors.
	neighborLimit = 200
	// pathsPageSize is the page size used when enumerating post routes.
	pathsPageSize = 100
)

// Builder turns CMS documents into page data. It holds no state between
// calls; every method reads the CMS afresh.
type Builder struct {
	CMS      cms.Client
	PostType string
	// HomePageSize is the number of posts per home page.
	HomePageSize int
}

// NewBuilder creates a Builder reading documents of postType from client.
func NewBuilder(client cms.Client, postType string) *Builder {
	return &Builder{CMS: client, PostType: postType, HomePageSize: 20}
}

// LinkResolver maps documents to site paths.
func (b *Builder) LinkResolver() richtext.LinkResolver {
	return cms.PostLinkResolver(b.PostType)
}

// BuildPost fetches the post with the given slug under ref and projects it
// for rendering, including its neighbors in the post list.
func (b *Builder) BuildPost(ctx context.Context, slug string, ref cms.Ref) (PostPage, error) {
	doc, err := b.CMS.GetByUID(ctx, b.PostType, slug, cms.QueryOptions{Ref: ref})
	if err != nil {
		if errors.Is(err, cms.ErrNotFound) {
			return PostPage{}, fmt.Errorf("%w: %s", ErrPostNotFound, slug)
		}
		return PostPage{}, err
	}
	post, err := b.ProjectPost(doc)
	if err != nil {
		return PostPage{}, err
	}

	list, err := b.listNeighbors(ctx, ref)
	if err != nil {
		return PostPage{}, err
	}
	prev, next := FindNeighbors(list, slug)

	return PostPage{
		Post:     post,
		Previous: prev,
		Next:     next,
		Preview:  ref != "",
	}, nil
}

// ProjectPost converts a post document into a Post. Each content block is
// rendered from its rich text to sanitized HTML and to plain text.
func (b *Builder) ProjectPost(doc cms.Document) (Post, error) {
	var data cms.PostData
	if err := doc.DecodeData(&data); err != nil {
		return Post{}, err
	}
	resolve := b.LinkResolver()
	post := Post{
		UID:                  doc.UID,
		Title:                data.Title,
		Subtitle:             data.Subtitle,
		BannerURL:            data.Banner.URL,
		BannerAlt:            data.Banner.Alt,
		Author:               data.Author,
		FirstPublicationDate: doc.FirstPublicationDate.Time,
		LastPublicationDate:  doc.LastPublicationDate.Time,
		Content:              make([]PostBlock, 0, len(data.Content)),
	}
	texts := make([]string, 0, len(data.Content))
	for _, block := range data.Content {
		pb := PostBlock{
			Heading: block.Heading,
			HTML:    richtext.AsHTML(block.Body, resolve),
			Text:    richtext.AsText(block.Body, " "),
		}
		post.Content = append(post.Content, pb)
		texts = append(texts, pb.Text)
	}
	post.ReadingMinutes = ReadingMinutes(texts...)
	return post, nil
}

func (b *Builder) listNeighbors(ctx context.Context, ref cms.Ref) ([]Neighbor, error) {
	docs, err := cms.QueryAll(ctx, b.CMS, []cms.Predicate{cms.TypeIs(b.PostType)}, cms.QueryOptions{
		Ref:       ref,
		PageSize:  pathsPageSize,
		Fetch:     []string{b.PostType + ".title"},
		Orderings: []string{"document.first_publication_date"},
	}, neighborLimit)
	if err != nil {
		return nil, fmt.Errorf("list neighbors: %w", err)
	}
	list := make([]Neighbor, 0, len(docs))
	for _, doc := range docs {
		var data struct {
			Title string `json:"title"`
		}
		if err := doc.DecodeData(&data); err != nil {
			return nil, err
		}
		list = append(list, Neighbor{UID: doc.UID, Title: data.Title})
	}
	return list, nil
}

// FindNeighbors returns the entries immediately before and after slug in
// list. Either is nil at the corresponding end of the list, and both are
// nil when slug is not in list.
func FindNeighbors(list []Neighbor, slug string) (prev, next *Neighbor) {
	idx := -1
	for i, n := range list {
		if n.UID == slug {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, nil
	}
	if idx > 0 {
		p := list[idx-1]
		prev = &p
	}
	if idx < len(list)-1 {
		n := list[idx+1]
		next = &n
	}
	return prev, next
}

// ReadingMinutes estimates the reading time of texts at 200 words per
// minute, rounded to the nearest minute and never less than one.
func ReadingMinutes(texts ...string) int {
	words := 0
	for _, t := range texts {
		words += len(strings.Fields(t))
	}
	minutes := int(math.Round(float64(words) / wordsPerMinute))
	if minutes < 1 {
		return 1
	}
	return minutes
}

// ListPosts returns one page of the post listing under ref, newest first.
func (b *Builder) ListPosts(ctx context.Context, page int, ref cms.Ref) (HomePage, error) {
	if page < 1 {
		page = 1
	}
	resp, err := b.CMS.Query(ctx, []cms.Predicate{cms.TypeIs(b.PostType)}, cms.QueryOptions{
		Ref:       ref,
		Page:      page,
		PageSize:  b.HomePageSize,
		Fetch:     []string{b.PostType + ".title", b.PostType + ".subtitle", b.PostType + ".author"},
		Orderings: []string{"document.first_publication_date desc"},
	})
	if err != nil {
		return HomePage{}, fmt.Errorf("list posts: %w", err)
	}
	home := HomePage{Page: page, Preview: ref != ""}
	for _, doc := range resp.Results {
		var data cms.PostData
		if err := doc.DecodeData(&data); err != nil {
			return HomePage{}, err
		}
		home.Posts = append(home.Posts, PostSummary{
			UID:                  doc.UID,
			Title:                data.Title,
			Subtitle:             data.Subtitle,
			Author:               data.Author,
			FirstPublicationDate: doc.FirstPublicationDate.Time,
		})
	}
	if page < resp.TotalPages {
		home.NextPage = page + 1
	}
	return home, nil
}

// EnumeratePaths lists one route per distinct post uid in the published
// content. Every result page is read, so large collections are complete.
func (b *Builder) EnumeratePaths(ctx context.Context) (Paths, error) {
	docs, err := cms.QueryAll(ctx, b.CMS, []cms.Predicate{cms.TypeIs(b.PostType)}, cms.QueryOptions{
		PageSize: pathsPageSize,
		Fetch:    []string{b.PostType + ".title"},
	}, 0)
	if err != nil {
		return Paths{}, fmt.Errorf("enumerate paths: %w", err)
	}
	seen := make(map[string]struct{}, len(docs))
	paths := Paths{Params: make([]PathParams, 0, len(docs)), Fallback: true}
	for _, doc := range docs {
		if doc.UID == "" {
			continue
		}
		if _, ok := seen[doc.UID]; ok {
			continue
		}
		seen[doc.UID] = struct{}{}
		paths.Params = append(paths.Params, PathParams{Slug: doc.UID})
	}
	return paths, nil
}
