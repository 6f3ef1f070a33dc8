// Package cms defines the headless CMS document model and the query
// interface the blog reads content through.
package cms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/eringen/cmsblog/richtext"
)

var (
	// ErrNotFound is returned when no document matches a lookup.
	ErrNotFound = errors.New("cms: document not found")
	// ErrInvalidRef is returned when the CMS rejects a ref or preview token.
	ErrInvalidRef = errors.New("cms: invalid ref")
)

// Ref points at a version of the content. The zero value selects the
// published (master) version.
type Ref string

// Document is a CMS document. Data is kept raw until a caller decodes it
// into the shape it expects for the document's type.
type Document struct {
	ID                   string          `json:"id"`
	UID                  string          `json:"uid"`
	Type                 string          `json:"type"`
	Tags                 []string        `json:"tags,omitempty"`
	Lang                 string          `json:"lang,omitempty"`
	FirstPublicationDate Time            `json:"first_publication_date"`
	LastPublicationDate  Time            `json:"last_publication_date"`
	Data                 json.RawMessage `json:"data"`
}

// timeLayout is the timestamp format used by the CMS API.
const timeLayout = "2006-01-02T15:04:05-0700"

// Time is a CMS timestamp. The zero value encodes as null.
type Time struct {
	time.Time
}

// ParseTime parses a CMS timestamp, also accepting RFC 3339.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("cms: parse time %q: %w", s, err)
	}
	return t, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Time) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := ParseTime(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(timeLayout))
}

// DecodeData unmarshals the document payload into v.
func (d Document) DecodeData(v any) error {
	if len(d.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(d.Data, v); err != nil {
		return fmt.Errorf("cms: decode %s %q: %w", d.Type, d.UID, err)
	}
	return nil
}

// Link returns the link form of d used by link resolvers.
func (d Document) Link() richtext.DocumentLink {
	return richtext.DocumentLink{ID: d.ID, UID: d.UID, Type: d.Type}
}

// PostData is the payload of a post document.
type PostData struct {
	Title    string         `json:"title"`
	Subtitle string         `json:"subtitle,omitempty"`
	Banner   Image          `json:"banner"`
	Author   string         `json:"author"`
	Content  []ContentBlock `json:"content"`
}

// Image is a CMS image field.
type Image struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

// ContentBlock is one entry of a post's content group.
type ContentBlock struct {
	Heading string            `json:"heading"`
	Body    richtext.RichText `json:"body"`
}

// Predicate is a query filter in the CMS query language.
type Predicate string

// At matches documents whose field at path equals value.
func At(path, value string) Predicate {
	return Predicate("[at(" + path + "," + strconv.Quote(value) + ")]")
}

// TypeIs matches documents of type t.
func TypeIs(t string) Predicate {
	return At("document.type", t)
}

// Query joins predicates into a single query string.
func Query(preds ...Predicate) string {
	var b strings.Builder
	b.WriteByte('[')
	for _, p := range preds {
		b.WriteString(string(p))
	}
	b.WriteByte(']')
	return b.String()
}

// QueryOptions narrows and pages a query.
type QueryOptions struct {
	Ref       Ref
	Page      int
	PageSize  int
	Fetch     []string
	Orderings []string
}

// Response is one page of query results.
type Response struct {
	Page             int        `json:"page"`
	ResultsPerPage   int        `json:"results_per_page"`
	TotalResultsSize int        `json:"total_results_size"`
	TotalPages       int        `json:"total_pages"`
	NextPage         *string    `json:"next_page"`
	Results          []Document `json:"results"`
}

// Client is the read interface of the CMS.
type Client interface {
	// Query returns one page of documents matching preds.
	Query(ctx context.Context, preds []Predicate, opts QueryOptions) (Response, error)
	// GetByUID returns the document of type typ with the given uid, or ErrNotFound.
	GetByUID(ctx context.Context, typ, uid string, opts QueryOptions) (Document, error)
	// GetByID returns the document with the given id, or ErrNotFound.
	GetByID(ctx context.Context, id string, opts QueryOptions) (Document, error)
}

// QueryAll pages through every result of preds, stopping after limit
// documents when limit is positive.
func QueryAll(ctx context.Context, c Client, preds []Predicate, opts QueryOptions, limit int) ([]Document, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	var docs []Document
	for {
		resp, err := c.Query(ctx, preds, opts)
		if err != nil {
			return nil, err
		}
		docs = append(docs, resp.Results...)
		if limit > 0 && len(docs) >= limit {
			return docs[:limit], nil
		}
		if len(resp.Results) == 0 || opts.Page >= resp.TotalPages {
			return docs, nil
		}
		opts.Page++
	}
}

// PostLinkResolver sends documents of postType to /post/{uid} and
// everything else to the home page.
func PostLinkResolver(postType string) richtext.LinkResolver {
	return func(l richtext.DocumentLink) string {
		if l.Type == postType && l.UID != "" {
			return "/post/" + l.UID
		}
		return "/"
	}
}

// ResolvePreview looks up documentID under the preview token and maps it
// to a site URL with resolve. It returns "" when the token or document
// does not resolve; any other CMS failure is returned as an error.
func ResolvePreview(ctx context.Context, c Client, token, documentID string, resolve richtext.LinkResolver) (string, error) {
	if token == "" || documentID == "" {
		return "", nil
	}
	doc, err := c.GetByID(ctx, documentID, QueryOptions{Ref: Ref(token)})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidRef) {
			return "", nil
		}
		return "", err
	}
	return resolve(doc.Link()), nil
}
