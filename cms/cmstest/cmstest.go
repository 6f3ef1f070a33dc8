// Package cmstest provides an in-memory cms.Client for tests.
package cmstest

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/eringen/cmsblog/cms"
	"github.com/eringen/cmsblog/richtext"
)

// Client serves documents from memory. Documents added under a ref are only
// visible to queries for that ref; the empty ref is the published content.
// The zero value is ready to use.
type Client struct {
	mu    sync.Mutex
	docs  map[cms.Ref][]cms.Document
	calls []string

	// Err, when set, is returned by every call.
	Err error
}

// Add stores docs under ref, in the order given.
func (c *Client) Add(ref cms.Ref, docs ...cms.Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.docs == nil {
		c.docs = make(map[cms.Ref][]cms.Document)
	}
	c.docs[ref] = append(c.docs[ref], docs...)
}

// Calls returns the operations performed so far.
func (c *Client) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *Client) lookup(op string, ref cms.Ref) ([]cms.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, op)
	if c.Err != nil {
		return nil, c.Err
	}
	docs, ok := c.docs[ref]
	if !ok && ref != "" {
		return nil, cms.ErrInvalidRef
	}
	return docs, nil
}

// Query implements cms.Client. Only document.type predicates are honored.
func (c *Client) Query(_ context.Context, preds []cms.Predicate, opts cms.QueryOptions) (cms.Response, error) {
	docs, err := c.lookup("query", opts.Ref)
	if err != nil {
		return cms.Response{}, err
	}
	var matched []cms.Document
	for _, d := range docs {
		if matchesType(d, preds) {
			matched = append(matched, d)
		}
	}
	page, size := opts.Page, opts.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	total := len(matched)
	pages := (total + size - 1) / size
	from := (page - 1) * size
	if from > total {
		from = total
	}
	to := from + size
	if to > total {
		to = total
	}
	return cms.Response{
		Page:             page,
		ResultsPerPage:   size,
		TotalResultsSize: total,
		TotalPages:       pages,
		Results:          matched[from:to],
	}, nil
}

// GetByUID implements cms.Client.
func (c *Client) GetByUID(_ context.Context, typ, uid string, opts cms.QueryOptions) (cms.Document, error) {
	docs, err := c.lookup("get_by_uid", opts.Ref)
	if err != nil {
		return cms.Document{}, err
	}
	for _, d := range docs {
		if d.Type == typ && d.UID == uid {
			return d, nil
		}
	}
	return cms.Document{}, cms.ErrNotFound
}

// GetByID implements cms.Client.
func (c *Client) GetByID(_ context.Context, id string, opts cms.QueryOptions) (cms.Document, error) {
	docs, err := c.lookup("get_by_id", opts.Ref)
	if err != nil {
		return cms.Document{}, err
	}
	for _, d := range docs {
		if d.ID == id {
			return d, nil
		}
	}
	return cms.Document{}, cms.ErrNotFound
}

func matchesType(d cms.Document, preds []cms.Predicate) bool {
	for _, p := range preds {
		s := string(p)
		if !strings.HasPrefix(s, "[at(document.type,") {
			continue
		}
		if s != string(cms.TypeIs(d.Type)) {
			return false
		}
	}
	return true
}

// Post builds a post document. Each body string becomes one content block
// with a single paragraph.
func Post(id, uid, title string, published time.Time, bodies ...string) cms.Document {
	data := cms.PostData{
		Title:  title,
		Banner: cms.Image{URL: "https://images.example.com/" + uid + ".png"},
		Author: "Ada Lovelace",
	}
	for i, body := range bodies {
		data.Content = append(data.Content, cms.ContentBlock{
			Heading: "Section " + string(rune('A'+i)),
			Body:    richtext.RichText{{Type: richtext.Paragraph, Text: body}},
		})
	}
	raw, err := json.Marshal(data)
	if err != nil {
		panic(err)
	}
	return cms.Document{
		ID:                   id,
		UID:                  uid,
		Type:                 "posts",
		FirstPublicationDate: cms.Time{Time: published},
		LastPublicationDate:  cms.Time{Time: published},
		Data:                 raw,
	}
}

// ErrUnavailable simulates a CMS outage.
var ErrUnavailable = errors.New("cmstest: service unavailable")
