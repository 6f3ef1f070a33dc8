// Package prismic implements cms.Client over the Prismic REST API (v2).
package prismic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/eringen/cmsblog/cms"
)

// DefaultMasterRefTTL bounds how long a discovered master ref is reused.
// The API root is re-read after this so newly published content shows up.
const DefaultMasterRefTTL = 5 * time.Second

// Client is a Prismic API client.
type Client struct {
	endpoint    string
	accessToken string
	httpClient  *http.Client
	refTTL      time.Duration

	mu        sync.Mutex
	masterRef string
	refAt     time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithMasterRefTTL sets how long the master ref is reused between calls.
// Zero or less reads the API root before every query.
func WithMasterRefTTL(d time.Duration) Option {
	return func(c *Client) {
		c.refTTL = d
	}
}

// NewClient creates a client for the repository API at endpoint, e.g.
// https://my-repo.cdn.prismic.io/api/v2.
func NewClient(endpoint, accessToken string, opts ...Option) *Client {
	c := &Client{
		endpoint:    strings.TrimRight(endpoint, "/"),
		accessToken: accessToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		refTTL: DefaultMasterRefTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiError is the error body returned by the API.
type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type apiRoot struct {
	Refs []struct {
		ID          string `json:"id"`
		Ref         string `json:"ref"`
		IsMasterRef bool   `json:"isMasterRef"`
	} `json:"refs"`
}

// statusError carries an unexpected HTTP status from the API.
type statusError struct {
	Code    int
	Message string
}

func (e *statusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("prismic: status %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("prismic: status %d", e.Code)
}

// doGet performs a GET request against the API and decodes the JSON body.
func (c *Client) doGet(ctx context.Context, rawURL string, params url.Values, result interface{}) error {
	if c.accessToken != "" {
		params.Set("access_token", c.accessToken)
	}
	if len(params) > 0 {
		rawURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var ae apiError
		_ = json.Unmarshal(body, &ae)
		return &statusError{Code: resp.StatusCode, Message: ae.Message}
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// MasterRef returns the ref of the currently published content.
func (c *Client) MasterRef(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.refTTL > 0 && c.masterRef != "" && time.Since(c.refAt) < c.refTTL {
		ref := c.masterRef
		c.mu.Unlock()
		return ref, nil
	}
	c.mu.Unlock()

	var root apiRoot
	if err := c.doGet(ctx, c.endpoint, url.Values{}, &root); err != nil {
		return "", fmt.Errorf("get master ref: %w", err)
	}
	for _, r := range root.Refs {
		if r.IsMasterRef {
			c.mu.Lock()
			c.masterRef = r.Ref
			c.refAt = time.Now()
			c.mu.Unlock()
			return r.Ref, nil
		}
	}
	return "", errors.New("get master ref: no master ref in API response")
}

// resolveRef picks the ref for a query. Preview tokens are URLs issued by
// the CMS; anything else is rejected before reaching the network.
func (c *Client) resolveRef(ctx context.Context, ref cms.Ref) (string, error) {
	if ref == "" {
		return c.MasterRef(ctx)
	}
	if strings.Contains(string(ref), "://") {
		u, err := url.Parse(string(ref))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return "", cms.ErrInvalidRef
		}
	}
	return string(ref), nil
}

// Query implements cms.Client.
func (c *Client) Query(ctx context.Context, preds []cms.Predicate, opts cms.QueryOptions) (cms.Response, error) {
	resp, err := c.search(ctx, preds, opts)
	if err != nil {
		return cms.Response{}, fmt.Errorf("query: %w", err)
	}
	return resp, nil
}

// GetByUID implements cms.Client.
func (c *Client) GetByUID(ctx context.Context, typ, uid string, opts cms.QueryOptions) (cms.Document, error) {
	doc, err := c.first(ctx, []cms.Predicate{cms.At("my."+typ+".uid", uid)}, opts)
	if err != nil {
		return cms.Document{}, fmt.Errorf("get %s %q: %w", typ, uid, err)
	}
	return doc, nil
}

// GetByID implements cms.Client.
func (c *Client) GetByID(ctx context.Context, id string, opts cms.QueryOptions) (cms.Document, error) {
	doc, err := c.first(ctx, []cms.Predicate{cms.At("document.id", id)}, opts)
	if err != nil {
		return cms.Document{}, fmt.Errorf("get document %q: %w", id, err)
	}
	return doc, nil
}

func (c *Client) first(ctx context.Context, preds []cms.Predicate, opts cms.QueryOptions) (cms.Document, error) {
	opts.Page = 1
	opts.PageSize = 1
	resp, err := c.search(ctx, preds, opts)
	if err != nil {
		return cms.Document{}, err
	}
	if len(resp.Results) == 0 {
		return cms.Document{}, cms.ErrNotFound
	}
	return resp.Results[0], nil
}

func (c *Client) search(ctx context.Context, preds []cms.Predicate, opts cms.QueryOptions) (cms.Response, error) {
	ref, err := c.resolveRef(ctx, opts.Ref)
	if err != nil {
		return cms.Response{}, err
	}

	params := url.Values{}
	params.Set("ref", ref)
	if len(preds) > 0 {
		params.Set("q", cms.Query(preds...))
	}
	if opts.Page > 0 {
		params.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(opts.PageSize))
	}
	if len(opts.Fetch) > 0 {
		params.Set("fetch", strings.Join(opts.Fetch, ","))
	}
	if len(opts.Orderings) > 0 {
		params.Set("orderings", "["+strings.Join(opts.Orderings, ",")+"]")
	}

	var resp cms.Response
	if err := c.doGet(ctx, c.endpoint+"/documents/search", params, &resp); err != nil {
		var se *statusError
		if opts.Ref != "" && errors.As(err, &se) && isRefRejection(se.Code) {
			return cms.Response{}, fmt.Errorf("%w: %v", cms.ErrInvalidRef, err)
		}
		return cms.Response{}, err
	}
	return resp, nil
}

func isRefRejection(code int) bool {
	return code == http.StatusBadRequest || code == http.StatusNotFound || code == http.StatusGone
}
