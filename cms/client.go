package cms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const maxBodySize = 8 << 20

// Client talks to one backend repository.
type Client struct {
	endpoint    string
	accessToken string
	http        *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAccessToken authenticates requests against a private repository.
func WithAccessToken(token string) Option {
	return func(c *Client) {
		c.accessToken = token
	}
}

// WithHTTPClient replaces the default logging HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New creates a Client for the API endpoint, e.g.
// "https://my-repo.cdn.prismic.io/api/v2".
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     NewHTTPClient(0, nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MasterRef returns the ref of the currently published content.
func (c *Client) MasterRef(ctx context.Context) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("cms: parse endpoint: %w", err)
	}
	if c.accessToken != "" {
		q := u.Query()
		q.Set("access_token", c.accessToken)
		u.RawQuery = q.Encode()
	}
	var root apiRoot
	if err := c.getJSON(ctx, u.String(), &root); err != nil {
		return "", err
	}
	for _, r := range root.Refs {
		if r.IsMasterRef {
			return r.Ref, nil
		}
	}
	return "", fmt.Errorf("cms: %s advertises no master ref", c.endpoint)
}

// Query returns the first page of documents matching all predicates.
func (c *Client) Query(ctx context.Context, predicates []Predicate, opts QueryOptions) (SearchResponse, error) {
	ref, err := c.MasterRef(ctx)
	if err != nil {
		return SearchResponse{}, err
	}
	u, err := url.Parse(c.endpoint + "/documents/search")
	if err != nil {
		return SearchResponse{}, fmt.Errorf("cms: parse endpoint: %w", err)
	}
	q := url.Values{}
	q.Set("ref", ref)
	q.Set("q", encodeQuery(predicates))
	if len(opts.Fetch) > 0 {
		q.Set("fetch", strings.Join(opts.Fetch, ","))
	}
	if opts.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(opts.PageSize))
	}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.Orderings != "" {
		q.Set("orderings", opts.Orderings)
	}
	if c.accessToken != "" {
		q.Set("access_token", c.accessToken)
	}
	u.RawQuery = q.Encode()

	var resp SearchResponse
	if err := c.getJSON(ctx, u.String(), &resp); err != nil {
		return SearchResponse{}, err
	}
	return resp, nil
}

// GetByUID returns the document of docType whose UID is uid.
func (c *Client) GetByUID(ctx context.Context, docType, uid string) (Document, error) {
	resp, err := c.Query(ctx, []Predicate{At(UIDPath(docType), uid)}, QueryOptions{PageSize: 1})
	if err != nil {
		return Document{}, err
	}
	if len(resp.Results) == 0 {
		return Document{}, ErrNotFound
	}
	return resp.Results[0], nil
}

// FetchPage follows a next_page URL exactly as the backend returned it.
func (c *Client) FetchPage(ctx context.Context, pageURL string) (SearchResponse, error) {
	var resp SearchResponse
	if err := c.getJSON(ctx, pageURL, &resp); err != nil {
		return SearchResponse{}, err
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, dst interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("cms: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("cms: get %s: %w", req.URL.Path, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, maxBodySize))
		return &StatusError{Code: res.StatusCode, URL: req.URL.Path}
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("cms: read %s: %w", req.URL.Path, err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("cms: decode %s: %w", req.URL.Path, err)
	}
	return nil
}
