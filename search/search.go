// Package search provides the text-search source client used by every
// research stage: a Tavily-compatible JSON API with configurable depth,
// result caps, and an optional domain allow-list.
//
// Callers must tolerate empty result sets; transient upstream errors are
// wrapped and returned, never panicked.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hazyhaar/scout/safeurl"
)

// Depth selects the upstream search depth.
type Depth string

const (
	DepthBasic    Depth = "basic"
	DepthAdvanced Depth = "advanced"
)

// Query is one search request. Constructed fresh per call, never persisted.
type Query struct {
	Text       string
	Depth      Depth
	MaxResults int
	// Domains restricts results to these hosts. Empty means unrestricted.
	Domains []string
}

// Result is a single raw search hit.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Client is the search capability consumed by the pipeline. Tests
// substitute a func-backed fake.
type Client interface {
	Search(ctx context.Context, q Query) ([]Result, error)
	// ImageSearch returns a representative image URL for a term, or ""
	// when none is found. Optional capability: implementations may always
	// return "", and callers must not fail on an empty answer.
	ImageSearch(ctx context.Context, term string) (string, error)
}

// Funcs adapts plain functions to the Client interface (test doubles).
type Funcs struct {
	SearchFunc      func(ctx context.Context, q Query) ([]Result, error)
	ImageSearchFunc func(ctx context.Context, term string) (string, error)
}

func (f Funcs) Search(ctx context.Context, q Query) ([]Result, error) {
	if f.SearchFunc == nil {
		return nil, nil
	}
	return f.SearchFunc(ctx, q)
}

func (f Funcs) ImageSearch(ctx context.Context, term string) (string, error) {
	if f.ImageSearchFunc == nil {
		return "", nil
	}
	return f.ImageSearchFunc(ctx, term)
}

// Config configures the HTTP search client.
type Config struct {
	// Endpoint is the full search URL, e.g. "https://api.tavily.com/search".
	Endpoint string
	// APIKey is sent in the request body, per the Tavily wire format.
	APIKey string
	// Timeout per HTTP call. Default: 30s.
	Timeout time.Duration
	// MaxResults cap applied when Query.MaxResults is zero. Default: 10.
	MaxResults int
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 10
	}
}

// HTTPClient implements Client against a Tavily-compatible endpoint.
type HTTPClient struct {
	client *http.Client
	cfg    Config
}

// New creates an HTTPClient.
func New(cfg Config) *HTTPClient {
	cfg.defaults()
	return &HTTPClient{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
	}
}

type searchRequest struct {
	APIKey         string   `json:"api_key,omitempty"`
	Query          string   `json:"query"`
	SearchDepth    string   `json:"search_depth,omitempty"`
	MaxResults     int      `json:"max_results,omitempty"`
	IncludeDomains []string `json:"include_domains,omitempty"`
	IncludeImages  bool     `json:"include_images,omitempty"`
}

type searchResponse struct {
	Results []Result `json:"results"`
	Images  []string `json:"images"`
}

// Search executes q and returns the raw hits. An empty slice with a nil
// error is a legitimate answer.
func (c *HTTPClient) Search(ctx context.Context, q Query) ([]Result, error) {
	if q.Text == "" {
		return nil, errors.New("search: empty query")
	}
	maxResults := q.MaxResults
	if maxResults <= 0 {
		maxResults = c.cfg.MaxResults
	}
	depth := q.Depth
	if depth == "" {
		depth = DepthBasic
	}

	resp, err := c.post(ctx, searchRequest{
		APIKey:         c.cfg.APIKey,
		Query:          q.Text,
		SearchDepth:    string(depth),
		MaxResults:     maxResults,
		IncludeDomains: q.Domains,
	})
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// ImageSearch returns the first image the engine associates with term.
func (c *HTTPClient) ImageSearch(ctx context.Context, term string) (string, error) {
	if term == "" {
		return "", nil
	}
	resp, err := c.post(ctx, searchRequest{
		APIKey:        c.cfg.APIKey,
		Query:         term,
		MaxResults:    1,
		IncludeImages: true,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Images) == 0 {
		return "", nil
	}
	return resp.Images[0], nil
}

func (c *HTTPClient) post(ctx context.Context, reqBody searchRequest) (*searchResponse, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("search: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("search: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search: http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return nil, fmt.Errorf("search: http %d", resp.StatusCode)
	}

	data, err := safeurl.LimitedReadAll(resp.Body, 10*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("search: read body: %w", err)
	}

	var parsed searchResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("search: json decode: %w", err)
	}
	return &parsed, nil
}
