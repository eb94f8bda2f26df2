// Package scrape implements the static scrape tier: a bounded, SSRF-guarded
// HTTP fetch followed by HTML content extraction (title, readable text,
// product images).
//
// Pages that require script execution come back thin or empty here; the
// browser package is the slower rendered tier layered on top.
package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/scout/safeurl"
)

// Result is the outcome of scraping one page.
type Result struct {
	Title   string
	Content string
	Images  []string
}

// Client is the scrape capability consumed by the pipeline stages.
type Client interface {
	Scrape(ctx context.Context, url string) (*Result, error)
}

// Func adapts a function to the Client interface (test doubles).
type Func func(ctx context.Context, url string) (*Result, error)

func (f Func) Scrape(ctx context.Context, url string) (*Result, error) {
	return f(ctx, url)
}

// Config configures the Scraper.
type Config struct {
	// Timeout per HTTP call. Default: 20s.
	Timeout time.Duration
	// MaxBytes caps the response body. Default: 5MB.
	MaxBytes int64
	// UserAgent sent with requests.
	UserAgent string
	// URLValidator validates URLs before fetch (SSRF prevention).
	// Default: safeurl.Validate.
	URLValidator func(string) error

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 20 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 5 * 1024 * 1024
	}
	if c.UserAgent == "" {
		c.UserAgent = "scout/1.0 (+https://github.com/hazyhaar/scout)"
	}
	if c.URLValidator == nil {
		c.URLValidator = safeurl.Validate
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Scraper fetches pages over plain HTTP and extracts their content.
type Scraper struct {
	client *http.Client
	cfg    Config
}

// New creates a Scraper with SSRF protection on redirects.
func New(cfg Config) *Scraper {
	cfg.defaults()
	validate := cfg.URLValidator
	return &Scraper{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				if err := validate(req.URL.String()); err != nil {
					return fmt.Errorf("redirect blocked: %w", err)
				}
				return nil
			},
		},
		cfg: cfg,
	}
}

// Scrape fetches url and extracts title, readable text, and image URLs.
func (s *Scraper) Scrape(ctx context.Context, url string) (*Result, error) {
	if err := s.cfg.URLValidator(url); err != nil {
		return nil, fmt.Errorf("scrape: URL blocked: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("scrape: new request: %w", err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scrape: http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return nil, fmt.Errorf("scrape: http %d", resp.StatusCode)
	}

	body, err := safeurl.LimitedReadAll(resp.Body, s.cfg.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("scrape: read body: %w", err)
	}

	result, err := ExtractPage(body, url)
	if err != nil {
		return nil, fmt.Errorf("scrape: extract: %w", err)
	}
	return result, nil
}
