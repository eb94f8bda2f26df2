// Package browser implements the rendered scrape tier: a lazily launched
// headless Chrome (Rod + stealth) that loads a page, waits for client-side
// rendering, and returns the DOM converted to markdown.
//
// This tier is optional. When no browser is available the caller simply
// stops at the static scrape tier and degrades per the pipeline's rules.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/scout/safeurl"
)

// Renderer is the rendered-scrape capability. A nil Renderer is a valid
// configuration meaning the tier is absent.
type Renderer interface {
	RenderScrape(ctx context.Context, url string) (string, error)
}

// Func adapts a function to the Renderer interface (test doubles).
type Func func(ctx context.Context, url string) (string, error)

func (f Func) RenderScrape(ctx context.Context, url string) (string, error) {
	return f(ctx, url)
}

// Config configures the Browser.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via the Rod launcher.
	RemoteURL string

	// NavigateTimeout bounds page load. Default: 30s.
	NavigateTimeout time.Duration

	// SettleDelay is how long to wait after load for client-side rendering
	// to produce prices and gallery images. Default: 2s.
	SettleDelay time.Duration

	// URLValidator validates URLs before navigation. Default: safeurl.Validate.
	URLValidator func(string) error

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = 30 * time.Second
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = 2 * time.Second
	}
	if c.URLValidator == nil {
		c.URLValidator = safeurl.Validate
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Browser renders pages in headless Chrome. Chrome is launched on first
// use and reused until Close.
type Browser struct {
	cfg Config

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	md      *converter.Converter
}

// New creates a Browser. Chrome is not launched until the first RenderScrape.
func New(cfg Config) *Browser {
	cfg.defaults()
	return &Browser{
		cfg: cfg,
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// RenderScrape navigates to url in a stealth page, waits for rendering,
// and returns the full DOM as markdown.
func (b *Browser) RenderScrape(ctx context.Context, url string) (string, error) {
	if err := b.cfg.URLValidator(url); err != nil {
		return "", fmt.Errorf("browser: URL blocked: %w", err)
	}

	br, err := b.connect()
	if err != nil {
		return "", err
	}

	page, err := stealth.Page(br)
	if err != nil {
		return "", fmt.Errorf("browser: create page: %w", err)
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, b.cfg.NavigateTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(url); err != nil {
		return "", fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		b.cfg.Logger.Warn("browser: wait load timeout", "url", url, "error", err)
	}

	// Let client-side rendering settle; many retailers inject prices late.
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(b.cfg.SettleDelay):
	}

	res, err := page.Context(navCtx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("browser: get DOM: %w", err)
	}

	markdown, err := b.md.ConvertString(res.Value.Str(), converter.WithDomain(url))
	if err != nil || strings.TrimSpace(markdown) == "" {
		// Conversion failure still leaves usable raw text.
		return res.Value.Str(), nil
	}
	return strings.TrimSpace(markdown), nil
}

// Close shuts down the launched Chrome, if any.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			return fmt.Errorf("browser: close: %w", err)
		}
		b.browser = nil
	}
	if b.lnch != nil {
		b.lnch.Cleanup()
		b.lnch = nil
	}
	return nil
}

func (b *Browser) connect() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser != nil {
		return b.browser, nil
	}

	var wsURL string
	if b.cfg.RemoteURL != "" {
		wsURL = b.cfg.RemoteURL
	} else {
		l := launcher.New().Headless(true)
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch chrome: %w", err)
		}
		b.lnch = l
		wsURL = u
	}

	br := rod.New().ControlURL(wsURL)
	if err := br.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	b.browser = br
	b.cfg.Logger.Info("browser: chrome connected", "remote", b.cfg.RemoteURL != "")
	return br, nil
}
