// Package purchase resolves an extracted product to a verified place to
// buy it: a direct product page on a commerce site, with a price when one
// can be read off the page.
package purchase

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/hazyhaar/scout/browser"
	"github.com/hazyhaar/scout/llm"
	"github.com/hazyhaar/scout/scrape"
	"github.com/hazyhaar/scout/search"
)

// Resolution is a verified purchase option.
type Resolution struct {
	URL      string   `json:"url"`
	Retailer string   `json:"retailer"`
	Price    float64  `json:"price,omitempty"`
	Images   []string `json:"images,omitempty"`
}

// Config tunes the resolver.
type Config struct {
	// MaxCandidateURLs bounds how many search hits are tried before
	// giving up. Default: 10.
	MaxCandidateURLs int
	// MinConfidence is the model verification floor. Pages verified with
	// lower confidence are skipped. Default: 70.
	MinConfidence int
	// VerifyChars truncates page text before verification. Default: 3000.
	VerifyChars int
	// Model passed to the completer. Empty uses the client default.
	Model string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.MaxCandidateURLs <= 0 {
		c.MaxCandidateURLs = 10
	}
	if c.MinConfidence <= 0 {
		c.MinConfidence = 70
	}
	if c.VerifyChars <= 0 {
		c.VerifyChars = 3000
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Resolver finds and verifies purchase pages. The browser renderer is
// optional: when present it is the second price-extraction tier for
// pages whose static HTML carries no readable price.
type Resolver struct {
	searcher  search.Client
	scraper   scrape.Client
	completer llm.Completer
	renderer  browser.Renderer
	cfg       Config
}

// NewResolver creates a Resolver. renderer may be nil.
func NewResolver(searcher search.Client, scraper scrape.Client, completer llm.Completer, renderer browser.Renderer, cfg Config) *Resolver {
	cfg.defaults()
	return &Resolver{
		searcher:  searcher,
		scraper:   scraper,
		completer: completer,
		renderer:  renderer,
		cfg:       cfg,
	}
}

// Resolve searches for a buyable page for the product and returns the
// first candidate the model verifies as a direct product-page match.
// A nil Resolution with a nil error means no page could be verified;
// callers present the product without a purchase link in that case.
func (r *Resolver) Resolve(ctx context.Context, brand, name string) (*Resolution, error) {
	query := strings.TrimSpace(brand + " " + name)
	if query == "" {
		return nil, fmt.Errorf("resolve: empty product")
	}
	log := r.cfg.Logger.With("product", query)

	hits, err := r.searcher.Search(ctx, search.Query{
		Text:       fmt.Sprintf("%s buy product page", query),
		Depth:      search.DepthBasic,
		MaxResults: r.cfg.MaxCandidateURLs,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve: search: %w", err)
	}

	tried := 0
	for _, hit := range hits {
		if tried >= r.cfg.MaxCandidateURLs {
			break
		}
		if IsNonCommerce(hit.URL) {
			continue
		}
		tried++

		page, err := r.scraper.Scrape(ctx, hit.URL)
		if err != nil {
			log.Debug("resolve: scrape failed", "url", hit.URL, "error", err)
			continue
		}

		ok, confidence, err := r.verify(ctx, query, hit.URL, page)
		if err != nil {
			log.Debug("resolve: verify failed", "url", hit.URL, "error", err)
			continue
		}
		if !ok || confidence < r.cfg.MinConfidence {
			log.Debug("resolve: page rejected", "url", hit.URL, "confidence", confidence)
			continue
		}

		res := &Resolution{
			URL:      hit.URL,
			Retailer: retailerName(hit.URL),
			Images:   page.Images,
		}
		if len(res.Images) == 0 {
			// Image search is an optional capability; "" is a valid
			// answer and so is an error.
			img, err := r.searcher.ImageSearch(ctx, query)
			if err != nil {
				log.Debug("resolve: image search failed", "error", err)
			} else if img != "" {
				res.Images = []string{img}
			}
		}
		if price, found := r.extractPrice(ctx, hit.URL, page.Content); found {
			res.Price = price
		}
		log.Info("resolve: verified purchase page", "url", hit.URL, "price", res.Price)
		return res, nil
	}

	log.Info("resolve: no purchase page verified", "tried", tried)
	return nil, nil
}

const verifyPrompt = `Does this page sell the exact product "%s"? It must be a direct product page where the item can be bought, not a search listing, category page, review, or different model. Respond with JSON only: {"isMatch": true/false, "confidence": 0-100}

URL: %s
Page title: %s
Page text:
%s`

func (r *Resolver) verify(ctx context.Context, product, pageURL string, page *scrape.Result) (bool, int, error) {
	content := page.Content
	if len(content) > r.cfg.VerifyChars {
		content = content[:r.cfg.VerifyChars]
	}
	raw, err := r.completer.Complete(ctx, []llm.Message{
		{Role: "user", Content: fmt.Sprintf(verifyPrompt, product, pageURL, page.Title, content)},
	}, llm.Options{Model: r.cfg.Model, MaxTokens: 100, Temperature: 0})
	if err != nil {
		return false, 0, err
	}
	var verdict struct {
		IsMatch    bool `json:"isMatch"`
		Confidence int  `json:"confidence"`
	}
	if err := llm.DecodeObject(raw, &verdict); err != nil {
		return false, 0, fmt.Errorf("verdict: %w", err)
	}
	return verdict.IsMatch, verdict.Confidence, nil
}

// extractPrice tries the static page text first, then, when a renderer
// is configured, the fully rendered page. Many retailers inject the
// price client-side, so the static tier alone misses them.
func (r *Resolver) extractPrice(ctx context.Context, pageURL, staticText string) (float64, bool) {
	if price, ok := ExtractPrice(staticText); ok {
		return price, true
	}
	if r.renderer == nil {
		return 0, false
	}
	rendered, err := r.renderer.RenderScrape(ctx, pageURL)
	if err != nil {
		r.cfg.Logger.Debug("resolve: render failed", "url", pageURL, "error", err)
		return 0, false
	}
	return ExtractPrice(rendered)
}

// retailerName derives a display name from the page host.
func retailerName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if i := strings.IndexByte(host, '.'); i > 0 {
		host = host[:i]
	}
	if host == "" {
		return ""
	}
	return strings.ToUpper(host[:1]) + host[1:]
}
