package product

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/scout/llm"
	"github.com/hazyhaar/scout/research"
	"github.com/hazyhaar/scout/search"
)

// EnricherConfig bounds the enrichment fan-out.
type EnricherConfig struct {
	// MaxCandidates caps how many products are enriched per run.
	// Candidates past the cap keep their extracted fields untouched.
	// Default: 5.
	MaxCandidates int
	// SearchesPerProduct caps secondary searches per candidate. Default: 2.
	SearchesPerProduct int
	// ResultsPerSearch bounds each secondary search. Default: 3.
	ResultsPerSearch int
	// DigestChars truncates each secondary result's content before it
	// enters the rewrite prompt. Default: 1500.
	DigestChars int
	// Model passed to the completer. Empty uses the client default.
	Model string

	Logger *slog.Logger
}

func (c *EnricherConfig) defaults() {
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = 5
	}
	if c.SearchesPerProduct <= 0 {
		c.SearchesPerProduct = 2
	}
	if c.ResultsPerSearch <= 0 {
		c.ResultsPerSearch = 3
	}
	if c.DigestChars <= 0 {
		c.DigestChars = 1500
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Enricher fills in sparse candidates with targeted secondary searches.
type Enricher struct {
	searcher  search.Client
	completer llm.Completer
	cfg       EnricherConfig
}

// NewEnricher creates an Enricher.
func NewEnricher(searcher search.Client, completer llm.Completer, cfg EnricherConfig) *Enricher {
	cfg.defaults()
	return &Enricher{searcher: searcher, completer: completer, cfg: cfg}
}

// Enrich runs the candidates concurrently, mutating sparse ones in place.
// A failed enrichment leaves its candidate's extracted fields intact and
// never affects siblings. The returned map records the evidence gathered
// per enriched product, keyed by Key(brand, name).
func (e *Enricher) Enrich(ctx context.Context, products []*Product) (map[string]Enrichment, error) {
	if len(products) == 0 {
		return nil, nil
	}
	batch := products
	if len(batch) > e.cfg.MaxCandidates {
		batch = batch[:e.cfg.MaxCandidates]
	}

	// Per-branch result slots, merged after the wait. No shared state
	// during the fan-out.
	results := make([]*Enrichment, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range batch {
		if !IsSparse(p) {
			continue
		}
		g.Go(func() error {
			enr, err := e.enrichOne(gctx, p)
			if err != nil {
				e.cfg.Logger.Warn("enrich: candidate failed",
					"product", p.Name, "error", err)
				return nil
			}
			results[i] = enr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]Enrichment)
	for _, enr := range results {
		if enr != nil {
			out[enr.Key] = *enr
		}
	}
	return out, nil
}

// IsSparse reports whether a candidate needs secondary research: a thin
// description, or too few substantive pros or cons.
func IsSparse(p *Product) bool {
	return len(p.Description) < 100 || len(p.Pros) < 3 || len(p.Cons) < 2
}

func (e *Enricher) enrichOne(ctx context.Context, p *Product) (*Enrichment, error) {
	queries := []string{
		fmt.Sprintf("%s %s review", p.Brand, p.Name),
		fmt.Sprintf("%s %s pros and cons", p.Brand, p.Name),
	}
	if len(queries) > e.cfg.SearchesPerProduct {
		queries = queries[:e.cfg.SearchesPerProduct]
	}

	enr := &Enrichment{Key: Key(p.Brand, p.Name)}
	var digest strings.Builder
	for _, q := range queries {
		results, err := e.searcher.Search(ctx, search.Query{
			Text:       q,
			Depth:      search.DepthBasic,
			MaxResults: e.cfg.ResultsPerSearch,
		})
		if err != nil {
			// A dead query is tolerable; the other one may still land.
			e.cfg.Logger.Debug("enrich: search failed", "query", q, "error", err)
			continue
		}
		for _, r := range results {
			enr.Sources = append(enr.Sources, research.RawSource{
				Title:   r.Title,
				URL:     r.URL,
				Content: r.Content,
				Type:    research.InferSourceType(r.URL),
			})
			content := r.Content
			if len(content) > e.cfg.DigestChars {
				content = content[:e.cfg.DigestChars]
			}
			fmt.Fprintf(&digest, "--- %s ---\n%s\n\n", r.Title, content)
		}
	}
	if digest.Len() == 0 {
		return nil, fmt.Errorf("no secondary sources for %q", p.Name)
	}
	enr.Digest = digest.String()

	if err := e.rewrite(ctx, p, enr.Digest); err != nil {
		return nil, err
	}
	return enr, nil
}

const enrichPrompt = `Improve the description, pros, and cons of this product using the additional sources below. Return JSON only:
{"description": "2-3 sentence description", "pros": ["..."], "cons": ["..."]}

Product: %s %s (%s)
Current description: %s
Current pros: %s
Current cons: %s

Additional sources:
%s`

// rewrite asks the model to improve description, pros, and cons only.
// Scores, source counts, and endorsement fields are extraction-owned and
// never touched here.
func (e *Enricher) rewrite(ctx context.Context, p *Product, digest string) error {
	raw, err := e.completer.Complete(ctx, []llm.Message{
		{Role: "user", Content: fmt.Sprintf(enrichPrompt,
			p.Brand, p.Name, p.Category,
			p.Description,
			strings.Join(p.Pros, "; "),
			strings.Join(p.Cons, "; "),
			digest)},
	}, llm.Options{Model: e.cfg.Model, MaxTokens: 1000, Temperature: 0.3})
	if err != nil {
		return fmt.Errorf("rewrite: %w", err)
	}

	var upd struct {
		Description string   `json:"description"`
		Pros        []string `json:"pros"`
		Cons        []string `json:"cons"`
	}
	if err := llm.DecodeObject(raw, &upd); err != nil {
		return fmt.Errorf("rewrite: decode: %w", err)
	}
	if len(upd.Description) >= len(p.Description) {
		p.Description = upd.Description
	}
	if len(upd.Pros) >= len(p.Pros) {
		p.Pros = upd.Pros
	}
	if len(upd.Cons) >= len(p.Cons) {
		p.Cons = upd.Cons
	}
	return nil
}
