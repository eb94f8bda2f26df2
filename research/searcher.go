package research

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/scout/scrape"
	"github.com/hazyhaar/scout/search"
	"github.com/hazyhaar/scout/strategy"
)

// Config configures the Searcher. All values are tuning constants
// (resource guardrails, not correctness knobs) and overridable.
type Config struct {
	// MaxSources bounds the ranked source list handed downstream,
	// which caps the extraction context deterministically. Default: 20.
	MaxSources int
	// MinViable is the merged-source count under which the broad
	// unrestricted fallback queries fire. Default: 5.
	MinViable int
	// PerQueryResults is the per-search result cap. Default: 6.
	PerQueryResults int

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.MaxSources <= 0 {
		c.MaxSources = 20
	}
	if c.MinViable <= 0 {
		c.MinViable = 5
	}
	if c.PerQueryResults <= 0 {
		c.PerQueryResults = 6
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Searcher executes a strategy plan against the search client.
type Searcher struct {
	client search.Client
	cfg    Config
}

// NewSearcher creates a Searcher.
func NewSearcher(client search.Client, cfg Config) *Searcher {
	cfg.defaults()
	return &Searcher{client: client, cfg: cfg}
}

// Run executes every plan query concurrently (domain-restricted), merges
// and deduplicates by normalized URL (first occurrence wins), fires the
// broad unrestricted fallback when the merged set is too thin, then scores,
// sorts, and truncates. The fallback cascade is mandatory: domain
// restriction must never starve the pipeline.
func (s *Searcher) Run(ctx context.Context, userQuery string, plan *strategy.Plan) ([]RawSource, error) {
	log := s.cfg.Logger.With("query", userQuery)

	batches := s.fanOut(ctx, plan.SearchQueries, plan.PriorityDomains)

	seen := make(map[string]struct{})
	var merged []RawSource
	merge := func(results []search.Result) {
		for _, r := range results {
			key := NormalizeURL(r.URL)
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, RawSource{
				Title:   r.Title,
				URL:     r.URL,
				Content: scrape.CleanText(r.Content),
				Type:    InferSourceType(r.URL),
			})
		}
	}
	for _, batch := range batches {
		merge(batch)
	}

	if len(merged) < s.cfg.MinViable {
		log.Info("research: thin results, running broad fallback",
			"merged", len(merged), "min_viable", s.cfg.MinViable)
		broad := s.fanOut(ctx, broadQueries(userQuery), nil)
		for _, batch := range broad {
			merge(batch)
		}
	}

	if len(merged) == 0 {
		return nil, fmt.Errorf("research: no sources found for %q", userQuery)
	}

	ranked := rankSources(merged, s.cfg.MaxSources)
	log.Info("research: sources ranked", "merged", len(merged), "kept", len(ranked))
	return ranked, nil
}

// fanOut runs all queries concurrently. Each branch owns its own slot in
// the batches slice; results are merged only after the join, so no locking
// is needed anywhere.
func (s *Searcher) fanOut(ctx context.Context, queries []string, domains []string) [][]search.Result {
	batches := make([][]search.Result, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		depth := search.DepthBasic
		if i == 0 {
			// The primary query gets the expensive deep search.
			depth = search.DepthAdvanced
		}
		g.Go(func() error {
			results, err := s.client.Search(gctx, search.Query{
				Text:       q,
				Depth:      depth,
				MaxResults: s.cfg.PerQueryResults,
				Domains:    domains,
			})
			if err != nil {
				// Upstream-unavailable: log and present an empty batch.
				s.cfg.Logger.Warn("research: search failed", "search_query", q, "error", err)
				return nil
			}
			batches[i] = results
			return nil
		})
	}
	g.Wait()
	return batches
}

// broadQueries is the fixed unrestricted fallback set.
func broadQueries(userQuery string) []string {
	return []string{
		"best " + userQuery,
		userQuery + " review",
		userQuery + " recommendations",
	}
}
