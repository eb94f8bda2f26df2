// Package pipeline wires the research, extraction, enrichment, purchase,
// and comparison stages into one service facade. Each operation runs
// under a per-run deadline propagated to every search, scrape, and model
// call, so a wedged upstream can never hold a run open indefinitely.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/scout/compare"
	"github.com/hazyhaar/scout/idgen"
	"github.com/hazyhaar/scout/product"
	"github.com/hazyhaar/scout/purchase"
	"github.com/hazyhaar/scout/research"
	"github.com/hazyhaar/scout/store"
	"github.com/hazyhaar/scout/strategy"
)

// Config tunes the facade.
type Config struct {
	// RunTimeout is the per-run deadline. Default: 3m.
	RunTimeout time.Duration
	// ResolveConcurrency bounds parallel purchase resolutions. Default: 5.
	ResolveConcurrency int
	// Context building knobs, passed through to research.BuildContext.
	Context research.ContextConfig

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.RunTimeout <= 0 {
		c.RunTimeout = 3 * time.Minute
	}
	if c.ResolveConcurrency <= 0 {
		c.ResolveConcurrency = 5
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Service is the assembled pipeline. Construct with New; all components
// are required except cache and writer, which may be nil to disable
// persistence.
type Service struct {
	strategizer *strategy.Strategizer
	searcher    *research.Searcher
	extractor   *product.Extractor
	enricher    *product.Enricher
	resolver    *purchase.Resolver
	analyzer    *compare.Analyzer
	cache       *store.Store
	writer      *store.Writer
	newRunID    idgen.Generator
	cfg         Config
}

// New assembles a Service. cache and writer may be nil.
func New(
	strategizer *strategy.Strategizer,
	searcher *research.Searcher,
	extractor *product.Extractor,
	enricher *product.Enricher,
	resolver *purchase.Resolver,
	analyzer *compare.Analyzer,
	cache *store.Store,
	writer *store.Writer,
	cfg Config,
) *Service {
	cfg.defaults()
	return &Service{
		strategizer: strategizer,
		searcher:    searcher,
		extractor:   extractor,
		enricher:    enricher,
		resolver:    resolver,
		analyzer:    analyzer,
		cache:       cache,
		writer:      writer,
		newRunID:    idgen.Prefixed("run_", idgen.Default),
		cfg:         cfg,
	}
}

// runContext attaches the per-run deadline.
func (s *Service) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.RunTimeout)
}

// ResearchProducts plans and executes the search phase for a query,
// returning ranked sources and the assembled extraction context.
func (s *Service) ResearchProducts(ctx context.Context, query string) (*research.Result, error) {
	ctx, cancel := s.runContext(ctx)
	defer cancel()

	runID := s.newRunID()
	log := s.cfg.Logger.With("run", runID, "query", query)

	plan := s.strategizer.Plan(ctx, query)
	sources, err := s.searcher.Run(ctx, query, plan)
	if err != nil {
		s.logEvent(store.RunEvent{RunID: runID, Stage: "research", Query: query, Detail: err.Error()})
		return nil, fmt.Errorf("research: %w", err)
	}
	log.Info("research complete", "sources", len(sources))
	s.logEvent(store.RunEvent{RunID: runID, Stage: "research", Query: query, Success: true})

	return &research.Result{
		Query:   query,
		Plan:    plan,
		Sources: sources,
		Context: research.BuildContext(query, sources, s.cfg.Context),
	}, nil
}

// ExtractProducts runs extraction over a research result, checking the
// cache for already-known products and persisting new ones in the
// background.
func (s *Service) ExtractProducts(ctx context.Context, rc *research.Result) ([]product.Product, error) {
	ctx, cancel := s.runContext(ctx)
	defer cancel()

	products, err := s.extractor.Extract(ctx, rc.Query, rc.Context)
	if err != nil {
		return nil, err
	}

	for i := range products {
		cached := s.cachedQuality(ctx, products[i].Brand, products[i].Name)
		if cached != nil {
			// A cached product has a settled quality score; keep it over
			// the one recomputed from this run's thinner evidence.
			products[i].QualityScore = cached.QualityScore
		}
		s.persistProduct(products[i], rc.Sources)
	}
	return products, nil
}

// EnrichProducts fills in sparse candidates in place and re-persists the
// improved versions. Enrichment failures are already isolated per
// candidate inside the enricher.
func (s *Service) EnrichProducts(ctx context.Context, products []*product.Product) (map[string]product.Enrichment, error) {
	ctx, cancel := s.runContext(ctx)
	defer cancel()

	enrichments, err := s.enricher.Enrich(ctx, products)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		if enr, ok := enrichments[product.Key(p.Brand, p.Name)]; ok {
			s.persistProduct(*p, enr.Sources)
		}
	}
	return enrichments, nil
}

// ResolvePurchase finds a verified purchase page for one product. A nil
// resolution with nil error means none was verified; callers show the
// product without a link.
func (s *Service) ResolvePurchase(ctx context.Context, brand, name string) (*purchase.Resolution, error) {
	ctx, cancel := s.runContext(ctx)
	defer cancel()
	return s.resolver.Resolve(ctx, brand, name)
}

// ResolveAll resolves purchase pages for a product set in parallel,
// bounded by ResolveConcurrency, and annotates each product in place.
// Individual failures leave their product unannotated.
func (s *Service) ResolveAll(ctx context.Context, products []*product.Product) {
	ctx, cancel := s.runContext(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.ResolveConcurrency)
	for _, p := range products {
		g.Go(func() error {
			res, err := s.resolver.Resolve(gctx, p.Brand, p.Name)
			if err != nil || res == nil {
				if err != nil {
					s.cfg.Logger.Warn("purchase resolution failed",
						"product", p.Name, "error", err)
				}
				return nil
			}
			p.AffiliateURL = res.URL
			p.Retailer = res.Retailer
			if len(res.Images) > 0 {
				p.ImageURL = res.Images[0]
			}
			return nil
		})
	}
	g.Wait()
}

// CompareProducts analyzes 2-5 products. Names resolve against the
// pre-researched set first, then the cache; products found in neither
// are researched fresh through the full extract path.
func (s *Service) CompareProducts(ctx context.Context, names []string, preResearched []product.Product, query string) (*compare.Data, error) {
	ctx, cancel := s.runContext(ctx)
	defer cancel()

	var inputs []compare.Input
	for _, name := range names {
		if p, ok := findByName(preResearched, name); ok {
			inputs = append(inputs, compare.Input{Product: p})
			continue
		}
		if p := s.cachedByName(ctx, name); p != nil {
			inputs = append(inputs, compare.Input{Product: *p})
			continue
		}
		in, err := s.researchOne(ctx, name, query)
		if err != nil {
			s.cfg.Logger.Warn("compare: could not research product",
				"product", name, "error", err)
			continue
		}
		inputs = append(inputs, *in)
	}
	return s.analyzer.Analyze(ctx, inputs)
}

// researchOne runs a minimal research+extract pass for a single named
// product, for comparisons over products this run never saw.
func (s *Service) researchOne(ctx context.Context, name, query string) (*compare.Input, error) {
	q := name
	if query != "" {
		q = fmt.Sprintf("%s %s", name, query)
	}
	rc, err := s.ResearchProducts(ctx, q)
	if err != nil {
		return nil, err
	}
	products, err := s.extractor.Extract(ctx, rc.Query, rc.Context)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("no products extracted for %q", name)
	}
	return &compare.Input{Product: products[0], Sources: rc.Sources}, nil
}

func findByName(products []product.Product, name string) (product.Product, bool) {
	want := product.Key("", name)
	for _, p := range products {
		if product.Key(p.Brand, p.Name) == want || product.Key("", p.Name) == want {
			return p, true
		}
	}
	return product.Product{}, false
}

func (s *Service) cachedQuality(ctx context.Context, brand, name string) *product.Product {
	if s.cache == nil {
		return nil
	}
	p, err := s.cache.Get(ctx, brand, name)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.cfg.Logger.Warn("cache read failed", "error", err)
		}
		return nil
	}
	return p
}

// cachedByName probes the cache treating the whole name as brand+name.
func (s *Service) cachedByName(ctx context.Context, name string) *product.Product {
	return s.cachedQuality(ctx, "", name)
}

func (s *Service) persistProduct(p product.Product, sources []research.RawSource) {
	if s.writer == nil {
		return
	}
	s.writer.PutProduct(store.ProductWrite{Product: p, Sources: sources})
}

func (s *Service) logEvent(ev store.RunEvent) {
	if s.writer == nil {
		return
	}
	s.writer.LogEvent(ev)
}
