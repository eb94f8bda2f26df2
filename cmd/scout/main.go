package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/scout/browser"
	"github.com/hazyhaar/scout/compare"
	"github.com/hazyhaar/scout/llm"
	"github.com/hazyhaar/scout/pipeline"
	"github.com/hazyhaar/scout/product"
	"github.com/hazyhaar/scout/purchase"
	"github.com/hazyhaar/scout/research"
	"github.com/hazyhaar/scout/scrape"
	"github.com/hazyhaar/scout/search"
	"github.com/hazyhaar/scout/store"
	"github.com/hazyhaar/scout/strategy"
)

// tuning holds the overridable pipeline constants. Every value has a
// default baked into its package; the YAML file only overrides.
type tuning struct {
	Research struct {
		MaxSources      int `yaml:"max_sources"`
		MinViable       int `yaml:"min_viable"`
		PerQueryResults int `yaml:"per_query_results"`
	} `yaml:"research"`
	Extract struct {
		MatchThreshold   int `yaml:"match_threshold"`
		RelaxedThreshold int `yaml:"relaxed_threshold"`
		MaxProducts      int `yaml:"max_products"`
	} `yaml:"extract"`
	Purchase struct {
		MinConfidence    int `yaml:"min_confidence"`
		MaxCandidateURLs int `yaml:"max_candidate_urls"`
	} `yaml:"purchase"`
	Pipeline struct {
		RunTimeoutSeconds  int `yaml:"run_timeout_seconds"`
		ResolveConcurrency int `yaml:"resolve_concurrency"`
	} `yaml:"pipeline"`
}

func loadTuning(path string) (tuning, error) {
	var t tuning
	if path == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("tuning file: %w", err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("tuning file %s: %w", path, err)
	}
	return t, nil
}

func main() {
	port := env("PORT", "8080")
	dataDir := env("DATA_DIR", "data")
	logLevel := env("LOG_LEVEL", "info")

	searchEndpoint := env("SEARCH_ENDPOINT", "https://api.tavily.com/search")
	searchKey := os.Getenv("SEARCH_API_KEY")
	llmBaseURL := env("LLM_BASE_URL", "https://api.openai.com/v1")
	llmKey := os.Getenv("LLM_API_KEY")
	llmModel := env("LLM_MODEL", "gpt-4o-mini")
	browserURL := os.Getenv("BROWSER_URL")

	if searchKey == "" || llmKey == "" {
		slog.Error("SEARCH_API_KEY and LLM_API_KEY are required")
		os.Exit(1)
	}

	// Logging.
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	tun, err := loadTuning(os.Getenv("TUNING_FILE"))
	if err != nil {
		slog.Error("tuning", "error", err)
		os.Exit(1)
	}

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Persistence.
	st, db, err := store.Open(dataDir + "/scout.db")
	if err != nil {
		slog.Error("store open", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	writer := store.NewWriter(st, store.WriterConfig{Logger: logger})
	defer writer.Close()

	// Upstream clients.
	completer := llm.New(llm.Config{
		BaseURL: llmBaseURL,
		APIKey:  llmKey,
		Model:   llmModel,
		Logger:  logger,
	})
	searcher := search.New(search.Config{
		Endpoint: searchEndpoint,
		APIKey:   searchKey,
	})
	scraper := scrape.New(scrape.Config{Logger: logger})

	// A renderer is optional: without BROWSER_URL, price extraction runs
	// on static HTML only.
	var renderer browser.Renderer
	if browserURL != "" {
		b := browser.New(browser.Config{RemoteURL: browserURL, Logger: logger})
		defer b.Close()
		renderer = b
	}

	svc := pipeline.New(
		strategy.New(strategy.Config{Completer: completer, Logger: logger}),
		research.NewSearcher(searcher, research.Config{
			MaxSources:      tun.Research.MaxSources,
			MinViable:       tun.Research.MinViable,
			PerQueryResults: tun.Research.PerQueryResults,
			Logger:          logger,
		}),
		product.NewExtractor(completer, product.ExtractorConfig{
			MatchThreshold:   tun.Extract.MatchThreshold,
			RelaxedThreshold: tun.Extract.RelaxedThreshold,
			MaxProducts:      tun.Extract.MaxProducts,
			Logger:           logger,
		}),
		product.NewEnricher(searcher, completer, product.EnricherConfig{Logger: logger}),
		purchase.NewResolver(searcher, scraper, completer, renderer, purchase.Config{
			MinConfidence:    tun.Purchase.MinConfidence,
			MaxCandidateURLs: tun.Purchase.MaxCandidateURLs,
			Logger:           logger,
		}),
		compare.NewAnalyzer(completer, compare.Config{Logger: logger}),
		st, writer,
		pipeline.Config{
			RunTimeout:         time.Duration(tun.Pipeline.RunTimeoutSeconds) * time.Second,
			ResolveConcurrency: tun.Pipeline.ResolveConcurrency,
			Logger:             logger,
		},
	)

	// Router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Post("/api/research", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Query string `json:"query"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Query == "" {
			writeError(w, 400, errors.New("query is required"))
			return
		}
		products, err := runResearch(req.Context(), svc, body.Query)
		if err != nil {
			writeError(w, 502, err)
			return
		}
		writeJSON(w, 200, map[string]any{"query": body.Query, "products": products})
	})

	r.Post("/api/compare", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Products []string `json:"products"`
			Query    string   `json:"query"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil || len(body.Products) < 2 {
			writeError(w, 400, errors.New("at least 2 product names are required"))
			return
		}
		data, err := svc.CompareProducts(req.Context(), body.Products, nil, body.Query)
		if err != nil {
			writeError(w, 502, err)
			return
		}
		writeJSON(w, 200, data)
	})

	r.Get("/api/products", func(w http.ResponseWriter, req *http.Request) {
		brand := req.URL.Query().Get("brand")
		name := req.URL.Query().Get("name")
		if name == "" {
			writeError(w, 400, errors.New("name is required"))
			return
		}
		p, err := st.Get(req.Context(), brand, name)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, 404, err)
			return
		}
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, p)
	})

	// HTTP server.
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      5 * time.Minute, // research runs are slow
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

// runResearch executes the full pipeline for one query: research,
// extract, enrich, and parallel purchase resolution.
func runResearch(ctx context.Context, svc *pipeline.Service, query string) ([]product.Product, error) {
	rc, err := svc.ResearchProducts(ctx, query)
	if err != nil {
		return nil, err
	}
	products, err := svc.ExtractProducts(ctx, rc)
	if err != nil {
		return nil, err
	}
	ptrs := make([]*product.Product, len(products))
	for i := range products {
		ptrs[i] = &products[i]
	}
	if _, err := svc.EnrichProducts(ctx, ptrs); err != nil {
		slog.Warn("enrichment failed", "error", err)
	}
	svc.ResolveAll(ctx, ptrs)
	return products, nil
}

// --- Helpers ---

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
