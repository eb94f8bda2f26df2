package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearch(t *testing.T) {
	// WHAT: Search posts the Tavily wire format and maps results back.
	// WHY: Every pipeline stage depends on this adapter's request shape.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Query != "best running shoes" {
			t.Errorf("query: got %q", req.Query)
		}
		if req.SearchDepth != "advanced" {
			t.Errorf("depth: got %q", req.SearchDepth)
		}
		if req.MaxResults != 5 {
			t.Errorf("max_results: got %d", req.MaxResults)
		}
		if len(req.IncludeDomains) != 1 || req.IncludeDomains[0] != "reddit.com" {
			t.Errorf("include_domains: got %v", req.IncludeDomains)
		}
		json.NewEncoder(w).Encode(searchResponse{Results: []Result{
			{Title: "Best shoes thread", URL: "https://reddit.com/r/running/1", Content: "Pegasus is the best", Score: 0.9},
		}})
	}))
	defer srv.Close()

	c := New(Config{Endpoint: srv.URL})
	results, err := c.Search(context.Background(), Query{
		Text:       "best running shoes",
		Depth:      DepthAdvanced,
		MaxResults: 5,
		Domains:    []string{"reddit.com"},
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].URL != "https://reddit.com/r/running/1" {
		t.Fatalf("results: got %+v", results)
	}
}

func TestSearch_EmptyResultsOK(t *testing.T) {
	// WHAT: Zero hits is a valid answer, not an error.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	c := New(Config{Endpoint: srv.URL})
	results, err := c.Search(context.Background(), Query{Text: "obscure thing"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty results, got %d", len(results))
	}
}

func TestSearch_EmptyQueryRejected(t *testing.T) {
	c := New(Config{Endpoint: "http://unused"})
	if _, err := c.Search(context.Background(), Query{}); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestImageSearch(t *testing.T) {
	// WHAT: ImageSearch returns the first image, "" when none.
	// WHY: Optional capability; absence must not fail extraction.
	var withImages bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		json.NewDecoder(r.Body).Decode(&req)
		if !req.IncludeImages {
			t.Error("include_images not set")
		}
		if withImages {
			w.Write([]byte(`{"results":[],"images":["https://img.example.com/a.jpg"]}`))
		} else {
			w.Write([]byte(`{"results":[]}`))
		}
	}))
	defer srv.Close()

	c := New(Config{Endpoint: srv.URL})

	withImages = true
	url, err := c.ImageSearch(context.Background(), "Sony WH-1000XM5")
	if err != nil {
		t.Fatalf("image search: %v", err)
	}
	if url != "https://img.example.com/a.jpg" {
		t.Fatalf("url: got %q", url)
	}

	withImages = false
	url, err = c.ImageSearch(context.Background(), "anything")
	if err != nil {
		t.Fatalf("image search: %v", err)
	}
	if url != "" {
		t.Fatalf("expected empty url, got %q", url)
	}
}

func TestFuncs_NilSafe(t *testing.T) {
	// WHAT: the zero Funcs double answers empty without panicking.
	var f Funcs
	if _, err := f.Search(context.Background(), Query{Text: "x"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.ImageSearch(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}
}
