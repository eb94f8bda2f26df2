package research

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/hazyhaar/scout/search"
	"github.com/hazyhaar/scout/strategy"
)

func testPlan() *strategy.Plan {
	return &strategy.Plan{
		SearchQueries:   []string{"best headphones", "headphones worth it reddit", "r/headphones picks", "headphones review", "headphones forum"},
		PriorityDomains: []string{"reddit.com", "head-fi.org"},
		Intent:          "headphones",
	}
}

func TestRun_DedupByNormalizedURL(t *testing.T) {
	// WHAT: the merged source list never contains two entries with the
	// same normalized URL; first occurrence wins.
	client := search.Funcs{SearchFunc: func(ctx context.Context, q search.Query) ([]search.Result, error) {
		return []search.Result{
			{Title: "first", URL: "https://reddit.com/r/headphones/1", Content: "best pick"},
			{Title: "dup slash", URL: "https://reddit.com/r/headphones/1/", Content: "same thread"},
			{Title: "dup fragment", URL: "https://Reddit.com/r/headphones/1#comment", Content: "same again"},
		}, nil
	}}

	s := NewSearcher(client, Config{})
	sources, err := s.Run(context.Background(), "headphones", testPlan())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	seen := make(map[string]struct{})
	for _, src := range sources {
		key := NormalizeURL(src.URL)
		if _, ok := seen[key]; ok {
			t.Fatalf("duplicate normalized URL: %q", key)
		}
		seen[key] = struct{}{}
	}
	if len(sources) != 1 {
		t.Fatalf("expected 1 deduped source, got %d", len(sources))
	}
	if sources[0].Title != "first" {
		t.Fatalf("first occurrence must win, got %q", sources[0].Title)
	}
}

func TestRun_BroadFallbackOnEmptyRestricted(t *testing.T) {
	// WHAT: zero results from all domain-restricted queries triggers the
	// broad unrestricted fallback before returning.
	// WHY: domain restriction must not starve the extractor.
	var restrictedCalls, broadCalls int
	client := search.Funcs{SearchFunc: func(ctx context.Context, q search.Query) ([]search.Result, error) {
		if len(q.Domains) > 0 {
			restrictedCalls++
			return nil, nil
		}
		broadCalls++
		return []search.Result{
			{Title: "broad hit " + q.Text, URL: fmt.Sprintf("https://example.com/%d", broadCalls), Content: "a solid review"},
		}, nil
	}}

	s := NewSearcher(client, Config{})
	sources, err := s.Run(context.Background(), "obscure gadget", testPlan())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if restrictedCalls == 0 || broadCalls == 0 {
		t.Fatalf("expected both phases, got restricted=%d broad=%d", restrictedCalls, broadCalls)
	}
	if len(sources) == 0 {
		t.Fatal("fallback produced no sources")
	}
}

func TestRun_BoundedOutput(t *testing.T) {
	// WHAT: output never exceeds MaxSources regardless of result volume.
	var n int
	client := search.Funcs{SearchFunc: func(ctx context.Context, q search.Query) ([]search.Result, error) {
		var out []search.Result
		for i := 0; i < 10; i++ {
			n++
			out = append(out, search.Result{
				Title: "hit", URL: fmt.Sprintf("https://example.com/p/%d", n), Content: "text",
			})
		}
		return out, nil
	}}

	s := NewSearcher(client, Config{MaxSources: 15})
	sources, err := s.Run(context.Background(), "headphones", testPlan())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(sources) != 15 {
		t.Fatalf("expected 15 sources, got %d", len(sources))
	}
}

func TestRun_SearchErrorsDoNotAbort(t *testing.T) {
	// WHAT: one failing query is logged and skipped; others still merge.
	client := search.Funcs{SearchFunc: func(ctx context.Context, q search.Query) ([]search.Result, error) {
		if strings.Contains(q.Text, "review") {
			return nil, fmt.Errorf("upstream 502")
		}
		return []search.Result{{Title: "ok", URL: "https://reddit.com/r/x/" + q.Text, Content: "buy it for life"}}, nil
	}}

	s := NewSearcher(client, Config{})
	sources, err := s.Run(context.Background(), "headphones", testPlan())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(sources) == 0 {
		t.Fatal("expected sources despite one failing query")
	}
}

func TestScoreSource(t *testing.T) {
	// WHAT: endorsement phrases, community URLs, and expert domains add up.
	community := RawSource{
		Title:   "What's the best skillet?",
		URL:     "https://reddit.com/r/castiron/1",
		Content: "Lodge is buy it for life, absolutely worth it",
		Type:    SourceReddit,
	}
	expert := RawSource{
		Title:   "Skillet reviews",
		URL:     "https://wirecutter.com/reviews/skillet",
		Content: "our testing methodology",
		Type:    SourceExpert,
	}
	plain := RawSource{
		Title:   "Skillet catalog",
		URL:     "https://example.com/skillets",
		Content: "12 inch, pre-seasoned",
		Type:    SourceOther,
	}

	cs, es, ps := ScoreSource(&community), ScoreSource(&expert), ScoreSource(&plain)
	if !(cs > es) {
		t.Errorf("multi-phrase community %d should outrank phrase-free expert %d", cs, es)
	}
	if ps != 0 {
		t.Errorf("plain source score: got %d, want 0", ps)
	}
	// community: 3 phrases (best, buy it for life, worth it) * 2 + 3 = 9
	if cs != 9 {
		t.Errorf("community score: got %d, want 9", cs)
	}
	if es != expertPoints {
		t.Errorf("expert score: got %d, want %d", es, expertPoints)
	}
}

func TestInferSourceType(t *testing.T) {
	tests := []struct {
		url  string
		want SourceType
	}{
		{"https://www.reddit.com/r/headphones/comments/abc", SourceReddit},
		{"https://www.youtube.com/watch?v=x", SourceVideo},
		{"https://www.rtings.com/headphones/reviews", SourceExpert},
		{"https://head-fi.org/threads/1", SourceForum},
		{"https://community.example.com/forum/thread/2", SourceForum},
		{"https://example.com/blog", SourceOther},
	}
	for _, tt := range tests {
		if got := InferSourceType(tt.url); got != tt.want {
			t.Errorf("InferSourceType(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestBuildContext_Bounded(t *testing.T) {
	// WHAT: each excerpt is capped and the instruction block is appended.
	long := strings.Repeat("review text ", 1000) // ~12000 chars
	sources := []RawSource{
		{Title: "Long review", URL: "https://reddit.com/r/x/1", Content: long, Type: SourceReddit},
		{Title: "Short note", URL: "https://example.com/2", Content: "fine product", Type: SourceOther},
	}

	ctx := BuildContext("best widget", sources, ContextConfig{ExcerptChars: 500})
	if !strings.Contains(ctx, "USER QUERY: best widget") {
		t.Error("missing user query")
	}
	if !strings.Contains(ctx, "ANALYSIS INSTRUCTIONS") {
		t.Error("missing instruction block")
	}
	if strings.Contains(ctx, long) {
		t.Error("excerpt was not truncated")
	}
	if !strings.Contains(ctx, "[reddit]") {
		t.Error("missing source type tag")
	}
	// Bounded: well under the raw source size.
	if len(ctx) > 3000 {
		t.Errorf("context too large: %d bytes", len(ctx))
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{"https://Example.com/Path/", "https://example.com/Path"},
		{"https://example.com/a#frag", "https://example.com/a"},
		{" https://example.com ", "https://example.com"},
	}
	for _, tt := range tests {
		if got := NormalizeURL(tt.in); got != tt.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
