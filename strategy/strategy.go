// Package strategy turns a free-text shopping query into a search plan:
// 5–7 targeted queries, a prioritized domain list, and an intent label.
//
// Two strategies exist: a deterministic expansion over the category tables,
// and a model-generated plan. Malformed model output always falls back to
// the deterministic plan, and every plan guarantees reddit-level community
// coverage even when a category or domain list is empty.
package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hazyhaar/scout/llm"
)

// Plan is the strategizer output consumed by the research stage.
type Plan struct {
	SearchQueries   []string `json:"searchQueries"`
	PriorityDomains []string `json:"priorityDomains"`
	Intent          string   `json:"intent"`
}

const (
	minQueries = 5
	maxQueries = 7
)

// Deterministic builds a plan from the category tables alone.
func Deterministic(query string) *Plan {
	cat := Classify(query)
	q := strings.TrimSpace(query)

	queries := []string{
		"best " + q,
		q + " buy it for life",
		q + " worth it reddit",
		q + " review",
		q + " recommendations forum",
	}
	for _, sub := range categorySubreddits[cat] {
		if len(queries) >= maxQueries {
			break
		}
		queries = append(queries, fmt.Sprintf("r/%s %s", sub, q))
	}

	return &Plan{
		SearchQueries:   queries,
		PriorityDomains: Domains(cat),
		Intent:          "find well-endorsed " + string(cat) + " products for: " + q,
	}
}

// Config configures the Strategizer.
type Config struct {
	// Completer generates model plans. Nil disables the model strategy
	// and makes Plan purely deterministic.
	Completer llm.Completer
	// Model passed to the completer. Empty uses the client default.
	Model string

	Logger *slog.Logger
}

// Strategizer produces search plans, preferring the model strategy when
// a completer is configured.
type Strategizer struct {
	cfg Config
}

// New creates a Strategizer.
func New(cfg Config) *Strategizer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Strategizer{cfg: cfg}
}

const planPrompt = `You plan web research for a shopping assistant. Given a user's product query, produce search queries targeting the places where enthusiasts genuinely discuss and recommend this product type (subreddits, specialist forums, expert review sites).

User query: %q

Respond with JSON only:
{"searchQueries": ["5 to 7 search queries using endorsement language like 'best', 'worth it', 'buy it for life'"], "priorityDomains": ["domains where enthusiasts discuss this, most relevant first"], "intent": "one sentence describing what the user wants"}`

// Plan produces a search plan for query. Model failures and malformed
// completions fall back to the deterministic plan; Plan never fails.
func (s *Strategizer) Plan(ctx context.Context, query string) *Plan {
	log := s.cfg.Logger.With("query", query)

	if s.cfg.Completer == nil {
		return finalize(Deterministic(query))
	}

	raw, err := s.cfg.Completer.Complete(ctx, []llm.Message{
		{Role: "user", Content: fmt.Sprintf(planPrompt, query)},
	}, llm.Options{Model: s.cfg.Model, MaxTokens: 800, Temperature: 0.3})
	if err != nil {
		log.Warn("strategy: model plan failed, using deterministic", "error", err)
		return finalize(Deterministic(query))
	}

	var plan Plan
	if err := llm.DecodeObject(raw, &plan); err != nil {
		log.Warn("strategy: malformed model plan, using deterministic", "error", err)
		return finalize(Deterministic(query))
	}
	if len(plan.SearchQueries) < minQueries {
		log.Warn("strategy: model plan too thin, using deterministic",
			"queries", len(plan.SearchQueries))
		return finalize(Deterministic(query))
	}
	if len(plan.SearchQueries) > maxQueries {
		plan.SearchQueries = plan.SearchQueries[:maxQueries]
	}
	if plan.Intent == "" {
		plan.Intent = "find well-endorsed products for: " + query
	}
	return finalize(&plan)
}

// finalize enforces the community-coverage guarantee: reddit.com is always
// in the priority domains, whatever strategy produced the plan.
func finalize(p *Plan) *Plan {
	for _, d := range p.PriorityDomains {
		if strings.Contains(strings.ToLower(d), "reddit.com") {
			return p
		}
	}
	p.PriorityDomains = append(p.PriorityDomains, "reddit.com")
	return p
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// containsWord reports whether q contains kw starting at a word boundary.
// Only the leading boundary is checked so plurals still match ("headphones"
// matches the keyword "headphone").
func containsWord(q, kw string) bool {
	for idx := strings.Index(q, kw); idx >= 0; {
		if idx == 0 || !isAlnum(q[idx-1]) {
			return true
		}
		next := strings.Index(q[idx+1:], kw)
		if next < 0 {
			return false
		}
		idx += 1 + next
	}
	return false
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c >= 'A' && c <= 'Z'
}
