package product

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/hazyhaar/scout/llm"
	"github.com/hazyhaar/scout/purchase"
)

// ExtractorConfig holds the extraction tuning constants. The threshold
// cascade values are product decisions, preserved as named configuration.
type ExtractorConfig struct {
	// MatchThreshold is the strict matchScore cut. Default: 60.
	MatchThreshold int
	// RelaxedThreshold is the second cascade step. Default: 45.
	RelaxedThreshold int
	// TopFallback is how many candidates survive when both thresholds
	// filter everything out. Default: 3.
	TopFallback int
	// MaxProducts caps the final list. Default: 5.
	MaxProducts int
	// MinPointChars drops pros/cons shorter than this as non-substantive.
	// Default: 10.
	MinPointChars int
	// MinDescriptionChars replaces descriptions shorter than this with a
	// generated fallback sentence. Default: 50.
	MinDescriptionChars int
	// Model passed to the completer. Empty uses the client default.
	Model string

	Logger *slog.Logger
}

func (c *ExtractorConfig) defaults() {
	if c.MatchThreshold <= 0 {
		c.MatchThreshold = 60
	}
	if c.RelaxedThreshold <= 0 {
		c.RelaxedThreshold = 45
	}
	if c.TopFallback <= 0 {
		c.TopFallback = 3
	}
	if c.MaxProducts <= 0 {
		c.MaxProducts = 5
	}
	if c.MinPointChars <= 0 {
		c.MinPointChars = 10
	}
	if c.MinDescriptionChars <= 0 {
		c.MinDescriptionChars = 50
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Extractor turns a research context into structured product candidates.
type Extractor struct {
	completer llm.Completer
	cfg       ExtractorConfig
}

// NewExtractor creates an Extractor.
func NewExtractor(completer llm.Completer, cfg ExtractorConfig) *Extractor {
	cfg.defaults()
	return &Extractor{completer: completer, cfg: cfg}
}

const extractPrompt = `Extract the products recommended in the research context below.

%s

Respond with a JSON array only. Never return an empty array: if endorsements are thin, still list the most plausible candidates with honest low scores and "endorsementStrength": "weak". Each element:
{
  "name": "product model name",
  "brand": "manufacturer",
  "category": "product category",
  "description": "2-3 sentences on what it is and why sources recommend it",
  "pros": ["substantive advantages mentioned by sources"],
  "cons": ["substantive drawbacks mentioned by sources"],
  "sourcesCount": <number of sources mentioning it>,
  "endorsementStrength": "weak" | "moderate" | "strong",
  "endorsementQuotes": ["short direct quotes from sources"],
  "sourceTypes": ["reddit", "forum", "expert_review", "video", "other"],
  "matchScore": <0-100 relevance to the user query>,
  "productUrl": "a URL ONLY if a direct product page appears literally in the sources; never a search, category, or forum URL; otherwise omit"
}`

// Extract sends the research context to the model and parses a bounded,
// sanitized candidate list. Malformed model output yields an empty list
// (no error): the caller distinguishes that from "no strong products" by
// the cascade never producing an empty list from a non-empty decode.
func (e *Extractor) Extract(ctx context.Context, userQuery, researchContext string) ([]Product, error) {
	log := e.cfg.Logger.With("query", userQuery)

	raw, err := e.completer.Complete(ctx, []llm.Message{
		{Role: "user", Content: fmt.Sprintf(extractPrompt, researchContext)},
	}, llm.Options{Model: e.cfg.Model, MaxTokens: 3000, Temperature: 0.2})
	if err != nil {
		return nil, fmt.Errorf("extract: completion: %w", err)
	}

	var wire []wireProduct
	if err := llm.DecodeObject(raw, &wire); err != nil {
		// Malformed-model-output: documented fallback is an empty result.
		log.Warn("extract: malformed completion", "error", err)
		return nil, nil
	}
	if len(wire) == 0 {
		return nil, nil
	}

	kept := e.cascade(wire)

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].MatchScore > kept[j].MatchScore
	})
	if len(kept) > e.cfg.MaxProducts {
		kept = kept[:e.cfg.MaxProducts]
	}

	products := make([]Product, 0, len(kept))
	for _, w := range kept {
		products = append(products, e.sanitize(w))
	}
	log.Info("extract: candidates parsed", "raw", len(wire), "kept", len(products))
	return products, nil
}

// wireProduct is the decode schema for one model-emitted candidate.
type wireProduct struct {
	Name                string   `json:"name"`
	Brand               string   `json:"brand"`
	Category            string   `json:"category"`
	Description         string   `json:"description"`
	Pros                []string `json:"pros"`
	Cons                []string `json:"cons"`
	SourcesCount        int      `json:"sourcesCount"`
	EndorsementStrength string   `json:"endorsementStrength"`
	EndorsementQuotes   []string `json:"endorsementQuotes"`
	SourceTypes         []string `json:"sourceTypes"`
	MatchScore          int      `json:"matchScore"`
	ProductURL          string   `json:"productUrl"`
}

// cascade applies the fixed threshold sequence, stopping at the first
// non-empty set: strict, relaxed, then top-N regardless of score. The
// last step trades strict relevance for the requirement that the user
// always sees something when the model found anything at all.
func (e *Extractor) cascade(wire []wireProduct) []wireProduct {
	strict := filterByScore(wire, e.cfg.MatchThreshold)
	if len(strict) > 0 {
		return strict
	}
	relaxed := filterByScore(wire, e.cfg.RelaxedThreshold)
	if len(relaxed) > 0 {
		return relaxed
	}
	if len(wire) > e.cfg.TopFallback {
		wire = wire[:e.cfg.TopFallback]
	}
	return wire
}

func filterByScore(wire []wireProduct, threshold int) []wireProduct {
	var out []wireProduct
	for _, w := range wire {
		if w.MatchScore >= threshold {
			out = append(out, w)
		}
	}
	return out
}

// sanitize validates every field, applying the named fallback for each.
func (e *Extractor) sanitize(w wireProduct) Product {
	p := Product{
		Name:              w.Name,
		Brand:             w.Brand,
		Category:          w.Category,
		Description:       w.Description,
		Pros:              filterPoints(w.Pros, e.cfg.MinPointChars),
		Cons:              filterPoints(w.Cons, e.cfg.MinPointChars),
		SourcesCount:      w.SourcesCount,
		EndorsementQuotes: w.EndorsementQuotes,
		SourceTypes:       w.SourceTypes,
		MatchScore:        clampScore(w.MatchScore),
	}

	switch EndorsementStrength(w.EndorsementStrength) {
	case EndorsementWeak, EndorsementModerate, EndorsementStrong:
		p.EndorsementStrength = EndorsementStrength(w.EndorsementStrength)
	default:
		p.EndorsementStrength = EndorsementWeak
	}

	if len(p.Description) < e.cfg.MinDescriptionChars {
		p.Description = genericDescription(&p)
	}

	if w.ProductURL != "" && purchase.LooksLikeProductPage(w.ProductURL) {
		p.AffiliateURL = w.ProductURL
	}

	p.QualityScore = ComputeQuality(&p)
	return p
}

// filterPoints drops pros/cons too short to be substantive.
func filterPoints(points []string, minChars int) []string {
	var out []string
	for _, pt := range points {
		if len(pt) >= minChars {
			out = append(out, pt)
		}
	}
	return out
}

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

func genericDescription(p *Product) string {
	name := p.Name
	if p.Brand != "" {
		name = p.Brand + " " + p.Name
	}
	if p.Category != "" {
		return fmt.Sprintf("The %s is a %s pick that comes up repeatedly in community and review discussions.", name, p.Category)
	}
	return fmt.Sprintf("The %s comes up repeatedly in community and review discussions.", name)
}
