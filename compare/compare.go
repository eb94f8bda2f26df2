// Package compare builds multi-dimensional comparison data over a small
// set of already-researched products. Every sub-computation degrades to
// its own documented default instead of failing the comparison.
package compare

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/hazyhaar/scout/llm"
	"github.com/hazyhaar/scout/product"
	"github.com/hazyhaar/scout/research"
)

// MaxProducts caps a comparison; extra products are dropped, not errors.
const MaxProducts = 5

// Sentiment is a per-product positive/neutral/negative split. The three
// values always sum to 100.
type Sentiment struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
}

// FeatureMatrix holds model-named comparison dimensions and one value per
// product per feature.
type FeatureMatrix struct {
	Features []string                     `json:"features"`
	Values   map[string]map[string]string `json:"values"` // product -> feature -> value
}

// Data is the full comparison result.
type Data struct {
	Products      []string             `json:"products"`
	Sentiment     map[string]Sentiment `json:"sentiment"`
	FeatureMatrix FeatureMatrix        `json:"featureMatrix"`
	MentionTrends map[string]int       `json:"mentionTrends"`
	Summary       string               `json:"summary"`
}

// Input pairs a product with whatever research evidence is on hand.
// Sources may be nil when only aggregate extraction data is available.
type Input struct {
	Product product.Product
	Sources []research.RawSource
}

// Config tunes the analyzer.
type Config struct {
	// ExcerptChars bounds each source excerpt fed to the model. Default: 800.
	ExcerptChars int
	// SummaryWords caps the narrative summary. Default: 200.
	SummaryWords int
	// Model passed to the completer. Empty uses the client default.
	Model string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.ExcerptChars <= 0 {
		c.ExcerptChars = 800
	}
	if c.SummaryWords <= 0 {
		c.SummaryWords = 200
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Analyzer computes comparison data.
type Analyzer struct {
	completer llm.Completer
	cfg       Config
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(completer llm.Completer, cfg Config) *Analyzer {
	cfg.defaults()
	return &Analyzer{completer: completer, cfg: cfg}
}

// Analyze builds the comparison. It returns an error only for unusable
// input (fewer than two products); model failures degrade the affected
// dimension to its fallback and never abort the comparison.
func (a *Analyzer) Analyze(ctx context.Context, inputs []Input) (*Data, error) {
	if len(inputs) < 2 {
		return nil, fmt.Errorf("compare: need at least 2 products, got %d", len(inputs))
	}
	if len(inputs) > MaxProducts {
		inputs = inputs[:MaxProducts]
	}

	d := &Data{
		Sentiment:     make(map[string]Sentiment, len(inputs)),
		MentionTrends: make(map[string]int, len(inputs)),
	}
	for _, in := range inputs {
		name := displayName(in.Product)
		d.Products = append(d.Products, name)
		d.Sentiment[name] = a.sentiment(ctx, in)
		d.MentionTrends[name] = mentions(in)
	}
	d.FeatureMatrix = a.featureMatrix(ctx, inputs)
	d.Summary = a.summary(ctx, inputs)
	return d, nil
}

func displayName(p product.Product) string {
	return strings.TrimSpace(p.Brand + " " + p.Name)
}

func mentions(in Input) int {
	if len(in.Sources) > 0 {
		return len(in.Sources)
	}
	return in.Product.SourcesCount
}

// sentiment prefers model scoring over raw source excerpts; with only
// aggregate data it derives the split from the pros/cons ratio. Both
// paths normalize to a 100 total. Any model failure falls back to the
// ratio split, and absent all signal, to equal thirds.
func (a *Analyzer) sentiment(ctx context.Context, in Input) Sentiment {
	if len(in.Sources) > 0 && a.completer != nil {
		if s, err := a.modelSentiment(ctx, in); err == nil {
			return normalize(s)
		} else {
			a.cfg.Logger.Warn("compare: model sentiment failed",
				"product", in.Product.Name, "error", err)
		}
	}
	return ratioSentiment(in.Product)
}

const sentimentPrompt = `Score the overall sentiment toward "%s" in these source excerpts. Respond with JSON only: {"positive": 0-100, "neutral": 0-100, "negative": 0-100}

%s`

func (a *Analyzer) modelSentiment(ctx context.Context, in Input) (Sentiment, error) {
	var sb strings.Builder
	for _, src := range in.Sources {
		excerpt := src.Content
		if len(excerpt) > a.cfg.ExcerptChars {
			excerpt = excerpt[:a.cfg.ExcerptChars]
		}
		fmt.Fprintf(&sb, "[%s] %s\n%s\n\n", src.Type, src.Title, excerpt)
	}
	raw, err := a.completer.Complete(ctx, []llm.Message{
		{Role: "user", Content: fmt.Sprintf(sentimentPrompt, displayName(in.Product), sb.String())},
	}, llm.Options{Model: a.cfg.Model, MaxTokens: 100, Temperature: 0})
	if err != nil {
		return Sentiment{}, err
	}
	var s Sentiment
	if err := llm.DecodeObject(raw, &s); err != nil {
		return Sentiment{}, err
	}
	if s.Positive+s.Neutral+s.Negative == 0 {
		return Sentiment{}, fmt.Errorf("empty sentiment")
	}
	return s, nil
}

// ratioSentiment splits sentiment by the pros/cons balance. No pros and
// no cons means no signal at all, which gets the equal-thirds default.
func ratioSentiment(p product.Product) Sentiment {
	pros, cons := len(p.Pros), len(p.Cons)
	if pros+cons == 0 {
		return Sentiment{Positive: 34, Neutral: 33, Negative: 33}
	}
	pos := pros * 100 / (pros + cons)
	neg := cons * 100 / (pros + cons)
	// Reserve a neutral band so the split never reads as unanimous.
	const neutralBand = 20
	pos = pos * (100 - neutralBand) / 100
	neg = neg * (100 - neutralBand) / 100
	return normalize(Sentiment{Positive: pos, Neutral: neutralBand, Negative: neg})
}

// normalize forces the three values to sum to exactly 100, giving the
// rounding remainder to the largest bucket.
func normalize(s Sentiment) Sentiment {
	total := s.Positive + s.Neutral + s.Negative
	if total <= 0 {
		return Sentiment{Positive: 34, Neutral: 33, Negative: 33}
	}
	out := Sentiment{
		Positive: s.Positive * 100 / total,
		Neutral:  s.Neutral * 100 / total,
		Negative: s.Negative * 100 / total,
	}
	rem := 100 - out.Positive - out.Neutral - out.Negative
	switch {
	case out.Positive >= out.Neutral && out.Positive >= out.Negative:
		out.Positive += rem
	case out.Negative >= out.Neutral:
		out.Negative += rem
	default:
		out.Neutral += rem
	}
	return out
}

const matrixPrompt = `Name 5-8 feature dimensions on which these products can be compared, and give a short value per product per dimension. Respond with JSON only:
{"features": ["dimension", ...], "values": {"product name": {"dimension": "value", ...}, ...}}

Products:
%s`

// featureMatrix asks the model for comparable dimensions. On any failure
// it returns three generic dimensions so the comparison table still
// renders.
func (a *Analyzer) featureMatrix(ctx context.Context, inputs []Input) FeatureMatrix {
	if a.completer != nil {
		var sb strings.Builder
		for _, in := range inputs {
			fmt.Fprintf(&sb, "- %s: %s Pros: %s. Cons: %s.\n",
				displayName(in.Product), in.Product.Description,
				strings.Join(in.Product.Pros, "; "),
				strings.Join(in.Product.Cons, "; "))
		}
		raw, err := a.completer.Complete(ctx, []llm.Message{
			{Role: "user", Content: fmt.Sprintf(matrixPrompt, sb.String())},
		}, llm.Options{Model: a.cfg.Model, MaxTokens: 1500, Temperature: 0.2})
		if err == nil {
			var m FeatureMatrix
			if derr := llm.DecodeObject(raw, &m); derr == nil && len(m.Features) > 0 && len(m.Values) > 0 {
				return m
			}
		} else {
			a.cfg.Logger.Warn("compare: feature matrix failed", "error", err)
		}
	}
	return fallbackMatrix(inputs)
}

func fallbackMatrix(inputs []Input) FeatureMatrix {
	m := FeatureMatrix{
		Features: []string{"Price", "Rating", "Availability"},
		Values:   make(map[string]map[string]string, len(inputs)),
	}
	for _, in := range inputs {
		m.Values[displayName(in.Product)] = map[string]string{
			"Price":        "N/A",
			"Rating":       "N/A",
			"Availability": "N/A",
		}
	}
	return m
}

const summaryPrompt = `Write a comparison summary of these products in under %d words, plain prose, grounded only in the excerpts. No headings, no lists.

%s`

// summary generates the narrative paragraph, falling back to one
// templated sentence per product when the model is unavailable.
func (a *Analyzer) summary(ctx context.Context, inputs []Input) string {
	if a.completer != nil {
		var sb strings.Builder
		for _, in := range inputs {
			fmt.Fprintf(&sb, "%s: %s\n", displayName(in.Product), in.Product.Description)
			for _, src := range topSources(in.Sources, 2) {
				excerpt := src.Content
				if len(excerpt) > a.cfg.ExcerptChars {
					excerpt = excerpt[:a.cfg.ExcerptChars]
				}
				fmt.Fprintf(&sb, "  source: %s\n", excerpt)
			}
		}
		raw, err := a.completer.Complete(ctx, []llm.Message{
			{Role: "user", Content: fmt.Sprintf(summaryPrompt, a.cfg.SummaryWords, sb.String())},
		}, llm.Options{Model: a.cfg.Model, MaxTokens: 500, Temperature: 0.4})
		if err == nil && strings.TrimSpace(raw) != "" {
			return truncateWords(strings.TrimSpace(raw), a.cfg.SummaryWords)
		}
		if err != nil {
			a.cfg.Logger.Warn("compare: summary failed", "error", err)
		}
	}

	parts := make([]string, 0, len(inputs))
	for _, in := range inputs {
		parts = append(parts, fallbackSummary(in))
	}
	return strings.Join(parts, " ")
}

// fallbackSummary mirrors the per-product one-liner used when rating data
// is all we have: source count plus a sentiment band.
func fallbackSummary(in Input) string {
	n := mentions(in)
	s := ratioSentiment(in.Product)
	band := "mixed"
	switch {
	case s.Positive >= 70:
		band = "overwhelmingly positive"
	case s.Positive >= 55:
		band = "positive"
	case s.Negative >= 55:
		band = "negative"
	}
	return fmt.Sprintf("Based on %d sources, users have %s opinions about %s.", n, band, displayName(in.Product))
}

func topSources(sources []research.RawSource, n int) []research.RawSource {
	if len(sources) <= n {
		return sources
	}
	sorted := make([]research.RawSource, len(sources))
	copy(sorted, sources)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	return sorted[:n]
}

func truncateWords(s string, max int) string {
	words := strings.Fields(s)
	if len(words) <= max {
		return s
	}
	return strings.Join(words[:max], " ")
}
