package compare

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hazyhaar/scout/llm"
	"github.com/hazyhaar/scout/product"
	"github.com/hazyhaar/scout/research"
)

func failingCompleter() llm.CompleterFunc {
	return func(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
		return "", errors.New("model unavailable")
	}
}

func twoProducts() []Input {
	return []Input{
		{Product: product.Product{
			Brand: "Sony", Name: "WH-1000XM5",
			Description:  "Flagship noise cancelling headphones.",
			Pros:         []string{"anc", "battery", "comfort"},
			Cons:         []string{"price"},
			SourcesCount: 12,
		}},
		{Product: product.Product{
			Brand: "Bose", Name: "QC Ultra",
			Description:  "Premium travel headphones.",
			Pros:         []string{"comfort"},
			Cons:         []string{"price", "app"},
			SourcesCount: 7,
		}},
	}
}

func TestAnalyzeNeverRaisesOnModelFailure(t *testing.T) {
	// WHAT: with every model call failing, Analyze still returns a full
	// result: ratio sentiment, the generic fallback matrix, mention
	// counts, and the templated summary.
	// WHY: one model outage must degrade dimensions, not abort the
	// comparison.
	a := NewAnalyzer(failingCompleter(), Config{})
	d, err := a.Analyze(context.Background(), twoProducts())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(d.Products) != 2 {
		t.Fatalf("products = %v", d.Products)
	}
	if len(d.FeatureMatrix.Features) != 3 {
		t.Errorf("fallback matrix features = %v", d.FeatureMatrix.Features)
	}
	for _, p := range d.Products {
		vals := d.FeatureMatrix.Values[p]
		if vals["Price"] != "N/A" || vals["Rating"] != "N/A" || vals["Availability"] != "N/A" {
			t.Errorf("fallback matrix values for %s = %v", p, vals)
		}
	}
	if d.MentionTrends["Sony WH-1000XM5"] != 12 || d.MentionTrends["Bose QC Ultra"] != 7 {
		t.Errorf("mention trends = %v", d.MentionTrends)
	}
	if !strings.Contains(d.Summary, "Based on 12 sources") {
		t.Errorf("templated summary missing: %q", d.Summary)
	}
}

func TestSentimentSumsTo100(t *testing.T) {
	// WHAT: every sentiment split sums to exactly 100, whatever the
	// pros/cons ratio or model output.
	cases := []product.Product{
		{Pros: []string{"a", "b", "c"}, Cons: []string{"d"}},
		{Pros: []string{"a"}, Cons: []string{"b", "c", "d", "e"}},
		{},
		{Pros: []string{"a", "b", "c", "d", "e", "f", "g"}},
	}
	for i, p := range cases {
		s := ratioSentiment(p)
		if s.Positive+s.Neutral+s.Negative != 100 {
			t.Errorf("case %d: %+v sums to %d", i, s, s.Positive+s.Neutral+s.Negative)
		}
	}

	s := normalize(Sentiment{Positive: 3, Neutral: 3, Negative: 3})
	if s.Positive+s.Neutral+s.Negative != 100 {
		t.Errorf("normalize: %+v", s)
	}
}

func TestModelSentimentUsedWhenSourcesPresent(t *testing.T) {
	// WHAT: raw sources trigger the model path; its output is normalized.
	inputs := twoProducts()
	inputs[0].Sources = []research.RawSource{
		{Title: "review", URL: "https://www.rtings.com/x", Content: "great headphones", Type: research.SourceExpert},
	}
	a := NewAnalyzer(llm.CompleterFunc(func(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
		if strings.Contains(messages[0].Content, "sentiment") {
			return `{"positive": 80, "neutral": 15, "negative": 5}`, nil
		}
		return "", errors.New("other calls fail")
	}), Config{})
	d, err := a.Analyze(context.Background(), inputs)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	got := d.Sentiment["Sony WH-1000XM5"]
	if got.Positive != 80 || got.Negative != 5 {
		t.Errorf("model sentiment not used: %+v", got)
	}
	if got.Positive+got.Neutral+got.Negative != 100 {
		t.Errorf("not normalized: %+v", got)
	}
}

func TestAnalyzeCapsAtFiveAndRejectsSingles(t *testing.T) {
	a := NewAnalyzer(failingCompleter(), Config{})

	// WHAT: one product is not a comparison.
	if _, err := a.Analyze(context.Background(), twoProducts()[:1]); err == nil {
		t.Fatalf("single product accepted")
	}

	// WHAT: more than five inputs are trimmed, not rejected.
	var many []Input
	for i := 0; i < 7; i++ {
		p := twoProducts()[0].Product
		p.Name = p.Name + strings.Repeat("I", i)
		many = append(many, Input{Product: p})
	}
	d, err := a.Analyze(context.Background(), many)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(d.Products) != MaxProducts {
		t.Errorf("products = %d, want %d", len(d.Products), MaxProducts)
	}
}

func TestSummaryTruncatedToWordLimit(t *testing.T) {
	// WHAT: a rambling model summary is cut at the word cap.
	long := strings.Repeat("word ", 400)
	a := NewAnalyzer(llm.CompleterFunc(func(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
		return long, nil
	}), Config{})
	d, err := a.Analyze(context.Background(), twoProducts())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if n := len(strings.Fields(d.Summary)); n > 200 {
		t.Errorf("summary has %d words", n)
	}
}
