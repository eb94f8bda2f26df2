package research

import (
	"fmt"
	"strings"
)

// ContextConfig bounds the extraction context.
type ContextConfig struct {
	// ExcerptChars caps each source's content excerpt. Default: 2000.
	ExcerptChars int
	// MaxSources caps how many sources the context includes. Default: 20.
	MaxSources int
}

func (c *ContextConfig) defaults() {
	if c.ExcerptChars <= 0 {
		c.ExcerptChars = 2000
	}
	if c.MaxSources <= 0 {
		c.MaxSources = 20
	}
}

// extractionInstructions steer the model toward corroborated endorsements.
// Appended verbatim to every research context.
const extractionInstructions = `ANALYSIS INSTRUCTIONS:
- Prefer products that are endorsed by multiple independent sources over single mentions.
- Weigh strong endorsement language ("best", "buy it for life", "gold standard") above neutral mentions.
- Quality over quantity: 3-5 high-confidence candidates beat 7 padded ones.
- Note which source types (reddit, forum, expert_review, video) support each product.
- Record short direct quotes that show why a product is recommended.`

// BuildContext assembles the bounded text block fed to extraction: the
// user query, one excerpt per source (title, inferred type tag, URL,
// truncated content), and the fixed instruction block. Total size is
// bounded regardless of how verbose individual sources are.
func BuildContext(userQuery string, sources []RawSource, cfg ContextConfig) string {
	cfg.defaults()

	if len(sources) > cfg.MaxSources {
		sources = sources[:cfg.MaxSources]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "USER QUERY: %s\n\n", userQuery)
	fmt.Fprintf(&sb, "SOURCES (%d):\n\n", len(sources))

	for i, src := range sources {
		excerpt := src.Content
		if len(excerpt) > cfg.ExcerptChars {
			excerpt = excerpt[:cfg.ExcerptChars] + "..."
		}
		fmt.Fprintf(&sb, "--- Source %d [%s] ---\n%s\n%s\n%s\n\n",
			i+1, src.Type, src.Title, src.URL, excerpt)
	}

	sb.WriteString(extractionInstructions)
	return sb.String()
}
