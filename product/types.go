// Package product defines structured product candidates and the two model
// stages that produce and refine them: extraction from a research context
// and bounded-concurrency enrichment of sparse candidates.
package product

import (
	"strings"

	"github.com/hazyhaar/scout/research"
)

// EndorsementStrength is the qualitative confidence that a product is
// genuinely recommended by sources rather than merely mentioned.
type EndorsementStrength string

const (
	EndorsementWeak     EndorsementStrength = "weak"
	EndorsementModerate EndorsementStrength = "moderate"
	EndorsementStrong   EndorsementStrength = "strong"
)

// Product is a structured candidate extracted from research sources.
//
// QualityScore is query-agnostic: recomputed deterministically from the
// candidate's own evidence, stable across repeated searches for the same
// product. MatchScore is query-specific and recomputed per search. The
// two must never be conflated.
type Product struct {
	Name                string              `json:"name"`
	Brand               string              `json:"brand"`
	Category            string              `json:"category"`
	Description         string              `json:"description"`
	Pros                []string            `json:"pros"`
	Cons                []string            `json:"cons"`
	SourcesCount        int                 `json:"sourcesCount"`
	EndorsementStrength EndorsementStrength `json:"endorsementStrength"`
	EndorsementQuotes   []string            `json:"endorsementQuotes"`
	SourceTypes         []string            `json:"sourceTypes"`
	QualityScore        int                 `json:"qualityScore"` // 0–100, query-agnostic
	MatchScore          int                 `json:"matchScore"`   // 0–100, query-specific
	AffiliateURL        string              `json:"affiliateUrl,omitempty"`
	Retailer            string              `json:"retailer,omitempty"`
	ImageURL            string              `json:"imageUrl,omitempty"`
}

// Key returns the normalized brand+name string used to key enrichment
// results and the product cache.
func Key(brand, name string) string {
	k := strings.ToLower(strings.TrimSpace(brand) + " " + strings.TrimSpace(name))
	return strings.Join(strings.Fields(k), " ")
}

// Enrichment holds the extra raw sources and the bounded text digest
// gathered for one candidate. The digest is model input only; it is never
// shown to the end user.
type Enrichment struct {
	Key     string               `json:"key"`
	Sources []research.RawSource `json:"sources"`
	Digest  string               `json:"digest"`
}
