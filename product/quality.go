package product

import "github.com/hazyhaar/scout/research"

// Per-source-type credibility weights. Expert editorial reviews weigh the
// most, anonymous forum posts the least.
var sourceCredibility = map[research.SourceType]float64{
	research.SourceExpert: 0.95,
	research.SourceVideo:  0.70,
	research.SourceReddit: 0.60,
	research.SourceForum:  0.55,
	research.SourceOther:  0.50,
}

// ComputeQuality derives the query-agnostic quality score from a
// candidate's own evidence: pros/cons balance, source credibility, and
// source volume. Deterministic: identical input always yields the same
// score, which makes the value cacheable across searches.
//
// Formula: base 50, sentiment (pros/cons balance) contributes ±30,
// average source credibility up to +10, source volume up to +10.
func ComputeQuality(p *Product) int {
	pros, cons := len(p.Pros), len(p.Cons)
	sentiment := 0.0
	if pros+cons > 0 {
		sentiment = float64(pros-cons) / float64(pros+cons)
	}

	credSum, credN := 0.0, 0
	for _, st := range p.SourceTypes {
		if w, ok := sourceCredibility[research.SourceType(st)]; ok {
			credSum += w
			credN++
		}
	}
	avgCred := 0.5
	if credN > 0 {
		avgCred = credSum / float64(credN)
	}

	volume := float64(p.SourcesCount) / 15.0
	if volume > 1 {
		volume = 1
	}

	score := 50.0 + sentiment*30 + avgCred*10 + volume*10
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return int(score)
}
