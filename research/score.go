package research

import (
	"sort"
	"strings"

	"github.com/hazyhaar/scout/strategy"
)

// Additive scoring points. Keyed on literal endorsement phrases plus host
// bonuses; the constants are tuning values, not derived.
const (
	phrasePoints    = 2 // per distinct endorsement phrase present
	communityPoints = 3 // discussion-platform URL
	expertPoints    = 4 // known expert-review domain
)

// ScoreSource computes the endorsement-signal score for one source.
func ScoreSource(s *RawSource) int {
	text := strings.ToLower(s.Title + " " + s.Content)

	score := 0
	for _, phrase := range strategy.EndorsementPhrases {
		if strings.Contains(text, phrase) {
			score += phrasePoints
		}
	}

	switch s.Type {
	case SourceReddit, SourceForum:
		score += communityPoints
	case SourceExpert:
		score += expertPoints
	}
	return score
}

// rankSources scores every source, sorts descending (stable, so merge
// order breaks ties), and truncates to maxSources.
func rankSources(sources []RawSource, maxSources int) []RawSource {
	for i := range sources {
		sources[i].Score = ScoreSource(&sources[i])
	}
	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].Score > sources[j].Score
	})
	if len(sources) > maxSources {
		sources = sources[:maxSources]
	}
	return sources
}
