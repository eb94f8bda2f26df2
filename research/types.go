// Package research executes a search plan across community and expert
// sources, deduplicates and scores the raw results, and assembles the
// bounded text context handed to product extraction.
package research

import (
	"net/url"
	"strings"

	"github.com/hazyhaar/scout/strategy"
)

// SourceType tags where a raw source came from.
type SourceType string

const (
	SourceReddit SourceType = "reddit"
	SourceForum  SourceType = "forum"
	SourceExpert SourceType = "expert_review"
	SourceVideo  SourceType = "video"
	SourceOther  SourceType = "other"
)

// RawSource is one deduplicated search hit. Within a research run, URL is
// unique across all merged result sets.
type RawSource struct {
	Title   string     `json:"title"`
	URL     string     `json:"url"`
	Content string     `json:"content"`
	Type    SourceType `json:"sourceType"`
	Score   int        `json:"score"`
}

// Result is the output of one research run.
type Result struct {
	Query   string         `json:"query"`
	Plan    *strategy.Plan `json:"plan"`
	Sources []RawSource    `json:"sources"`
	Context string         `json:"context"`
}

// InferSourceType tags a URL by host.
func InferSourceType(rawURL string) SourceType {
	host := hostOf(rawURL)
	switch {
	case strings.Contains(host, "reddit.com"):
		return SourceReddit
	case strings.Contains(host, "youtube.com"), strings.Contains(host, "youtu.be"),
		strings.Contains(host, "vimeo.com"):
		return SourceVideo
	}
	for _, d := range strategy.ExpertReviewDomains {
		if strings.HasSuffix(host, d) {
			return SourceExpert
		}
	}
	for _, d := range strategy.CommunityDomains {
		if strings.HasSuffix(host, d) {
			return SourceForum
		}
	}
	if strings.Contains(host, "forum") || strings.Contains(rawURL, "/forum") {
		return SourceForum
	}
	return SourceOther
}

// NormalizeURL canonicalizes a URL for dedup: lowercased scheme and host,
// fragment dropped, trailing slash trimmed.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return strings.TrimSpace(rawURL)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	s := u.String()
	return strings.TrimSuffix(s, "/")
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
