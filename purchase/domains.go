package purchase

import (
	"net/url"
	"strings"
)

// NonCommerceDomains are hosts that never serve a buyable product page.
// Review-source URLs from these hosts are valuable for research but must
// never be handed to the user as a place to buy.
var NonCommerceDomains = []string{
	"reddit.com",
	"youtube.com",
	"youtu.be",
	"quora.com",
	"wikipedia.org",
	"facebook.com",
	"twitter.com",
	"x.com",
	"instagram.com",
	"tiktok.com",
	"pinterest.com",
	"medium.com",
	"blogspot.com",
	"wordpress.com",
	"stackexchange.com",
	"head-fi.org",
	"avsforum.com",
	"audiosciencereview.com",
	"rtings.com",
	"wirecutter.com",
	"nytimes.com",
	"consumerreports.org",
	"techradar.com",
	"tomsguide.com",
	"cnet.com",
	"theverge.com",
	"soundguys.com",
	"whathifi.com",
}

// IsNonCommerce reports whether the URL's host is on the blocklist.
// Subdomains match their parent entry.
func IsNonCommerce(rawURL string) bool {
	host := hostOf(rawURL)
	if host == "" {
		return true
	}
	for _, blocked := range NonCommerceDomains {
		if host == blocked || strings.HasSuffix(host, "."+blocked) {
			return true
		}
	}
	return false
}

// LooksLikeProductPage accepts only URLs plausibly pointing at a direct
// product page: a commerce host, with a path that is not a search,
// category, or discussion listing.
func LooksLikeProductPage(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}
	if IsNonCommerce(rawURL) {
		return false
	}
	path := strings.ToLower(u.Path)
	if path == "/s" || path == "/s/" {
		// Amazon-style search endpoint.
		return false
	}
	for _, frag := range []string{"/search", "/category", "/categories", "/browse", "/forum", "/thread", "/comments", "/tag/"} {
		if strings.Contains(path, frag) {
			return false
		}
	}
	if strings.Contains(strings.ToLower(u.RawQuery), "q=") && path == "/" {
		return false
	}
	return true
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
