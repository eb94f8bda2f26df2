package purchase

import (
	"regexp"
	"strconv"
	"strings"
)

// Plausible consumer-product price range. Values outside it are almost
// always shipping costs, per-month figures, or order totals picked up by
// accident.
const (
	minPlausiblePrice = 5.0
	maxPlausiblePrice = 3000.0
)

var (
	// Prices adjacent to a buy/price label. Highest confidence tier.
	labeledPriceRE = regexp.MustCompile(`(?i)(?:price|buy|now|sale|our price|only)[:\s]*\$\s?(\d{1,4}(?:,\d{3})?(?:\.\d{2})?)`)

	// Retail-formatted amounts: $X.99, $X.95, $X.00 endings. Retailers
	// overwhelmingly price this way, which filters out totals and fees.
	retailPriceRE = regexp.MustCompile(`\$\s?(\d{1,4}(?:,\d{3})?\.(?:99|95|98|00|49|50))`)

	// Any dollar amount at all. Last resort.
	anyPriceRE = regexp.MustCompile(`\$\s?(\d{1,4}(?:,\d{3})?(?:\.\d{2})?)`)
)

// ExtractPrice pulls the most likely product price from page text. It
// prefers labeled prices, then retail-formatted amounts, then any dollar
// figure; within a tier the most frequently repeated plausible amount
// wins, since a product's own price tends to recur (header, cart button,
// structured data) while noise amounts appear once.
func ExtractPrice(text string) (float64, bool) {
	for _, re := range []*regexp.Regexp{labeledPriceRE, retailPriceRE, anyPriceRE} {
		if price, ok := bestMatch(re, text); ok {
			return price, true
		}
	}
	return 0, false
}

func bestMatch(re *regexp.Regexp, text string) (float64, bool) {
	counts := make(map[float64]int)
	var order []float64
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil || v < minPlausiblePrice || v > maxPlausiblePrice {
			continue
		}
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}
	if len(order) == 0 {
		return 0, false
	}
	best := order[0]
	for _, v := range order[1:] {
		if counts[v] > counts[best] {
			best = v
		}
	}
	return best, true
}
