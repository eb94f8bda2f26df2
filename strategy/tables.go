package strategy

// Category buckets a shopping query for source targeting. The tables below
// are the single owner of category → domain / phrase knowledge; other
// packages reference them by name instead of keeping private copies.
type Category string

const (
	CategoryAudio       Category = "audio"
	CategoryHomeTheater Category = "home_theater"
	CategoryComputing   Category = "computing"
	CategoryKitchen     Category = "kitchen"
	CategoryOutdoor     Category = "outdoor"
	CategoryFitness     Category = "fitness"
	CategoryGeneral     Category = "general"
)

// categoryKeywords maps a category to the query words that select it.
// First match wins, checked in declaration order of classifyOrder.
var categoryKeywords = map[Category][]string{
	CategoryAudio: {
		"headphone", "earbud", "earphone", "iem", "speaker", "soundbar",
		"dac", "amp", "turntable", "microphone", "audio",
	},
	CategoryHomeTheater: {
		"tv", "television", "projector", "home theater", "receiver", "oled", "qled",
	},
	CategoryComputing: {
		"laptop", "keyboard", "mouse", "monitor", "gpu", "cpu", "ssd",
		"router", "webcam", "desk", "chair",
	},
	CategoryKitchen: {
		"knife", "pan", "skillet", "blender", "espresso", "coffee", "grinder",
		"cookware", "dutch oven", "air fryer", "mixer",
	},
	CategoryOutdoor: {
		"tent", "backpack", "sleeping bag", "hiking", "camping", "bike",
		"kayak", "cooler", "headlamp",
	},
	CategoryFitness: {
		"treadmill", "dumbbell", "kettlebell", "rower", "yoga", "running shoe",
		"fitness", "smartwatch", "gym",
	},
}

// classifyOrder fixes the category check order so classification is
// deterministic when a query matches several categories.
var classifyOrder = []Category{
	CategoryAudio, CategoryHomeTheater, CategoryComputing,
	CategoryKitchen, CategoryOutdoor, CategoryFitness,
}

// categoryDomains lists the priority discussion/review domains per category.
// reddit.com is always present: general community coverage is mandatory.
var categoryDomains = map[Category][]string{
	CategoryAudio: {
		"reddit.com", "head-fi.org", "audiosciencereview.com",
		"rtings.com", "whathifi.com",
	},
	CategoryHomeTheater: {
		"reddit.com", "avsforum.com", "rtings.com", "hometheaterreview.com",
	},
	CategoryComputing: {
		"reddit.com", "tomshardware.com", "anandtech.com", "notebookcheck.net",
	},
	CategoryKitchen: {
		"reddit.com", "seriouseats.com", "americastestkitchen.com", "cheftalk.com",
	},
	CategoryOutdoor: {
		"reddit.com", "outdoorgearlab.com", "backpackinglight.com", "rei.com",
	},
	CategoryFitness: {
		"reddit.com", "garagegymreviews.com", "runnersworld.com",
	},
	CategoryGeneral: {
		"reddit.com", "wirecutter.com", "rtings.com",
	},
}

// categorySubreddits hints at the subreddits where enthusiasts discuss
// each category; used to phrase community-targeted queries.
var categorySubreddits = map[Category][]string{
	CategoryAudio:       {"headphones", "audiophile", "BudgetAudiophile"},
	CategoryHomeTheater: {"hometheater", "4kTV"},
	CategoryComputing:   {"buildapc", "laptops", "MechanicalKeyboards"},
	CategoryKitchen:     {"Cooking", "castiron", "espresso"},
	CategoryOutdoor:     {"CampingGear", "Ultralight"},
	CategoryFitness:     {"homegym", "running"},
	CategoryGeneral:     {"BuyItForLife", "goodvalue"},
}

// EndorsementPhrases are the literal phrases that signal a genuine
// recommendation rather than a mere mention. Shared with the research
// scorer (additive point system) and with query templating here.
var EndorsementPhrases = []string{
	"best",
	"buy it for life",
	"gold standard",
	"highly recommend",
	"worth it",
	"can't go wrong",
	"game changer",
	"holy grail",
	"hands down",
}

// ExpertReviewDomains are hosts whose editorial reviews earn a scoring
// bonus in the research stage.
var ExpertReviewDomains = []string{
	"wirecutter.com",
	"rtings.com",
	"techradar.com",
	"cnet.com",
	"tomsguide.com",
	"outdoorgearlab.com",
	"seriouseats.com",
	"whathifi.com",
	"tomshardware.com",
}

// CommunityDomains are hosts whose discussion threads earn the
// community-endorsement scoring bonus.
var CommunityDomains = []string{
	"reddit.com",
	"head-fi.org",
	"avsforum.com",
	"audiosciencereview.com",
	"backpackinglight.com",
	"cheftalk.com",
}

// Classify buckets a free-text query into a Category by keyword match.
func Classify(query string) Category {
	q := normalize(query)
	for _, cat := range classifyOrder {
		for _, kw := range categoryKeywords[cat] {
			if containsWord(q, kw) {
				return cat
			}
		}
	}
	return CategoryGeneral
}

// Domains returns the priority domain list for a category.
// The returned slice is a copy; callers may append freely.
func Domains(cat Category) []string {
	src, ok := categoryDomains[cat]
	if !ok {
		src = categoryDomains[CategoryGeneral]
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}
