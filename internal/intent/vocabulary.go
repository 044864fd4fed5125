package intent

// keyword maps a phrase to the canonical value it implies.
type keyword struct {
	phrase string
	value  string
}

var occasions = []keyword{
	{"wedding", "wedding"}, {"bridesmaid", "wedding"}, {"groomsman", "wedding"}, {"engagement", "wedding"},
	{"party", "party"}, {"cocktail", "party"}, {"birthday", "party"}, {"gala", "party"}, {"prom", "party"},
	{"interview", "business"}, {"office", "business"}, {"work", "business"}, {"meeting", "business"},
	{"conference", "business"}, {"business", "business"},
	{"date", "date"}, {"date night", "date"}, {"anniversary", "date"}, {"dinner", "date"},
	{"vacation", "vacation"}, {"holiday", "vacation"}, {"beach", "vacation"}, {"trip", "vacation"},
	{"travel", "vacation"}, {"cruise", "vacation"},
	{"gym", "active"}, {"workout", "active"}, {"running", "active"}, {"hiking", "active"}, {"yoga", "active"},
}

var seasons = []keyword{
	{"summer", "summer"}, {"hot", "summer"}, {"warm weather", "summer"},
	{"winter", "winter"}, {"cold", "winter"}, {"snow", "winter"},
	{"spring", "spring"},
	{"fall", "fall"}, {"autumn", "fall"},
}

var styles = []keyword{
	{"formal", "formal"}, {"elegant", "formal"}, {"black tie", "formal"}, {"suit", "formal"}, {"dressy", "formal"},
	{"casual", "casual"}, {"relaxed", "casual"}, {"laid back", "casual"}, {"everyday", "casual"},
	{"boho", "boho"}, {"bohemian", "boho"},
	{"minimalist", "minimalist"}, {"minimal", "minimalist"}, {"simple", "minimalist"}, {"clean", "minimalist"},
	{"vintage", "vintage"}, {"retro", "vintage"},
	{"sporty", "sporty"}, {"athletic", "sporty"}, {"athleisure", "sporty"},
	{"classic", "classic"}, {"timeless", "classic"},
}

var urgencyPhrases = []string{
	"urgent", "urgently", "asap", "today", "tonight", "tomorrow", "this weekend", "right away",
	"quickly", "last minute", "in a hurry", "rush",
}

var preferenceWords = []string{
	"black", "white", "navy", "blue", "red", "green", "pink", "beige", "grey", "gray", "brown", "yellow",
	"linen", "cotton", "silk", "wool", "cashmere", "leather", "denim", "floral", "striped",
	"slim", "loose", "oversized",
}

var occasionTags = map[string]string{
	"wedding":  "#Wedding",
	"party":    "#Party",
	"business": "#Business",
	"date":     "#DateNight",
	"vacation": "#Vacation",
	"active":   "#Active",
}

var seasonTags = map[string]string{
	"summer": "#SummerWear",
	"winter": "#WinterWear",
	"spring": "#SpringWear",
	"fall":   "#FallWear",
}

var styleTags = map[string]string{
	"formal":     "#Formal",
	"casual":     "#Casual",
	"boho":       "#Boho",
	"minimalist": "#Minimalist",
	"vintage":    "#Vintage",
	"sporty":     "#Sporty",
	"classic":    "#Classic",
}

const (
	TagUrgent         = "#Urgent"
	TagBudgetFriendly = "#BudgetFriendly"
	TagPremium        = "#Premium"

	UrgencyHigh = "high"

	budgetFriendlyMax = 100
	premiumMin        = 500
)
