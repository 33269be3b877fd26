package services

import "github.com/zatekoja/knowledgeanalytics/internal/domain/entities"

// Keyword tables for the knowledge categorizer. Matching is plain substring
// containment on lower-cased text, so every entry is chosen not to occur inside
// common words of another category ("tea" would match "steak", "rice" would
// match "price").

type categoryKeywords struct {
	primary   []string
	secondary []string
}

const (
	primaryKeywordWeight   = 2.0
	secondaryKeywordWeight = 1.0
)

// indexed by KnowledgeCategory.Index()
var knowledgeKeywords = [entities.NumCategories]categoryKeywords{
	// food
	{
		primary: []string{
			"dish", "appetizer", "entree", "dessert", "ingredient", "allergen",
			"sauce", "steak", "ribeye", "chicken", "beef", "pork", "lamb", "duck",
			"fish", "salmon", "seafood", "pasta", "salad", "soup", "vegetarian",
			"vegan", "gluten", "grilled", "fried", "roasted", "braised",
		},
		secondary: []string{
			"plate", "portion", "kitchen", "chef", "recipe", "flavor", "taste",
			"fresh", "bread", "cheese", "butter", "cream", "egg", "potato",
			"mushroom", "tomato", "onion", "garlic", "herb",
		},
	},
	// beverage
	{
		primary: []string{
			"cocktail", "drink", "beverage", "coffee", "espresso", "latte",
			"cappuccino", "beer", "lager", "spirits", "liquor", "vodka", "whiskey",
			"tequila", "bourbon", "mojito", "margarita", "martini", "sangria",
			"smoothie", "juice", "soda", "mocktail",
		},
		secondary: []string{
			"pour", "mixer", "syrup", "tonic", "bartender", "shaker", "muddle",
			"brewed", "glass",
		},
	},
	// wine
	{
		primary: []string{
			"wine", "vintage", "varietal", "sommelier", "cabernet", "merlot",
			"pinot", "chardonnay", "sauvignon", "riesling", "malbec", "syrah",
			"shiraz", "zinfandel", "prosecco", "champagne", "rosé", "bordeaux",
			"burgundy", "chianti", "rioja", "tannin",
		},
		secondary: []string{
			"red wine", "white wine", "bottle", "cork", "decant", "acidity",
			"bouquet", "grape", "cellar", "pairing", "pairs",
		},
	},
	// procedures
	{
		primary: []string{
			"procedure", "policy", "protocol", "safety", "sanitation", "sanitize",
			"hygiene", "health code", "temperature log", "checklist", "emergency",
			"uniform", "complaint", "reservation", "handwashing",
			"cross-contamination", "standard operating", "opening", "closing",
		},
		secondary: []string{
			"step", "manager", "shift", "report", "staff", "employee", "guest",
			"greeting", "order", "clean", "station", "training",
		},
	},
}

// Override phrase lists, evaluated in this order.
var (
	winePairingPhrases = []string{
		"wine pair", "which wine", "what wine", "wine goes with", "wine go with",
		"wine to pair", "recommend a wine", "wine recommendation", "wine selection",
	}

	cocktailPrepPhrases = []string{
		"cocktail", "how to make", "shake", "garnish", "muddle", "mocktail",
		"sangria", "mojito", "margarita", "martini", "old fashioned", "negroni",
		"spritz", "daiquiri", "cosmopolitan", "mimosa", "bellini", "manhattan",
	}

	strongFoodIndicators = []string{
		"steak", "ribeye", "chicken", "beef", "pork", "lamb", "duck", "salmon",
		"fish", "shrimp", "lobster", "burger", "pasta", "risotto", "confit",
		"grilled", "roasted", "braised", "fried", "seared", "dry-aged",
		"medium rare",
	}

	wineAsIngredientPhrases = []string{
		"wine jus", "wine reduction", "wine sauce", "cooked in wine",
		"braised in wine", "wine-braised", "deglazed with wine", "poached in wine",
		"wine marinade", "wine glaze",
	}

	foodPrepPhrases = []string{
		"how long", "what temperature", "ingredients in", "allergens in",
		"contains", "cooking time",
	}

	beveragePrepPhrases = []string{
		"recipe for cocktail", "serve in glass", "served in a glass", "serve in a glass",
	}
)

// Context hint terms.
var (
	beverageMenuTerms = []string{"drink", "beverage", "cocktail", "coffee", "beer", "spirit", "juice"}
	procedureSOPTerms = []string{"safety", "procedure", "protocol", "policy", "hygiene", "sanitation"}
	beverageTagTerms  = []string{"coffee", "drink"}
)

// Override and context weights.
const (
	winePairingBoost      = 4.0
	cocktailPrepBoost     = 4.0
	strongFoodBoost       = 3.0
	wineIngredientPenalty = 2.0
	foodPrepBoost         = 2.0
	wineMenuBoost         = 2.0
	beverageMenuBoost     = 1.0
	foodMenuBoost         = 1.0
	procedureSOPBoost     = 2.0
	tagNudge              = 0.5
)
