package catalog

// DefaultProducts is the demo catalog seeded into empty stores.
func DefaultProducts() []Product {
	return []Product{
		{ID: "p-001", Name: "Linen Summer Suit", Category: "suits", Price: 189, Stock: 6,
			Tags: []string{"#Wedding", "#SummerWear", "#Formal", "#Classic"}, ImageURL: "/images/linen-suit.jpg"},
		{ID: "p-002", Name: "Floral Midi Dress", Category: "dresses", Price: 129, Stock: 10,
			Tags: []string{"#Wedding", "#SummerWear", "#SpringWear", "#Boho"}, ImageURL: "/images/floral-midi.jpg"},
		{ID: "p-003", Name: "Silk Cocktail Dress", Category: "dresses", Price: 245, Stock: 3,
			Tags: []string{"#Party", "#DateNight", "#Formal"}, ImageURL: "/images/silk-cocktail.jpg"},
		{ID: "p-004", Name: "Navy Wool Blazer", Category: "blazers", Price: 210, Stock: 4,
			Tags: []string{"#Business", "#Formal", "#FallWear", "#Classic"}, ImageURL: "/images/navy-blazer.jpg"},
		{ID: "p-005", Name: "Cotton Oxford Shirt", Category: "shirts", Price: 59, Stock: 25,
			Tags: []string{"#Business", "#Casual", "#Classic", "#BudgetFriendly"}, ImageURL: "/images/oxford-shirt.jpg"},
		{ID: "p-006", Name: "Chino Shorts", Category: "shorts", Price: 39, Stock: 30,
			Tags: []string{"#Casual", "#SummerWear", "#Vacation", "#BudgetFriendly"}, ImageURL: "/images/chino-shorts.jpg"},
		{ID: "p-007", Name: "Leather Derby Shoes", Category: "shoes", Price: 149, Stock: 8,
			Tags: []string{"#Wedding", "#Business", "#Formal"}, ImageURL: "/images/derby-shoes.jpg"},
		{ID: "p-008", Name: "Espadrille Sandals", Category: "shoes", Price: 49, Stock: 14,
			Tags: []string{"#SummerWear", "#Vacation", "#Casual", "#BudgetFriendly"}, ImageURL: "/images/espadrilles.jpg"},
		{ID: "p-009", Name: "Cashmere Overcoat", Category: "outerwear", Price: 520, Stock: 2,
			Tags: []string{"#WinterWear", "#Formal", "#Premium", "#Classic"}, ImageURL: "/images/cashmere-coat.jpg"},
		{ID: "p-010", Name: "Puffer Jacket", Category: "outerwear", Price: 165, Stock: 9,
			Tags: []string{"#WinterWear", "#Casual", "#Sporty"}, ImageURL: "/images/puffer.jpg"},
		{ID: "p-011", Name: "Performance Running Set", Category: "activewear", Price: 89, Stock: 12,
			Tags: []string{"#Active", "#Sporty", "#SummerWear"}, ImageURL: "/images/running-set.jpg"},
		{ID: "p-012", Name: "Vintage Denim Jacket", Category: "outerwear", Price: 95, Stock: 0,
			Tags: []string{"#Casual", "#Vintage", "#SpringWear", "#FallWear"}, ImageURL: "/images/denim-jacket.jpg"},
		{ID: "p-013", Name: "Minimalist Slip Dress", Category: "dresses", Price: 110, Stock: 7,
			Tags: []string{"#DateNight", "#Minimalist", "#SummerWear"}, ImageURL: "/images/slip-dress.jpg"},
		{ID: "p-014", Name: "Pleated Wide-Leg Trousers", Category: "trousers", Price: 98, Stock: 11,
			Tags: []string{"#Business", "#Minimalist", "#SpringWear"}, ImageURL: "/images/wide-leg.jpg"},
		{ID: "p-015", Name: "Straw Fedora", Category: "accessories", Price: 35, Stock: 20,
			Tags: []string{"#SummerWear", "#Vacation", "#Wedding", "#BudgetFriendly"}, ImageURL: "/images/fedora.jpg"},
		{ID: "p-016", Name: "Silk Pocket Square", Category: "accessories", Price: 25, Stock: 40,
			Tags: []string{"#Wedding", "#Formal", "#BudgetFriendly"}, ImageURL: "/images/pocket-square.jpg"},
	}
}
