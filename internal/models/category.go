package models

type Category struct {
	CategoryID string `json:"category_id"`
	Name       string `json:"name"`
}

const DefaultCategoryID = "general"

// DefaultCategories is the fixed taxonomy; General is the fallback.
var DefaultCategories = []Category{
	{CategoryID: "safety", Name: "Safety"},
	{CategoryID: "technology", Name: "Technology"},
	{CategoryID: "science", Name: "Science"},
	{CategoryID: "business", Name: "Business"},
	{CategoryID: "health", Name: "Health"},
	{CategoryID: DefaultCategoryID, Name: "General"},
}

func DefaultCategory() Category {
	for _, c := range DefaultCategories {
		if c.CategoryID == DefaultCategoryID {
			return c
		}
	}
	return Category{CategoryID: DefaultCategoryID, Name: "General"}
}

// LookupCategory finds a taxonomy entry by id.
func LookupCategory(id string) (Category, bool) {
	for _, c := range DefaultCategories {
		if c.CategoryID == id {
			return c, true
		}
	}
	return Category{}, false
}
