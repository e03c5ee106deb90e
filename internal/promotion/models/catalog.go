package models

import "slices"

// Product is the catalog view of a product needed for category matching.
type Product struct {
	ID            string              `json:"id"`
	Title         string              `json:"title,omitempty"`
	Categories    []string            `json:"categories"`
	CategoryPaths map[string][]string `json:"categoryPaths,omitempty"`
}

// InCategory reports whether the product belongs to categoryID, either
// directly or through the ancestor path of one of its categories.
func (p Product) InCategory(categoryID string) bool {
	for _, c := range p.Categories {
		if c == categoryID {
			return true
		}
		if slices.Contains(p.CategoryPaths[c], categoryID) {
			return true
		}
	}
	return false
}

// Catalog maps product id to product for one evaluation.
type Catalog map[string]Product

// User carries the caller attributes conditions may test.
type User struct {
	Type string `json:"type,omitempty"`
}
