package models

import "fmt"

// MissingProductError is returned when a cart line references a product that
// the catalog lookup did not resolve.
type MissingProductError struct {
	ItemID    string
	ProductID string
}

func (e *MissingProductError) Error() string {
	return fmt.Sprintf("cart item %q references product %q missing from catalog", e.ItemID, e.ProductID)
}
