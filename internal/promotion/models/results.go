package models

// Diagnostic explains how close a failed condition came to being satisfied.
// Leaf diagnostics carry quantities and the provisional allocation; combinator
// diagnostics carry Kind and the operand diagnostics.
type Diagnostic struct {
	Kind              string           `json:"kind,omitempty"`
	Operands          []*Diagnostic    `json:"operands,omitempty"`
	Value             float64          `json:"value"`
	CollectedQuantity int              `json:"collectedQuantity,omitempty"`
	PromoQuantity     int              `json:"promoQuantity,omitempty"`
	Threshold         float64          `json:"threshold,omitempty"`
	Type              string           `json:"type,omitempty"`
	Code              string           `json:"code,omitempty"`
	Items             []ItemAllocation `json:"items,omitempty"`
}

// Diagnostic leaf types.
const (
	DiagnosticProduct  = "PRODUCT"
	DiagnosticCategory = "CATEGORY"
	DiagnosticPeriod   = "PERIOD"
	DiagnosticUserType = "USER_TYPE"
	DiagnosticSubtotal = "SUBTOTAL"
	DiagnosticRule     = "RULE"
)

// ItemAllocation is a quantity of one cart line taken by a condition.
type ItemAllocation struct {
	ItemID        string `json:"itemId"`
	QuantityToUse int    `json:"quantityToUse"`
}

// FulfilledItem is the quantity of a cart line consumed by a satisfied promotion.
type FulfilledItem struct {
	ItemID          string `json:"itemId"`
	QuantityUsed    int    `json:"quantityUsed"`
	QuantityApplied int    `json:"quantityApplied,omitempty"`
}

// FulfilledPromotion is a satisfied promotion and the cart quantity it consumed.
type FulfilledPromotion struct {
	PromotionID string          `json:"id"`
	Items       []FulfilledItem `json:"items"`
}

// AlmostFulfilledPromotion is a promotion that failed but produced diagnostics.
type AlmostFulfilledPromotion struct {
	PromotionID string        `json:"id"`
	Diagnostics []*Diagnostic `json:"diagnostics"`
}
