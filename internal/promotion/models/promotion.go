package models

import (
	"encoding/json"
	"time"
)

// ClassDefault is the only promotion class evaluated by the engine.
const ClassDefault = "default"

// Promotion is a stored promotion definition. If and Then hold the condition
// and discount trees in their JSON form.
type Promotion struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Class     string          `json:"class"`
	Active    bool            `json:"active"`
	Priority  int             `json:"priority"`
	If        json.RawMessage `json:"if"`
	Then      json.RawMessage `json:"then,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// EventType names a promotion change.
type EventType string

const (
	EventCreated EventType = "CREATE"
	EventUpdated EventType = "UPDATE"
)

// PromotionEvent is published whenever a promotion definition changes.
type PromotionEvent struct {
	Type       EventType `json:"type"`
	Promotion  Promotion `json:"promotion"`
	OccurredAt time.Time `json:"occurredAt"`
}

// EvaluateResult is the outcome of running every active promotion against a cart.
type EvaluateResult struct {
	Cart                  *Cart                      `json:"cart"`
	FulfilledPromos       []FulfilledPromotion       `json:"fulfilledPromos"`
	AlmostFulfilledPromos []AlmostFulfilledPromotion `json:"almostFulfilledPromos"`
}
