package models

import (
	"encoding/json"
	"fmt"
	"strings"

	dErrors "promotions/pkg/domain-errors"
)

// EvaluateRequest asks for the promotions applicable to a cart.
type EvaluateRequest struct {
	Cart Cart  `json:"cart"`
	User *User `json:"user,omitempty"`
}

// Normalize trims identifiers.
func (r *EvaluateRequest) Normalize() {
	for i := range r.Cart.Items {
		r.Cart.Items[i].ID = strings.TrimSpace(r.Cart.Items[i].ID)
		r.Cart.Items[i].ProductID = strings.TrimSpace(r.Cart.Items[i].ProductID)
	}
	if r.User != nil {
		r.User.Type = strings.TrimSpace(r.User.Type)
	}
}

// Validate checks the cart lines.
func (r *EvaluateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	seen := make(map[string]struct{}, len(r.Cart.Items))
	for i, item := range r.Cart.Items {
		if item.ID == "" {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("cart.items[%d].id is required", i))
		}
		if _, dup := seen[item.ID]; dup {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("cart.items[%d].id %q is duplicated", i, item.ID))
		}
		seen[item.ID] = struct{}{}
		if item.ProductID == "" {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("cart.items[%d].productId is required", i))
		}
		if item.Quantity <= 0 {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("cart.items[%d].quantity must be positive", i))
		}
		if item.Price.IsNegative() {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("cart.items[%d].price must not be negative", i))
		}
	}
	return nil
}

// CreatePromotionRequest is the body of a promotion creation.
type CreatePromotionRequest struct {
	Title    string          `json:"title"`
	Class    string          `json:"class"`
	Active   *bool           `json:"active,omitempty"`
	Priority int             `json:"priority"`
	If       json.RawMessage `json:"if"`
	Then     json.RawMessage `json:"then,omitempty"`
}

// Normalize trims text fields and fills the default class.
func (r *CreatePromotionRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Class = strings.TrimSpace(r.Class)
	if r.Class == "" {
		r.Class = ClassDefault
	}
}

// Validate checks required fields. Tree contents are checked by the service.
func (r *CreatePromotionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if len(r.Title) > 200 {
		return dErrors.New(dErrors.CodeValidation, "title must be at most 200 characters")
	}
	if r.Class != ClassDefault {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unsupported promotion class %q", r.Class))
	}
	if len(r.If) == 0 || string(r.If) == "null" {
		return dErrors.New(dErrors.CodeValidation, "if is required")
	}
	return nil
}

// IsActive reports the requested active flag, defaulting to true.
func (r *CreatePromotionRequest) IsActive() bool {
	return r.Active == nil || *r.Active
}
