package condition

import "slices"

// PromoUse attributes reserved quantity of a cart line to a promotion.
type PromoUse struct {
	PromotionID string `json:"promotion"`
	Quantity    int    `json:"quantityToUse"`
}

// Entry is the reservation state of one cart line.
type Entry struct {
	QuantityUsed int        `json:"quantityUsed"`
	Promos       []PromoUse `json:"promos"`
}

// Reservation maps cart item id to the quantity taken from it. The same type
// serves as the committed ledger of an evaluation run and as the working
// reservation of the promotion being evaluated.
type Reservation map[string]Entry

// Used returns the quantity of itemID already taken.
func (r Reservation) Used(itemID string) int {
	return r[itemID].QuantityUsed
}

// Fork returns an independent copy. Changes to the copy never reach r.
func (r Reservation) Fork() Reservation {
	out := make(Reservation, len(r))
	for id, e := range r {
		e.Promos = slices.Clone(e.Promos)
		out[id] = e
	}
	return out
}

// Adopt replaces r's entries with those of scratch, which must have been
// forked from r.
func (r Reservation) Adopt(scratch Reservation) {
	for id, e := range scratch {
		r[id] = e
	}
}

// Reserve takes quantity units of itemID for promotionID.
func (r Reservation) Reserve(itemID, promotionID string, quantity int) {
	e := r[itemID]
	e.QuantityUsed += quantity
	e.Promos = append(slices.Clip(e.Promos), PromoUse{PromotionID: promotionID, Quantity: quantity})
	r[itemID] = e
}

// Absorb adds every entry of other on top of r.
func (r Reservation) Absorb(other Reservation) {
	for id, o := range other {
		if o.QuantityUsed == 0 && len(o.Promos) == 0 {
			continue
		}
		e := r[id]
		e.QuantityUsed += o.QuantityUsed
		e.Promos = append(slices.Clip(e.Promos), o.Promos...)
		r[id] = e
	}
}

// Total is the quantity taken across all items.
func (r Reservation) Total() int {
	n := 0
	for _, e := range r {
		n += e.QuantityUsed
	}
	return n
}
