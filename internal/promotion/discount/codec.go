package discount

import (
	"encoding/json"
	"fmt"
	"sort"
)

type targetBody struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
	Discount Rate   `json:"discount"`
}

// Decode parses the JSON form of a discount tree, e.g.
// {"product": {"id": "0001", "quantity": 1, "discount": {"rate": 100, "isPercentage": true}}}.
func Decode(raw json.RawMessage) (Node, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedNode, err)
	}
	if len(fields) != 1 {
		tags := make([]string, 0, len(fields))
		for k := range fields {
			tags = append(tags, k)
		}
		sort.Strings(tags)
		return nil, fmt.Errorf("%w: node must have exactly one operator tag, got %v", ErrMalformedNode, tags)
	}

	var (
		tag  string
		body json.RawMessage
	)
	for k, v := range fields {
		tag, body = k, v
	}

	switch tag {
	case TagAll, TagAnd:
		operands, err := decodeOperands(tag, body)
		if err != nil {
			return nil, err
		}
		return All{Operands: operands}, nil
	case TagAny:
		operands, err := decodeOperands(tag, body)
		if err != nil {
			return nil, err
		}
		return Any{Operands: operands}, nil
	case TagProduct:
		b, err := decodeTarget(tag, body)
		if err != nil {
			return nil, err
		}
		return Product{ID: b.ID, Quantity: b.Quantity, Discount: b.Discount}, nil
	case TagCategory, TagCollection:
		b, err := decodeTarget(tag, body)
		if err != nil {
			return nil, err
		}
		return Category{ID: b.ID, Quantity: b.Quantity, Discount: b.Discount}, nil
	default:
		return Extension{Name: tag, Args: body}, nil
	}
}

func decodeOperands(tag string, body json.RawMessage) ([]Node, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedNode, tag, err)
	}
	operands := make([]Node, 0, len(raws))
	for i, raw := range raws {
		n, err := Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", tag, i, err)
		}
		operands = append(operands, n)
	}
	return operands, nil
}

func decodeTarget(tag string, body json.RawMessage) (targetBody, error) {
	var b targetBody
	if err := json.Unmarshal(body, &b); err != nil {
		return b, fmt.Errorf("%w: %s: %v", ErrMalformedNode, tag, err)
	}
	if b.Discount.IsPercentage && b.Discount.IsFixedPrice {
		return b, fmt.Errorf("%w: %s: discount cannot be both percentage and fixed price", ErrMalformedNode, tag)
	}
	return b, nil
}
