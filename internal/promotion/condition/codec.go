package condition

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// thresholdKey sits next to the tag key on combinator nodes.
const thresholdKey = "threshold"

type quantityBody struct {
	ID               string  `json:"id"`
	Quantity         int     `json:"quantity"`
	Threshold        float64 `json:"threshold"`
	LowestPriceFirst bool    `json:"lowestPriceFirst"`
	LowestPrice      bool    `json:"lowestPrice"`
}

type periodBody struct {
	From  timestamp `json:"from"`
	Until timestamp `json:"until"`
}

// periodLayouts are tried in order. The second accepts offsets without a
// colon, e.g. 2016-09-21T14:00:00.000+0000.
var periodLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
}

type timestamp time.Time

func (t *timestamp) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, layout := range periodLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			*t = timestamp(parsed)
			return nil
		}
	}
	return fmt.Errorf("unrecognized time %q", raw)
}

// Decode parses the JSON form of a condition tree. Every node is an object
// with a single tag key, e.g. {"product": {"id": "0001", "quantity": 3}} or
// {"and": [...], "threshold": 0.5}. Unrecognized tags decode to Extension.
func Decode(raw json.RawMessage) (Node, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedNode, err)
	}
	tag, body, err := singleTag(fields)
	if err != nil {
		return nil, err
	}

	switch tag {
	case TagAnd, TagAll:
		operands, threshold, err := decodeCombinator(tag, body, fields)
		if err != nil {
			return nil, err
		}
		return And{Operands: operands, Threshold: threshold}, nil
	case TagAny:
		operands, threshold, err := decodeCombinator(tag, body, fields)
		if err != nil {
			return nil, err
		}
		return Any{Operands: operands, Threshold: threshold}, nil
	case TagProduct:
		var b quantityBody
		if err := unmarshalBody(tag, body, &b); err != nil {
			return nil, err
		}
		return Product{ID: b.ID, Quantity: b.Quantity, Threshold: b.Threshold}, nil
	case TagCategory, TagCollection:
		var b quantityBody
		if err := unmarshalBody(tag, body, &b); err != nil {
			return nil, err
		}
		return Category{
			ID:               b.ID,
			Quantity:         b.Quantity,
			Threshold:        b.Threshold,
			LowestPriceFirst: b.LowestPriceFirst || b.LowestPrice,
		}, nil
	case TagPeriod:
		var b periodBody
		if err := unmarshalBody(tag, body, &b); err != nil {
			return nil, err
		}
		return Period{From: time.Time(b.From), Until: time.Time(b.Until)}, nil
	case TagUserType, TagCustomerType:
		var v string
		if err := unmarshalBody(tag, body, &v); err != nil {
			return nil, err
		}
		return UserType{Value: v}, nil
	case TagSubtotalGte:
		var d decimal.Decimal
		if err := unmarshalBody(tag, body, &d); err != nil {
			return nil, err
		}
		return SubtotalGte{Threshold: d}, nil
	default:
		return Extension{Name: tag, Args: body}, nil
	}
}

func singleTag(fields map[string]json.RawMessage) (string, json.RawMessage, error) {
	tags := make([]string, 0, len(fields))
	for k := range fields {
		if k == thresholdKey {
			continue
		}
		tags = append(tags, k)
	}
	switch len(tags) {
	case 1:
		return tags[0], fields[tags[0]], nil
	case 0:
		return "", nil, fmt.Errorf("%w: node has no operator tag", ErrMalformedNode)
	default:
		sort.Strings(tags)
		return "", nil, fmt.Errorf("%w: node has several operator tags %v", ErrMalformedNode, tags)
	}
}

func decodeCombinator(tag string, body json.RawMessage, fields map[string]json.RawMessage) ([]Node, float64, error) {
	var raws []json.RawMessage
	if err := unmarshalBody(tag, body, &raws); err != nil {
		return nil, 0, err
	}
	operands := make([]Node, 0, len(raws))
	for i, raw := range raws {
		n, err := Decode(raw)
		if err != nil {
			return nil, 0, fmt.Errorf("%s[%d]: %w", tag, i, err)
		}
		operands = append(operands, n)
	}

	var threshold float64
	if raw, ok := fields[thresholdKey]; ok {
		if err := json.Unmarshal(raw, &threshold); err != nil {
			return nil, 0, fmt.Errorf("%w: %s threshold: %v", ErrMalformedNode, tag, err)
		}
	}
	return operands, threshold, nil
}

func unmarshalBody(tag string, body json.RawMessage, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedNode, tag, err)
	}
	return nil
}
