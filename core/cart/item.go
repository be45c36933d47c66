// Package cart is the cart reconciliation engine: it owns the in-memory cart, mirrors it
// to the device cache while anonymous and to the remote cart rows once an identity is
// attached, and merges the two exactly once per sign-in.
package cart

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// LineItem is one entry of a cart or of an order snapshot.
type LineItem struct {
	ItemID              string          `json:"item_id"`
	Name                string          `json:"name"`
	UnitPrice           decimal.Decimal `json:"unit_price"`
	Quantity            int             `json:"quantity"`
	ImageURL            string          `json:"image_url,omitempty"`
	SpecialInstructions string          `json:"special_instructions,omitempty"`
	Customizations      []string        `json:"customizations,omitempty"`
}

// Key identifies a cart line: two lines are the same iff item, instructions and
// customizations (by value and order) all match.
type Key struct {
	ItemID              string
	SpecialInstructions string
	customizations      string // canonical JSON array
}

func NewKey(itemID, instructions string, customizations ...string) Key {
	return Key{
		ItemID:              itemID,
		SpecialInstructions: instructions,
		customizations:      CanonicalCustomizations(customizations),
	}
}

func (k Key) Customizations() []string {
	var c []string
	_ = json.Unmarshal([]byte(k.customizations), &c)
	if len(c) == 0 {
		return nil
	}
	return c
}

// CanonicalCustomizations is the storage form of customizations, also used as a match key.
// nil and empty both encode to "[]".
func CanonicalCustomizations(c []string) string {
	if len(c) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(c)
	return string(b)
}

// ParseCustomizations decodes CanonicalCustomizations output.
func ParseCustomizations(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var c []string
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return nil, err
	}
	if len(c) == 0 {
		return nil, nil
	}
	return c, nil
}

func (li LineItem) Key() Key {
	return NewKey(li.ItemID, li.SpecialInstructions, li.Customizations...)
}

// LineTotal is UnitPrice × Quantity.
func (li LineItem) LineTotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

func (li LineItem) clone() LineItem {
	if li.Customizations != nil {
		li.Customizations = append([]string(nil), li.Customizations...)
	}
	return li
}

// Clone deep-copies items. The result shares nothing with the input.
func Clone(items []LineItem) []LineItem {
	if items == nil {
		return nil
	}
	res := make([]LineItem, len(items))
	for i, li := range items {
		res[i] = li.clone()
	}
	return res
}

func indexOf(items []LineItem, key Key) int {
	for i := range items {
		if items[i].Key() == key {
			return i
		}
	}
	return -1
}

// addLine increments the line matching its key or appends it.
func addLine(items []LineItem, it LineItem) []LineItem {
	if i := indexOf(items, it.Key()); i >= 0 {
		items[i].Quantity += it.Quantity
		return items
	}
	return append(items, it.clone())
}

func removeLine(items []LineItem, key Key) []LineItem {
	res := items[:0]
	for _, li := range items {
		if li.Key() != key {
			res = append(res, li)
		}
	}
	return res
}

// Normalize folds duplicate keys together and drops lines with a non-positive quantity.
func Normalize(items []LineItem) []LineItem {
	var res []LineItem
	for _, li := range items {
		if li.Quantity <= 0 || li.ItemID == "" {
			continue
		}
		res = addLine(res, li)
	}
	return res
}
