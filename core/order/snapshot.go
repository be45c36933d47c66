package order

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/trezcool/canteen/core/cart"
)

var ErrMalformedSnapshot = errors.New("malformed item snapshot")

// Snapshot is the by-value copy of the cart lines an order was placed with.
// It is stored as a JSON array; older rows hold the array serialized inside a JSON string.
type Snapshot []cart.LineItem

// DecodeSnapshot accepts either a JSON array of line items or a JSON string holding one.
func DecodeSnapshot(raw []byte) (Snapshot, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Snapshot{}, nil
	}

	switch raw[0] {
	case '"':
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, errors.Wrap(ErrMalformedSnapshot, err.Error())
		}
		inner = string(bytes.TrimSpace([]byte(inner)))
		if inner == "" || inner[0] != '[' {
			return nil, ErrMalformedSnapshot
		}
		return decodeArray([]byte(inner))
	case '[':
		return decodeArray(raw)
	}
	return nil, ErrMalformedSnapshot
}

func decodeArray(raw []byte) (Snapshot, error) {
	var items []cart.LineItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, errors.Wrap(ErrMalformedSnapshot, err.Error())
	}
	if items == nil {
		items = []cart.LineItem{}
	}
	return items, nil
}

func (s *Snapshot) UnmarshalJSON(data []byte) error {
	items, err := DecodeSnapshot(data)
	if err != nil {
		return err
	}
	*s = items
	return nil
}

// Value implements driver.Valuer.
func (s Snapshot) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	b, err := json.Marshal([]cart.LineItem(s))
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Scan implements sql.Scanner.
func (s *Snapshot) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.Errorf("order.Snapshot: cannot scan %T", src)
	}
	items, err := DecodeSnapshot(raw)
	if err != nil {
		return err
	}
	*s = items
	return nil
}

// Items returns a copy of the snapshot lines.
func (s Snapshot) Items() []cart.LineItem {
	return cart.Clone(s)
}
