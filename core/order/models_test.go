package order

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/canteen/core/cart"
)

func TestStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusPending, StatusPreparing, true},
		{StatusPending, StatusReady, false},
		{StatusPending, StatusCancelled, true},
		{StatusPreparing, StatusReady, true},
		{StatusPreparing, StatusCompleted, false},
		{StatusReady, StatusDelivering, true},
		{StatusReady, StatusCompleted, true},
		{StatusReady, StatusPending, false},
		{StatusDelivering, StatusCompleted, true},
		{StatusDelivering, StatusCancelled, true},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{Status("lost"), StatusCancelled, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestDecodeSnapshot(t *testing.T) {
	line := cart.LineItem{ItemID: "i1", Name: "Soup", UnitPrice: decimal.RequireFromString("4.50"), Quantity: 2}

	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{name: "array", raw: `[{"item_id":"i1","name":"Soup","unit_price":"4.50","quantity":2}]`, want: 1},
		{name: "string holding an array", raw: `"[{\"item_id\":\"i1\",\"name\":\"Soup\",\"unit_price\":\"4.50\",\"quantity\":2}]"`, want: 1},
		{name: "empty array", raw: `[]`},
		{name: "null", raw: `null`},
		{name: "empty", raw: ``},
		{name: "whitespace", raw: "  \n"},
		{name: "number", raw: `42`, wantErr: true},
		{name: "object", raw: `{"item_id":"i1"}`, wantErr: true},
		{name: "string holding an object", raw: `"{\"item_id\":\"i1\"}"`, wantErr: true},
		{name: "string holding garbage", raw: `"[not json"`, wantErr: true},
		{name: "broken array", raw: `[{"item_id":`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeSnapshot([]byte(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), ErrMalformedSnapshot.Error())
				return
			}
			require.NoError(t, err)
			require.NotNil(t, got)
			require.Len(t, got, tt.want)
			if tt.want > 0 {
				assert.Equal(t, line.ItemID, got[0].ItemID)
				assert.Equal(t, line.Quantity, got[0].Quantity)
				assert.True(t, line.UnitPrice.Equal(got[0].UnitPrice))
			}
		})
	}
}

func TestSnapshot_ValueScan(t *testing.T) {
	var nilSnap Snapshot
	v, err := nilSnap.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), v)

	var s Snapshot
	require.NoError(t, s.Scan(`"[{\"item_id\":\"i1\",\"quantity\":1,\"unit_price\":\"1\"}]"`))
	require.Len(t, s, 1)
	assert.Equal(t, "i1", s[0].ItemID)

	assert.Error(t, s.Scan(42))
}

func TestSnapshot_ItemsIsACopy(t *testing.T) {
	s := Snapshot{{ItemID: "i1", Quantity: 1, Customizations: []string{"no onion"}}}
	items := s.Items()
	items[0].Quantity = 5
	items[0].Customizations[0] = "extra onion"
	assert.Equal(t, 1, s[0].Quantity)
	assert.Equal(t, "no onion", s[0].Customizations[0])
}

func TestCheckoutRequest_Validate(t *testing.T) {
	validate := validator.New()

	tests := []struct {
		name    string
		req     CheckoutRequest
		wantErr bool
	}{
		{name: "valid", req: CheckoutRequest{PaymentMethod: " Cash ", PickupTime: "12:30"}},
		{name: "card", req: CheckoutRequest{PaymentMethod: "card", PickupTime: "asap", SpecialInstructions: "ring twice"}},
		{name: "unknown method", req: CheckoutRequest{PaymentMethod: "bitcoin", PickupTime: "12:30"}, wantErr: true},
		{name: "missing method", req: CheckoutRequest{PickupTime: "12:30"}, wantErr: true},
		{name: "missing pickup", req: CheckoutRequest{PaymentMethod: "cash", PickupTime: "  "}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate(validate)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestQueryFilter_Clean(t *testing.T) {
	qf := QueryFilter{UserID: " u1 ", Statuses: []string{"Pending", "lost", " ready"}}
	qf.Clean()
	assert.Equal(t, "u1", qf.UserID)
	assert.Equal(t, []string{"pending", "ready"}, qf.Statuses)

	qf = QueryFilter{Statuses: []string{"lost"}}
	qf.Clean()
	assert.Nil(t, qf.Statuses)
	assert.True(t, qf.IsEmpty())
}
