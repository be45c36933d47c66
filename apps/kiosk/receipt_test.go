package main

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/cart"
	"github.com/trezcool/canteen/core/order"
)

func Test_newReceiptPrinter(t *testing.T) {
	tests := []struct {
		name    string
		conf    core.KioskConfig
		wantErr bool
	}{
		{name: "valid", conf: core.KioskConfig{Currency: "USD", Language: "en"}},
		{name: "french", conf: core.KioskConfig{Currency: "EUR", Language: "fr"}},
		{name: "unknown currency", conf: core.KioskConfig{Currency: "XYZW", Language: "en"}, wantErr: true},
		{name: "bad language", conf: core.KioskConfig{Currency: "USD", Language: "not a tag"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := testConfWithKiosk(tt.conf)
			_, err := newReceiptPrinter(conf)
			assert.Equal(t, tt.wantErr, err != nil, "%v", err)
		})
	}
}

func testConfWithKiosk(kc core.KioskConfig) *core.Config {
	conf := kioskConfig()
	conf.Kiosk = kc
	return conf
}

func Test_receiptPrinter(t *testing.T) {
	rp, err := newReceiptPrinter(kioskConfig())
	require.NoError(t, err)

	items := []cart.LineItem{
		{
			ItemID:              "tea",
			Name:                "Tea",
			UnitPrice:           decimal.RequireFromString("1.20"),
			Quantity:            2,
			SpecialInstructions: "extra hot",
			Customizations:      []string{"no sugar"},
		},
		{ItemID: "stew", Name: "Stew", UnitPrice: decimal.RequireFromString("7.00"), Quantity: 1},
	}
	placed := order.Order{
		ID:                  "3b0f6c1e",
		UserID:              "u1",
		Status:              order.StatusPending,
		TotalAmount:         decimal.RequireFromString("10.15"),
		Items:               order.Snapshot(items),
		PaymentMethod:       "mobile_money",
		PickupTime:          "12:30",
		SpecialInstructions: "Ring the bell",
		CreatedAt:           time.Date(2026, 10, 15, 11, 45, 0, 0, time.UTC),
	}

	tests := []struct {
		name   string
		render func(w io.Writer)
	}{
		{name: "cart", render: func(w io.Writer) { rp.Cart(w, items, cart.ComputeTotals(items)) }},
		{name: "empty_cart", render: func(w io.Writer) { rp.Cart(w, nil, cart.Totals{}) }},
		{name: "order", render: func(w io.Writer) { rp.Order(w, placed) }},
		{name: "history", render: func(w io.Writer) { rp.History(w, []order.Order{placed}) }},
	}
	g := goldie.New(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.render(&buf)
			g.Assert(t, tt.name, buf.Bytes())
		})
	}
}
