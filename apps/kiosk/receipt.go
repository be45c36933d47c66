package main

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/cart"
	"github.com/trezcool/canteen/core/order"
)

// receiptWidth is the width of a printed receipt, in runes.
const receiptWidth = 40

var separator = strings.Repeat("-", receiptWidth)

// receiptPrinter renders carts and orders for the kiosk screen and printer.
type receiptPrinter struct {
	p   *message.Printer
	cur currency.Unit
	loc *time.Location
}

func newReceiptPrinter(conf *core.Config) (*receiptPrinter, error) {
	tag, err := language.Parse(conf.Kiosk.Language)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing kiosk language %q", conf.Kiosk.Language)
	}
	cur, err := currency.ParseISO(conf.Kiosk.Currency)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing kiosk currency %q", conf.Kiosk.Currency)
	}
	return &receiptPrinter{p: message.NewPrinter(tag), cur: cur, loc: conf.Location()}, nil
}

func (rp *receiptPrinter) money(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	return rp.cur.String() + " " + rp.p.Sprint(number.Decimal(f, number.Scale(2)))
}

// row right-aligns right on a receipt line starting with left.
func (rp *receiptPrinter) row(w io.Writer, left, right string) {
	pad := receiptWidth - utf8.RuneCountInString(left) - utf8.RuneCountInString(right)
	if pad < 1 {
		pad = 1
	}
	fmt.Fprintf(w, "%s%s%s\n", left, strings.Repeat(" ", pad), right)
}

func (rp *receiptPrinter) lines(w io.Writer, items []cart.LineItem) {
	for _, li := range items {
		rp.row(w, rp.p.Sprintf("%d x %s", li.Quantity, li.Name), rp.money(li.LineTotal()))
		for _, c := range li.Customizations {
			fmt.Fprintf(w, "    + %s\n", c)
		}
		if li.SpecialInstructions != "" {
			fmt.Fprintf(w, "    note: %s\n", li.SpecialInstructions)
		}
	}
}

// Cart prints the cart lines followed by its totals.
func (rp *receiptPrinter) Cart(w io.Writer, items []cart.LineItem, totals cart.Totals) {
	if len(items) == 0 {
		fmt.Fprintln(w, "Your cart is empty.")
		return
	}
	rp.lines(w, items)
	fmt.Fprintln(w, separator)
	rp.row(w, "Subtotal", rp.money(totals.Subtotal))
	rp.row(w, "Tax", rp.money(totals.Tax))
	rp.row(w, "Total", rp.money(totals.Total))
}

// Order prints the receipt of a placed order. The total is the stored one.
func (rp *receiptPrinter) Order(w io.Writer, o order.Order) {
	fmt.Fprintf(w, "Order %s\n", o.ID)
	fmt.Fprintf(w, "Placed %s\n", o.CreatedAt.In(rp.loc).Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(w, "Status: %s\n", o.Status)
	fmt.Fprintf(w, "Pickup: %s, %s\n", o.PickupTime, strings.ReplaceAll(o.PaymentMethod, "_", " "))
	if o.SpecialInstructions != "" {
		fmt.Fprintf(w, "Note: %s\n", o.SpecialInstructions)
	}
	fmt.Fprintln(w, separator)

	items := []cart.LineItem(o.Items)
	totals := cart.ComputeTotals(items)
	rp.lines(w, items)
	fmt.Fprintln(w, separator)
	rp.row(w, "Subtotal", rp.money(totals.Subtotal))
	rp.row(w, "Tax", rp.money(totals.Tax))
	rp.row(w, "Total", rp.money(o.TotalAmount))
}

// History prints one line per order, newest first.
func (rp *receiptPrinter) History(w io.Writer, orders []order.Order) {
	if len(orders) == 0 {
		fmt.Fprintln(w, "No orders yet.")
		return
	}
	for _, o := range orders {
		left := fmt.Sprintf("%s  %-10s", o.CreatedAt.In(rp.loc).Format("2006-01-02 15:04"), o.Status)
		rp.row(w, left, rp.money(o.TotalAmount))
		fmt.Fprintf(w, "    %s\n", o.ID)
	}
}
