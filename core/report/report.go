// Package report aggregates orders for the admin dashboard.
// Cancelled orders never count towards revenue.
package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/canteen/core/order"
)

// Uncategorized is the ByCategory bucket of items without a (known) category.
const Uncategorized = "uncategorized"

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

type (
	Bucket struct {
		Key     string          `json:"key"`
		Orders  int             `json:"orders"`
		Items   int             `json:"items"`
		Revenue decimal.Decimal `json:"revenue"`
	}

	ItemStat struct {
		ItemID   string          `json:"item_id"`
		Name     string          `json:"name"`
		Quantity int             `json:"quantity"`
		Revenue  decimal.Decimal `json:"revenue"`
	}

	Summary struct {
		Orders       int                  `json:"orders"`
		Revenue      decimal.Decimal      `json:"revenue"`
		AverageOrder decimal.Decimal      `json:"average_order"`
		ByStatus     map[order.Status]int `json:"by_status"`
	}
)

func counted(o order.Order) bool { return o.Status != order.StatusCancelled }

func units(o order.Order) int {
	var n int
	for _, li := range o.Items {
		n += li.Quantity
	}
	return n
}

// byTime buckets orders on their creation time formatted with layout in loc.
func byTime(orders []order.Order, loc *time.Location, layout string) []Bucket {
	if loc == nil {
		loc = time.UTC
	}
	idx := make(map[string]*Bucket)
	for _, o := range orders {
		if !counted(o) {
			continue
		}
		key := o.CreatedAt.In(loc).Format(layout)
		b, ok := idx[key]
		if !ok {
			b = &Bucket{Key: key, Revenue: decimal.Zero}
			idx[key] = b
		}
		b.Orders++
		b.Items += units(o)
		b.Revenue = b.Revenue.Add(o.TotalAmount)
	}
	return sortedBuckets(idx)
}

func sortedBuckets(idx map[string]*Bucket) []Bucket {
	res := make([]Bucket, 0, len(idx))
	for _, b := range idx {
		res = append(res, *b)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Key < res[j].Key })
	return res
}

// Daily buckets orders by calendar day in loc, oldest first.
func Daily(orders []order.Order, loc *time.Location) []Bucket {
	return byTime(orders, loc, dayLayout)
}

// Monthly buckets orders by calendar month in loc, oldest first.
func Monthly(orders []order.Order, loc *time.Location) []Bucket {
	return byTime(orders, loc, monthLayout)
}

// ByCategory buckets line revenue (unit price × quantity, before tax) by the category
// categoryOf returns for each item at report time. An empty category goes to Uncategorized.
// Orders counts the orders with at least one line in the bucket.
func ByCategory(orders []order.Order, categoryOf func(itemID string) string) []Bucket {
	idx := make(map[string]*Bucket)
	for _, o := range orders {
		if !counted(o) {
			continue
		}
		seen := make(map[string]bool)
		for _, li := range o.Items {
			cat := categoryOf(li.ItemID)
			if cat == "" {
				cat = Uncategorized
			}
			b, ok := idx[cat]
			if !ok {
				b = &Bucket{Key: cat, Revenue: decimal.Zero}
				idx[cat] = b
			}
			if !seen[cat] {
				seen[cat] = true
				b.Orders++
			}
			b.Items += li.Quantity
			b.Revenue = b.Revenue.Add(li.LineTotal())
		}
	}
	return sortedBuckets(idx)
}

// TopItems returns the n best selling items by quantity. n ≤ 0 returns them all.
func TopItems(orders []order.Order, n int) []ItemStat {
	idx := make(map[string]*ItemStat)
	for _, o := range orders {
		if !counted(o) {
			continue
		}
		for _, li := range o.Items {
			st, ok := idx[li.ItemID]
			if !ok {
				st = &ItemStat{ItemID: li.ItemID, Name: li.Name, Revenue: decimal.Zero}
				idx[li.ItemID] = st
			}
			st.Quantity += li.Quantity
			st.Revenue = st.Revenue.Add(li.LineTotal())
		}
	}

	res := make([]ItemStat, 0, len(idx))
	for _, st := range idx {
		res = append(res, *st)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Quantity != res[j].Quantity {
			return res[i].Quantity > res[j].Quantity
		}
		if !res[i].Revenue.Equal(res[j].Revenue) {
			return res[i].Revenue.GreaterThan(res[j].Revenue)
		}
		return res[i].ItemID < res[j].ItemID
	})
	if n > 0 && len(res) > n {
		res = res[:n]
	}
	return res
}

// Summarize counts every order by status; revenue only covers non cancelled orders.
func Summarize(orders []order.Order) Summary {
	s := Summary{Revenue: decimal.Zero, AverageOrder: decimal.Zero, ByStatus: make(map[order.Status]int)}
	for _, o := range orders {
		s.ByStatus[o.Status]++
		if !counted(o) {
			continue
		}
		s.Orders++
		s.Revenue = s.Revenue.Add(o.TotalAmount)
	}
	if s.Orders > 0 {
		s.AverageOrder = s.Revenue.Div(decimal.NewFromInt(int64(s.Orders))).Round(2)
	}
	return s
}
