package report

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/cart"
	"github.com/trezcool/canteen/core/menu"
	"github.com/trezcool/canteen/core/order"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func line(id, name, price string, qty int) cart.LineItem {
	return cart.LineItem{ItemID: id, Name: name, UnitPrice: dec(price), Quantity: qty}
}

func sampleOrders() []order.Order {
	return []order.Order{
		{
			ID: "o1", Status: order.StatusCompleted, TotalAmount: dec("21.60"),
			CreatedAt: time.Date(2024, 3, 30, 23, 30, 0, 0, time.UTC),
			Items:     order.Snapshot{line("tea", "Tea", "2.00", 5), line("stew", "Stew", "10.00", 1)},
		},
		{
			ID: "o2", Status: order.StatusPending, TotalAmount: dec("10.80"),
			CreatedAt: time.Date(2024, 3, 31, 10, 0, 0, 0, time.UTC),
			Items:     order.Snapshot{line("stew", "Stew", "10.00", 1)},
		},
		{
			ID: "o3", Status: order.StatusCancelled, TotalAmount: dec("99.00"),
			CreatedAt: time.Date(2024, 3, 31, 11, 0, 0, 0, time.UTC),
			Items:     order.Snapshot{line("cake", "Cake", "99.00", 1)},
		},
		{
			ID: "o4", Status: order.StatusReady, TotalAmount: dec("3.24"),
			CreatedAt: time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC),
			Items:     order.Snapshot{line("gone", "Old special", "3.00", 1)},
		},
	}
}

func TestDaily(t *testing.T) {
	got := Daily(sampleOrders(), time.UTC)
	require.Len(t, got, 3)
	assert.Equal(t, "2024-03-30", got[0].Key)
	assert.Equal(t, 6, got[0].Items)
	assert.Equal(t, "2024-03-31", got[1].Key)
	assert.Equal(t, 1, got[1].Orders, "cancelled orders are excluded")
	assert.Equal(t, "10.80", got[1].Revenue.StringFixed(2))
	assert.Equal(t, "2024-04-01", got[2].Key)
}

func TestDaily_Location(t *testing.T) {
	// 23:30 UTC on the 30th is already the 31st in Nairobi (UTC+3)
	loc := time.FixedZone("EAT", 3*60*60)
	got := Daily(sampleOrders(), loc)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-03-31", got[0].Key)
	assert.Equal(t, 2, got[0].Orders)
	assert.Equal(t, "32.40", got[0].Revenue.StringFixed(2))
}

func TestMonthly(t *testing.T) {
	got := Monthly(sampleOrders(), nil)
	require.Len(t, got, 2)
	assert.Equal(t, Bucket{Key: "2024-03", Orders: 2, Items: 7, Revenue: got[0].Revenue}, got[0])
	assert.Equal(t, "32.40", got[0].Revenue.StringFixed(2))
	assert.Equal(t, "2024-04", got[1].Key)
	assert.Equal(t, "3.24", got[1].Revenue.StringFixed(2))
}

func TestByCategory(t *testing.T) {
	cats := map[string]string{"tea": "Drinks", "stew": "Mains", "cake": "Desserts"}
	got := ByCategory(sampleOrders(), func(id string) string { return cats[id] })

	require.Len(t, got, 3)
	byKey := make(map[string]Bucket, len(got))
	for _, b := range got {
		byKey[b.Key] = b
	}
	assert.NotContains(t, byKey, "Desserts", "cancelled orders are excluded")
	assert.Equal(t, 1, byKey["Drinks"].Orders)
	assert.Equal(t, 5, byKey["Drinks"].Items)
	assert.Equal(t, "10.00", byKey["Drinks"].Revenue.StringFixed(2))
	assert.Equal(t, 2, byKey["Mains"].Orders)
	assert.Equal(t, "20.00", byKey["Mains"].Revenue.StringFixed(2))
	assert.Equal(t, "3.00", byKey[Uncategorized].Revenue.StringFixed(2))
}

func TestTopItems(t *testing.T) {
	tests := []struct {
		name string
		n    int
		want []string
	}{
		{name: "all", n: 0, want: []string{"tea", "stew", "gone"}},
		{name: "limited", n: 2, want: []string{"tea", "stew"}},
		{name: "more than available", n: 10, want: []string{"tea", "stew", "gone"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TopItems(sampleOrders(), tt.n)
			ids := make([]string, 0, len(got))
			for _, st := range got {
				ids = append(ids, st.ItemID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	top := TopItems(sampleOrders(), 1)
	assert.Equal(t, ItemStat{ItemID: "tea", Name: "Tea", Quantity: 5, Revenue: top[0].Revenue}, top[0])
	assert.Equal(t, "10.00", top[0].Revenue.StringFixed(2))
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleOrders())
	assert.Equal(t, 3, s.Orders)
	assert.Equal(t, "35.64", s.Revenue.StringFixed(2))
	assert.Equal(t, "11.88", s.AverageOrder.StringFixed(2))
	assert.Equal(t, map[order.Status]int{
		order.StatusCompleted: 1,
		order.StatusPending:   1,
		order.StatusCancelled: 1,
		order.StatusReady:     1,
	}, s.ByStatus)

	empty := Summarize(nil)
	assert.Equal(t, 0, empty.Orders)
	assert.True(t, empty.AverageOrder.IsZero())
}

type fakeOrders struct {
	orders []order.Order
	filter *order.QueryFilter
	err    error
}

func (f *fakeOrders) Query(_ context.Context, filter *order.QueryFilter, _ []core.DBOrdering) ([]order.Order, error) {
	f.filter = filter
	return f.orders, f.err
}

type fakeCatalog struct{}

func (fakeCatalog) ListItems(context.Context, menu.Filter) ([]menu.Item, error) {
	return []menu.Item{{ID: "tea", CategoryID: "c1"}, {ID: "stew", CategoryID: "c2"}, {ID: "cake"}}, nil
}

func (fakeCatalog) ListCategories(context.Context) ([]menu.Category, error) {
	return []menu.Category{{ID: "c1", Name: "Drinks"}, {ID: "c2", Name: "Mains"}}, nil
}

func TestService_Stats(t *testing.T) {
	orders := &fakeOrders{orders: sampleOrders()}
	svc := NewService(orders, &fakeCatalog{}, &core.Config{Timezone: "UTC"})
	ctx := context.Background()

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	stats, err := svc.Stats(ctx, StatsRequest{From: from})
	require.NoError(t, err)
	assert.Equal(t, PeriodDay, stats.Period)
	assert.Len(t, stats.Buckets, 3)
	assert.Equal(t, from, orders.filter.CreatedFrom)

	stats, err = svc.Stats(ctx, StatsRequest{Period: PeriodCategory})
	require.NoError(t, err)
	keys := make([]string, 0, len(stats.Buckets))
	for _, b := range stats.Buckets {
		keys = append(keys, b.Key)
	}
	assert.Equal(t, []string{"Drinks", "Mains", Uncategorized}, keys)

	stats, err = svc.Stats(ctx, StatsRequest{Period: PeriodTop, Limit: 1})
	require.NoError(t, err)
	require.Len(t, stats.Top, 1)
	assert.Empty(t, stats.Buckets)

	_, err = svc.Stats(ctx, StatsRequest{Period: "week"})
	assert.True(t, core.IsValidationError(err))

	orders.err = errors.New("boom")
	_, err = svc.Stats(ctx, StatsRequest{Period: PeriodMonth})
	assert.Error(t, err)
}
