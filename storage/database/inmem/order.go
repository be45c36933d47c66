package inmemdb

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/order"
)

// ChangePublisher is notified of every order write, as the Postgres trigger does for the real store.
type ChangePublisher interface {
	Publish(ch order.Change)
}

type orderRepository struct {
	db  *DB
	pub ChangePublisher
}

var _ order.Repository = (*orderRepository)(nil)

// NewOrderRepository returns the order store. pub may be nil.
func NewOrderRepository(db *DB, pub ChangePublisher) order.Repository {
	return &orderRepository{db: db, pub: pub}
}

func (repo *orderRepository) publish(op string, o order.Order) {
	if repo.pub != nil {
		repo.pub.Publish(order.Change{Op: op, OrderID: o.ID, UserID: o.UserID, Status: o.Status})
	}
}

// SeedOrder stores o with rawItems as its stored item snapshot, as is.
func (db *DB) SeedOrder(o order.Order, rawItems []byte) order.Order {
	db.mu.Lock()
	defer db.mu.Unlock()

	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	o.Items = nil
	db.orders[o.ID] = &orderRow{Order: o, rawItems: rawItems}
	return o
}

func (row *orderRow) record() order.Record {
	o := row.Order
	o.Items = nil
	return order.Record{Order: o, RawItems: append([]byte(nil), row.rawItems...)}
}

func (repo *orderRepository) CreateOrder(_ context.Context, o order.Order) (order.Order, error) {
	raw, err := json.Marshal(o.Items)
	if err != nil {
		return order.Order{}, errors.Wrap(err, "encoding items")
	}

	repo.db.mu.Lock()
	o.ID = uuid.New().String()
	stored := o
	stored.Items = nil
	repo.db.orders[o.ID] = &orderRow{Order: stored, rawItems: raw}
	repo.db.mu.Unlock()

	repo.publish("insert", o)
	return o, nil
}

func (repo *orderRepository) GetOrderByID(_ context.Context, id string) (order.Record, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if row, ok := repo.db.orders[id]; ok {
		return row.record(), nil
	}
	return order.Record{}, order.ErrNotFound
}

func (repo *orderRepository) QueryOrders(_ context.Context, filter *order.QueryFilter, ordering []core.DBOrdering) ([]order.Record, error) {
	if filter == nil {
		filter = new(order.QueryFilter)
	}
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	recs := make([]order.Record, 0)
	for _, row := range repo.db.orders {
		if filter.UserID != "" && row.UserID != filter.UserID {
			continue
		}
		if filter.Statuses != nil && !contains(filter.Statuses, string(row.Status)) {
			continue
		}
		if !filter.CreatedFrom.IsZero() && row.CreatedAt.Before(filter.CreatedFrom) {
			continue
		}
		if !filter.CreatedTo.IsZero() && row.CreatedAt.After(filter.CreatedTo) {
			continue
		}
		recs = append(recs, row.record())
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	sort.SliceStable(recs, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareOrders(recs[i].Order, recs[j].Order, ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return recs[i].ID < recs[j].ID
	})
	return recs, nil
}

func compareOrders(a, b order.Order, field string) int {
	switch field {
	case "created_at":
		return compareTimes(a.CreatedAt, b.CreatedAt)
	case "updated_at":
		return compareTimes(a.UpdatedAt, b.UpdatedAt)
	case "total_amount":
		return a.TotalAmount.Cmp(b.TotalAmount)
	case "status":
		switch {
		case a.Status < b.Status:
			return -1
		case a.Status > b.Status:
			return 1
		}
	}
	return 0
}

func (repo *orderRepository) UpdateOrderStatus(_ context.Context, id string, from, to order.Status) (order.Record, error) {
	repo.db.mu.Lock()
	row, ok := repo.db.orders[id]
	if !ok {
		repo.db.mu.Unlock()
		return order.Record{}, order.ErrNotFound
	}
	if row.Status != from {
		repo.db.mu.Unlock()
		return order.Record{}, order.ErrStatusConflict
	}
	row.Status = to
	row.UpdatedAt = nowUTC()
	rec := row.record()
	repo.db.mu.Unlock()

	repo.publish("update", rec.Order)
	return rec, nil
}

func (repo *orderRepository) CreateSpecialOrder(_ context.Context, so order.SpecialOrder) (order.SpecialOrder, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.orders[so.OrderID]; !ok {
		return order.SpecialOrder{}, order.ErrNotFound
	}
	if _, ok := repo.db.special[so.OrderID]; ok {
		return order.SpecialOrder{}, order.ErrAlreadySpecial
	}
	so.ID = uuid.New().String()
	so.Order = nil
	repo.db.special[so.OrderID] = &so
	return so, nil
}

func (repo *orderRepository) ListSpecialOrders(_ context.Context) ([]order.SpecialOrder, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	res := make([]order.SpecialOrder, 0, len(repo.db.special))
	for _, so := range repo.db.special {
		s := *so
		if row, ok := repo.db.orders[so.OrderID]; ok {
			o := row.Order
			if items, err := order.DecodeSnapshot(row.rawItems); err == nil {
				o.Items = items
			}
			s.Order = &o
		}
		res = append(res, s)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}
