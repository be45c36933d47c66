package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/order"
)

const (
	ordersTable  = "orders"
	specialTable = "special_orders"
)

var orderColumns = []string{
	"id", "user_id", "status", "total_amount", "order_items", "payment_method",
	"pickup_time", "special_instructions", "created_at", "updated_at",
}

type orderRow struct {
	ID                  string          `db:"id"`
	UserID              string          `db:"user_id"`
	Status              string          `db:"status"`
	TotalAmount         decimal.Decimal `db:"total_amount"`
	OrderItems          []byte          `db:"order_items"`
	PaymentMethod       string          `db:"payment_method"`
	PickupTime          string          `db:"pickup_time"`
	SpecialInstructions string          `db:"special_instructions"`
	CreatedAt           time.Time       `db:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at"`
}

func (r orderRow) record() order.Record {
	return order.Record{
		Order: order.Order{
			ID:                  r.ID,
			UserID:              r.UserID,
			Status:              order.Status(r.Status),
			TotalAmount:         r.TotalAmount,
			PaymentMethod:       r.PaymentMethod,
			PickupTime:          r.PickupTime,
			SpecialInstructions: r.SpecialInstructions,
			CreatedAt:           r.CreatedAt.UTC(),
			UpdatedAt:           r.UpdatedAt.UTC(),
		},
		RawItems: r.OrderItems,
	}
}

type specialRow struct {
	ID        string    `db:"special_id"`
	OrderID   string    `db:"order_id"`
	EventName string    `db:"event_name"`
	MarkedAt  time.Time `db:"marked_at"`
	orderRow
}

type orderRepository struct {
	db sqlx.ExtContext
}

var _ order.Repository = (*orderRepository)(nil) // interface compliance check

func NewOrderRepository(db sqlx.ExtContext) order.Repository {
	return &orderRepository{db: db}
}

func (repo *orderRepository) CreateOrder(ctx context.Context, o order.Order) (order.Order, error) {
	items, err := o.Items.Value()
	if err != nil {
		return order.Order{}, errors.Wrap(err, "encoding items")
	}
	// lib/pq sends []byte as bytea
	itemsJSON := string(items.([]byte))
	o.ID = uuid.New().String()
	qb := psql.Insert(ordersTable).Columns(orderColumns...).Values(
		o.ID, o.UserID, string(o.Status), o.TotalAmount, itemsJSON, o.PaymentMethod,
		o.PickupTime, o.SpecialInstructions, o.CreatedAt.UTC(), o.UpdatedAt.UTC(),
	)
	if _, err = exec(ctx, repo.db, qb); err != nil {
		return order.Order{}, errors.Wrap(err, "inserting order")
	}
	return o, nil
}

func (repo *orderRepository) GetOrderByID(ctx context.Context, id string) (order.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return order.Record{}, order.ErrNotFound
	}
	var r orderRow
	if err := get(ctx, repo.db, &r, psql.Select(orderColumns...).From(ordersTable).Where(sq.Eq{"id": id})); err != nil {
		return order.Record{}, trapNoRowsErr(err, order.ErrNotFound, "finding order by ID")
	}
	return r.record(), nil
}

func (repo *orderRepository) QueryOrders(ctx context.Context, filter *order.QueryFilter, ordering []core.DBOrdering) ([]order.Record, error) {
	qb := psql.Select(orderColumns...).From(ordersTable)
	if filter != nil {
		if filter.UserID != "" {
			if _, err := uuid.Parse(filter.UserID); err != nil {
				return []order.Record{}, nil
			}
			qb = qb.Where(sq.Eq{"user_id": filter.UserID})
		}
		if len(filter.Statuses) > 0 {
			qb = qb.Where(sq.Eq{"status": filter.Statuses})
		}
		if !filter.CreatedFrom.IsZero() {
			qb = qb.Where(sq.GtOrEq{"created_at": filter.CreatedFrom.UTC()})
		}
		if !filter.CreatedTo.IsZero() {
			qb = qb.Where(sq.LtOrEq{"created_at": filter.CreatedTo.UTC()})
		}
	}
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}

	var rows []orderRow
	if err := selectAll(ctx, repo.db, &rows, orderBy(qb, ordering).OrderBy("id ASC")); err != nil {
		return nil, errors.Wrap(err, "querying orders")
	}
	recs := make([]order.Record, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, r.record())
	}
	return recs, nil
}

func (repo *orderRepository) UpdateOrderStatus(ctx context.Context, id string, from, to order.Status) (order.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return order.Record{}, order.ErrNotFound
	}
	qb := psql.Update(ordersTable).
		Set("status", string(to)).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id, "status": string(from)}).
		Suffix("RETURNING " + strings.Join(orderColumns, ", "))

	var r orderRow
	if err := get(ctx, repo.db, &r, qb); err != nil {
		if errors.Cause(err) != sql.ErrNoRows {
			return order.Record{}, errors.Wrap(err, "updating order status")
		}
		// either gone or moved by someone else
		if _, err = repo.GetOrderByID(ctx, id); err != nil {
			return order.Record{}, err
		}
		return order.Record{}, order.ErrStatusConflict
	}
	return r.record(), nil
}

func (repo *orderRepository) CreateSpecialOrder(ctx context.Context, so order.SpecialOrder) (order.SpecialOrder, error) {
	if _, err := uuid.Parse(so.OrderID); err != nil {
		return order.SpecialOrder{}, order.ErrNotFound
	}
	so.ID = uuid.New().String()
	so.Order = nil
	qb := psql.Insert(specialTable).
		Columns("id", "order_id", "event_name", "created_at").
		Values(so.ID, so.OrderID, so.EventName, so.CreatedAt.UTC())
	if _, err := exec(ctx, repo.db, qb); err != nil {
		if isUniqueViolation(err) {
			return order.SpecialOrder{}, order.ErrAlreadySpecial
		}
		return order.SpecialOrder{}, errors.Wrap(err, "inserting special order")
	}
	return so, nil
}

func (repo *orderRepository) ListSpecialOrders(ctx context.Context) ([]order.SpecialOrder, error) {
	cols := []string{"s.id AS special_id", "s.order_id", "s.event_name", "s.created_at AS marked_at"}
	for _, c := range orderColumns {
		cols = append(cols, "o."+c)
	}
	qb := psql.Select(cols...).
		From(specialTable + " s").
		Join(ordersTable + " o ON o.id = s.order_id").
		OrderBy("s.created_at DESC")

	var rows []specialRow
	if err := selectAll(ctx, repo.db, &rows, qb); err != nil {
		return nil, errors.Wrap(err, "listing special orders")
	}
	res := make([]order.SpecialOrder, 0, len(rows))
	for _, r := range rows {
		o := r.orderRow.record().Order
		if items, err := order.DecodeSnapshot(r.OrderItems); err == nil {
			o.Items = items
		}
		res = append(res, order.SpecialOrder{
			ID:        r.ID,
			OrderID:   r.OrderID,
			EventName: r.EventName,
			CreatedAt: r.MarkedAt.UTC(),
			Order:     &o,
		})
	}
	return res, nil
}
