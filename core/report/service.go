package report

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/menu"
	"github.com/trezcool/canteen/core/order"
)

// Periods accepted by Service.Stats.
const (
	PeriodDay      = "day"
	PeriodMonth    = "month"
	PeriodCategory = "category"
	PeriodTop      = "top"
)

var ErrUnknownPeriod = errors.New("unknown period")

type (
	OrderQuerier interface {
		Query(ctx context.Context, filter *order.QueryFilter, ordering []core.DBOrdering) ([]order.Order, error)
	}

	Catalog interface {
		ListItems(ctx context.Context, f menu.Filter) ([]menu.Item, error)
		ListCategories(ctx context.Context) ([]menu.Category, error)
	}

	StatsRequest struct {
		Period string    `query:"period"`
		From   time.Time `query:"from"`
		To     time.Time `query:"to"`
		Limit  int       `query:"limit"`
	}

	Stats struct {
		Period  string     `json:"period"`
		Summary Summary    `json:"summary"`
		Buckets []Bucket   `json:"buckets,omitempty"`
		Top     []ItemStat `json:"top,omitempty"`
	}

	Service struct {
		orders  OrderQuerier
		catalog Catalog
		loc     *time.Location
	}
)

func NewService(orders OrderQuerier, catalog Catalog, conf *core.Config) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(orders, "orders"),
		vala.IsNotNil(catalog, "catalog"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	return &Service{orders: orders, catalog: catalog, loc: conf.Location()}
}

// Stats aggregates the orders created in [req.From, req.To] for req.Period.
func (svc *Service) Stats(ctx context.Context, req StatsRequest) (Stats, error) {
	if req.Period == "" {
		req.Period = PeriodDay
	}
	switch req.Period {
	case PeriodDay, PeriodMonth, PeriodCategory, PeriodTop:
	default:
		return Stats{}, core.NewValidationError(ErrUnknownPeriod, core.FieldError{Field: "period", Error: ErrUnknownPeriod.Error()})
	}

	orders, err := svc.orders.Query(ctx, &order.QueryFilter{CreatedFrom: req.From, CreatedTo: req.To}, nil)
	if err != nil {
		return Stats{}, errors.Wrap(err, "querying orders")
	}

	stats := Stats{Period: req.Period, Summary: Summarize(orders)}
	switch req.Period {
	case PeriodDay:
		stats.Buckets = Daily(orders, svc.loc)
	case PeriodMonth:
		stats.Buckets = Monthly(orders, svc.loc)
	case PeriodCategory:
		categoryOf, err := svc.categoryIndex(ctx)
		if err != nil {
			return Stats{}, err
		}
		stats.Buckets = ByCategory(orders, categoryOf)
	case PeriodTop:
		limit := req.Limit
		if limit <= 0 {
			limit = 10
		}
		stats.Top = TopItems(orders, limit)
	}
	return stats, nil
}

// categoryIndex maps item IDs to their current category name.
func (svc *Service) categoryIndex(ctx context.Context) (func(string) string, error) {
	cats, err := svc.catalog.ListCategories(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing categories")
	}
	items, err := svc.catalog.ListItems(ctx, menu.Filter{})
	if err != nil {
		return nil, errors.Wrap(err, "listing items")
	}

	names := make(map[string]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	itemCats := make(map[string]string, len(items))
	for _, it := range items {
		itemCats[it.ID] = names[it.CategoryID]
	}
	return func(itemID string) string { return itemCats[itemID] }, nil
}
