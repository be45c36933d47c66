package order

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/cart"
	"github.com/trezcool/canteen/core/user"
)

var (
	// errors
	ErrNotFound          = errors.New("order not found")
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrStatusConflict    = errors.New("order status changed concurrently")
	ErrAlreadySpecial    = errors.New("order is already a special order")
)

type (
	Repository interface {
		CreateOrder(ctx context.Context, o Order) (Order, error)
		GetOrderByID(ctx context.Context, id string) (Record, error)
		// QueryOrders applies AND operation on available QueryFilter fields.
		QueryOrders(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Record, error)
		// UpdateOrderStatus moves order `id` from `from` to `to`.
		// It returns ErrStatusConflict when the stored status is no longer `from`.
		UpdateOrderStatus(ctx context.Context, id string, from, to Status) (Record, error)
		CreateSpecialOrder(ctx context.Context, so SpecialOrder) (SpecialOrder, error)
		ListSpecialOrders(ctx context.Context) ([]SpecialOrder, error)
	}

	// Profiles is the part of the user service orders depend on.
	Profiles interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	ServiceInterface interface {
		cart.OrderSink
		GetByID(ctx context.Context, id string) (Order, error)
		History(ctx context.Context, userID string) []Order
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Order, error)
		UpdateStatus(ctx context.Context, id string, status Status) (Order, error)
		MarkSpecial(ctx context.Context, orderID, eventName string) (SpecialOrder, error)
		ListSpecial(ctx context.Context) ([]SpecialOrder, error)
	}

	Service struct {
		repo     Repository
		profiles Profiles
		mailSvc  core.EmailService
		logger   core.Logger
	}

	mailData struct {
		Name       string
		OrderID    string
		Items      []cart.LineItem
		Total      string
		PickupTime string
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, profiles Profiles, mailSvc core.EmailService, logger core.Logger) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(profiles, "profiles"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &Service{repo: repo, profiles: profiles, mailSvc: mailSvc, logger: logger}
}

// PlaceOrder persists a pending order from a cart submission and mails a receipt.
func (svc *Service) PlaceOrder(ctx context.Context, sub cart.Submission) (string, error) {
	now := time.Now().UTC()
	o, err := svc.repo.CreateOrder(ctx, Order{
		UserID:              sub.UserID,
		Status:              StatusPending,
		TotalAmount:         sub.Totals.Total,
		Items:               cart.Clone(sub.Items),
		PaymentMethod:       sub.PaymentMethod,
		PickupTime:          sub.PickupTime,
		SpecialInstructions: sub.SpecialInstructions,
		CreatedAt:           now,
		UpdatedAt:           now,
	})
	if err != nil {
		return "", errors.Wrap(err, "creating order")
	}

	usr, err := svc.profiles.GetByID(ctx, o.UserID)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("order.PlaceOrder: no receipt for order %s: %v", o.ID, err), err)
		return o.ID, nil
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Your order",
		TemplateName: "order_placed",
		TemplateData: mailData{
			Name:       usr.Name,
			OrderID:    o.ID,
			Items:      o.Items,
			Total:      o.TotalAmount.StringFixed(2),
			PickupTime: o.PickupTime,
		},
	})
	return o.ID, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Order, error) {
	rec, err := svc.repo.GetOrderByID(ctx, id)
	if err != nil {
		return Order{}, err
	}
	return decodeRecord(rec)
}

// History returns the orders of userID, newest first.
// Records with a malformed snapshot are skipped; a failing fetch yields an empty history.
// An empty userID has no history.
func (svc *Service) History(ctx context.Context, userID string) []Order {
	if userID == "" {
		return []Order{}
	}
	filter := &QueryFilter{UserID: userID}
	recs, err := svc.repo.QueryOrders(ctx, filter, []core.DBOrdering{{Field: "created_at"}})
	if err != nil {
		svc.logger.Error(fmt.Sprintf("order.History: %v", err), err)
		return []Order{}
	}
	return svc.decodeRecords("History", recs)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Order, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	ordering = core.AllowedOrderings(ordering, "created_at", "updated_at", "status", "total_amount")
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	recs, err := svc.repo.QueryOrders(ctx, filter, ordering)
	if err != nil {
		return nil, err
	}
	return svc.decodeRecords("Query", recs), nil
}

func (svc *Service) decodeRecords(op string, recs []Record) []Order {
	orders := make([]Order, 0, len(recs))
	for _, rec := range recs {
		o, err := decodeRecord(rec)
		if err != nil {
			svc.logger.Warn(fmt.Sprintf("order.%s: skipping order %s: %v", op, rec.ID, err), err)
			continue
		}
		orders = append(orders, o)
	}
	return orders
}

func decodeRecord(rec Record) (Order, error) {
	o := rec.Order
	if rec.RawItems != nil {
		items, err := DecodeSnapshot(rec.RawItems)
		if err != nil {
			return Order{}, err
		}
		o.Items = items
	}
	if o.Items == nil {
		o.Items = Snapshot{}
	}
	return o, nil
}

// UpdateStatus moves order `id` to status, following the admin workflow.
func (svc *Service) UpdateStatus(ctx context.Context, id string, status Status) (Order, error) {
	if !status.IsValid() {
		return Order{}, core.NewValidationError(nil, core.FieldError{Field: "status", Error: "invalid status"})
	}
	current, err := svc.repo.GetOrderByID(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if current.Status == status {
		return decodeRecord(current)
	}
	if !current.Status.CanTransition(status) {
		return Order{}, core.NewValidationError(
			ErrInvalidTransition,
			core.FieldError{
				Field: "status",
				Error: fmt.Sprintf("cannot change status from %s to %s", current.Status, status),
			},
		)
	}
	rec, err := svc.repo.UpdateOrderStatus(ctx, id, current.Status, status)
	if err != nil {
		return Order{}, err
	}
	return decodeRecord(rec)
}

func (svc *Service) MarkSpecial(ctx context.Context, orderID, eventName string) (SpecialOrder, error) {
	o, err := svc.GetByID(ctx, orderID)
	if err != nil {
		return SpecialOrder{}, err
	}
	so, err := svc.repo.CreateSpecialOrder(ctx, SpecialOrder{
		OrderID:   orderID,
		EventName: eventName,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		if errors.Cause(err) == ErrAlreadySpecial {
			return SpecialOrder{}, core.NewValidationError(err, core.FieldError{Field: "order_id", Error: err.Error()})
		}
		return SpecialOrder{}, err
	}
	so.Order = &o
	return so, nil
}

func (svc *Service) ListSpecial(ctx context.Context) ([]SpecialOrder, error) {
	return svc.repo.ListSpecialOrders(ctx)
}
