package order

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/cart"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusPreparing  Status = "preparing"
	StatusReady      Status = "ready"
	StatusDelivering Status = "delivering"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

var (
	AllStatuses = []Status{StatusPending, StatusPreparing, StatusReady, StatusDelivering, StatusCompleted, StatusCancelled}

	// cancellation is allowed from every non-terminal status
	transitions = map[Status][]Status{
		StatusPending:    {StatusPreparing},
		StatusPreparing:  {StatusReady},
		StatusReady:      {StatusDelivering, StatusCompleted},
		StatusDelivering: {StatusCompleted},
	}

	PaymentMethods = []string{"cash", "card", "mobile_money"}
)

func (s Status) IsValid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool { return s == StatusCompleted || s == StatusCancelled }

// CanTransition reports whether an order in status s may move to status to.
func (s Status) CanTransition(to Status) bool {
	if s.IsTerminal() || !s.IsValid() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Order is a placed order. Items is the cart snapshot taken at submission and never changes.
type Order struct {
	ID                  string          `json:"id"`
	UserID              string          `json:"user_id"`
	Status              Status          `json:"status"`
	TotalAmount         decimal.Decimal `json:"total_amount"`
	Items               Snapshot        `json:"items"`
	PaymentMethod       string          `json:"payment_method"`
	PickupTime          string          `json:"pickup_time"`
	SpecialInstructions string          `json:"special_instructions,omitempty"`
	CreatedAt           time.Time       `json:"created_at"` // UTC
	UpdatedAt           time.Time       `json:"updated_at"` // UTC
}

// Record is a stored order whose item snapshot has not been decoded yet.
type Record struct {
	Order
	RawItems []byte
}

// SpecialOrder flags an order placed for an event (catering).
type SpecialOrder struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	EventName string    `json:"event_name"`
	CreatedAt time.Time `json:"created_at"`
	Order     *Order    `json:"order,omitempty"`
}

// Change is a realtime notification about an order row.
type Change struct {
	Op      string `json:"op"` // insert, update or delete
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
	Status  Status `json:"status"`
}

// CheckoutRequest is the customer supplied part of an order.
type CheckoutRequest struct {
	PaymentMethod       string `json:"payment_method" validate:"required,oneof=cash card mobile_money"`
	PickupTime          string `json:"pickup_time" validate:"required,max=64"`
	SpecialInstructions string `json:"special_instructions" validate:"max=500"`
}

func (cr *CheckoutRequest) Validate(validate *validator.Validate) error {
	cr.PaymentMethod = core.CleanString(cr.PaymentMethod, true /* lower */)
	cr.PickupTime = core.CleanString(cr.PickupTime)
	cr.SpecialInstructions = core.CleanString(cr.SpecialInstructions)
	return validate.Struct(cr)
}

func (cr CheckoutRequest) Checkout() cart.Checkout {
	return cart.Checkout{
		PaymentMethod:       cr.PaymentMethod,
		PickupTime:          cr.PickupTime,
		SpecialInstructions: cr.SpecialInstructions,
	}
}

type UpdateStatus struct {
	Status Status `json:"status" validate:"required"`
}

type MarkSpecial struct {
	EventName string `json:"event_name" validate:"required,max=200"`
}

func (ms *MarkSpecial) Validate(validate *validator.Validate) error {
	ms.EventName = core.CleanString(ms.EventName)
	return validate.Struct(ms)
}

type QueryFilter struct {
	UserID      string    `query:"user_id"`
	Statuses    []string  `query:"status"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.UserID == "" && qf.Statuses == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.UserID = core.CleanString(qf.UserID)
	statuses := qf.Statuses[:0]
	for _, st := range qf.Statuses {
		if st = core.CleanString(st, true /* lower */); Status(st).IsValid() {
			statuses = append(statuses, st)
		}
	}
	if len(statuses) == 0 {
		statuses = nil
	}
	qf.Statuses = statuses
}
