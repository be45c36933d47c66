package order_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/cart"
	"github.com/trezcool/canteen/core/order"
	"github.com/trezcool/canteen/core/user"
	appfs "github.com/trezcool/canteen/fs"
	emailsvc "github.com/trezcool/canteen/services/email"
	inmemdb "github.com/trezcool/canteen/storage/database/inmem"
	"github.com/trezcool/canteen/testutil"
)

type changeRecorder struct {
	mu      sync.Mutex
	changes []order.Change
}

func (r *changeRecorder) Publish(ch order.Change) {
	r.mu.Lock()
	r.changes = append(r.changes, ch)
	r.mu.Unlock()
}

func (r *changeRecorder) all() []order.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]order.Change(nil), r.changes...)
}

type fixture struct {
	db      *inmemdb.DB
	svc     *order.Service
	changes *changeRecorder
	usr     user.User
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conf := testutil.Config()
	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf.FrontendBaseURL, true, testutil.NopLogger)
	emailsvc.ResetSentMessages()

	db := inmemdb.NewDB()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	userRepo := inmemdb.NewUserRepository(db)
	users := user.NewService(userRepo, mailSvc, conf)
	changes := new(changeRecorder)
	svc := order.NewService(inmemdb.NewOrderRepository(db, changes), users, mailSvc, testutil.NopLogger)

	usr := testutil.CreateUser(t, userRepo, "Ada", "ada@canteen.test", "", user.RoleCustomer, true)
	return fixture{db: db, svc: svc, changes: changes, usr: usr}
}

func submission(userID string) cart.Submission {
	items := []cart.LineItem{
		{ItemID: "i1", Name: "Burger", UnitPrice: decimal.RequireFromString("9.99"), Quantity: 1},
		{ItemID: "i2", Name: "Fries", UnitPrice: decimal.RequireFromString("5.00"), Quantity: 2},
	}
	return cart.Submission{
		UserID:   userID,
		Items:    items,
		Totals:   cart.ComputeTotals(items),
		Checkout: cart.Checkout{PaymentMethod: "cash", PickupTime: "12:30"},
	}
}

func TestService_PlaceOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub := submission(f.usr.ID)
	id, err := f.svc.PlaceOrder(ctx, sub)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	// the submission is stored by value
	sub.Items[0].Quantity = 99

	o, err := f.svc.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, "21.59", o.TotalAmount.StringFixed(2))
	assert.Equal(t, "cash", o.PaymentMethod)
	require.Len(t, o.Items, 2)
	assert.Equal(t, 1, o.Items[0].Quantity)

	msg, ok := emailsvc.LastSentMessage()
	require.True(t, ok, "receipt not sent")
	assert.Equal(t, f.usr.Email, msg.To[0].Address)
	assert.Contains(t, msg.TextContent, id)
	assert.Contains(t, msg.TextContent, "21.59")
	assert.Contains(t, msg.TextContent, "2 x Fries")

	assert.Equal(t, []order.Change{{Op: "insert", OrderID: id, UserID: f.usr.ID, Status: order.StatusPending}}, f.changes.all())
}

func TestService_PlaceOrderUnknownProfile(t *testing.T) {
	f := newFixture(t)

	id, err := f.svc.PlaceOrder(context.Background(), submission("ghost"))
	require.NoError(t, err, "a missing profile only skips the receipt")
	assert.NotEmpty(t, id)
	_, sent := emailsvc.LastSentMessage()
	assert.False(t, sent)
}

func TestService_History(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seed := func(userID string, age time.Duration, raw string) order.Order {
		return f.db.SeedOrder(order.Order{
			UserID:      userID,
			Status:      order.StatusCompleted,
			TotalAmount: decimal.RequireFromString("10.80"),
			CreatedAt:   now.Add(-age),
			UpdatedAt:   now.Add(-age),
		}, []byte(raw))
	}
	oldest := seed(f.usr.ID, 3*time.Hour, `[{"item_id":"i1","name":"Soup","unit_price":"5","quantity":2}]`)
	legacy := seed(f.usr.ID, 2*time.Hour, `"[{\"item_id\":\"i2\",\"name\":\"Tea\",\"unit_price\":\"10\",\"quantity\":1}]"`)
	seed(f.usr.ID, time.Hour, `{"broken":`)
	newest := seed(f.usr.ID, time.Minute, `[]`)
	seed("someone-else", time.Minute, `[]`)

	hist := f.svc.History(ctx, f.usr.ID)
	require.Len(t, hist, 3, "malformed and foreign orders are skipped")
	assert.Equal(t, newest.ID, hist[0].ID)
	assert.Equal(t, legacy.ID, hist[1].ID)
	assert.Equal(t, oldest.ID, hist[2].ID)

	assert.Empty(t, hist[0].Items)
	assert.NotNil(t, hist[0].Items)
	require.Len(t, hist[1].Items, 1)
	assert.Equal(t, "Tea", hist[1].Items[0].Name)
	require.Len(t, hist[2].Items, 1)
	assert.Equal(t, 2, hist[2].Items[0].Quantity)

	assert.Empty(t, f.svc.History(ctx, "nobody"))

	noUser := f.svc.History(ctx, "")
	assert.NotNil(t, noUser)
	assert.Empty(t, noUser, "an empty user ID never lists other customers' orders")
}

type failingRepo struct {
	order.Repository
}

func (failingRepo) QueryOrders(context.Context, *order.QueryFilter, []core.DBOrdering) ([]order.Record, error) {
	return nil, errors.New("connection refused")
}

func TestService_HistoryFetchFailure(t *testing.T) {
	conf := testutil.Config()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	db := inmemdb.NewDB()
	users := user.NewService(inmemdb.NewUserRepository(db), mailSvc, conf)
	svc := order.NewService(&failingRepo{}, users, mailSvc, testutil.NopLogger)

	hist := svc.History(context.Background(), "u1")
	assert.NotNil(t, hist)
	assert.Empty(t, hist)
}

func TestService_UpdateStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, err := f.svc.PlaceOrder(ctx, submission(f.usr.ID))
	require.NoError(t, err)

	o, err := f.svc.UpdateStatus(ctx, id, order.StatusPreparing)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPreparing, o.Status)
	assert.Len(t, o.Items, 2)

	// same status is a no-op
	o, err = f.svc.UpdateStatus(ctx, id, order.StatusPreparing)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPreparing, o.Status)

	_, err = f.svc.UpdateStatus(ctx, id, order.StatusCompleted)
	require.Error(t, err)
	assert.True(t, core.IsValidationError(err))
	vErr := errors.Cause(err).(*core.ValidationError)
	assert.Equal(t, order.ErrInvalidTransition, vErr.Err)

	_, err = f.svc.UpdateStatus(ctx, id, order.Status("lost"))
	assert.True(t, core.IsValidationError(err))

	_, err = f.svc.UpdateStatus(ctx, id, order.StatusCancelled)
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, id, order.StatusPending)
	assert.True(t, core.IsValidationError(err), "cancelled is terminal")

	_, err = f.svc.UpdateStatus(ctx, "missing", order.StatusReady)
	assert.Equal(t, order.ErrNotFound, errors.Cause(err))

	changes := f.changes.all()
	require.Len(t, changes, 3)
	assert.Equal(t, "update", changes[1].Op)
	assert.Equal(t, order.StatusPreparing, changes[1].Status)
	assert.Equal(t, order.StatusCancelled, changes[2].Status)
}

func TestService_Query(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	first := f.db.SeedOrder(order.Order{
		UserID: f.usr.ID, Status: order.StatusPending, TotalAmount: decimal.NewFromInt(5),
		CreatedAt: now.Add(-time.Hour), UpdatedAt: now.Add(-time.Hour),
	}, []byte(`[]`)).ID
	second := f.db.SeedOrder(order.Order{
		UserID: f.usr.ID, Status: order.StatusPreparing, TotalAmount: decimal.NewFromInt(3),
		CreatedAt: now, UpdatedAt: now,
	}, []byte(`[]`)).ID

	tests := []struct {
		name     string
		filter   *order.QueryFilter
		ordering []core.DBOrdering
		want     []string
	}{
		{name: "by status", filter: &order.QueryFilter{Statuses: []string{"pending"}}, want: []string{first}},
		{name: "by user", filter: &order.QueryFilter{UserID: "nobody"}, want: []string{}},
		{name: "unknown ordering falls back", ordering: []core.DBOrdering{{Field: "id; DROP TABLE orders"}}, want: []string{second, first}},
		{name: "status ascending", ordering: []core.DBOrdering{{Field: "status", Ascending: true}}, want: []string{first, second}},
		{name: "total ascending", ordering: []core.DBOrdering{{Field: "total_amount", Ascending: true}}, want: []string{second, first}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders, err := f.svc.Query(ctx, tt.filter, tt.ordering)
			require.NoError(t, err)
			ids := make([]string, 0, len(orders))
			for _, o := range orders {
				ids = append(ids, o.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestService_MarkSpecial(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, err := f.svc.PlaceOrder(ctx, submission(f.usr.ID))
	require.NoError(t, err)

	so, err := f.svc.MarkSpecial(ctx, id, "Staff party")
	require.NoError(t, err)
	assert.Equal(t, id, so.OrderID)
	require.NotNil(t, so.Order)
	assert.Len(t, so.Order.Items, 2)

	_, err = f.svc.MarkSpecial(ctx, id, "Again")
	assert.True(t, core.IsValidationError(err))

	_, err = f.svc.MarkSpecial(ctx, "missing", "Nope")
	assert.Equal(t, order.ErrNotFound, errors.Cause(err))

	list, err := f.svc.ListSpecial(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Staff party", list[0].EventName)
	require.NotNil(t, list[0].Order)
	assert.Equal(t, id, list[0].Order.ID)
}
