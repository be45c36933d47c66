// Package repotest holds behaviour checks shared by every remote store implementation.
package repotest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/canteen/core/cart"
	"github.com/trezcool/canteen/core/menu"
	"github.com/trezcool/canteen/core/order"
	"github.com/trezcool/canteen/core/user"
)

// Stores is the set of repositories of one backend, all sharing the same data.
type Stores struct {
	Users  user.Repository
	Menu   menu.Repository
	Cart   cart.RemoteStore
	Orders order.Repository
}

func newUser(t *testing.T, repo user.Repository, email string) user.User {
	t.Helper()
	now := time.Now().UTC()
	usr := user.User{Name: email, Email: email, Role: user.RoleCustomer, IsActive: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, usr.SetPassword("Pwd-"+email))
	usr, err := repo.CreateUser(context.Background(), usr)
	require.NoError(t, err)
	return usr
}

func newItem(t *testing.T, repo menu.Repository, name, price string) menu.Item {
	t.Helper()
	now := time.Now().UTC()
	it, err := repo.CreateItem(context.Background(), menu.Item{
		Name: name, Price: decimal.RequireFromString(price), IsAvailable: true, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	return it
}

func lineKeys(lines []cart.LineItem) []cart.Key {
	keys := make([]cart.Key, 0, len(lines))
	for _, li := range lines {
		keys = append(keys, li.Key())
	}
	return keys
}

// TestCart checks that every cart row is addressed by the full line key and scoped to its user.
func TestCart(t *testing.T, s Stores) {
	ctx := context.Background()
	ada := newUser(t, s.Users, "ada@canteen.test")
	bob := newUser(t, s.Users, "bob@canteen.test")
	burger := newItem(t, s.Menu, "Burger", "9.99")
	tea := newItem(t, s.Menu, "Tea", "1.20")

	plain := burger.LineItem(2, "")
	noSalt := burger.LineItem(1, "no salt")
	cheese := burger.LineItem(1, "", "extra cheese", "bacon")
	for _, li := range []cart.LineItem{plain, noSalt, cheese, tea.LineItem(1, "")} {
		require.NoError(t, s.Cart.InsertLine(ctx, ada.ID, li))
	}
	require.NoError(t, s.Cart.InsertLine(ctx, bob.ID, tea.LineItem(3, "")))

	lines, err := s.Cart.ListLines(ctx, ada.ID)
	require.NoError(t, err)
	require.Len(t, lines, 4)
	for _, li := range lines {
		if li.ItemID == burger.ID {
			assert.Equal(t, "Burger", li.Name)
			assert.True(t, li.UnitPrice.Equal(burger.Price))
		}
	}

	line, err := s.Cart.FindLine(ctx, ada.ID, plain.Key())
	require.NoError(t, err)
	assert.Equal(t, 2, line.Quantity)

	line, err = s.Cart.FindLine(ctx, ada.ID, burger.LineItem(1, "", "extra cheese", "bacon").Key())
	require.NoError(t, err)
	assert.Equal(t, 1, line.Quantity)

	tests := []struct {
		name   string
		userID string
		key    cart.Key
	}{
		{name: "other customizations", userID: ada.ID, key: burger.LineItem(1, "", "bacon").Key()},
		{name: "customizations in another order", userID: ada.ID, key: burger.LineItem(1, "", "bacon", "extra cheese").Key()},
		{name: "other instructions", userID: ada.ID, key: burger.LineItem(1, "well done").Key()},
		{name: "other user", userID: bob.ID, key: plain.Key()},
		{name: "unknown item", userID: ada.ID, key: cart.NewKey(uuid.New().String(), "")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Cart.FindLine(ctx, tt.userID, tt.key)
			assert.Equal(t, cart.ErrLineNotFound, errors.Cause(err))
		})
	}

	line, err = s.Cart.FindLine(ctx, ada.ID, plain.Key())
	require.NoError(t, err)
	require.NoError(t, s.Cart.UpdateLineQuantity(ctx, line.ID, 5))
	line, err = s.Cart.FindLine(ctx, ada.ID, plain.Key())
	require.NoError(t, err)
	assert.Equal(t, 5, line.Quantity)
	err = s.Cart.UpdateLineQuantity(ctx, uuid.New().String(), 5)
	assert.Equal(t, cart.ErrLineNotFound, errors.Cause(err))

	// deleting one variant leaves the others alone
	require.NoError(t, s.Cart.DeleteLine(ctx, ada.ID, noSalt.Key()))
	lines, err = s.Cart.ListLines(ctx, ada.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []cart.Key{plain.Key(), cheese.Key(), tea.LineItem(1, "").Key()}, lineKeys(lines))

	require.NoError(t, s.Cart.DeleteAll(ctx, ada.ID))
	lines, err = s.Cart.ListLines(ctx, ada.ID)
	require.NoError(t, err)
	assert.Empty(t, lines)

	lines, err = s.Cart.ListLines(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Quantity)

	// lines go away with their menu item
	require.NoError(t, s.Menu.DeleteItem(ctx, tea.ID))
	lines, err = s.Cart.ListLines(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

// TestOrders checks order storage, optimistic status updates and special orders.
func TestOrders(t *testing.T, s Stores) {
	ctx := context.Background()
	ada := newUser(t, s.Users, "ada@canteen.test")
	now := time.Now().UTC().Truncate(time.Millisecond)

	items := []cart.LineItem{{ItemID: uuid.New().String(), Name: "Soup", UnitPrice: decimal.RequireFromString("4.50"), Quantity: 2}}
	o, err := s.Orders.CreateOrder(ctx, order.Order{
		UserID:        ada.ID,
		Status:        order.StatusPending,
		TotalAmount:   decimal.RequireFromString("9.72"),
		Items:         items,
		PaymentMethod: "card",
		PickupTime:    "12:00",
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	require.NoError(t, err)
	require.NotEmpty(t, o.ID)

	rec, err := s.Orders.GetOrderByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "9.72", rec.TotalAmount.StringFixed(2))
	snap, err := order.DecodeSnapshot(rec.RawItems)
	require.NoError(t, err)
	require.Len(t, snap, 1)
	assert.Equal(t, "Soup", snap[0].Name)
	assert.Equal(t, 2, snap[0].Quantity)

	_, err = s.Orders.GetOrderByID(ctx, uuid.New().String())
	assert.Equal(t, order.ErrNotFound, errors.Cause(err))

	rec, err = s.Orders.UpdateOrderStatus(ctx, o.ID, order.StatusPending, order.StatusPreparing)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPreparing, rec.Status)

	_, err = s.Orders.UpdateOrderStatus(ctx, o.ID, order.StatusPending, order.StatusCancelled)
	assert.Equal(t, order.ErrStatusConflict, errors.Cause(err), "the stored status moved on")
	_, err = s.Orders.UpdateOrderStatus(ctx, uuid.New().String(), order.StatusPending, order.StatusCancelled)
	assert.Equal(t, order.ErrNotFound, errors.Cause(err))

	recs, err := s.Orders.QueryOrders(ctx, &order.QueryFilter{UserID: ada.ID, Statuses: []string{"preparing"}}, nil)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	recs, err = s.Orders.QueryOrders(ctx, &order.QueryFilter{CreatedFrom: now.Add(time.Hour)}, nil)
	require.NoError(t, err)
	assert.Empty(t, recs)

	so, err := s.Orders.CreateSpecialOrder(ctx, order.SpecialOrder{OrderID: o.ID, EventName: "Board lunch", CreatedAt: now})
	require.NoError(t, err)
	assert.NotEmpty(t, so.ID)
	_, err = s.Orders.CreateSpecialOrder(ctx, order.SpecialOrder{OrderID: o.ID, EventName: "Again", CreatedAt: now})
	assert.Equal(t, order.ErrAlreadySpecial, errors.Cause(err))

	list, err := s.Orders.ListSpecialOrders(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Board lunch", list[0].EventName)
	require.NotNil(t, list[0].Order)
	assert.Equal(t, o.ID, list[0].Order.ID)
	assert.Len(t, list[0].Order.Items, 1)
}

// TestUsers checks email uniqueness and lookups.
func TestUsers(t *testing.T, s Stores) {
	ctx := context.Background()
	ada := newUser(t, s.Users, "ada@canteen.test")

	dup := ada
	dup.ID = ""
	_, err := s.Users.CreateUser(ctx, dup)
	assert.Equal(t, user.ErrEmailExists, errors.Cause(err))

	assert.Equal(t, user.ErrEmailExists, errors.Cause(s.Users.CheckEmailUniqueness(ctx, "ada@canteen.test")))
	assert.NoError(t, s.Users.CheckEmailUniqueness(ctx, "ada@canteen.test", ada))
	assert.NoError(t, s.Users.CheckEmailUniqueness(ctx, "bob@canteen.test"))

	got, err := s.Users.GetUserByEmail(ctx, "ada@canteen.test")
	require.NoError(t, err)
	assert.Equal(t, ada.ID, got.ID)
	assert.NoError(t, got.CheckPassword("Pwd-ada@canteen.test"))

	_, err = s.Users.GetUserByID(ctx, uuid.New().String())
	assert.Equal(t, user.ErrNotFound, errors.Cause(err))

	require.NoError(t, s.Users.DeleteUsersByID(ctx, ada.ID))
	_, err = s.Users.GetUserByEmail(ctx, "ada@canteen.test")
	assert.Equal(t, user.ErrNotFound, errors.Cause(err))
}
