package inmemdb

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/canteen/core/cart"
	"github.com/trezcool/canteen/core/menu"
	"github.com/trezcool/canteen/storage/database/repotest"
)

func stores() repotest.Stores {
	db := NewDB()
	return repotest.Stores{
		Users:  NewUserRepository(db),
		Menu:   NewMenuRepository(db),
		Cart:   NewCartRepository(db),
		Orders: NewOrderRepository(db, nil),
	}
}

func TestCartRepository(t *testing.T)  { repotest.TestCart(t, stores()) }
func TestOrderRepository(t *testing.T) { repotest.TestOrders(t, stores()) }
func TestUserRepository(t *testing.T)  { repotest.TestUsers(t, stores()) }

func TestCartRepository_ListLinesSkipsUnknownItems(t *testing.T) {
	ctx := context.Background()
	db := NewDB()
	carts := NewCartRepository(db)
	tea, err := NewMenuRepository(db).CreateItem(ctx, menu.Item{Name: "Tea", Price: decimal.RequireFromString("1.20"), IsAvailable: true})
	require.NoError(t, err)

	userID := uuid.New().String()
	require.NoError(t, carts.InsertLine(ctx, userID, tea.LineItem(2, "")))
	require.NoError(t, carts.InsertLine(ctx, userID, cart.LineItem{
		ItemID:    uuid.New().String(),
		Name:      "Gone",
		UnitPrice: decimal.RequireFromString("3.00"),
		Quantity:  1,
	}))

	lines, err := carts.ListLines(ctx, userID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, tea.ID, lines[0].ItemID)
	assert.Equal(t, "Tea", lines[0].Name)
	assert.Equal(t, 2, lines[0].Quantity)
}
