package sqlxrepos

import (
	"testing"

	"github.com/trezcool/canteen/storage/database/repotest"
	"github.com/trezcool/canteen/testutil"
)

func stores(t *testing.T) repotest.Stores {
	db := testutil.PrepareDB(t)
	return repotest.Stores{
		Users:  NewUserRepository(db),
		Menu:   NewMenuRepository(db),
		Cart:   NewCartRepository(db),
		Orders: NewOrderRepository(db),
	}
}

func TestCartRepository(t *testing.T)  { repotest.TestCart(t, stores(t)) }
func TestOrderRepository(t *testing.T) { repotest.TestOrders(t, stores(t)) }
func TestUserRepository(t *testing.T)  { repotest.TestUsers(t, stores(t)) }
