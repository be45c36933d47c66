// Package inmemdb is an in-process remote store, used by tests and the demo mode of the apps.
package inmemdb

import (
	"sync"

	"github.com/trezcool/canteen/core/menu"
	"github.com/trezcool/canteen/core/order"
	"github.com/trezcool/canteen/core/user"
)

type cartRow struct {
	id             string
	userID         string
	itemID         string
	quantity       int
	instructions   string
	customizations string // canonical JSON array
}

type orderRow struct {
	order.Order
	rawItems []byte
}

// DB holds every table behind a single lock.
type DB struct {
	mu sync.RWMutex

	users      map[string]*user.User
	categories map[string]*menu.Category
	items      map[string]*menu.Item
	favorites  map[string]*menu.Favorite
	cart       []*cartRow
	orders     map[string]*orderRow
	special    map[string]*order.SpecialOrder // by order ID
}

func NewDB() *DB {
	return &DB{
		users:      make(map[string]*user.User),
		categories: make(map[string]*menu.Category),
		items:      make(map[string]*menu.Item),
		favorites:  make(map[string]*menu.Favorite),
		orders:     make(map[string]*orderRow),
		special:    make(map[string]*order.SpecialOrder),
	}
}
