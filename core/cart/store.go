package cart

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/trezcool/canteen/core"
)

// LocalCacheKey is the device cache entry holding the anonymous cart.
const LocalCacheKey = "canteen.cart"

var ErrLineNotFound = errors.New("cart line not found")

type (
	// LocalStore persists the anonymous cart on the device.
	LocalStore interface {
		Load(ctx context.Context) ([]LineItem, error)
		Save(ctx context.Context, items []LineItem) error
		Clear(ctx context.Context) error
	}

	// RemoteLine is a stored cart row.
	RemoteLine struct {
		ID       string
		Quantity int
	}

	// RemoteStore holds one row per line item and identity.
	// Every lookup matches on the full Key.
	RemoteStore interface {
		// ListLines returns the identity's lines joined with the menu for name, price & image.
		ListLines(ctx context.Context, userID string) ([]LineItem, error)
		// FindLine returns ErrLineNotFound when no row matches.
		FindLine(ctx context.Context, userID string, key Key) (RemoteLine, error)
		InsertLine(ctx context.Context, userID string, item LineItem) error
		UpdateLineQuantity(ctx context.Context, lineID string, quantity int) error
		DeleteLine(ctx context.Context, userID string, key Key) error
		DeleteAll(ctx context.Context, userID string) error
	}
)

// CacheStore is a LocalStore keeping the cart as a JSON array under LocalCacheKey.
type CacheStore struct {
	cache core.Cache
}

var _ LocalStore = (*CacheStore)(nil)

func NewCacheStore(cache core.Cache) *CacheStore {
	return &CacheStore{cache: cache}
}

func (s *CacheStore) Load(ctx context.Context) ([]LineItem, error) {
	data, found, err := s.cache.Get(ctx, LocalCacheKey)
	if err != nil {
		return nil, errors.Wrap(err, "reading local cart")
	}
	if !found || len(data) == 0 {
		return nil, nil
	}
	var items []LineItem
	if err = json.Unmarshal(data, &items); err != nil {
		return nil, errors.Wrap(err, "decoding local cart")
	}
	return Normalize(items), nil
}

func (s *CacheStore) Save(ctx context.Context, items []LineItem) error {
	if items == nil {
		items = []LineItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return errors.Wrap(err, "encoding local cart")
	}
	return errors.Wrap(s.cache.Set(ctx, LocalCacheKey, data), "writing local cart")
}

func (s *CacheStore) Clear(ctx context.Context) error {
	return errors.Wrap(s.cache.Delete(ctx, LocalCacheKey), "clearing local cart")
}

// nopLocalStore is the LocalStore of engines without a device (server-side).
type nopLocalStore struct{}

func (nopLocalStore) Load(context.Context) ([]LineItem, error) { return nil, nil }
func (nopLocalStore) Save(context.Context, []LineItem) error   { return nil }
func (nopLocalStore) Clear(context.Context) error              { return nil }

// NopLocalStore returns a LocalStore that stores nothing.
func NopLocalStore() LocalStore { return &nopLocalStore{} }
