package localcache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/canteen/core"
)

type keyLister interface {
	core.Cache
	Keys(ctx context.Context, prefix string) ([]string, error)
}

func TestCaches(t *testing.T) {
	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer func() { _ = sqlite.Close() }()

	caches := []struct {
		name  string
		cache keyLister
	}{
		{name: "memory", cache: NewMemory()},
		{name: "sqlite", cache: sqlite},
	}
	for _, tt := range caches {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			c := tt.cache

			_, found, err := c.Get(ctx, "canteen.cart")
			require.NoError(t, err)
			assert.False(t, found, "missing key must not be found")

			require.NoError(t, c.Set(ctx, "canteen.cart", []byte(`[{"item_id":"p1"}]`)))
			require.NoError(t, c.Set(ctx, "canteen.item.p1", []byte(`{}`)))
			require.NoError(t, c.Set(ctx, "canteen.item.p2", []byte(`{}`)))

			val, found, err := c.Get(ctx, "canteen.cart")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, `[{"item_id":"p1"}]`, string(val))

			// overwrite
			require.NoError(t, c.Set(ctx, "canteen.cart", []byte(`[]`)))
			val, _, _ = c.Get(ctx, "canteen.cart")
			assert.Equal(t, `[]`, string(val))

			keys, err := c.Keys(ctx, "canteen.item.")
			require.NoError(t, err)
			assert.Equal(t, []string{"canteen.item.p1", "canteen.item.p2"}, keys)

			require.NoError(t, c.Delete(ctx, "canteen.cart"))
			require.NoError(t, c.Delete(ctx, "canteen.cart"), "deleting a missing key is a no-op")
			_, found, err = c.Get(ctx, "canteen.cart")
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestSQLitePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	c, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "canteen.session", []byte("token")))
	require.NoError(t, c.Close())

	c, err = OpenSQLite(path)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()
	val, found, err := c.Get(ctx, "canteen.session")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "token", string(val))
}
