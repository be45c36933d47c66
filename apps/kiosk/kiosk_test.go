package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/cart"
	"github.com/trezcool/canteen/core/menu"
	"github.com/trezcool/canteen/core/order"
	"github.com/trezcool/canteen/core/user"
	appfs "github.com/trezcool/canteen/fs"
	emailsvc "github.com/trezcool/canteen/services/email"
	"github.com/trezcool/canteen/services/objectstore"
	inmemdb "github.com/trezcool/canteen/storage/database/inmem"
	"github.com/trezcool/canteen/storage/localcache"
	"github.com/trezcool/canteen/testutil"
)

// testEnv is one kiosk device talking to an in-memory backend.
type testEnv struct {
	conf     *core.Config
	cache    *localcache.Memory
	userRepo user.Repository
	userSvc  *user.Service
	menuSvc  *menu.Service
	orderSvc *order.Service
	carts    cart.RemoteStore
	validate *validator.Validate
}

func kioskConfig() *core.Config {
	conf := testutil.Config()
	conf.Kiosk = core.KioskConfig{Currency: "USD", Language: "en"}
	return conf
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	conf := kioskConfig()
	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf.FrontendBaseURL, true, testutil.NopLogger)

	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	store, err := objectstore.NewDisk(core.StorageConfig{DiskRoot: t.TempDir()})
	require.NoError(t, err)

	db := inmemdb.NewDB()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	userRepo := inmemdb.NewUserRepository(db)
	userSvc := user.NewService(userRepo, mailSvc, conf)
	return &testEnv{
		conf:     conf,
		cache:    localcache.NewMemory(),
		userRepo: userRepo,
		userSvc:  userSvc,
		menuSvc:  menu.NewService(inmemdb.NewMenuRepository(db), store),
		orderSvc: order.NewService(inmemdb.NewOrderRepository(db, nil), userSvc, mailSvc, testutil.NopLogger),
		carts:    inmemdb.NewCartRepository(db),
		validate: validate,
	}
}

// run executes one kiosk invocation, the way a fresh process on the same device would.
func (env *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	k, err := newKiosk(deps{
		conf:     env.conf,
		logger:   testutil.NopLogger,
		cache:    env.cache,
		users:    env.userSvc,
		menuSvc:  env.menuSvc,
		orders:   env.orderSvc,
		carts:    env.carts,
		validate: env.validate,
	})
	require.NoError(t, err)
	defer k.close()

	var out bytes.Buffer
	cmd := newRootCmd(k)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err = cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (env *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := env.run(t, args...)
	require.NoError(t, err, out)
	return out
}

func (env *testEnv) createItem(t *testing.T, name, price string, available bool) menu.Item {
	t.Helper()
	it, err := env.menuSvc.CreateItem(context.Background(), menu.NewItem{
		Name:        name,
		Price:       decimal.RequireFromString(price),
		IsAvailable: &available,
	})
	require.NoError(t, err)
	return it
}

func mockPassword(t *testing.T, pwd string) {
	orig := readPasswordFunc
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

func Test_kiosk_menu(t *testing.T) {
	env := setup(t)
	tea := env.createItem(t, "Tea", "1.20", true)
	env.createItem(t, "Stew", "7.00", false)

	out := env.mustRun(t, "menu")
	assert.Contains(t, out, "Tea")
	assert.Contains(t, out, "USD 1.20")
	assert.Contains(t, out, "Stew [sold out]")
	assert.Contains(t, out, tea.ID)

	// listing prefetches a display copy of every item
	cached, ok := menu.CachedItem(context.Background(), env.cache, tea.ID)
	require.True(t, ok)
	assert.Equal(t, "Tea", cached.Name)

	out = env.mustRun(t, "menu", "--available")
	assert.NotContains(t, out, "Stew")

	out = env.mustRun(t, "menu", "--search", "pizza")
	assert.Equal(t, "Nothing matches.\n", out)
}

func Test_kiosk_anonymousCart(t *testing.T) {
	env := setup(t)
	tea := env.createItem(t, "Tea", "1.20", true)
	stew := env.createItem(t, "Stew", "7.00", false)

	tests := []struct {
		name    string
		args    []string
		wantErr error
		wantOut string
	}{
		{name: "unknown item", args: []string{"add", "nope"}, wantErr: menu.ErrNotFound},
		{name: "unavailable item", args: []string{"add", stew.ID}, wantErr: errItemUnavailable},
		{name: "zero quantity", args: []string{"add", tea.ID, "-q", "0"}, wantErr: cart.ErrInvalidQuantity},
		{name: "add", args: []string{"add", tea.ID, "-q", "2"}, wantOut: "Added 2 x Tea. Cart: 2 item(s), total USD 2.59\n"},
		{name: "add variant", args: []string{"add", tea.ID, "-c", "no sugar"}, wantOut: "Added 1 x Tea. Cart: 3 item(s), total USD 3.89\n"},
		{name: "decrement", args: []string{"update", tea.ID, "-d", "-1"}, wantOut: "Cart: 2 item(s), total USD 2.59\n"},
		{name: "unknown line is a no-op", args: []string{"update", tea.ID, "-d", "5", "--note", "hot"}, wantOut: "Cart: 2 item(s), total USD 2.59\n"},
		{name: "remove variant", args: []string{"remove", tea.ID, "-c", "no sugar"}, wantOut: "Cart: 1 item(s), total USD 1.30\n"},
		{name: "checkout needs a session", args: []string{"checkout", "--pickup", "12:30"}, wantErr: errNotSignedIn},
		{name: "orders need a session", args: []string{"orders"}, wantErr: errNotSignedIn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := env.run(t, tt.args...)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOut, out)
		})
	}

	// the cart survives restarts through the device cache
	out := env.mustRun(t, "cart")
	assert.Contains(t, out, "1 x Tea")
	assert.Contains(t, out, "USD 1.30")

	out = env.mustRun(t, "clear")
	assert.Equal(t, "Cart: 0 item(s), total USD 0.00\n", out)
	assert.Equal(t, "Your cart is empty.\n", env.mustRun(t, "cart"))
}

func Test_kiosk_signInMergesCart(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	tea := env.createItem(t, "Tea", "1.20", true)
	ada := testutil.CreateUser(t, env.userRepo, "Ada", "ada@canteen.test", "", user.RoleCustomer, true)

	// a line left in the account by an earlier session
	require.NoError(t, env.carts.InsertLine(ctx, ada.ID, tea.LineItem(1, "")))

	env.mustRun(t, "add", tea.ID, "-q", "2")
	env.mustRun(t, "add", tea.ID, "--note", "extra hot")

	mockPassword(t, "wrong")
	_, err := env.run(t, "signin", "-e", ada.Email)
	assert.Equal(t, user.ErrInvalidCredentials, errors.Cause(err))

	mockPassword(t, "Pwd-"+ada.Email)
	out := env.mustRun(t, "signin", "-e", "ADA@canteen.test")
	assert.Contains(t, out, "Signed in as Ada <ada@canteen.test>. Cart: 4 item(s)")

	// the merged lines are the account's now
	lines, err := env.carts.ListLines(ctx, ada.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	_, found, err := env.cache.Get(ctx, cart.LocalCacheKey)
	require.NoError(t, err)
	assert.False(t, found, "the device cart is cleared after the merge")

	// the session is restored on the next run and no merge happens twice
	assert.Equal(t, "Ada <ada@canteen.test> (customer)\n", env.mustRun(t, "whoami"))
	out = env.mustRun(t, "cart")
	assert.Contains(t, out, "3 x Tea")
	assert.Contains(t, out, "note: extra hot")

	// mutations go to the account cart
	env.mustRun(t, "update", tea.ID, "-d", "1")
	lines, err = env.carts.ListLines(ctx, ada.ID)
	require.NoError(t, err)
	var count int
	for _, li := range lines {
		count += li.Quantity
	}
	assert.Equal(t, 5, count)

	assert.Equal(t, "Signed out.\n", env.mustRun(t, "signout"))
	_, err = env.run(t, "whoami")
	assert.Equal(t, errNotSignedIn, errors.Cause(err))
	assert.Equal(t, "Your cart is empty.\n", env.mustRun(t, "cart"))
}

func Test_kiosk_checkout(t *testing.T) {
	env := setup(t)
	tea := env.createItem(t, "Tea", "1.20", true)
	ada := testutil.CreateUser(t, env.userRepo, "Ada", "ada@canteen.test", "", user.RoleCustomer, true)
	mockPassword(t, "Pwd-"+ada.Email)
	env.mustRun(t, "signin", "-e", ada.Email)

	_, err := env.run(t, "checkout", "--pickup", "12:30")
	assert.Equal(t, cart.ErrEmptyCart, errors.Cause(err))

	env.mustRun(t, "add", tea.ID, "-q", "2")

	_, err = env.run(t, "checkout", "-p", "iou", "--pickup", "12:30")
	var verrs validator.ValidationErrors
	assert.True(t, errors.As(err, &verrs), "%v", err)

	out := env.mustRun(t, "checkout", "-p", "card", "--pickup", "12:30")
	assert.Contains(t, out, "Status: pending")
	assert.Contains(t, out, "Pickup: 12:30, card")
	assert.Contains(t, out, "USD 2.59")

	history := env.orderSvc.History(context.Background(), ada.ID)
	require.Len(t, history, 1)
	o := history[0]
	assert.Contains(t, out, "Order "+o.ID)
	assert.True(t, decimal.RequireFromString("2.59").Equal(o.TotalAmount))
	assert.Equal(t, "card", o.PaymentMethod)

	assert.Equal(t, "Your cart is empty.\n", env.mustRun(t, "cart"))

	out = env.mustRun(t, "orders")
	assert.Contains(t, out, o.ID)
	assert.Contains(t, out, "pending")
}
