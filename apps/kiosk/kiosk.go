package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/cart"
	"github.com/trezcool/canteen/core/menu"
	"github.com/trezcool/canteen/core/order"
	"github.com/trezcool/canteen/core/session"
	"github.com/trezcool/canteen/core/user"
)

var (
	errNotSignedIn     = errors.New("not signed in")
	errItemUnavailable = errors.New("item is not available")
)

type (
	// orderService is what the kiosk needs from the order service.
	orderService interface {
		cart.OrderSink
		GetByID(ctx context.Context, id string) (order.Order, error)
		History(ctx context.Context, userID string) []order.Order
	}

	deps struct {
		conf     *core.Config
		logger   core.Logger
		cache    core.Cache
		users    session.Authenticator
		menuSvc  menu.ServiceInterface
		orders   orderService
		carts    cart.RemoteStore
		validate *validator.Validate
	}

	// kiosk is a customer terminal: it owns the device cart and the session attached to it.
	kiosk struct {
		logger   core.Logger
		cache    core.Cache
		sessions *session.Manager
		engine   *cart.Engine
		menuSvc  menu.ServiceInterface
		orders   orderService
		validate *validator.Validate
		receipt  *receiptPrinter
	}
)

func newKiosk(d deps) (*kiosk, error) {
	vala.BeginValidation().Validate(
		vala.IsNotNil(d.conf, "conf"),
		vala.IsNotNil(d.logger, "logger"),
		vala.IsNotNil(d.cache, "cache"),
		vala.IsNotNil(d.menuSvc, "menuSvc"),
		vala.IsNotNil(d.orders, "orders"),
		vala.IsNotNil(d.validate, "validate"),
	).CheckAndPanic()

	rp, err := newReceiptPrinter(d.conf)
	if err != nil {
		return nil, err
	}
	sessions := session.NewManager(d.users, d.cache, d.conf, d.logger)
	return &kiosk{
		logger:   d.logger,
		cache:    d.cache,
		sessions: sessions,
		engine:   cart.NewEngine(cart.NewCacheStore(d.cache), d.carts, d.orders, sessions, d.logger),
		menuSvc:  d.menuSvc,
		orders:   d.orders,
		validate: d.validate,
		receipt:  rp,
	}, nil
}

// start restores the persisted session, then loads the cart from its authoritative store.
func (k *kiosk) start(ctx context.Context) {
	if _, _, err := k.sessions.Restore(ctx); err != nil {
		k.logger.Warn(fmt.Sprintf("kiosk: restoring session: %v", err), err)
	}
	if err := k.engine.Load(ctx); err != nil {
		k.logger.Warn(fmt.Sprintf("kiosk: loading cart: %v", err), err)
	}
}

func (k *kiosk) close() {
	k.engine.Close()
}

func (k *kiosk) listMenu(ctx context.Context, w io.Writer, f menu.Filter) error {
	items, err := k.menuSvc.ListItems(ctx, f)
	if err != nil {
		return errors.Wrap(err, "listing menu")
	}
	menu.PrefetchCache(ctx, k.cache, items, k.logger)

	if len(items) == 0 {
		fmt.Fprintln(w, "Nothing matches.")
		return nil
	}
	for _, it := range items {
		name := it.Name
		if it.IsVegetarian {
			name += " (v)"
		}
		if !it.IsAvailable {
			name += " [sold out]"
		}
		k.receipt.row(w, name, k.receipt.money(it.Price))
		fmt.Fprintf(w, "    %s\n", it.ID)
	}
	return nil
}

// item returns the menu item, falling back to the prefetched copy when the menu is unreachable.
func (k *kiosk) item(ctx context.Context, id string) (menu.Item, error) {
	it, err := k.menuSvc.GetItem(ctx, id)
	if err == nil {
		return it, nil
	}
	if errors.Cause(err) == menu.ErrNotFound {
		return menu.Item{}, err
	}
	if cached, ok := menu.CachedItem(ctx, k.cache, id); ok {
		k.logger.Warn(fmt.Sprintf("kiosk: menu unreachable, using cached item %s: %v", id, err), err)
		return cached, nil
	}
	return menu.Item{}, err
}

func (k *kiosk) add(ctx context.Context, itemID string, qty int, note string, customizations []string) (cart.LineItem, error) {
	it, err := k.item(ctx, strings.TrimSpace(itemID))
	if err != nil {
		return cart.LineItem{}, err
	}
	if !it.IsAvailable {
		return cart.LineItem{}, errors.Wrap(errItemUnavailable, it.Name)
	}
	li := it.LineItem(qty, strings.TrimSpace(note), customizations...)
	if err = k.engine.Add(li).Wait(ctx); err != nil {
		return cart.LineItem{}, err
	}
	return li, nil
}

func (k *kiosk) updateQuantity(ctx context.Context, key cart.Key, delta int) error {
	return k.engine.UpdateQuantity(key, delta).Wait(ctx)
}

func (k *kiosk) remove(ctx context.Context, key cart.Key) error {
	return k.engine.Remove(key).Wait(ctx)
}

func (k *kiosk) clear(ctx context.Context) error {
	return k.engine.Clear().Wait(ctx)
}

func (k *kiosk) printCart(w io.Writer) {
	k.receipt.Cart(w, k.engine.Items(), k.engine.Totals())
}

func (k *kiosk) signIn(ctx context.Context, email, pwd string) (session.Session, error) {
	return k.sessions.SignIn(ctx, core.CleanString(email, true /* lower */), pwd)
}

func (k *kiosk) signOut(ctx context.Context) error {
	return k.sessions.SignOut(ctx)
}

func (k *kiosk) currentUser() (user.User, error) {
	sess, ok := k.sessions.Current()
	if !ok {
		return user.User{}, errNotSignedIn
	}
	return sess.User, nil
}

func (k *kiosk) checkout(ctx context.Context, cr order.CheckoutRequest) (order.Order, error) {
	if _, ok := k.sessions.Current(); !ok {
		return order.Order{}, errNotSignedIn
	}
	if err := cr.Validate(k.validate); err != nil {
		return order.Order{}, err
	}
	orderID, err := k.engine.Submit(ctx, cr.Checkout())
	if err != nil {
		return order.Order{}, err
	}
	return k.orders.GetByID(ctx, orderID)
}

func (k *kiosk) history(ctx context.Context) ([]order.Order, error) {
	usr, err := k.currentUser()
	if err != nil {
		return nil, err
	}
	return k.orders.History(ctx, usr.ID), nil
}
