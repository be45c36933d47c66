package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/session"
)

var (
	ErrAuthRequired    = errors.New("authentication required")
	ErrInvalidItem     = errors.New("item id is required")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrEmptyCart       = errors.New("cart is empty")
)

// backing-store writes outlive the call that triggered them
var writeTimeout = 30 * time.Second

// State is the ownership state of the cart.
type State int

const (
	StateAnonymous State = iota
	StateMerging
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateMerging:
		return "merging"
	case StateAuthenticated:
		return "authenticated"
	}
	return "unknown"
}

type (
	// Identity is the session holder the engine follows.
	Identity interface {
		Current() (session.Session, bool)
		Subscribe(fn session.Listener) (unsubscribe func())
	}

	// Checkout is the customer supplied part of an order.
	Checkout struct {
		PaymentMethod       string
		PickupTime          string
		SpecialInstructions string
	}

	// Submission is what gets persisted as an order. Items is a private copy of the cart.
	Submission struct {
		UserID string
		Items  []LineItem
		Totals Totals
		Checkout
	}

	OrderSink interface {
		PlaceOrder(ctx context.Context, sub Submission) (orderID string, err error)
	}

	MergeResult struct {
		Updated  int
		Inserted int
		Failed   int
	}

	// Engine owns the in-memory cart of one device (or one request, server side).
	// Mutations update memory synchronously and return the pending backing-store write.
	Engine struct {
		local    LocalStore
		remote   RemoteStore
		orders   OrderSink
		identity Identity
		logger   core.Logger

		mu       sync.Mutex
		items    []LineItem
		state    State
		userID   string
		attachID string        // session ID of the last attach event
		merged   chan struct{} // closed once the merge of attachID settled
		dirty    bool          // anonymous cart newer than the local store

		localMu sync.Mutex // serializes local store writes

		unsubscribe func()
	}

	// target is where a mutation is mirrored, captured along with the mutation.
	target struct {
		state  State
		userID string
		merged chan struct{}
	}
)

func NewEngine(local LocalStore, remote RemoteStore, orders OrderSink, identity Identity, logger core.Logger) *Engine {
	vala.BeginValidation().Validate(
		vala.IsNotNil(local, "local"),
		vala.IsNotNil(remote, "remote"),
		vala.IsNotNil(orders, "orders"),
		vala.IsNotNil(identity, "identity"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	e := &Engine{
		local:    local,
		remote:   remote,
		orders:   orders,
		identity: identity,
		logger:   logger,
	}
	e.unsubscribe = identity.Subscribe(e.handleSessionEvent)
	return e
}

// Close stops following the identity.
func (e *Engine) Close() {
	e.unsubscribe()
}

func (e *Engine) handleSessionEvent(ctx context.Context, ev session.Event) {
	switch ev.Type {
	case session.EventSignedIn:
		_ = e.Load(ctx) // logged by Load
	case session.EventSignedOut:
		e.mu.Lock()
		if e.attachID == ev.Session.ID {
			e.resetLocked()
		}
		e.mu.Unlock()
	}
}

// resetLocked turns the cart into an empty anonymous cart. Remote rows are left alone.
func (e *Engine) resetLocked() {
	e.items = nil
	e.state = StateAnonymous
	e.userID = ""
	e.attachID = ""
	e.merged = nil
	e.dirty = false
}

// Load sets the cart from its authoritative store: the local store while anonymous,
// the remote rows once an identity is attached. The first Load of an attach event merges
// the local cart into the remote one and clears the local store.
// The cart is always left consistent; the returned error is informative only.
func (e *Engine) Load(ctx context.Context) error {
	if err := e.flushLocal(ctx); err != nil {
		e.logger.Error(fmt.Sprintf("cart.Load: flushing local cart: %v", err), err)
	}
	local, lerr := e.local.Load(ctx)
	if lerr != nil {
		e.logger.Error(fmt.Sprintf("cart.Load: %v", lerr), lerr)
		local = nil
	}

	sess, ok := e.identity.Current()
	if !ok {
		e.mu.Lock()
		e.resetLocked()
		e.items = local
		e.mu.Unlock()
		return lerr
	}

	if err := e.attach(ctx, sess, local); err != nil {
		return err
	}

	remote, err := e.remote.ListLines(ctx, sess.UserID())

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.attachID != sess.ID {
		// the identity changed meanwhile
		return nil
	}
	if err != nil {
		err = errors.Wrap(err, "fetching remote cart")
		e.logger.Error(fmt.Sprintf("cart.Load: %v", err), err, sess.User)
		e.items = Clone(local)
		return err
	}
	e.items = Normalize(remote)
	return lerr
}

// attach runs the Anonymous → Merging → Authenticated transition once per attach event.
// Late callers for the same event wait for the running merge.
func (e *Engine) attach(ctx context.Context, sess session.Session, local []LineItem) error {
	e.mu.Lock()
	if e.attachID == sess.ID {
		done := e.merged
		e.mu.Unlock()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if e.state == StateAnonymous && e.dirty {
		local = Clone(e.items)
	}
	done := make(chan struct{})
	e.state = StateMerging
	e.attachID = sess.ID
	e.userID = sess.UserID()
	e.merged = done
	e.dirty = false
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		if e.attachID == sess.ID {
			e.state = StateAuthenticated
		}
		e.mu.Unlock()
		close(done)
	}()

	if len(local) > 0 {
		res := e.Merge(ctx, sess.UserID(), local)
		e.logger.Info(
			fmt.Sprintf("cart merged: %d updated, %d inserted, %d failed", res.Updated, res.Inserted, res.Failed),
			sess.User,
		)
	}

	e.localMu.Lock()
	err := e.local.Clear(ctx)
	e.localMu.Unlock()
	if err != nil {
		e.logger.Error(fmt.Sprintf("cart.attach: %v", err), err, sess.User)
	}
	return nil
}

// Merge adds every local line to the remote cart of userID: quantities of matching rows
// are summed, missing rows are inserted. A failing line does not stop the others.
// Merging an empty cart is a no-op.
func (e *Engine) Merge(ctx context.Context, userID string, local []LineItem) MergeResult {
	var res MergeResult
	for _, li := range Normalize(Clone(local)) {
		inserted, err := e.addRemote(ctx, userID, li)
		switch {
		case err != nil:
			res.Failed++
			e.logger.Error(fmt.Sprintf("cart.Merge(%s): %v", li.ItemID, err), err)
		case inserted:
			res.Inserted++
		default:
			res.Updated++
		}
	}
	return res
}

// addRemote increments the matching remote row by li.Quantity or inserts li.
func (e *Engine) addRemote(ctx context.Context, userID string, li LineItem) (inserted bool, err error) {
	existing, err := e.remote.FindLine(ctx, userID, li.Key())
	if err != nil {
		if errors.Cause(err) != ErrLineNotFound {
			return false, errors.Wrap(err, "finding remote line")
		}
		return true, errors.Wrap(e.remote.InsertLine(ctx, userID, li), "inserting remote line")
	}
	return false, errors.Wrap(
		e.remote.UpdateLineQuantity(ctx, existing.ID, existing.Quantity+li.Quantity),
		"updating remote line",
	)
}

// setRemote sets the quantity of the matching remote row, inserting it when missing.
func (e *Engine) setRemote(ctx context.Context, userID string, li LineItem) error {
	existing, err := e.remote.FindLine(ctx, userID, li.Key())
	if err != nil {
		if errors.Cause(err) != ErrLineNotFound {
			return errors.Wrap(err, "finding remote line")
		}
		return errors.Wrap(e.remote.InsertLine(ctx, userID, li), "inserting remote line")
	}
	return errors.Wrap(e.remote.UpdateLineQuantity(ctx, existing.ID, li.Quantity), "updating remote line")
}

func (e *Engine) targetLocked() target {
	if e.state == StateAnonymous {
		e.dirty = true
	}
	return target{state: e.state, userID: e.userID, merged: e.merged}
}

// mirror runs the backing-store write of a mutation: the whole cart to the local store
// when anonymous, remoteFn once the merge settled otherwise. Failures are logged, never rolled back.
func (e *Engine) mirror(op string, tgt target, remoteFn func(ctx context.Context, userID string) error) *Sync {
	return runSync(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()

		var err error
		if tgt.state == StateAnonymous {
			err = e.flushLocal(ctx)
		} else {
			if err = waitMerged(ctx, tgt.merged); err == nil {
				err = remoteFn(ctx, tgt.userID)
			}
		}
		if err != nil {
			e.logger.Error(fmt.Sprintf("cart.%s: %v", op, err), err)
		}
		return err
	})
}

func waitMerged(ctx context.Context, merged chan struct{}) error {
	if merged == nil {
		return nil
	}
	select {
	case <-merged:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// flushLocal writes the current anonymous cart to the local store if it changed.
func (e *Engine) flushLocal(ctx context.Context) error {
	e.localMu.Lock()
	defer e.localMu.Unlock()

	e.mu.Lock()
	if e.state != StateAnonymous || !e.dirty {
		e.mu.Unlock()
		return nil
	}
	items := Clone(e.items)
	e.dirty = false
	e.mu.Unlock()

	if err := e.local.Save(ctx, items); err != nil {
		e.mu.Lock()
		if e.state == StateAnonymous {
			e.dirty = true
		}
		e.mu.Unlock()
		return err
	}
	return nil
}

// Add increments the line matching item's key by item.Quantity, or appends item.
func (e *Engine) Add(item LineItem) *Sync {
	if item.ItemID == "" {
		return doneSync(ErrInvalidItem)
	}
	if item.Quantity < 1 {
		return doneSync(ErrInvalidQuantity)
	}
	item = item.clone()

	e.mu.Lock()
	e.items = addLine(e.items, item)
	tgt := e.targetLocked()
	e.mu.Unlock()

	return e.mirror("Add", tgt, func(ctx context.Context, userID string) error {
		_, err := e.addRemote(ctx, userID, item)
		return err
	})
}

// UpdateQuantity adds delta to the quantity of the line matching key.
// A resulting quantity ≤ 0 removes the line; an unknown key is a no-op.
func (e *Engine) UpdateQuantity(key Key, delta int) *Sync {
	e.mu.Lock()
	i := indexOf(e.items, key)
	if i < 0 {
		e.mu.Unlock()
		return doneSync(nil)
	}
	qty := e.items[i].Quantity + delta
	if qty <= 0 {
		e.mu.Unlock()
		return e.Remove(key)
	}
	e.items[i].Quantity = qty
	line := e.items[i].clone()
	tgt := e.targetLocked()
	e.mu.Unlock()

	return e.mirror("UpdateQuantity", tgt, func(ctx context.Context, userID string) error {
		return e.setRemote(ctx, userID, line)
	})
}

// Remove drops the line matching key.
func (e *Engine) Remove(key Key) *Sync {
	e.mu.Lock()
	e.items = removeLine(e.items, key)
	tgt := e.targetLocked()
	e.mu.Unlock()

	return e.mirror("Remove", tgt, func(ctx context.Context, userID string) error {
		return errors.Wrap(e.remote.DeleteLine(ctx, userID, key), "deleting remote line")
	})
}

// Clear empties the cart, the local store and, when attached, the remote rows.
func (e *Engine) Clear() *Sync {
	e.mu.Lock()
	e.items = nil
	tgt := e.targetLocked()
	e.dirty = false
	e.mu.Unlock()

	return runSync(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()

		e.localMu.Lock()
		err := e.local.Clear(ctx)
		e.localMu.Unlock()

		if tgt.state != StateAnonymous {
			rerr := waitMerged(ctx, tgt.merged)
			if rerr == nil {
				rerr = errors.Wrap(e.remote.DeleteAll(ctx, tgt.userID), "deleting remote cart")
			}
			if err == nil {
				err = rerr
			}
		}
		if err != nil {
			e.logger.Error(fmt.Sprintf("cart.Clear: %v", err), err)
		}
		return err
	})
}

// Submit places an order from a snapshot of the cart, then clears the cart.
// The cart is left untouched when placing the order fails.
func (e *Engine) Submit(ctx context.Context, co Checkout) (string, error) {
	e.mu.Lock()
	state := e.state
	e.mu.Unlock()
	if state == StateAnonymous {
		if _, ok := e.identity.Current(); !ok {
			return "", ErrAuthRequired
		}
		if err := e.Load(ctx); err != nil {
			return "", errors.Wrap(err, "loading cart")
		}
	}

	e.mu.Lock()
	userID, merged := e.userID, e.merged
	e.mu.Unlock()
	if userID == "" {
		return "", ErrAuthRequired
	}
	if err := waitMerged(ctx, merged); err != nil {
		return "", err
	}

	e.mu.Lock()
	if e.userID != userID {
		e.mu.Unlock()
		return "", ErrAuthRequired
	}
	items := Clone(e.items)
	e.mu.Unlock()
	if len(items) == 0 {
		return "", ErrEmptyCart
	}

	orderID, err := e.orders.PlaceOrder(ctx, Submission{
		UserID:   userID,
		Items:    items,
		Totals:   ComputeTotals(items),
		Checkout: co,
	})
	if err != nil {
		return "", errors.Wrap(err, "placing order")
	}

	if err = e.Clear().Wait(ctx); err != nil {
		e.logger.Warn(fmt.Sprintf("cart.Submit: order %s placed but the cart was not cleared: %v", orderID, err), err)
	}
	return orderID, nil
}

// Items returns a copy of the cart lines.
func (e *Engine) Items() []LineItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Clone(e.items)
}

// Count is the number of units in the cart.
func (e *Engine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	var n int
	for _, li := range e.items {
		n += li.Quantity
	}
	return n
}

func (e *Engine) Totals() Totals {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ComputeTotals(e.items)
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

type staticIdentity struct {
	sess session.Session
}

// StaticIdentity is an Identity permanently attached to sess; server-side engines use it.
func StaticIdentity(sess session.Session) Identity {
	return &staticIdentity{sess: sess}
}

func (i staticIdentity) Current() (session.Session, bool) { return i.sess, true }
func (staticIdentity) Subscribe(session.Listener) func()  { return func() {} }
