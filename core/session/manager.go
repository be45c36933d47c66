// Package session holds the identity attached to a device: it signs users in and out,
// persists the session token in the device cache and notifies subscribers of every change.
package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/user"
)

// CacheKey is the device cache entry holding the session token.
const CacheKey = "canteen.session"

type EventType int

const (
	EventSignedIn EventType = iota + 1
	EventSignedOut
)

func (t EventType) String() string {
	switch t {
	case EventSignedIn:
		return "signed_in"
	case EventSignedOut:
		return "signed_out"
	}
	return "unknown"
}

type (
	// Session is an attached identity. ID identifies the sign-in event it came from.
	Session struct {
		ID        string
		User      user.User
		Token     string
		ExpiresAt time.Time
	}

	Event struct {
		Type    EventType
		Session Session // the session signed in or out
	}

	Listener func(ctx context.Context, ev Event)

	// Authenticator is the part of the user service the manager depends on.
	Authenticator interface {
		Authenticate(ctx context.Context, email, pwd string) (user.User, error)
		SignUp(ctx context.Context, nu user.NewUser) (user.User, error)
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Manager struct {
		users  Authenticator
		cache  core.Cache
		logger core.Logger
		issuer string
		secret []byte
		ttl    time.Duration

		mu      sync.RWMutex
		current *Session

		subsMu  sync.Mutex
		subs    map[int]Listener
		nextSub int
	}
)

func (s Session) UserID() string { return s.User.ID }

func NewManager(users Authenticator, cache core.Cache, conf *core.Config, logger core.Logger) *Manager {
	vala.BeginValidation().Validate(
		vala.IsNotNil(users, "users"),
		vala.IsNotNil(cache, "cache"),
		vala.IsNotNil(conf, "conf"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &Manager{
		users:  users,
		cache:  cache,
		logger: logger,
		issuer: conf.AppName,
		secret: []byte(conf.SecretKey),
		ttl:    conf.Server.JWTExpirationDelta,
		subs:   make(map[int]Listener),
	}
}

// Current returns the attached session, if any.
func (m *Manager) Current() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return Session{}, false
	}
	return *m.current, true
}

// Subscribe registers fn to be called, in registration order, after every session change.
func (m *Manager) Subscribe(fn Listener) (unsubscribe func()) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			m.subsMu.Lock()
			delete(m.subs, id)
			m.subsMu.Unlock()
		})
	}
}

func (m *Manager) notify(ctx context.Context, ev Event) {
	m.subsMu.Lock()
	ids := make([]int, 0, len(m.subs))
	for id := range m.subs {
		ids = append(ids, id)
	}
	listeners := make([]Listener, 0, len(ids))
	sort.Ints(ids)
	for _, id := range ids {
		listeners = append(listeners, m.subs[id])
	}
	m.subsMu.Unlock()

	for _, fn := range listeners {
		fn(ctx, ev)
	}
}

// SignIn authenticates the credentials and attaches the new session.
func (m *Manager) SignIn(ctx context.Context, email, pwd string) (Session, error) {
	if len(m.secret) == 0 {
		return Session{}, ErrNotConfigured
	}
	usr, err := m.users.Authenticate(ctx, email, pwd)
	if err != nil {
		return Session{}, err
	}

	claims := NewClaims(usr, m.issuer, uuid.New().String(), m.ttl)
	token, err := SignToken(claims, m.secret)
	if err != nil {
		return Session{}, errors.Wrap(err, "signing token")
	}
	sess := Session{ID: claims.Id, User: usr, Token: token, ExpiresAt: time.Unix(claims.ExpiresAt, 0)}
	if err = m.cache.Set(ctx, CacheKey, []byte(token)); err != nil {
		m.logger.Error(fmt.Sprintf("session.SignIn: persisting token: %v", err), err, usr)
	}
	m.attach(ctx, sess)
	return sess, nil
}

// SignUp registers a customer. The account has to confirm its email before signing in.
func (m *Manager) SignUp(ctx context.Context, nu user.NewUser) (user.User, error) {
	if len(m.secret) == 0 {
		return user.User{}, ErrNotConfigured
	}
	return m.users.SignUp(ctx, nu)
}

// SignOut detaches the current session. Signing out without a session is a no-op.
func (m *Manager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	prev := m.current
	m.current = nil
	m.mu.Unlock()

	err := m.cache.Delete(ctx, CacheKey)
	if prev != nil {
		m.notify(ctx, Event{Type: EventSignedOut, Session: *prev})
	}
	return errors.Wrap(err, "deleting session token")
}

// Restore re-attaches the session persisted in the device cache.
// An expired or invalid token is dropped from the cache.
func (m *Manager) Restore(ctx context.Context) (Session, bool, error) {
	if len(m.secret) == 0 {
		return Session{}, false, ErrNotConfigured
	}
	token, found, err := m.cache.Get(ctx, CacheKey)
	if err != nil {
		return Session{}, false, errors.Wrap(err, "reading session token")
	}
	if !found {
		return Session{}, false, nil
	}

	claims, err := ParseToken(string(token), m.secret)
	if err != nil {
		_ = m.cache.Delete(ctx, CacheKey)
		return Session{}, false, nil
	}
	usr, err := m.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			_ = m.cache.Delete(ctx, CacheKey)
			return Session{}, false, nil
		}
		return Session{}, false, errors.Wrap(err, "finding session user")
	}
	if !usr.IsActive {
		_ = m.cache.Delete(ctx, CacheKey)
		return Session{}, false, user.ErrAccountDeactivated
	}

	sess := Session{ID: claims.Id, User: usr, Token: string(token), ExpiresAt: time.Unix(claims.ExpiresAt, 0)}
	m.attach(ctx, sess)
	return sess, true, nil
}

func (m *Manager) attach(ctx context.Context, sess Session) {
	m.mu.Lock()
	prev := m.current
	m.current = &sess
	m.mu.Unlock()

	if prev != nil && prev.ID != sess.ID {
		m.notify(ctx, Event{Type: EventSignedOut, Session: *prev})
	}
	m.notify(ctx, Event{Type: EventSignedIn, Session: sess})
}
