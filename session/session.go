// Package session keeps the signed-in user of the recruiting backend: login,
// logout, token refresh and the authenticated HTTP client built on them.
package session

import (
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Backend endpoints used by the session flows.
const (
	loginPath      = "/api/auth/login/"
	logoutPath     = "/api/auth/logout/"
	checkLoginPath = "/api/auth/check-login/"
	refreshPath    = "/api/auth/token/refresh/"
)

// Keys of the flags kept in durable client storage.
const (
	FlagPersist = "persist"
	FlagIsAuth  = "isAuth"
)

// Persistence is the durable client storage holding the session flags.
// The access token is never written to it.
type Persistence interface {
	SetFlag(key string, on bool) error
	Flag(key string) bool
	ClearFlags(keys ...string) error
}

// Observer receives session events worth showing to the user.
type Observer interface {
	AccessTokenRejected()
	TokenRefreshedRetrying()
	// SessionExpired is a notice that stays until the user acts on it.
	SessionExpired(message string)
	LoggedOut()
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) AccessTokenRejected()    {}
func (NopObserver) TokenRefreshedRetrying() {}
func (NopObserver) SessionExpired(string)   {}
func (NopObserver) LoggedOut()              {}

type memoryFlags struct {
	mu    sync.Mutex
	flags map[string]bool
}

func (m *memoryFlags) SetFlag(key string, on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags[key] = on
	return nil
}

func (m *memoryFlags) Flag(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flags[key]
}

func (m *memoryFlags) ClearFlags(keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.flags, k)
	}
	return nil
}

// Session ties the auth store to the public client and implements refresh and logout.
type Session struct {
	cfg      Config
	store    *Store
	public   *Client
	persist  Persistence
	observer Observer
	log      zerolog.Logger
	refresh  singleflight.Group

	// gen changes whenever the signed-in session changes hands. A refresh
	// started under an older generation must not write to the store.
	mu  sync.Mutex
	gen uint64
}

// Option configures a Session.
type Option func(*Session)

// WithPersistence sets the durable flag storage. The default keeps flags in memory.
func WithPersistence(p Persistence) Option {
	return func(s *Session) { s.persist = p }
}

// WithObserver sets the receiver of session events.
func WithObserver(o Observer) Option {
	return func(s *Session) { s.observer = o }
}

// New creates a Session writing to store.
func New(cfg Config, store *Store, opts ...Option) (*Session, error) {
	public, err := NewPublicClient(cfg)
	if err != nil {
		return nil, err
	}
	s := &Session{
		cfg:      cfg,
		store:    store,
		public:   public,
		persist:  &memoryFlags{flags: make(map[string]bool)},
		observer: NopObserver{},
		log:      cfg.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Store returns the auth store the session writes to.
func (s *Session) Store() *Store {
	return s.store
}

// Public returns the unauthenticated client.
func (s *Session) Public() *Client {
	return s.public
}

// Persistence returns the durable flag storage.
func (s *Session) Persistence() Persistence {
	return s.persist
}

// NewAuthClient returns a client whose requests carry the current access token
// and go through the refresh-and-retry protocol. Close detaches it.
func (s *Session) NewAuthClient() (*Client, error) {
	base := s.cfg.Transport
	if base == nil {
		base = newBaseTransport()
	}
	t := &Transport{
		Base:     base,
		Source:   s.store,
		Refresh:  s.Refresh,
		Logout:   s.Logout,
		Observer: s.observer,
		Logger:   s.log,
	}
	c, err := newClient(s.cfg, t)
	if err != nil {
		return nil, err
	}
	c.detach = t.Detach
	return c, nil
}

func (s *Session) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// advance dispatches a and starts a new generation.
func (s *Session) advance(a Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.store.Dispatch(a)
}

// dispatchIfCurrent dispatches a only while gen is still the current generation.
func (s *Session) dispatchIfCurrent(gen uint64, a Action) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false
	}
	s.store.Dispatch(a)
	return true
}

// forgetCookies drops the refresh cookie from jars that support it.
func (s *Session) forgetCookies() {
	jar, ok := s.cfg.Jar.(interface{ Reset() error })
	if !ok {
		return
	}
	if err := jar.Reset(); err != nil {
		s.log.Warn().Err(err).Msg("failed to clear cookies")
	}
}

// clearFlags removes the persisted auth flags.
func (s *Session) clearFlags() {
	if err := s.persist.ClearFlags(FlagPersist, FlagIsAuth); err != nil {
		s.log.Warn().Err(err).Msg("failed to clear persisted session flags")
	}
}
