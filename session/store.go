package session

import (
	"sync"

	"golang.org/x/oauth2"
)

// ActionType names a state transition of the auth store.
type ActionType string

const (
	LoginStart    ActionType = "LOGIN_START"
	LoginSuccess  ActionType = "LOGIN_SUCCESS"
	LoginFailure  ActionType = "LOGIN_FAILURE"
	LogoutSuccess ActionType = "LOGOUT_SUCCESS"
	// TokenRefreshed stores a new access token: merged into the current user,
	// or carried by the user from the refresh response when nobody is signed in.
	TokenRefreshed ActionType = "TOKEN_REFRESHED"
	// UserSet replaces the user without touching the loading flags.
	UserSet ActionType = "USER_SET"
)

// Action is dispatched to the Store.
type Action struct {
	Type   ActionType
	User   *User
	Access string
}

// State is the read-only projection of the session handed to consumers.
type State struct {
	User            *User
	IsAuthenticated bool
	IsAuthChecking  bool
	IsLoading       bool
}

// InitialState is the state before the first session check resolves.
func InitialState() State {
	return State{IsAuthChecking: true}
}

// Reduce applies a to s and returns the next state.
func Reduce(s State, a Action) State {
	switch a.Type {
	case LoginStart:
		s.IsLoading = true
	case LoginSuccess:
		s.User = a.User.Clone()
		s.IsAuthenticated = s.User != nil
		s.IsLoading = false
		s.IsAuthChecking = false
	case LoginFailure:
		// The user is kept: a failed background check must not evict a signed-in user.
		s.IsLoading = false
		s.IsAuthChecking = false
	case LogoutSuccess:
		s.User = nil
		s.IsAuthenticated = false
		s.IsLoading = false
		s.IsAuthChecking = false
	case TokenRefreshed:
		switch {
		case s.User != nil:
			s.User = s.User.withAccess(a.Access)
		case a.User != nil:
			s.User = a.User.withAccess(a.Access)
		}
		s.IsAuthenticated = s.User != nil
	case UserSet:
		s.User = a.User.Clone()
		s.IsAuthenticated = s.User != nil
	}
	return s
}

// Store holds the auth state. Dispatch is the only way to change it.
type Store struct {
	mu        sync.RWMutex
	state     State
	listeners map[int]func(State)
	nextID    int
}

// NewStore creates a store in InitialState.
func NewStore() *Store {
	return &Store{
		state:     InitialState(),
		listeners: make(map[int]func(State)),
	}
}

// Dispatch reduces a into the current state and notifies subscribers.
func (s *Store) Dispatch(a Action) State {
	s.mu.Lock()
	s.state = Reduce(s.state, a)
	next := s.snapshotLocked()
	listeners := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
	return next
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() State {
	st := s.state
	st.User = s.state.User.Clone()
	return st
}

// User returns a copy of the current user, or nil.
func (s *Store) User() *User {
	return s.State().User
}

// AccessToken returns the current access token, or "".
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.User == nil {
		return ""
	}
	return s.state.User.Access
}

// Subscribe registers fn for every state change and returns a function removing it.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Token implements oauth2.TokenSource over the current access token.
func (s *Store) Token() (*oauth2.Token, error) {
	access := s.AccessToken()
	if access == "" {
		return nil, ErrNotAuthenticated
	}
	tok := &oauth2.Token{AccessToken: access, TokenType: "Bearer"}
	if exp, ok := AccessExpiry(access); ok {
		tok.Expiry = exp
	}
	return tok, nil
}

var _ oauth2.TokenSource = (*Store)(nil)
