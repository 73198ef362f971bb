package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Credentials are submitted by the login form.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	// Remember keeps the session across runs.
	Remember bool `json:"-"`
}

type loginResponse struct {
	Message string `json:"message"`
	User    *User  `json:"user"`
	Access  string `json:"access"`
}

type checkLoginResponse struct {
	User *User `json:"user"`
}

// Auth exposes the login, logout and session check flows on top of the store.
type Auth struct {
	s *Session
}

// NewAuth returns the auth flows for s.
func NewAuth(s *Session) *Auth {
	return &Auth{s: s}
}

// State returns the current auth state.
func (a *Auth) State() State {
	return a.s.store.State()
}

// Login signs in with creds. Errors are returned to the caller after the
// store has left the loading state; the current user is not touched on failure.
func (a *Auth) Login(ctx context.Context, creds Credentials) (*User, error) {
	store := a.s.store
	store.Dispatch(Action{Type: LoginStart})

	var out loginResponse
	err := a.s.public.Do(ctx, http.MethodPost, loginPath, creds, &out)
	if err == nil && (out.User == nil || out.Access == "") {
		err = &Error{
			Kind:   KindUnknown,
			Method: http.MethodPost,
			Path:   loginPath,
			Status: http.StatusOK,
			Err:    errors.New("login response has no user or access token"),
		}
	}
	if err != nil {
		store.Dispatch(Action{Type: LoginFailure})
		return nil, fmt.Errorf("login failed: %w", err)
	}

	user := out.User.withAccess(out.Access)
	a.s.advance(Action{Type: LoginSuccess, User: user})

	a.setFlag(FlagIsAuth, true)
	if creds.Remember {
		a.setFlag(FlagPersist, true)
	}
	return user.Clone(), nil
}

// Logout ends the session on the server and locally. A 401 saying there are no
// credentials or no refresh token means the server session is already gone and
// is treated as success. Other failures are returned and leave the state as is.
func (a *Auth) Logout(ctx context.Context) error {
	err := a.s.public.Do(ctx, http.MethodPost, logoutPath, nil, nil)
	if err != nil {
		var e *Error
		if !errors.As(err, &e) || !e.alreadyLoggedOut() {
			return fmt.Errorf("logout failed: %w", err)
		}
		a.s.log.Debug().Err(err).Msg("server session already ended")
	}

	a.s.advance(Action{Type: LogoutSuccess})
	a.s.clearFlags()
	a.s.forgetCookies()
	return nil
}

// CheckAuth verifies the session left by a previous run: check-login names the
// user, a silent refresh supplies the access token. A failure leaves any signed-in
// user in place. A cancelled ctx returns a canceled error without touching the store.
func (a *Auth) CheckAuth(ctx context.Context) (*User, error) {
	store := a.s.store

	var out checkLoginResponse
	if err := a.s.public.Do(ctx, http.MethodPost, checkLoginPath, nil, &out); err != nil {
		if IsCanceled(err) {
			return nil, err
		}
		store.Dispatch(Action{Type: LoginFailure})
		return nil, fmt.Errorf("session check failed: %w", err)
	}

	access, err := a.s.Refresh(ctx)
	if err != nil {
		if IsCanceled(err) {
			return nil, err
		}
		store.Dispatch(Action{Type: LoginFailure})
		return nil, fmt.Errorf("session check failed: %w", err)
	}

	user := store.User()
	if out.User != nil {
		user = out.User
	}
	if user == nil {
		store.Dispatch(Action{Type: LoginFailure})
		return nil, ErrNotAuthenticated
	}

	user = user.withAccess(access)
	store.Dispatch(Action{Type: LoginSuccess, User: user})
	a.setFlag(FlagIsAuth, true)
	return user.Clone(), nil
}

func (a *Auth) setFlag(key string, on bool) {
	if err := a.s.persist.SetFlag(key, on); err != nil {
		a.s.log.Warn().Err(err).Str("flag", key).Msg("failed to persist session flag")
	}
}
