package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

const sessionExpiredMessage = "Your session has expired. Please log in again."

type refreshResponse struct {
	Access string `json:"access"`
	User   *User  `json:"user,omitempty"`
}

// Refresh exchanges the refresh cookie for a new access token and stores it.
// Any error means the refresh failed and has been logged, except a canceled
// one: the caller's ctx ended first and the shared refresh goes on without it.
// Concurrent callers share one in-flight refresh. A result arriving after the
// session was logged out or replaced is discarded.
func (s *Session) Refresh(ctx context.Context) (string, error) {
	ch := s.refresh.DoChan("refresh", func() (any, error) {
		// The shared call must survive the caller that started it going away.
		return s.refreshOnce(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		// The caller gave up, by cancel or deadline. That is not a failed refresh.
		return "", &Error{Kind: KindCanceled, Method: http.MethodPost, Path: refreshPath, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (s *Session) refreshOnce(ctx context.Context) (string, error) {
	gen := s.generation()
	var out refreshResponse
	if err := s.public.Do(ctx, http.MethodPost, refreshPath, nil, &out); err != nil {
		s.log.Warn().Err(err).Msg("token refresh failed")

		var e *Error
		if errors.As(err, &e) && e.hasSessionMessage() && !errors.Is(e, ErrNoRefreshToken) {
			s.observer.SessionExpired(sessionExpiredMessage)
		}
		return "", err
	}

	if out.Access == "" {
		err := &Error{
			Kind:   KindUnknown,
			Method: http.MethodPost,
			Path:   refreshPath,
			Status: http.StatusOK,
			Err:    errors.New("refresh response has no access token"),
		}
		s.log.Warn().Err(err).Msg("token refresh failed")
		return "", err
	}

	if !s.dispatchIfCurrent(gen, Action{Type: TokenRefreshed, Access: out.Access, User: out.User}) {
		s.log.Debug().Msg("session changed during token refresh, discarding result")
		if s.store.User() == nil {
			// The response re-set the refresh cookie after logout cleared it.
			s.forgetCookies()
		}
		return "", fmt.Errorf("refresh finished after the session ended: %w", ErrNotAuthenticated)
	}
	s.log.Debug().Msg("access token refreshed")
	return out.Access, nil
}
