package session

import (
	"context"
	"net/http"
)

// Logout ends the session. The server call is best effort; the local user,
// the persisted flags and the refresh cookie are cleared whatever it returns.
// Calling it while logged out only repeats the server call.
func (s *Session) Logout(ctx context.Context) {
	defer s.clearLocal()

	if err := s.public.Do(ctx, http.MethodPost, logoutPath, nil, nil); err != nil {
		s.log.Warn().Err(err).Msg("server logout failed")
	}
}

func (s *Session) clearLocal() {
	wasAuthenticated := s.store.State().IsAuthenticated
	s.advance(Action{Type: UserSet, User: nil})
	s.clearFlags()
	s.forgetCookies()
	if wasAuthenticated {
		s.observer.LoggedOut()
	}
}
