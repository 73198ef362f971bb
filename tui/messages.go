package tui

import (
	"time"

	"github.com/go-authgate/recruitctl/session"
)

// MsgBanner signals that the banner/title should be displayed.
type MsgBanner struct{}

// MsgCheckingSession signals that a saved session is being restored.
type MsgCheckingSession struct{}

// MsgSessionRestored signals that the saved session is valid again.
type MsgSessionRestored struct{ User *session.User }

// MsgSessionMissing signals that no usable session was found.
type MsgSessionMissing struct{ Err error }

// MsgLoggingIn signals that credentials were sent for email.
type MsgLoggingIn struct{ Email string }

// MsgLoginOK signals a successful sign in.
type MsgLoginOK struct{ User *session.User }

// MsgLoginFailed signals that the backend refused the credentials.
type MsgLoginFailed struct{ Err error }

// MsgSessionSaved signals that the session was remembered in the state file.
type MsgSessionSaved struct{ Path string }

// MsgSessionSaveFailed signals that the state file could not be written.
type MsgSessionSaveFailed struct{ Err error }

// MsgWorking signals that a backend call is in progress.
type MsgWorking struct{ Task string }

// MsgAccessTokenRejected signals that the access token was rejected (401).
type MsgAccessTokenRejected struct{}

// MsgTokenRefreshedRetrying signals that the token was refreshed and a retry is starting.
type MsgTokenRefreshedRetrying struct{}

// MsgSessionExpired signals that the refresh cookie is no longer accepted.
type MsgSessionExpired struct{ Message string }

// MsgLoggedOut signals that the local session was cleared.
type MsgLoggedOut struct{}

// MsgDone signals successful completion of the command.
type MsgDone struct {
	User      *session.User
	Preview   string
	ExpiresIn time.Duration
}

// MsgFatal signals a fatal error that should terminate the command.
type MsgFatal struct{ Err error }
