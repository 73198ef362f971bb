package tui

import (
	"fmt"
	"io"
	"sync"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/common-nighthawk/go-figure"

	"github.com/go-authgate/recruitctl/session"
)

// Displayer abstracts all status output of recruitctl. Command results go to
// stdout separately. It also receives the session events of the authenticated
// client, which may arrive from several goroutines.
type Displayer interface {
	session.Observer
	Banner()
	CheckingSession()
	SessionRestored(user *session.User)
	SessionMissing(err error)
	LoggingIn(email string)
	LoginOK(user *session.User)
	LoginFailed(err error)
	SessionSaved(path string)
	SessionSaveFailed(err error)
	Working(task string)
	Done(user *session.User, preview string, expiresIn time.Duration)
	Fatal(err error)
}

// PlainDisplayer writes plain text output to w.
// Used when stderr is not a TTY (pipes, CI, SSH without pty).
type PlainDisplayer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPlainDisplayer creates a PlainDisplayer that writes to w.
func NewPlainDisplayer(w io.Writer) *PlainDisplayer {
	return &PlainDisplayer{w: w}
}

func (p *PlainDisplayer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}

func (p *PlainDisplayer) Banner() {
	p.mu.Lock()
	defer p.mu.Unlock()
	figure.Write(p.w, figure.NewFigure("recruitctl", "small", true))
	fmt.Fprintln(p.w)
}

func (p *PlainDisplayer) CheckingSession() {
	p.printf("Checking saved session...\n")
}

func (p *PlainDisplayer) SessionRestored(user *session.User) {
	p.printf("Session restored for %s\n", user.Name())
}

func (p *PlainDisplayer) SessionMissing(err error) {
	if err != nil {
		p.printf("No active session: %v\n", err)
		return
	}
	p.printf("No active session\n")
}

func (p *PlainDisplayer) LoggingIn(email string) {
	p.printf("Signing in as %s...\n", email)
}

func (p *PlainDisplayer) LoginOK(user *session.User) {
	p.printf("Signed in as %s\n", user.Name())
}

func (p *PlainDisplayer) LoginFailed(err error) {
	p.printf("Sign in failed: %v\n", err)
}

func (p *PlainDisplayer) SessionSaved(path string) {
	p.printf("Session remembered in %s\n", path)
}

func (p *PlainDisplayer) SessionSaveFailed(err error) {
	p.printf("Warning: Failed to save session: %v\n", err)
}

func (p *PlainDisplayer) Working(task string) {
	p.printf("%s...\n", task)
}

func (p *PlainDisplayer) AccessTokenRejected() {
	p.printf("Access token rejected (401), refreshing...\n")
}

func (p *PlainDisplayer) TokenRefreshedRetrying() {
	p.printf("Token refreshed, retrying request...\n")
}

func (p *PlainDisplayer) SessionExpired(message string) {
	p.printf("Session expired: %s\nRun 'recruitctl login' to sign in again.\n", message)
}

func (p *PlainDisplayer) LoggedOut() {
	p.printf("Signed out\n")
}

func (p *PlainDisplayer) Done(user *session.User, preview string, expiresIn time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if user == nil {
		fmt.Fprintln(p.w, "Done")
		return
	}
	fmt.Fprintln(p.w, "\n========================================")
	fmt.Fprintf(p.w, "User: %s <%s>\n", user.Name(), user.Email)
	if user.Role != "" || user.Department != "" {
		fmt.Fprintf(p.w, "Role: %s, %s\n", user.Role, user.Department)
	}
	if preview != "" {
		fmt.Fprintf(p.w, "Access Token: %s...\n", preview)
	}
	if expiresIn > 0 {
		fmt.Fprintf(p.w, "Expires In: %s\n", expiresIn.Round(time.Second))
	}
	fmt.Fprintln(p.w, "========================================")
}

func (p *PlainDisplayer) Fatal(err error) {
	p.printf("Error: %v\n", err)
}

// NoopDisplayer is a no-op implementation used in tests.
type NoopDisplayer struct{}

func (NoopDisplayer) Banner()                                         {}
func (NoopDisplayer) CheckingSession()                                {}
func (NoopDisplayer) SessionRestored(_ *session.User)                 {}
func (NoopDisplayer) SessionMissing(_ error)                          {}
func (NoopDisplayer) LoggingIn(_ string)                              {}
func (NoopDisplayer) LoginOK(_ *session.User)                         {}
func (NoopDisplayer) LoginFailed(_ error)                             {}
func (NoopDisplayer) SessionSaved(_ string)                           {}
func (NoopDisplayer) SessionSaveFailed(_ error)                       {}
func (NoopDisplayer) Working(_ string)                                {}
func (NoopDisplayer) AccessTokenRejected()                            {}
func (NoopDisplayer) TokenRefreshedRetrying()                         {}
func (NoopDisplayer) SessionExpired(_ string)                         {}
func (NoopDisplayer) LoggedOut()                                      {}
func (NoopDisplayer) Done(_ *session.User, _ string, _ time.Duration) {}
func (NoopDisplayer) Fatal(_ error)                                   {}

// ProgramDisplayer sends BubbleTea messages to a running tea.Program.
type ProgramDisplayer struct {
	p *tea.Program
}

// NewProgramDisplayer creates a ProgramDisplayer that sends messages to p.
func NewProgramDisplayer(p *tea.Program) *ProgramDisplayer {
	return &ProgramDisplayer{p: p}
}

func (t *ProgramDisplayer) Banner() {
	t.p.Send(MsgBanner{})
}

func (t *ProgramDisplayer) CheckingSession() {
	t.p.Send(MsgCheckingSession{})
}

func (t *ProgramDisplayer) SessionRestored(user *session.User) {
	t.p.Send(MsgSessionRestored{User: user})
}

func (t *ProgramDisplayer) SessionMissing(err error) {
	t.p.Send(MsgSessionMissing{Err: err})
}

func (t *ProgramDisplayer) LoggingIn(email string) {
	t.p.Send(MsgLoggingIn{Email: email})
}

func (t *ProgramDisplayer) LoginOK(user *session.User) {
	t.p.Send(MsgLoginOK{User: user})
}

func (t *ProgramDisplayer) LoginFailed(err error) {
	t.p.Send(MsgLoginFailed{Err: err})
}

func (t *ProgramDisplayer) SessionSaved(path string) {
	t.p.Send(MsgSessionSaved{Path: path})
}

func (t *ProgramDisplayer) SessionSaveFailed(err error) {
	t.p.Send(MsgSessionSaveFailed{Err: err})
}

func (t *ProgramDisplayer) Working(task string) {
	t.p.Send(MsgWorking{Task: task})
}

func (t *ProgramDisplayer) AccessTokenRejected() {
	t.p.Send(MsgAccessTokenRejected{})
}

func (t *ProgramDisplayer) TokenRefreshedRetrying() {
	t.p.Send(MsgTokenRefreshedRetrying{})
}

func (t *ProgramDisplayer) SessionExpired(message string) {
	t.p.Send(MsgSessionExpired{Message: message})
}

func (t *ProgramDisplayer) LoggedOut() {
	t.p.Send(MsgLoggedOut{})
}

func (t *ProgramDisplayer) Done(user *session.User, preview string, expiresIn time.Duration) {
	t.p.Send(MsgDone{User: user, Preview: preview, ExpiresIn: expiresIn})
}

func (t *ProgramDisplayer) Fatal(err error) {
	t.p.Send(MsgFatal{Err: err})
}
