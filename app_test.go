package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-authgate/recruitctl/session"
	"github.com/go-authgate/recruitctl/tui"
)

const refreshCookie = "refresh_token"

// fakeHR is a minimal recruiting backend keeping its sessions in memory.
type fakeHR struct {
	server *httptest.Server

	mu       sync.Mutex
	seq      int
	refresh  map[string]bool // live refresh tokens
	access   map[string]bool // live access tokens
	password string
}

func newFakeHR(t *testing.T) *fakeHR {
	t.Helper()
	h := &fakeHR{
		refresh:  make(map[string]bool),
		access:   make(map[string]bool),
		password: "s3cret",
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login/", h.login)
	mux.HandleFunc("/api/auth/check-login/", h.checkLogin)
	mux.HandleFunc("/api/auth/token/refresh/", h.refreshToken)
	mux.HandleFunc("/api/auth/logout/", h.logout)
	mux.HandleFunc("/api/dashboard/", h.dashboard)
	h.server = httptest.NewServer(mux)
	t.Cleanup(h.server.Close)
	return h
}

func (h *fakeHR) user() map[string]any {
	return map[string]any{
		"id":         7,
		"email":      "grace@example.com",
		"first_name": "Grace",
		"last_name":  "Hopper",
		"role":       "recruiter",
	}
}

func (h *fakeHR) issue(w http.ResponseWriter) string {
	h.seq++
	rt := fmt.Sprintf("refresh-%d", h.seq)
	at := fmt.Sprintf("access-%d", h.seq)
	h.refresh[rt] = true
	h.access[at] = true
	http.SetCookie(w, &http.Cookie{Name: refreshCookie, Value: rt, Path: "/api/auth/", HttpOnly: true})
	return at
}

// revoke drops every live token, as a server restart or password change would.
func (h *fakeHR) revoke() {
	h.mu.Lock()
	defer h.mu.Unlock()
	clear(h.refresh)
	clear(h.access)
}

// expireAccess invalidates access tokens while keeping refresh tokens alive.
func (h *fakeHR) expireAccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	clear(h.access)
}

func (h *fakeHR) validRefresh(r *http.Request) (string, bool) {
	c, err := r.Cookie(refreshCookie)
	if err != nil {
		return "", false
	}
	return c.Value, h.refresh[c.Value]
}

func (h *fakeHR) login(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request"})
		return
	}
	if creds.Password != h.password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		return
	}
	h.mu.Lock()
	at := h.issue(w)
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"message": "Login successful", "user": h.user(), "access": at})
}

func (h *fakeHR) checkLogin(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	_, ok := h.validRefresh(r)
	h.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Authentication credentials were not provided."})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": h.user()})
}

func (h *fakeHR) refreshToken(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rt, ok := h.validRefresh(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "No refresh token provided"})
		return
	}
	delete(h.refresh, rt)
	writeJSON(w, http.StatusOK, map[string]any{"access": h.issue(w)})
}

func (h *fakeHR) logout(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	rt, ok := h.validRefresh(r)
	if ok {
		delete(h.refresh, rt)
	}
	h.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "No refresh token provided"})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: refreshCookie, Value: "", Path: "/api/auth/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (h *fakeHR) dashboard(w http.ResponseWriter, r *http.Request) {
	at := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	h.mu.Lock()
	ok := h.access[at]
	h.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Given token not valid for any token type"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"open_positions":    4,
		"pending_requests":  2,
		"active_candidates": 31,
		"hires_this_month":  1,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type appEnv struct {
	hr  *fakeHR
	cfg Config
}

func newAppEnv(t *testing.T) *appEnv {
	t.Helper()
	hr := newFakeHR(t)
	return &appEnv{
		hr: hr,
		cfg: Config{
			ServerURL: hr.server.URL,
			StateFile: filepath.Join(t.TempDir(), stateFileName),
			LogLevel:  "debug",
			Timeout:   5 * time.Second,
		},
	}
}

// open starts a fresh app against the same state file, like a new process would.
func (e *appEnv) open(t *testing.T, out *bytes.Buffer, format string) *app {
	t.Helper()
	a, err := newApp(e.cfg, zerolog.New(zerolog.NewTestWriter(t)), tui.NoopDisplayer{}, out, format)
	require.NoError(t, err)
	t.Cleanup(a.close)
	return a
}

var grace = session.Credentials{Email: "grace@example.com", Password: "s3cret"}

func TestApp_RememberedSessionSurvivesRestart(t *testing.T) {
	env := newAppEnv(t)
	ctx := context.Background()

	creds := grace
	creds.Remember = true
	first := env.open(t, &bytes.Buffer{}, "table")
	user, err := first.login(ctx, creds)
	require.NoError(t, err)
	assert.Equal(t, "Grace Hopper", user.Name())
	assert.NotEmpty(t, user.Access)
	assert.True(t, first.files.Flag(session.FlagPersist))
	assert.True(t, first.files.Flag(session.FlagIsAuth))

	var out bytes.Buffer
	second := env.open(t, &out, "json")
	svc, err := second.service(ctx)
	require.NoError(t, err)
	restored := second.sess.Store().User()
	require.NotNil(t, restored)
	assert.Equal(t, "grace@example.com", restored.Email)
	assert.NotEqual(t, user.Access, restored.Access, "restore refreshes the access token")

	d, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, d.OpenPositions)
	assert.Equal(t, 31, d.ActiveCandidates)

	require.NoError(t, second.print(d, func() string { return tui.DashboardTable(d) }))
	assert.JSONEq(t,
		`{"open_positions":4,"pending_requests":2,"active_candidates":31,"hires_this_month":1}`,
		out.String())
}

func TestApp_ExpiredAccessTokenIsRefreshed(t *testing.T) {
	env := newAppEnv(t)
	ctx := context.Background()

	a := env.open(t, &bytes.Buffer{}, "table")
	_, err := a.login(ctx, grace)
	require.NoError(t, err)
	before := a.sess.Store().User().Access

	env.hr.expireAccess()

	svc, err := a.service(ctx)
	require.NoError(t, err)
	d, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, d.PendingRequests)
	assert.NotEqual(t, before, a.sess.Store().User().Access)
}

func TestApp_LoginWithoutRememberIsNotKept(t *testing.T) {
	env := newAppEnv(t)
	ctx := context.Background()

	first := env.open(t, &bytes.Buffer{}, "table")
	_, err := first.login(ctx, grace)
	require.NoError(t, err)
	assert.False(t, first.files.Flag(session.FlagPersist))

	st, err := first.files.Load()
	require.NoError(t, err)
	assert.Empty(t, st.Cookies)

	second := env.open(t, &bytes.Buffer{}, "table")
	_, err = second.requireUser(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)
}

func TestApp_LoginFailure(t *testing.T) {
	env := newAppEnv(t)

	a := env.open(t, &bytes.Buffer{}, "table")
	_, err := a.login(context.Background(), session.Credentials{Email: "grace@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, session.IsUnauthorized(err))
	assert.Nil(t, a.sess.Store().User())
	assert.False(t, a.files.Flag(session.FlagIsAuth))
}

func TestApp_LogoutForgetsRememberedSession(t *testing.T) {
	env := newAppEnv(t)
	ctx := context.Background()

	creds := grace
	creds.Remember = true
	first := env.open(t, &bytes.Buffer{}, "table")
	_, err := first.login(ctx, creds)
	require.NoError(t, err)

	second := env.open(t, &bytes.Buffer{}, "table")
	_, err = second.requireUser(ctx)
	require.NoError(t, err)
	require.NoError(t, second.logout(ctx))
	assert.Nil(t, second.sess.Store().User())
	assert.False(t, second.files.Flag(session.FlagPersist))
	assert.False(t, second.files.Flag(session.FlagIsAuth))

	third := env.open(t, &bytes.Buffer{}, "table")
	_, err = third.requireUser(ctx)
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)

	// Logging out again is harmless.
	require.NoError(t, third.logout(ctx))
}

func TestApp_DeadSessionIsForgottenOnRestore(t *testing.T) {
	env := newAppEnv(t)
	ctx := context.Background()

	creds := grace
	creds.Remember = true
	first := env.open(t, &bytes.Buffer{}, "table")
	_, err := first.login(ctx, creds)
	require.NoError(t, err)

	env.hr.revoke()

	second := env.open(t, &bytes.Buffer{}, "table")
	_, err = second.service(ctx)
	require.Error(t, err)
	assert.True(t, session.IsUnauthorized(err))
	assert.False(t, second.files.Flag(session.FlagPersist))
	assert.False(t, second.files.Flag(session.FlagIsAuth))

	st, err := second.files.Load()
	require.NoError(t, err)
	assert.Empty(t, st.Cookies)
}

func TestApp_PrintTable(t *testing.T) {
	env := newAppEnv(t)
	var out bytes.Buffer
	a := env.open(t, &out, "table")

	require.NoError(t, a.print(map[string]string{"ignored": "in table mode"}, func() string {
		return "rendered table"
	}))
	assert.Equal(t, "rendered table\n", out.String())
}

func TestRun_ReportsCommandError(t *testing.T) {
	env := newAppEnv(t)
	boom := errors.New("boom")

	var (
		out   bytes.Buffer
		plain bytes.Buffer
	)
	err := run(
		context.Background(),
		env.cfg,
		zerolog.Nop(),
		tui.NewPlainDisplayer(&plain),
		&out,
		"table",
		func(ctx context.Context, a *app) error { return boom },
	)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, plain.String(), "boom")
	assert.Empty(t, out.String())
}
