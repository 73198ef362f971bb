package session

import (
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// backend is a fake recruiting API. Handlers left nil answer 404.
type backend struct {
	server *httptest.Server

	login   http.HandlerFunc
	logout  http.HandlerFunc
	check   http.HandlerFunc
	refresh http.HandlerFunc
	data    http.HandlerFunc

	loginCalls   atomic.Int32
	logoutCalls  atomic.Int32
	checkCalls   atomic.Int32
	refreshCalls atomic.Int32
	dataCalls    atomic.Int32
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{}
	mux := http.NewServeMux()
	route := func(path string, calls *atomic.Int32, h *http.HandlerFunc) {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			if *h == nil {
				http.NotFound(w, r)
				return
			}
			(*h)(w, r)
		})
	}
	route(loginPath, &b.loginCalls, &b.login)
	route(logoutPath, &b.logoutCalls, &b.logout)
	route(checkLoginPath, &b.checkCalls, &b.check)
	route(refreshPath, &b.refreshCalls, &b.refresh)
	route("/api/data/", &b.dataCalls, &b.data)

	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func reply(status int, v any) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, status, v)
	}
}

// recorder is an Observer remembering what it was told.
type recorder struct {
	mu        sync.Mutex
	rejected  int
	retrying  int
	expired   []string
	loggedOut int
}

func (r *recorder) AccessTokenRejected() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected++
}

func (r *recorder) TokenRefreshedRetrying() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retrying++
}

func (r *recorder) SessionExpired(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expired = append(r.expired, message)
}

func (r *recorder) LoggedOut() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loggedOut++
}

func (r *recorder) expiredCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.expired)
}

func (r *recorder) loggedOutCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loggedOut
}

func newTestSession(t *testing.T, b *backend, opts ...Option) (*Session, *recorder) {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	rec := &recorder{}
	opts = append([]Option{WithObserver(rec)}, opts...)
	s, err := New(Config{BaseURL: b.server.URL, Jar: jar}, NewStore(), opts...)
	require.NoError(t, err)
	return s, rec
}

// signIn puts a user holding access into the store.
func signIn(s *Session, access string) {
	s.Store().Dispatch(Action{Type: LoginSuccess, User: &User{
		ID:        1,
		Email:     "a@b.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Role:      "recruiter",
		Access:    access,
	}})
}

func bearer(r *http.Request) string {
	return r.Header.Get("Authorization")
}
