package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// sentKey marks a request that has already been retried after a refresh.
type sentKey struct{}

func markSent(ctx context.Context) context.Context {
	return context.WithValue(ctx, sentKey{}, true)
}

func wasSent(ctx context.Context) bool {
	sent, _ := ctx.Value(sentKey{}).(bool)
	return sent
}

// Transport attaches the bearer token and runs the refresh-and-retry protocol:
// a 401 triggers one refresh and one retry of the request. A second 401, or a
// failed refresh, logs the session out and hands the 401 back to the caller.
//
// The token is read from Source on every request, so a refresh done by another
// request is picked up without rebuilding the transport.
type Transport struct {
	Base     http.RoundTripper
	Source   oauth2.TokenSource
	Refresh  func(ctx context.Context) (string, error)
	Logout   func(ctx context.Context)
	Observer Observer
	Logger   zerolog.Logger

	detached atomic.Bool
}

// Detach turns t into a pass-through to Base.
func (t *Transport) Detach() {
	t.detached.Store(true)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base == nil {
		return http.DefaultTransport
	}
	return t.Base
}

func (t *Transport) observer() Observer {
	if t.Observer == nil {
		return NopObserver{}
	}
	return t.Observer
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.detached.Load() {
		return t.base().RoundTrip(req)
	}

	ctx := req.Context()
	out := req.Clone(ctx)
	if out.Header.Get("Authorization") == "" && t.Source != nil {
		if tok, err := t.Source.Token(); err == nil {
			tok.SetAuthHeader(out)
		}
	}

	resp, err := t.base().RoundTrip(out)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	log := t.Logger.With().Str("method", req.Method).Str("path", req.URL.Path).Logger()

	if wasSent(ctx) {
		log.Warn().Msg("request rejected again after token refresh, logging out")
		t.logout(ctx)
		return resp, nil
	}

	// Keep the 401 readable: it is what the caller gets if the refresh fails.
	resp, err = bufferBody(resp)
	if err != nil {
		return nil, err
	}

	t.observer().AccessTokenRejected()
	access, err := t.refresh(ctx)
	if err != nil {
		if IsCanceled(err) {
			return resp, nil
		}
		log.Warn().Err(err).Msg("token refresh failed, logging out")
		t.logout(ctx)
		return resp, nil
	}

	retry, err := rewind(markSent(ctx), req)
	if err != nil {
		log.Warn().Err(err).Msg("request cannot be retried")
		return resp, nil
	}
	retry.Header.Set("Authorization", "Bearer "+access)

	t.observer().TokenRefreshedRetrying()
	return t.RoundTrip(retry)
}

func (t *Transport) refresh(ctx context.Context) (string, error) {
	if t.Refresh == nil {
		return "", errors.New("no refresh function configured")
	}
	return t.Refresh(ctx)
}

func (t *Transport) logout(ctx context.Context) {
	if t.Logout != nil {
		t.Logout(ctx)
	}
}

// rewind copies req onto ctx with a fresh body.
func rewind(ctx context.Context, req *http.Request) (*http.Request, error) {
	out := req.Clone(ctx)
	if req.Body == nil || req.Body == http.NoBody {
		return out, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("request body is not replayable")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	out.Body = body
	return out, nil
}

func bufferBody(resp *http.Response) (*http.Response, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(data))
	return resp, nil
}
