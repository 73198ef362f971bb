package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResponseError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantKind    Kind
		wantMessage string
	}{
		{"unauthorized detail", 401, `{"detail":"Authentication credentials were not provided."}`, KindUnauthorized, "Authentication credentials were not provided."},
		{"validation error", 400, `{"error":"Invalid credentials"}`, KindValidation, "Invalid credentials"},
		{"not found", 404, `{"detail":"Not found."}`, KindValidation, "Not found."},
		{"server error html", 502, `<html>bad gateway</html>`, KindUnknown, ""},
		{"empty body", 500, ``, KindUnknown, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := responseError("GET", "/api/x/", tt.status, []byte(tt.body))
			assert.Equal(t, tt.wantKind, err.Kind)
			assert.Equal(t, tt.status, err.Status)
			assert.Equal(t, tt.wantMessage, err.Body.Message())
			assert.Contains(t, err.Error(), fmt.Sprintf("status %d", tt.status))
		})
	}
}

func TestError_Sentinels(t *testing.T) {
	noRefresh := responseError("POST", refreshPath, 401, []byte(`{"error":"No refresh token provided"}`))
	assert.ErrorIs(t, noRefresh, ErrNoRefreshToken)
	assert.ErrorIs(t, noRefresh, ErrNotAuthenticated)
	assert.True(t, noRefresh.alreadyLoggedOut())
	assert.True(t, noRefresh.hasSessionMessage())

	expired := responseError("POST", refreshPath, 401, []byte(`{"detail":"Token is invalid or expired"}`))
	assert.NotErrorIs(t, expired, ErrNoRefreshToken)
	assert.False(t, expired.alreadyLoggedOut())
	assert.True(t, expired.hasSessionMessage())

	wrapped := fmt.Errorf("login failed: %w", responseError("POST", loginPath, 400, nil))
	assert.NotErrorIs(t, wrapped, ErrNotAuthenticated)
	assert.Equal(t, KindValidation, KindOf(wrapped))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestTransportError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	canceled := transportError(ctx, "GET", "/api/x/", ctx.Err())
	assert.Equal(t, KindCanceled, canceled.Kind)
	assert.True(t, IsCanceled(canceled))

	timeoutCtx, stop := context.WithTimeout(context.Background(), time.Nanosecond)
	defer stop()
	<-timeoutCtx.Done()
	timedOut := transportError(timeoutCtx, "GET", "/api/x/", timeoutCtx.Err())
	assert.Equal(t, KindNetwork, timedOut.Kind)
	assert.False(t, IsCanceled(timedOut))
}
