package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a failed call so callers never have to inspect raw responses.
type Kind string

const (
	KindNetwork      Kind = "network"      // no HTTP response
	KindUnauthorized Kind = "unauthorized" // 401
	KindValidation   Kind = "validation"   // any other 4xx
	KindUnknown      Kind = "unknown"      // 5xx or an unreadable response
	KindCanceled     Kind = "canceled"     // caller aborted the request
)

// Backend messages that mean "there is no session left to end".
const (
	detailNoCredentials = "Authentication credentials were not provided."
	errorNoRefreshToken = "No refresh token provided"
)

var (
	// ErrNotAuthenticated is returned when an operation needs a signed-in user.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNoRefreshToken indicates the backend has no refresh cookie for this client.
	ErrNoRefreshToken = errors.New("no refresh token provided")
)

// ErrorBody is the error payload shape used by the backend.
type ErrorBody struct {
	Error   string `json:"error,omitempty"`
	Detail  string `json:"detail,omitempty"`
	Message string `json:"message,omitempty"`
}

// Message returns the most specific human readable text in the body.
func (b *ErrorBody) Message() string {
	if b == nil {
		return ""
	}
	switch {
	case b.Error != "":
		return b.Error
	case b.Detail != "":
		return b.Detail
	default:
		return b.Message
	}
}

// Error is the tagged error returned by both clients.
type Error struct {
	Kind   Kind
	Method string
	Path   string
	Status int
	Body   *ErrorBody
	Raw    []byte
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Method != "" {
		fmt.Fprintf(&b, "%s %s: ", e.Method, e.Path)
	}
	switch {
	case e.Status != 0 && e.Body.Message() != "":
		fmt.Fprintf(&b, "%s (status %d): %s", e.Kind, e.Status, e.Body.Message())
	case e.Status != 0:
		fmt.Fprintf(&b, "%s (status %d)", e.Kind, e.Status)
	case e.Err != nil:
		fmt.Fprintf(&b, "%s: %v", e.Kind, e.Err)
	default:
		b.WriteString(string(e.Kind))
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the sentinels against backend error bodies.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotAuthenticated:
		return e.Kind == KindUnauthorized
	case ErrNoRefreshToken:
		return e.Kind == KindUnauthorized && e.Body != nil && e.Body.Error == errorNoRefreshToken
	}
	return false
}

// hasSessionMessage reports whether a 401 body carries an error or detail field.
func (e *Error) hasSessionMessage() bool {
	return e.Kind == KindUnauthorized && e.Body != nil && (e.Body.Error != "" || e.Body.Detail != "")
}

// alreadyLoggedOut reports whether a logout failure means the server holds no session.
func (e *Error) alreadyLoggedOut() bool {
	if e.Kind != KindUnauthorized || e.Body == nil {
		return false
	}
	return e.Body.Detail == detailNoCredentials || e.Body.Error == errorNoRefreshToken
}

// statusKind maps a non-2xx status code to its Kind.
func statusKind(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status >= 400 && status < 500:
		return KindValidation
	default:
		return KindUnknown
	}
}

// responseError builds an *Error from a non-2xx status and its body.
func responseError(method, path string, status int, body []byte) *Error {
	e := &Error{
		Kind:   statusKind(status),
		Method: method,
		Path:   path,
		Status: status,
		Raw:    body,
	}
	var eb ErrorBody
	if len(body) > 0 && json.Unmarshal(body, &eb) == nil {
		e.Body = &eb
	}
	return e
}

// transportError classifies an error that produced no response.
func transportError(ctx context.Context, method, path string, err error) *Error {
	kind := KindNetwork
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		kind = KindCanceled
	}
	return &Error{Kind: kind, Method: method, Path: path, Err: err}
}

// RequestError classifies err, returned while sending req without any response.
func RequestError(req *http.Request, err error) error {
	return transportError(req.Context(), req.Method, req.URL.Path, err)
}

// KindOf returns the Kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	return KindOf(err) == KindUnauthorized
}

// IsCanceled reports whether err comes from an aborted call rather than a real failure.
func IsCanceled(err error) bool {
	return KindOf(err) == KindCanceled || errors.Is(err, context.Canceled)
}
