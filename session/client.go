package session

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RequestIDHeader correlates client calls with backend logs.
const RequestIDHeader = "X-Request-ID"

const defaultTimeout = 15 * time.Second

// Config is shared by the public and the authenticated client.
type Config struct {
	// BaseURL is the backend origin, e.g. https://hr.example.com.
	BaseURL string
	// Jar carries the HTTP-only refresh cookie between calls. Both clients must share it.
	Jar http.CookieJar
	// Timeout bounds every call; zero means 15 seconds.
	Timeout time.Duration
	// Transport is the underlying round tripper; nil means a tuned http.Transport.
	Transport http.RoundTripper
	Logger    zerolog.Logger
}

// Client is a JSON client bound to the backend base URL.
type Client struct {
	base   *url.URL
	http   *http.Client
	log    zerolog.Logger
	detach func()
}

func newBaseTransport() http.RoundTripper {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

func newClient(cfg Config, rt http.RoundTripper) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL cannot be empty")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Client{
		base: base,
		http: &http.Client{
			Transport: rt,
			Jar:       cfg.Jar,
			Timeout:   timeout,
		},
		log: cfg.Logger,
	}, nil
}

// NewPublicClient builds the client used for login, logout, session check and refresh.
// It attaches no credentials other than the cookie jar.
func NewPublicClient(cfg Config) (*Client, error) {
	rt := cfg.Transport
	if rt == nil {
		rt = newBaseTransport()
	}
	return newClient(cfg, rt)
}

// URL resolves path against the base URL.
func (c *Client) URL(path string) string {
	return c.base.String() + "/" + strings.TrimLeft(path, "/")
}

// HTTPClient exposes the configured *http.Client, e.g. for wrapping with a retrying client.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// NewRequest builds a request for path with in encoded as JSON when non-nil.
// The body is replayable so the authenticated transport can retry it.
func (c *Client) NewRequest(ctx context.Context, method, path string, in any) (*http.Request, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(RequestIDHeader, uuid.NewString())
	return req, nil
}

// Do sends a JSON request and decodes a 2xx response into out.
// Non-2xx responses and transport failures come back as *Error.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	req, err := c.NewRequest(ctx, method, path, in)
	if err != nil {
		return err
	}
	c.log.Debug().
		Str("method", method).
		Str("path", req.URL.Path).
		Str("request_id", req.Header.Get(RequestIDHeader)).
		Msg("sending request")

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(ctx, method, req.URL.Path, err)
	}
	return DecodeResponse(resp, out)
}

// DecodeResponse closes resp.Body and decodes a 2xx JSON body into out.
func DecodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()

	method, path := "", ""
	ctx := context.Background()
	if resp.Request != nil {
		method, path, ctx = resp.Request.Method, resp.Request.URL.Path, resp.Request.Context()
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(ctx, method, path, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if errors.Is(ctx.Err(), context.Canceled) {
			return transportError(ctx, method, path, ctx.Err())
		}
		return responseError(method, path, resp.StatusCode, body)
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{
			Kind:   KindUnknown,
			Method: method,
			Path:   path,
			Status: resp.StatusCode,
			Raw:    body,
			Err:    fmt.Errorf("failed to parse response: %w", err),
		}
	}
	return nil
}

// Close detaches the authenticated transport from the session. Requests sent
// afterwards carry no bearer token and never trigger a refresh.
// It is a no-op for the public client.
func (c *Client) Close() {
	if c.detach != nil {
		c.detach()
	}
}
