// Package recruiting reads the dashboard, positions and requests of the
// recruiting backend and submits new positions, all as the signed-in user.
package recruiting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	retry "github.com/appleboy/go-httpretry"
	"github.com/rs/zerolog"

	"github.com/go-authgate/recruitctl/session"
)

const (
	dashboardPath = "/api/dashboard/"
	positionsPath = "/api/positions/"
	requestsPath  = "/api/requests/"
)

// Doer sends a request, retrying it when the failure is transient.
type Doer interface {
	DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Service is the typed recruiting API over an authenticated client.
type Service struct {
	client *session.Client
	reads  Doer
	log    zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithReader replaces the retrying client used for GET requests.
func WithReader(d Doer) Option {
	return func(s *Service) { s.reads = d }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// New returns a Service sending through client, which should come from
// session.NewAuthClient so every call carries the current access token.
func New(client *session.Client, opts ...Option) (*Service, error) {
	s := &Service{client: client, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.reads == nil {
		// POSTs never go through this client.
		rc, err := retry.NewBackgroundClient(
			retry.WithHTTPClient(client.HTTPClient()),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create retry client: %w", err)
		}
		s.reads = rc
	}
	return s, nil
}

// Dashboard returns the summary figures.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	var d Dashboard
	if err := s.get(ctx, dashboardPath, nil, &d); err != nil {
		return nil, fmt.Errorf("failed to load dashboard: %w", err)
	}
	return &d, nil
}

// ListPositions returns the positions matching f.
func (s *Service) ListPositions(ctx context.Context, f PositionFilter) ([]Position, error) {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}

	var raw json.RawMessage
	if err := s.get(ctx, positionsPath, q, &raw); err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	return decodeList[Position](raw)
}

// ListRequests returns the requests of type t, or all of them when t is empty.
func (s *Service) ListRequests(ctx context.Context, t RequestType) ([]Request, error) {
	t, err := ParseRequestType(string(t))
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	if t != "" {
		q.Set("type", string(t))
	}

	var raw json.RawMessage
	if err := s.get(ctx, requestsPath, q, &raw); err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	return decodeList[Request](raw)
}

// CreatePosition submits d and returns the created position. It is sent once.
func (s *Service) CreatePosition(ctx context.Context, d PositionDraft) (*Position, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	var p Position
	if err := s.client.Do(ctx, http.MethodPost, positionsPath, d, &p); err != nil {
		return nil, fmt.Errorf("failed to create position: %w", err)
	}
	s.log.Info().Int("id", p.ID).Str("title", p.Title).Msg("position created")
	return &p, nil
}

func (s *Service) get(ctx context.Context, path string, q url.Values, out any) error {
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	req, err := s.client.NewRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	s.log.Debug().
		Str("path", req.URL.Path).
		Str("query", req.URL.RawQuery).
		Str("request_id", req.Header.Get(session.RequestIDHeader)).
		Msg("sending request")

	resp, err := s.reads.DoWithContext(ctx, req)
	if err != nil {
		return session.RequestError(req, err)
	}
	return session.DecodeResponse(resp, out)
}

// page is the paginated list envelope.
type page[T any] struct {
	Results []T `json:"results"`
}

// decodeList accepts both a bare JSON array and a {"results": [...]} envelope.
func decodeList[T any](raw json.RawMessage) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}

	if trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("failed to parse list: %w", err)
		}
		return items, nil
	}

	var p page[T]
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil, fmt.Errorf("failed to parse list: %w", err)
	}
	if p.Results == nil {
		return []T{}, nil
	}
	return p.Results, nil
}
