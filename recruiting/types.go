package recruiting

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Dashboard is the summary shown after sign in.
type Dashboard struct {
	OpenPositions    int `json:"open_positions"`
	PendingRequests  int `json:"pending_requests"`
	ActiveCandidates int `json:"active_candidates"`
	HiresThisMonth   int `json:"hires_this_month"`
}

// Position is a job opening.
type Position struct {
	ID             int       `json:"id"`
	Title          string    `json:"title"`
	Department     string    `json:"department,omitempty"`
	Location       string    `json:"location,omitempty"`
	EmploymentType string    `json:"employment_type,omitempty"`
	Status         string    `json:"status,omitempty"`
	Applicants     int       `json:"applicants_count,omitempty"`
	CreatedAt      time.Time `json:"created_at,omitzero"`
}

// PositionFilter narrows ListPositions. Empty fields are not sent.
type PositionFilter struct {
	Status string
	Search string
}

// RequestType selects personnel requisition forms or position requests.
type RequestType string

const (
	RequestPRF      RequestType = "prf"
	RequestPosition RequestType = "position"
)

// ParseRequestType accepts "", "prf" and "position" in any case.
func ParseRequestType(s string) (RequestType, error) {
	switch t := RequestType(strings.ToLower(strings.TrimSpace(s))); t {
	case "", RequestPRF, RequestPosition:
		return t, nil
	default:
		return "", fmt.Errorf("unknown request type %q (want prf or position)", s)
	}
}

// Request is a PRF or a position request awaiting a decision.
type Request struct {
	ID          int         `json:"id"`
	Type        RequestType `json:"type"`
	Title       string      `json:"title"`
	Department  string      `json:"department,omitempty"`
	RequestedBy string      `json:"requested_by,omitempty"`
	Status      string      `json:"status,omitempty"`
	CreatedAt   time.Time   `json:"created_at,omitzero"`
}

// ErrTitleRequired is returned for a draft without a title.
var ErrTitleRequired = errors.New("position title is required")

// PositionDraft is an assembled create-position submission. Only the title is
// interpreted; the remaining sections go to the backend as they are.
type PositionDraft struct {
	Title    string
	Sections map[string]any
}

// Validate checks the draft before it is submitted.
func (d PositionDraft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return ErrTitleRequired
	}
	return nil
}

func (d PositionDraft) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Sections)+1)
	maps.Copy(out, d.Sections)
	out["title"] = d.Title
	return json.Marshal(out)
}

// LoadDraft reads a draft written as YAML or JSON.
func LoadDraft(r io.Reader) (PositionDraft, error) {
	var doc map[string]any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return PositionDraft{}, ErrTitleRequired
		}
		return PositionDraft{}, fmt.Errorf("failed to parse draft: %w", err)
	}

	sections, _ := jsonKeys(doc).(map[string]any)
	d := PositionDraft{Sections: sections}
	if title, ok := sections["title"].(string); ok {
		d.Title = title
	}
	delete(d.Sections, "title")
	if _, err := json.Marshal(d); err != nil {
		return PositionDraft{}, fmt.Errorf("draft cannot be sent as JSON: %w", err)
	}
	return d, d.Validate()
}

// jsonKeys turns the map[any]any values yaml produces for non-string keys
// into map[string]any, recursively.
func jsonKeys(v any) any {
	switch v := v.(type) {
	case map[string]any:
		for k, e := range v {
			v[k] = jsonKeys(e)
		}
		return v
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[fmt.Sprint(k)] = jsonKeys(e)
		}
		return out
	case []any:
		for i, e := range v {
			v[i] = jsonKeys(e)
		}
		return v
	default:
		return v
	}
}
