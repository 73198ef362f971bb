package tui

import (
	"strconv"
	"time"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"

	"github.com/go-authgate/recruitctl/recruiting"
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

// DashboardTable renders the dashboard figures.
func DashboardTable(d *recruiting.Dashboard) string {
	return newTable("Metric", "Value").
		Row("Open positions", strconv.Itoa(d.OpenPositions)).
		Row("Pending requests", strconv.Itoa(d.PendingRequests)).
		Row("Active candidates", strconv.Itoa(d.ActiveCandidates)).
		Row("Hires this month", strconv.Itoa(d.HiresThisMonth)).
		String()
}

// PositionsTable renders one row per position.
func PositionsTable(positions []recruiting.Position) string {
	t := newTable("ID", "Title", "Department", "Location", "Status", "Applicants", "Created")
	for _, p := range positions {
		t.Row(
			strconv.Itoa(p.ID),
			p.Title,
			p.Department,
			p.Location,
			p.Status,
			strconv.Itoa(p.Applicants),
			formatDate(p.CreatedAt),
		)
	}
	return t.String()
}

// RequestsTable renders one row per request.
func RequestsTable(requests []recruiting.Request) string {
	t := newTable("ID", "Type", "Title", "Department", "Requested By", "Status", "Created")
	for _, r := range requests {
		t.Row(
			strconv.Itoa(r.ID),
			string(r.Type),
			r.Title,
			r.Department,
			r.RequestedBy,
			r.Status,
			formatDate(r.CreatedAt),
		)
	}
	return t.String()
}
