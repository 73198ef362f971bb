package tui

import (
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/go-authgate/recruitctl/session"
)

// state represents the current phase of the command.
type state int

const (
	stateInit      state = iota
	stateChecking        // restoring a saved session
	stateLoggingIn       // credentials sent
	stateWorking         // backend call in flight
	stateSuccess         // all done
	stateError           // fatal error
)

// statusKind distinguishes line types in the status log.
type statusKind int

const (
	statusOK   statusKind = iota
	statusWarn            // warning / non-fatal
	statusInfo            // neutral info
)

// statusLine is one row in the scrolling status log.
type statusLine struct {
	kind statusKind
	text string
}

// Model is the BubbleTea model for the recruitctl TUI.
type Model struct {
	state   state
	spinner spinner.Model
	width   int
	height  int

	task  string
	email string

	// Success / error display
	user         *session.User
	tokenPreview string
	expiresIn    time.Duration
	errMsg       string

	// Sticky until the process exits: the user has to sign in again.
	expired string

	// Scrolling status log shown below the main panel
	statusLines []statusLine
}

// Lipgloss styles, defined once at package level.
var (
	styleTitleBox = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("99")).
			Padding(0, 2)

	styleExpiredBox = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("196")).
			Padding(0, 2)

	styleOK   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleWarn = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleErr  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleDim  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	styleBold = lipgloss.NewStyle().Bold(true)
)

// NewModel creates the initial TUI model.
func NewModel() Model {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))),
	)
	return Model{
		state:   stateInit,
		spinner: s,
	}
}

// Init starts the spinner animation.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyPressMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil

	// ── Session messages ─────────────────────────────────────────────────────

	case MsgBanner:
		return m, nil

	case MsgCheckingSession:
		m.state = stateChecking
		return m, nil

	case MsgSessionRestored:
		m.user = msg.User
		m.addStatus(statusOK, "Session restored for "+msg.User.Name())
		return m, nil

	case MsgSessionMissing:
		if msg.Err != nil {
			m.addStatus(statusInfo, fmt.Sprintf("No active session: %v", msg.Err))
		} else {
			m.addStatus(statusInfo, "No active session")
		}
		return m, nil

	case MsgLoggingIn:
		m.email = msg.Email
		m.state = stateLoggingIn
		return m, nil

	case MsgLoginOK:
		m.user = msg.User
		m.expired = ""
		m.addStatus(statusOK, "Signed in as "+msg.User.Name())
		return m, nil

	case MsgLoginFailed:
		m.addStatus(statusWarn, fmt.Sprintf("Sign in failed: %v", msg.Err))
		return m, nil

	case MsgSessionSaved:
		m.addStatus(statusOK, "Session remembered in "+msg.Path)
		return m, nil

	case MsgSessionSaveFailed:
		m.addStatus(statusWarn, fmt.Sprintf("Warning: failed to save session: %v", msg.Err))
		return m, nil

	case MsgWorking:
		m.task = msg.Task
		m.state = stateWorking
		return m, nil

	case MsgAccessTokenRejected:
		m.addStatus(statusWarn, "Access token rejected (401), refreshing...")
		return m, nil

	case MsgTokenRefreshedRetrying:
		m.addStatus(statusOK, "Token refreshed, retrying request...")
		return m, nil

	case MsgSessionExpired:
		m.expired = msg.Message
		return m, nil

	case MsgLoggedOut:
		m.user = nil
		m.addStatus(statusInfo, "Signed out")
		return m, nil

	case MsgDone:
		m.user = msg.User
		m.tokenPreview = msg.Preview
		m.expiresIn = msg.ExpiresIn
		m.state = stateSuccess
		return m, nil

	case MsgFatal:
		m.errMsg = msg.Err.Error()
		m.state = stateError
		return m, nil
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() tea.View {
	switch m.state {
	case stateSuccess:
		return tea.NewView(m.viewExpired() + m.viewSuccess())
	case stateError:
		return tea.NewView(m.viewExpired() + m.viewError())
	default:
		return tea.NewView(m.viewExpired() + m.viewMain())
	}
}

// viewMain is shown while the command is running.
func (m Model) viewMain() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleTitleBox.Render("  HR Recruiting  "))
	b.WriteString("\n\n")

	b.WriteString(m.spinner.View())
	switch m.state {
	case stateChecking:
		b.WriteString(" Checking saved session...\n")
	case stateLoggingIn:
		b.WriteString(" Signing in as " + m.email + "...\n")
	case stateWorking:
		b.WriteString(" " + m.task + "...\n")
	default:
		b.WriteString(" Initializing...\n")
	}

	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewSuccess is shown when the command finished.
func (m Model) viewSuccess() string {
	var b strings.Builder

	b.WriteString("\n")
	if m.user == nil {
		b.WriteString(styleOK.Render("  ✓ Done"))
		b.WriteString("\n")
		b.WriteString(m.viewStatusLog())
		return b.String()
	}

	b.WriteString(styleOK.Render("  ✓ Signed in"))
	b.WriteString("\n\n")

	b.WriteString(styleBold.Render("User:         "))
	b.WriteString(m.user.Name() + " <" + m.user.Email + ">\n")

	if m.user.Role != "" {
		b.WriteString(styleBold.Render("Role:         "))
		b.WriteString(m.user.Role + "\n")
	}
	if m.user.Department != "" {
		b.WriteString(styleBold.Render("Department:   "))
		b.WriteString(m.user.Department + "\n")
	}

	if m.tokenPreview != "" {
		b.WriteString(styleBold.Render("Access Token: "))
		b.WriteString(m.tokenPreview + "...\n")
	}
	if m.expiresIn > 0 {
		b.WriteString(styleBold.Render("Expires In:   "))
		b.WriteString(formatDuration(m.expiresIn) + "\n")
	}

	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewError is shown when a fatal error occurs.
func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleErr.Render("  ✗ Command failed"))
	b.WriteString("\n\n")
	b.WriteString(styleDim.Render("  " + m.errMsg))
	b.WriteString("\n")

	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewExpired renders the session-expired notice above every view.
func (m Model) viewExpired() string {
	if m.expired == "" {
		return ""
	}
	return "\n" + styleExpiredBox.Render(
		"Session expired: "+m.expired+"\nRun 'recruitctl login' to sign in again.",
	) + "\n"
}

// viewStatusLog renders the scrolling status log.
func (m Model) viewStatusLog() string {
	if len(m.statusLines) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")

	for _, line := range m.statusLines {
		switch line.kind {
		case statusOK:
			b.WriteString(styleOK.Render("  ✓ " + line.text))
		case statusWarn:
			b.WriteString(styleWarn.Render("  ⚠ " + line.text))
		default:
			b.WriteString(styleDim.Render("  · " + line.text))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// addStatus appends a line to the status log.
func (m *Model) addStatus(kind statusKind, text string) {
	m.statusLines = append(m.statusLines, statusLine{kind: kind, text: text})
}

// formatDuration formats a duration as "Xm Ys" or "Xs".
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
