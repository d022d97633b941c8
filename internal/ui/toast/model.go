// Package toast shows the most recent pushed notification or chat line
// for a few seconds.
package toast

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/storefront/internal/theme"
)

// DefaultTTL is used when New is given a non-positive duration.
const DefaultTTL = 5 * time.Second

// ExpireMsg hides the toast shown with the same sequence number.
type ExpireMsg struct {
	Seq int
}

// Model holds at most one visible toast. A newer toast replaces the
// current one and restarts the timer.
type Model struct {
	title string
	body  string
	seq   int
	ttl   time.Duration
	width int
}

// New creates a toast model that hides each toast after ttl.
func New(ttl time.Duration, width int) Model {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return Model{ttl: ttl, width: width}
}

// Show displays a toast and returns the command that will expire it.
func (m *Model) Show(title, body string) tea.Cmd {
	m.seq++
	m.title = title
	m.body = body
	seq := m.seq
	return tea.Tick(m.ttl, func(time.Time) tea.Msg { return ExpireMsg{Seq: seq} })
}

// Visible reports whether a toast is showing.
func (m Model) Visible() bool {
	return m.body != "" || m.title != ""
}

// Update hides the toast when its own timer fires. Timers of replaced
// toasts are ignored.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(ExpireMsg); ok && msg.Seq == m.seq {
		m.title, m.body = "", ""
	}
	return m, nil
}

// Dismiss hides the toast immediately.
func (m *Model) Dismiss() {
	m.title, m.body = "", ""
}

// View renders the toast, or "" when none is showing.
func (m Model) View() string {
	if !m.Visible() {
		return ""
	}
	title := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorMagenta).Render(m.title)
	width := min(max(m.width/2, 30), m.width)
	return theme.ToastStyle.Width(max(width-2, 0)).Render(lipgloss.JoinVertical(lipgloss.Left, title, m.body))
}

// SetWidth updates the available width.
func (m *Model) SetWidth(width int) {
	m.width = width
}
