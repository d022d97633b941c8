// Package chat renders the support-chat scrollback.
package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/storefront/internal/model"
	"github.com/nhle/storefront/internal/theme"
)

// Model is a scrollable view of chat lines, oldest first.
type Model struct {
	viewport viewport.Model
	count    int
}

// New creates an empty chat view.
func New(width, height int) Model {
	vp := viewport.New(width, height)
	vp.SetContent(theme.HelpStyle.Render("No messages yet"))
	return Model{viewport: vp}
}

// SetMessages replaces the scrollback. The view follows the newest line
// when it was already at the bottom.
func (m *Model) SetMessages(msgs []model.ChatMessage) {
	follow := m.viewport.AtBottom() || m.count == 0
	m.count = len(msgs)
	if len(msgs) == 0 {
		m.viewport.SetContent(theme.HelpStyle.Render("No messages yet"))
		return
	}
	m.viewport.SetContent(Format(msgs))
	if follow {
		m.viewport.GotoBottom()
	}
}

// Format renders messages one per line as "15:04 sender: text".
func Format(msgs []model.ChatMessage) string {
	sender := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorBlue)
	stamp := lipgloss.NewStyle().Foreground(theme.ColorGray)

	lines := make([]string, len(msgs))
	for i, msg := range msgs {
		who := msg.Sender
		if who == "" {
			who = "support"
		}
		ts := ""
		if !msg.SentAt.IsZero() {
			ts = stamp.Render(msg.SentAt.Local().Format("15:04")) + " "
		}
		lines[i] = ts + sender.Render(who+":") + " " + msg.Text
	}
	return strings.Join(lines, "\n")
}

// Len returns the number of messages shown.
func (m Model) Len() int { return m.count }

// Update handles scrolling.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the scrollback.
func (m Model) View() string {
	return m.viewport.View()
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.viewport.Width = width
	m.viewport.Height = height
}
