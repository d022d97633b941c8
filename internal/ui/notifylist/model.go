// Package notifylist is the dropdown view of the local notification set.
// It renders what the notification center holds and turns key presses
// into requests; it never tracks read state itself.
package notifylist

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/storefront/internal/keys"
	"github.com/nhle/storefront/internal/model"
	"github.com/nhle/storefront/internal/theme"
)

// OpenMsg asks for a notification to be marked read and its anchor shown.
type OpenMsg struct {
	ID     string
	Anchor string
}

// MarkAllMsg asks for every notification to be marked read.
type MarkAllMsg struct{}

// DismissMsg asks for a notification to be hidden locally.
type DismissMsg struct {
	ID string
}

// Model is the notification list view component.
type Model struct {
	list   list.Model
	keys   *keys.KeyMap
	unread int
	width  int
	height int
}

// New creates an empty notification list.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height)
	l.Title = "Notifications"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.SetStatusBarItemName("notification", "notifications")
	l.Styles.Title = theme.HeaderStyle

	return Model{
		list:   l,
		keys:   k,
		width:  width,
		height: height,
	}
}

// SetNotifications replaces the rows, keeping the cursor on the same
// notification when it is still present.
func (m *Model) SetNotifications(ns []model.Notification) tea.Cmd {
	selected, hadSelection := m.Selected()

	items := make([]list.Item, len(ns))
	cursor := 0
	unread := 0
	for i, n := range ns {
		items[i] = Item{Notification: n}
		if hadSelection && n.ID == selected.ID {
			cursor = i
		}
		if n.IsUnread() {
			unread++
		}
	}
	m.unread = unread

	cmd := m.list.SetItems(items)
	if len(items) > 0 {
		m.list.Select(cursor)
	}
	return cmd
}

// Selected returns the notification under the cursor.
func (m Model) Selected() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.Notification{}, false
	}
	return it.Notification, true
}

// Len returns the number of rows.
func (m Model) Len() int {
	return len(m.list.Items())
}

// Update handles list navigation and notification actions.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Select):
			if n, ok := m.Selected(); ok {
				return m, func() tea.Msg { return OpenMsg{ID: n.ID, Anchor: n.Anchor} }
			}
			return m, nil
		case key.Matches(msg, m.keys.MarkAll):
			if m.unread == 0 {
				return m, nil
			}
			return m, func() tea.Msg { return MarkAllMsg{} }
		case key.Matches(msg, m.keys.Dismiss):
			if n, ok := m.Selected(); ok {
				return m, func() tea.Msg { return DismissMsg{ID: n.ID} }
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the list or an empty-state line.
func (m Model) View() string {
	if m.Len() == 0 {
		return theme.ListItemStyle.Render(theme.HelpStyle.Render("No notifications"))
	}
	return m.list.View()
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height)
}
