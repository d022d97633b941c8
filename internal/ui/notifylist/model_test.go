package notifylist

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/storefront/internal/keys"
	"github.com/nhle/storefront/internal/model"
)

func sample() []model.Notification {
	now := time.Now()
	return []model.Notification{
		{ID: "3", Type: model.NotificationOrderUpdate, Message: "Order shipped", Anchor: "/orders/3", Status: model.StatusUnread, CreatedAt: now},
		{ID: "2", Type: model.NotificationPromotion, Message: "Sale", Status: model.StatusRead, CreatedAt: now.Add(-time.Hour)},
		{ID: "1", Type: model.NotificationSystem, Message: "Welcome", Status: model.StatusRead, CreatedAt: now.Add(-48 * time.Hour)},
	}
}

func keyPress(s string) tea.KeyMsg {
	if s == "enter" {
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_EnterOpensSelected(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)
	m.SetNotifications(sample())

	_, cmd := m.Update(keyPress("enter"))
	require.NotNil(t, cmd)
	assert.Equal(t, OpenMsg{ID: "3", Anchor: "/orders/3"}, cmd())
}

func TestModel_CursorFollowsNotificationAcrossUpdates(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)
	m.SetNotifications(sample())
	m, _ = m.Update(keyPress("j"))

	n, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "2", n.ID)

	// A new notification arrives at the top.
	next := append([]model.Notification{{ID: "4", Message: "New", Status: model.StatusUnread}}, sample()...)
	m.SetNotifications(next)

	n, ok = m.Selected()
	require.True(t, ok)
	assert.Equal(t, "2", n.ID)
}

func TestModel_MarkAllOnlyWithUnread(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)
	m.SetNotifications(sample())

	_, cmd := m.Update(keyPress("a"))
	require.NotNil(t, cmd)
	assert.Equal(t, MarkAllMsg{}, cmd())

	read := sample()
	read[0].Status = model.StatusRead
	m.SetNotifications(read)
	_, cmd = m.Update(keyPress("a"))
	assert.Nil(t, cmd)
}

func TestModel_Dismiss(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)
	m.SetNotifications(sample())

	_, cmd := m.Update(keyPress("d"))
	require.NotNil(t, cmd)
	assert.Equal(t, DismissMsg{ID: "3"}, cmd())
}

func TestModel_EmptyState(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)
	assert.Contains(t, m.View(), "No notifications")

	_, cmd := m.Update(keyPress("enter"))
	assert.Nil(t, cmd)
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "", relativeTime(now, time.Time{}))
	assert.Equal(t, "just now", relativeTime(now, now.Add(-10*time.Second)))
	assert.Equal(t, "5m ago", relativeTime(now, now.Add(-5*time.Minute)))
	assert.Equal(t, "3h ago", relativeTime(now, now.Add(-3*time.Hour)))
	assert.Equal(t, "2d ago", relativeTime(now, now.Add(-49*time.Hour)))
	assert.Equal(t, "May 01", relativeTime(now, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)))
}
