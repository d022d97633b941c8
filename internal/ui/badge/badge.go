// Package badge renders the header badge: the unread counter and the
// realtime connection indicator.
package badge

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/storefront/internal/theme"
)

// MaxShown is the largest count rendered as a number.
const MaxShown = 99

// Label returns the counter text: "" for zero, the number up to
// MaxShown, then "99+".
func Label(unread int) string {
	switch {
	case unread <= 0:
		return ""
	case unread > MaxShown:
		return strconv.Itoa(MaxShown) + "+"
	default:
		return strconv.Itoa(unread)
	}
}

// Render returns the header badge for the given unread count and
// connection state name.
func Render(unread int, connection string) string {
	dot := theme.ConnectionStyle(connection).Render("●")
	state := lipgloss.NewStyle().Foreground(theme.ColorWhite).Render(connection)

	out := dot + " " + state
	if l := Label(unread); l != "" {
		out += " " + theme.BadgeStyle.Render(l)
	}
	return out
}
