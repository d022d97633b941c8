package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/storefront/internal/theme"
)

// Layout manages the terminal layout dimensions.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
	// BannerHeight is 1 while an error banner is shown, 0 otherwise.
	BannerHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
// HeaderHeight and StatusBarHeight default to 1.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// WithBanner returns a copy of l that reserves a line for a banner when
// shown is true.
func (l Layout) WithBanner(shown bool) Layout {
	l.BannerHeight = 0
	if shown {
		l.BannerHeight = 1
	}
	return l
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height available for the main content area.
func (l Layout) ContentHeight() int {
	h := l.Height - l.HeaderHeight - l.StatusBarHeight - l.BannerHeight
	if h < 0 {
		return 0
	}
	return h
}

// RenderHeader renders the top bar with the title on the left and the
// badge (unread count and connection state) on the right.
func (l Layout) RenderHeader(title string, badge string) string {
	titleRendered := theme.HeaderStyle.Render(title)
	badgeRendered := theme.HeaderStyle.Render(badge)

	gap := max(l.Width-lipgloss.Width(titleRendered)-lipgloss.Width(badgeRendered), 0)
	filler := lipgloss.NewStyle().
		Width(gap).
		Background(theme.HeaderStyle.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, titleRendered, filler, badgeRendered)
}

// RenderBanner renders a full-width error banner, or "" for an empty message.
func (l Layout) RenderBanner(message string) string {
	if message == "" {
		return ""
	}
	return theme.BannerStyle.Width(l.Width).MaxHeight(1).Render("! " + message)
}

// RenderStatusBar renders the bottom status bar with keyboard hints.
func (l Layout) RenderStatusBar(hints string) string {
	rendered := theme.StatusBarStyle.Render(hints)

	gap := max(l.Width-lipgloss.Width(rendered), 0)
	filler := lipgloss.NewStyle().
		Width(gap).
		Background(theme.StatusBarStyle.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, filler)
}

// RenderWithFrame joins the header, the optional banner, the content and
// the status bar.
func (l Layout) RenderWithFrame(header, banner, content, statusBar string) string {
	parts := []string{header}
	if banner != "" {
		parts = append(parts, banner)
	}
	parts = append(parts, content, statusBar)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
