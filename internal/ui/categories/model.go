// Package categories is the expandable product category menu.
package categories

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/storefront/internal/catalog"
	"github.com/nhle/storefront/internal/keys"
	"github.com/nhle/storefront/internal/model"
	"github.com/nhle/storefront/internal/theme"
)

// SelectedMsg is emitted when a leaf category is chosen. Path runs from
// the root down to the chosen category.
type SelectedMsg struct {
	Category model.Category
	Path     []model.Category
}

// Model renders catalog.Flatten rows and keeps the expanded set.
type Model struct {
	roots  []model.Category
	open   catalog.OpenSet
	rows   []catalog.Row
	cursor int
	keys   *keys.KeyMap
	width  int
	height int
}

// New creates an empty menu.
func New(k *keys.KeyMap, width, height int) Model {
	return Model{
		open:   catalog.CollapseAll(),
		keys:   k,
		width:  width,
		height: height,
	}
}

// SetTree replaces the category tree. Expanded nodes that still exist
// stay expanded.
func (m *Model) SetTree(roots []model.Category) {
	m.roots = roots
	m.rebuild()
}

// Reveal expands the ancestors of id and moves the cursor onto it.
func (m *Model) Reveal(id string) bool {
	if _, ok := catalog.Find(m.roots, id); !ok {
		return false
	}
	m.open = catalog.ExpandPath(m.roots, m.open, id)
	m.rebuild()
	for i, r := range m.rows {
		if r.Category.ID.String() == id {
			m.cursor = i
			break
		}
	}
	return true
}

func (m *Model) rebuild() {
	m.rows = catalog.Flatten(m.roots, m.open)
	if m.cursor >= len(m.rows) {
		m.cursor = max(len(m.rows)-1, 0)
	}
}

// Rows returns the visible rows.
func (m Model) Rows() []catalog.Row { return m.rows }

// Cursor returns the index of the highlighted row.
func (m Model) Cursor() int { return m.cursor }

// Update handles navigation. Enter toggles a parent and selects a leaf;
// Back collapses every node.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok || len(m.rows) == 0 {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keys.Down):
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
	case key.Matches(keyMsg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(keyMsg, m.keys.Select):
		row := m.rows[m.cursor]
		id := row.Category.ID.String()
		if row.HasChildren {
			m.open = catalog.Toggle(m.open, id)
			m.rebuild()
			return m, nil
		}
		path := catalog.Path(m.roots, id)
		return m, func() tea.Msg { return SelectedMsg{Category: row.Category, Path: path} }
	case key.Matches(keyMsg, m.keys.Back):
		m.open = catalog.CollapseAll()
		m.cursor = 0
		m.rebuild()
	}
	return m, nil
}

// View renders the visible rows, scrolled so the cursor stays in view.
func (m Model) View() string {
	if len(m.rows) == 0 {
		return theme.ListItemStyle.Render(theme.HelpStyle.Render("No categories"))
	}

	start := 0
	if m.height > 0 && m.cursor >= m.height {
		start = m.cursor - m.height + 1
	}
	end := len(m.rows)
	if m.height > 0 {
		end = min(start+m.height, len(m.rows))
	}

	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		r := m.rows[i]
		marker := "  "
		if r.HasChildren {
			marker = "▸ "
			if r.Expanded {
				marker = "▾ "
			}
		}
		line := strings.Repeat("  ", r.Depth) + marker + r.Category.Name
		if i == m.cursor {
			line = theme.SelectedItemStyle.Render(line)
		} else {
			line = theme.ListItemStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// SetSize updates the menu dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
