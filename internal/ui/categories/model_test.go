package categories

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/storefront/internal/keys"
	"github.com/nhle/storefront/internal/model"
)

func tree() []model.Category {
	return []model.Category{
		{ID: "1", Name: "Paper", Children: []model.Category{
			{ID: "11", Name: "Copy paper"},
			{ID: "12", Name: "Notebooks", Children: []model.Category{
				{ID: "121", Name: "Spiral"},
			}},
		}},
		{ID: "2", Name: "Pens"},
	}
}

var (
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	down  = tea.KeyMsg{Type: tea.KeyDown}
	esc   = tea.KeyMsg{Type: tea.KeyEsc}
)

func names(m Model) []string {
	var out []string
	for _, r := range m.Rows() {
		out = append(out, r.Category.Name)
	}
	return out
}

func TestModel_EnterTogglesParent(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 40, 10)
	m.SetTree(tree())
	assert.Equal(t, []string{"Paper", "Pens"}, names(m))

	m, cmd := m.Update(enter)
	assert.Nil(t, cmd)
	assert.Equal(t, []string{"Paper", "Copy paper", "Notebooks", "Pens"}, names(m))

	m, _ = m.Update(enter)
	assert.Equal(t, []string{"Paper", "Pens"}, names(m))
}

func TestModel_EnterSelectsLeafWithPath(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 40, 10)
	m.SetTree(tree())
	m, _ = m.Update(enter)
	m, _ = m.Update(down)

	_, cmd := m.Update(enter)
	require.NotNil(t, cmd)
	sel, ok := cmd().(SelectedMsg)
	require.True(t, ok)
	assert.Equal(t, "Copy paper", sel.Category.Name)
	require.Len(t, sel.Path, 2)
	assert.Equal(t, "Paper", sel.Path[0].Name)
}

func TestModel_RevealExpandsAncestors(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 40, 10)
	m.SetTree(tree())

	require.True(t, m.Reveal("121"))
	assert.Equal(t, []string{"Paper", "Copy paper", "Notebooks", "Spiral", "Pens"}, names(m))
	assert.Equal(t, 3, m.Cursor())

	assert.False(t, m.Reveal("999"))
}

func TestModel_BackCollapsesAll(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 40, 10)
	m.SetTree(tree())
	m.Reveal("121")

	m, _ = m.Update(esc)
	assert.Equal(t, []string{"Paper", "Pens"}, names(m))
	assert.Equal(t, 0, m.Cursor())
}

func TestModel_SetTreeKeepsExpansion(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 40, 10)
	m.SetTree(tree())
	m, _ = m.Update(enter)

	m.SetTree(tree())
	assert.Equal(t, []string{"Paper", "Copy paper", "Notebooks", "Pens"}, names(m))
	assert.Contains(t, m.View(), "▾ Paper")
}
