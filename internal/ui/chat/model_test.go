package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/storefront/internal/model"
)

func TestFormat(t *testing.T) {
	out := Format([]model.ChatMessage{
		{Sender: "Ana", Text: "Your order is ready"},
		{Text: "Anything else?"},
	})
	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Ana:")
	assert.Contains(t, lines[0], "Your order is ready")
	assert.Contains(t, lines[1], "support:")
}

func TestModel_SetMessages(t *testing.T) {
	m := New(40, 5)
	assert.Contains(t, m.View(), "No messages yet")

	m.SetMessages([]model.ChatMessage{{Sender: "Ana", Text: "hello"}})
	assert.Equal(t, 1, m.Len())
	assert.Contains(t, m.View(), "hello")

	m.SetMessages(nil)
	assert.Equal(t, 0, m.Len())
	assert.Contains(t, m.View(), "No messages yet")
}
