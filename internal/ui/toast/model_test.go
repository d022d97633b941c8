package toast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModel_ShowAndExpire(t *testing.T) {
	m := New(time.Millisecond, 80)
	assert.False(t, m.Visible())
	assert.Empty(t, m.View())

	cmd := m.Show("order", "Order #42 shipped")
	require.NotNil(t, cmd)
	assert.True(t, m.Visible())
	assert.Contains(t, m.View(), "Order #42 shipped")

	m, _ = m.Update(cmd())
	assert.False(t, m.Visible())
}

func TestModel_StaleTimerIgnored(t *testing.T) {
	m := New(time.Millisecond, 80)
	first := m.Show("chat", "hi")
	m.Show("chat", "are you there?")

	m, _ = m.Update(first())
	assert.True(t, m.Visible())
	assert.Contains(t, m.View(), "are you there?")
}

func TestNew_DefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultTTL, New(0, 80).ttl)
}
