package output

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/storefront/internal/catalog"
	"github.com/nhle/storefront/internal/model"
)

func TestNew_RejectsUnknownFormat(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "yaml")
	assert.Error(t, err)

	p, err := New(&bytes.Buffer{}, " JSON ")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, p.Format())
}

func TestPrinter_NotificationsTable(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(&buf, FormatTable)
	require.NoError(t, err)

	require.NoError(t, p.Notifications([]model.Notification{{
		ID:        "12",
		Type:      model.NotificationOrderUpdate,
		Message:   "Order shipped",
		Status:    model.StatusUnread,
		CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local),
	}}))

	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "12")
	assert.Contains(t, out, "order")
	assert.Contains(t, out, "UNREAD")
	assert.Contains(t, out, "2024-05-01 10:00")
	assert.Contains(t, out, "Order shipped")
}

func TestPrinter_NotificationsJSONEmptyIsArray(t *testing.T) {
	var buf bytes.Buffer
	p, _ := New(&buf, FormatJSON)
	require.NoError(t, p.Notifications(nil))

	var decoded map[string][]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.NotNil(t, decoded["notifications"])
	assert.Len(t, decoded["notifications"], 0)
}

func TestPrinter_Cart(t *testing.T) {
	cart := model.Cart{Items: []model.CartItem{
		{ID: "1", ProductID: "p1", Name: "Stapler", Quantity: 2, UnitPrice: 7.5},
		{ID: "2", ProductID: "p2", Name: "Paper", Quantity: 1, UnitPrice: 4},
	}}

	var buf bytes.Buffer
	p, _ := New(&buf, FormatTable)
	require.NoError(t, p.Cart(cart))
	assert.Contains(t, buf.String(), "Stapler")
	assert.Contains(t, buf.String(), "19.00")

	buf.Reset()
	p, _ = New(&buf, FormatJSON)
	require.NoError(t, p.Cart(cart))
	var decoded struct {
		ItemCount int     `json:"itemCount"`
		Total     float64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 3, decoded.ItemCount)
	assert.InDelta(t, 19.0, decoded.Total, 0.001)
}

func TestPrinter_EmptyCart(t *testing.T) {
	var buf bytes.Buffer
	p, _ := New(&buf, FormatTable)
	require.NoError(t, p.Cart(model.Cart{}))
	assert.Equal(t, "Your cart is empty.\n", buf.String())
}

func TestPrinter_CategoriesIndentsByDepth(t *testing.T) {
	roots := []model.Category{{ID: "1", Name: "Paper", Children: []model.Category{{ID: "11", Name: "Copy"}}}}
	rows := catalog.Flatten(roots, catalog.OpenSet{"1": true})

	var buf bytes.Buffer
	p, _ := New(&buf, FormatTable)
	require.NoError(t, p.Categories(rows))
	assert.Contains(t, buf.String(), "- Paper")
	assert.Contains(t, buf.String(), "    Copy")
}

func TestPrinter_CountAndMessage(t *testing.T) {
	var buf bytes.Buffer
	p, _ := New(&buf, FormatJSON)
	require.NoError(t, p.Count("unread", 4))
	assert.JSONEq(t, `{"unread":4}`, buf.String())

	buf.Reset()
	p, _ = New(&buf, FormatTable)
	require.NoError(t, p.Message("Logged out."))
	assert.Equal(t, "Logged out.\n", buf.String())
}
