package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotification_MarkReadIsOneWay(t *testing.T) {
	n := Notification{ID: "1", Status: StatusUnread}

	assert.True(t, n.MarkRead())
	assert.False(t, n.IsUnread())
	assert.False(t, n.MarkRead(), "second call must not report a change")
	assert.Equal(t, StatusRead, n.Status)
}

func TestNotification_Visibility(t *testing.T) {
	broadcast := Notification{ID: "b"}
	own := Notification{ID: "o", UserID: "7"}

	assert.True(t, broadcast.IsBroadcast())
	assert.True(t, broadcast.VisibleTo("7"))
	assert.True(t, own.VisibleTo("7"))
	assert.False(t, own.VisibleTo("8"))
}

func TestParseNotificationType(t *testing.T) {
	assert.Equal(t, NotificationOrderUpdate, ParseNotificationType("order-update"))
	assert.Equal(t, NotificationPaymentUpdate, ParseNotificationType("payment_update"))
	assert.Equal(t, NotificationNewMessage, ParseNotificationType("NEW_MESSAGE"))
	assert.Equal(t, NotificationSystem, ParseNotificationType("something-else"))
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)

	assert.True(t, want.Equal(ParseTimestamp("2024-05-01T10:30:00Z")))
	assert.True(t, want.Equal(ParseTimestamp("2024-05-01T10:30:00")))
	assert.True(t, want.Equal(ParseTimestamp("2024-05-01 10:30:00")))
	assert.True(t, want.Equal(ParseTimestamp("1714559400000")))
	assert.True(t, ParseTimestamp("garbage").IsZero())
	assert.True(t, ParseTimestamp("").IsZero())
}

func TestFlexibleID_DecodesStringsAndNumbers(t *testing.T) {
	var u struct {
		A FlexibleID `json:"a"`
		B FlexibleID `json:"b"`
		C FlexibleID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"x1","b":42,"c":null}`), &u))

	assert.Equal(t, FlexibleID("x1"), u.A)
	assert.Equal(t, FlexibleID("42"), u.B)
	assert.Equal(t, FlexibleID(""), u.C)
}

func TestEvent_Conversions(t *testing.T) {
	at := time.Now()
	ev := Event{ID: "5", Type: "order-update", Message: "shipped", Anchor: "/orders/5", CreatedAt: at}

	assert.False(t, ev.IsChat())
	n := ev.Notification()
	assert.Equal(t, NotificationOrderUpdate, n.Type)
	assert.Equal(t, StatusUnread, n.Status)
	assert.Equal(t, "/orders/5", n.Anchor)

	chat := Event{Type: "chat", Sender: "support", Message: "hi", CreatedAt: at}
	assert.True(t, chat.IsChat())
	assert.Equal(t, "support", chat.Chat().Sender)
}

func TestCart_Totals(t *testing.T) {
	c := Cart{Items: []CartItem{
		{Quantity: 2, UnitPrice: 1.5},
		{Quantity: 1, UnitPrice: 4},
	}}
	assert.Equal(t, 3, c.ItemCount())
	assert.InDelta(t, 7.0, c.Total(), 1e-9)
}

func TestUser_Helpers(t *testing.T) {
	assert.True(t, User{Role: "ROLE_ADMIN"}.IsAdmin())
	assert.False(t, User{Role: "CUSTOMER"}.IsAdmin())
	assert.Equal(t, "a@b.c", User{Email: "a@b.c"}.DisplayName())
}
