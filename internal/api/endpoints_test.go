package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/storefront/internal/events"
	"github.com/nhle/storefront/internal/model"
)

func TestListNotifications_DecodesWireForms(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/notifications/user/42", r.URL.Path)
		w.Write([]byte(`[
			{"id": 7, "type": "ORDER_UPDATE", "message": "Order shipped", "anchor": "/orders/7",
			 "status": "UNREAD", "userId": 42, "createdAt": "2026-03-01T10:00:00"},
			{"id": "8", "type": "promotion", "message": "20% off", "isRead": true,
			 "userId": null, "createdAt": 1772359200000}
		]`))
	})

	got, err := c.ListNotifications(context.Background(), "42")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "7", got[0].ID)
	assert.Equal(t, model.NotificationOrderUpdate, got[0].Type)
	assert.True(t, got[0].IsUnread())
	assert.Equal(t, "42", got[0].UserID)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), got[0].CreatedAt)

	assert.Equal(t, model.NotificationPromotion, got[1].Type)
	assert.False(t, got[1].IsUnread())
	assert.True(t, got[1].IsBroadcast())
	assert.Equal(t, time.UnixMilli(1772359200000).UTC(), got[1].CreatedAt)
}

func TestNotificationPaths(t *testing.T) {
	var seen []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/notifications/user/42/unread":
			w.Write([]byte(`[]`))
		case "/notifications/user/42/unread/count":
			w.Write([]byte(`{"unreadCount": 5}`))
		default:
			w.WriteHeader(http.StatusOK)
		}
	})
	ctx := context.Background()

	unread, err := c.ListUnreadNotifications(ctx, "42")
	require.NoError(t, err)
	assert.Empty(t, unread)

	n, err := c.UnreadCount(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	require.NoError(t, c.MarkNotificationRead(ctx, "n 1"))
	require.NoError(t, c.MarkAllNotificationsRead(ctx, "42"))

	assert.Equal(t, []string{
		"GET /notifications/user/42/unread",
		"GET /notifications/user/42/unread/count",
		"PUT /notifications/n 1/mark-read",
		"PUT /notifications/user/42/mark-all-read",
	}, seen)
}

func TestCartMutationsPublishCartChanged(t *testing.T) {
	cart := model.Cart{Items: []model.CartItem{{ID: "1", ProductID: "p-1", Name: "Stapler", Quantity: 2, UnitPrice: 4.5}}}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/cart/items":
			var body addCartItemRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "p-1", body.ProductID)
			json.NewEncoder(w).Encode(cart)
		case r.Method == http.MethodDelete && r.URL.Path == "/cart/items/1":
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodGet && r.URL.Path == "/cart":
			w.Write([]byte(`{"items":[]}`))
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	})
	signals := events.NewSignals()
	c.SetSignals(signals)

	var counts []int
	signals.CartChanged.Subscribe(func(e events.CartChanged) { counts = append(counts, e.ItemCount) })

	updated, err := c.AddToCart(context.Background(), "p-1", 2)
	require.NoError(t, err)
	assert.InDelta(t, 9.0, updated.Total(), 0.001)

	updated, err = c.RemoveFromCart(context.Background(), "1")
	require.NoError(t, err)
	assert.Empty(t, updated.Items)

	assert.Equal(t, []int{2, 0}, counts)
}

func TestAddToCart_RejectsNonPositiveQuantity(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := c.AddToCart(context.Background(), "p-1", 0)
	require.Error(t, err)
	assert.Equal(t, KindInvalid, Normalize(err).Kind)
}
