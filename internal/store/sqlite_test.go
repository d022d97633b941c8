package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/storefront/internal/model"
	"github.com/nhle/storefront/internal/store"
	"github.com/nhle/storefront/tests/testutil"
)

func notif(id string, status model.ReadStatus, at time.Time) model.Notification {
	return model.Notification{
		ID:        id,
		Type:      model.NotificationOrderUpdate,
		Message:   "order " + id,
		Status:    status,
		CreatedAt: at,
	}
}

func TestSQLiteStore_ReplaceNotificationsReplacesSet(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, s.ReplaceNotifications(ctx, "u1", []model.Notification{
		notif("a", model.StatusUnread, now),
		notif("b", model.StatusUnread, now.Add(time.Minute)),
	}))
	require.NoError(t, s.ReplaceNotifications(ctx, "u1", []model.Notification{
		notif("c", model.StatusRead, now),
	}))

	got, err := s.GetNotifications(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, model.StatusRead, got[0].Status)
}

func TestSQLiteStore_NotificationsScopedByOwner(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.UpsertNotification(ctx, "u1", notif("a", model.StatusUnread, now)))
	require.NoError(t, s.UpsertNotification(ctx, "u2", notif("a", model.StatusUnread, now)))
	require.NoError(t, s.MarkAllNotificationsRead(ctx, "u1"))

	u1, err := s.GetUnreadNotifications(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, u1)

	u2, err := s.GetUnreadNotifications(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, u2, 1)
}

func TestSQLiteStore_UpsertNeverDowngradesRead(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.UpsertNotification(ctx, "u1", notif("a", model.StatusUnread, now)))
	require.NoError(t, s.MarkNotificationRead(ctx, "u1", "a"))
	require.NoError(t, s.UpsertNotification(ctx, "u1", notif("a", model.StatusUnread, now)))

	got, err := s.GetNotifications(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.StatusRead, got[0].Status)
}

func TestSQLiteStore_ChatScrollbackOrderAndLimit(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, text := range []string{"one", "two", "three"} {
		require.NoError(t, s.AppendChatMessage(ctx, "u1", model.ChatMessage{
			ID: text, Sender: "support", Text: text, SentAt: now.Add(time.Duration(i) * time.Second),
		}))
	}

	all, err := s.GetChatMessages(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "one", all[0].Text)
	assert.Equal(t, "three", all[2].Text)

	last2, err := s.GetChatMessages(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, last2, 2)
	assert.Equal(t, "two", last2[0].Text)
	assert.Equal(t, "three", last2[1].Text)
}

func TestSQLiteStore_ClearOwner(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.UpsertNotification(ctx, "u1", notif("a", model.StatusUnread, now)))
	require.NoError(t, s.AppendChatMessage(ctx, "u1", model.ChatMessage{ID: "c", Text: "hi", SentAt: now}))
	require.NoError(t, s.ClearOwner(ctx, "u1"))

	ns, err := s.GetNotifications(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, ns)

	chat, err := s.GetChatMessages(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Empty(t, chat)
}

func TestSQLiteStore_Values(t *testing.T) {
	s := testutil.NewTestStore(t)
	v := store.NewValues(s)

	_, err := v.Get("refresh_token")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, v.Set("refresh_token", "r1"))
	require.NoError(t, v.Set("refresh_token", "r2"))

	got, err := v.Get("refresh_token")
	require.NoError(t, err)
	assert.Equal(t, "r2", got)

	require.NoError(t, v.Delete("refresh_token"))
	require.NoError(t, v.Delete("refresh_token"))

	_, err = v.Get("refresh_token")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestNewSQLiteStore_ReopenKeepsData(t *testing.T) {
	path := t.TempDir() + "/client.db"
	ctx := context.Background()

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SetValue(ctx, "k", "v"))
	require.NoError(t, s.Close())

	s2, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.GetValue(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}
