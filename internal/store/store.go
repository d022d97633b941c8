package store

import (
	"context"
	"errors"

	"github.com/nhle/storefront/internal/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store defines the local persistence used by the client: a cache of the
// last known notification set, the chat scrollback, and a small key/value
// table that backs up session credentials.
//
// Every notification and chat method is scoped by ownerID, the ID of the
// signed-in user, so switching accounts never mixes caches.
type Store interface {
	// === Notifications ===

	ReplaceNotifications(ctx context.Context, ownerID string, ns []model.Notification) error
	UpsertNotification(ctx context.Context, ownerID string, n model.Notification) error
	GetNotifications(ctx context.Context, ownerID string) ([]model.Notification, error)
	GetUnreadNotifications(ctx context.Context, ownerID string) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, ownerID, id string) error
	MarkAllNotificationsRead(ctx context.Context, ownerID string) error
	DeleteNotification(ctx context.Context, ownerID, id string) error

	// === Chat scrollback ===

	AppendChatMessage(ctx context.Context, ownerID string, msg model.ChatMessage) error
	GetChatMessages(ctx context.Context, ownerID string, limit int) ([]model.ChatMessage, error)

	// ClearOwner removes every cached notification and chat line of ownerID.
	ClearOwner(ctx context.Context, ownerID string) error

	// === Key/value ===

	GetValue(ctx context.Context, key string) (string, error)
	SetValue(ctx context.Context, key, value string) error
	DeleteValue(ctx context.Context, key string) error
}
