package model

import (
	"strings"
	"time"
)

// EventTypeChat is the realtime event type used for chat lines. Every
// other type is treated as a notification.
const EventTypeChat = "CHAT"

// Event is a single inbound frame on the realtime channel, already
// decoded from the wire.
type Event struct {
	ID        string
	Type      string
	Message   string
	Anchor    string
	UserID    string
	Sender    string
	CreatedAt time.Time
}

// IsChat reports whether the event is a chat line rather than a notification.
func (e Event) IsChat() bool {
	return strings.EqualFold(e.Type, EventTypeChat) || strings.EqualFold(e.Type, "CHAT_MESSAGE")
}

// Notification converts the event to an unread notification.
func (e Event) Notification() Notification {
	return Notification{
		ID:        e.ID,
		Type:      ParseNotificationType(e.Type),
		Message:   e.Message,
		Anchor:    e.Anchor,
		Status:    StatusUnread,
		UserID:    e.UserID,
		CreatedAt: e.CreatedAt,
	}
}

// Chat converts the event to a chat message.
func (e Event) Chat() ChatMessage {
	return ChatMessage{
		ID:     e.ID,
		Sender: e.Sender,
		Text:   e.Message,
		SentAt: e.CreatedAt,
	}
}
