package model

import (
	"strings"
	"time"
)

// NotificationType classifies what a notification is about.
type NotificationType string

const (
	NotificationNewMessage    NotificationType = "NEW_MESSAGE"
	NotificationOrderUpdate   NotificationType = "ORDER_UPDATE"
	NotificationPaymentUpdate NotificationType = "PAYMENT_UPDATE"
	NotificationSystem        NotificationType = "SYSTEM"
	NotificationPromotion     NotificationType = "PROMOTION"
)

// ParseNotificationType normalizes a wire value ("order-update",
// "order_update", "ORDER_UPDATE") to a NotificationType. Unknown values
// map to NotificationSystem.
func ParseNotificationType(s string) NotificationType {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	switch NotificationType(norm) {
	case NotificationNewMessage, NotificationOrderUpdate, NotificationPaymentUpdate,
		NotificationSystem, NotificationPromotion:
		return NotificationType(norm)
	default:
		return NotificationSystem
	}
}

// Label returns a short human-readable label for the type.
func (t NotificationType) Label() string {
	switch t {
	case NotificationNewMessage:
		return "message"
	case NotificationOrderUpdate:
		return "order"
	case NotificationPaymentUpdate:
		return "payment"
	case NotificationPromotion:
		return "promo"
	default:
		return "system"
	}
}

// ReadStatus is the read state of a notification. It only ever moves
// from StatusUnread to StatusRead.
type ReadStatus string

const (
	StatusUnread ReadStatus = "UNREAD"
	StatusRead   ReadStatus = "READ"
)

// ParseReadStatus normalizes a wire value. Anything other than "read"
// (case-insensitive) is treated as unread.
func ParseReadStatus(s string) ReadStatus {
	if strings.EqualFold(strings.TrimSpace(s), string(StatusRead)) {
		return StatusRead
	}
	return StatusUnread
}

// Notification is an order, payment, system or promotional alert
// addressed to a user, or to everyone when UserID is empty.
type Notification struct {
	// ID is assigned by the server. Pushed events that arrive without one
	// carry a local placeholder (see IsLocal).
	ID string `json:"id"`

	Type    NotificationType `json:"type"`
	Message string           `json:"message"`

	// Anchor is an optional in-app link target, e.g. "/orders/42".
	Anchor string `json:"anchor,omitempty"`

	Status ReadStatus `json:"status"`

	// UserID is empty for broadcast notifications.
	UserID string `json:"userId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// LocalIDPrefix marks notifications whose IDs were generated client-side.
const LocalIDPrefix = "local-"

// IsUnread reports whether the notification has not been read.
func (n Notification) IsUnread() bool {
	return n.Status != StatusRead
}

// IsBroadcast reports whether the notification is addressed to all sessions.
func (n Notification) IsBroadcast() bool {
	return n.UserID == ""
}

// IsLocal reports whether the ID is a client-side placeholder.
func (n Notification) IsLocal() bool {
	return strings.HasPrefix(n.ID, LocalIDPrefix)
}

// VisibleTo reports whether the notification belongs in userID's set.
func (n Notification) VisibleTo(userID string) bool {
	return n.IsBroadcast() || n.UserID == userID
}

// MarkRead flips an unread notification to read and reports whether
// anything changed.
func (n *Notification) MarkRead() bool {
	if n.Status == StatusRead {
		return false
	}
	n.Status = StatusRead
	return true
}
