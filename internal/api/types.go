package api

import (
	"strings"

	"github.com/nhle/storefront/internal/model"
)

// loginRequest is the body of POST /auth/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse is returned by POST /auth/login.
type loginResponse struct {
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
	User         model.User `json:"user"`
}

// refreshRequest is the body of POST /auth/refresh.
type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// refreshResponse is returned by POST /auth/refresh. RefreshToken is only
// present when the backend rotates it.
type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// WireNotification is a notification as the backend serializes it, both
// in REST responses and on the realtime channel. Identifiers and
// timestamps arrive as either strings or numbers.
type WireNotification struct {
	ID      model.FlexibleID `json:"id"`
	Type    string           `json:"type"`
	Message string           `json:"message"`
	Anchor  string           `json:"anchor,omitempty"`
	Status  string           `json:"status,omitempty"`
	// IsRead is the boolean form some endpoints use instead of Status.
	IsRead    *bool            `json:"isRead,omitempty"`
	UserID    model.FlexibleID `json:"userId,omitempty"`
	Sender    string           `json:"sender,omitempty"`
	CreatedAt model.FlexibleID `json:"createdAt"`
}

// Notification converts the wire form to a model.Notification.
func (w WireNotification) Notification() model.Notification {
	status := model.ParseReadStatus(w.Status)
	if w.IsRead != nil {
		status = model.StatusUnread
		if *w.IsRead {
			status = model.StatusRead
		}
	}
	return model.Notification{
		ID:        w.ID.String(),
		Type:      model.ParseNotificationType(w.Type),
		Message:   w.Message,
		Anchor:    w.Anchor,
		Status:    status,
		UserID:    w.UserID.String(),
		CreatedAt: model.ParseTimestamp(w.CreatedAt.String()),
	}
}

// Event converts a realtime frame to a model.Event.
func (w WireNotification) Event() model.Event {
	return model.Event{
		ID:        w.ID.String(),
		Type:      strings.ToUpper(strings.TrimSpace(w.Type)),
		Message:   w.Message,
		Anchor:    w.Anchor,
		UserID:    w.UserID.String(),
		Sender:    w.Sender,
		CreatedAt: model.ParseTimestamp(w.CreatedAt.String()),
	}
}

// unreadCountResponse accepts both {"count": n} and {"unreadCount": n}.
type unreadCountResponse struct {
	Count       *int `json:"count"`
	UnreadCount *int `json:"unreadCount"`
}

func (r unreadCountResponse) value() int {
	switch {
	case r.Count != nil:
		return *r.Count
	case r.UnreadCount != nil:
		return *r.UnreadCount
	default:
		return 0
	}
}

// addCartItemRequest is the body of POST /cart/items.
type addCartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}
