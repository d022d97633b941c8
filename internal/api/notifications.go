package api

import (
	"context"
	"net/url"

	"github.com/nhle/storefront/internal/model"
)

func userPath(userID, suffix string) string {
	return "/notifications/user/" + url.PathEscape(userID) + suffix
}

func toNotifications(wire []WireNotification) []model.Notification {
	out := make([]model.Notification, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.Notification())
	}
	return out
}

// ListNotifications returns every notification for userID.
func (c *Client) ListNotifications(ctx context.Context, userID string) ([]model.Notification, error) {
	var wire []WireNotification
	if err := c.Get(ctx, userPath(userID, ""), &wire); err != nil {
		return nil, err
	}
	return toNotifications(wire), nil
}

// ListUnreadNotifications returns the unread notifications for userID.
func (c *Client) ListUnreadNotifications(ctx context.Context, userID string) ([]model.Notification, error) {
	var wire []WireNotification
	if err := c.Get(ctx, userPath(userID, "/unread"), &wire); err != nil {
		return nil, err
	}
	return toNotifications(wire), nil
}

// UnreadCount returns the server's unread count for userID.
func (c *Client) UnreadCount(ctx context.Context, userID string) (int, error) {
	var resp unreadCountResponse
	if err := c.Get(ctx, userPath(userID, "/unread/count"), &resp); err != nil {
		return 0, err
	}
	return resp.value(), nil
}

// MarkNotificationRead marks a single notification read.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.Put(ctx, "/notifications/"+url.PathEscape(id)+"/mark-read", nil, nil)
}

// MarkAllNotificationsRead marks every notification of userID read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	return c.Put(ctx, userPath(userID, "/mark-all-read"), nil, nil)
}
