// Package notify is the single source of truth for the user's
// notifications and chat scrollback. It merges realtime pushes, replaces
// its set on every pull, and fans changes out to independent subscribers.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/nhle/storefront/internal/events"
	"github.com/nhle/storefront/internal/model"
	"github.com/nhle/storefront/internal/store"
)

// ErrNoUser is returned by operations that need a signed-in user.
var ErrNoUser = errors.New("no signed-in user")

// DefaultChatLimit is how many chat lines are kept in memory.
const DefaultChatLimit = 200

// cacheTimeout bounds writes to the local cache made on behalf of pushes.
const cacheTimeout = 5 * time.Second

// Backend is the server side of the notification set.
type Backend interface {
	ListNotifications(ctx context.Context, userID string) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) error
}

// UserSource reports who is signed in.
type UserSource interface {
	CurrentUser() (*model.User, bool)
}

// Center holds the local notification set. It is safe for concurrent use.
type Center struct {
	backend   Backend
	users     UserSource
	cache     store.Store
	logger    *zap.Logger
	chatLimit int
	now       func() time.Time
	group     singleflight.Group

	// cacheMu orders cache writes against the purge in Reset.
	cacheMu sync.Mutex

	mu          sync.RWMutex
	epoch       uint64 // bumped by Reset; older fetches are dropped
	owner       string
	items       map[string]model.Notification
	dismissed   map[string]struct{}
	chat        []model.ChatMessage
	lastErr     error
	lastRefresh time.Time

	subMu   sync.Mutex
	nextSub int
	subs    map[int]*subscriber
}

// NewCenter creates a Center. cache may be nil to disable persistence.
func NewCenter(backend Backend, users UserSource, cache store.Store, logger *zap.Logger) *Center {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Center{
		backend:   backend,
		users:     users,
		cache:     cache,
		logger:    logger,
		chatLimit: DefaultChatLimit,
		now:       time.Now,
		items:     make(map[string]model.Notification),
		dismissed: make(map[string]struct{}),
		subs:      make(map[int]*subscriber),
	}
}

func (c *Center) userID() (string, bool) {
	u, ok := c.users.CurrentUser()
	if !ok || u == nil || u.ID == "" {
		return "", false
	}
	return u.ID.String(), true
}

// Subscribe registers fn. Each subscriber receives every event in
// arrival order on its own goroutine.
func (c *Center) Subscribe(fn func(Event)) (unsubscribe func()) {
	s := newSubscriber(fn)

	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = s
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
		s.stop()
	}
}

// publish enqueues e for every subscriber. Enqueueing happens under subMu
// so that concurrent publishers produce the same order for everyone.
func (c *Center) publish(e Event) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		c.subs[id].push(e)
	}
}

// Close stops every subscriber goroutine.
func (c *Center) Close() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for id, s := range c.subs {
		s.stop()
		delete(c.subs, id)
	}
}

// HandleEvent accepts one realtime event. Notifications addressed to
// another user are dropped; the rest are merged into the local set.
func (c *Center) HandleEvent(e model.Event) {
	if e.IsChat() {
		c.handleChat(e.Chat())
		return
	}

	userID, _ := c.userID()
	n := e.Notification()
	if !n.VisibleTo(userID) {
		c.logger.Debug("dropping notification for another user", zap.String("user_id", n.UserID))
		return
	}
	if n.ID == "" {
		n.ID = model.LocalIDPrefix + uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = c.now()
	}

	c.mu.Lock()
	if _, gone := c.dismissed[n.ID]; gone {
		c.mu.Unlock()
		return
	}
	if existing, ok := c.items[n.ID]; ok && !existing.IsUnread() {
		n.Status = model.StatusRead
	}
	c.items[n.ID] = n
	owner := c.ownerLocked(userID)
	c.mu.Unlock()

	c.persist(func(ctx context.Context) error {
		return c.cache.UpsertNotification(ctx, owner, n)
	})
	c.publish(Event{Kind: EventNotification, Notification: &n})
}

func (c *Center) handleChat(msg model.ChatMessage) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = c.now()
	}

	userID, _ := c.userID()

	c.mu.Lock()
	c.chat = append(c.chat, msg)
	if over := len(c.chat) - c.chatLimit; over > 0 {
		c.chat = append([]model.ChatMessage(nil), c.chat[over:]...)
	}
	owner := c.ownerLocked(userID)
	c.mu.Unlock()

	c.persist(func(ctx context.Context) error {
		return c.cache.AppendChatMessage(ctx, owner, msg)
	})
	c.publish(Event{Kind: EventChat, Chat: &msg})
}

// ownerLocked returns the cache owner, adopting userID when none is set.
func (c *Center) ownerLocked(userID string) string {
	if c.owner == "" {
		c.owner = userID
	}
	return c.owner
}

// persist runs fn against the cache when there is one and an owner to
// scope it by. Cache failures are logged, never returned.
func (c *Center) persist(fn func(ctx context.Context) error) {
	if c.cache == nil {
		return
	}
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	c.mu.RLock()
	owner := c.owner
	c.mu.RUnlock()
	if owner == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		c.logger.Warn("notification cache write failed", zap.Error(err))
	}
}

// Refresh fetches the authoritative list and replaces the local set with
// it. Concurrent calls share one fetch. On failure the local set is kept
// and the error is recorded for LastError.
func (c *Center) Refresh(ctx context.Context) error {
	userID, ok := c.userID()
	if !ok {
		return ErrNoUser
	}

	c.mu.RLock()
	epoch := c.epoch
	c.mu.RUnlock()

	key := fmt.Sprintf("refresh:%s:%d", userID, epoch)
	_, err, _ := c.group.Do(key, func() (any, error) {
		list, err := c.backend.ListNotifications(ctx, userID)
		if c.stale(epoch) {
			c.logger.Debug("discarding notifications fetched before reset")
			return nil, nil
		}
		if err != nil {
			c.setErr(err)
			return nil, fmt.Errorf("fetching notifications: %w", err)
		}

		c.mu.Lock()
		if c.epoch != epoch {
			c.mu.Unlock()
			return nil, nil
		}
		c.owner = userID
		c.items = make(map[string]model.Notification, len(list))
		kept := make([]model.Notification, 0, len(list))
		for _, n := range list {
			if _, gone := c.dismissed[n.ID]; gone {
				continue
			}
			c.items[n.ID] = n
			kept = append(kept, n)
		}
		c.lastErr = nil
		c.lastRefresh = c.now()
		c.mu.Unlock()

		c.persist(func(ctx context.Context) error {
			return c.cache.ReplaceNotifications(ctx, userID, kept)
		})
		c.logger.Debug("notifications refreshed", zap.Int("count", len(kept)))
		c.publish(Event{Kind: EventStateChanged})
		return nil, nil
	})
	return err
}

func (c *Center) stale(epoch uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch != epoch
}

// MarkAsRead flips id to read locally, then tells the server. A server
// failure is returned and recorded but the local flip is kept; the next
// Refresh reconciles.
func (c *Center) MarkAsRead(ctx context.Context, id string) error {
	c.mu.Lock()
	n, ok := c.items[id]
	changed := ok && n.MarkRead()
	if changed {
		c.items[id] = n
	}
	owner := c.owner
	c.mu.Unlock()

	if changed {
		c.persist(func(ctx context.Context) error {
			return c.cache.MarkNotificationRead(ctx, owner, id)
		})
		c.publish(Event{Kind: EventStateChanged})
	}

	if ok && n.IsLocal() {
		// The server has never heard of a placeholder id.
		return nil
	}
	if err := c.backend.MarkNotificationRead(ctx, id); err != nil {
		c.setErr(err)
		return fmt.Errorf("marking notification %s read: %w", id, err)
	}
	return nil
}

// MarkAllAsRead flips every local notification to read, then tells the
// server. Calling it again changes nothing locally.
func (c *Center) MarkAllAsRead(ctx context.Context) error {
	userID, ok := c.userID()
	if !ok {
		return ErrNoUser
	}

	c.mu.Lock()
	changed := 0
	for id, n := range c.items {
		if n.MarkRead() {
			c.items[id] = n
			changed++
		}
	}
	owner := c.owner
	c.mu.Unlock()

	if changed > 0 {
		c.persist(func(ctx context.Context) error {
			return c.cache.MarkAllNotificationsRead(ctx, owner)
		})
		c.publish(Event{Kind: EventStateChanged})
	}

	if err := c.backend.MarkAllNotificationsRead(ctx, userID); err != nil {
		c.setErr(err)
		return fmt.Errorf("marking all notifications read: %w", err)
	}
	return nil
}

// Dismiss removes id from the local set without telling the server. It
// stays hidden from later refreshes for the life of the Center.
func (c *Center) Dismiss(id string) {
	c.mu.Lock()
	_, ok := c.items[id]
	delete(c.items, id)
	c.dismissed[id] = struct{}{}
	owner := c.owner
	c.mu.Unlock()

	if !ok {
		return
	}
	c.persist(func(ctx context.Context) error {
		return c.cache.DeleteNotification(ctx, owner, id)
	})
	c.publish(Event{Kind: EventStateChanged})
}

// UnreadCount is computed from the local set on every call.
func (c *Center) UnreadCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, item := range c.items {
		if item.IsUnread() {
			n++
		}
	}
	return n
}

// Notifications returns the local set, newest first.
func (c *Center) Notifications() []model.Notification {
	c.mu.RLock()
	out := make([]model.Notification, 0, len(c.items))
	for _, n := range c.items {
		out = append(out, n)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Get returns a single notification from the local set.
func (c *Center) Get(id string) (model.Notification, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n, ok := c.items[id]
	return n, ok
}

// Chat returns the scrollback, oldest first.
func (c *Center) Chat() []model.ChatMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.ChatMessage(nil), c.chat...)
}

func (c *Center) setErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
	c.logger.Warn("notification sync failed", zap.Error(err))
	c.publish(Event{Kind: EventStateChanged})
}

// LastError returns the most recent server failure, cleared by the next
// successful Refresh. Surfaces show it as a dismissible banner.
func (c *Center) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// ClearError dismisses the banner error.
func (c *Center) ClearError() {
	c.mu.Lock()
	c.lastErr = nil
	c.mu.Unlock()
}

// LastRefresh returns when the set was last replaced from the server.
func (c *Center) LastRefresh() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastRefresh
}

// LoadCached fills an empty Center from the local cache so that the last
// known state shows before the first Refresh completes.
func (c *Center) LoadCached(ctx context.Context) error {
	if c.cache == nil {
		return nil
	}
	userID, ok := c.userID()
	if !ok {
		return ErrNoUser
	}
	c.mu.RLock()
	epoch := c.epoch
	c.mu.RUnlock()

	ns, err := c.cache.GetNotifications(ctx, userID)
	if err != nil {
		return fmt.Errorf("loading cached notifications: %w", err)
	}
	chat, err := c.cache.GetChatMessages(ctx, userID, c.chatLimit)
	if err != nil {
		return fmt.Errorf("loading cached chat: %w", err)
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return nil
	}
	c.owner = userID
	for _, n := range ns {
		if _, exists := c.items[n.ID]; !exists {
			c.items[n.ID] = n
		}
	}
	if len(c.chat) == 0 {
		c.chat = chat
	}
	c.mu.Unlock()

	c.publish(Event{Kind: EventStateChanged})
	return nil
}

// Reset forgets everything, including the cached copy of the previous
// owner's data. It is called on logout.
func (c *Center) Reset(ctx context.Context) error {
	c.mu.Lock()
	c.epoch++
	owner := c.owner
	c.owner = ""
	c.items = make(map[string]model.Notification)
	c.dismissed = make(map[string]struct{})
	c.chat = nil
	c.lastErr = nil
	c.lastRefresh = time.Time{}
	c.mu.Unlock()

	c.publish(Event{Kind: EventStateChanged})

	if c.cache == nil || owner == "" {
		return nil
	}
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	if err := c.cache.ClearOwner(ctx, owner); err != nil {
		return fmt.Errorf("clearing notification cache: %w", err)
	}
	return nil
}

// WatchSession resets the Center on logout and refreshes it on login.
func (c *Center) WatchSession(signals *events.Signals) (unsubscribe func()) {
	return signals.AuthChanged.Subscribe(func(e events.AuthStateChanged) {
		if !e.LoggedIn {
			if err := c.Reset(context.Background()); err != nil {
				c.logger.Warn("resetting notifications", zap.Error(err))
			}
			return
		}
		go func() {
			if err := c.Refresh(context.Background()); err != nil {
				c.logger.Warn("refreshing notifications after login", zap.Error(err))
			}
		}()
	})
}
