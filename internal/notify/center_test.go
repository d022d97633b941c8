package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/storefront/internal/events"
	"github.com/nhle/storefront/internal/model"
	"github.com/nhle/storefront/tests/testutil"
)

type fakeUsers struct{ user *model.User }

func (f *fakeUsers) CurrentUser() (*model.User, bool) { return f.user, f.user != nil }

type fakeBackend struct {
	mu         sync.Mutex
	list       []model.Notification
	listErr    error
	markErr    error
	listCalls  int
	marked     []string
	markAllFor []string
	gate       chan struct{}
	// started, when set, is closed once the first fetch is waiting on gate.
	started chan struct{}
	once    sync.Once
}

func (f *fakeBackend) ListNotifications(_ context.Context, _ string) ([]model.Notification, error) {
	if f.started != nil {
		f.once.Do(func() { close(f.started) })
	}
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]model.Notification(nil), f.list...), nil
}

func (f *fakeBackend) MarkNotificationRead(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, id)
	return f.markErr
}

func (f *fakeBackend) MarkAllNotificationsRead(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markAllFor = append(f.markAllFor, userID)
	return f.markErr
}

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func note(id string, minutes int, status model.ReadStatus) model.Notification {
	return model.Notification{
		ID:        id,
		Type:      model.NotificationOrderUpdate,
		Message:   "order " + id,
		Status:    status,
		UserID:    "42",
		CreatedAt: t0.Add(time.Duration(minutes) * time.Minute),
	}
}

func newTestCenter(t *testing.T, backend *fakeBackend) *Center {
	t.Helper()
	c := NewCenter(backend, &fakeUsers{user: &model.User{ID: "42"}}, testutil.NewTestStore(t), nil)
	t.Cleanup(c.Close)
	return c
}

func unreadIn(ns []model.Notification) int {
	n := 0
	for _, item := range ns {
		if item.IsUnread() {
			n++
		}
	}
	return n
}

func TestRefresh_ReplacesLocalSet(t *testing.T) {
	backend := &fakeBackend{list: []model.Notification{note("1", 1, model.StatusUnread), note("2", 2, model.StatusRead)}}
	c := newTestCenter(t, backend)

	c.HandleEvent(model.Event{ID: "pushed", Type: "SYSTEM", Message: "maintenance tonight"})
	_, ok := c.Get("pushed")
	require.True(t, ok)

	require.NoError(t, c.Refresh(context.Background()))

	_, ok = c.Get("pushed")
	assert.False(t, ok, "refresh must drop notifications the server no longer lists")
	got := c.Notifications()
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0].ID, "newest first")
	assert.Equal(t, 1, c.UnreadCount())
	assert.False(t, c.LastRefresh().IsZero())
}

func TestRefresh_FailureKeepsStateAndSetsBanner(t *testing.T) {
	backend := &fakeBackend{list: []model.Notification{note("1", 1, model.StatusUnread)}}
	c := newTestCenter(t, backend)
	require.NoError(t, c.Refresh(context.Background()))

	backend.mu.Lock()
	backend.listErr = errors.New("connection refused")
	backend.mu.Unlock()

	err := c.Refresh(context.Background())
	require.Error(t, err)
	assert.Len(t, c.Notifications(), 1)
	require.Error(t, c.LastError())

	backend.mu.Lock()
	backend.listErr = nil
	backend.mu.Unlock()
	require.NoError(t, c.Refresh(context.Background()))
	assert.NoError(t, c.LastError())
}

func TestRefresh_ConcurrentCallsShareOneFetch(t *testing.T) {
	backend := &fakeBackend{gate: make(chan struct{})}
	c := newTestCenter(t, backend)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Refresh(context.Background()))
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(backend.gate)
	wg.Wait()

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Less(t, backend.listCalls, 5)
}

func TestRefresh_RequiresUser(t *testing.T) {
	c := NewCenter(&fakeBackend{}, &fakeUsers{}, nil, nil)
	assert.ErrorIs(t, c.Refresh(context.Background()), ErrNoUser)
}

func TestMarkAsRead_OptimisticWithoutRollback(t *testing.T) {
	backend := &fakeBackend{list: []model.Notification{note("1", 1, model.StatusUnread), note("2", 2, model.StatusUnread)}}
	c := newTestCenter(t, backend)
	require.NoError(t, c.Refresh(context.Background()))

	require.NoError(t, c.MarkAsRead(context.Background(), "1"))
	assert.Equal(t, 1, c.UnreadCount())

	backend.markErr = errors.New("server error")
	err := c.MarkAsRead(context.Background(), "2")
	require.Error(t, err)
	assert.Equal(t, 0, c.UnreadCount(), "local flip is kept after a failed call")
	assert.Error(t, c.LastError())
	assert.Equal(t, []string{"1", "2"}, backend.marked)
}

func TestMarkAsRead_LocalPlaceholderStaysLocal(t *testing.T) {
	backend := &fakeBackend{}
	c := newTestCenter(t, backend)

	c.HandleEvent(model.Event{Type: "PROMOTION", Message: "sale"})
	got := c.Notifications()
	require.Len(t, got, 1)
	assert.True(t, got[0].IsLocal())

	require.NoError(t, c.MarkAsRead(context.Background(), got[0].ID))
	assert.Zero(t, c.UnreadCount())
	assert.Empty(t, backend.marked)
}

func TestMarkAllAsRead_Idempotent(t *testing.T) {
	backend := &fakeBackend{list: []model.Notification{
		note("1", 1, model.StatusUnread), note("2", 2, model.StatusUnread), note("3", 3, model.StatusRead),
	}}
	c := newTestCenter(t, backend)
	require.NoError(t, c.Refresh(context.Background()))

	require.NoError(t, c.MarkAllAsRead(context.Background()))
	once := c.Notifications()
	require.NoError(t, c.MarkAllAsRead(context.Background()))
	twice := c.Notifications()

	assert.Equal(t, once, twice)
	assert.Zero(t, c.UnreadCount())
	assert.Equal(t, []string{"42", "42"}, backend.markAllFor)
}

func TestUnreadCountMatchesSet(t *testing.T) {
	c := newTestCenter(t, &fakeBackend{})
	ctx := context.Background()

	steps := []func(){
		func() { c.HandleEvent(model.Event{ID: "a", Type: "ORDER_UPDATE", UserID: "42"}) },
		func() { c.HandleEvent(model.Event{ID: "b", Type: "SYSTEM"}) },
		func() { _ = c.MarkAsRead(ctx, "a") },
		// A re-push of a read notification must not make it unread again.
		func() { c.HandleEvent(model.Event{ID: "a", Type: "ORDER_UPDATE", UserID: "42"}) },
		func() { c.HandleEvent(model.Event{Type: "PROMOTION"}) },
		func() { c.HandleEvent(model.Event{ID: "x", Type: "ORDER_UPDATE", UserID: "7"}) },
		func() { _ = c.MarkAsRead(ctx, "missing") },
		func() { c.Dismiss("b") },
	}
	for i, step := range steps {
		step()
		assert.Equal(t, unreadIn(c.Notifications()), c.UnreadCount(), "after step %d", i)
	}

	a, ok := c.Get("a")
	require.True(t, ok)
	assert.False(t, a.IsUnread())
	_, ok = c.Get("x")
	assert.False(t, ok, "notifications for other users are dropped")
	assert.Equal(t, 1, c.UnreadCount())
}

func TestSubscribersSeeSameEventsInOrder(t *testing.T) {
	c := newTestCenter(t, &fakeBackend{})

	type sink struct {
		mu  sync.Mutex
		got []string
	}
	collect := func(s *sink) func(Event) {
		return func(e Event) {
			if e.Kind != EventNotification {
				return
			}
			s.mu.Lock()
			s.got = append(s.got, e.Notification.ID+":"+e.Notification.Message)
			s.mu.Unlock()
		}
	}
	toast, dropdown := &sink{}, &sink{}
	c.Subscribe(collect(toast))
	c.Subscribe(collect(dropdown))

	var want []string
	for i := range 20 {
		id := fmt.Sprintf("n%d", i)
		msg := fmt.Sprintf("update %d", i)
		want = append(want, id+":"+msg)
		c.HandleEvent(model.Event{ID: id, Type: "ORDER_UPDATE", Message: msg, UserID: "42"})
	}

	read := func(s *sink) []string {
		s.mu.Lock()
		defer s.mu.Unlock()
		return append([]string(nil), s.got...)
	}
	require.Eventually(t, func() bool {
		return len(read(toast)) == 20 && len(read(dropdown)) == 20
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, want, read(toast))
	assert.Equal(t, want, read(dropdown))
}

func TestSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	c := newTestCenter(t, &fakeBackend{})

	block := make(chan struct{})
	defer close(block)
	c.Subscribe(func(Event) { <-block })

	got := make(chan Event, 1)
	c.Subscribe(func(e Event) {
		if e.Kind == EventNotification {
			got <- e
		}
	})

	c.HandleEvent(model.Event{ID: "1", Type: "SYSTEM"})
	select {
	case e := <-got:
		assert.Equal(t, "1", e.Notification.ID)
	case <-time.After(time.Second):
		t.Fatal("fast subscriber was blocked")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	c := newTestCenter(t, &fakeBackend{})

	var mu sync.Mutex
	count := 0
	unsubscribe := c.Subscribe(func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	c.HandleEvent(model.Event{ID: "1", Type: "SYSTEM"})
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	}, time.Second, 5*time.Millisecond)

	unsubscribe()
	unsubscribe()
	c.HandleEvent(model.Event{ID: "2", Type: "SYSTEM"})
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count)
}

func TestDismiss_HiddenFromLaterRefresh(t *testing.T) {
	backend := &fakeBackend{list: []model.Notification{note("1", 1, model.StatusUnread), note("2", 2, model.StatusUnread)}}
	c := newTestCenter(t, backend)
	require.NoError(t, c.Refresh(context.Background()))

	c.Dismiss("1")
	require.NoError(t, c.Refresh(context.Background()))

	_, ok := c.Get("1")
	assert.False(t, ok)
	assert.Equal(t, 1, c.UnreadCount())
	assert.Empty(t, backend.marked, "dismiss is local only")
}

func TestChatScrollback(t *testing.T) {
	c := newTestCenter(t, &fakeBackend{})
	c.chatLimit = 3

	for i := range 5 {
		c.HandleEvent(model.Event{Type: "CHAT", Sender: "support", Message: fmt.Sprintf("line %d", i)})
	}

	chat := c.Chat()
	require.Len(t, chat, 3)
	assert.Equal(t, "line 2", chat[0].Text)
	assert.Equal(t, "line 4", chat[2].Text)
	assert.Empty(t, c.Notifications())
}

func TestLoadCachedAndReset(t *testing.T) {
	cache := testutil.NewTestStore(t)
	users := &fakeUsers{user: &model.User{ID: "42"}}
	backend := &fakeBackend{list: []model.Notification{note("1", 1, model.StatusUnread)}}

	first := NewCenter(backend, users, cache, nil)
	require.NoError(t, first.Refresh(context.Background()))
	first.HandleEvent(model.Event{Type: "CHAT", Sender: "support", Message: "hello"})
	first.Close()

	// A new process starts from the cache before any network call.
	second := NewCenter(&fakeBackend{listErr: errors.New("offline")}, users, cache, nil)
	t.Cleanup(second.Close)
	require.NoError(t, second.LoadCached(context.Background()))
	assert.Equal(t, 1, second.UnreadCount())
	require.Len(t, second.Chat(), 1)
	assert.Equal(t, "hello", second.Chat()[0].Text)

	require.NoError(t, second.Reset(context.Background()))
	assert.Zero(t, second.UnreadCount())
	assert.Empty(t, second.Chat())

	cached, err := cache.GetNotifications(context.Background(), "42")
	require.NoError(t, err)
	assert.Empty(t, cached)
}

func TestWatchSession(t *testing.T) {
	signals := events.NewSignals()
	backend := &fakeBackend{list: []model.Notification{note("1", 1, model.StatusUnread)}}
	c := newTestCenter(t, backend)
	c.WatchSession(signals)

	signals.AuthChanged.Publish(events.AuthStateChanged{LoggedIn: true, User: &model.User{ID: "42"}})
	require.Eventually(t, func() bool { return c.UnreadCount() == 1 }, time.Second, 5*time.Millisecond)

	signals.AuthChanged.Publish(events.AuthStateChanged{LoggedIn: false})
	assert.Zero(t, c.UnreadCount())
}

func TestReset_DropsRefreshInFlight(t *testing.T) {
	backend := &fakeBackend{
		list:    []model.Notification{note("1", 1, model.StatusUnread)},
		gate:    make(chan struct{}),
		started: make(chan struct{}),
	}
	cache := testutil.NewTestStore(t)
	c := NewCenter(backend, &fakeUsers{user: &model.User{ID: "42"}}, cache, nil)
	t.Cleanup(c.Close)

	refreshed := make(chan error)
	go func() { refreshed <- c.Refresh(context.Background()) }()
	<-backend.started

	require.NoError(t, c.Reset(context.Background()))
	close(backend.gate)
	require.NoError(t, <-refreshed)

	assert.Empty(t, c.Notifications())
	assert.Zero(t, c.UnreadCount())

	cached, err := cache.GetNotifications(context.Background(), "42")
	require.NoError(t, err)
	assert.Empty(t, cached)

	// A refresh started after the reset applies normally.
	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, 1, c.UnreadCount())
}
