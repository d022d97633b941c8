package app

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/storefront/internal/events"
	"github.com/nhle/storefront/internal/notify"
	"github.com/nhle/storefront/internal/realtime"
)

// centerEventMsg carries one notification center event into the UI loop.
type centerEventMsg struct {
	event notify.Event
}

// sessionInvalidatedMsg is sent when the session was torn down without
// the user asking for it.
type sessionInvalidatedMsg struct {
	reason events.InvalidationReason
}

// authChangedMsg mirrors events.AuthStateChanged.
type authChangedMsg struct {
	change events.AuthStateChanged
}

// connStateMsg carries a realtime connection state change.
type connStateMsg struct {
	state realtime.State
}

// bridge forwards callbacks from background goroutines into the Bubble
// Tea loop through a single inbox. It is shared by pointer so that every
// copy of the root model reads from the same channel.
type bridge struct {
	inbox  chan tea.Msg
	done   chan struct{}
	once   sync.Once
	mu     sync.Mutex
	unsubs []func()
}

func newBridge() *bridge {
	return &bridge{
		inbox: make(chan tea.Msg, 64),
		done:  make(chan struct{}),
	}
}

// send blocks until the message is queued or the bridge is closed. The
// caller's goroutine absorbs the wait, so ordering per source is kept.
func (b *bridge) send(msg tea.Msg) {
	select {
	case b.inbox <- msg:
	case <-b.done:
	}
}

func (b *bridge) track(unsubscribe func()) {
	b.mu.Lock()
	b.unsubs = append(b.unsubs, unsubscribe)
	b.mu.Unlock()
}

// wait returns a tea.Cmd that delivers the next inbox message. It must be
// re-issued after every delivery.
func (b *bridge) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-b.inbox:
			return msg
		case <-b.done:
			return nil
		}
	}
}

// close drops every subscription and releases blocked senders.
func (b *bridge) close() {
	b.once.Do(func() {
		close(b.done)
		b.mu.Lock()
		unsubs := b.unsubs
		b.unsubs = nil
		b.mu.Unlock()
		for _, u := range unsubs {
			u()
		}
	})
}
