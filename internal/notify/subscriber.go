package notify

import (
	"sync"

	"github.com/nhle/storefront/internal/model"
)

// EventKind says what changed.
type EventKind int

const (
	// EventNotification carries a pushed notification that was accepted.
	EventNotification EventKind = iota
	// EventChat carries a chat line.
	EventChat
	// EventStateChanged means the local set changed for any other reason
	// (refresh, mark-read, dismiss, reset). Surfaces re-read the Center.
	EventStateChanged
)

// Event is what subscribers receive.
type Event struct {
	Kind         EventKind
	Notification *model.Notification
	Chat         *model.ChatMessage
}

// subscriber delivers events to fn on its own goroutine, in the order
// they were pushed. A slow subscriber never delays the others.
type subscriber struct {
	fn     func(Event)
	mu     sync.Mutex
	queue  []Event
	signal chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newSubscriber(fn func(Event)) *subscriber {
	s := &subscriber{
		fn:     fn,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *subscriber) push(e Event) {
	s.mu.Lock()
	s.queue = append(s.queue, e)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *subscriber) loop() {
	for {
		select {
		case <-s.done:
			return
		case <-s.signal:
		}

		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, e := range batch {
			select {
			case <-s.done:
				return
			default:
			}
			s.fn(e)
		}
	}
}
