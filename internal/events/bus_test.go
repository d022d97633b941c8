package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_PublishInSubscriptionOrder(t *testing.T) {
	var b Bus[int]
	var got []string

	b.Subscribe(func(v int) { got = append(got, "first") })
	b.Subscribe(func(v int) { got = append(got, "second") })

	b.Publish(1)

	assert.Equal(t, []string{"first", "second"}, got)
}

func TestBus_Unsubscribe(t *testing.T) {
	var b Bus[string]
	calls := 0

	unsub := b.Subscribe(func(string) { calls++ })
	b.Publish("a")
	unsub()
	unsub()
	b.Publish("b")

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, b.Len())
}

func TestBus_UnsubscribeDuringPublish(t *testing.T) {
	var b Bus[int]
	calls := 0

	var unsub func()
	unsub = b.Subscribe(func(int) {
		calls++
		unsub()
	})

	b.Publish(1)
	b.Publish(2)

	assert.Equal(t, 1, calls)
}

func TestBus_ConcurrentPublish(t *testing.T) {
	var b Bus[int]
	var mu sync.Mutex
	sum := 0
	b.Subscribe(func(v int) {
		mu.Lock()
		sum += v
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			b.Publish(v)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1275, sum)
}

func TestSignals_AreIndependent(t *testing.T) {
	s := NewSignals()
	var invalidated, changed int

	s.SessionInvalidated.Subscribe(func(SessionInvalidated) { invalidated++ })
	s.AuthChanged.Subscribe(func(AuthStateChanged) { changed++ })

	s.AuthChanged.Publish(AuthStateChanged{LoggedIn: false})

	assert.Equal(t, 0, invalidated)
	assert.Equal(t, 1, changed)
}
