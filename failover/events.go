package failover

import (
	"slices"
	"sync"
	"time"

	"github.com/kbukum/speechgate/transcription"
)

// EventType identifies a status change.
type EventType int

const (
	// EventProviderChanged fires when a different identity becomes active.
	EventProviderChanged EventType = iota
	// EventFallbackTriggered fires before the fallback backend is invoked.
	EventFallbackTriggered
	// EventProviderRecovered fires on the first success after a failure.
	EventProviderRecovered
	// EventAllProvidersFailed fires when a request fails on every path.
	EventAllProvidersFailed
)

// String returns the event name.
func (t EventType) String() string {
	switch t {
	case EventProviderChanged:
		return "provider_changed"
	case EventFallbackTriggered:
		return "fallback_triggered"
	case EventProviderRecovered:
		return "provider_recovered"
	case EventAllProvidersFailed:
		return "all_providers_failed"
	default:
		return "unknown"
	}
}

// Event is delivered to status subscribers.
type Event struct {
	Type     EventType
	Provider transcription.Identity
	// Previous is the identity that was active before a change or fallback.
	Previous  transcription.Identity
	SessionID string
	Err       error
	At        time.Time
}

// notifier fans events out to subscribers. Handlers run synchronously on the
// goroutine that emits and must not block.
type notifier struct {
	mu       sync.RWMutex
	next     int
	handlers map[int]func(Event)
}

func (n *notifier) subscribe(fn func(Event)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.handlers == nil {
		n.handlers = make(map[int]func(Event))
	}
	id := n.next
	n.next++
	n.handlers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.handlers, id)
			n.mu.Unlock()
		})
	}
}

func (n *notifier) emit(ev Event) {
	n.mu.RLock()
	ids := make([]int, 0, len(n.handlers))
	for id := range n.handlers {
		ids = append(ids, id)
	}
	handlers := make([]func(Event), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		handlers = append(handlers, n.handlers[id])
	}
	n.mu.RUnlock()

	for _, fn := range handlers {
		fn(ev)
	}
}
