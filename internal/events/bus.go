package events

import (
	"sync"
	"time"
)

// Type names an event kind published by the core services.
type Type string

const (
	// Supervisor events.
	ServerStarted   Type = "server-started"
	ServerStopped   Type = "server-stopped"
	ServerStats     Type = "server-stats"
	RestartExecuted Type = "restart-executed"

	// Mod queue events.
	QueueUpdated   Type = "queue-updated"
	ItemStarted    Type = "item-started"
	ItemProgress   Type = "item-progress"
	ItemCompleted  Type = "item-completed"
	ItemFailed     Type = "item-failed"
	QueueCompleted Type = "queue-completed"
)

// Event is a single published notification. Payload shape depends on Type.
type Event struct {
	Type       Type      `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload,omitempty"`
}

// Listener receives events. Implementations must not block; the bus drops
// events for listeners whose buffer is full rather than applying backpressure.
type Listener func(Event)

// Bus is a minimal multi-listener publish/subscribe hub. Publishing is
// fire-and-forget: no acknowledgment, no delivery guarantee to slow
// subscribers. Safe for concurrent use.
type Bus struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[int]subscription
}

type subscription struct {
	kinds map[Type]struct{} // nil means all kinds
	ch    chan Event
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{listeners: make(map[int]subscription)}
}

// Subscribe registers a listener for the given event kinds (all kinds when
// none are given). It returns a receive channel and a cancel function.
// The channel is buffered; events are dropped when the buffer is full.
func (b *Bus) Subscribe(kinds ...Type) (<-chan Event, func()) {
	sub := subscription{ch: make(chan Event, 64)}
	if len(kinds) > 0 {
		sub.kinds = make(map[Type]struct{}, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = struct{}{}
		}
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = sub
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if s, ok := b.listeners[id]; ok {
				delete(b.listeners, id)
				close(s.ch)
			}
			b.mu.Unlock()
		})
	}
	return sub.ch, cancel
}

// Publish delivers e to every matching subscriber without blocking.
func (b *Bus) Publish(kind Type, payload any) {
	e := Event{Type: kind, OccurredAt: time.Now().UTC(), Payload: payload}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.listeners {
		if sub.kinds != nil {
			if _, ok := sub.kinds[kind]; !ok {
				continue
			}
		}
		select {
		case sub.ch <- e:
		default:
			// Subscriber buffer full; drop rather than block publishers.
		}
	}
}
