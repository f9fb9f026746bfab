package history

import (
	"context"
	"sync"
	"time"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventServerStarted    EventType = "server-started"
	EventServerStopped    EventType = "server-stopped"
	EventRestartScheduled EventType = "restart-scheduled"
	EventRestartExecuted  EventType = "restart-executed"
	EventRconCommand      EventType = "rcon-command"
	EventModDownloaded    EventType = "mod-downloaded"
)

// Event is a journal entry exported to external systems. Subject is the
// event's main identifier (profile name, workshop id, rcon command).
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Profile    string    `json:"profile"`
	Subject    string    `json:"subject"`
	Detail     string    `json:"detail,omitempty"`
}

// Sink is a destination for history events. Implementations must be safe
// for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// Multi fans an event out to all sinks; the first error wins but every
// sink still receives the event.
type Multi []Sink

func (m Multi) Send(ctx context.Context, e Event) error {
	var first error
	for _, s := range m {
		if err := s.Send(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Memory keeps the most recent events in a ring, serving the control
// API's journal endpoint. Zero capacity defaults to 256.
type Memory struct {
	mu     sync.Mutex
	buf    []Event
	next   int
	filled bool
}

func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 256
	}
	return &Memory{buf: make([]Event, capacity)}
}

func (m *Memory) Send(_ context.Context, e Event) error {
	m.mu.Lock()
	m.buf[m.next] = e
	m.next++
	if m.next == len(m.buf) {
		m.next = 0
		m.filled = true
	}
	m.mu.Unlock()
	return nil
}

// Recent returns up to n events, newest first.
func (m *Memory) Recent(n int) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	size := m.next
	if m.filled {
		size = len(m.buf)
	}
	if n <= 0 || n > size {
		n = size
	}
	out := make([]Event, 0, n)
	for i := 1; i <= n; i++ {
		idx := (m.next - i + len(m.buf)) % len(m.buf)
		out = append(out, m.buf[idx])
	}
	return out
}
