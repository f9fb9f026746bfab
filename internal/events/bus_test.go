package events

import (
	"testing"
	"time"
)

func recvOne(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
		return Event{}
	}
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	b := NewBus()
	ch1, cancel1 := b.Subscribe()
	defer cancel1()
	ch2, cancel2 := b.Subscribe()
	defer cancel2()

	b.Publish(ServerStarted, map[string]int{"pid": 42})

	for _, ch := range []<-chan Event{ch1, ch2} {
		e := recvOne(t, ch)
		if e.Type != ServerStarted {
			t.Fatalf("got type %q, want %q", e.Type, ServerStarted)
		}
	}
}

func TestSubscribeFiltersByKind(t *testing.T) {
	b := NewBus()
	ch, cancel := b.Subscribe(ItemCompleted)
	defer cancel()

	b.Publish(ItemStarted, nil)
	b.Publish(ItemCompleted, "mod-111")

	e := recvOne(t, ch)
	if e.Type != ItemCompleted {
		t.Fatalf("filter leaked event type %q", e.Type)
	}
	select {
	case e := <-ch:
		t.Fatalf("unexpected extra event: %+v", e)
	default:
	}
}

func TestPublishDoesNotBlockOnFullBuffer(t *testing.T) {
	b := NewBus()
	_, cancel := b.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Never drained; must not block the publisher.
		for i := 0; i < 1000; i++ {
			b.Publish(ItemProgress, i)
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Publish blocked on a slow subscriber")
	}
}

func TestCancelIsIdempotentAndClosesChannel(t *testing.T) {
	b := NewBus()
	ch, cancel := b.Subscribe()
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel after cancel")
	}
	// Publishing after cancel must not panic.
	b.Publish(QueueCompleted, nil)
}
