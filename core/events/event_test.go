package events

import (
	"testing"

	"vaultdex/core/types"
)

func typed(kind string) Typed {
	return Typed{Payload: &types.Event{Type: kind}}
}

func TestBufferFlushesInOrder(t *testing.T) {
	var buf Buffer
	buf.Emit(typed("a"))
	buf.Emit(typed("b"))
	buf.Emit(nil)
	if buf.Len() != 2 {
		t.Fatalf("expected 2 buffered events, got %d", buf.Len())
	}

	var sink Buffer
	buf.FlushTo(&sink)
	if buf.Len() != 0 {
		t.Fatalf("expected buffer to be empty after flush")
	}
	got := sink.Events()
	if len(got) != 2 || got[0].EventType() != "a" || got[1].EventType() != "b" {
		t.Fatalf("unexpected flushed events: %+v", got)
	}
}

func TestBufferResetDropsEvents(t *testing.T) {
	var buf Buffer
	buf.Emit(typed("a"))
	buf.Reset()
	var sink Buffer
	buf.FlushTo(&sink)
	if sink.Len() != 0 {
		t.Fatalf("expected no events after reset, got %d", sink.Len())
	}
}

func TestFeedDeliversToSubscribers(t *testing.T) {
	feed := NewFeed()
	first, cancelFirst := feed.Subscribe(4)
	second, cancelSecond := feed.Subscribe(4)
	defer cancelSecond()

	feed.Emit(typed("listing.created"))

	if evt := <-first; evt.EventType() != "listing.created" {
		t.Fatalf("first subscriber got %q", evt.EventType())
	}
	if evt := <-second; evt.EventType() != "listing.created" {
		t.Fatalf("second subscriber got %q", evt.EventType())
	}

	cancelFirst()
	cancelFirst()
	if _, ok := <-first; ok {
		t.Fatalf("expected cancelled channel to be closed")
	}
	feed.Emit(typed("listing.sold"))
	if evt := <-second; evt.EventType() != "listing.sold" {
		t.Fatalf("second subscriber got %q", evt.EventType())
	}
}

func TestFeedDropsWhenSubscriberIsFull(t *testing.T) {
	feed := NewFeed()
	dropped := 0
	feed.OnDrop(func() { dropped++ })
	ch, cancel := feed.Subscribe(1)
	defer cancel()
	feed.Emit(typed("a"))
	feed.Emit(typed("b"))
	if dropped != 1 {
		t.Fatalf("expected one drop, got %d", dropped)
	}
	if evt := <-ch; evt.EventType() != "a" {
		t.Fatalf("expected first event to be retained, got %q", evt.EventType())
	}
	select {
	case evt := <-ch:
		t.Fatalf("unexpected extra event %q", evt.EventType())
	default:
	}
}
