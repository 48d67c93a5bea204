package events

import (
	"sync"

	"vaultdex/core/types"
)

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC streams).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Typed wraps a types.Event so it satisfies Event.
type Typed struct {
	Payload *types.Event
}

// EventType implements Event.
func (t Typed) EventType() string {
	if t.Payload == nil {
		return ""
	}
	return t.Payload.Type
}

// Event returns the wrapped payload.
func (t Typed) Event() *types.Event { return t.Payload }

// Buffer collects events emitted during a unit of work so they can be
// published once the work commits, or dropped when it aborts.
type Buffer struct {
	events []Event
}

// Emit implements Emitter.
func (b *Buffer) Emit(evt Event) {
	if evt == nil {
		return
	}
	b.events = append(b.events, evt)
}

// Len returns the number of buffered events.
func (b *Buffer) Len() int { return len(b.events) }

// Events returns the buffered events in emission order.
func (b *Buffer) Events() []Event {
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// FlushTo forwards the buffered events to dst and empties the buffer.
func (b *Buffer) FlushTo(dst Emitter) {
	if dst != nil {
		for _, evt := range b.events {
			dst.Emit(evt)
		}
	}
	b.events = nil
}

// Reset drops every buffered event.
func (b *Buffer) Reset() { b.events = nil }

// Feed fans events out to any number of subscribers. Slow subscribers lose
// events rather than blocking the publisher.
type Feed struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
	onDrop func()
}

// NewFeed returns an empty feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[int]chan Event)}
}

// Emit implements Emitter.
func (f *Feed) Emit(evt Event) {
	if f == nil || evt == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		select {
		case ch <- evt:
		default:
			if f.onDrop != nil {
				f.onDrop()
			}
		}
	}
}

// OnDrop installs a callback invoked whenever a subscriber misses an event.
func (f *Feed) OnDrop(fn func()) {
	f.mu.Lock()
	f.onDrop = fn
	f.mu.Unlock()
}

// Subscribe registers a subscriber with the given channel capacity and returns
// its channel together with a cancel function that closes it.
func (f *Feed) Subscribe(capacity int) (<-chan Event, func()) {
	if capacity <= 0 {
		capacity = 1
	}
	ch := make(chan Event, capacity)
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = ch
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}
