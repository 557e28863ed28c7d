// Package async exposes an alternative, channel-based view over the same
// core event pipeline. Handlers registered here run inline on the caller's
// goroutine (the watcher's poll thread), one at a time, in emission order;
// a slow handler therefore delays the next poll. The core dispatch loop
// (internal/watcher) remains the single source of truth; this package only
// fans events out to a second consumption style without forking the
// pipeline.
package async

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/mgmacleod/claude-sessions/internal/event"
)

// defaultCapacity is the stock async_queue_capacity.
const defaultCapacity = 1024

// Handler is a (possibly slow) event handler run by Push on the calling
// goroutine.
// Handlers run sequentially, in emission order, one at a time.
type Handler func(context.Context, event.Event)

// Facade provides both a handler-registration surface and a suspending
// iterator (Events) over one event stream.
type Facade struct {
	capacity int

	mu       sync.Mutex
	handlers []Handler

	queue   chan event.Event
	dropped atomic.Uint64

	closeOnce sync.Once
}

// NewFacade creates a Facade with the given bounded queue capacity (0 uses
// the default of 1024).
func NewFacade(capacity int) *Facade {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Facade{
		capacity: capacity,
		queue:    make(chan event.Event, capacity),
	}
}

// OnEvent registers a handler invoked for every event, in registration
// order, sequentially with every other registered handler.
func (f *Facade) OnEvent(h Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, h)
}

// Push delivers ev to the facade: registered handlers run sequentially on
// the calling goroutine, and ev is copied into the bounded queue Events()
// drains. Register this as an OnAny handler on the core Emitter.
func (f *Facade) Push(ctx context.Context, ev event.Event) {
	select {
	case f.queue <- ev:
	default:
		// Overflow: drop the oldest queued element, then enqueue ev.
		select {
		case <-f.queue:
			f.dropped.Add(1)
		default:
		}
		select {
		case f.queue <- ev:
		default:
			f.dropped.Add(1)
		}
	}
	f.runHandlers(ctx, ev)
}

func (f *Facade) runHandlers(ctx context.Context, ev event.Event) {
	f.mu.Lock()
	handlers := append([]Handler(nil), f.handlers...)
	f.mu.Unlock()
	for _, h := range handlers {
		h(ctx, ev)
	}
}

// Events returns a channel yielding events in emission order. Closing the
// Facade closes this channel.
func (f *Facade) Events() <-chan event.Event {
	return f.queue
}

// EventsDropped returns the running count of events dropped due to queue
// overflow (events_dropped_total).
func (f *Facade) EventsDropped() uint64 {
	return f.dropped.Load()
}

// Close closes the event queue returned by Events. No further Push calls
// should be made after Close.
func (f *Facade) Close() {
	f.closeOnce.Do(func() { close(f.queue) })
}
