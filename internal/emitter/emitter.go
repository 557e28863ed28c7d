// Package emitter dispatches events to registered handlers, isolating
// handler failures from each other and from the dispatch loop.
package emitter

import (
	"context"
	"fmt"
	"sync"

	"github.com/mgmacleod/claude-sessions/internal/event"
	"github.com/mgmacleod/claude-sessions/internal/logging"
)

// Handler receives one event. A Handler must not block indefinitely; long
// work is the handler's responsibility to offload.
type Handler func(context.Context, event.Event)

// Emitter registers handlers by event type tag, plus wildcard handlers.
type Emitter struct {
	mu       sync.Mutex
	handlers map[event.Type][]Handler
	wildcard []Handler
	logger   *logging.Logger
}

// New creates an empty Emitter.
func New(logger *logging.Logger) *Emitter {
	if logger == nil {
		logger = logging.Default()
	}
	return &Emitter{
		handlers: make(map[event.Type][]Handler),
		logger:   logger,
	}
}

// On registers a handler for one event type tag.
func (m *Emitter) On(tag event.Type, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[tag] = append(m.handlers[tag], h)
}

// OnAny registers a handler invoked for every event.
func (m *Emitter) OnAny(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wildcard = append(m.wildcard, h)
}

// Emit invokes, for ev's tag then the wildcards, each registered handler in
// registration order. A handler that panics is recovered, reported as a
// synthesized `error` event, and dispatch continues with the remaining
// handlers; the raising handler stays registered.
func (m *Emitter) Emit(ctx context.Context, ev event.Event) {
	m.mu.Lock()
	tagged := append([]Handler(nil), m.handlers[ev.EventType]...)
	wild := append([]Handler(nil), m.wildcard...)
	m.mu.Unlock()

	for _, h := range tagged {
		m.invoke(ctx, h, ev)
	}
	for _, h := range wild {
		m.invoke(ctx, h, ev)
	}
}

func (m *Emitter) invoke(ctx context.Context, h Handler, ev event.Event) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error(ctx, "event handler panicked", "event_type", string(ev.EventType), "panic", r)
			synthesized := event.Event{
				EventType: event.TypeError,
				Timestamp: ev.Timestamp,
				SessionID: ev.SessionID,
				AgentID:   ev.AgentID,
				Error: event.Error{
					ErrorMessage: fmt.Sprintf("handler error: %v", r),
				},
			}
			// Deliver the synthesized error directly to error-tag and
			// wildcard handlers, bypassing Emit to avoid recursing through
			// the same handler that just panicked.
			m.mu.Lock()
			tagged := append([]Handler(nil), m.handlers[event.TypeError]...)
			wild := append([]Handler(nil), m.wildcard...)
			m.mu.Unlock()
			for _, eh := range tagged {
				safeInvoke(ctx, eh, synthesized)
			}
			for _, eh := range wild {
				safeInvoke(ctx, eh, synthesized)
			}
		}
	}()
	h(ctx, ev)
}

func safeInvoke(ctx context.Context, h Handler, ev event.Event) {
	defer func() { recover() }()
	h(ctx, ev)
}
