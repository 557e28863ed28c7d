package emitter

import (
	"context"
	"testing"

	"github.com/mgmacleod/claude-sessions/internal/event"
)

func TestEmit_InvokesTaggedThenWildcardInRegistrationOrder(t *testing.T) {
	em := New(nil)

	var order []string
	em.On(event.TypeMessage, func(context.Context, event.Event) { order = append(order, "tagged-1") })
	em.On(event.TypeMessage, func(context.Context, event.Event) { order = append(order, "tagged-2") })
	em.OnAny(func(context.Context, event.Event) { order = append(order, "wild-1") })
	em.OnAny(func(context.Context, event.Event) { order = append(order, "wild-2") })

	em.Emit(context.Background(), event.Event{EventType: event.TypeMessage})

	want := []string{"tagged-1", "tagged-2", "wild-1", "wild-2"}
	if len(order) != len(want) {
		t.Fatalf("invocation count = %d, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestEmit_TagMismatchSkipsTaggedHandlers(t *testing.T) {
	em := New(nil)

	tagged := 0
	wild := 0
	em.On(event.TypeToolUse, func(context.Context, event.Event) { tagged++ })
	em.OnAny(func(context.Context, event.Event) { wild++ })

	em.Emit(context.Background(), event.Event{EventType: event.TypeMessage})

	if tagged != 0 {
		t.Errorf("tool_use handler invoked %d times for a message event", tagged)
	}
	if wild != 1 {
		t.Errorf("wildcard handler invoked %d times, want 1", wild)
	}
}

func TestEmit_PanickingHandlerIsIsolatedAndStaysRegistered(t *testing.T) {
	em := New(nil)

	var delivered []event.Event
	panics := 0
	em.On(event.TypeMessage, func(context.Context, event.Event) {
		panics++
		panic("handler failure")
	})
	em.On(event.TypeMessage, func(_ context.Context, ev event.Event) {
		delivered = append(delivered, ev)
	})

	var errorEvents []event.Event
	em.On(event.TypeError, func(_ context.Context, ev event.Event) {
		errorEvents = append(errorEvents, ev)
	})

	ctx := context.Background()
	em.Emit(ctx, event.Event{EventType: event.TypeMessage, SessionID: "s1"})
	em.Emit(ctx, event.Event{EventType: event.TypeMessage, SessionID: "s1"})

	if len(delivered) != 2 {
		t.Errorf("second handler received %d events, want 2 despite first panicking", len(delivered))
	}
	if panics != 2 {
		t.Errorf("panicking handler invoked %d times, want 2 (must stay registered)", panics)
	}
	if len(errorEvents) != 2 {
		t.Fatalf("synthesized error events = %d, want one per panicking dispatch", len(errorEvents))
	}
	if errorEvents[0].Error.ErrorMessage == "" {
		t.Error("synthesized error event has empty error_message")
	}
	if errorEvents[0].SessionID != "s1" {
		t.Errorf("synthesized error session = %q, want s1", errorEvents[0].SessionID)
	}
}

func TestEmit_PanicInErrorHandlerDoesNotRecurse(t *testing.T) {
	em := New(nil)
	em.On(event.TypeError, func(context.Context, event.Event) { panic("error handler also fails") })
	em.On(event.TypeMessage, func(context.Context, event.Event) { panic("original failure") })

	// Must not stack-overflow or deadlock.
	em.Emit(context.Background(), event.Event{EventType: event.TypeMessage})
}
