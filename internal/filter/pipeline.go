package filter

import (
	"context"

	"github.com/mgmacleod/claude-sessions/internal/emitter"
	"github.com/mgmacleod/claude-sessions/internal/event"
)

// Pipeline wraps an Emitter so that handlers registered on it are invoked
// only when the wrapped predicate holds for an event.
type Pipeline struct {
	pred Predicate
	em   *emitter.Emitter
}

// NewPipeline creates a Pipeline gated by pred, backed by its own internal
// Emitter. Feed events to it via Handle; it forwards matching events to
// handlers registered via On/OnAny.
func NewPipeline(pred Predicate) *Pipeline {
	if pred == nil {
		pred = Always()
	}
	return &Pipeline{pred: pred, em: emitter.New(nil)}
}

// On registers a handler for one event type tag, invoked only for matching
// events.
func (p *Pipeline) On(tag event.Type, h emitter.Handler) {
	p.em.On(tag, h)
}

// OnAny registers a handler invoked for every matching event.
func (p *Pipeline) OnAny(h emitter.Handler) {
	p.em.OnAny(h)
}

// Handle routes ev to the wrapped Emitter if it matches the pipeline's
// predicate. Call this from an upstream handler (e.g. registered on the
// Session Watcher's Emitter via OnAny) to chain pipelines.
func (p *Pipeline) Handle(ctx context.Context, ev event.Event) {
	if p.pred(ev) {
		p.em.Emit(ctx, ev)
	}
}
