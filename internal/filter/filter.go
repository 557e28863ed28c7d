// Package filter provides predicate factories and Boolean combinators over
// events, plus a pipeline that wraps an Emitter.
package filter

import (
	"strings"

	"github.com/mgmacleod/claude-sessions/internal/event"
	"github.com/mgmacleod/claude-sessions/internal/message"
)

// Predicate decides whether an event matches.
type Predicate func(event.Event) bool

// Project matches events from one project slug. session_start and
// session_end carry the project slug; other event types don't, so Project
// only ever matches those two event types. Callers typically combine it
// with Session or SessionPrefix for broader filtering.
func Project(slug string) Predicate {
	return func(e event.Event) bool {
		switch e.EventType {
		case event.TypeSessionStart:
			return e.SessionStart.ProjectSlug == slug
		case event.TypeSessionEnd:
			return e.SessionEnd.ProjectSlug == slug
		default:
			return false
		}
	}
}

// Session matches events from one session id.
func Session(id string) Predicate {
	return func(e event.Event) bool { return e.SessionID == id }
}

// SessionPrefix matches events whose session id has the given prefix.
func SessionPrefix(prefix string) Predicate {
	return func(e event.Event) bool { return strings.HasPrefix(e.SessionID, prefix) }
}

// EventType matches events whose tag is one of tags.
func EventType(tags ...event.Type) Predicate {
	set := make(map[event.Type]bool, len(tags))
	for _, t := range tags {
		set[t] = true
	}
	return func(e event.Event) bool { return set[e.EventType] }
}

// ToolName matches tool_use/tool_call_completed events for one of the given
// tool names.
func ToolName(names ...string) Predicate {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(e event.Event) bool {
		switch e.EventType {
		case event.TypeToolUse:
			return set[e.ToolUse.ToolName]
		case event.TypeToolCallCompleted:
			return set[e.ToolCallCompleted.ToolName]
		default:
			return false
		}
	}
}

// ToolCategory matches tool_use events for one of the given categories.
func ToolCategory(cats ...message.ToolCategory) Predicate {
	set := make(map[message.ToolCategory]bool, len(cats))
	for _, c := range cats {
		set[c] = true
	}
	return func(e event.Event) bool {
		return e.EventType == event.TypeToolUse && set[e.ToolUse.ToolCategory]
	}
}

// Agent matches any event carrying a non-empty agent id.
func Agent() Predicate {
	return func(e event.Event) bool { return e.AgentID != "" }
}

// MainThread matches events with no agent id.
func MainThread() Predicate {
	return func(e event.Event) bool { return e.AgentID == "" }
}

// HasError matches error-typed events, or events otherwise marked errored.
func HasError() Predicate {
	return func(e event.Event) bool { return e.HasError() }
}

// Role matches message events with the given role.
func Role(role string) Predicate {
	return func(e event.Event) bool {
		return e.EventType == event.TypeMessage && e.Message.Role == role
	}
}

// And is a short-circuiting conjunction.
func And(preds ...Predicate) Predicate {
	return func(e event.Event) bool {
		for _, p := range preds {
			if !p(e) {
				return false
			}
		}
		return true
	}
}

// Or is a short-circuiting disjunction.
func Or(preds ...Predicate) Predicate {
	return func(e event.Event) bool {
		for _, p := range preds {
			if p(e) {
				return true
			}
		}
		return false
	}
}

// Not negates a predicate.
func Not(p Predicate) Predicate {
	return func(e event.Event) bool { return !p(e) }
}

// Always matches every event.
func Always() Predicate { return func(event.Event) bool { return true } }

// Never matches no event.
func Never() Predicate { return func(event.Event) bool { return false } }
