package livesession

import "github.com/mgmacleod/claude-sessions/internal/message"

// Retention decides how a LiveSession's message lists are trimmed after
// each insert. It is a strategy, not a type hierarchy: each
// policy is a small stateless value implementing the same interface.
type Retention interface {
	// Apply trims main and per-agent message lists in place, returning the
	// possibly-shortened slices. It never touches pending_tool_calls.
	Apply(main []message.Message, perAgent map[string][]message.Message) ([]message.Message, map[string][]message.Message)
	// StoresMessages reports whether this policy keeps message bodies at
	// all; `none` keeps only counters and pending tool calls.
	StoresMessages() bool
}

// FullRetention keeps every message, unbounded.
type FullRetention struct{}

func (FullRetention) Apply(main []message.Message, perAgent map[string][]message.Message) ([]message.Message, map[string][]message.Message) {
	return main, perAgent
}

func (FullRetention) StoresMessages() bool { return true }

// SlidingRetention truncates main and each agent list to the last
// MaxMessages entries after every insert.
type SlidingRetention struct {
	MaxMessages int
}

func (r SlidingRetention) Apply(main []message.Message, perAgent map[string][]message.Message) ([]message.Message, map[string][]message.Message) {
	main = slidingTrim(main, r.MaxMessages)
	for agent, msgs := range perAgent {
		perAgent[agent] = slidingTrim(msgs, r.MaxMessages)
	}
	return main, perAgent
}

func (SlidingRetention) StoresMessages() bool { return true }

func slidingTrim(msgs []message.Message, max int) []message.Message {
	if max <= 0 || len(msgs) <= max {
		return msgs
	}
	excess := len(msgs) - max
	return append([]message.Message(nil), msgs[excess:]...)
}

// NoneRetention keeps only counters and pending_tool_calls; messages are
// never stored.
type NoneRetention struct{}

func (NoneRetention) Apply([]message.Message, map[string][]message.Message) ([]message.Message, map[string][]message.Message) {
	return nil, nil
}

func (NoneRetention) StoresMessages() bool { return false }
