package livesession

import (
	"sync"
	"time"

	"github.com/mgmacleod/claude-sessions/internal/config"
	"github.com/mgmacleod/claude-sessions/internal/event"
	"github.com/mgmacleod/claude-sessions/internal/message"
	"github.com/mgmacleod/claude-sessions/pkg/session"
)

// Tracker owns every tracked LiveSession. A single map-level lock guards
// add/remove only; mutation of an individual session goes through that
// session's own mutex, so concurrent event handling for different sessions
// never contends on the map lock.
type Tracker struct {
	mu       sync.RWMutex
	sessions map[string]*LiveSession
	cfg      config.WatcherConfig
}

// NewTracker creates an empty Tracker using cfg's retention policy for
// every session it creates.
func NewTracker(cfg config.WatcherConfig) *Tracker {
	return &Tracker{
		sessions: make(map[string]*LiveSession),
		cfg:      cfg,
	}
}

// GetOrCreate returns the LiveSession for sessionID, creating it (with
// startTime as its start_time) if not already tracked.
func (t *Tracker) GetOrCreate(sessionID, projectSlug string, startTime time.Time) (*LiveSession, bool) {
	t.mu.RLock()
	s, ok := t.sessions[sessionID]
	t.mu.RUnlock()
	if ok {
		return s, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.sessions[sessionID]; ok {
		return s, false
	}
	s = New(sessionID, projectSlug, startTime, RetentionFor(t.cfg))
	t.sessions[sessionID] = s
	return s, true
}

// Get returns the tracked LiveSession for sessionID, if any.
func (t *Tracker) Get(sessionID string) (*LiveSession, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[sessionID]
	return s, ok
}

// Remove drops sessionID from tracking, returning its final snapshot.
func (t *Tracker) Remove(sessionID string) (session.Session, bool) {
	t.mu.Lock()
	s, ok := t.sessions[sessionID]
	if ok {
		delete(t.sessions, sessionID)
	}
	t.mu.Unlock()
	if !ok {
		return session.Session{}, false
	}
	return s.ToSession(), true
}

// Handle routes one parsed entry's results to the named session, creating
// it if unseen. It processes each wire event in order, feeding the
// matching typed message/tool-block data to the session's Handle, and
// returns the full event stream to emit: the original events interleaved
// with any synthesized collision or tool_call_completed events, each
// placed immediately after the wire event that produced it.
func (t *Tracker) Handle(sessionID, projectSlug string, events []event.Event, msg message.Message, toolUses, toolResults []message.ContentBlock) []event.Event {
	if len(events) == 0 {
		return nil
	}
	s, _ := t.GetOrCreate(sessionID, projectSlug, events[0].Timestamp)

	out := make([]event.Event, 0, len(events))
	for _, ev := range events {
		out = append(out, ev)
		switch ev.EventType {
		case event.TypeMessage:
			out = append(out, s.Handle(ev, msg, nil, nil)...)
		case event.TypeToolUse:
			out = append(out, s.Handle(ev, msg, []message.ContentBlock{blockForToolUse(ev, toolUses)}, nil)...)
		case event.TypeToolResult:
			out = append(out, s.Handle(ev, msg, nil, []message.ContentBlock{blockForToolResult(ev, toolResults)})...)
		}
	}
	return out
}

func blockForToolUse(ev event.Event, toolUses []message.ContentBlock) message.ContentBlock {
	for _, b := range toolUses {
		if b.ToolUseID == ev.ToolUse.ToolUseID {
			return b
		}
	}
	return message.ContentBlock{}
}

func blockForToolResult(ev event.Event, toolResults []message.ContentBlock) message.ContentBlock {
	for _, b := range toolResults {
		if b.ToolResultUseID == ev.ToolResult.ToolUseID {
			return b
		}
	}
	return message.ContentBlock{}
}

// Snapshot returns session.Session snapshots for every currently tracked
// session.
func (t *Tracker) Snapshot() []session.Session {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]session.Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, s.ToSession())
	}
	return out
}

// Len reports how many sessions are currently tracked.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}
