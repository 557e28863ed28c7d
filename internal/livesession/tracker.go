// Package livesession maintains the mutable, in-memory accumulator that
// pairs tool_use/tool_result events and tracks per-session message history
// with a configurable retention policy: a map protected by a coarse lock
// for add/remove, with one finer-grained lock per tracked entity for
// mutation.
package livesession

import (
	"container/list"
	"sync"
	"time"

	"github.com/mgmacleod/claude-sessions/internal/config"
	"github.com/mgmacleod/claude-sessions/internal/event"
	"github.com/mgmacleod/claude-sessions/internal/message"
	"github.com/mgmacleod/claude-sessions/pkg/session"
)

// maxOrphans bounds the number of unmatched tool_result entries retained
// per session before the oldest is discarded.
const maxOrphans = 1024

// pendingCall is one tool_use awaiting its result.
type pendingCall struct {
	block          message.ContentBlock
	requestMessage message.Message
}

// orphanResult is one tool_result that arrived with no matching pending
// tool_use. In a well-formed transcript results always follow uses, so an
// orphan records a result whose tool_use was never seen at all, e.g. a
// truncated history.
type orphanResult struct {
	toolUseID string
	block     message.ContentBlock
	timestamp time.Time
}

// LiveSession is the mutable per-session accumulator.
type LiveSession struct {
	mu sync.Mutex

	SessionID   string
	ProjectSlug string
	StartTime   time.Time

	lastActivity time.Time
	isIdle       bool

	mainMessages   []message.Message
	perAgent       map[string][]message.Message
	pending        map[string]pendingCall
	closedCalls    []message.ToolCall
	orphans        *list.List // of orphanResult, oldest at Front
	orphanByID     map[string]*list.Element

	messageCount int
	toolCount    int

	retention Retention
}

// New creates a LiveSession for sessionID/projectSlug, first seen at
// startTime, using the given retention policy.
func New(sessionID, projectSlug string, startTime time.Time, retention Retention) *LiveSession {
	if retention == nil {
		retention = FullRetention{}
	}
	return &LiveSession{
		SessionID:    sessionID,
		ProjectSlug:  projectSlug,
		StartTime:    startTime,
		lastActivity: startTime,
		perAgent:     make(map[string][]message.Message),
		pending:      make(map[string]pendingCall),
		orphans:      list.New(),
		orphanByID:   make(map[string]*list.Element),
		retention:    retention,
	}
}

// LastActivity returns the time of the most recently handled event.
func (s *LiveSession) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// IsIdle reports whether the session is currently considered idle.
func (s *LiveSession) IsIdle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isIdle
}

// SetIdle updates the idle flag; called by the session lifecycle state
// machine, not by event handling.
func (s *LiveSession) SetIdle(idle bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isIdle = idle
}

// Counters returns the running message/tool counts.
func (s *LiveSession) Counters() (messages, tools int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messageCount, s.toolCount
}

// Handle processes one parsed event against this session's state. The
// matching parser.Result fields (msg, toolUses, toolResults) must
// correspond to the same source entry as ev. Handle returns a synthesized
// `tool_use_id_collision` error event when a tool_use reuses an id already
// pending or already closed; in that case no state is mutated beyond
// recording last_activity.
func (s *LiveSession) Handle(ev event.Event, msg message.Message, toolUses, toolResults []message.ContentBlock) []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActivity = ev.Timestamp

	var synthesized []event.Event

	switch ev.EventType {
	case event.TypeMessage:
		s.messageCount++
		s.appendMessage(msg)

	case event.TypeToolUse:
		for _, tu := range toolUses {
			if s.isKnownID(tu.ToolUseID) {
				synthesized = append(synthesized, collisionEvent(ev, tu.ToolUseID))
				continue
			}
			s.toolCount++
			s.pending[tu.ToolUseID] = pendingCall{block: tu, requestMessage: msg}
		}

	case event.TypeToolResult:
		for _, tr := range toolResults {
			if completed, ok := s.pair(tr, ev.Timestamp, msg); ok {
				synthesized = append(synthesized, completed)
			}
		}
	}

	return synthesized
}

func (s *LiveSession) isKnownID(toolUseID string) bool {
	if _, ok := s.pending[toolUseID]; ok {
		return true
	}
	for _, c := range s.closedCalls {
		if c.ToolUseID == toolUseID {
			return true
		}
	}
	return false
}

func (s *LiveSession) appendMessage(msg message.Message) {
	if !s.retention.StoresMessages() {
		return
	}
	if msg.IsSidechain && msg.AgentID != "" {
		s.perAgent[msg.AgentID] = append(s.perAgent[msg.AgentID], msg)
	} else {
		s.mainMessages = append(s.mainMessages, msg)
	}
	s.mainMessages, s.perAgent = s.retention.Apply(s.mainMessages, s.perAgent)
}

// pair looks up the pending tool_use for tr's tool_use_id. On a hit it
// builds the ToolCall, moves it to closedCalls, and returns the
// tool_call_completed event to synthesize. On a miss it files tr as an
// orphan, bounded to maxOrphans.
func (s *LiveSession) pair(tr message.ContentBlock, resultTime time.Time, responseMsg message.Message) (event.Event, bool) {
	pc, ok := s.pending[tr.ToolResultUseID]
	if !ok {
		s.addOrphan(tr, resultTime)
		return event.Event{}, false
	}
	delete(s.pending, tr.ToolResultUseID)

	respMsg := responseMsg
	call := message.ToolCall{
		ToolUseID:       pc.block.ToolUseID,
		ToolName:        pc.block.ToolName,
		ToolCategory:    pc.block.ToolCatg,
		ToolInput:       pc.block.ToolInput,
		RequestMessage:  pc.requestMessage,
		ResponseMessage: &respMsg,
		ResultText:      tr.ToolResultText,
		IsError:         tr.ToolResultError,
		Timestamp:       pc.requestMessage.Timestamp,
	}
	s.closedCalls = append(s.closedCalls, call)

	return event.Event{
		EventType: event.TypeToolCallCompleted,
		Timestamp: resultTime,
		SessionID: s.SessionID,
		AgentID:   responseMsg.AgentID,
		ToolCallCompleted: event.ToolCallCompleted{
			ToolCall: call,
			ToolName: call.ToolName,
			IsError:  call.IsError,
			Duration: resultTime.Sub(pc.requestMessage.Timestamp),
		},
	}, true
}

func (s *LiveSession) addOrphan(tr message.ContentBlock, ts time.Time) {
	if el, ok := s.orphanByID[tr.ToolResultUseID]; ok {
		s.orphans.Remove(el)
	}
	el := s.orphans.PushBack(orphanResult{toolUseID: tr.ToolResultUseID, block: tr, timestamp: ts})
	s.orphanByID[tr.ToolResultUseID] = el

	for s.orphans.Len() > maxOrphans {
		oldest := s.orphans.Front()
		s.orphans.Remove(oldest)
		delete(s.orphanByID, oldest.Value.(orphanResult).toolUseID)
	}
}

func collisionEvent(ev event.Event, toolUseID string) event.Event {
	return event.Event{
		EventType: event.TypeError,
		Timestamp: ev.Timestamp,
		SessionID: ev.SessionID,
		AgentID:   ev.AgentID,
		Error: event.Error{
			ErrorMessage: "tool_use_id_collision: " + toolUseID,
		},
	}
}

// ToSession deep-copies counters and message lists into the immutable
// downstream Session shape, grouping sidechains into per-agent Threads.
func (s *LiveSession) ToSession() session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := session.Session{
		ID:           s.SessionID,
		ProjectSlug:  s.ProjectSlug,
		StartTime:    s.StartTime,
		LastActivity: s.lastActivity,
		Main:         session.Thread{Messages: snapshotMessages(s.mainMessages)},
		Agents:       make(map[string]session.Thread, len(s.perAgent)),
		MessageCount: s.messageCount,
		ToolCount:    s.toolCount,
	}
	for agentID, msgs := range s.perAgent {
		out.Agents[agentID] = session.Thread{AgentID: agentID, Messages: snapshotMessages(msgs)}
	}
	out.ToolCalls = make([]session.ToolCallRecord, 0, len(s.closedCalls))
	for _, c := range s.closedCalls {
		rec := session.ToolCallRecord{
			ToolUseID:   c.ToolUseID,
			ToolName:    c.ToolName,
			ToolCategory: string(c.ToolCategory),
			RequestedAt: c.RequestMessage.Timestamp,
			IsError:     c.IsError,
			ResultText:  c.ResultText,
		}
		if c.ResponseMessage != nil {
			rec.RespondedAt = c.ResponseMessage.Timestamp
			rec.Duration = rec.RespondedAt.Sub(rec.RequestedAt)
		}
		out.ToolCalls = append(out.ToolCalls, rec)
	}
	return out
}

func snapshotMessages(msgs []message.Message) []session.Message {
	out := make([]session.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, session.Message{
			UUID:       m.UUID,
			ParentUUID: m.ParentUUID,
			Timestamp:  m.Timestamp,
			Role:       m.Role,
			Model:      m.Model,
			Text:       m.TextContent(),
			CWD:        m.CWD,
			GitBranch:  m.GitBranch,
		})
	}
	return out
}

// RetentionFor builds the Retention strategy named by cfg.
func RetentionFor(cfg config.WatcherConfig) Retention {
	switch cfg.RetentionPolicy {
	case config.RetentionSliding:
		return SlidingRetention{MaxMessages: cfg.MaxMessages}
	case config.RetentionNone:
		return NoneRetention{}
	default:
		return FullRetention{}
	}
}
