// Package event defines the immutable events the pipeline emits, and their
// JSON wire serialization.
package event

import (
	"encoding/json"
	"time"

	"github.com/mgmacleod/claude-sessions/internal/message"
)

// Type tags an Event's variant.
type Type string

const (
	TypeMessage            Type = "message"
	TypeToolUse             Type = "tool_use"
	TypeToolResult          Type = "tool_result"
	TypeToolCallCompleted   Type = "tool_call_completed"
	TypeError               Type = "error"
	TypeSessionStart        Type = "session_start"
	TypeSessionIdle         Type = "session_idle"
	TypeSessionResume       Type = "session_resume"
	TypeSessionEnd          Type = "session_end"
)

// EndReason enumerates why a session ended.
type EndReason string

const (
	EndIdleTimeout EndReason = "idle_timeout"
	EndFileGone    EndReason = "file_gone"
	EndShutdown    EndReason = "shutdown"
)

// Event is the common envelope plus a variant-specific payload. Exactly one
// of the typed payload fields is meaningful, selected by Type. Keeping the
// union a single Go struct lets the Emitter, Filter, and Metrics layers all
// operate on one type without a type switch at every call site.
type Event struct {
	EventType Type
	Timestamp time.Time
	SessionID string
	AgentID   string // empty means main thread

	Message Message

	ToolUse ToolUse

	ToolResult ToolResult

	ToolCallCompleted ToolCallCompleted

	Error Error

	SessionStart SessionStart
	SessionIdle  SessionIdle
	SessionResume SessionResume
	SessionEnd   SessionEnd
}

// Message mirrors message.Message for the `message` event payload.
type Message struct {
	UUID        string
	ParentUUID  string
	Role        string
	Model       string
	Text        string
	ToolUses    []ToolUseRef
	ToolResults []ToolResultRef
	CWD         string
	GitBranch   string
}

// ToolUseRef is the compact tool_use reference embedded in a message event.
type ToolUseRef struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// ToolResultRef is the compact tool_result reference embedded in a message event.
type ToolResultRef struct {
	ToolUseID string
	Content   string
	IsError   bool
}

// ToolUse is the `tool_use` event payload.
type ToolUse struct {
	ToolName     string
	ToolCategory message.ToolCategory
	ToolInput    json.RawMessage
	ToolUseID    string
	Message      Message
}

// ToolResult is the `tool_result` event payload.
type ToolResult struct {
	ToolUseID string
	Content   string
	IsError   bool
	Message   Message
}

// ToolCallCompleted is the `tool_call_completed` event payload.
type ToolCallCompleted struct {
	ToolCall message.ToolCall
	ToolName string
	IsError  bool
	Duration time.Duration
}

// Error is the `error` event payload.
type Error struct {
	ErrorMessage string
	RawEntry     json.RawMessage
}

// SessionStart is the `session_start` event payload.
type SessionStart struct {
	ProjectSlug string
	FilePath    string
	CWD         string
}

// SessionIdle is the `session_idle` event payload.
type SessionIdle struct {
	IdleSince time.Time
}

// SessionResume is the `session_resume` event payload.
type SessionResume struct {
	IdleDuration time.Duration
}

// SessionEnd is the `session_end` event payload.
type SessionEnd struct {
	ProjectSlug  string
	Reason       EndReason
	IdleDuration time.Duration
	MessageCount int
	ToolCount    int
}

// HasError reports whether this event represents an error: an error event,
// a failed tool_result, or a failed tool_call_completed.
func (e Event) HasError() bool {
	switch e.EventType {
	case TypeError:
		return true
	case TypeToolResult:
		return e.ToolResult.IsError
	case TypeToolCallCompleted:
		return e.ToolCallCompleted.IsError
	default:
		return false
	}
}
