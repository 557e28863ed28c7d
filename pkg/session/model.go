// Package session defines the immutable data model that live-tracker
// snapshots produce: Project holds Sessions, a Session holds Threads, a
// Thread holds Messages. Downstream consumers (batch loaders, exporters)
// work against this shape without importing the tracker.
package session

import "time"

// Project groups sessions that share a project slug.
type Project struct {
	Slug     string
	Sessions []Session
}

// Session is an immutable snapshot of one live-tracked session.
type Session struct {
	ID           string
	ProjectSlug  string
	StartTime    time.Time
	LastActivity time.Time
	Main         Thread
	Agents       map[string]Thread
	ToolCalls    []ToolCallRecord
	MessageCount int
	ToolCount    int
}

// Thread is one conversation thread: the main session thread, or one
// sub-agent's sidechain.
type Thread struct {
	AgentID  string // empty for the main thread
	Messages []Message
}

// Message is the immutable, snapshot form of a transcript message.
type Message struct {
	UUID       string
	ParentUUID string
	Timestamp  time.Time
	Role       string
	Model      string
	Text       string
	CWD        string
	GitBranch  string
}

// ToolCallRecord is the immutable, snapshot form of a closed tool call.
type ToolCallRecord struct {
	ToolUseID    string
	ToolName     string
	ToolCategory string
	RequestedAt  time.Time
	RespondedAt  time.Time
	Duration     time.Duration
	IsError      bool
	ResultText   string
}
