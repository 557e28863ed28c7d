// Package message holds the immutable Message and ToolCall entities built
// from parsed transcript entries.
package message

import (
	"encoding/json"
	"strings"
	"time"
)

// Message is an immutable record of one transcript entry's conversational
// content. ParentUUID is recorded but never validated against a tree; an
// orphaned message is still a valid Message.
type Message struct {
	UUID        string
	ParentUUID  string
	Timestamp   time.Time
	Role        string
	Content     []ContentBlock
	SessionID   string
	AgentID     string
	IsSidechain bool
	Model       string
	CWD         string
	GitBranch   string
}

// ContentBlock is the internal, already-classified counterpart of
// entry.ContentBlock: a text block, a tool use, or a tool result.
type ContentBlock struct {
	Kind BlockKind

	Text string

	ToolUseID   string
	ToolName    string
	ToolInput   json.RawMessage
	ToolCatg    ToolCategory
	Truncated   bool
	OriginalLen int

	ToolResultUseID string
	ToolResultText  string
	ToolResultError bool
}

// BlockKind tags which ContentBlock variant is populated.
type BlockKind int

const (
	BlockText BlockKind = iota
	BlockToolUse
	BlockToolResult
)

// TextContent concatenates every text block's text, in order.
func (m Message) TextContent() string {
	var b strings.Builder
	for _, c := range m.Content {
		if c.Kind == BlockText {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}

// ToolUses returns every tool_use content block.
func (m Message) ToolUses() []ContentBlock {
	var out []ContentBlock
	for _, c := range m.Content {
		if c.Kind == BlockToolUse {
			out = append(out, c)
		}
	}
	return out
}

// ToolResults returns every tool_result content block.
func (m Message) ToolResults() []ContentBlock {
	var out []ContentBlock
	for _, c := range m.Content {
		if c.Kind == BlockToolResult {
			out = append(out, c)
		}
	}
	return out
}

// ToolCall pairs a tool_use block with its eventual tool_result, plus the
// request/response Messages that carried them. A ToolCall with a
// nil ResponseMessage is pending.
type ToolCall struct {
	ToolUseID       string
	ToolName        string
	ToolCategory    ToolCategory
	ToolInput       json.RawMessage
	RequestMessage  Message
	ResponseMessage *Message
	ResultText      string
	IsError         bool
	Timestamp       time.Time
}

// Closed reports whether a result has arrived for this call.
func (t ToolCall) Closed() bool {
	return t.ResponseMessage != nil
}
