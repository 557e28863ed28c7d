// Package parser turns one decoded JSONL entry into zero or more events.
package parser

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mgmacleod/claude-sessions/internal/event"
	"github.com/mgmacleod/claude-sessions/internal/message"
	"github.com/mgmacleod/claude-sessions/internal/tailer"
	"github.com/mgmacleod/claude-sessions/pkg/entry"
)

// Config controls truncation behavior.
type Config struct {
	TruncateInputs bool
	MaxInputLength int
}

// DefaultConfig enables truncation with the standard 1024-byte bound.
func DefaultConfig() Config {
	return Config{TruncateInputs: true, MaxInputLength: 1024}
}

// Result carries both the events to emit and the typed Message/blocks the
// Live Session tracker needs, so one entry is only ever decoded once.
type Result struct {
	Events      []event.Event
	Message     message.Message
	ToolUses    []message.ContentBlock
	ToolResults []message.ContentBlock
	// Valid is false when parsing failed; Events then holds exactly one
	// error event and the other fields are zero.
	Valid bool
}

// Parse converts one tailer.Line into a Result. A line that failed to
// decode as JSON yields an invalid Result carrying a single error event.
func Parse(cfg Config, line tailer.Line) Result {
	if line.DecodeErr != nil {
		return Result{Events: []event.Event{errorEvent(line.DecodeErr, line.Raw)}}
	}
	return ParseEntry(cfg, line.Entry)
}

// ParseEntry parses an already-decoded entry.Raw.
func ParseEntry(cfg Config, e entry.Raw) Result {
	if err := validate(e); err != nil {
		return Result{Events: []event.Event{errorEvent(err, e.Raw)}}
	}

	ts, ok := parseTimestamp(e.Timestamp)
	if !ok {
		return Result{Events: []event.Event{errorEvent(fmt.Errorf("invalid timestamp %q", e.Timestamp), e.Raw)}}
	}

	agentID := ""
	if e.AgentID != nil {
		agentID = *e.AgentID
	}
	if e.IsSidechain && agentID == "" {
		return Result{Events: []event.Event{errorEvent(fmt.Errorf("sidechain entry %s missing agentId", e.UUID), e.Raw)}}
	}

	parentUUID := ""
	if e.ParentUUID != nil {
		parentUUID = *e.ParentUUID
	}

	msg, toolUses, toolResults := classify(cfg, e, ts, agentID, parentUUID)
	wireMsg := toEventMessage(msg, toolUses, toolResults)

	events := make([]event.Event, 0, 1+len(toolUses)+len(toolResults))
	events = append(events, event.Event{
		EventType: event.TypeMessage,
		Timestamp: ts,
		SessionID: e.SessionID,
		AgentID:   agentID,
		Message:   wireMsg,
	})

	for _, tu := range toolUses {
		events = append(events, event.Event{
			EventType: event.TypeToolUse,
			Timestamp: ts,
			SessionID: e.SessionID,
			AgentID:   agentID,
			ToolUse: event.ToolUse{
				ToolName:     tu.ToolName,
				ToolCategory: tu.ToolCatg,
				ToolInput:    tu.ToolInput,
				ToolUseID:    tu.ToolUseID,
				Message:      wireMsg,
			},
		})
	}

	for _, tr := range toolResults {
		events = append(events, event.Event{
			EventType: event.TypeToolResult,
			Timestamp: ts,
			SessionID: e.SessionID,
			AgentID:   agentID,
			ToolResult: event.ToolResult{
				ToolUseID: tr.ToolResultUseID,
				Content:   tr.ToolResultText,
				IsError:   tr.ToolResultError,
				Message:   wireMsg,
			},
		})
	}

	return Result{
		Events:      events,
		Message:     msg,
		ToolUses:    toolUses,
		ToolResults: toolResults,
		Valid:       true,
	}
}

func parseTimestamp(s string) (time.Time, bool) {
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, true
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, true
	}
	return time.Time{}, false
}

func validate(e entry.Raw) error {
	if e.UUID == "" {
		return fmt.Errorf("missing uuid")
	}
	if e.Timestamp == "" {
		return fmt.Errorf("missing timestamp")
	}
	if e.Type != "user" && e.Type != "assistant" {
		return fmt.Errorf("unknown entry type %q", e.Type)
	}
	if e.SessionID == "" {
		return fmt.Errorf("missing sessionId")
	}
	return nil
}

func classify(cfg Config, e entry.Raw, ts time.Time, agentID, parentUUID string) (message.Message, []message.ContentBlock, []message.ContentBlock) {
	var blocks []message.ContentBlock
	var toolUses, toolResults []message.ContentBlock

	for _, c := range e.Message.Content {
		switch c.Type {
		case "text":
			b := message.ContentBlock{Kind: message.BlockText, Text: c.Text}
			blocks = append(blocks, b)
		case "tool_use":
			input, truncated, origLen := truncateInput(cfg, c.Input)
			b := message.ContentBlock{
				Kind:        message.BlockToolUse,
				ToolUseID:   c.ID,
				ToolName:    c.Name,
				ToolInput:   input,
				ToolCatg:    message.CategoryForTool(c.Name),
				Truncated:   truncated,
				OriginalLen: origLen,
			}
			blocks = append(blocks, b)
			toolUses = append(toolUses, b)
		case "tool_result":
			b := message.ContentBlock{
				Kind:            message.BlockToolResult,
				ToolResultUseID: c.ToolUseID,
				ToolResultText:  entry.ToolResultText(c.ToolResultContent),
				ToolResultError: c.IsError,
			}
			blocks = append(blocks, b)
			toolResults = append(toolResults, b)
		default:
			// Unknown block type: forward-compatible silent drop.
		}
	}

	msg := message.Message{
		UUID:        e.UUID,
		ParentUUID:  parentUUID,
		Timestamp:   ts,
		Role:        e.Message.Role,
		Content:     blocks,
		SessionID:   e.SessionID,
		AgentID:     agentID,
		IsSidechain: e.IsSidechain,
		Model:       e.Message.Model,
		CWD:         e.CWD,
		GitBranch:   e.GitBranch,
	}
	return msg, toolUses, toolResults
}

// truncateInput replaces string values longer than
// MaxInputLength with a head-prefix plus a
// "…[truncated N bytes]" marker. The original is not retained.
func truncateInput(cfg Config, input json.RawMessage) (json.RawMessage, bool, int) {
	if !cfg.TruncateInputs || len(input) == 0 {
		return input, false, 0
	}

	var generic any
	if err := json.Unmarshal(input, &generic); err != nil {
		return input, false, 0
	}

	truncatedAny := false
	origLen := 0
	result := truncateValue(generic, cfg.MaxInputLength, &truncatedAny, &origLen)
	if !truncatedAny {
		return input, false, 0
	}

	out, err := json.Marshal(result)
	if err != nil {
		return input, false, 0
	}
	return out, true, origLen
}

func truncateValue(v any, max int, truncated *bool, origLen *int) any {
	switch val := v.(type) {
	case string:
		if len(val) > max {
			*truncated = true
			*origLen = len(val)
			return val[:max] + fmt.Sprintf("…[truncated %d bytes]", len(val))
		}
		return val
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, v2 := range val {
			out[k] = truncateValue(v2, max, truncated, origLen)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, v2 := range val {
			out[i] = truncateValue(v2, max, truncated, origLen)
		}
		return out
	default:
		return val
	}
}

func errorEvent(err error, raw json.RawMessage) event.Event {
	return event.Event{
		EventType: event.TypeError,
		Timestamp: time.Now().UTC(),
		Error: event.Error{
			ErrorMessage: err.Error(),
			RawEntry:     raw,
		},
	}
}

func toEventMessage(msg message.Message, toolUses, toolResults []message.ContentBlock) event.Message {
	em := event.Message{
		UUID:       msg.UUID,
		ParentUUID: msg.ParentUUID,
		Role:       msg.Role,
		Model:      msg.Model,
		Text:       msg.TextContent(),
		CWD:        msg.CWD,
		GitBranch:  msg.GitBranch,
	}
	for _, tu := range toolUses {
		em.ToolUses = append(em.ToolUses, event.ToolUseRef{ID: tu.ToolUseID, Name: tu.ToolName, Input: tu.ToolInput})
	}
	for _, tr := range toolResults {
		em.ToolResults = append(em.ToolResults, event.ToolResultRef{ToolUseID: tr.ToolResultUseID, Content: tr.ToolResultText, IsError: tr.ToolResultError})
	}
	return em
}
