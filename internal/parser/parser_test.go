package parser

import (
	"encoding/json"
	"testing"

	"github.com/mgmacleod/claude-sessions/internal/event"
	"github.com/mgmacleod/claude-sessions/internal/message"
	"github.com/mgmacleod/claude-sessions/internal/tailer"
	"github.com/mgmacleod/claude-sessions/pkg/entry"
)

func baseEntry() entry.Raw {
	return entry.Raw{
		UUID:      "u1",
		Timestamp: "2026-01-01T00:00:00Z",
		Type:      "assistant",
		SessionID: "sess-1",
		Message: entry.MessagePayload{
			Role: "assistant",
			Content: []entry.ContentBlock{
				{Type: "text", Text: "hello"},
			},
		},
	}
}

func TestParseEntry_EmitsOneMessageEvent(t *testing.T) {
	res := ParseEntry(DefaultConfig(), baseEntry())
	if !res.Valid {
		t.Fatal("expected valid result")
	}
	if len(res.Events) != 1 || res.Events[0].EventType != event.TypeMessage {
		t.Fatalf("expected exactly one message event, got %+v", res.Events)
	}
	if res.Events[0].Message.Text != "hello" {
		t.Errorf("text = %q, want hello", res.Events[0].Message.Text)
	}
}

func TestParseEntry_OrdersToolUseThenToolResultAfterMessage(t *testing.T) {
	e := baseEntry()
	e.Message.Content = []entry.ContentBlock{
		{Type: "text", Text: "running"},
		{Type: "tool_use", ID: "t1", Name: "Bash", Input: json.RawMessage(`{"cmd":"ls"}`)},
		{Type: "tool_result", ToolUseID: "t1", ToolResultContent: json.RawMessage(`"listing"`)},
	}

	res := ParseEntry(DefaultConfig(), e)
	if len(res.Events) != 3 {
		t.Fatalf("expected 3 events (message, tool_use, tool_result), got %d", len(res.Events))
	}
	if res.Events[0].EventType != event.TypeMessage {
		t.Errorf("event[0] = %s, want message", res.Events[0].EventType)
	}
	if res.Events[1].EventType != event.TypeToolUse {
		t.Errorf("event[1] = %s, want tool_use", res.Events[1].EventType)
	}
	if res.Events[1].ToolUse.ToolCategory != message.CategoryBash {
		t.Errorf("tool_category = %s, want bash", res.Events[1].ToolUse.ToolCategory)
	}
	if res.Events[2].EventType != event.TypeToolResult {
		t.Errorf("event[2] = %s, want tool_result", res.Events[2].EventType)
	}
	if res.Events[2].ToolResult.Content != "listing" {
		t.Errorf("tool_result content = %q, want listing", res.Events[2].ToolResult.Content)
	}

	if len(res.ToolUses) != 1 || len(res.ToolResults) != 1 {
		t.Fatalf("expected 1 tool use and 1 tool result in Result, got %d/%d", len(res.ToolUses), len(res.ToolResults))
	}
}

func TestParseEntry_TruncatesLongToolInput(t *testing.T) {
	cfg := Config{TruncateInputs: true, MaxInputLength: 8}
	e := baseEntry()
	e.Message.Content = []entry.ContentBlock{
		{Type: "tool_use", ID: "t1", Name: "Bash", Input: json.RawMessage(`{"cmd":"this is a very long command line"}`)},
	}

	res := ParseEntry(cfg, e)
	if !res.ToolUses[0].Truncated {
		t.Fatal("expected the tool_use block to be marked truncated")
	}
	var decoded map[string]string
	if err := json.Unmarshal(res.ToolUses[0].ToolInput, &decoded); err != nil {
		t.Fatalf("truncated input did not decode: %v", err)
	}
	if len(decoded["cmd"]) <= 8 {
		t.Errorf("expected truncation marker appended, got %q", decoded["cmd"])
	}
}

func TestParseEntry_MissingFieldsYieldErrorEvent(t *testing.T) {
	e := baseEntry()
	e.UUID = ""

	res := ParseEntry(DefaultConfig(), e)
	if res.Valid {
		t.Fatal("expected invalid result for missing uuid")
	}
	if len(res.Events) != 1 || res.Events[0].EventType != event.TypeError {
		t.Fatalf("expected exactly one error event, got %+v", res.Events)
	}
}

func TestParseEntry_SidechainWithoutAgentIDIsError(t *testing.T) {
	e := baseEntry()
	e.IsSidechain = true

	res := ParseEntry(DefaultConfig(), e)
	if res.Valid {
		t.Fatal("sidechain entry missing agentId should be invalid")
	}
	if res.Events[0].EventType != event.TypeError {
		t.Fatalf("expected error event, got %s", res.Events[0].EventType)
	}
}

func TestParse_DecodeErrorYieldsErrorEvent(t *testing.T) {
	line := tailer.Line{Raw: []byte("not json"), DecodeErr: errInvalidJSON()}
	res := Parse(DefaultConfig(), line)
	if len(res.Events) != 1 || res.Events[0].EventType != event.TypeError {
		t.Fatalf("expected single error event for decode failure, got %+v", res.Events)
	}
}

func errInvalidJSON() error {
	var v int
	return json.Unmarshal([]byte("not json"), &v)
}
