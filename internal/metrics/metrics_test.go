package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mgmacleod/claude-sessions/internal/event"
)

func TestCollector_ObserveIncrementsCounters(t *testing.T) {
	c := New()

	c.Observe(event.Event{EventType: event.TypeMessage, Message: event.Message{Role: "assistant"}})
	c.Observe(event.Event{EventType: event.TypeToolUse, ToolUse: event.ToolUse{ToolName: "Bash", ToolCategory: "bash"}})
	c.Observe(event.Event{
		EventType: event.TypeToolCallCompleted,
		ToolCallCompleted: event.ToolCallCompleted{
			ToolName: "Bash",
			IsError:  true,
			Duration: 250 * time.Millisecond,
		},
	})
	c.Observe(event.Event{EventType: event.TypeError})
	c.Observe(event.Event{EventType: event.TypeSessionStart, SessionStart: event.SessionStart{ProjectSlug: "proj"}})
	c.Observe(event.Event{EventType: event.TypeSessionEnd, SessionEnd: event.SessionEnd{ProjectSlug: "proj", Reason: event.EndShutdown}})

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	buf := make([]byte, 64*1024)
	n, _ := resp.Body.Read(buf)
	body := string(buf[:n])

	for _, want := range []string{
		`messages_total{role="assistant"} 1`,
		`tool_calls_total{category="bash",tool="Bash"} 1`,
		`tool_errors_total{tool="Bash"} 1`,
		`parse_errors_total 1`,
		`session_starts_total{project="proj"} 1`,
		`session_ends_total{project="proj",reason="shutdown"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected metrics body to contain %q\nbody:\n%s", want, body)
		}
	}
}

func TestCollector_ErrorRate(t *testing.T) {
	c := New()
	c.Observe(event.Event{EventType: event.TypeToolUse, ToolUse: event.ToolUse{ToolName: "Bash"}})
	c.Observe(event.Event{EventType: event.TypeToolCallCompleted, ToolCallCompleted: event.ToolCallCompleted{ToolName: "Bash", IsError: true}})

	_, _, errRate := c.Rates()
	if errRate != 1.0 {
		t.Errorf("error_rate = %v, want 1.0", errRate)
	}
}

func TestCollector_ErrorRateZeroWhenNoCalls(t *testing.T) {
	c := New()
	_, _, errRate := c.Rates()
	if errRate != 0 {
		t.Errorf("error_rate = %v, want 0 with no tool calls", errRate)
	}
}
