package event

import (
	"encoding/json"
	"time"
)

// envelope is the wire shape common to every event type.
type envelope struct {
	EventType string  `json:"event_type"`
	Timestamp string  `json:"timestamp"`
	SessionID string  `json:"session_id"`
	AgentID   *string `json:"agent_id"`
}

type wireMessage struct {
	UUID        string          `json:"uuid"`
	ParentUUID  string          `json:"parent_uuid"`
	Role        string          `json:"role"`
	Model       string          `json:"model"`
	Text        string          `json:"text"`
	ToolUses    []wireToolUse   `json:"tool_uses"`
	ToolResults []wireToolResultRef `json:"tool_results"`
	CWD         string          `json:"cwd"`
	GitBranch   string          `json:"git_branch"`
}

type wireToolUse struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

type wireToolResultRef struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error"`
}

func toWireMessage(m Message) wireMessage {
	wm := wireMessage{
		UUID:       m.UUID,
		ParentUUID: m.ParentUUID,
		Role:       m.Role,
		Model:      m.Model,
		Text:       m.Text,
		CWD:        m.CWD,
		GitBranch:  m.GitBranch,
	}
	for _, tu := range m.ToolUses {
		wm.ToolUses = append(wm.ToolUses, wireToolUse{ID: tu.ID, Name: tu.Name, Input: tu.Input})
	}
	for _, tr := range m.ToolResults {
		wm.ToolResults = append(wm.ToolResults, wireToolResultRef{ToolUseID: tr.ToolUseID, Content: tr.Content, IsError: tr.IsError})
	}
	return wm
}

// MarshalJSON emits the wire envelope plus the variant-specific fields.
func (e Event) MarshalJSON() ([]byte, error) {
	var agentID *string
	if e.AgentID != "" {
		agentID = &e.AgentID
	}

	base := map[string]any{
		"event_type": string(e.EventType),
		"timestamp":  e.Timestamp.UTC().Format(time.RFC3339Nano),
		"session_id": e.SessionID,
		"agent_id":   agentID,
	}

	switch e.EventType {
	case TypeMessage:
		base["message"] = toWireMessage(e.Message)
	case TypeToolUse:
		base["tool_name"] = e.ToolUse.ToolName
		base["tool_category"] = string(e.ToolUse.ToolCategory)
		base["tool_input"] = e.ToolUse.ToolInput
		base["tool_use_id"] = e.ToolUse.ToolUseID
		base["message"] = toWireMessage(e.ToolUse.Message)
	case TypeToolResult:
		base["tool_use_id"] = e.ToolResult.ToolUseID
		base["content"] = e.ToolResult.Content
		base["is_error"] = e.ToolResult.IsError
		base["message"] = toWireMessage(e.ToolResult.Message)
	case TypeToolCallCompleted:
		base["tool_name"] = e.ToolCallCompleted.ToolName
		base["is_error"] = e.ToolCallCompleted.IsError
		base["duration_seconds"] = e.ToolCallCompleted.Duration.Seconds()
	case TypeError:
		base["error_message"] = e.Error.ErrorMessage
		base["raw_entry"] = e.Error.RawEntry
	case TypeSessionStart:
		base["project_slug"] = e.SessionStart.ProjectSlug
		base["file_path"] = e.SessionStart.FilePath
		base["cwd"] = e.SessionStart.CWD
	case TypeSessionIdle:
		base["idle_since"] = e.SessionIdle.IdleSince.UTC().Format(time.RFC3339Nano)
	case TypeSessionResume:
		base["idle_duration"] = e.SessionResume.IdleDuration.Seconds()
	case TypeSessionEnd:
		base["project_slug"] = e.SessionEnd.ProjectSlug
		base["reason"] = string(e.SessionEnd.Reason)
		base["idle_duration"] = e.SessionEnd.IdleDuration.Seconds()
		base["message_count"] = e.SessionEnd.MessageCount
		base["tool_count"] = e.SessionEnd.ToolCount
	}

	return json.Marshal(base)
}
