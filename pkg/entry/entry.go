// Package entry defines the wire shape of one JSONL line written by the
// host assistant to a session transcript.
package entry

import "encoding/json"

// Raw is one decoded JSONL line. Unknown fields are ignored: the host's
// transcript format is allowed to grow without breaking this reader.
type Raw struct {
	UUID        string          `json:"uuid"`
	ParentUUID  *string         `json:"parentUuid"`
	Timestamp   string          `json:"timestamp"`
	Type        string          `json:"type"`
	SessionID   string          `json:"sessionId"`
	AgentID     *string         `json:"agentId"`
	IsSidechain bool            `json:"isSidechain"`
	CWD         string          `json:"cwd"`
	GitBranch   string          `json:"gitBranch"`
	Version     string          `json:"version"`
	Message     MessagePayload  `json:"message"`
	Raw         json.RawMessage `json:"-"`
}

// MessagePayload is the `message` sub-object of a Raw entry.
type MessagePayload struct {
	Role    string         `json:"role"`
	Model   string         `json:"model"`
	Content []ContentBlock `json:"content"`
	Usage   Usage          `json:"usage"`
}

// Usage carries token accounting fields, decoded but not used by the
// realtime pipeline.
type Usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
}

// ContentBlock is one entry of `message.content[]`. It is a tagged union of
// text, tool_use, and tool_result variants; Type selects which fields are
// populated. Unknown Type values are a fourth, unnamed variant that the
// parser drops silently, keeping the reader forward-compatible.
type ContentBlock struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result. Content may be a JSON string or a list of {type,text}
	// parts on the wire; ToolResultContent is kept raw so the parser can
	// coerce it.
	ToolUseID         string          `json:"tool_use_id,omitempty"`
	ToolResultContent json.RawMessage `json:"content,omitempty"`
	IsError           bool            `json:"is_error,omitempty"`
}

// Decode parses one JSONL line into a Raw entry, retaining the original
// bytes for error reporting.
func Decode(line []byte) (Raw, error) {
	var r Raw
	if err := json.Unmarshal(line, &r); err != nil {
		return Raw{}, err
	}
	r.Raw = append(json.RawMessage(nil), line...)
	return r, nil
}

// ToolResultText coerces a tool_result content field (string or list of
// {type:"text", text} parts) into a single string.
func ToolResultText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}
	out := ""
	for _, p := range parts {
		if p.Type == "text" {
			out += p.Text
		}
	}
	return out
}
