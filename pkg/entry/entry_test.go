package entry

import (
	"encoding/json"
	"testing"
)

func TestDecode_FullEntry(t *testing.T) {
	line := `{"uuid":"u1","parentUuid":null,"timestamp":"2025-01-05T20:19:25.839Z","type":"user","sessionId":"s","isSidechain":false,"cwd":"/work","gitBranch":"main","message":{"role":"user","content":[{"type":"text","text":"hi"}]}}`

	e, err := Decode([]byte(line))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if e.UUID != "u1" || e.SessionID != "s" || e.Type != "user" {
		t.Errorf("envelope fields = %q/%q/%q", e.UUID, e.SessionID, e.Type)
	}
	if e.ParentUUID != nil {
		t.Errorf("parentUuid = %v, want nil", e.ParentUUID)
	}
	if e.CWD != "/work" || e.GitBranch != "main" {
		t.Errorf("cwd/gitBranch = %q/%q", e.CWD, e.GitBranch)
	}
	if len(e.Message.Content) != 1 || e.Message.Content[0].Text != "hi" {
		t.Errorf("content = %+v", e.Message.Content)
	}
	if string(e.Raw) != line {
		t.Error("Raw should retain the original line bytes")
	}
}

func TestDecode_UnknownFieldsIgnored(t *testing.T) {
	line := `{"uuid":"u1","timestamp":"2026-01-01T00:00:00Z","type":"user","sessionId":"s","futureField":{"deep":[1,2,3]}}`
	if _, err := Decode([]byte(line)); err != nil {
		t.Fatalf("unknown field should not fail decoding: %v", err)
	}
}

func TestDecode_InvalidJSON(t *testing.T) {
	if _, err := Decode([]byte("{broken")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestToolResultText(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"plain string", `"file.txt"`, "file.txt"},
		{"single part", `[{"type":"text","text":"a"}]`, "a"},
		{"multiple parts concatenated", `[{"type":"text","text":"a"},{"type":"text","text":"b"}]`, "ab"},
		{"non-text parts skipped", `[{"type":"image","text":"x"},{"type":"text","text":"y"}]`, "y"},
		{"empty", ``, ""},
		{"unrecognized shape", `42`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var raw json.RawMessage
			if tc.raw != "" {
				raw = json.RawMessage(tc.raw)
			}
			if got := ToolResultText(raw); got != tc.want {
				t.Errorf("ToolResultText(%s) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}
