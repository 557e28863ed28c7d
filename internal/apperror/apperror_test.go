package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_FormatsCodeAndMessage(t *testing.T) {
	err := New(CodeConfig, "bad config", nil)
	if got, want := err.Error(), "[CONFIG_ERROR] bad config"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestError_FormatsWrappedCause(t *testing.T) {
	cause := errors.New("disk full")
	err := New(CodeState, "save failed", cause)
	if got, want := err.Error(), "[STATE_ERROR] save failed: disk full"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestUnwrap_ExposesWrappedCause(t *testing.T) {
	cause := errors.New("boom")
	err := New(CodeIO, "failed", cause)
	if !errors.Is(err, cause) {
		t.Error("errors.Is should see through to the wrapped cause")
	}
}

func TestErrorsAs_MatchesConstructorHelpers(t *testing.T) {
	wrapped := fmt.Errorf("context: %w", Setup("no tailer could be opened", nil))
	var appErr *Error
	if !errors.As(wrapped, &appErr) {
		t.Fatal("expected errors.As to find the wrapped *Error")
	}
	if appErr.Code != CodeSetup {
		t.Errorf("Code = %q, want %q", appErr.Code, CodeSetup)
	}
}

func TestWithContext_AttachesKeyValuePairs(t *testing.T) {
	err := Config("bad value", nil).WithContext("field", "base_path")
	if err.Context["field"] != "base_path" {
		t.Errorf("Context[field] = %v, want base_path", err.Context["field"])
	}
}
