package tailer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func appendFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open %s for append: %v", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("append %s: %v", path, err)
	}
}

func TestTailer_IdempotentReadWithNoGrowth(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.jsonl")
	writeFile(t, path, "")

	tl, err := Open(path, nil, true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	lines, err := tl.ReadNew(context.Background())
	if err != nil {
		t.Fatalf("ReadNew: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("expected no lines from empty file, got %d", len(lines))
	}
}

func TestTailer_PartialLineToleratedUntilNewlineArrives(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.jsonl")
	writeFile(t, path, "")

	tl, err := Open(path, nil, true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()

	full := `{"uuid":"u1","timestamp":"2026-01-01T00:00:00Z","type":"user","sessionId":"s"}`
	for _, b := range []byte(full) {
		appendFile(t, path, string(b))
		lines, err := tl.ReadNew(ctx)
		if err != nil {
			t.Fatalf("ReadNew: %v", err)
		}
		if len(lines) != 0 {
			t.Fatalf("expected no complete line before newline, got %d", len(lines))
		}
	}

	// Checkpointed offset must not include the unterminated partial bytes.
	if tl.Position().Offset != 0 {
		t.Fatalf("offset = %d before newline, want 0", tl.Position().Offset)
	}

	appendFile(t, path, "\n")
	lines, err := tl.ReadNew(ctx)
	if err != nil {
		t.Fatalf("ReadNew: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected exactly one line once newline arrives, got %d", len(lines))
	}
	if lines[0].Entry.UUID != "u1" {
		t.Errorf("uuid = %q, want u1", lines[0].Entry.UUID)
	}
	if int(tl.Position().Offset) != len(full)+1 {
		t.Errorf("offset = %d, want %d", tl.Position().Offset, len(full)+1)
	}
}

func line(uuid string) string {
	return `{"uuid":"` + uuid + `","timestamp":"2026-01-01T00:00:00Z","type":"user","sessionId":"s"}` + "\n"
}

func TestTailer_RotationResetsOffsetAndDoesNotReemit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.jsonl")
	writeFile(t, path, line("a")+line("b")+line("c"))

	tl, err := Open(path, nil, true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()

	lines, err := tl.ReadNew(ctx)
	if err != nil {
		t.Fatalf("ReadNew: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines from original file, got %d", len(lines))
	}

	// Replace with a new inode (remove then recreate) containing 2 fresh
	// entries, simulating host log rotation.
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	writeFile(t, path, line("d")+line("e"))

	lines, err = tl.ReadNew(ctx)
	if err != nil {
		t.Fatalf("ReadNew after rotation: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines after rotation, got %d", len(lines))
	}
	got := []string{lines[0].Entry.UUID, lines[1].Entry.UUID}
	if got[0] != "d" || got[1] != "e" {
		t.Errorf("rotated lines = %v, want [d e]", got)
	}
}

func TestTailer_TruncationRereadsFromZero(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.jsonl")
	writeFile(t, path, line("a")+line("b")+line("c"))

	tl, err := Open(path, nil, true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()

	if _, err := tl.ReadNew(ctx); err != nil {
		t.Fatalf("ReadNew: %v", err)
	}

	// Shrink the file in place (same inode, size < prior offset) to the
	// single remaining entry.
	writeFile(t, path, line("z"))

	lines, err := tl.ReadNew(ctx)
	if err != nil {
		t.Fatalf("ReadNew after truncation: %v", err)
	}
	if len(lines) != 1 || lines[0].Entry.UUID != "z" {
		t.Fatalf("expected exactly [z] after truncation, got %v", lines)
	}
}

func TestTailer_ResumeFromPersistedPositionMatchingInode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.jsonl")
	writeFile(t, path, line("a")+line("b"))

	tl, err := Open(path, nil, true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()
	if _, err := tl.ReadNew(ctx); err != nil {
		t.Fatalf("ReadNew: %v", err)
	}
	pos := tl.Close()

	appendFile(t, path, line("c"))

	resumed, err := Open(path, &pos, true)
	if err != nil {
		t.Fatalf("Open resumed: %v", err)
	}
	lines, err := resumed.ReadNew(ctx)
	if err != nil {
		t.Fatalf("ReadNew resumed: %v", err)
	}
	if len(lines) != 1 || lines[0].Entry.UUID != "c" {
		t.Fatalf("expected only [c] after resume, got %v", lines)
	}
}

func TestTailer_MalformedLineYieldsDecodeError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.jsonl")
	writeFile(t, path, "not json\n"+line("a"))

	tl, err := Open(path, nil, true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	lines, err := tl.ReadNew(context.Background())
	if err != nil {
		t.Fatalf("ReadNew: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].DecodeErr == nil {
		t.Error("expected DecodeErr on malformed first line")
	}
	if lines[1].DecodeErr != nil {
		t.Errorf("unexpected DecodeErr on second line: %v", lines[1].DecodeErr)
	}
}
