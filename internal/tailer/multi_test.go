package tailer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func openTailer(t *testing.T, path string) *Tailer {
	t.Helper()
	tl, err := Open(path, nil, true)
	if err != nil {
		t.Fatalf("Open %s: %v", path, err)
	}
	return tl
}

func TestMulti_PollPreservesPerFileOrder(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.jsonl")
	b := filepath.Join(dir, "b.jsonl")
	writeFile(t, a, line("a1")+line("a2"))
	writeFile(t, b, line("b1"))

	m := NewMulti()
	m.Add(a, openTailer(t, a))
	m.Add(b, openTailer(t, b))

	entries, err := m.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	// Within one file, entries come out in file-offset order.
	var fromA []string
	for _, pe := range entries {
		if pe.Path == a {
			fromA = append(fromA, pe.Line.Entry.UUID)
		}
	}
	if len(fromA) != 2 || fromA[0] != "a1" || fromA[1] != "a2" {
		t.Errorf("per-file order = %v, want [a1 a2]", fromA)
	}
}

func TestMulti_RemoveReturnsFinalPosition(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.jsonl")
	writeFile(t, a, line("a1"))

	m := NewMulti()
	m.Add(a, openTailer(t, a))
	if _, err := m.Poll(context.Background()); err != nil {
		t.Fatalf("Poll: %v", err)
	}

	pos, ok := m.Remove(a)
	if !ok {
		t.Fatal("Remove reported untracked path")
	}
	if pos.Offset == 0 {
		t.Error("final position offset should cover the consumed line")
	}
	if m.Has(a) {
		t.Error("path still tracked after Remove")
	}
	if _, ok := m.Remove(a); ok {
		t.Error("second Remove should report untracked")
	}
}

func TestMulti_PollSkipsErroredFileAndContinues(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.jsonl")
	b := filepath.Join(dir, "b.jsonl")
	writeFile(t, a, line("a1"))
	writeFile(t, b, line("b1"))

	m := NewMulti()
	m.Add(a, openTailer(t, a))
	m.Add(b, openTailer(t, b))

	if _, err := m.Poll(context.Background()); err != nil {
		t.Fatalf("Poll: %v", err)
	}

	// Make file a unreadable by removing it; file b keeps growing.
	if err := os.Remove(a); err != nil {
		t.Fatalf("remove: %v", err)
	}
	appendFile(t, b, line("b2"))

	entries, err := m.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll with one failing file: %v", err)
	}
	if len(entries) != 1 || entries[0].Line.Entry.UUID != "b2" {
		t.Fatalf("expected [b2] despite a's failure, got %v", entries)
	}
}

func TestMulti_PositionsCoversAllTrackedFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.jsonl")
	b := filepath.Join(dir, "b.jsonl")
	writeFile(t, a, line("a1"))
	writeFile(t, b, line("b1"))

	m := NewMulti()
	m.Add(a, openTailer(t, a))
	m.Add(b, openTailer(t, b))

	positions := m.Positions()
	if len(positions) != 2 {
		t.Fatalf("Positions len = %d, want 2", len(positions))
	}
}
