// Package watcher discovers transcript files and drives the poll loop that
// ties the Tailer, Incremental Parser, Live Session tracker, and Event
// Emitter together.
package watcher

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mgmacleod/claude-sessions/internal/logging"
	"github.com/mgmacleod/claude-sessions/pkg/entry"
)

var errEmptyFile = errors.New("file has no complete first line yet")

// discoveredFile is one *.jsonl transcript file found under base_path, with
// the (project_slug, session_id) derived from its location.
type discoveredFile struct {
	Path        string
	ProjectSlug string
	// SessionID is known for main files directly from the filename stem.
	// For agent-* sidechain files it is resolved later by peeking the
	// file's first entry (sidechains are attributed by sessionId, not
	// filename).
	SessionID  string
	IsSidechain bool
}

// discover scans basePath/projects/*/*.jsonl.
func discover(basePath string) ([]discoveredFile, error) {
	pattern := filepath.Join(basePath, "projects", "*", "*.jsonl")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	out := make([]discoveredFile, 0, len(matches))
	for _, path := range matches {
		projectSlug := filepath.Base(filepath.Dir(path))
		stem := strings.TrimSuffix(filepath.Base(path), ".jsonl")
		sidechain := strings.HasPrefix(stem, "agent-")

		df := discoveredFile{Path: path, ProjectSlug: projectSlug, IsSidechain: sidechain}
		if !sidechain {
			df.SessionID = stem
		}
		out = append(out, df)
	}
	return out, nil
}

// resolveSidechainSessions fills in SessionID for sidechain files by
// reading the sessionId field out of their first JSONL entry; attribution
// goes by that field, never by filename.
func resolveSidechainSessions(files []discoveredFile, logger *logging.Logger) []discoveredFile {
	for i := range files {
		if !files[i].IsSidechain || files[i].SessionID != "" {
			continue
		}
		sid, err := firstEntrySessionID(files[i].Path)
		if err != nil {
			logger.Warn(context.Background(), "could not resolve sidechain session id", "path", files[i].Path, "error", err)
			continue
		}
		files[i].SessionID = sid
	}
	return files
}

// firstEntrySessionID reads the first complete line of path and returns its
// sessionId field.
func firstEntrySessionID(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", errEmptyFile
	}

	e, err := entry.Decode(scanner.Bytes())
	if err != nil {
		return "", err
	}
	return e.SessionID, nil
}
