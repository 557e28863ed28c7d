// Package state persists JSONL Tailer positions so a restarted Session
// Watcher can resume without re-delivering or skipping entries.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mgmacleod/claude-sessions/internal/logging"
	"github.com/mgmacleod/claude-sessions/internal/tailer"
)

// fileVersion is the on-disk schema version.
const fileVersion = 1

// positionJSON is the on-disk shape of one TailerPosition.
type positionJSON struct {
	Path           string `json:"path"`
	Device         uint64 `json:"device"`
	Inode          uint64 `json:"inode"`
	Offset         int64  `json:"offset"`
	LastModifiedNs int64  `json:"last_modified_ns"`
}

type fileJSON struct {
	Version   int            `json:"version"`
	Positions []positionJSON `json:"positions"`
}

// Save writes positions to path atomically: write to path+".tmp", fsync,
// rename.
func Save(path string, positions []tailer.Position) error {
	if path == "" {
		return nil
	}

	doc := fileJSON{Version: fileVersion}
	for _, p := range positions {
		doc.Positions = append(doc.Positions, positionJSON{
			Path:           p.Path,
			Device:         p.Device,
			Inode:          p.Inode,
			Offset:         p.Offset,
			LastModifiedNs: p.LastModifiedNs,
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open state tmp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write state tmp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("fsync state tmp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close state tmp file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename state file: %w", err)
	}
	return nil
}

// Load reads positions from path. A missing file returns an empty,
// non-error result. A corrupted file is not an error either: the caller
// starts fresh, and the corruption is logged once.
func Load(path string) ([]tailer.Position, error) {
	return LoadWithLogger(path, logging.Default())
}

// LoadWithLogger is Load with an explicit logger for the once-per-corruption
// warning.
func LoadWithLogger(path string, logger *logging.Logger) ([]tailer.Position, error) {
	if path == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var doc fileJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		// Corruption: ignore file, start fresh.
		logger.Warn(context.Background(), "state file corrupt, starting fresh", "path", path, "error", err)
		return nil, nil
	}

	out := make([]tailer.Position, 0, len(doc.Positions))
	for _, p := range doc.Positions {
		out = append(out, tailer.Position{
			Path:           p.Path,
			Device:         p.Device,
			Inode:          p.Inode,
			Offset:         p.Offset,
			LastModifiedNs: p.LastModifiedNs,
		})
	}
	return out, nil
}

// Index builds a path -> Position lookup from a loaded position list.
func Index(positions []tailer.Position) map[string]tailer.Position {
	idx := make(map[string]tailer.Position, len(positions))
	for _, p := range positions {
		idx[p.Path] = p
	}
	return idx
}
