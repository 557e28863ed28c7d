// Package tailer implements incremental, rotation-aware JSONL tailing.
package tailer

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"time"

	"github.com/mgmacleod/claude-sessions/internal/backoff"
	"github.com/mgmacleod/claude-sessions/internal/logging"
	"github.com/mgmacleod/claude-sessions/pkg/entry"
)

// maxChunkBytes bounds how much a single poll reads from one file, so one
// fast-growing file can't starve the rest of a Multi-File Tailer's poll
// cycle.
const maxChunkBytes = 1 << 20 // 1 MiB

// Line is one decoded (or failed-to-decode) JSONL line yielded by ReadNew.
// A non-nil DecodeErr is a sentinel parse-fail record: the parser is
// responsible for turning it into an `error` event.
type Line struct {
	Raw       []byte
	Entry     entry.Raw
	DecodeErr error
}

// Tailer incrementally reads one append-only JSONL file.
type Tailer struct {
	path   string
	offset int64
	buf    []byte // buffered partial-line remainder, not yet checkpointed
	id     fileIdentity

	backoffPolicy backoff.Policy
	attempt       int
	nextRetry     time.Time

	logger *logging.Logger
}

// Option configures a Tailer.
type Option func(*Tailer)

// WithLogger sets the tailer's logger.
func WithLogger(l *logging.Logger) Option {
	return func(t *Tailer) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithBackoffPolicy overrides the transient-I/O-error backoff policy.
func WithBackoffPolicy(p backoff.Policy) Option {
	return func(t *Tailer) { t.backoffPolicy = p }
}

// Open creates a Tailer for path. If resume is non-nil and its device/inode
// match the file's current identity, reading resumes from resume.Offset;
// otherwise reading starts at 0 (process_existing=true) or at the current
// file size (process_existing=false).
func Open(path string, resume *Position, processExisting bool, opts ...Option) (*Tailer, error) {
	id, err := statIdentity(path)
	if err != nil {
		return nil, err
	}

	t := &Tailer{
		path:          path,
		id:            id,
		backoffPolicy: backoff.TailerPolicy(500 * time.Millisecond),
		logger:        logging.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}

	switch {
	case resume != nil && resume.matches(id):
		t.offset = resume.Offset
	case processExisting:
		t.offset = 0
	default:
		t.offset = id.size
	}

	return t, nil
}

// Path returns the tailed file's path.
func (t *Tailer) Path() string { return t.path }

// Position returns the current checkpointable position.
func (t *Tailer) Position() Position {
	return Position{
		Path:           t.path,
		Device:         t.id.device,
		Inode:          t.id.inode,
		Offset:         t.offset,
		LastModifiedNs: t.id.modNs,
	}
}

// ReadNew reads any newly appended complete lines since the last call. It
// returns nil, nil if the file has not grown, and handles
// rotation/truncation transparently.
func (t *Tailer) ReadNew(ctx context.Context) ([]Line, error) {
	if !t.nextRetry.IsZero() && time.Now().Before(t.nextRetry) {
		return nil, nil
	}

	info, err := os.Stat(t.path)
	if err != nil {
		t.recordFailure()
		return nil, err
	}
	newID := identityFromInfo(info)

	// The buffered partial-line bytes are physically present in the file
	// after t.offset (the checkpoint excludes them); reads resume past them.
	rotated := !sameFile(t.id, newID) || newID.size < t.offset+int64(len(t.buf))
	if rotated {
		t.logger.Info(ctx, "tailer detected rotation or truncation", "path", t.path)
		t.offset = 0
		t.buf = nil
		t.id = newID
	}

	readFrom := t.offset + int64(len(t.buf))
	if newID.size == readFrom && !rotated {
		t.id = newID
		return nil, nil
	}

	f, err := os.Open(t.path)
	if err != nil {
		t.recordFailure()
		return nil, err
	}
	defer f.Close()

	if _, err := f.Seek(readFrom, io.SeekStart); err != nil {
		t.recordFailure()
		return nil, err
	}

	toRead := newID.size - readFrom
	if toRead > maxChunkBytes {
		toRead = maxChunkBytes
	}

	chunk := make([]byte, toRead)
	n, err := io.ReadFull(f, chunk)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		t.recordFailure()
		return nil, err
	}
	chunk = chunk[:n]

	data := append(t.buf, chunk...)

	var lines []Line
	consumed := 0
	reader := bufio.NewReader(bytes.NewReader(data))
	for {
		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			// Partial-line remainder: buffer it, do not checkpoint its bytes.
			t.buf = append([]byte(nil), line...)
			break
		}
		if err != nil {
			t.recordFailure()
			return lines, err
		}
		consumed += len(line)
		complete := bytes.TrimRight(line, "\n")
		if len(complete) == 0 {
			continue
		}
		lines = append(lines, decodeLine(complete))
	}

	t.offset += int64(consumed)
	t.id = newID
	t.resetBackoff()

	return lines, nil
}

func decodeLine(raw []byte) Line {
	e, err := entry.Decode(raw)
	if err != nil {
		return Line{Raw: append([]byte(nil), raw...), DecodeErr: err}
	}
	return Line{Raw: e.Raw, Entry: e}
}

func (t *Tailer) recordFailure() {
	t.attempt++
	delay := t.backoffPolicy.Compute(t.attempt)
	t.nextRetry = time.Now().Add(delay)
}

func (t *Tailer) resetBackoff() {
	t.attempt = 0
	t.nextRetry = time.Time{}
}

// Close flushes no in-memory state beyond returning the final Position for
// the caller to persist.
func (t *Tailer) Close() Position {
	return t.Position()
}
