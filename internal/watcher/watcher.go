// Package watcher's Watcher is the pipeline's top-level orchestrator: it
// drives discovery, the Multi-File Tailer, the Incremental Parser, the Live
// Session tracker, and the Event Emitter from one poll loop, and infers
// session_start/idle/resume/end transitions. One authoritative tick loop,
// functional options, a mutex-guarded map of live state, and cooperative
// shutdown via context cancellation plus a WaitGroup.
package watcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mgmacleod/claude-sessions/internal/apperror"
	"github.com/mgmacleod/claude-sessions/internal/backoff"
	"github.com/mgmacleod/claude-sessions/internal/config"
	"github.com/mgmacleod/claude-sessions/internal/emitter"
	"github.com/mgmacleod/claude-sessions/internal/event"
	"github.com/mgmacleod/claude-sessions/internal/livesession"
	"github.com/mgmacleod/claude-sessions/internal/logging"
	"github.com/mgmacleod/claude-sessions/internal/parser"
	"github.com/mgmacleod/claude-sessions/internal/state"
	"github.com/mgmacleod/claude-sessions/internal/tailer"
)

// activeSessionsGauge is satisfied by metrics.Collector; kept as a narrow
// interface here so this package does not import internal/metrics.
type activeSessionsGauge interface {
	SetActiveSessions(n int)
}

// fileState is the orchestrator's per-file bookkeeping, separate from the
// per-session lifecycle bookkeeping in trackedSession.
type fileState struct {
	df        discoveredFile
	projectSlug string
}

// Watcher is the Session Watcher: the realtime pipeline's orchestrator.
type Watcher struct {
	cfg    config.WatcherConfig
	logger *logging.Logger
	em     *emitter.Emitter
	tracker *livesession.Tracker
	gauge  activeSessionsGauge

	parserCfg parser.Config

	mu       sync.RWMutex // guards sessions; per-session LiveSession has its own lock
	sessions map[string]*trackedSession

	multi *tailer.Multi
	files map[string]fileState // path -> bookkeeping

	stateIdx map[string]tailer.Position
	lastSave time.Time

	fsWatcher *fsnotify.Watcher
	wakeup    chan struct{}

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger overrides the Watcher's logger.
func WithLogger(l *logging.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithMetrics registers a metrics sink for the active_sessions gauge.
func WithMetrics(g activeSessionsGauge) Option {
	return func(w *Watcher) { w.gauge = g }
}

// New creates a Watcher from cfg. It does not start the poll loop; call Run
// or RunFor.
func New(cfg config.WatcherConfig, em *emitter.Emitter, opts ...Option) *Watcher {
	w := &Watcher{
		cfg:      cfg,
		logger:   logging.Default(),
		em:       em,
		tracker:  livesession.NewTracker(cfg),
		parserCfg: parser.Config{TruncateInputs: cfg.TruncateInputs, MaxInputLength: cfg.MaxInputLength},
		sessions: make(map[string]*trackedSession),
		multi:    tailer.NewMulti(),
		files:    make(map[string]fileState),
		wakeup:   make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Tracker exposes the Live Session tracker for read access (e.g. from
// filter pipelines or CLI formatters). Reads go through the tracker's own
// RWMutex.
func (w *Watcher) Tracker() *livesession.Tracker { return w.tracker }

// Run starts the poll loop and blocks until ctx is cancelled or Stop is
// called. On return, final state is persisted.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.setup(ctx); err != nil {
		return err
	}
	w.startNotify()
	defer w.stopNotify()

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.shutdown(event.EndShutdown)
			return nil
		case <-w.stopCh:
			w.shutdown(event.EndShutdown)
			return nil
		case <-w.wakeup:
			w.tick(ctx)
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// RunFor runs the Watcher until d elapses, then stops it cleanly.
func (w *Watcher) RunFor(ctx context.Context, d time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return w.Run(ctx)
}

// Stop signals the poll loop to exit after finishing its current tick.
func (w *Watcher) Stop() {
	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}
}

// setup loads persisted tailer positions and performs the initial
// discovery pass.
func (w *Watcher) setup(ctx context.Context) error {
	positions, err := state.LoadWithLogger(w.cfg.StateFile, w.logger)
	if err != nil {
		return fmt.Errorf("load tailer state: %w", err)
	}
	w.stateIdx = state.Index(positions)

	files, err := discover(w.cfg.BasePath)
	if err != nil {
		return apperror.Setup("discover session files", err).WithContext("base_path", w.cfg.BasePath)
	}
	files = resolveSidechainSessions(files, w.logger)
	for _, df := range files {
		w.addFile(ctx, df)
	}
	if len(files) > 0 && len(w.files) == 0 {
		// Files were discovered but every tailer.Open call failed; this is
		// the one unrecoverable startup condition.
		return apperror.Setup("could not open any discovered session file", nil).
			WithContext("base_path", w.cfg.BasePath).
			WithContext("discovered", len(files))
	}
	if len(w.files) == 0 {
		w.logger.Warn(ctx, "no session files discovered at startup", "base_path", w.cfg.BasePath)
	}
	return nil
}

func (w *Watcher) addFile(_ context.Context, df discoveredFile) {
	if df.SessionID == "" || w.multi.Has(df.Path) {
		return
	}
	var resume *tailer.Position
	if p, ok := w.stateIdx[df.Path]; ok {
		resume = &p
	}
	t, err := tailer.Open(df.Path, resume, w.cfg.ProcessExisting,
		tailer.WithLogger(w.logger),
		tailer.WithBackoffPolicy(backoff.TailerPolicy(w.cfg.PollInterval)))
	if err != nil {
		w.logger.Warn(context.Background(), "could not open tailer", "path", df.Path, "error", err)
		return
	}
	w.multi.Add(df.Path, t)
	w.files[df.Path] = fileState{df: df, projectSlug: df.ProjectSlug}
}

// tick runs one poll cycle.
func (w *Watcher) tick(ctx context.Context) {
	w.refreshDiscovery(ctx)

	entries, _ := w.multi.Poll(ctx)
	now := time.Now()
	for _, pe := range entries {
		w.handleEntry(ctx, pe, now)
	}

	w.advanceLifecycles(ctx, now)
	w.reportActiveSessions()
	w.maybeSave()
}

// refreshDiscovery adds newly-appeared files and removes vanished ones,
// emitting session_end(file_gone) for sessions whose main file disappears.
func (w *Watcher) refreshDiscovery(ctx context.Context) {
	files, err := discover(w.cfg.BasePath)
	if err != nil {
		w.logger.Warn(ctx, "discovery scan failed", "error", err)
		return
	}
	files = resolveSidechainSessions(files, w.logger)

	seen := make(map[string]bool, len(files))
	for _, df := range files {
		seen[df.Path] = true
		if !w.multi.Has(df.Path) {
			w.addFile(ctx, df)
		}
	}

	for path, fs := range w.files {
		if seen[path] {
			continue
		}
		w.multi.Remove(path)
		delete(w.files, path)
		if !fs.df.IsSidechain {
			w.endSession(ctx, fs.df.SessionID, fs.projectSlug, event.EndFileGone, now())
		}
	}
}

func now() time.Time { return time.Now() }

// idleDuration reports how long ts had been idle as of t, or 0 if it never
// went idle (a session can end via file_gone/shutdown while still active).
func idleDuration(ts *trackedSession, t time.Time) time.Duration {
	if ts.idleSince.IsZero() {
		return 0
	}
	return t.Sub(ts.idleSince)
}

func (w *Watcher) handleEntry(ctx context.Context, pe tailer.PathEntry, now time.Time) {
	fs, ok := w.files[pe.Path]
	if !ok {
		return
	}

	result := parser.Parse(w.parserCfg, pe.Line)
	if !result.Valid {
		for _, ev := range result.Events {
			w.em.Emit(ctx, ev)
		}
		return
	}

	sessionID := result.Message.SessionID
	if sessionID == "" {
		sessionID = fs.df.SessionID
	}

	ts := w.sessionFor(sessionID, fs.projectSlug)
	firstSeen := w.recordActivity(ts, now)
	if firstSeen && w.cfg.EmitSessionEvents {
		w.em.Emit(ctx, event.Event{
			EventType: event.TypeSessionStart,
			Timestamp: now,
			SessionID: sessionID,
			SessionStart: event.SessionStart{
				ProjectSlug: fs.projectSlug,
				FilePath:    pe.Path,
				CWD:         result.Message.CWD,
			},
		})
	}

	events := result.Events
	if w.tracker != nil {
		events = w.tracker.Handle(sessionID, fs.projectSlug, events, result.Message, result.ToolUses, result.ToolResults)
	}
	for _, ev := range events {
		w.em.Emit(ctx, ev)
	}
}

// sessionFor returns the trackedSession for sessionID, creating it if
// necessary.
func (w *Watcher) sessionFor(sessionID, projectSlug string) *trackedSession {
	w.mu.RLock()
	ts, ok := w.sessions[sessionID]
	w.mu.RUnlock()
	if ok {
		return ts
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if ts, ok := w.sessions[sessionID]; ok {
		return ts
	}
	ts = &trackedSession{
		sessionID:   sessionID,
		projectSlug: projectSlug,
		state:       stateActive,
		// lastActivity is left zero; recordActivity's first-call check
		// (ts.lastActivity.IsZero()) is how session_start is detected, and
		// the caller always calls recordActivity immediately after this.
	}
	w.sessions[sessionID] = ts
	return ts
}

// recordActivity marks ts active as of now, reporting whether this is the
// very first activity recorded (→ session_start) and emitting
// session_resume if it transitions out of idle.
func (w *Watcher) recordActivity(ts *trackedSession, now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	first := ts.lastActivity.IsZero()
	idleFor := idleDuration(ts, now)
	trans := ts.recordActivity(now)
	if trans == transitionResume && w.cfg.EmitSessionEvents {
		w.em.Emit(context.Background(), event.Event{
			EventType: event.TypeSessionResume,
			Timestamp: now,
			SessionID: ts.sessionID,
			SessionResume: event.SessionResume{
				IdleDuration: idleFor,
			},
		})
	}
	return first
}

// advanceLifecycles evaluates idle/end timeouts for every tracked session.
func (w *Watcher) advanceLifecycles(ctx context.Context, now time.Time) {
	w.mu.Lock()
	ended := make([]string, 0)
	for id, ts := range w.sessions {
		trans := ts.advance(now, w.cfg.IdleTimeout, w.cfg.EndTimeout)
		switch trans {
		case transitionIdle:
			if w.cfg.EmitSessionEvents {
				w.em.Emit(ctx, event.Event{
					EventType:    event.TypeSessionIdle,
					Timestamp:    now,
					SessionID:    id,
					SessionIdle:  event.SessionIdle{IdleSince: ts.idleSince},
				})
			}
		case transitionEndIdleTimeout:
			msgCount, toolCount := w.sessionCounters(id)
			if w.cfg.EmitSessionEvents {
				w.em.Emit(ctx, event.Event{
					EventType: event.TypeSessionEnd,
					Timestamp: now,
					SessionID: id,
					SessionEnd: event.SessionEnd{
						ProjectSlug:  ts.projectSlug,
						Reason:       event.EndIdleTimeout,
						IdleDuration: now.Sub(ts.idleSince),
						MessageCount: msgCount,
						ToolCount:    toolCount,
					},
				})
			}
			ended = append(ended, id)
		}
	}
	for _, id := range ended {
		delete(w.sessions, id)
	}
	w.mu.Unlock()

	for _, id := range ended {
		w.tracker.Remove(id)
	}
}

// endSession forces a session to end with the given reason (file_gone or
// shutdown), used by discovery and Stop.
func (w *Watcher) endSession(ctx context.Context, sessionID, projectSlug string, reason event.EndReason, now time.Time) {
	w.mu.Lock()
	ts, ok := w.sessions[sessionID]
	if ok {
		delete(w.sessions, sessionID)
	}
	w.mu.Unlock()
	if !ok {
		return
	}

	msgCount, toolCount := w.sessionCounters(sessionID)
	if w.cfg.EmitSessionEvents {
		w.em.Emit(ctx, event.Event{
			EventType: event.TypeSessionEnd,
			Timestamp: now,
			SessionID: sessionID,
			SessionEnd: event.SessionEnd{
				ProjectSlug:  projectSlug,
				Reason:       reason,
				IdleDuration: idleDuration(ts, now),
				MessageCount: msgCount,
				ToolCount:    toolCount,
			},
		})
	}
	w.tracker.Remove(sessionID)
}

// sessionCounters returns the message/tool counters for sessionID's
// LiveSession, or zero if it is not in the tracker (e.g. no entry was
// parsed before the session ended).
func (w *Watcher) sessionCounters(sessionID string) (messages, tools int) {
	ls, ok := w.tracker.Get(sessionID)
	if !ok {
		return 0, 0
	}
	return ls.Counters()
}

func (w *Watcher) reportActiveSessions() {
	if w.gauge == nil {
		return
	}
	w.mu.RLock()
	n := 0
	for _, ts := range w.sessions {
		if ts.countsAsActive() {
			n++
		}
	}
	w.mu.RUnlock()
	w.gauge.SetActiveSessions(n)
}

func (w *Watcher) maybeSave() {
	if w.cfg.StateFile == "" || w.cfg.SaveInterval <= 0 {
		return
	}
	if time.Since(w.lastSave) < w.cfg.SaveInterval {
		return
	}
	w.persist()
}

func (w *Watcher) persist() {
	if w.cfg.StateFile == "" {
		return
	}
	if err := state.Save(w.cfg.StateFile, w.multi.Positions()); err != nil {
		w.logger.Warn(context.Background(), "state save failed", "error", err)
		return
	}
	w.lastSave = time.Now()
}

// shutdown ends every still-tracked session with the given reason and
// persists final tailer positions; no event is dropped on stop.
func (w *Watcher) shutdown(reason event.EndReason) {
	ctx := context.Background()
	now := time.Now()

	w.mu.Lock()
	ids := make([]string, 0, len(w.sessions))
	for id := range w.sessions {
		ids = append(ids, id)
	}
	w.mu.Unlock()

	for _, id := range ids {
		w.mu.RLock()
		ts := w.sessions[id]
		w.mu.RUnlock()
		if ts == nil {
			continue
		}
		w.endSession(ctx, id, ts.projectSlug, reason, now)
	}

	w.persist()
}
