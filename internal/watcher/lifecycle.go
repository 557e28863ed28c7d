package watcher

import "time"

// lifecycleState is one tracked session's place in the
// active -> idle -> ended state machine.
type lifecycleState int

const (
	stateActive lifecycleState = iota
	stateIdle
	stateEnded
)

// trackedSession carries the lifecycle bookkeeping the poll loop needs per
// session, independent of the Live Session tracker's own per-session state.
type trackedSession struct {
	sessionID    string
	projectSlug  string
	state        lifecycleState
	idleSince    time.Time
	lastActivity time.Time
}

// advance compares now against idleTimeout/endTimeout and returns which
// transition, if any, fired. It never regresses ended back to active/idle;
// an ended session is only revived when a later entry for the same session
// id creates a new trackedSession.
func (s *trackedSession) advance(now time.Time, idleTimeout, endTimeout time.Duration) transition {
	switch s.state {
	case stateActive:
		if now.Sub(s.lastActivity) >= idleTimeout {
			s.state = stateIdle
			s.idleSince = now
			return transitionIdle
		}
	case stateIdle:
		if now.Sub(s.idleSince) >= endTimeout {
			s.state = stateEnded
			return transitionEndIdleTimeout
		}
	}
	return transitionNone
}

// recordActivity marks the session active again, returning transitionResume
// if it was idle so the caller can emit session_resume.
func (s *trackedSession) recordActivity(now time.Time) transition {
	wasIdle := s.state == stateIdle
	s.lastActivity = now
	s.state = stateActive
	if wasIdle {
		s.idleSince = time.Time{}
		return transitionResume
	}
	return transitionNone
}

type transition int

const (
	transitionNone transition = iota
	transitionIdle
	transitionResume
	transitionEndIdleTimeout
	transitionEndFileGone
	transitionEndShutdown
)

// countsAsActive reports whether this session counts toward the
// active_sessions gauge.
func (s *trackedSession) countsAsActive() bool {
	return s.state == stateActive || s.state == stateIdle
}
