package fall

import (
	"time"

	"github.com/ayusman/falldetect/internal/detector"
)

// Transition records a phase change. The zero value means nothing changed.
type Transition struct {
	From Phase
	To   Phase
	At   time.Time
}

// Changed reports whether the transition moved between phases.
func (t Transition) Changed() bool {
	return t.From != t.To
}

// Result is everything a presentation layer needs for one tick.
type Result struct {
	Snapshot   Snapshot
	State      State
	Present    bool
	Transition Transition
	// Elapsed is the suspicion time so far, zero outside PhaseSuspected.
	Elapsed time.Duration
}

// Session carries fall detection state between ticks for one video source.
// A Session must only be used from a single goroutine.
type Session struct {
	th    Thresholds
	state State

	prev     detector.PoseLandmarks
	hasPrev  bool
	prevTime time.Time
}

// NewSession creates a session in PhaseNormal.
func NewSession(th Thresholds) *Session {
	return &Session{th: th, state: Reset()}
}

// Thresholds returns the session's thresholds.
func (s *Session) Thresholds() Thresholds {
	return s.th
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// Tick processes the landmarks observed at now. lm is nil when no person
// was detected in the frame.
func (s *Session) Tick(lm *detector.PoseLandmarks, now time.Time) Result {
	var dt float64
	if !s.prevTime.IsZero() {
		dt = now.Sub(s.prevTime).Seconds()
	}

	var prev *detector.PoseLandmarks
	if s.hasPrev {
		prev = &s.prev
	}

	present := lm != nil
	snap := Extract(lm, prev, dt, s.th)

	from := s.state.Phase
	s.state = Step(s.state, snap, present, now, s.th)

	if present {
		s.prev = *lm
		s.hasPrev = true
	} else {
		s.hasPrev = false
	}
	s.prevTime = now

	r := Result{
		Snapshot: snap,
		State:    s.state,
		Present:  present,
		Elapsed:  s.state.Elapsed(now),
	}
	if from != s.state.Phase {
		r.Transition = Transition{From: from, To: s.state.Phase, At: now}
	}
	return r
}

// Reset clears any suspicion or confirmed fall. The previous landmarks are
// kept so velocity stays continuous across the reset.
func (s *Session) Reset(now time.Time) Transition {
	from := s.state.Phase
	s.state = Reset()
	if from == PhaseNormal {
		return Transition{}
	}
	return Transition{From: from, To: PhaseNormal, At: now}
}
