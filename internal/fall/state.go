package fall

import (
	"fmt"
	"time"
)

// Phase is the alarm level of a session.
type Phase int

const (
	// PhaseNormal means no fall is suspected.
	PhaseNormal Phase = iota
	// PhaseSuspected means a potential fall is being timed.
	PhaseSuspected
	// PhaseConfirmed means a fall was confirmed. Only Reset leaves it.
	PhaseConfirmed
)

func (p Phase) String() string {
	switch p {
	case PhaseNormal:
		return "normal"
	case PhaseSuspected:
		return "suspected"
	case PhaseConfirmed:
		return "confirmed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(text []byte) error {
	switch string(text) {
	case "normal":
		*p = PhaseNormal
	case "suspected":
		*p = PhaseSuspected
	case "confirmed":
		*p = PhaseConfirmed
	default:
		return fmt.Errorf("unknown phase %q", text)
	}
	return nil
}

// State is the debounced alarm state. Since is when the current suspicion
// began; it is zero in PhaseNormal and kept through PhaseConfirmed.
type State struct {
	Phase Phase
	Since time.Time
}

// Elapsed returns how long the suspicion has lasted at now.
// It is zero unless the phase is PhaseSuspected.
func (s State) Elapsed(now time.Time) time.Duration {
	if s.Phase != PhaseSuspected {
		return 0
	}
	return now.Sub(s.Since)
}

// PotentialFall reports whether the indicators look like a fall on this tick.
func PotentialFall(s Snapshot) bool {
	return s.HighVelocity || (s.Horizontal && s.LowHeight)
}

// Step advances st by one tick. present is false when no person was
// detected. Unknown indicators are false, which biases toward Normal.
func Step(st State, snap Snapshot, present bool, now time.Time, th Thresholds) State {
	if !present {
		if st.Phase == PhaseSuspected {
			return Reset()
		}
		return st
	}

	if st.Phase == PhaseConfirmed {
		return st
	}

	potential := PotentialFall(snap)
	switch {
	case potential && st.Phase == PhaseNormal:
		return State{Phase: PhaseSuspected, Since: now}
	case potential && st.Phase == PhaseSuspected && now.Sub(st.Since) >= th.ConfirmDuration:
		return State{Phase: PhaseConfirmed, Since: st.Since}
	case !potential && st.Phase == PhaseSuspected:
		return Reset()
	}
	return st
}

// Reset returns the Normal state with no pending timer.
func Reset() State {
	return State{Phase: PhaseNormal}
}
