// Package fall turns per-frame pose landmarks into a debounced fall alarm.
//
// Extract derives three indicators from the current and previous landmark
// sets, Step advances the Normal/Suspected/Confirmed state machine, and
// Session threads both through a processing loop. Nothing in this package
// performs I/O, logs, or returns errors: missing landmarks simply make the
// affected indicators unknown.
package fall

import (
	"errors"
	"time"
)

// MinDeltaT replaces a non-positive frame interval, in seconds.
const MinDeltaT = 0.01

// Thresholds configures the fall heuristics. They are fixed for a session.
type Thresholds struct {
	// YVelocityThreshold is the downward hip speed, in normalized units per
	// second, above which a drop is considered fall-like.
	YVelocityThreshold float64

	// AngleThreshold is the torso angle in degrees above which the posture
	// counts as horizontal.
	AngleThreshold float64

	// HeightThresholdFactor is the normalized hip-center y above which the
	// body counts as low in the frame.
	HeightThresholdFactor float64

	// ConfirmDuration is how long a potential fall must persist before it
	// is confirmed.
	ConfirmDuration time.Duration
}

// DefaultThresholds returns the stock tuning.
func DefaultThresholds() Thresholds {
	return Thresholds{
		YVelocityThreshold:    0.6,
		AngleThreshold:        70,
		HeightThresholdFactor: 0.8,
		ConfirmDuration:       1200 * time.Millisecond,
	}
}

// Validate reports thresholds that cannot describe a fall.
func (t Thresholds) Validate() error {
	var errs []error
	if t.YVelocityThreshold <= 0 {
		errs = append(errs, errors.New("y velocity threshold must be positive"))
	}
	if t.AngleThreshold <= 0 || t.AngleThreshold >= 180 {
		errs = append(errs, errors.New("angle threshold must be in (0, 180)"))
	}
	if t.HeightThresholdFactor <= 0 || t.HeightThresholdFactor >= 1 {
		errs = append(errs, errors.New("height threshold factor must be in (0, 1)"))
	}
	if t.ConfirmDuration < 0 {
		errs = append(errs, errors.New("confirm duration must not be negative"))
	}
	return errors.Join(errs...)
}
