package fall

import (
	"math"
	"strconv"

	"github.com/ayusman/falldetect/internal/detector"
)

// Scalar is a measurement that may be unknown for a tick.
type Scalar struct {
	Value float64
	Known bool
}

func known(v float64) Scalar { return Scalar{Value: v, Known: true} }

// Format renders the value with prec decimals, or "N/A" when unknown.
func (s Scalar) Format(prec int) string {
	if !s.Known {
		return "N/A"
	}
	return strconv.FormatFloat(s.Value, 'f', prec, 64)
}

// Ptr returns the value, or nil when unknown.
func (s Scalar) Ptr() *float64 {
	if !s.Known {
		return nil
	}
	v := s.Value
	return &v
}

// Snapshot holds the indicators derived for one tick.
type Snapshot struct {
	// VerticalVelocity is the hip-center speed in normalized units per
	// second. Positive values move down the frame.
	VerticalVelocity Scalar
	// TorsoAngle is |atan2(dx, dy)| in degrees, with dx and dy measured
	// from the hip center to the shoulder center.
	TorsoAngle Scalar
	// HipHeight is the normalized y of the hip center.
	HipHeight Scalar

	HighVelocity bool
	Horizontal   bool
	LowHeight    bool
}

// Extract computes the indicators for cur given the previous tick's
// landmarks and the seconds elapsed between them. Either landmark set may
// be nil. A non-positive dt is replaced by MinDeltaT.
func Extract(cur, prev *detector.PoseLandmarks, dt float64, th Thresholds) Snapshot {
	if !(dt > 0) {
		dt = MinDeltaT
	}

	var s Snapshot

	hipY, ok := hipHeight(cur)
	if !ok {
		// The torso angle needs both hips as well.
		return s
	}
	s.HipHeight = known(hipY)
	s.LowHeight = hipY > th.HeightThresholdFactor

	if prevY, ok := hipHeight(prev); ok {
		v := (hipY - prevY) / dt
		s.VerticalVelocity = known(v)
		s.HighVelocity = v > th.YVelocityThreshold
	}

	if angle, ok := torsoAngle(cur); ok {
		s.TorsoAngle = known(angle)
		s.Horizontal = angle > th.AngleThreshold
	}

	return s
}

func hipHeight(lm *detector.PoseLandmarks) (float64, bool) {
	_, y, ok := lm.Midpoint(detector.LeftHip, detector.RightHip)
	return y, ok
}

func torsoAngle(lm *detector.PoseLandmarks) (float64, bool) {
	sx, sy, ok := lm.Midpoint(detector.LeftShoulder, detector.RightShoulder)
	if !ok {
		return 0, false
	}
	hx, hy, ok := lm.Midpoint(detector.LeftHip, detector.RightHip)
	if !ok {
		return 0, false
	}
	return math.Abs(math.Atan2(sx-hx, sy-hy) * 180 / math.Pi), true
}
