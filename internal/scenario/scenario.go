// Package scenario provides scripted pose sequences for exercising the fall
// detection pipeline without a camera or the pose model.
package scenario

import (
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/falldetect/internal/capture"
	"github.com/ayusman/falldetect/internal/detector"
)

// Interval is the time between scenario frames (10 FPS).
const Interval = 100 * time.Millisecond

// FPS is the frame rate matching Interval.
const FPS = 10

// Scenario is a sequence of poses, one per frame. A nil pose means no
// person was detected in that frame.
type Scenario struct {
	Name  string
	Poses []*detector.PoseLandmarks
	// SuspectedAt and ConfirmedAt are frame indexes, -1 when the phase
	// is never reached.
	SuspectedAt int
	ConfirmedAt int
}

// Len returns the number of frames.
func (s Scenario) Len() int {
	return len(s.Poses)
}

// Frames returns one blank frame per pose. The caller closes them.
func (s Scenario) Frames() []*gocv.Mat {
	return capture.BlankFrames(len(s.Poses), capture.DefaultWidth, capture.DefaultHeight)
}

// Fall is a person standing, dropping quickly and then lying still on the
// floor until the fall is confirmed and beyond.
func Fall() Scenario {
	var poses []*detector.PoseLandmarks
	poses = append(poses, repeat(detector.StandingLandmarks(), 5)...)
	poses = append(poses,
		detector.PoseAt(0.5, 0.65, 120),
		detector.PoseAt(0.5, 0.75, 100),
		detector.PoseAt(0.5, 0.85, 85),
	)
	poses = append(poses, repeat(detector.LyingLandmarks(), 12)...)
	return Scenario{Name: "fall", Poses: poses, SuspectedAt: 5, ConfirmedAt: 17}
}

// Stumble is a single fast dip that recovers before the confirmation
// window ends.
func Stumble() Scenario {
	var poses []*detector.PoseLandmarks
	poses = append(poses, repeat(detector.StandingLandmarks(), 5)...)
	poses = append(poses,
		detector.PoseAt(0.5, 0.65, 170),
		detector.PoseAt(0.5, 0.66, 175),
	)
	poses = append(poses, repeat(detector.PoseAt(0.5, 0.6, 180), 8)...)
	return Scenario{Name: "stumble", Poses: poses, SuspectedAt: 5, ConfirmedAt: -1}
}

// Absent is a person lying down who leaves the frame before the fall is
// confirmed.
func Absent() Scenario {
	var poses []*detector.PoseLandmarks
	poses = append(poses, repeat(detector.LyingLandmarks(), 6)...)
	poses = append(poses, make([]*detector.PoseLandmarks, 10)...)
	return Scenario{Name: "absent", Poses: poses, SuspectedAt: 0, ConfirmedAt: -1}
}

// All returns every scenario.
func All() []Scenario {
	return []Scenario{Fall(), Stumble(), Absent()}
}

func repeat(p *detector.PoseLandmarks, n int) []*detector.PoseLandmarks {
	out := make([]*detector.PoseLandmarks, n)
	for i := range out {
		cp := *p
		out[i] = &cp
	}
	return out
}
