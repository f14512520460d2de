package detector

import (
	"math"
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu       sync.Mutex
	sequence []*PoseLandmarks
	pose     *PoseLandmarks
	err      error
	calls    int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetPose sets the pose returned by every Detect call. nil means no person.
func (m *MockDetector) SetPose(pose *PoseLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pose = pose
	m.sequence = nil
}

// SetSequence queues poses returned by successive Detect calls.
// Once the queue is drained the last pose keeps being returned.
func (m *MockDetector) SetSequence(poses ...*PoseLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence = poses
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect was invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured pose or error.
func (m *MockDetector) Detect(frame *gocv.Mat) (*PoseLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.sequence) > 0 {
		m.pose = m.sequence[0]
		m.sequence = m.sequence[1:]
	}
	if m.pose == nil {
		return nil, nil
	}
	pose := *m.pose
	return &pose, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// PoseAt builds a fully visible pose whose hip center is at (hipX, hipY) and
// whose shoulder center is placed so that |atan2(dx, dy)| equals angleDeg,
// with dx and dy measured from the hip center to the shoulder center.
// Upright people therefore sit near 180 degrees.
func PoseAt(hipX, hipY, angleDeg float64) *PoseLandmarks {
	const (
		torso    = 0.25
		halfHips = 0.04
		leg      = 0.3
	)

	rad := angleDeg * math.Pi / 180
	sx := hipX + torso*math.Sin(rad)
	sy := hipY + torso*math.Cos(rad)

	// Unit vector along the torso and its normal for left/right offsets.
	ux, uy := math.Sin(rad), math.Cos(rad)
	nx, ny := -uy, ux

	p := &PoseLandmarks{}
	set := func(idx int, x, y float64) {
		p.Points[idx] = Landmark{X: x, Y: y, Visibility: 0.98}
	}
	for i := range p.Points {
		set(i, hipX, hipY)
	}

	set(Nose, sx+0.1*ux, sy+0.1*uy)
	set(LeftShoulder, sx+halfHips*1.5*nx, sy+halfHips*1.5*ny)
	set(RightShoulder, sx-halfHips*1.5*nx, sy-halfHips*1.5*ny)
	set(LeftHip, hipX+halfHips*nx, hipY+halfHips*ny)
	set(RightHip, hipX-halfHips*nx, hipY-halfHips*ny)
	set(LeftKnee, hipX+halfHips*nx-leg/2*ux, hipY+halfHips*ny-leg/2*uy)
	set(RightKnee, hipX-halfHips*nx-leg/2*ux, hipY-halfHips*ny-leg/2*uy)
	set(LeftAnkle, hipX+halfHips*nx-leg*ux, hipY+halfHips*ny-leg*uy)
	set(RightAnkle, hipX-halfHips*nx-leg*ux, hipY-halfHips*ny-leg*uy)

	return p
}

// StandingLandmarks returns an upright person in the middle of the frame
// with the hip center at y=0.55.
func StandingLandmarks() *PoseLandmarks {
	return PoseAt(0.5, 0.55, 180)
}

// LyingLandmarks returns a person on the floor near the bottom of the frame:
// hip center at y=0.9 and the torso at 80 degrees.
func LyingLandmarks() *PoseLandmarks {
	return PoseAt(0.5, 0.9, 80)
}

// OccludedLandmarks returns a standing person whose hips are hidden.
func OccludedLandmarks() *PoseLandmarks {
	p := StandingLandmarks()
	p.Points[LeftHip].Visibility = 0.2
	p.Points[RightHip].Visibility = 0.1
	return p
}

// ShiftY returns a copy of p with every y coordinate moved by dy.
func ShiftY(p *PoseLandmarks, dy float64) *PoseLandmarks {
	if p == nil {
		return nil
	}
	out := *p
	for i := range out.Points {
		out.Points[i].Y += dy
	}
	return &out
}
