// Package detector provides pose detection interfaces and types for fall detection.
package detector

import "math"

// Pose landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/pose_landmarker
const (
	Nose           = 0
	LeftEyeInner   = 1
	LeftEye        = 2
	LeftEyeOuter   = 3
	RightEyeInner  = 4
	RightEye       = 5
	RightEyeOuter  = 6
	LeftEar        = 7
	RightEar       = 8
	MouthLeft      = 9
	MouthRight     = 10
	LeftShoulder   = 11
	RightShoulder  = 12
	LeftElbow      = 13
	RightElbow     = 14
	LeftWrist      = 15
	RightWrist     = 16
	LeftPinky      = 17
	RightPinky     = 18
	LeftIndex      = 19
	RightIndex     = 20
	LeftThumb      = 21
	RightThumb     = 22
	LeftHip        = 23
	RightHip       = 24
	LeftKnee       = 25
	RightKnee      = 26
	LeftAnkle      = 27
	RightAnkle     = 28
	LeftHeel       = 29
	RightHeel      = 30
	LeftFootIndex  = 31
	RightFootIndex = 32
	NumLandmarks   = 33
)

// VisibilityThreshold is the visibility a landmark must exceed to be used.
const VisibilityThreshold = 0.5

// Landmark is a single body point. X and Y are normalized to [0,1] by the
// frame width and height with the origin at the top-left corner.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

// PoseLandmarks holds the 33 body landmarks of the single person detected in a frame.
type PoseLandmarks struct {
	Points [NumLandmarks]Landmark `json:"points"`
}

// Visible returns the landmark at idx if it exists, has finite coordinates
// and its visibility is strictly above VisibilityThreshold.
func (p *PoseLandmarks) Visible(idx int) (Landmark, bool) {
	if p == nil || idx < 0 || idx >= NumLandmarks {
		return Landmark{}, false
	}
	lm := p.Points[idx]
	if math.IsNaN(lm.X) || math.IsNaN(lm.Y) || math.IsInf(lm.X, 0) || math.IsInf(lm.Y, 0) {
		return Landmark{}, false
	}
	if !(lm.Visibility > VisibilityThreshold) {
		return Landmark{}, false
	}
	return lm, true
}

// Midpoint returns the 2D midpoint of landmarks a and b when both are visible.
func (p *PoseLandmarks) Midpoint(a, b int) (x, y float64, ok bool) {
	la, okA := p.Visible(a)
	lb, okB := p.Visible(b)
	if !okA || !okB {
		return 0, 0, false
	}
	return (la.X + lb.X) / 2, (la.Y + lb.Y) / 2, true
}

// Connections lists the landmark pairs joined when drawing a skeleton.
var Connections = [][2]int{
	{Nose, LeftEyeInner}, {LeftEyeInner, LeftEye}, {LeftEye, LeftEyeOuter}, {LeftEyeOuter, LeftEar},
	{Nose, RightEyeInner}, {RightEyeInner, RightEye}, {RightEye, RightEyeOuter}, {RightEyeOuter, RightEar},
	{MouthLeft, MouthRight},
	{LeftShoulder, RightShoulder},
	{LeftShoulder, LeftElbow}, {LeftElbow, LeftWrist},
	{LeftWrist, LeftPinky}, {LeftWrist, LeftIndex}, {LeftWrist, LeftThumb}, {LeftPinky, LeftIndex},
	{RightShoulder, RightElbow}, {RightElbow, RightWrist},
	{RightWrist, RightPinky}, {RightWrist, RightIndex}, {RightWrist, RightThumb}, {RightPinky, RightIndex},
	{LeftShoulder, LeftHip}, {RightShoulder, RightHip}, {LeftHip, RightHip},
	{LeftHip, LeftKnee}, {LeftKnee, LeftAnkle}, {LeftAnkle, LeftHeel}, {LeftHeel, LeftFootIndex}, {LeftAnkle, LeftFootIndex},
	{RightHip, RightKnee}, {RightKnee, RightAnkle}, {RightAnkle, RightHeel}, {RightHeel, RightFootIndex}, {RightAnkle, RightFootIndex},
}
