// Package overlay draws fall detection status, diagnostics and the pose
// skeleton onto frames.
package overlay

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/falldetect/internal/detector"
	"github.com/ayusman/falldetect/internal/fall"
)

// Status colors.
var (
	Green  = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	Orange = color.RGBA{R: 255, G: 165, B: 0, A: 0}
	Red    = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	Cyan   = color.RGBA{R: 0, G: 255, B: 255, A: 0}
	White  = color.RGBA{R: 255, G: 255, B: 255, A: 0}
)

const (
	statusX      = 50
	statusY      = 50
	debugX       = 10
	debugY       = 80
	debugSpacing = 20
)

// Color returns the status text color for a tick.
func Color(r fall.Result) color.RGBA {
	switch r.State.Phase {
	case fall.PhaseConfirmed:
		return Red
	case fall.PhaseSuspected:
		return Orange
	}
	if !r.Present {
		return Red
	}
	return Green
}

// DebugLines formats the indicator snapshot for display.
func DebugLines(s fall.Snapshot) []string {
	return []string{
		"Vert Vel: " + s.VerticalVelocity.Format(2),
		"Angle: " + s.TorsoAngle.Format(1),
		fmt.Sprintf("Low H: %t (Y:%s)", s.LowHeight, s.HipHeight.Format(2)),
		fmt.Sprintf("Flags: V=%t, H=%t, L=%t", s.HighVelocity, s.Horizontal, s.LowHeight),
	}
}

// Renderer draws fall detection results onto frames.
type Renderer struct {
	// Debug enables the indicator readout below the status line.
	Debug bool
	// Skeleton enables drawing of the pose skeleton.
	Skeleton bool
}

// NewRenderer returns a renderer with every layer enabled.
func NewRenderer() *Renderer {
	return &Renderer{Debug: true, Skeleton: true}
}

// Draw annotates img in place. lm may be nil.
func (r *Renderer) Draw(img *gocv.Mat, lm *detector.PoseLandmarks, res fall.Result, fps float64) {
	if img == nil || img.Empty() {
		return
	}
	if r.Skeleton && lm != nil {
		DrawSkeleton(img, lm)
	}

	gocv.PutTextWithParams(img, fall.Label(res), image.Pt(statusX, statusY),
		gocv.FontHersheySimplex, 1, Color(res), 2, gocv.LineAA, false)

	if r.Debug {
		for i, line := range DebugLines(res.Snapshot) {
			gocv.PutText(img, line, image.Pt(debugX, debugY+i*debugSpacing),
				gocv.FontHersheySimplex, 0.5, Cyan, 1)
		}
	}

	gocv.PutText(img, fmt.Sprintf("FPS: %.1f", fps), image.Pt(img.Cols()-100, 30),
		gocv.FontHersheySimplex, 0.6, Green, 1)
}

// DrawSkeleton draws pose connections and joints whose landmarks are visible.
func DrawSkeleton(img *gocv.Mat, lm *detector.PoseLandmarks) {
	width, height := img.Cols(), img.Rows()

	for _, c := range detector.Connections {
		a, okA := lm.Visible(c[0])
		b, okB := lm.Visible(c[1])
		if !okA || !okB {
			continue
		}
		gocv.Line(img, PixelPoint(a, width, height), PixelPoint(b, width, height), White, 2)
	}

	for i := range lm.Points {
		p, ok := lm.Visible(i)
		if !ok {
			continue
		}
		gocv.Circle(img, PixelPoint(p, width, height), 3, Red, -1)
	}
}

// PixelPoint converts a normalized landmark to pixel coordinates.
func PixelPoint(l detector.Landmark, width, height int) image.Point {
	return image.Pt(int(l.X*float64(width)), int(l.Y*float64(height)))
}
