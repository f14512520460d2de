package overlay

import (
	"image"
	"image/color"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/falldetect/internal/detector"
	"github.com/ayusman/falldetect/internal/fall"
)

func TestColor(t *testing.T) {
	tests := []struct {
		name string
		r    fall.Result
		want color.RGBA
	}{
		{name: "normal", r: fall.Result{Present: true}, want: Green},
		{name: "no person", r: fall.Result{}, want: Red},
		{name: "suspected", r: fall.Result{Present: true, State: fall.State{Phase: fall.PhaseSuspected}}, want: Orange},
		{name: "confirmed", r: fall.Result{Present: true, State: fall.State{Phase: fall.PhaseConfirmed}}, want: Red},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Color(tt.r); got != tt.want {
				t.Errorf("Color() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDebugLines(t *testing.T) {
	t.Run("known values", func(t *testing.T) {
		s := fall.Snapshot{
			VerticalVelocity: fall.Scalar{Value: 0.123, Known: true},
			TorsoAngle:       fall.Scalar{Value: 80.04, Known: true},
			HipHeight:        fall.Scalar{Value: 0.9, Known: true},
			Horizontal:       true,
			LowHeight:        true,
		}
		want := []string{
			"Vert Vel: 0.12",
			"Angle: 80.0",
			"Low H: true (Y:0.90)",
			"Flags: V=false, H=true, L=true",
		}
		got := DebugLines(s)
		if len(got) != len(want) {
			t.Fatalf("DebugLines() returned %d lines, want %d", len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("line %d = %q, want %q", i, got[i], want[i])
			}
		}
	})

	t.Run("unknown values", func(t *testing.T) {
		got := DebugLines(fall.Snapshot{})
		want := []string{
			"Vert Vel: N/A",
			"Angle: N/A",
			"Low H: false (Y:N/A)",
			"Flags: V=false, H=false, L=false",
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("line %d = %q, want %q", i, got[i], want[i])
			}
		}
	})
}

func TestPixelPoint(t *testing.T) {
	got := PixelPoint(detector.Landmark{X: 0.5, Y: 0.25}, 640, 480)
	if got != image.Pt(320, 120) {
		t.Errorf("PixelPoint() = %v, want (320,120)", got)
	}
}

func TestKeyCommand(t *testing.T) {
	tests := []struct {
		key  int
		want fall.Command
	}{
		{key: -1, want: fall.CommandNone},
		{key: 'q', want: fall.CommandQuit},
		{key: 'r', want: fall.CommandReset},
		{key: 0x100 | 'q', want: fall.CommandQuit},
		{key: 'x', want: fall.CommandNone},
	}

	for _, tt := range tests {
		if got := KeyCommand(tt.key); got != tt.want {
			t.Errorf("KeyCommand(%d) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestRenderer_Draw(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 480, 640, gocv.MatTypeCV8UC3)
	defer img.Close()

	session := fall.NewSession(fall.DefaultThresholds())
	lm := detector.LyingLandmarks()
	res := session.Tick(lm, time.Now())

	NewRenderer().Draw(&img, lm, res, 29.7)

	gray := img.Reshape(1, 0)
	defer gray.Close()
	if gocv.CountNonZero(gray) == 0 {
		t.Error("Draw() left the frame blank")
	}

	// Hip joints are drawn at their pixel position.
	hip := PixelPoint(lm.Points[detector.LeftHip], img.Cols(), img.Rows())
	v := img.GetVecbAt(hip.Y, hip.X)
	if v[0] == 0 && v[1] == 0 && v[2] == 0 {
		t.Errorf("expected a joint marker at %v", hip)
	}
}

func TestRenderer_DrawEmpty(t *testing.T) {
	img := gocv.NewMat()
	defer img.Close()

	// Must not panic on an empty frame.
	NewRenderer().Draw(&img, nil, fall.Result{}, 0)
	(&Renderer{}).Draw(nil, nil, fall.Result{}, 0)
}
