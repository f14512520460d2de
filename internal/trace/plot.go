package trace

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ayusman/falldetect/internal/fall"
)

var (
	lineColor      = color.RGBA{R: 30, G: 100, B: 200, A: 255}
	thresholdColor = color.RGBA{R: 220, G: 40, B: 40, A: 255}
	confirmedColor = color.RGBA{R: 240, G: 140, B: 0, A: 255}
)

// indicator selects one series of a trace for plotting.
type indicator struct {
	file      string
	title     string
	unit      string
	threshold float64
	value     func(Sample) *float64
}

// Plot writes one PNG per indicator into dir: velocity.png, angle.png and
// hip_height.png. Each shows the series over time with its threshold and
// marks ticks spent in PhaseConfirmed. It returns the written paths.
func Plot(samples []Sample, th fall.Thresholds, dir string) ([]string, error) {
	if len(samples) == 0 {
		return nil, errors.New("no samples to plot")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	indicators := []indicator{
		{"velocity.png", "Vertical Velocity", "units/s", th.YVelocityThreshold, func(s Sample) *float64 { return s.Velocity }},
		{"angle.png", "Torso Angle", "degrees", th.AngleThreshold, func(s Sample) *float64 { return s.Angle }},
		{"hip_height.png", "Hip Height", "normalized y", th.HeightThresholdFactor, func(s Sample) *float64 { return s.HipY }},
	}

	var paths []string
	for _, ind := range indicators {
		path := filepath.Join(dir, ind.file)
		if err := plotIndicator(samples, ind, path); err != nil {
			return paths, fmt.Errorf("%s: %w", ind.title, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func plotIndicator(samples []Sample, ind indicator, path string) error {
	p := plot.New()
	p.Title.Text = ind.title
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = ind.unit

	start := samples[0].T
	var confirmed plotter.XYs
	first := true
	for _, seg := range segments(samples, start, ind.value) {
		line, err := plotter.NewLine(seg)
		if err != nil {
			return err
		}
		line.Color = lineColor
		line.Width = vg.Points(1)
		p.Add(line)
		if first {
			p.Legend.Add(ind.title, line)
			first = false
		}
	}

	for _, s := range samples {
		if v := ind.value(s); v != nil && s.Phase == fall.PhaseConfirmed {
			confirmed = append(confirmed, plotter.XY{X: s.T.Sub(start).Seconds(), Y: *v})
		}
	}
	if len(confirmed) > 0 {
		sc, err := plotter.NewScatter(confirmed)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = confirmedColor
		sc.GlyphStyle.Radius = vg.Points(2)
		p.Add(sc)
		p.Legend.Add("confirmed", sc)
	}

	threshold := plotter.NewFunction(func(float64) float64 { return ind.threshold })
	threshold.Color = thresholdColor
	threshold.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(threshold)
	p.Legend.Add("threshold", threshold)

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(10*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}

// segments splits a series at unknown values. X is seconds since start.
func segments(samples []Sample, start time.Time, value func(Sample) *float64) []plotter.XYs {
	var (
		out []plotter.XYs
		cur plotter.XYs
	)
	for _, s := range samples {
		v := value(s)
		if v == nil {
			if len(cur) > 0 {
				out = append(out, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, plotter.XY{X: s.T.Sub(start).Seconds(), Y: *v})
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}
