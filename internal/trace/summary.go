package trace

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/falldetect/internal/fall"
)

// Stats describes the known values of one indicator.
type Stats struct {
	N      int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// Summary aggregates a trace.
type Summary struct {
	Ticks    int
	Absent   int
	Duration time.Duration
	Phases   map[fall.Phase]int
	// Falls counts entries into PhaseConfirmed.
	Falls    int
	Velocity Stats
	Angle    Stats
	HipY     Stats
}

// Summarize computes tick counts per phase and indicator statistics.
func Summarize(samples []Sample) Summary {
	sum := Summary{
		Ticks:  len(samples),
		Phases: make(map[fall.Phase]int),
	}
	if len(samples) == 0 {
		return sum
	}
	sum.Duration = samples[len(samples)-1].T.Sub(samples[0].T)

	var vel, ang, hip []float64
	prev := fall.PhaseNormal
	for _, s := range samples {
		sum.Phases[s.Phase]++
		if !s.Present {
			sum.Absent++
		}
		if s.Phase == fall.PhaseConfirmed && prev != fall.PhaseConfirmed {
			sum.Falls++
		}
		prev = s.Phase

		if s.Velocity != nil {
			vel = append(vel, *s.Velocity)
		}
		if s.Angle != nil {
			ang = append(ang, *s.Angle)
		}
		if s.HipY != nil {
			hip = append(hip, *s.HipY)
		}
	}

	sum.Velocity = statsOf(vel)
	sum.Angle = statsOf(ang)
	sum.HipY = statsOf(hip)
	return sum
}

func statsOf(xs []float64) Stats {
	if len(xs) == 0 {
		return Stats{}
	}
	st := Stats{N: len(xs), Min: floats.Min(xs), Max: floats.Max(xs)}
	if len(xs) == 1 {
		st.Mean = xs[0]
		return st
	}
	st.Mean, st.StdDev = stat.MeanStdDev(xs, nil)
	return st
}

// Fprint writes a human readable table of the summary.
func (s Summary) Fprint(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "ticks\t%d\n", s.Ticks)
	fmt.Fprintf(tw, "duration\t%s\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintf(tw, "no person\t%d\n", s.Absent)
	for _, p := range []fall.Phase{fall.PhaseNormal, fall.PhaseSuspected, fall.PhaseConfirmed} {
		fmt.Fprintf(tw, "%s\t%d\n", p, s.Phases[p])
	}
	fmt.Fprintf(tw, "falls\t%d\n", s.Falls)

	fmt.Fprintln(tw, "\nindicator\tn\tmean\tstddev\tmin\tmax")
	for _, row := range []struct {
		name string
		st   Stats
	}{
		{"velocity", s.Velocity},
		{"angle", s.Angle},
		{"hip y", s.HipY},
	} {
		fmt.Fprintf(tw, "%s\t%d\t%.3f\t%.3f\t%.3f\t%.3f\n",
			row.name, row.st.N, row.st.Mean, row.st.StdDev, row.st.Min, row.st.Max)
	}

	return tw.Flush()
}
