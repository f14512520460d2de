package objects

import "time"

// FPSCounter reports the average frame rate since it started, once every
// Every frames.
type FPSCounter struct {
	Every int

	start  time.Time
	frames int
}

// NewFPSCounter returns a counter reporting every n frames.
func NewFPSCounter(n int) *FPSCounter {
	return &FPSCounter{Every: n}
}

// Tick counts a frame at now. ok is true when a report is due.
func (c *FPSCounter) Tick(now time.Time) (fps float64, ok bool) {
	if c.start.IsZero() {
		c.start = now
	}
	c.frames++
	if c.Every <= 0 || c.frames%c.Every != 0 {
		return 0, false
	}
	elapsed := now.Sub(c.start).Seconds()
	if elapsed <= 0 {
		return 0, false
	}
	return float64(c.frames) / elapsed, true
}

// Frames returns the number of frames counted.
func (c *FPSCounter) Frames() int {
	return c.frames
}
