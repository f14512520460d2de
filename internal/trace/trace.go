// Package trace records per-tick fall detection diagnostics as JSON lines
// and turns recorded traces into summaries and plots for threshold tuning.
package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ayusman/falldetect/internal/fall"
)

// Sample is one recorded tick. Unknown indicators are nil.
type Sample struct {
	T            time.Time  `json:"t"`
	Phase        fall.Phase `json:"phase"`
	Present      bool       `json:"present"`
	Velocity     *float64   `json:"velocity"`
	Angle        *float64   `json:"angle"`
	HipY         *float64   `json:"hip_y"`
	HighVelocity bool       `json:"high_velocity,omitempty"`
	Horizontal   bool       `json:"horizontal,omitempty"`
	LowHeight    bool       `json:"low_height,omitempty"`
}

// NewSample converts a tick result observed at at.
func NewSample(res fall.Result, at time.Time) Sample {
	s := res.Snapshot
	return Sample{
		T:            at,
		Phase:        res.State.Phase,
		Present:      res.Present,
		Velocity:     s.VerticalVelocity.Ptr(),
		Angle:        s.TorsoAngle.Ptr(),
		HipY:         s.HipHeight.Ptr(),
		HighVelocity: s.HighVelocity,
		Horizontal:   s.Horizontal,
		LowHeight:    s.LowHeight,
	}
}

// Recorder appends samples to a writer, one JSON object per line.
// It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	buf    *bufio.Writer
	enc    *json.Encoder
	closer io.Closer
	n      int
}

// NewRecorder writes samples to w. Close flushes but does not close w.
func NewRecorder(w io.Writer) *Recorder {
	buf := bufio.NewWriter(w)
	return &Recorder{buf: buf, enc: json.NewEncoder(buf)}
}

// Create opens path for appending, creating parent directories.
func Create(path string) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create trace dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	r := NewRecorder(f)
	r.closer = f
	return r, nil
}

// Record appends the sample for one tick.
func (r *Recorder) Record(res fall.Result, at time.Time) error {
	return r.Write(NewSample(res, at))
}

// Write appends s.
func (r *Recorder) Write(s Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enc.Encode(s); err != nil {
		return fmt.Errorf("failed to write sample: %w", err)
	}
	r.n++
	return nil
}

// Count returns the number of samples written.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

// Close flushes buffered samples and closes the file opened by Create.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.buf.Flush()
	if r.closer != nil {
		if cerr := r.closer.Close(); err == nil {
			err = cerr
		}
		r.closer = nil
	}
	return err
}

// Read parses a JSON lines trace. Blank lines are skipped.
func Read(rd io.Reader) ([]Sample, error) {
	var samples []Sample

	sc := bufio.NewScanner(rd)
	line := 0
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(b) == 0 {
			continue
		}
		var s Sample
		if err := json.Unmarshal(b, &s); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		samples = append(samples, s)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}

// ReadFile reads the trace at path.
func ReadFile(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}
