package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/falldetect/internal/capture"
	"github.com/ayusman/falldetect/internal/fall"
)

const (
	// MaxReadFailures is how many consecutive failed camera reads abort a run.
	MaxReadFailures = 30

	// ReadRetryInterval is the pause after a failed read from a live camera.
	ReadRetryInterval = 500 * time.Millisecond
)

// FrameHandler processes one captured frame. It may annotate frame in place.
type FrameHandler interface {
	HandleFrame(frame *gocv.Mat, now time.Time) error
}

// Resetter is implemented by handlers that understand the reset command.
type Resetter interface {
	Reset()
}

// Display shows a processed frame and returns the operator's command.
type Display interface {
	Show(img *gocv.Mat) fall.Command
}

// Loop drives a FrameHandler from a camera until the stream ends, the
// operator quits or the context is canceled.
type Loop struct {
	Camera  capture.Camera
	Handler FrameHandler
	// Display is nil when running headless.
	Display Display
	// Mirror flips frames horizontally before they reach the handler.
	Mirror bool
	// Clock stamps each frame. Nil uses the wall clock.
	Clock func() time.Time
	// RetryInterval overrides ReadRetryInterval. Video files retry at once.
	RetryInterval time.Duration
}

// Run reads frames until the stream ends or the loop is told to stop. The
// camera must already be open. A handler error skips the frame.
func (l *Loop) Run(ctx context.Context) error {
	clock := l.Clock
	if clock == nil {
		clock = time.Now
	}

	var retry time.Duration
	if !l.Camera.IsFile() {
		retry = l.RetryInterval
		if retry <= 0 {
			retry = ReadRetryInterval
		}
	}

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		frame, err := l.Camera.ReadFrame()
		if errors.Is(err, capture.ErrEndOfStream) {
			log.Println("End of video stream")
			return nil
		}
		if err != nil {
			failures++
			if failures >= MaxReadFailures {
				return fmt.Errorf("read frame: %w", err)
			}
			log.Printf("Error reading frame: %v", err)
			if retry > 0 {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(retry):
				}
			}
			continue
		}
		failures = 0

		cmd := l.process(frame, clock())
		frame.Close()

		switch cmd {
		case fall.CommandQuit:
			return nil
		case fall.CommandReset:
			if r, ok := l.Handler.(Resetter); ok {
				r.Reset()
			}
		}
	}
}

func (l *Loop) process(frame *gocv.Mat, now time.Time) fall.Command {
	if l.Mirror {
		gocv.Flip(*frame, frame, 1)
	}

	if err := l.Handler.HandleFrame(frame, now); err != nil {
		log.Printf("Skipping frame: %v", err)
	}

	if l.Display == nil {
		return fall.CommandNone
	}
	return l.Display.Show(frame)
}

// FrameClock returns a clock that advances by one frame interval per call,
// starting at start. Recorded video uses it so timing follows the file
// rather than processing speed.
func FrameClock(start time.Time, fps int) func() time.Time {
	if fps <= 0 {
		fps = capture.DefaultFPS
	}
	step := time.Second / time.Duration(fps)
	next := start
	return func() time.Time {
		t := next
		next = next.Add(step)
		return t
	}
}
