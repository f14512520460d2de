package app

import (
	"fmt"
	"log"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/falldetect/internal/objects"
)

// ObjectDetector finds labeled boxes in a frame.
type ObjectDetector interface {
	Detect(frame *gocv.Mat) ([]objects.Detection, error)
}

// ObjectHandler draws object detections on each frame.
type ObjectHandler struct {
	det    ObjectDetector
	fps    *objects.FPSCounter
	frames FrameSink

	last []objects.Detection
}

// NewObjectHandler creates a handler around det. frames may be nil.
func NewObjectHandler(det ObjectDetector, frames FrameSink) *ObjectHandler {
	return &ObjectHandler{
		det:    det,
		fps:    objects.NewFPSCounter(10),
		frames: frames,
	}
}

// HandleFrame detects and draws objects on frame.
func (h *ObjectHandler) HandleFrame(frame *gocv.Mat, now time.Time) error {
	dets, err := h.det.Detect(frame)
	if err != nil {
		return fmt.Errorf("detect objects: %w", err)
	}
	h.last = dets

	objects.Draw(frame, dets)
	if fps, ok := h.fps.Tick(now); ok {
		log.Printf("FPS: %.2f", fps)
	}

	if h.frames != nil {
		if err := h.frames.Update(frame); err != nil {
			log.Printf("Error updating stream frame: %v", err)
		}
	}
	return nil
}

// Last returns the detections of the latest frame.
func (h *ObjectHandler) Last() []objects.Detection {
	return h.last
}

// Frames returns how many frames were handled.
func (h *ObjectHandler) Frames() int {
	return h.fps.Frames()
}
