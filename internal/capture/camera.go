// Package capture provides frame sources for fall detection using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Default capture settings
const (
	DefaultFPS    = 30
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrCameraNotOpen is returned when trying to read from a source that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")

	// ErrEndOfStream is returned when a video file has no more frames.
	ErrEndOfStream = errors.New("end of video stream")
)

// Camera defines the interface for frame sources.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
	// IsFile reports whether frames come from a finite recording.
	IsFile() bool
}

// Config selects and sizes a frame source.
type Config struct {
	Device int
	// Video is a file path. When set, Device is ignored.
	Video  string
	Width  int
	Height int
	FPS    int
}

// New returns a file source when cfg.Video is set and a device camera otherwise.
func New(cfg Config) Camera {
	var c *cameraImpl
	if cfg.Video != "" {
		c = NewFileSource(cfg.Video).(*cameraImpl)
	} else {
		c = NewCamera(cfg.Device).(*cameraImpl)
	}
	if cfg.Width > 0 && cfg.Height > 0 {
		c.width, c.height = cfg.Width, cfg.Height
	}
	if cfg.FPS > 0 {
		c.fps = cfg.FPS
	}
	return c
}

// cameraImpl manages video capture from a camera device or file using GoCV.
type cameraImpl struct {
	deviceID int
	path     string
	capture  *gocv.VideoCapture
	mu       sync.Mutex
	running  bool
	fps      int
	width    int
	height   int
	file     bool
}

// NewCamera creates a new Camera with the given device ID.
func NewCamera(deviceID int) Camera {
	return &cameraImpl{
		deviceID: deviceID,
		fps:      DefaultFPS,
		width:    DefaultWidth,
		height:   DefaultHeight,
	}
}

// NewFileSource creates a Camera that plays back a video file.
func NewFileSource(path string) Camera {
	return &cameraImpl{
		path:   path,
		fps:    DefaultFPS,
		width:  DefaultWidth,
		height: DefaultHeight,
	}
}

// Open opens the source for capturing frames.
// Device cameras are asked for the configured resolution and rate; files
// report their own frame rate.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	var (
		capture *gocv.VideoCapture
		err     error
	)
	if c.path != "" {
		capture, err = gocv.VideoCaptureFile(c.path)
		if err != nil {
			return fmt.Errorf("failed to open video file %s: %w", c.path, err)
		}
	} else {
		capture, err = gocv.OpenVideoCapture(c.deviceID)
		if err != nil {
			return fmt.Errorf("failed to open camera %d: %w", c.deviceID, err)
		}
		capture.Set(gocv.VideoCaptureFrameWidth, float64(c.width))
		capture.Set(gocv.VideoCaptureFrameHeight, float64(c.height))
		capture.Set(gocv.VideoCaptureFPS, float64(c.fps))
	}

	if !capture.IsOpened() {
		capture.Close()
		return ErrCameraNotOpen
	}

	// Live devices report a frame count of -1 or 0.
	c.file = c.path != "" && capture.Get(gocv.VideoCaptureFrameCount) > 1
	if c.file {
		if fps := int(capture.Get(gocv.VideoCaptureFPS) + 0.5); fps > 0 {
			c.fps = fps
		}
	}

	c.capture = capture
	c.running = true

	return nil
}

// Close closes the source and releases resources.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame reads a single frame.
// The caller is responsible for closing the returned Mat.
func (c *cameraImpl) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok {
		mat.Close()
		if c.file {
			return nil, ErrEndOfStream
		}
		return nil, errors.New("failed to read frame from camera")
	}

	if mat.Empty() {
		mat.Close()
		if c.file {
			return nil, ErrEndOfStream
		}
		return nil, errors.New("captured frame is empty")
	}

	return &mat, nil
}

// SetFPS sets the frames per second for capture.
// Values less than or equal to 0 are ignored.
func (c *cameraImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps

	if c.capture != nil && !c.file {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the current frames per second setting.
func (c *cameraImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fps
}

// IsOpen returns true if the source is currently open and running.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}

// IsFile returns true once an opened source turned out to be a recording.
func (c *cameraImpl) IsFile() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.file
}
