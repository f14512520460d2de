// Package objects detects labelled bounding boxes with a YOLOv8 ONNX model
// through the OpenCV DNN module.
package objects

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sort"
	"sync"

	"gocv.io/x/gocv"
)

// ErrModelNotFound is returned when the model file does not exist.
var ErrModelNotFound = errors.New("object model not found")

// Detection is one labelled box in frame pixel coordinates.
type Detection struct {
	Box     image.Rectangle
	ClassID int
	Label   string
	Score   float32
}

// Config holds detector configuration.
type Config struct {
	ModelPath      string
	ScoreThreshold float32
	NMSThreshold   float32
	MaxResults     int
	InputWidth     int
	InputHeight    int
}

// DefaultConfig returns defaults for a YOLOv8n export.
func DefaultConfig() Config {
	return Config{
		ModelPath:      "models/yolov8n.onnx",
		ScoreThreshold: 0.5,
		NMSThreshold:   0.45,
		MaxResults:     5,
		InputWidth:     640,
		InputHeight:    640,
	}
}

// Detector runs a YOLOv8 network on frames.
type Detector struct {
	net    gocv.Net
	config Config
	mu     sync.Mutex
}

// New loads the ONNX model described by cfg.
func New(cfg Config) (*Detector, error) {
	if _, err := os.Stat(cfg.ModelPath); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, cfg.ModelPath)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load model from %s", cfg.ModelPath)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set target: %w", err)
	}

	return &Detector{net: net, config: cfg}, nil
}

// Detect returns at most MaxResults detections in frame, best first.
func (d *Detector) Detect(frame *gocv.Mat) ([]Detection, error) {
	if frame == nil || frame.Empty() {
		return nil, errors.New("empty frame")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	inputSize := image.Pt(d.config.InputWidth, d.config.InputHeight)
	blob := gocv.BlobFromImage(*frame, 1.0/255.0, inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	// YOLOv8 output is [1, 4+classes, candidates].
	dims := output.Size()
	if len(dims) != 3 {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read output: %w", err)
	}

	scaleX := float32(frame.Cols()) / float32(d.config.InputWidth)
	scaleY := float32(frame.Rows()) / float32(d.config.InputHeight)
	cands := decode(data, dims[1], dims[2], d.config.ScoreThreshold, scaleX, scaleY)
	if len(cands) == 0 {
		return nil, nil
	}

	boxes := make([]image.Rectangle, len(cands))
	scores := make([]float32, len(cands))
	for i, c := range cands {
		boxes[i] = c.Box
		scores[i] = c.Score
	}
	indices := gocv.NMSBoxes(boxes, scores, d.config.ScoreThreshold, d.config.NMSThreshold)

	kept := make([]Detection, 0, len(indices))
	for _, idx := range indices {
		kept = append(kept, cands[idx])
	}
	return top(kept, d.config.MaxResults), nil
}

// Close releases the network.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

// decode turns a channel-major YOLOv8 tensor into candidates above
// threshold, scaled from network input to frame pixels.
func decode(data []float32, attrs, n int, threshold, scaleX, scaleY float32) []Detection {
	if attrs <= 4 || len(data) < attrs*n {
		return nil
	}

	var out []Detection
	for i := 0; i < n; i++ {
		best, classID := float32(0), -1
		for c := 4; c < attrs; c++ {
			if s := data[c*n+i]; s > best {
				best, classID = s, c-4
			}
		}
		if classID < 0 || best < threshold {
			continue
		}

		cx, cy := data[i], data[n+i]
		w, h := data[2*n+i], data[3*n+i]
		box := image.Rect(
			int((cx-w/2)*scaleX), int((cy-h/2)*scaleY),
			int((cx+w/2)*scaleX), int((cy+h/2)*scaleY),
		)
		out = append(out, Detection{Box: box, ClassID: classID, Label: ClassName(classID), Score: best})
	}
	return out
}

// top sorts by descending score and keeps at most max entries.
func top(dets []Detection, max int) []Detection {
	sort.SliceStable(dets, func(i, j int) bool { return dets[i].Score > dets[j].Score })
	if max > 0 && len(dets) > max {
		dets = dets[:max]
	}
	return dets
}

// ClassName returns the COCO name for id, or "class <id>" when unknown.
func ClassName(id int) string {
	if id >= 0 && id < len(COCOClasses) {
		return COCOClasses[id]
	}
	return fmt.Sprintf("class %d", id)
}

// COCOClasses contains the 80 COCO class names
var COCOClasses = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack",
	"umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
	"couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink", "refrigerator",
	"book", "clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}
