package overlay

import (
	"gocv.io/x/gocv"

	"github.com/ayusman/falldetect/internal/fall"
)

// DefaultTitle is the title of the fall detection window.
const DefaultTitle = "MediaPipe Pose Fall Detection"

// Window shows annotated frames and turns key presses into commands.
type Window struct {
	win *gocv.Window
}

// NewWindow opens a display window.
func NewWindow(title string) *Window {
	return &Window{win: gocv.NewWindow(title)}
}

// Show displays img and polls the keyboard for one millisecond.
func (w *Window) Show(img *gocv.Mat) fall.Command {
	w.win.IMShow(*img)
	return KeyCommand(w.win.WaitKey(1))
}

// Close destroys the window.
func (w *Window) Close() error {
	return w.win.Close()
}

// KeyCommand maps a WaitKey result to a command. -1 means no key.
func KeyCommand(key int) fall.Command {
	if key < 0 {
		return fall.CommandNone
	}
	return fall.ParseKey(byte(key & 0xFF))
}
