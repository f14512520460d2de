package objects

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var (
	boxColor  = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	textColor = color.RGBA{R: 255, G: 0, B: 0, A: 0}
)

// WindowTitle is the title of the object detection window.
const WindowTitle = "Object Detection"

// LabelText formats a detection as "<name> (<score>)".
func LabelText(d Detection) string {
	return fmt.Sprintf("%s (%.2f)", d.Label, d.Score)
}

// LabelOrigin places the label 10px above the box, or 20px below its top
// edge when there is no room above.
func LabelOrigin(box image.Rectangle) image.Point {
	if box.Min.Y > 20 {
		return image.Pt(box.Min.X, box.Min.Y-10)
	}
	return image.Pt(box.Min.X, box.Min.Y+20)
}

// Draw outlines each detection on img and writes its label.
func Draw(img *gocv.Mat, dets []Detection) {
	for _, d := range dets {
		gocv.Rectangle(img, d.Box, boxColor, 2)
		gocv.PutTextWithParams(img, LabelText(d), LabelOrigin(d.Box),
			gocv.FontHersheySimplex, 0.6, textColor, 1, gocv.LineAA, false)
	}
}
