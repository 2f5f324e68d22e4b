package overlay

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/camrover/internal/detector"
)

// BandHeight is the height of the translucent band behind the texts.
const BandHeight = 120

var (
	targetColor   = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	otherColor    = color.RGBA{R: 0, G: 0, B: 255, A: 0}
	textColor     = color.RGBA{R: 255, G: 255, B: 255, A: 0}
	bandColor     = color.RGBA{R: 0, G: 0, B: 0, A: 0}
	landmarkColor = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	boneColor     = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	palmColor     = color.RGBA{R: 255, G: 255, B: 0, A: 0}
)

// BoxColor returns green for the target label and blue for everything else.
func BoxColor(label, target string) color.RGBA {
	if label == target {
		return targetColor
	}
	return otherColor
}

// Band darkens the top BandHeight rows of img so text stays readable.
func Band(img *gocv.Mat, alpha float64) {
	if img.Empty() {
		return
	}
	shade := img.Clone()
	defer shade.Close()

	rect := image.Rect(0, 0, img.Cols(), min(BandHeight, img.Rows()))
	gocv.Rectangle(&shade, rect, bandColor, -1)
	gocv.AddWeighted(shade, alpha, *img, 1-alpha, 0, img)
}

// Detections draws each box with its "label 0.87" caption.
func Detections(img *gocv.Mat, dets []detector.Detection, target string) {
	for _, d := range dets {
		gocv.Rectangle(img, d.Box, BoxColor(d.Label, target), 2)
		gocv.PutText(img, d.Caption(), image.Pt(d.Box.Min.X, d.Box.Min.Y-5),
			gocv.FontHersheySimplex, 0.5, textColor, 2)
	}
}

// Hand draws the landmark skeleton and marks the palm point.
func Hand(img *gocv.Mat, hand *detector.HandLandmarks) {
	pts := hand.Pixels(img.Cols(), img.Rows())
	for _, c := range detector.HandConnections {
		gocv.Line(img, pts[c[0]], pts[c[1]], boneColor, 1)
	}
	for _, p := range pts {
		gocv.Circle(img, p, 1, landmarkColor, 1)
	}
	gocv.Circle(img, pts[detector.Palm], 5, palmColor, -1)
}

// Status writes the tracker status word in the top-left corner.
func Status(img *gocv.Mat, status string) {
	if status == "" {
		return
	}
	gocv.PutText(img, status, image.Pt(10, 30), gocv.FontHersheySimplex, 0.7, textColor, 2)
}

// Text writes the overlay texts below the status word.
func Text(img *gocv.Mat, t Texts) {
	y := 55
	for _, line := range []string{t.FPS, t.Status, t.Detections} {
		if line != "" {
			gocv.PutText(img, line, image.Pt(10, y), gocv.FontHersheySimplex, 0.6, textColor, 2)
		}
		y += 25
	}
}
