package detector

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Raw is one candidate as emitted by the network. Coordinates are normalized
// to the network input; Scores holds one value per class.
type Raw struct {
	CX, CY, W, H float32
	Scores       []float32
}

// Best returns the highest scoring class and its score.
func (r Raw) Best() (int, float32) {
	best, score := -1, float32(0)
	for i, s := range r.Scores {
		if best < 0 || s > score {
			best, score = i, s
		}
	}
	return best, score
}

// Detection is a candidate that survived thresholding and NMS, with its box
// in display pixel coordinates.
type Detection struct {
	Label      string          `json:"label"`
	ClassID    int             `json:"class_id"`
	Confidence float64         `json:"confidence"`
	Box        image.Rectangle `json:"box"`
}

// Center returns the centre of the box.
func (d Detection) Center() image.Point {
	return image.Pt(d.Box.Min.X+d.Box.Dx()/2, d.Box.Min.Y+d.Box.Dy()/2)
}

// Caption is the text drawn above the box, e.g. "person 0.87".
func (d Detection) Caption() string {
	return fmt.Sprintf("%s %.2f", d.Label, d.Confidence)
}

// Summary is the entry used in the detections overlay, e.g. "person: 0.87".
func (d Detection) Summary() string {
	return fmt.Sprintf("%s: %.2f", d.Label, d.Confidence)
}

// PostProcess turns raw candidates into detections.
type PostProcess struct {
	Labels       []string
	Confidence   float32     // candidates must score above this
	NMSThreshold float32     // overlap above which the weaker box is suppressed
	Input        image.Point // network input size
	Display      image.Point // size of the frame the boxes are drawn on
}

// Run filters by confidence, scales the surviving boxes to the display,
// applies class-agnostic non-maximum suppression and returns the kept
// detections in the order the network emitted them.
func (p PostProcess) Run(raws []Raw) []Detection {
	xScale := float64(p.Display.X) / float64(p.Input.X)
	yScale := float64(p.Display.Y) / float64(p.Input.Y)

	var candidates []Detection
	for _, r := range raws {
		class, score := r.Best()
		if class < 0 || score <= p.Confidence {
			continue
		}

		cx := int(float64(r.CX) * float64(p.Input.X) * xScale)
		cy := int(float64(r.CY) * float64(p.Input.Y) * yScale)
		w := int(float64(r.W) * float64(p.Input.X) * xScale)
		h := int(float64(r.H) * float64(p.Input.Y) * yScale)
		x := int(float64(cx) - float64(w)/2)
		y := int(float64(cy) - float64(h)/2)

		candidates = append(candidates, Detection{
			Label:      Label(p.Labels, class),
			ClassID:    class,
			Confidence: float64(score),
			Box:        image.Rect(x, y, x+w, y+h),
		})
	}

	if len(candidates) == 0 {
		return []Detection{}
	}

	boxes := make([]image.Rectangle, len(candidates))
	scores := make([]float32, len(candidates))
	for i, d := range candidates {
		boxes[i] = d.Box
		scores[i] = float32(d.Confidence)
	}

	// NMSBoxes answers in score order; walk the candidates instead so the
	// emission order survives.
	keep := make(map[int]bool)
	for _, idx := range gocv.NMSBoxes(boxes, scores, p.Confidence, p.NMSThreshold) {
		keep[idx] = true
	}

	out := make([]Detection, 0, len(keep))
	for i, d := range candidates {
		if keep[i] {
			out = append(out, d)
		}
	}
	return out
}
