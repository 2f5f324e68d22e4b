package detector

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// yoloBoxFields is the number of leading values in each YOLO output row
// before the per-class scores: cx, cy, w, h, objectness.
const yoloBoxFields = 5

// YOLO runs a Darknet YOLO network through the OpenCV DNN module.
type YOLO struct {
	net       gocv.Net
	outLayers []string
	labels    []string
	size      image.Point
	mu        sync.Mutex
}

// NewYOLO loads the network from weights and cfg and the class names from
// names. size is the network input resolution.
func NewYOLO(weights, cfg, names string, size image.Point) (*YOLO, error) {
	for _, path := range []string{weights, cfg} {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
		}
	}

	labels, err := LoadLabels(names)
	if err != nil {
		return nil, err
	}

	net := gocv.ReadNet(weights, cfg)
	if net.Empty() {
		return nil, fmt.Errorf("%w: failed to read network %s", ErrModelUnavailable, cfg)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	// Darknet layer ids are 1-based.
	layerNames := net.GetLayerNames()
	var outLayers []string
	for _, id := range net.GetUnconnectedOutLayers() {
		if id-1 >= 0 && id-1 < len(layerNames) {
			outLayers = append(outLayers, layerNames[id-1])
		}
	}
	if len(outLayers) == 0 {
		net.Close()
		return nil, fmt.Errorf("%w: network has no output layers", ErrModelUnavailable)
	}

	return &YOLO{
		net:       net,
		outLayers: outLayers,
		labels:    labels,
		size:      size,
	}, nil
}

// Detect runs one forward pass over frame. Candidates are returned in the
// order the output layers emit them.
func (y *YOLO) Detect(frame *gocv.Mat) ([]Raw, error) {
	y.mu.Lock()
	defer y.mu.Unlock()

	if frame == nil || frame.Empty() {
		return nil, fmt.Errorf("%w: empty frame", ErrInference)
	}

	blob := gocv.BlobFromImage(*frame, 1.0/255.0, y.size, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	y.net.SetInput(blob, "")
	outs := y.net.ForwardLayers(y.outLayers)
	defer func() {
		for i := range outs {
			outs[i].Close()
		}
	}()

	var raws []Raw
	for _, out := range outs {
		cols := out.Cols()
		if cols <= yoloBoxFields {
			return nil, fmt.Errorf("%w: unexpected output shape %dx%d", ErrInference, out.Rows(), cols)
		}
		for r := 0; r < out.Rows(); r++ {
			scores := make([]float32, cols-yoloBoxFields)
			for c := range scores {
				scores[c] = out.GetFloatAt(r, yoloBoxFields+c)
			}
			raws = append(raws, Raw{
				CX:     out.GetFloatAt(r, 0),
				CY:     out.GetFloatAt(r, 1),
				W:      out.GetFloatAt(r, 2),
				H:      out.GetFloatAt(r, 3),
				Scores: scores,
			})
		}
	}
	return raws, nil
}

func (y *YOLO) Labels() []string { return y.labels }

// Close releases the network.
func (y *YOLO) Close() error {
	y.mu.Lock()
	defer y.mu.Unlock()
	return y.net.Close()
}
