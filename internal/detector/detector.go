package detector

import (
	"errors"

	"gocv.io/x/gocv"
)

var (
	// ErrInference wraps failures raised while running a model on a frame.
	ErrInference = errors.New("inference error")

	// ErrModelUnavailable is returned when model files or the tracker service
	// cannot be found or loaded.
	ErrModelUnavailable = errors.New("model unavailable")
)

// HandTracker defines the interface for hand landmark implementations.
type HandTracker interface {
	// Track analyzes a video frame and returns detected hand landmarks.
	// Returns an empty slice if no hands are detected.
	Track(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the tracker.
	Close() error
}

// ObjectDetector runs a detection model on a frame that has already been
// resized to the model's input resolution. It returns the raw candidates;
// thresholding and NMS are left to the caller.
type ObjectDetector interface {
	Detect(frame *gocv.Mat) ([]Raw, error)
	Labels() []string
	Close() error
}

// Config holds configuration options for hand tracking.
type Config struct {
	// MaxHands is the maximum number of hands to detect.
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// ModelComplexity selects the landmark model (0, 1 or 2).
	ModelComplexity int

	// Script overrides the location of mediapipe_service.py.
	Script string
}

// DefaultConfig returns the settings used for following a single hand.
// The low tracking confidence and simplest model keep the tracker fast.
func DefaultConfig() Config {
	return Config{
		MaxHands:        1,
		MinConfidence:   0.5,
		MinTrackingConf: 0.3,
		ModelComplexity: 0,
	}
}
