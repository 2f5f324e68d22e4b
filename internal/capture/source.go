// Package capture provides video frame acquisition from a local camera or a
// network stream using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"gocv.io/x/gocv"
)

var (
	// ErrSourceUnavailable is returned when a source cannot be opened or read.
	ErrSourceUnavailable = errors.New("video source unavailable")

	// ErrCameraNotOpen is returned when trying to read from a source that is not open.
	ErrCameraNotOpen = fmt.Errorf("%w: source is not open", ErrSourceUnavailable)
)

// Spec identifies a video source: a capture device index or a stream URL.
type Spec struct {
	Device int    `json:"device"`
	URL    string `json:"url,omitempty"`
}

// ParseSpec reads "0", "1", ... as device indices and anything else as a URL.
func ParseSpec(s string) (Spec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Spec{}, errors.New("empty source")
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return Spec{}, fmt.Errorf("negative device index %d", n)
		}
		return Spec{Device: n}, nil
	}
	return Spec{URL: s}, nil
}

// IsStream reports whether the spec names a network stream.
func (s Spec) IsStream() bool {
	return s.URL != ""
}

// String returns the form accepted by ParseSpec.
func (s Spec) String() string {
	if s.IsStream() {
		return s.URL
	}
	return strconv.Itoa(s.Device)
}

// Source defines the interface for frame sources.
type Source interface {
	Open() error
	Close() error
	// Read returns the next frame. The caller owns the returned Mat.
	Read() (*gocv.Mat, error)
	IsOpen() bool
	Spec() Spec
}

// videoSource reads frames through gocv.VideoCapture.
type videoSource struct {
	spec    Spec
	capture *gocv.VideoCapture
	mu      sync.Mutex
	running bool
}

// NewSource creates a Source for spec. Nothing is opened until Open.
func NewSource(spec Spec) Source {
	return &videoSource{spec: spec}
}

// Open opens the device or stream and reads one frame so a dead stream
// is reported here rather than on the first Read.
func (s *videoSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	var device interface{} = s.spec.Device
	if s.spec.IsStream() {
		device = s.spec.URL
	}

	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrSourceUnavailable, s.spec, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("%w: could not open %s", ErrSourceUnavailable, s.spec)
	}

	first := gocv.NewMat()
	defer first.Close()
	if ok := capture.Read(&first); !ok || first.Empty() {
		capture.Close()
		return fmt.Errorf("%w: could not read frame from %s", ErrSourceUnavailable, s.spec)
	}

	s.capture = capture
	s.running = true

	return nil
}

// Close releases the capture. Closing a closed source is a no-op.
func (s *videoSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.capture == nil {
		s.running = false
		return nil
	}

	err := s.capture.Close()
	s.capture = nil
	s.running = false

	return err
}

// Read reads a single frame from the source.
// The caller is responsible for closing the returned Mat.
func (s *videoSource) Read() (*gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := s.capture.Read(&mat); !ok {
		mat.Close()
		return nil, fmt.Errorf("%w: failed to read frame from %s", ErrSourceUnavailable, s.spec)
	}

	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("%w: captured frame is empty", ErrSourceUnavailable)
	}

	return &mat, nil
}

// IsOpen returns true if the source is currently open.
func (s *videoSource) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// Spec returns the source identity.
func (s *videoSource) Spec() Spec {
	return s.spec
}
