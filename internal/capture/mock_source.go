package capture

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// MockSource plays back pre-built frames for testing and can inject
// open and read failures.
type MockSource struct {
	frames    []*gocv.Mat
	index     int
	loop      bool
	spec      Spec
	mu        sync.Mutex
	running   bool
	openFails int
	readFails int
	opens     int
	closes    int
}

// NewMockSource creates a MockSource over frames. With loop set, playback
// restarts at the first frame instead of failing.
func NewMockSource(frames []*gocv.Mat, loop bool) *MockSource {
	return &MockSource{
		frames: frames,
		loop:   loop,
		spec:   Spec{URL: "mock://frames"},
	}
}

func (s *MockSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.opens++
	if s.openFails > 0 {
		s.openFails--
		return fmt.Errorf("%w: mock open failure", ErrSourceUnavailable)
	}
	s.running = true
	return nil
}

func (s *MockSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	s.running = false
	return nil
}

func (s *MockSource) Read() (*gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil, ErrCameraNotOpen
	}

	if s.readFails > 0 {
		s.readFails--
		return nil, fmt.Errorf("%w: mock read failure", ErrSourceUnavailable)
	}

	if len(s.frames) == 0 {
		return nil, fmt.Errorf("%w: no frames available", ErrSourceUnavailable)
	}

	if s.index >= len(s.frames) {
		if !s.loop {
			return nil, fmt.Errorf("%w: no more frames", ErrSourceUnavailable)
		}
		s.index = 0
	}

	// Clone the frame so the original isn't modified
	frame := s.frames[s.index].Clone()
	s.index++

	return &frame, nil
}

func (s *MockSource) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *MockSource) Spec() Spec { return s.spec }

// FailOpens makes the next n Open calls fail.
func (s *MockSource) FailOpens(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openFails = n
}

// FailReads makes the next n Read calls on an open source fail.
func (s *MockSource) FailReads(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readFails = n
}

// Opens returns how many times Open was called.
func (s *MockSource) Opens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

// Closes returns how many times Close was called.
func (s *MockSource) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// Reset restarts playback from the beginning
func (s *MockSource) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = 0
}
