// Package display delivers rendered frames to the desktop window and to the
// HTTP stream.
package display

import (
	"errors"

	"gocv.io/x/gocv"
)

// Sink receives every rendered frame. Show must not retain frame after it
// returns.
type Sink interface {
	Show(frame *gocv.Mat) error
	Close() error
}

// Closable is implemented by sinks the user can close, such as a window.
type Closable interface {
	Closed() bool
}

// Multi fans a frame out to several sinks.
type Multi []Sink

// Closed reports whether any closable sink in m was closed by the user.
func (m Multi) Closed() bool {
	for _, s := range m {
		if c, ok := s.(Closable); ok && c.Closed() {
			return true
		}
	}
	return false
}

// Show passes frame to every sink and joins their errors.
func (m Multi) Show(frame *gocv.Mat) error {
	var errs []error
	for _, s := range m {
		if err := s.Show(frame); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every frame.
type Discard struct{}

func (Discard) Show(*gocv.Mat) error { return nil }
func (Discard) Close() error         { return nil }
