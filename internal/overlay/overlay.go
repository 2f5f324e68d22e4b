package overlay

import (
	"fmt"
	"strings"
	"time"
)

// Default throttle intervals.
const (
	FPSInterval        = 500 * time.Millisecond
	StatusInterval     = time.Second
	DetectionsInterval = 2 * time.Second
)

// Texts are the three lines drawn over the frame.
type Texts struct {
	FPS        string `json:"fps"`
	Status     string `json:"status"`
	Detections string `json:"detections"`
}

// State is what the overlay texts are derived from.
type State struct {
	HandFollowing bool
	AutoControl   bool
	Detecting     bool
	// HandStatus is the last status from the hand tracker ("LEFT", "NO HAND").
	HandStatus string
	// Recent holds the formatted entries of the recent detections buffer.
	Recent []string
}

// StatusText returns the status line for s.
func StatusText(s State) string {
	switch {
	case s.HandFollowing:
		return "Mode: Hand Following - " + s.HandStatus
	case s.AutoControl:
		return "Mode: Auto Control"
	default:
		return "Mode: Manual Control"
	}
}

// DetectionsText returns the detections line for s.
func DetectionsText(s State) string {
	if !s.Detecting {
		return ""
	}
	if len(s.Recent) == 0 {
		return "Detected: none"
	}
	return "Detected: " + strings.Join(s.Recent, ", ")
}

// FPSText formats a frame rate.
func FPSText(fps float64) string {
	return fmt.Sprintf("FPS: %.1f", fps)
}

// Overlay holds the current texts and their throttles. It is not safe for
// concurrent use; the arbiter loop owns it.
type Overlay struct {
	fps        *Throttle
	status     *Throttle
	detections *Throttle
	texts      Texts
}

// New creates an Overlay whose throttle windows start at now.
func New(now time.Time, fpsEvery, statusEvery, detectionsEvery time.Duration) *Overlay {
	return &Overlay{
		fps:        NewThrottle(fpsEvery, now),
		status:     NewThrottle(statusEvery, now),
		detections: NewThrottle(detectionsEvery, now),
	}
}

// Texts returns the current texts.
func (o *Overlay) Texts() Texts {
	return o.texts
}

// Update refreshes whichever texts are due and different after a rendered
// frame. It reports whether any text changed.
//
// The frame rate is the reciprocal of the time since the previous FPS
// update, not a count of frames in the window.
func (o *Overlay) Update(now time.Time, s State) bool {
	changed := false

	if elapsed := o.fps.Since(now); o.fps.Ready(now) && elapsed > 0 {
		text := FPSText(1 / elapsed.Seconds())
		if text != o.texts.FPS {
			o.texts.FPS = text
			changed = true
		}
	}

	if o.status.Ready(now) {
		if text := StatusText(s); text != o.texts.Status {
			o.texts.Status = text
			changed = true
		}
	}

	if o.detections.Ready(now) {
		if text := DetectionsText(s); text != o.texts.Detections {
			o.texts.Detections = text
			changed = true
		}
	}

	return changed
}
