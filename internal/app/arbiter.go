// Package app holds the frame arbiter: the single loop that reads frames,
// runs hand tracking or object detection on them, steers the rover and
// renders the result.
package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"slices"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/camrover/internal/capture"
	"github.com/ayusman/camrover/internal/config"
	"github.com/ayusman/camrover/internal/control"
	"github.com/ayusman/camrover/internal/detector"
	"github.com/ayusman/camrover/internal/display"
	"github.com/ayusman/camrover/internal/log"
	"github.com/ayusman/camrover/internal/overlay"
)

// MaxRecent is the size of the recent detections buffer.
const MaxRecent = 3

// Hand tracker status words.
const (
	StatusNoHand = "NO HAND"
	StatusError  = "ERROR"
)

// bandAlpha is the opacity of the band behind the overlay texts.
const bandAlpha = 0.3

var (
	// ErrStopped is returned by Post once the loop has exited.
	ErrStopped = errors.New("arbiter stopped")
	// ErrBusy is returned by Post when the event queue is full.
	ErrBusy = errors.New("event queue full")
)

// Linker sends commands and parameters to the rover.
type Linker interface {
	SendCommand(ctx context.Context, cmd control.Command) error
	SetParam(ctx context.Context, p control.Param, value int) (int, error)
}

// Settings records operator settings.
type Settings interface {
	Set(key, value string) error
}

// Options are the collaborators of an Arbiter. Tracker, Detector, Link, Sink
// and Settings may be nil.
type Options struct {
	Config   config.Config
	Source   capture.Source
	Tracker  detector.HandTracker
	Detector detector.ObjectDetector
	Link     Linker
	Sink     display.Sink
	Settings Settings
	Clock    Clock

	// OpenSource builds the source for SwitchSource. Defaults to
	// capture.NewSource.
	OpenSource func(capture.Spec) capture.Source
}

// Flags are the mode switches.
type Flags struct {
	HandFollowing bool `json:"hand_following"`
	Detecting     bool `json:"detecting"`
	AutoControl   bool `json:"auto_control"`
}

// Mode is the branch a tick takes.
type Mode int

const (
	ModeIdle Mode = iota
	ModeHandFollowing
	ModeObjectDetection
)

func (m Mode) String() string {
	switch m {
	case ModeHandFollowing:
		return "hand_following"
	case ModeObjectDetection:
		return "object_detection"
	default:
		return "idle"
	}
}

// Mode derives the active mode from the flags.
func (f Flags) Mode() Mode {
	switch {
	case f.HandFollowing:
		return ModeHandFollowing
	case f.Detecting:
		return ModeObjectDetection
	default:
		return ModeIdle
	}
}

// Arbiter is the frame arbiter. All of its state is owned by the goroutine
// running Run; other goroutines interact through Post and Snapshot.
type Arbiter struct {
	cfg        config.Config
	source     capture.Source
	openSource func(capture.Spec) capture.Source
	tracker    detector.HandTracker
	detector   detector.ObjectDetector
	post       detector.PostProcess
	link       Linker
	sink       display.Sink
	settings   Settings
	clock      Clock
	display    image.Point

	flags      Flags
	target     string
	frameCount uint64
	recent     []detector.Detection
	handStatus string
	overlay    *overlay.Overlay
	params     map[control.Param]int
	lastCmd    control.Command
	lastCmdAt  time.Time
	lastErr    string
	quit       bool

	events chan Event
	done   chan struct{}
	snap   atomic.Pointer[Snapshot]
}

// New creates an Arbiter with detection on and the other modes off.
func New(opts Options) *Arbiter {
	cfg := opts.Config
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock()
	}
	openSource := opts.OpenSource
	if openSource == nil {
		openSource = capture.NewSource
	}
	sink := opts.Sink
	if sink == nil {
		sink = display.Discard{}
	}

	a := &Arbiter{
		cfg:        cfg,
		source:     opts.Source,
		openSource: openSource,
		tracker:    opts.Tracker,
		detector:   opts.Detector,
		link:       opts.Link,
		sink:       sink,
		settings:   opts.Settings,
		clock:      clock,
		display:    image.Pt(cfg.DisplayWidth, cfg.DisplayHeight),
		flags:      Flags{Detecting: true},
		target:     cfg.Target,
		overlay:    overlay.New(clock.Now(), cfg.FPSInterval, cfg.StatusInterval, cfg.DetectionInterval),
		params:     make(map[control.Param]int),
		events:     make(chan Event, 32),
		done:       make(chan struct{}),
	}
	for p, v := range control.ParamDefaults {
		a.params[p] = v
	}
	if opts.Detector != nil {
		a.post = detector.PostProcess{
			Labels:       opts.Detector.Labels(),
			Confidence:   float32(cfg.Confidence),
			NMSThreshold: float32(cfg.NMSThreshold),
			Input:        image.Pt(cfg.DetectWidth, cfg.DetectHeight),
			Display:      a.display,
		}
	}
	a.publish()
	return a
}

// Tick runs one iteration and returns the delay before the next one.
// A panic inside the iteration is logged and treated like a failed frame.
func (a *Arbiter) Tick(ctx context.Context) (next time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			a.lastErr = fmt.Sprintf("tick panic: %v", r)
			log.Error("tick panic", "panic", r, "retry", a.cfg.RetryBackoff)
			a.publish()
			next = a.cfg.RetryBackoff
		}
	}()

	frame, err := a.acquire()
	if err != nil {
		a.lastErr = err.Error()
		log.Warn("frame unavailable", "source", a.source.Spec().String(), "err", err, "retry", a.cfg.RetryBackoff)
		a.publish()
		return a.cfg.RetryBackoff
	}
	defer frame.Close()

	img := gocv.NewMat()
	defer img.Close()
	gocv.Resize(*frame, &img, a.display, 0, 0, gocv.InterpolationLinear)

	switch {
	case a.flags.HandFollowing && a.frameCount%2 == 0:
		a.followHand(ctx, &img)
	case a.flags.Detecting && a.frameCount%a.every() == 0:
		a.detect(ctx, &img)
	}

	a.frameCount++
	a.render(&img)
	a.publish()
	return a.cfg.TickInterval
}

func (a *Arbiter) every() uint64 {
	if a.cfg.ProcessEveryN < 1 {
		return 1
	}
	return uint64(a.cfg.ProcessEveryN)
}

// acquire opens the source if needed and reads one frame. A failed read
// closes the source so the next tick reopens it.
func (a *Arbiter) acquire() (*gocv.Mat, error) {
	if !a.source.IsOpen() {
		if err := a.source.Open(); err != nil {
			return nil, err
		}
		log.Info("source opened", "source", a.source.Spec().String())
	}

	frame, err := a.source.Read()
	if err != nil {
		a.source.Close()
		return nil, err
	}
	if frame.Empty() {
		frame.Close()
		a.source.Close()
		return nil, fmt.Errorf("%w: empty frame", capture.ErrSourceUnavailable)
	}
	a.lastErr = ""
	return frame, nil
}

func (a *Arbiter) followHand(ctx context.Context, img *gocv.Mat) {
	if a.tracker == nil {
		return
	}

	hands, err := a.tracker.Track(img)
	if err != nil {
		log.Warn("hand tracking failed", "err", err)
		a.lastErr = err.Error()
		a.handStatus = StatusError
		return
	}

	if len(hands) == 0 {
		a.send(ctx, control.Stop)
		a.handStatus = StatusNoHand
		return
	}

	hand := &hands[0]
	overlay.Hand(img, hand)

	cmd := control.Derive(hand.PalmPoint(a.display.X, a.display.Y), a.display.X, a.display.Y, true)
	a.send(ctx, cmd)
	a.handStatus = cmd.String()
}

func (a *Arbiter) detect(ctx context.Context, img *gocv.Mat) {
	if a.detector == nil {
		return
	}

	small := gocv.NewMat()
	defer small.Close()
	gocv.Resize(*img, &small, a.post.Input, 0, 0, gocv.InterpolationLinear)

	raws, err := a.detector.Detect(&small)
	if err != nil {
		log.Warn("object detection failed", "err", err)
		a.lastErr = err.Error()
		return
	}

	dets := a.post.Run(raws)
	overlay.Detections(img, dets, a.target)

	a.recent = slices.Clone(dets[:min(MaxRecent, len(dets))])

	if !a.flags.AutoControl {
		return
	}
	cmd := control.Stop
	for _, d := range dets {
		if d.Label == a.target {
			cmd = control.Steer(d.Center().X, a.display.X)
			break
		}
	}
	a.send(ctx, cmd)
}

func (a *Arbiter) render(img *gocv.Mat) {
	overlay.Band(img, bandAlpha)
	if a.flags.HandFollowing {
		overlay.Status(img, a.handStatus)
	}
	overlay.Text(img, a.overlay.Texts())

	if err := a.sink.Show(img); err != nil {
		log.Warn("display failed", "err", err)
	}
	if c, ok := a.sink.(display.Closable); ok && c.Closed() && !a.quit {
		log.Info("display closed")
		a.quit = true
	}

	a.overlay.Update(a.clock.Now(), a.overlayState())
}

func (a *Arbiter) overlayState() overlay.State {
	recent := make([]string, len(a.recent))
	for i, d := range a.recent {
		recent[i] = d.Summary()
	}
	return overlay.State{
		HandFollowing: a.flags.HandFollowing,
		AutoControl:   a.flags.AutoControl,
		Detecting:     a.flags.Detecting,
		HandStatus:    a.handStatus,
		Recent:        recent,
	}
}

// send issues one command. Failures are logged by the link and not retried.
func (a *Arbiter) send(ctx context.Context, cmd control.Command) {
	a.lastCmd = cmd
	a.lastCmdAt = a.clock.Now()
	if a.link == nil {
		return
	}
	if err := a.link.SendCommand(ctx, cmd); err != nil {
		a.lastErr = err.Error()
	}
}
