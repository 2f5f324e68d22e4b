package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gocv.io/x/gocv"

	"github.com/ayusman/camrover/internal/capture"
	"github.com/ayusman/camrover/internal/config"
	"github.com/ayusman/camrover/internal/control"
	"github.com/ayusman/camrover/internal/detector"
	"github.com/ayusman/camrover/internal/link"
)

var labels = []string{"person", "dog", "cup", "chair", "bottle"}

type paramCall struct {
	Param control.Param
	Value int
}

// fakeLink records what the arbiter sends.
type fakeLink struct {
	mu     sync.Mutex
	cmds   []control.Command
	params []paramCall
	err    error
}

func (l *fakeLink) SendCommand(ctx context.Context, cmd control.Command) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cmds = append(l.cmds, cmd)
	return l.err
}

func (l *fakeLink) SetParam(ctx context.Context, p control.Param, value int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v := p.Clamp(value)
	l.params = append(l.params, paramCall{p, v})
	return v, l.err
}

func (l *fakeLink) commands() []control.Command {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]control.Command(nil), l.cmds...)
}

func (l *fakeLink) last() control.Command {
	cmds := l.commands()
	if len(cmds) == 0 {
		return control.None
	}
	return cmds[len(cmds)-1]
}

type memSettings map[string]string

func (m memSettings) Set(k, v string) error {
	m[k] = v
	return nil
}

type fixture struct {
	arb      *Arbiter
	source   *capture.MockSource
	tracker  *detector.MockHandTracker
	detector *detector.MockObjectDetector
	link     *fakeLink
	clock    *FakeClock
	settings memSettings
}

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { frame.Close() })

	f := &fixture{
		source:   capture.NewMockSource([]*gocv.Mat{&frame}, true),
		tracker:  detector.NewMockHandTracker(),
		detector: detector.NewMockObjectDetector(labels),
		link:     &fakeLink{},
		clock:    NewFakeClock(t0),
		settings: memSettings{},
	}
	f.arb = New(Options{
		Config:   config.Default(),
		Source:   f.source,
		Tracker:  f.tracker,
		Detector: f.detector,
		Link:     f.link,
		Settings: f.settings,
		Clock:    f.clock,
	})
	return f
}

// raw places a candidate for class at normalized centre (cx, cy).
func raw(class int, score, cx, cy float32) detector.Raw {
	return detector.RawFor(len(labels), class, score, cx, cy, 0.1, 0.1)
}

func TestNew_Defaults(t *testing.T) {
	f := newFixture(t)
	snap := f.arb.Snapshot()

	want := Flags{Detecting: true}
	if diff := cmp.Diff(want, snap.Flags); diff != "" {
		t.Errorf("initial flags mismatch (-want +got):\n%s", diff)
	}
	if snap.Mode != "object_detection" || snap.Target != "person" {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Params["speed"] != 255 {
		t.Errorf("speed param = %d, want 255", snap.Params["speed"])
	}
}

func TestTick_HandFollowingCommandGrid(t *testing.T) {
	tests := []struct {
		name string
		x, y float64
		want control.Command
	}{
		{name: "left", x: 0.1, y: 0.3, want: control.Left},
		{name: "centre", x: 0.5, y: 0.3, want: control.Forward},
		{name: "right", x: 0.9, y: 0.3, want: control.Right},
		{name: "low left is backward", x: 0.1, y: 0.8, want: control.Backward},
		{name: "low centre is backward", x: 0.5, y: 0.61, want: control.Backward},
		{name: "low right is backward", x: 0.9, y: 0.95, want: control.Backward},
		{name: "just inside margin", x: 0.35, y: 0.5, want: control.Forward},
		{name: "just outside margin", x: 0.32, y: 0.5, want: control.Left},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.arb.apply(context.Background(), ToggleHandFollowing())
			f.tracker.SetHands([]detector.HandLandmarks{detector.HandAt(tt.x, tt.y)})

			if d := f.arb.Tick(context.Background()); d != 30*time.Millisecond {
				t.Errorf("Tick() = %v, want 30ms", d)
			}
			if got := f.link.last(); got != tt.want {
				t.Errorf("command = %v, want %v", got, tt.want)
			}
			if got := f.arb.Snapshot().HandStatus; got != tt.want.String() {
				t.Errorf("hand status = %q, want %q", got, tt.want.String())
			}
		})
	}
}

func TestTick_HandFollowingEvenFramesOnly(t *testing.T) {
	f := newFixture(t)
	f.arb.apply(context.Background(), ToggleHandFollowing())
	f.tracker.SetHands([]detector.HandLandmarks{detector.HandAt(0.5, 0.3)})

	for i := 0; i < 4; i++ {
		f.arb.Tick(context.Background())
	}

	if got := f.tracker.Calls(); got != 2 {
		t.Errorf("tracker calls = %d, want 2", got)
	}
	if got := len(f.link.commands()); got != 2 {
		t.Errorf("commands sent = %d, want one per tracked frame", got)
	}
	if f.detector.Calls() != 0 {
		t.Error("detector must not run while hand following")
	}
	if got := f.arb.Snapshot().FrameCount; got != 4 {
		t.Errorf("frame count = %d, want 4", got)
	}
}

func TestTick_NoHandStops(t *testing.T) {
	f := newFixture(t)
	f.arb.apply(context.Background(), ToggleHandFollowing())

	f.arb.Tick(context.Background())

	if got := f.link.last(); got != control.Stop {
		t.Errorf("command = %v, want STOP", got)
	}
	if got := f.arb.Snapshot().HandStatus; got != StatusNoHand {
		t.Errorf("hand status = %q, want %q", got, StatusNoHand)
	}
}

func TestTick_TrackerErrorSendsNothing(t *testing.T) {
	f := newFixture(t)
	f.arb.apply(context.Background(), ToggleHandFollowing())
	before := len(f.link.commands())
	f.tracker.SetError(detector.ErrInference)

	if d := f.arb.Tick(context.Background()); d != 30*time.Millisecond {
		t.Errorf("Tick() = %v, want 30ms", d)
	}

	if got := len(f.link.commands()); got != before {
		t.Errorf("tracker error sent %d commands", got-before)
	}
	snap := f.arb.Snapshot()
	if snap.HandStatus != StatusError || snap.LastError == "" {
		t.Errorf("snapshot = %+v, want ERROR status and last error", snap)
	}
}

func TestTick_DetectionBufferOverwrite(t *testing.T) {
	f := newFixture(t)
	f.detector.SetRaws([]detector.Raw{
		raw(4, 0.60, 0.1, 0.1),
		raw(1, 0.95, 0.3, 0.3),
		raw(2, 0.70, 0.5, 0.5),
		raw(3, 0.99, 0.7, 0.7),
		raw(0, 0.80, 0.9, 0.9),
	})

	f.arb.Tick(context.Background())

	var got []string
	for _, d := range f.arb.Snapshot().Detections {
		got = append(got, d.Label)
	}
	want := []string{"bottle", "dog", "cup"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("buffer mismatch (-want +got):\n%s", diff)
	}

	// Odd frame: detector skipped, buffer kept.
	f.detector.SetRaws(nil)
	f.arb.Tick(context.Background())
	if n := len(f.arb.Snapshot().Detections); n != 3 {
		t.Errorf("buffer after skipped frame has %d entries, want 3", n)
	}

	// Even frame with nothing detected: buffer emptied.
	f.arb.Tick(context.Background())
	if n := len(f.arb.Snapshot().Detections); n != 0 {
		t.Errorf("buffer after empty detection has %d entries, want 0", n)
	}
	if f.detector.Calls() != 2 {
		t.Errorf("detector calls = %d, want 2", f.detector.Calls())
	}
}

func TestTick_DetectorErrorKeepsBuffer(t *testing.T) {
	f := newFixture(t)
	f.detector.SetRaws([]detector.Raw{raw(0, 0.9, 0.5, 0.5)})
	f.arb.Tick(context.Background())
	f.arb.Tick(context.Background())

	f.detector.SetError(detector.ErrInference)
	if d := f.arb.Tick(context.Background()); d != 30*time.Millisecond {
		t.Errorf("Tick() = %v, want 30ms", d)
	}

	if n := len(f.arb.Snapshot().Detections); n != 1 {
		t.Errorf("buffer has %d entries after detector error, want 1", n)
	}
}

func TestTick_AutoControl(t *testing.T) {
	tests := []struct {
		name string
		raws []detector.Raw
		want control.Command
	}{
		{name: "target on the right", raws: []detector.Raw{raw(1, 0.9, 0.1, 0.5), raw(0, 0.8, 0.9, 0.5)}, want: control.Right},
		{name: "target on the left", raws: []detector.Raw{raw(0, 0.8, 0.1, 0.5)}, want: control.Left},
		{name: "target centred", raws: []detector.Raw{raw(0, 0.8, 0.5, 0.5)}, want: control.Forward},
		{name: "first target wins", raws: []detector.Raw{raw(0, 0.6, 0.9, 0.2), raw(0, 0.9, 0.1, 0.8)}, want: control.Right},
		{name: "no target", raws: []detector.Raw{raw(1, 0.9, 0.1, 0.5)}, want: control.Stop},
		{name: "nothing", want: control.Stop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.arb.apply(context.Background(), ToggleAutoControl())
			f.detector.SetRaws(tt.raws)

			f.arb.Tick(context.Background())

			if got := f.link.last(); got != tt.want {
				t.Errorf("command = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTick_DetectionWithoutAutoControlSendsNothing(t *testing.T) {
	f := newFixture(t)
	f.detector.SetRaws([]detector.Raw{raw(0, 0.9, 0.9, 0.5)})

	f.arb.Tick(context.Background())

	if cmds := f.link.commands(); len(cmds) != 0 {
		t.Errorf("commands = %v, want none", cmds)
	}
}

func TestTick_IdleDoesNothing(t *testing.T) {
	f := newFixture(t)
	f.arb.apply(context.Background(), ToggleDetection())

	f.arb.Tick(context.Background())
	f.arb.Tick(context.Background())

	if f.detector.Calls() != 0 || f.tracker.Calls() != 0 {
		t.Error("no model should run when every mode is off")
	}
	if got := f.arb.Snapshot().Mode; got != "idle" {
		t.Errorf("mode = %q, want idle", got)
	}
}

func TestTick_FixedBackoff(t *testing.T) {
	f := newFixture(t)
	f.source.FailOpens(3)

	for i := 0; i < 3; i++ {
		if d := f.arb.Tick(context.Background()); d != 2000*time.Millisecond {
			t.Fatalf("Tick() %d = %v, want 2s", i, d)
		}
		if f.arb.Snapshot().LastError == "" {
			t.Errorf("Tick() %d should record the source error", i)
		}
	}

	if d := f.arb.Tick(context.Background()); d != 30*time.Millisecond {
		t.Errorf("Tick() after recovery = %v, want 30ms", d)
	}
	if f.source.Opens() != 4 {
		t.Errorf("Opens() = %d, want 4", f.source.Opens())
	}
	snap := f.arb.Snapshot()
	if snap.FrameCount != 1 || !snap.SourceOpen || snap.LastError != "" {
		t.Errorf("snapshot after recovery = %+v", snap)
	}
}

func TestTick_ReadFailureReopens(t *testing.T) {
	f := newFixture(t)
	f.arb.Tick(context.Background())
	f.source.FailReads(1)

	if d := f.arb.Tick(context.Background()); d != 2*time.Second {
		t.Errorf("Tick() on read failure = %v, want 2s", d)
	}
	if f.source.IsOpen() {
		t.Error("source should be closed after a read failure")
	}

	if d := f.arb.Tick(context.Background()); d != 30*time.Millisecond {
		t.Errorf("Tick() after reopen = %v, want 30ms", d)
	}
	if f.source.Opens() != 2 {
		t.Errorf("Opens() = %d, want 2", f.source.Opens())
	}
}

func TestTick_LinkTimeoutKeepsCadence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	f := newFixture(t)
	f.arb.link = link.New(srv.URL+"/control", 50*time.Millisecond)
	f.arb.apply(context.Background(), ToggleHandFollowing())
	f.tracker.SetHands([]detector.HandLandmarks{detector.HandAt(0.5, 0.3)})

	start := time.Now()
	d := f.arb.Tick(context.Background())

	if d != 30*time.Millisecond {
		t.Errorf("Tick() = %v, want 30ms", d)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("tick took %v, link timeout not applied", elapsed)
	}
	if f.arb.Snapshot().LastError == "" {
		t.Error("link timeout should be recorded")
	}
}

func TestTick_StatusThrottle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.clock.Advance(time.Second)
	changes := 0
	last := f.arb.Snapshot().Overlay.Status
	for i := 0; i < 10; i++ {
		f.arb.apply(ctx, ToggleHandFollowing())
		f.arb.Tick(ctx)
		if s := f.arb.Snapshot().Overlay.Status; s != last {
			changes++
			last = s
		}
		f.clock.Advance(50 * time.Millisecond)
	}

	if changes != 1 {
		t.Errorf("status text changed %d times in 0.5s, want 1", changes)
	}
}

func TestTick_DetectionsText(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.detector.SetRaws([]detector.Raw{raw(0, 0.91, 0.2, 0.5), raw(1, 0.55, 0.8, 0.5)})

	f.arb.Tick(ctx)
	f.clock.Advance(2 * time.Second)
	f.arb.Tick(ctx)

	if got := f.arb.Snapshot().Overlay.Detections; got != "Detected: person: 0.91, dog: 0.55" {
		t.Errorf("detections text = %q", got)
	}
}

// panickyDetector panics on its first Detect call.
type panickyDetector struct {
	*detector.MockObjectDetector
	panicked bool
}

func (d *panickyDetector) Detect(frame *gocv.Mat) ([]detector.Raw, error) {
	if !d.panicked {
		d.panicked = true
		panic("model exploded")
	}
	return d.MockObjectDetector.Detect(frame)
}

func TestTick_RecoversFromPanic(t *testing.T) {
	f := newFixture(t)
	det := &panickyDetector{MockObjectDetector: f.detector}
	f.arb.detector = det

	if d := f.arb.Tick(context.Background()); d != 2000*time.Millisecond {
		t.Fatalf("Tick() after panic = %v, want 2s", d)
	}
	if got := f.arb.Snapshot().LastError; got != "tick panic: model exploded" {
		t.Errorf("LastError = %q", got)
	}

	if d := f.arb.Tick(context.Background()); d != 30*time.Millisecond {
		t.Errorf("Tick() after recovery = %v, want 30ms", d)
	}
	snap := f.arb.Snapshot()
	if snap.FrameCount != 1 || snap.LastError != "" {
		t.Errorf("snapshot after recovery = %+v", snap)
	}
}
