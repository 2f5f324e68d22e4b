package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gocv.io/x/gocv"

	"github.com/ayusman/camrover/internal/capture"
	"github.com/ayusman/camrover/internal/control"
	"github.com/ayusman/camrover/internal/detector"
)

func TestApply_HandFollowingTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.arb.apply(ctx, ToggleAutoControl())

	f.arb.apply(ctx, ToggleHandFollowing())
	f.arb.publish()

	want := Flags{HandFollowing: true}
	if diff := cmp.Diff(want, f.arb.Snapshot().Flags); diff != "" {
		t.Errorf("flags after enabling hand following (-want +got):\n%s", diff)
	}
	if got := f.arb.Snapshot().Mode; got != "hand_following" {
		t.Errorf("mode = %q", got)
	}

	before := len(f.link.commands())
	f.arb.apply(ctx, ToggleHandFollowing())
	if f.arb.flags.HandFollowing {
		t.Error("hand following should be off")
	}
	cmds := f.link.commands()
	if len(cmds) != before+1 || cmds[len(cmds)-1] != control.Stop {
		t.Errorf("disabling hand following should send one STOP, got %v", cmds[before:])
	}
}

func TestApply_ToggleAutoControlOffStops(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.arb.apply(ctx, ToggleAutoControl())
	if len(f.link.commands()) != 0 {
		t.Error("enabling auto control should not send a command")
	}
	f.arb.apply(ctx, ToggleAutoControl())
	if f.link.last() != control.Stop {
		t.Errorf("disabling auto control should stop the rover, got %v", f.link.last())
	}
}

func TestApply_ManualCommands(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.arb.apply(ctx, Manual(control.Left))
	f.arb.apply(ctx, Manual(control.None))
	f.arb.apply(ctx, ToggleAutoControl())
	f.arb.apply(ctx, Manual(control.Forward))

	if diff := cmp.Diff([]control.Command{control.Left}, f.link.commands()); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
}

func TestApply_Params(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.arb.apply(ctx, SetParam(control.Quality, 5))
	f.arb.apply(ctx, SetParam(control.Speed, 180))
	f.arb.apply(ctx, ToggleFlash())
	f.arb.apply(ctx, ToggleFlash())
	f.arb.publish()

	want := []paramCall{
		{control.Quality, 10},
		{control.Speed, 180},
		{control.Flash, 255},
		{control.Flash, 0},
	}
	if diff := cmp.Diff(want, f.link.params); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}

	snap := f.arb.Snapshot()
	if snap.Params["quality"] != 10 || snap.Params["speed"] != 180 || snap.Params["flash"] != 0 {
		t.Errorf("snapshot params = %v", snap.Params)
	}
	if f.settings["speed"] != "180" || f.settings["flash"] != "0" {
		t.Errorf("settings = %v", f.settings)
	}
}

func TestApply_ParamFailureKeepsValue(t *testing.T) {
	f := newFixture(t)
	f.link.err = errors.New("unreachable")

	f.arb.apply(context.Background(), SetParam(control.Speed, 100))

	if f.arb.params[control.Speed] != 255 {
		t.Errorf("speed = %d, want the previous value", f.arb.params[control.Speed])
	}
	if _, ok := f.settings["speed"]; ok {
		t.Error("failed update should not be saved")
	}
}

func TestApply_SetTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.arb.apply(ctx, SetTarget("dog"))
	f.arb.apply(ctx, SetTarget("unicorn"))
	f.arb.publish()

	if got := f.arb.Snapshot().Target; got != "dog" {
		t.Errorf("target = %q, want dog", got)
	}
	if f.settings["target"] != "dog" {
		t.Errorf("settings = %v", f.settings)
	}
}

func TestApply_SwitchSourceAndReconnect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()
	next := capture.NewMockSource([]*gocv.Mat{&frame}, true)

	var opened capture.Spec
	f.arb.openSource = func(spec capture.Spec) capture.Source {
		opened = spec
		return next
	}

	f.arb.Tick(ctx)
	f.arb.apply(ctx, Reconnect())
	if f.source.IsOpen() {
		t.Error("reconnect should close the source")
	}

	spec := capture.Spec{URL: "http://192.168.4.1:81/stream"}
	f.arb.apply(ctx, SwitchSource(spec))
	if opened != spec {
		t.Errorf("opened %+v, want %+v", opened, spec)
	}
	if d := f.arb.Tick(ctx); d != 30*time.Millisecond {
		t.Errorf("Tick() on new source = %v", d)
	}
	if next.Opens() != 1 {
		t.Errorf("new source Opens() = %d, want 1", next.Opens())
	}
	if f.settings["source"] != spec.String() {
		t.Errorf("settings = %v", f.settings)
	}
}

func TestRun_QuitShutsDown(t *testing.T) {
	f := newFixture(t)
	f.arb.cfg.TickInterval = time.Millisecond

	errCh := make(chan error, 1)
	go func() { errCh <- f.arb.Run(context.Background()) }()

	if err := f.arb.Post(ToggleHandFollowing()); err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if err := f.arb.Post(Quit()); err != nil {
		t.Fatalf("Post() error = %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after Quit")
	}

	<-f.arb.Done()
	if f.link.last() != control.Stop {
		t.Errorf("last command = %v, want STOP", f.link.last())
	}
	if f.source.IsOpen() || f.source.Closes() == 0 {
		t.Error("source should be released")
	}
	if !f.tracker.Closed() || !f.detector.Closed() {
		t.Error("tracker and detector should be closed")
	}

	snap := f.arb.Snapshot()
	if !snap.Stopped || snap.Flags != (Flags{}) {
		t.Errorf("final snapshot = %+v", snap)
	}
	if err := f.arb.Post(ToggleDetection()); !errors.Is(err, ErrStopped) {
		t.Errorf("Post() after stop error = %v, want ErrStopped", err)
	}
}

// closingSink reports itself closed after a number of frames, like a window
// the user closes.
type closingSink struct {
	shown   int
	closeAt int
	closes  int
}

func (s *closingSink) Show(*gocv.Mat) error {
	s.shown++
	return nil
}

func (s *closingSink) Close() error {
	s.closes++
	return nil
}

func (s *closingSink) Closed() bool { return s.shown >= s.closeAt }

func TestRun_DisplayClosedShutsDown(t *testing.T) {
	f := newFixture(t)
	f.arb.cfg.TickInterval = time.Millisecond
	sink := &closingSink{closeAt: 3}
	f.arb.sink = sink
	f.tracker.SetHands([]detector.HandLandmarks{detector.HandAt(0.1, 0.3)})

	if err := f.arb.Post(ToggleHandFollowing()); err != nil {
		t.Fatalf("Post() error = %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- f.arb.Run(context.Background()) }()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after the display was closed")
	}

	if sink.shown != 3 {
		t.Errorf("frames shown = %d, want the loop to stop at the close", sink.shown)
	}
	if sink.closes != 1 {
		t.Errorf("sink closed %d times, want 1", sink.closes)
	}
	if f.link.last() != control.Stop {
		t.Errorf("last command = %v, want STOP", f.link.last())
	}
	if f.source.IsOpen() || !f.tracker.Closed() {
		t.Error("source and tracker should be released")
	}
	if !f.arb.Snapshot().Stopped {
		t.Error("final snapshot should report stopped")
	}
}

func TestRun_ContextCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- f.arb.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for f.arb.Snapshot().FrameCount == 0 {
		select {
		case <-deadline:
			t.Fatal("loop never ticked")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()

	select {
	case <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	if f.link.last() != control.Stop {
		t.Errorf("shutdown should send STOP, got %v", f.link.last())
	}
}

func TestShutdown_DiscardsQueuedEvents(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		if err := f.arb.Post(ToggleDetection()); err != nil {
			t.Fatalf("Post() error = %v", err)
		}
	}
	f.arb.shutdown()

	if n := len(f.arb.events); n != 0 {
		t.Errorf("%d events left queued after shutdown", n)
	}
	if err := f.arb.Post(Manual(control.Forward)); !errors.Is(err, ErrStopped) {
		t.Errorf("Post() after shutdown error = %v, want ErrStopped", err)
	}
	if f.arb.Snapshot().Flags != (Flags{}) {
		t.Errorf("queued toggles must not be applied, flags = %+v", f.arb.Snapshot().Flags)
	}
}

func TestPost_QueueFull(t *testing.T) {
	f := newFixture(t)

	var err error
	for i := 0; i < cap(f.arb.events)+1; i++ {
		err = f.arb.Post(ToggleDetection())
	}
	if !errors.Is(err, ErrBusy) {
		t.Errorf("Post() on full queue error = %v, want ErrBusy", err)
	}
}

func TestKeyEvent(t *testing.T) {
	tests := []struct {
		key  int
		want Event
		ok   bool
	}{
		{key: 'w', want: Manual(control.Forward), ok: true},
		{key: 'a', want: Manual(control.Left), ok: true},
		{key: 'd', want: Manual(control.Right), ok: true},
		{key: 'S', want: Manual(control.Backward), ok: true},
		{key: ' ', want: Manual(control.Stop), ok: true},
		{key: 'h', want: ToggleHandFollowing(), ok: true},
		{key: 'o', want: ToggleDetection(), ok: true},
		{key: 'f', want: ToggleAutoControl(), ok: true},
		{key: 'l', want: ToggleFlash(), ok: true},
		{key: 'r', want: Reconnect(), ok: true},
		{key: 'q', want: Quit(), ok: true},
		{key: 27, want: Quit(), ok: true},
		{key: 'x', ok: false},
		{key: -1, ok: false},
	}

	for _, tt := range tests {
		got, ok := KeyEvent(tt.key)
		if ok != tt.ok {
			t.Errorf("KeyEvent(%d) ok = %v, want %v", tt.key, ok, tt.ok)
			continue
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("KeyEvent(%d) mismatch (-want +got):\n%s", tt.key, diff)
		}
	}
}

func TestFakeClock(t *testing.T) {
	c := NewFakeClock(t0)
	c.Advance(1500 * time.Millisecond)
	if got := c.Now(); !got.Equal(t0.Add(1500 * time.Millisecond)) {
		t.Errorf("Now() = %v", got)
	}
	if SystemClock().Now().IsZero() {
		t.Error("SystemClock should report the current time")
	}
}
