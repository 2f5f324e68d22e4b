package app

import (
	"context"
	"slices"
	"strconv"
	"time"

	"github.com/ayusman/camrover/internal/control"
	"github.com/ayusman/camrover/internal/log"
)

// Run ticks until ctx is cancelled, a Quit event arrives or the display is
// closed, applying posted events between ticks, then shuts down.
func (a *Arbiter) Run(ctx context.Context) error {
	defer a.shutdown()

	log.Info("arbiter started", "source", a.source.Spec().String(), "target", a.target)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-a.events:
			a.apply(ctx, ev)
			a.publish()
			if a.quit {
				return nil
			}
		case <-timer.C:
			timer.Reset(a.Tick(ctx))
			if a.quit {
				return nil
			}
		}
	}
}

// Post queues ev for the loop. It never blocks.
//
// A nil error means ev was queued, not applied: events still queued when the
// loop stops are discarded by the shutdown. Post reports ErrStopped when the
// loop stopped before or while ev was being queued.
func (a *Arbiter) Post(ev Event) error {
	select {
	case <-a.done:
		return ErrStopped
	default:
	}

	select {
	case a.events <- ev:
	default:
		log.Warn("event dropped", "event", ev.Kind.String())
		return ErrBusy
	}

	select {
	case <-a.done:
		return ErrStopped
	default:
		return nil
	}
}

// Done is closed once the loop has shut down.
func (a *Arbiter) Done() <-chan struct{} {
	return a.done
}

// Labels returns the class names the detector knows.
func (a *Arbiter) Labels() []string {
	if a.detector == nil {
		return nil
	}
	return a.detector.Labels()
}

func (a *Arbiter) apply(ctx context.Context, ev Event) {
	log.Debug("event", "kind", ev.Kind.String())

	switch ev.Kind {
	case EventToggleHandFollowing:
		if a.flags.HandFollowing {
			a.flags.HandFollowing = false
			a.handStatus = ""
			a.send(ctx, control.Stop)
		} else {
			a.flags = Flags{HandFollowing: true}
		}
		log.Info("hand following", "enabled", a.flags.HandFollowing)

	case EventToggleDetection:
		a.flags.Detecting = !a.flags.Detecting
		log.Info("object detection", "enabled", a.flags.Detecting)

	case EventToggleAutoControl:
		a.flags.AutoControl = !a.flags.AutoControl
		if !a.flags.AutoControl {
			a.send(ctx, control.Stop)
		}
		log.Info("auto control", "enabled", a.flags.AutoControl)

	case EventSetTarget:
		if labels := a.Labels(); labels != nil && !slices.Contains(labels, ev.Label) {
			log.Warn("unknown target label", "label", ev.Label)
			return
		}
		a.target = ev.Label
		a.remember("target", ev.Label)

	case EventManual:
		if a.flags.AutoControl {
			log.Debug("manual command ignored during auto control", "command", ev.Command.String())
			return
		}
		if !ev.Command.Valid() {
			return
		}
		a.send(ctx, ev.Command)

	case EventSetParam:
		a.setParam(ctx, ev.Param, ev.Value)

	case EventToggleFlash:
		value := 255
		if a.params[control.Flash] > 0 {
			value = 0
		}
		a.setParam(ctx, control.Flash, value)

	case EventSwitchSource:
		a.source.Close()
		a.source = a.openSource(ev.Source)
		a.remember("source", ev.Source.String())
		log.Info("source switched", "source", ev.Source.String())

	case EventReconnect:
		a.source.Close()
		log.Info("source reconnecting", "source", a.source.Spec().String())

	case EventQuit:
		a.quit = true
	}
}

func (a *Arbiter) setParam(ctx context.Context, p control.Param, value int) {
	if a.link == nil {
		a.params[p] = p.Clamp(value)
		return
	}
	sent, err := a.link.SetParam(ctx, p, value)
	if err != nil {
		a.lastErr = err.Error()
		return
	}
	a.params[p] = sent
	a.remember(string(p), strconv.Itoa(sent))
}

func (a *Arbiter) remember(key, value string) {
	if a.settings == nil {
		return
	}
	if err := a.settings.Set(key, value); err != nil {
		log.Warn("failed to save setting", "key", key, "err", err)
	}
}

// shutdown clears the modes, stops the rover and releases every resource.
// The stop command gets a fresh context so it is sent even after ctx was
// cancelled.
func (a *Arbiter) shutdown() {
	a.flags = Flags{}
	a.quit = true
	a.send(context.Background(), control.Stop)

	if err := a.source.Close(); err != nil {
		log.Warn("error closing source", "err", err)
	}
	if a.tracker != nil {
		if err := a.tracker.Close(); err != nil {
			log.Warn("error closing hand tracker", "err", err)
		}
	}
	if a.detector != nil {
		if err := a.detector.Close(); err != nil {
			log.Warn("error closing detector", "err", err)
		}
	}
	if err := a.sink.Close(); err != nil {
		log.Warn("error closing display", "err", err)
	}

	dropped := a.drain()
	a.publish()
	close(a.done)
	log.Info("arbiter stopped", "frames", a.frameCount, "dropped_events", dropped)
}

// drain discards events that were queued but never applied.
func (a *Arbiter) drain() int {
	n := 0
	for {
		select {
		case <-a.events:
			n++
		default:
			return n
		}
	}
}
