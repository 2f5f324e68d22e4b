// Package tray provides a system tray menu for switching rover modes.
package tray

import (
	"fmt"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/ayusman/camrover/internal/app"
	"github.com/ayusman/camrover/internal/control"
	"github.com/ayusman/camrover/internal/log"
)

// RefreshInterval is how often menu state is synced with the arbiter.
const RefreshInterval = 500 * time.Millisecond

// Controller is the part of the arbiter the tray drives.
type Controller interface {
	Post(ev app.Event) error
	Snapshot() *app.Snapshot
}

// Tray represents the system tray application.
type Tray struct {
	ctl    Controller
	onOpen func()
	onQuit func()
	mu     sync.RWMutex
	stop   chan struct{}

	// Menu items stored for later updates
	menuHand   *systray.MenuItem
	menuDetect *systray.MenuItem
	menuAuto   *systray.MenuItem
	menuStatus *systray.MenuItem
}

// New creates a new Tray that posts menu actions to c.
func New(c Controller) *Tray {
	return &Tray{
		ctl:  c,
		stop: make(chan struct{}),
	}
}

// OnOpen sets the callback for the "Open Dashboard" menu item.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called and must run on the
// main goroutine.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray from another goroutine.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Rover")
	systray.SetTooltip("Camrover")

	t.menuStatus = systray.AddMenuItem("Mode: idle", "Current mode")
	t.menuStatus.Disable()
	systray.AddSeparator()

	t.menuHand = systray.AddMenuItemCheckbox("Hand Following", "Steer toward your palm", false)
	t.menuDetect = systray.AddMenuItemCheckbox("Object Detection", "Run the detection model", false)
	t.menuAuto = systray.AddMenuItemCheckbox("Auto Control", "Follow the target object", false)
	systray.AddSeparator()

	menuStop := systray.AddMenuItem("Stop", "Send STOP to the rover")
	menuFlash := systray.AddMenuItem("Toggle Flash", "Switch the rover flash")
	menuReconnect := systray.AddMenuItem("Reconnect Camera", "Reopen the video source")
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open Dashboard...", "Open the dashboard in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit camrover")

	go t.refresh()

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuHand.ClickedCh:
				t.post(app.ToggleHandFollowing())
			case <-t.menuDetect.ClickedCh:
				t.post(app.ToggleDetection())
			case <-t.menuAuto.ClickedCh:
				t.post(app.ToggleAutoControl())
			case <-menuStop.ClickedCh:
				t.post(app.Manual(control.Stop))
			case <-menuFlash.ClickedCh:
				t.post(app.ToggleFlash())
			case <-menuReconnect.ClickedCh:
				t.post(app.Reconnect())
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			case <-t.stop:
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {
	close(t.stop)
}

func (t *Tray) post(ev app.Event) {
	if err := t.ctl.Post(ev); err != nil {
		log.Warn("tray action dropped", "event", ev.Kind.String(), "err", err)
	}
}

// refresh keeps the checkmarks in step with the arbiter, which may also be
// driven from the keyboard or the HTTP API.
func (t *Tray) refresh() {
	ticker := time.NewTicker(RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
		}

		snap := t.ctl.Snapshot()
		if snap == nil {
			continue
		}
		if snap.Stopped {
			systray.Quit()
			return
		}
		setChecked(t.menuHand, snap.Flags.HandFollowing)
		setChecked(t.menuDetect, snap.Flags.Detecting)
		setChecked(t.menuAuto, snap.Flags.AutoControl)
		t.menuStatus.SetTitle(StatusTitle(snap))
	}
}

func setChecked(item *systray.MenuItem, on bool) {
	if item.Checked() == on {
		return
	}
	if on {
		item.Check()
	} else {
		item.Uncheck()
	}
}

// StatusTitle renders the disabled status line at the top of the menu.
func StatusTitle(s *app.Snapshot) string {
	title := "Mode: " + s.Mode
	if s.Flags.AutoControl && s.Target != "" {
		title += fmt.Sprintf(" (%s)", s.Target)
	}
	if s.LastCommand != "" {
		title += " | " + s.LastCommand
	}
	return title
}

// handleOpen handles the dashboard menu item click.
func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit posts Quit to the arbiter and closes the tray.
func (t *Tray) handleQuit() {
	t.post(app.Quit())

	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}
