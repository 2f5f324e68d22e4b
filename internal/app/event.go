package app

import (
	"github.com/ayusman/camrover/internal/capture"
	"github.com/ayusman/camrover/internal/control"
)

// EventKind identifies an operator action.
type EventKind int

const (
	EventToggleHandFollowing EventKind = iota + 1
	EventToggleDetection
	EventToggleAutoControl
	EventSetTarget
	EventManual
	EventSetParam
	EventToggleFlash
	EventSwitchSource
	EventReconnect
	EventQuit
)

var eventNames = map[EventKind]string{
	EventToggleHandFollowing: "toggle_hand_following",
	EventToggleDetection:     "toggle_detection",
	EventToggleAutoControl:   "toggle_auto_control",
	EventSetTarget:           "set_target",
	EventManual:              "manual",
	EventSetParam:            "set_param",
	EventToggleFlash:         "toggle_flash",
	EventSwitchSource:        "switch_source",
	EventReconnect:           "reconnect",
	EventQuit:                "quit",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is an operator action applied by the loop between ticks.
type Event struct {
	Kind    EventKind
	Command control.Command
	Param   control.Param
	Value   int
	Label   string
	Source  capture.Spec
}

func ToggleHandFollowing() Event { return Event{Kind: EventToggleHandFollowing} }
func ToggleDetection() Event     { return Event{Kind: EventToggleDetection} }
func ToggleAutoControl() Event   { return Event{Kind: EventToggleAutoControl} }
func ToggleFlash() Event         { return Event{Kind: EventToggleFlash} }
func Reconnect() Event           { return Event{Kind: EventReconnect} }
func Quit() Event                { return Event{Kind: EventQuit} }

// SetTarget selects the label that auto control follows.
func SetTarget(label string) Event { return Event{Kind: EventSetTarget, Label: label} }

// Manual sends cmd unless auto control is on.
func Manual(cmd control.Command) Event { return Event{Kind: EventManual, Command: cmd} }

// SetParam sends a clamped parameter value to the rover.
func SetParam(p control.Param, value int) Event {
	return Event{Kind: EventSetParam, Param: p, Value: value}
}

// SwitchSource replaces the video source.
func SwitchSource(spec capture.Spec) Event { return Event{Kind: EventSwitchSource, Source: spec} }

// Key codes returned by the display window.
const (
	keyEsc   = 27
	keySpace = ' '
)

// KeyEvent maps a key code from the display window to an event.
func KeyEvent(key int) (Event, bool) {
	switch key {
	case 'w', 'W':
		return Manual(control.Forward), true
	case 'a', 'A':
		return Manual(control.Left), true
	case 'd', 'D':
		return Manual(control.Right), true
	case 's', 'S':
		return Manual(control.Backward), true
	case keySpace:
		return Manual(control.Stop), true
	case 'h', 'H':
		return ToggleHandFollowing(), true
	case 'o', 'O':
		return ToggleDetection(), true
	case 'f', 'F':
		return ToggleAutoControl(), true
	case 'l', 'L':
		return ToggleFlash(), true
	case 'r', 'R':
		return Reconnect(), true
	case 'q', 'Q', keyEsc:
		return Quit(), true
	}
	return Event{}, false
}
