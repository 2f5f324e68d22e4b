// Package control defines the rover's motor commands, its tunable parameters,
// and the rule that turns a target position into a command.
package control

import (
	"fmt"
	"strings"
)

// Command is a discrete motor directive understood by the rover firmware.
// The numeric value is the code sent on the wire.
type Command int

const (
	None     Command = 0
	Forward  Command = 1
	Left     Command = 2
	Stop     Command = 3
	Right    Command = 4
	Backward Command = 5
)

var commandNames = map[Command]string{
	None:     "NONE",
	Forward:  "FORWARD",
	Left:     "LEFT",
	Stop:     "STOP",
	Right:    "RIGHT",
	Backward: "BACKWARD",
}

// Code returns the transport code for the command.
func (c Command) Code() int {
	return int(c)
}

// Valid reports whether c is one of the five motor commands.
func (c Command) Valid() bool {
	return c >= Forward && c <= Backward
}

// String returns the upper-case name also used as the hand-following status.
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(%d)", int(c))
}

// ParseCommand accepts a name ("left") or a code ("2").
func ParseCommand(s string) (Command, error) {
	s = strings.TrimSpace(s)
	for c, name := range commandNames {
		if c == None {
			continue
		}
		if strings.EqualFold(s, name) || s == fmt.Sprint(int(c)) {
			return c, nil
		}
	}
	return None, fmt.Errorf("unknown command %q", s)
}
