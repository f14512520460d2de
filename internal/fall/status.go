package fall

import "fmt"

// Status labels shown to the operator.
const (
	LabelNormal    = "Status: Normal"
	LabelConfirmed = "Status: FALL DETECTED!"
	LabelNoPerson  = "No Person Detected"
)

// Label returns the status text for a tick.
func Label(r Result) string {
	switch r.State.Phase {
	case PhaseConfirmed:
		return LabelConfirmed
	case PhaseSuspected:
		return fmt.Sprintf("Status: Potential Fall... (%.1fs)", r.Elapsed.Seconds())
	}
	if !r.Present {
		return LabelNoPerson
	}
	return LabelNormal
}

// Command is an operator request from the input layer.
type Command int

const (
	CommandNone Command = iota
	CommandQuit
	CommandReset
)

func (c Command) String() string {
	switch c {
	case CommandQuit:
		return "quit"
	case CommandReset:
		return "reset"
	default:
		return "none"
	}
}

// ParseKey maps a keypress to a command. Unknown keys yield CommandNone.
func ParseKey(key byte) Command {
	switch key {
	case 'q', 'Q':
		return CommandQuit
	case 'r', 'R':
		return CommandReset
	default:
		return CommandNone
	}
}
