// pkg/core/semaphore.go
package core

import "fmt"

// Phase is the light shown by a semaphore.
type Phase uint8

const (
	PhaseGreen Phase = iota
	PhaseRed
	PhaseYellow
)

func (p Phase) String() string {
	switch p {
	case PhaseGreen:
		return "green"
	case PhaseRed:
		return "red"
	case PhaseYellow:
		return "yellow"
	}
	return "unknown"
}

// MarshalText encodes the phase as its name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(b []byte) error {
	switch string(b) {
	case "green":
		*p = PhaseGreen
	case "red":
		*p = PhaseRed
	case "yellow":
		*p = PhaseYellow
	default:
		return fmt.Errorf("unknown phase %q", b)
	}
	return nil
}

// Tag returns the cell tag written for p.
func (p Phase) Tag() Tag {
	switch p {
	case PhaseRed:
		return TagSignalRed
	case PhaseYellow:
		return TagSignalYellow
	}
	return TagSignalGreen
}

// SemaphoreSnapshot is a read-only copy of one semaphore at the end of a tick.
type SemaphoreSnapshot struct {
	ID      int      `json:"id"`
	Cells   [2]Coord `json:"cells"`
	Phase   Phase    `json:"phase"`
	Elapsed int      `json:"elapsed"`
}
