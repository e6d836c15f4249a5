// pkg/core/vehicle.go
package core

import "fmt"

// VehicleState is the lifecycle state of a vehicle.
type VehicleState uint8

const (
	StateIdle VehicleState = iota
	StateExited
	StateMoving
	StateArrived
)

func (s VehicleState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExited:
		return "exited"
	case StateMoving:
		return "moving"
	case StateArrived:
		return "arrived"
	}
	return "unknown"
}

// MarshalText encodes the state as its name.
func (s VehicleState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *VehicleState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "idle":
		*s = StateIdle
	case "exited":
		*s = StateExited
	case "moving":
		*s = StateMoving
	case "arrived":
		*s = StateArrived
	default:
		return fmt.Errorf("unknown vehicle state %q", b)
	}
	return nil
}

// VehicleSnapshot is a read-only copy of one vehicle at the end of a tick.
type VehicleSnapshot struct {
	ID           int          `json:"id"`
	StartParking int          `json:"startParking"`
	TargetLot    int          `json:"targetParking"`
	Position     Coord        `json:"position"`
	Target       Coord        `json:"target"`
	Previous     *Coord       `json:"previous,omitempty"`
	State        VehicleState `json:"state"`
	Direction    Direction    `json:"direction"`
}
