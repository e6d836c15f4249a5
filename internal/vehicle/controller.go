// Package vehicle implements the per-vehicle behaviour: leave the parking
// lot, wander the one-way streets, and take the final step into the target.
package vehicle

import (
	"fmt"

	"github.com/citygrid/trafficsim/internal/grid"
	"github.com/citygrid/trafficsim/internal/legality"
	"github.com/citygrid/trafficsim/pkg/core"
)

// Rand is the slice of math/rand/v2 the controller draws from.
type Rand interface {
	IntN(n int) int
}

// Event describes what a vehicle did during its turn.
type Event uint8

const (
	NoEvent Event = iota
	Exited
	Moved
	Arrived
	Waiting
)

func (e Event) String() string {
	switch e {
	case Exited:
		return "exited"
	case Moved:
		return "moved"
	case Arrived:
		return "arrived"
	case Waiting:
		return "waiting"
	}
	return "none"
}

// Outcome is the result of one turn.
type Outcome struct {
	Vehicle int
	Event   Event
	From    core.Coord
	To      core.Coord
}

// Controller is one vehicle and its state machine. prev doubles as the
// "has left the parking lot" marker: it is nil only before the exit.
type Controller struct {
	id        int
	startLot  int
	targetLot int
	target    core.Coord
	pos       core.Coord
	prev      *core.Coord
	state     core.VehicleState
	dir       core.Direction
}

// New creates a parked vehicle.
func New(id, startLot int, start core.Coord, targetLot int, target core.Coord) *Controller {
	return &Controller{
		id:        id,
		startLot:  startLot,
		targetLot: targetLot,
		target:    target,
		pos:       start,
		state:     core.StateIdle,
	}
}

// ID returns the vehicle id.
func (v *Controller) ID() int { return v.id }

// Position returns the cell the vehicle occupies.
func (v *Controller) Position() core.Coord { return v.pos }

// Target returns the cell of the destination lot.
func (v *Controller) Target() core.Coord { return v.target }

// State returns the lifecycle state.
func (v *Controller) State() core.VehicleState { return v.state }

// Direction returns the heading of the last move, or the zero value before
// the vehicle has moved.
func (v *Controller) Direction() core.Direction { return v.dir }

// Previous returns the anti-reversal memory.
func (v *Controller) Previous() (core.Coord, bool) {
	if v.prev == nil {
		return core.Coord{}, false
	}
	return *v.prev, true
}

// HasExited reports whether the vehicle has left its parking lot.
func (v *Controller) HasExited() bool {
	return v.prev != nil
}

// Arrived reports whether the vehicle reached its target.
func (v *Controller) Arrived() bool {
	return v.state == core.StateArrived
}

// Act plays one turn. Not finding a move is not an error: the vehicle waits
// and tries again next tick. Errors mean the grid refused a move the
// controller believed legal.
func (v *Controller) Act(g *grid.Grid, e *legality.Engine, rng Rand) (Outcome, error) {
	out := Outcome{Vehicle: v.id, From: v.pos, To: v.pos}

	switch {
	case v.state == core.StateArrived:
		return out, nil
	case v.prev == nil:
		return v.exitParking(g, rng, out)
	case v.pos == v.target:
		v.arrive()
		out.Event = Arrived
		return out, nil
	case v.pos.Adjacent(v.target):
		return v.approach(g, out)
	}

	moves := e.LegalMoves(v.pos, v.prev, g)
	if len(moves) == 0 {
		v.state = core.StateIdle
		out.Event = Waiting
		return out, nil
	}
	next := moves[rng.IntN(len(moves))]
	if err := v.moveTo(g, next); err != nil {
		return out, err
	}
	v.state = core.StateMoving
	out.Event = Moved
	out.To = next
	return out, nil
}

func (v *Controller) exitParking(g *grid.Grid, rng Rand, out Outcome) (Outcome, error) {
	var free []core.Coord
	for _, n := range v.pos.Neighbors() {
		if _, lot := g.ParkingLot(n); lot {
			continue
		}
		if n.InBounds(g.Size()) && g.Tag(n) == core.TagEmpty {
			free = append(free, n)
		}
	}
	if len(free) == 0 {
		out.Event = Waiting
		return out, nil
	}

	next := free[rng.IntN(len(free))]
	if err := v.moveTo(g, next); err != nil {
		return out, err
	}
	v.state = core.StateExited
	out.Event = Exited
	out.To = next
	return out, nil
}

// approach enters the adjacent target directly, ignoring one-way rules.
// It still waits if another vehicle holds the target cell.
func (v *Controller) approach(g *grid.Grid, out Outcome) (Outcome, error) {
	if _, held := g.Occupant(v.target); held {
		v.state = core.StateIdle
		out.Event = Waiting
		return out, nil
	}
	if err := v.moveTo(g, v.target); err != nil {
		return out, err
	}
	v.arrive()
	out.Event = Arrived
	out.To = v.target
	return out, nil
}

func (v *Controller) moveTo(g *grid.Grid, next core.Coord) error {
	if err := g.Move(v.id, v.pos, next); err != nil {
		return fmt.Errorf("vehicle %d: %w", v.id, err)
	}
	from := v.pos
	v.prev = &from
	v.dir = core.DirectionBetween(from, next)
	v.pos = next
	return nil
}

func (v *Controller) arrive() {
	v.state = core.StateArrived
	v.dir = core.NoDirection
}

// Snapshot copies the vehicle state.
func (v *Controller) Snapshot() core.VehicleSnapshot {
	s := core.VehicleSnapshot{
		ID:           v.id,
		StartParking: v.startLot,
		TargetLot:    v.targetLot,
		Position:     v.pos,
		Target:       v.target,
		State:        v.state,
		Direction:    v.dir,
	}
	if v.prev != nil {
		p := *v.prev
		s.Previous = &p
	}
	return s
}
