// Package legality decides whether a vehicle may enter a neighbouring cell.
package legality

import (
	"github.com/citygrid/trafficsim/internal/grid"
	"github.com/citygrid/trafficsim/internal/streets"
	"github.com/citygrid/trafficsim/pkg/core"
)

// Verdict explains the outcome of a legality check.
type Verdict uint8

const (
	Legal Verdict = iota
	NotAdjacent
	Backtrack
	Blocked
	Occupied
	RedLight
	WrongWay
	ParkingLot
)

func (v Verdict) String() string {
	switch v {
	case Legal:
		return "legal"
	case NotAdjacent:
		return "not adjacent"
	case Backtrack:
		return "backtrack"
	case Blocked:
		return "blocked"
	case Occupied:
		return "occupied"
	case RedLight:
		return "red light"
	case WrongWay:
		return "wrong way"
	case ParkingLot:
		return "parking lot"
	}
	return "unknown"
}

// Engine is a pure function of the street table and the grid it is handed.
type Engine struct {
	streets *streets.Table
}

// New returns an engine bound to a street table.
func New(t *streets.Table) *Engine {
	return &Engine{streets: t}
}

// IsLegal reports whether a vehicle at from may move to to. last is the
// cell the vehicle just left, or nil.
func (e *Engine) IsLegal(from, to core.Coord, last *core.Coord, g *grid.Grid) bool {
	return e.Check(from, to, last, g) == Legal
}

// Check is IsLegal with the reason for a rejection.
func (e *Engine) Check(from, to core.Coord, last *core.Coord, g *grid.Grid) Verdict {
	dir := core.DirectionBetween(from, to)
	if dir == core.NoDirection {
		return NotAdjacent
	}
	if last != nil && *last == to {
		return Backtrack
	}
	if !to.InBounds(g.Size()) {
		return Blocked
	}
	// Lots are dead ends. A vehicle only enters its own target lot, and
	// that happens through the adjacency shortcut, never through here.
	if _, lot := g.ParkingLot(to); lot {
		return ParkingLot
	}

	switch tag := g.Tag(to); {
	case tag == core.TagBuilding:
		return Blocked
	case tag == core.TagVehicle:
		return Occupied
	case tag.Kind() == core.KindUnknown:
		return Blocked
	case tag == core.TagSignalRed:
		if !e.pairedGreen(to, g) {
			return RedLight
		}
	case tag == core.TagRoundabout:
		return Legal
	}

	if !e.streets.Permits(from, dir) {
		return WrongWay
	}
	return Legal
}

// pairedGreen reports whether a neighbour of c that belongs to the same
// intersection currently shows green or yellow.
func (e *Engine) pairedGreen(c core.Coord, g *grid.Grid) bool {
	_, inter, _, ok := g.Signal(c)
	if !ok {
		return false
	}
	for _, n := range c.Neighbors() {
		_, other, phase, ok := g.Signal(n)
		if ok && other == inter && (phase == core.PhaseGreen || phase == core.PhaseYellow) {
			return true
		}
	}
	return false
}

// LegalMoves returns the legal neighbours of from in up, down, left, right order.
func (e *Engine) LegalMoves(from core.Coord, last *core.Coord, g *grid.Grid) []core.Coord {
	var out []core.Coord
	for _, n := range from.Neighbors() {
		if e.IsLegal(from, n, last, g) {
			out = append(out, n)
		}
	}
	return out
}
