// Package grid owns the authoritative cell tags and the occupancy index.
// All mutation goes through its methods so tags and occupants never diverge.
package grid

import (
	"errors"
	"fmt"

	"github.com/citygrid/trafficsim/internal/layout"
	"github.com/citygrid/trafficsim/pkg/core"
)

var (
	ErrOccupied    = errors.New("cell already occupied")
	ErrNotOccupant = errors.New("vehicle does not occupy cell")
	ErrNotDrivable = errors.New("cell is not drivable")
)

type signalCell struct {
	semaphore    int
	intersection int
	phase        core.Phase
}

// Grid is the shared mutable state of the city. It is not safe for
// concurrent use; the simulation drives it from a single goroutine.
type Grid struct {
	size       int
	tags       []core.Tag
	occupants  map[core.Coord]int
	signals    map[core.Coord]*signalCell
	roundabout []core.Coord
	isRound    map[core.Coord]bool
	lots       map[core.Coord]int
}

// New lays out the static features. Signal cells start green until their
// semaphore writes its initial phase.
func New(l *layout.Layout) *Grid {
	g := &Grid{
		size:      l.Size,
		tags:      make([]core.Tag, l.Size*l.Size),
		occupants: make(map[core.Coord]int),
		signals:   make(map[core.Coord]*signalCell),
		isRound:   make(map[core.Coord]bool),
		lots:      make(map[core.Coord]int),
	}
	for _, c := range l.Buildings {
		g.set(c, core.TagBuilding)
	}
	for i, c := range l.ParkingLots {
		g.set(c, core.ParkingTag(i+1))
		g.lots[c] = i + 1
	}
	for _, c := range l.Roundabout {
		g.set(c, core.TagRoundabout)
		g.roundabout = append(g.roundabout, c)
		g.isRound[c] = true
	}
	for _, s := range l.Semaphores {
		for _, c := range s.Cells {
			g.signals[c] = &signalCell{semaphore: s.ID, intersection: s.IntersectionID(), phase: core.PhaseGreen}
			g.set(c, core.TagSignalGreen)
		}
	}
	return g
}

// Size returns the edge length of the grid.
func (g *Grid) Size() int {
	return g.size
}

func (g *Grid) index(c core.Coord) int {
	return c.X*g.size + c.Y
}

func (g *Grid) set(c core.Coord, t core.Tag) {
	if c.InBounds(g.size) {
		g.tags[g.index(c)] = t
	}
}

// Tag returns the tag at c. Cells outside the grid read as buildings.
func (g *Grid) Tag(c core.Coord) core.Tag {
	if !c.InBounds(g.size) {
		return core.TagBuilding
	}
	return g.tags[g.index(c)]
}

// Kind classifies the cell at c.
func (g *Grid) Kind(c core.Coord) core.CellKind {
	return g.Tag(c).Kind()
}

// Occupant returns the vehicle bound to c, if any.
func (g *Grid) Occupant(c core.Coord) (int, bool) {
	id, ok := g.occupants[c]
	return id, ok
}

// IsRoundabout reports whether c is one of the roundabout cells.
func (g *Grid) IsRoundabout(c core.Coord) bool {
	return g.isRound[c]
}

// ParkingLot returns the lot id laid out at c. The answer does not change
// when the lot tag is cleared by a departing vehicle.
func (g *Grid) ParkingLot(c core.Coord) (int, bool) {
	id, ok := g.lots[c]
	return id, ok
}

// Signal returns the semaphore, intersection and phase controlling c.
func (g *Grid) Signal(c core.Coord) (semaphore, intersection int, phase core.Phase, ok bool) {
	s, ok := g.signals[c]
	if !ok {
		return 0, 0, 0, false
	}
	return s.semaphore, s.intersection, s.phase, true
}

// Place binds vehicle id to c at initialization.
func (g *Grid) Place(id int, c core.Coord) error {
	if !c.InBounds(g.size) {
		return fmt.Errorf("place vehicle %d at %s: %w", id, c, ErrNotDrivable)
	}
	if other, ok := g.occupants[c]; ok {
		return fmt.Errorf("place vehicle %d at %s held by %d: %w", id, c, other, ErrOccupied)
	}
	g.occupants[c] = id
	g.set(c, core.TagVehicle)
	return nil
}

// Move vacates from and occupies to in one step. The vacated cell gets its
// resting tag back: roundabout marker, the current signal phase, or empty.
func (g *Grid) Move(id int, from, to core.Coord) error {
	if cur, ok := g.occupants[from]; !ok || cur != id {
		return fmt.Errorf("move vehicle %d from %s: %w", id, from, ErrNotOccupant)
	}
	if other, ok := g.occupants[to]; ok {
		return fmt.Errorf("move vehicle %d to %s held by %d: %w", id, to, other, ErrOccupied)
	}
	if !to.InBounds(g.size) || g.Tag(to) == core.TagBuilding {
		return fmt.Errorf("move vehicle %d to %s: %w", id, to, ErrNotDrivable)
	}

	g.vacate(from)
	g.occupants[to] = id
	g.set(to, core.TagVehicle)
	return nil
}

func (g *Grid) vacate(c core.Coord) {
	delete(g.occupants, c)
	switch {
	case g.isRound[c]:
		g.set(c, core.TagRoundabout)
	case g.signals[c] != nil:
		g.set(c, g.signals[c].phase.Tag())
	default:
		g.set(c, core.TagEmpty)
	}
}

// SetSignal records the phase of a signal cell and writes its tag unless a
// vehicle is standing on it.
func (g *Grid) SetSignal(c core.Coord, phase core.Phase) {
	s, ok := g.signals[c]
	if !ok {
		return
	}
	s.phase = phase
	if _, occupied := g.occupants[c]; !occupied {
		g.set(c, phase.Tag())
	}
}

// RestoreRoundabouts puts the roundabout marker back on any unoccupied
// roundabout cell that lost it and returns how many were fixed.
func (g *Grid) RestoreRoundabouts() int {
	fixed := 0
	for _, c := range g.roundabout {
		if _, occupied := g.occupants[c]; occupied {
			continue
		}
		if g.Tag(c) != core.TagRoundabout {
			g.set(c, core.TagRoundabout)
			fixed++
		}
	}
	return fixed
}

// Overwrite sets a raw tag. It exists for tests and tools that need to
// simulate drift; the simulation itself never calls it.
func (g *Grid) Overwrite(c core.Coord, t core.Tag) {
	g.set(c, t)
}

// Tags returns a copy of the tag matrix, indexed [x][y].
func (g *Grid) Tags() [][]core.Tag {
	out := make([][]core.Tag, g.size)
	for x := range out {
		row := make([]core.Tag, g.size)
		copy(row, g.tags[x*g.size:(x+1)*g.size])
		out[x] = row
	}
	return out
}

// Occupants returns a copy of the occupancy index.
func (g *Grid) Occupants() map[core.Coord]int {
	out := make(map[core.Coord]int, len(g.occupants))
	for c, id := range g.occupants {
		out[c] = id
	}
	return out
}

// Verify checks the occupancy invariant: a cell carries the vehicle tag
// exactly when one vehicle is bound to it.
func (g *Grid) Verify() error {
	for x := 0; x < g.size; x++ {
		for y := 0; y < g.size; y++ {
			c := core.Coord{X: x, Y: y}
			_, bound := g.occupants[c]
			tagged := g.Tag(c) == core.TagVehicle
			if bound != tagged {
				return fmt.Errorf("cell %s: tag %d, occupant bound %v", c, g.Tag(c), bound)
			}
		}
	}
	return nil
}
