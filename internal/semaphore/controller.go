// Package semaphore runs the light-phase state machine of one traffic light.
package semaphore

import (
	"github.com/citygrid/trafficsim/internal/grid"
	"github.com/citygrid/trafficsim/internal/layout"
	"github.com/citygrid/trafficsim/pkg/core"
)

// Controller owns two grid cells and cycles green -> (yellow ->) red -> green.
type Controller struct {
	id        int
	cells     [2]core.Coord
	durations map[core.Phase]int
	phase     core.Phase
	elapsed   int
}

// New creates a controller. Even ids start green and odd ids start red so
// neighbouring intersections alternate. The initial phase is written to g.
func New(cfg layout.Semaphore, g *grid.Grid) *Controller {
	c := &Controller{
		id:    cfg.ID,
		cells: cfg.Cells,
		durations: map[core.Phase]int{
			core.PhaseGreen:  cfg.GreenDuration,
			core.PhaseRed:    cfg.RedDuration,
			core.PhaseYellow: cfg.YellowDuration,
		},
		phase: core.PhaseRed,
	}
	if cfg.ID%2 == 0 {
		c.phase = core.PhaseGreen
	}
	c.write(g)
	return c
}

// ID returns the semaphore identity.
func (c *Controller) ID() int {
	return c.id
}

// Cells returns the two controlled coordinates.
func (c *Controller) Cells() [2]core.Coord {
	return c.cells
}

// Phase returns the current light.
func (c *Controller) Phase() core.Phase {
	return c.phase
}

// Elapsed returns how many ticks the current phase has lasted.
func (c *Controller) Elapsed() int {
	return c.elapsed
}

// Tick advances the light by one step and reports whether the phase changed.
// The new phase is written before returning, so vehicles acting later in the
// same tick see it.
func (c *Controller) Tick(g *grid.Grid) bool {
	c.write(g)
	c.elapsed++
	if c.elapsed < c.durations[c.phase] {
		return false
	}
	c.phase = c.next()
	c.elapsed = 0
	c.write(g)
	return true
}

func (c *Controller) next() core.Phase {
	switch c.phase {
	case core.PhaseGreen:
		if c.durations[core.PhaseYellow] > 0 {
			return core.PhaseYellow
		}
		return core.PhaseRed
	case core.PhaseYellow:
		return core.PhaseRed
	}
	return core.PhaseGreen
}

func (c *Controller) write(g *grid.Grid) {
	for _, cell := range c.cells {
		g.SetSignal(cell, c.phase)
	}
}

// Snapshot copies the controller state.
func (c *Controller) Snapshot() core.SemaphoreSnapshot {
	return core.SemaphoreSnapshot{
		ID:      c.id,
		Cells:   c.cells,
		Phase:   c.phase,
		Elapsed: c.elapsed,
	}
}
