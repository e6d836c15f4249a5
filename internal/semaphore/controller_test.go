package semaphore

import (
	"testing"

	"github.com/citygrid/trafficsim/internal/grid"
	"github.com/citygrid/trafficsim/internal/layout"
	"github.com/citygrid/trafficsim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cells = [2]core.Coord{{X: 1, Y: 1}, {X: 1, Y: 2}}

func setup(cfg layout.Semaphore) (*Controller, *grid.Grid) {
	cfg.Cells = cells
	g := grid.New(&layout.Layout{Size: 4, Semaphores: []layout.Semaphore{cfg}})
	return New(cfg, g), g
}

func TestNew_ParityPicksInitialPhase(t *testing.T) {
	even, g := setup(layout.Semaphore{ID: 2, GreenDuration: 5, RedDuration: 5})
	assert.Equal(t, core.PhaseGreen, even.Phase())
	assert.Equal(t, core.TagSignalGreen, g.Tag(cells[0]))

	odd, g := setup(layout.Semaphore{ID: 3, GreenDuration: 5, RedDuration: 5})
	assert.Equal(t, core.PhaseRed, odd.Phase())
	assert.Equal(t, core.TagSignalRed, g.Tag(cells[0]))
	assert.Equal(t, core.TagSignalRed, g.Tag(cells[1]))
	assert.Equal(t, 3, odd.ID())
	assert.Equal(t, cells, odd.Cells())
}

func TestTick_Cycle(t *testing.T) {
	const green, red = 3, 2
	c, g := setup(layout.Semaphore{ID: 2, GreenDuration: green, RedDuration: red})

	var phases []core.Phase
	var flips []int
	for tick := 1; tick <= 2*(green+red); tick++ {
		if c.Tick(g) {
			flips = append(flips, tick)
		}
		phases = append(phases, c.Phase())
		assert.Equal(t, c.Phase().Tag(), g.Tag(cells[0]), "tick %d", tick)
		assert.Equal(t, c.Phase().Tag(), g.Tag(cells[1]), "tick %d", tick)
	}

	G, R := core.PhaseGreen, core.PhaseRed
	assert.Equal(t, []core.Phase{G, G, R, R, G, G, G, R, R, G}, phases)
	assert.Equal(t, []int{3, 5, 8, 10}, flips)
}

func TestTick_ElapsedResetsOnFlip(t *testing.T) {
	c, g := setup(layout.Semaphore{ID: 1, GreenDuration: 2, RedDuration: 2})

	c.Tick(g)
	assert.Equal(t, 1, c.Elapsed())
	c.Tick(g)
	assert.Equal(t, 0, c.Elapsed())
	assert.Equal(t, core.PhaseGreen, c.Phase())

	snap := c.Snapshot()
	assert.Equal(t, 1, snap.ID)
	assert.Equal(t, core.PhaseGreen, snap.Phase)
	assert.Equal(t, cells, snap.Cells)
}

func TestTick_Yellow(t *testing.T) {
	c, g := setup(layout.Semaphore{ID: 2, GreenDuration: 1, YellowDuration: 1, RedDuration: 1})

	require.True(t, c.Tick(g))
	assert.Equal(t, core.PhaseYellow, c.Phase())
	assert.Equal(t, core.TagSignalYellow, g.Tag(cells[0]))

	require.True(t, c.Tick(g))
	assert.Equal(t, core.PhaseRed, c.Phase())

	require.True(t, c.Tick(g))
	assert.Equal(t, core.PhaseGreen, c.Phase())
}

func TestTick_OccupiedCellKeepsVehicle(t *testing.T) {
	c, g := setup(layout.Semaphore{ID: 2, GreenDuration: 1, RedDuration: 1})
	require.NoError(t, g.Place(7, cells[0]))

	c.Tick(g)
	assert.Equal(t, core.PhaseRed, c.Phase())
	assert.Equal(t, core.TagVehicle, g.Tag(cells[0]))
	assert.Equal(t, core.TagSignalRed, g.Tag(cells[1]))

	require.NoError(t, g.Move(7, cells[0], core.Coord{X: 0, Y: 1}))
	assert.Equal(t, core.TagSignalRed, g.Tag(cells[0]))
}
