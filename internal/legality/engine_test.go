package legality

import (
	"testing"

	"github.com/citygrid/trafficsim/internal/grid"
	"github.com/citygrid/trafficsim/internal/layout"
	"github.com/citygrid/trafficsim/internal/streets"
	"github.com/citygrid/trafficsim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cell(x, y int) core.Coord { return core.Coord{X: x, Y: y} }

// testCity is a 5x5 block: row 1 runs right, column 3 runs down, a
// roundabout sits at (3,1) and one light guards (1,4).
func testCity() *layout.Layout {
	return &layout.Layout{
		Size:        5,
		Buildings:   []core.Coord{cell(0, 1), cell(2, 1)},
		ParkingLots: []core.Coord{cell(1, 0), cell(0, 3)},
		Roundabout:  []core.Coord{cell(3, 1)},
		Semaphores: []layout.Semaphore{
			{ID: 1, Cells: [2]core.Coord{cell(1, 4), cell(4, 4)}, GreenDuration: 5, RedDuration: 5},
		},
		Streets: layout.Streets{
			RightRows:   []int{1},
			DownColumns: []int{3},
		},
	}
}

func setup(l *layout.Layout) (*Engine, *grid.Grid) {
	return New(streets.New(l.Size, l.Streets)), grid.New(l)
}

func TestCheck(t *testing.T) {
	e, g := setup(testCity())
	require.NoError(t, g.Place(9, cell(2, 3)))
	g.SetSignal(cell(1, 4), core.PhaseRed)

	last := cell(1, 1)
	tests := []struct {
		name     string
		from, to core.Coord
		last     *core.Coord
		want     Verdict
	}{
		{"along the one-way row", cell(1, 1), cell(1, 2), nil, Legal},
		{"against the one-way row", cell(1, 2), cell(1, 1), nil, WrongWay},
		{"backtrack", cell(1, 2), cell(1, 1), &last, Backtrack},
		{"not adjacent", cell(1, 1), cell(1, 3), nil, NotAdjacent},
		{"diagonal", cell(1, 1), cell(2, 2), nil, NotAdjacent},
		{"building", cell(1, 1), cell(0, 1), nil, Blocked},
		{"outside", cell(4, 0), cell(5, 0), nil, Blocked},
		{"occupied", cell(1, 3), cell(2, 3), nil, Occupied},
		{"parking lot", cell(1, 3), cell(0, 3), nil, ParkingLot},
		{"red light", cell(1, 3), cell(1, 4), nil, RedLight},
		{"roundabout ignores direction", cell(3, 0), cell(3, 1), nil, Legal},
		{"no street rule", cell(3, 0), cell(4, 0), nil, WrongWay},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Check(tt.from, tt.to, tt.last, g), "got %s", e.Check(tt.from, tt.to, tt.last, g))
			assert.Equal(t, tt.want == Legal, e.IsLegal(tt.from, tt.to, tt.last, g))
		})
	}
}

func TestCheck_GreenAndYellowUseStreetRules(t *testing.T) {
	e, g := setup(testCity())

	g.SetSignal(cell(1, 4), core.PhaseGreen)
	assert.Equal(t, Legal, e.Check(cell(1, 3), cell(1, 4), nil, g))

	g.SetSignal(cell(1, 4), core.PhaseYellow)
	assert.Equal(t, Legal, e.Check(cell(1, 3), cell(1, 4), nil, g))

	// Column 4 has no rule, so entering the light from below stays illegal.
	g.SetSignal(cell(1, 4), core.PhaseGreen)
	assert.Equal(t, WrongWay, e.Check(cell(2, 4), cell(1, 4), nil, g))
}

func TestCheck_RedPassesWhenPairedCellIsGreen(t *testing.T) {
	l := testCity()
	l.Semaphores = []layout.Semaphore{
		{ID: 1, Cells: [2]core.Coord{cell(1, 4), cell(4, 4)}, GreenDuration: 5, RedDuration: 5, Intersection: 7},
		{ID: 2, Cells: [2]core.Coord{cell(0, 4), cell(4, 2)}, GreenDuration: 5, RedDuration: 5, Intersection: 7},
	}
	e, g := setup(l)

	g.SetSignal(cell(1, 4), core.PhaseRed)
	g.SetSignal(cell(0, 4), core.PhaseGreen)
	assert.Equal(t, Legal, e.Check(cell(1, 3), cell(1, 4), nil, g))

	g.SetSignal(cell(0, 4), core.PhaseYellow)
	assert.Equal(t, Legal, e.Check(cell(1, 3), cell(1, 4), nil, g))

	g.SetSignal(cell(0, 4), core.PhaseRed)
	assert.Equal(t, RedLight, e.Check(cell(1, 3), cell(1, 4), nil, g))
}

func TestCheck_RedNeighbourFromOtherIntersectionDoesNotCount(t *testing.T) {
	l := testCity()
	l.Semaphores = []layout.Semaphore{
		{ID: 1, Cells: [2]core.Coord{cell(1, 4), cell(4, 4)}, GreenDuration: 5, RedDuration: 5},
		{ID: 2, Cells: [2]core.Coord{cell(0, 4), cell(4, 2)}, GreenDuration: 5, RedDuration: 5},
	}
	e, g := setup(l)

	g.SetSignal(cell(1, 4), core.PhaseRed)
	g.SetSignal(cell(0, 4), core.PhaseGreen)
	assert.Equal(t, RedLight, e.Check(cell(1, 3), cell(1, 4), nil, g))
}

func TestLegalMoves(t *testing.T) {
	e, g := setup(testCity())

	// (1,3): right along row 1, down along column 3; (0,3) is a lot.
	assert.Equal(t, []core.Coord{cell(2, 3), cell(1, 4)}, e.LegalMoves(cell(1, 3), nil, g))

	last := cell(2, 3)
	assert.Equal(t, []core.Coord{cell(1, 4)}, e.LegalMoves(cell(1, 3), &last, g))

	assert.Empty(t, e.LegalMoves(cell(4, 0), nil, g))
}

func TestVerdict_String(t *testing.T) {
	assert.Equal(t, "legal", Legal.String())
	assert.Equal(t, "red light", RedLight.String())
	assert.Equal(t, "parking lot", ParkingLot.String())
	assert.Equal(t, "unknown", Verdict(99).String())
}
