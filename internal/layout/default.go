package layout

import "github.com/citygrid/trafficsim/pkg/core"

// Default durations for semaphore phases, in ticks.
const (
	DefaultGreenDuration = 5
	DefaultRedDuration   = 5
)

func c(x, y int) core.Coord { return core.Coord{X: x, Y: y} }

// Default returns the 24x24 reference city.
func Default() *Layout {
	l := &Layout{
		Size: core.GridSize,
		Buildings: []core.Coord{
			c(2, 2), c(3, 2), c(4, 2), c(5, 2), c(6, 2), c(7, 2), c(8, 2), c(10, 2), c(11, 2),
			c(3, 3), c(4, 3), c(5, 3), c(6, 3), c(7, 3), c(8, 3), c(9, 3), c(10, 3), c(11, 3),
			c(2, 4), c(3, 4), c(4, 4), c(5, 4), c(6, 4), c(7, 4), c(8, 4), c(9, 4), c(10, 4),
			c(2, 5), c(3, 5), c(4, 5), c(5, 5), c(7, 5), c(8, 5), c(9, 5), c(10, 5), c(11, 5),
			c(2, 8), c(3, 8), c(4, 8), c(7, 8), c(9, 8), c(10, 8), c(11, 8),
			c(2, 9), c(3, 9), c(4, 9), c(7, 9), c(8, 9), c(9, 9), c(10, 9), c(11, 9),
			c(2, 10), c(3, 10), c(7, 10), c(8, 10), c(9, 10), c(10, 10),
			c(2, 11), c(3, 11), c(4, 11), c(7, 11), c(8, 11), c(9, 11), c(10, 11), c(11, 11),
			c(16, 2), c(17, 2), c(20, 2), c(21, 2), c(16, 3), c(20, 3), c(21, 3),
			c(16, 4), c(17, 4), c(21, 4), c(16, 5), c(17, 5), c(20, 5), c(21, 5),
			c(16, 8), c(17, 8), c(20, 8), c(21, 8), c(16, 9), c(17, 9), c(20, 9),
			c(17, 10), c(20, 10), c(21, 10), c(16, 11), c(17, 11), c(20, 11), c(21, 11),
			c(2, 16), c(3, 16), c(4, 16), c(5, 16), c(8, 16), c(9, 16), c(10, 16), c(11, 16),
			c(3, 17), c(4, 17), c(5, 17), c(8, 17), c(9, 17), c(10, 17), c(11, 17),
			c(2, 18), c(3, 18), c(4, 18), c(5, 18), c(8, 18), c(9, 18), c(10, 18), c(11, 18),
			c(2, 19), c(3, 19), c(4, 19), c(5, 19), c(8, 19), c(9, 19), c(10, 19), c(11, 19),
			c(2, 20), c(3, 20), c(4, 20), c(9, 20), c(10, 20), c(11, 20),
			c(2, 21), c(3, 21), c(4, 21), c(5, 21), c(8, 21), c(9, 21), c(10, 21), c(11, 21),
			c(16, 16), c(17, 16), c(18, 16), c(19, 16), c(20, 16), c(21, 16),
			c(16, 17), c(18, 17), c(20, 17), c(21, 17),
			c(16, 20), c(17, 20), c(18, 20), c(20, 20), c(21, 20),
			c(16, 21), c(17, 21), c(18, 21), c(19, 21), c(20, 21), c(21, 21),
		},
		ParkingLots: []core.Coord{
			c(9, 2), c(2, 3), c(17, 3), c(11, 4), c(20, 4), c(6, 5), c(8, 8), c(21, 9), c(4, 10),
			c(11, 10), c(16, 10), c(2, 17), c(17, 17), c(19, 17), c(5, 20), c(8, 20), c(19, 20),
		},
		Roundabout: []core.Coord{c(13, 13), c(14, 13), c(13, 14), c(14, 14)},
		Streets: Streets{
			DownColumns: []int{0, 1, 12, 13},
			UpColumns:   []int{14, 15, 22, 23},
			LeftRows:    []int{0, 1, 12, 13},
			RightRows:   []int{14, 15, 22, 23},
			Zones: []Zone{
				{Rows: [2]int{15, 21}, Cols: [2]int{6, 7}, Direction: core.Down},
				{Rows: [2]int{16, 22}, Cols: [2]int{18, 19}, Direction: core.Up},
				{Rows: [2]int{2, 12}, Cols: [2]int{6, 7}, Direction: core.Up},
				{Rows: [2]int{6, 7}, Cols: [2]int{16, 22}, Direction: core.Left},
				{Rows: [2]int{5, 6}, Cols: [2]int{7, 12}, Direction: core.Left},
				{Rows: [2]int{18, 19}, Cols: [2]int{1, 6}, Direction: core.Left},
				{Rows: [2]int{18, 19}, Cols: [2]int{7, 12}, Direction: core.Right},
			},
		},
	}

	pairs := [][2]core.Coord{
		{c(18, 2), c(19, 2)},
		{c(17, 0), c(17, 1)},
		{c(22, 5), c(23, 5)},
		{c(2, 6), c(2, 7)},
		{c(0, 8), c(1, 8)},
		{c(7, 6), c(7, 7)},
		{c(5, 8), c(6, 8)},
		{c(21, 6), c(21, 7)},
		{c(14, 17), c(15, 17)},
		{c(16, 18), c(16, 19)},
	}
	for i, cells := range pairs {
		l.Semaphores = append(l.Semaphores, Semaphore{
			ID:            i + 1,
			Cells:         cells,
			GreenDuration: DefaultGreenDuration,
			RedDuration:   DefaultRedDuration,
		})
	}
	return l
}
