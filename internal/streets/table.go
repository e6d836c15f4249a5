// Package streets precomputes the one-way rules of the city into a
// direction mask per coordinate.
package streets

import (
	"github.com/citygrid/trafficsim/internal/layout"
	"github.com/citygrid/trafficsim/pkg/core"
)

// Axis selects which default list a lookup consults.
type Axis uint8

const (
	// Column axis: vertical travel, keyed by column index.
	Column Axis = iota
	// Row axis: horizontal travel, keyed by row index.
	Row
)

// Table answers which directions are permitted out of a cell.
// It is read-only after New and safe to share.
type Table struct {
	size    int
	columns []core.DirSet
	rows    []core.DirSet
	cells   []core.DirSet
}

// New builds the table from the layout's street rules.
func New(size int, s layout.Streets) *Table {
	t := &Table{
		size:    size,
		columns: make([]core.DirSet, size),
		rows:    make([]core.DirSet, size),
		cells:   make([]core.DirSet, size*size),
	}

	mark := func(dst []core.DirSet, idx []int, d core.Direction) {
		for _, i := range idx {
			if i >= 0 && i < size {
				dst[i] = dst[i].With(d)
			}
		}
	}
	mark(t.columns, s.DownColumns, core.Down)
	mark(t.columns, s.UpColumns, core.Up)
	mark(t.rows, s.LeftRows, core.Left)
	mark(t.rows, s.RightRows, core.Right)

	for x := 0; x < size; x++ {
		for y := 0; y < size; y++ {
			t.cells[x*size+y] = t.columns[y] | t.rows[x]
		}
	}

	// A zone replaces the default of the axis it governs for the cells it
	// covers; when two zones govern the same axis on one cell, both apply.
	overridden := make(map[int]bool)
	for _, z := range s.Zones {
		if z.Direction == core.NoDirection {
			continue
		}
		for x := 0; x < size; x++ {
			for y := 0; y < size; y++ {
				cell := core.Coord{X: x, Y: y}
				if !z.Contains(cell) {
					continue
				}
				i := x*size + y
				key := i * 2
				if !z.Direction.Vertical() {
					key++
				}
				if !overridden[key] {
					overridden[key] = true
					if z.Direction.Vertical() {
						t.cells[i] = t.cells[i].Horizontal()
					} else {
						t.cells[i] = t.cells[i].Vertical()
					}
				}
				t.cells[i] = t.cells[i].With(z.Direction)
			}
		}
	}
	return t
}

// Lookup returns the row or column default for index, ignoring zones.
// Out-of-range indexes permit nothing.
func (t *Table) Lookup(axis Axis, index int) core.DirSet {
	if index < 0 || index >= t.size {
		return 0
	}
	if axis == Column {
		return t.columns[index]
	}
	return t.rows[index]
}

// At returns every direction permitted when leaving c, zones included.
func (t *Table) At(c core.Coord) core.DirSet {
	if !c.InBounds(t.size) {
		return 0
	}
	return t.cells[c.X*t.size+c.Y]
}

// Permits reports whether leaving from in direction d follows the one-way rules.
func (t *Table) Permits(from core.Coord, d core.Direction) bool {
	return t.At(from).Has(d)
}
