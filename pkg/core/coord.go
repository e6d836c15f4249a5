// pkg/core/coord.go
package core

import "fmt"

// GridSize is the edge length of the square city grid.
const GridSize = 24

// Coord addresses one grid cell. X is the row (0 = top), Y is the column.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// InBounds reports whether c lies inside a size x size grid.
func (c Coord) InBounds(size int) bool {
	return c.X >= 0 && c.X < size && c.Y >= 0 && c.Y < size
}

// Step returns the neighbouring coordinate one cell in direction d.
func (c Coord) Step(d Direction) Coord {
	switch d {
	case Up:
		return Coord{c.X - 1, c.Y}
	case Down:
		return Coord{c.X + 1, c.Y}
	case Left:
		return Coord{c.X, c.Y - 1}
	case Right:
		return Coord{c.X, c.Y + 1}
	}
	return c
}

// Neighbors returns the four orthogonal neighbours in up, down, left, right order.
// Coordinates outside the grid are included; callers filter with InBounds.
func (c Coord) Neighbors() [4]Coord {
	return [4]Coord{c.Step(Up), c.Step(Down), c.Step(Left), c.Step(Right)}
}

// Adjacent reports whether o is an orthogonal neighbour of c.
func (c Coord) Adjacent(o Coord) bool {
	dx, dy := c.X-o.X, c.Y-o.Y
	return dx*dx+dy*dy == 1
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Direction is a travel direction on the grid.
type Direction uint8

const (
	NoDirection Direction = iota
	Up
	Down
	Left
	Right
)

// AllDirections lists the four real directions.
var AllDirections = [4]Direction{Up, Down, Left, Right}

// DirectionBetween returns the direction of a single orthogonal step from a to b,
// or NoDirection when b is not adjacent to a.
func DirectionBetween(a, b Coord) Direction {
	switch {
	case b.X == a.X-1 && b.Y == a.Y:
		return Up
	case b.X == a.X+1 && b.Y == a.Y:
		return Down
	case b.Y == a.Y-1 && b.X == a.X:
		return Left
	case b.Y == a.Y+1 && b.X == a.X:
		return Right
	}
	return NoDirection
}

// Vertical reports whether d moves along a column.
func (d Direction) Vertical() bool {
	return d == Up || d == Down
}

// Bit returns the mask bit for d. NoDirection has no bit.
func (d Direction) Bit() DirSet {
	if d == NoDirection {
		return 0
	}
	return DirSet(1) << (d - 1)
}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return "none"
}

// MarshalText encodes the direction as its name.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes a direction name.
func (d *Direction) UnmarshalText(b []byte) error {
	v, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// ParseDirection converts a direction name back to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	case "none", "":
		return NoDirection, nil
	}
	return NoDirection, fmt.Errorf("unknown direction %q", s)
}

// DirSet is a bit mask of permitted directions.
type DirSet uint8

// Has reports whether d is in the set.
func (s DirSet) Has(d Direction) bool {
	return d != NoDirection && s&d.Bit() != 0
}

// With returns s plus d.
func (s DirSet) With(d Direction) DirSet {
	return s | d.Bit()
}

// Vertical returns only the up/down members of s.
func (s DirSet) Vertical() DirSet {
	return s & (Up.Bit() | Down.Bit())
}

// Horizontal returns only the left/right members of s.
func (s DirSet) Horizontal() DirSet {
	return s & (Left.Bit() | Right.Bit())
}

// Directions lists the members of s in up, down, left, right order.
func (s DirSet) Directions() []Direction {
	var out []Direction
	for _, d := range AllDirections {
		if s.Has(d) {
			out = append(out, d)
		}
	}
	return out
}
