// Package layout holds the static city description the simulation is built from:
// buildings, parking lots, roundabout cells, semaphores and one-way street rules.
package layout

import (
	"errors"
	"fmt"

	"github.com/citygrid/trafficsim/pkg/core"
)

// Configuration errors reported by Validate.
var (
	ErrTooManyVehicles     = errors.New("more vehicles than parking lots")
	ErrDuplicateCoordinate = errors.New("coordinate assigned to more than one feature")
	ErrOutOfBounds         = errors.New("coordinate outside the grid")
	ErrUnknownParkingLot   = errors.New("unknown parking lot")
	ErrInvalidAssignment   = errors.New("invalid vehicle assignment")
	ErrInvalidSemaphore    = errors.New("invalid semaphore")
)

// Semaphore configures one traffic light controlling two cells.
type Semaphore struct {
	ID             int           `json:"id" mapstructure:"id"`
	Cells          [2]core.Coord `json:"cells" mapstructure:"cells"`
	GreenDuration  int           `json:"greenDuration" mapstructure:"greenDuration"`
	RedDuration    int           `json:"redDuration" mapstructure:"redDuration"`
	YellowDuration int           `json:"yellowDuration" mapstructure:"yellowDuration"`
	// Intersection groups semaphores whose cells form one crossing.
	// Zero means the semaphore is its own intersection.
	Intersection int `json:"intersection" mapstructure:"intersection"`
}

// IntersectionID returns the effective intersection the semaphore belongs to.
func (s Semaphore) IntersectionID() int {
	if s.Intersection != 0 {
		return s.Intersection
	}
	return s.ID
}

// Zone is a rectangular override of the one-way rule for one axis.
// Rows and Cols are inclusive ranges; the axis is implied by Direction.
type Zone struct {
	Rows      [2]int         `json:"rows" mapstructure:"rows"`
	Cols      [2]int         `json:"cols" mapstructure:"cols"`
	Direction core.Direction `json:"direction" mapstructure:"direction"`
}

// Contains reports whether c is inside the zone.
func (z Zone) Contains(c core.Coord) bool {
	return within(c.X, z.Rows) && within(c.Y, z.Cols)
}

func within(v int, r [2]int) bool {
	lo, hi := r[0], r[1]
	if lo > hi {
		lo, hi = hi, lo
	}
	return v >= lo && v <= hi
}

// Streets lists the one-way rules. Column lists govern vertical travel,
// row lists govern horizontal travel.
type Streets struct {
	DownColumns []int  `json:"downColumns" mapstructure:"downColumns"`
	UpColumns   []int  `json:"upColumns" mapstructure:"upColumns"`
	LeftRows    []int  `json:"leftRows" mapstructure:"leftRows"`
	RightRows   []int  `json:"rightRows" mapstructure:"rightRows"`
	Zones       []Zone `json:"zones" mapstructure:"zones"`
}

// Assignment pins a vehicle to a start and target parking lot (1-based ids).
type Assignment struct {
	Start  int `json:"start" mapstructure:"start"`
	Target int `json:"target" mapstructure:"target"`
}

// Layout is the full static configuration of a city.
type Layout struct {
	Size        int          `json:"size" mapstructure:"size"`
	Buildings   []core.Coord `json:"buildings" mapstructure:"buildings"`
	ParkingLots []core.Coord `json:"parkingLots" mapstructure:"parkingLots"`
	Roundabout  []core.Coord `json:"roundabout" mapstructure:"roundabout"`
	Semaphores  []Semaphore  `json:"semaphores" mapstructure:"semaphores"`
	Streets     Streets      `json:"streets" mapstructure:"streets"`
}

// ParkingCoord returns the coordinate of lot id (1-based).
func (l *Layout) ParkingCoord(id int) (core.Coord, error) {
	if id < 1 || id > len(l.ParkingLots) {
		return core.Coord{}, fmt.Errorf("%w: %d", ErrUnknownParkingLot, id)
	}
	return l.ParkingLots[id-1], nil
}

// Validate checks the layout and the requested vehicle setup.
// Assignments may be empty, in which case only the vehicle count is checked.
func (l *Layout) Validate(vehicles int, assignments []Assignment) error {
	if l.Size <= 0 {
		return fmt.Errorf("%w: grid size %d", ErrOutOfBounds, l.Size)
	}
	if len(l.ParkingLots) > core.MaxParkingLots {
		return fmt.Errorf("%w: %d parking lots, at most %d supported",
			ErrUnknownParkingLot, len(l.ParkingLots), core.MaxParkingLots)
	}

	seen := make(map[core.Coord]string)
	claim := func(c core.Coord, what string) error {
		if !c.InBounds(l.Size) {
			return fmt.Errorf("%w: %s at %s", ErrOutOfBounds, what, c)
		}
		if prev, ok := seen[c]; ok {
			return fmt.Errorf("%w: %s and %s at %s", ErrDuplicateCoordinate, prev, what, c)
		}
		seen[c] = what
		return nil
	}

	for _, c := range l.Buildings {
		if err := claim(c, "building"); err != nil {
			return err
		}
	}
	for i, c := range l.ParkingLots {
		if err := claim(c, fmt.Sprintf("parking lot %d", i+1)); err != nil {
			return err
		}
	}
	for _, c := range l.Roundabout {
		if err := claim(c, "roundabout"); err != nil {
			return err
		}
	}

	ids := make(map[int]bool)
	for _, s := range l.Semaphores {
		if ids[s.ID] {
			return fmt.Errorf("%w: duplicate id %d", ErrInvalidSemaphore, s.ID)
		}
		ids[s.ID] = true
		if s.GreenDuration <= 0 || s.RedDuration <= 0 || s.YellowDuration < 0 {
			return fmt.Errorf("%w: semaphore %d has non-positive durations", ErrInvalidSemaphore, s.ID)
		}
		for _, c := range s.Cells {
			if err := claim(c, fmt.Sprintf("semaphore %d", s.ID)); err != nil {
				return err
			}
		}
	}

	if vehicles > len(l.ParkingLots) {
		return fmt.Errorf("%w: %d vehicles, %d parking lots", ErrTooManyVehicles, vehicles, len(l.ParkingLots))
	}
	if vehicles < 0 {
		return fmt.Errorf("%w: negative vehicle count %d", ErrInvalidAssignment, vehicles)
	}

	return l.validateAssignments(vehicles, assignments)
}

func (l *Layout) validateAssignments(vehicles int, assignments []Assignment) error {
	if len(assignments) == 0 {
		return nil
	}
	if len(assignments) != vehicles {
		return fmt.Errorf("%w: %d assignments for %d vehicles", ErrInvalidAssignment, len(assignments), vehicles)
	}

	starts := make(map[int]bool)
	targets := make(map[int]bool)
	for i, a := range assignments {
		if _, err := l.ParkingCoord(a.Start); err != nil {
			return fmt.Errorf("vehicle %d start: %w", i+1, err)
		}
		if _, err := l.ParkingCoord(a.Target); err != nil {
			return fmt.Errorf("vehicle %d target: %w", i+1, err)
		}
		if a.Start == a.Target {
			return fmt.Errorf("%w: vehicle %d starts and ends at lot %d", ErrInvalidAssignment, i+1, a.Start)
		}
		if starts[a.Start] {
			return fmt.Errorf("%w: lot %d used as start twice", ErrInvalidAssignment, a.Start)
		}
		if targets[a.Target] {
			return fmt.Errorf("%w: lot %d used as target twice", ErrInvalidAssignment, a.Target)
		}
		starts[a.Start] = true
		targets[a.Target] = true
	}
	return nil
}
