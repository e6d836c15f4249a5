package sim

import (
	"fmt"
	"math/rand/v2"

	"github.com/citygrid/trafficsim/internal/layout"
)

// defaultAssignments starts vehicle i at lot i and draws distinct targets
// from a shuffled pool of lots, skipping each vehicle's own start.
func defaultAssignments(vehicles, lots int, rng *rand.Rand) ([]layout.Assignment, error) {
	if vehicles == 0 {
		return nil, nil
	}
	if lots < 2 {
		return nil, fmt.Errorf("%w: need at least two parking lots, have %d", layout.ErrInvalidAssignment, lots)
	}

	pool := rng.Perm(lots)
	out := make([]layout.Assignment, vehicles)
	for i := range out {
		start := i + 1
		out[i].Start = start

		pick := -1
		for j, p := range pool {
			if p+1 != start {
				pick = j
				break
			}
		}
		if pick < 0 {
			// Only the vehicle's own lot is left: trade with the first vehicle.
			out[i].Target = out[0].Target
			out[0].Target = start
			pool = pool[:0]
			continue
		}
		out[i].Target = pool[pick] + 1
		pool = append(pool[:pick], pool[pick+1:]...)
	}
	return out, nil
}
