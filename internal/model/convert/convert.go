package convert

import (
	"encoding/json"
	"fmt"

	"github.com/citygrid/trafficsim/internal/model"
	"github.com/citygrid/trafficsim/pkg/core"
)

// RunToCore converts a GORM Run back to a core.Run.
func RunToCore(r model.Run) core.Run {
	return core.Run{
		ID:        r.ID,
		Seed:      uint64(r.Seed),
		Vehicles:  r.Vehicles,
		StartTime: r.StartTime,
		GridSize:  r.GridSize,
	}
}

// VehicleToCore converts a GORM Vehicle row to a core.VehicleSnapshot.
// The previous cell is not stored.
func VehicleToCore(v model.Vehicle) (core.VehicleSnapshot, error) {
	var state core.VehicleState
	if err := state.UnmarshalText([]byte(v.State)); err != nil {
		return core.VehicleSnapshot{}, fmt.Errorf("vehicle %d: %w", v.VehicleID, err)
	}
	dir, err := core.ParseDirection(v.Direction)
	if err != nil {
		return core.VehicleSnapshot{}, fmt.Errorf("vehicle %d: %w", v.VehicleID, err)
	}

	return core.VehicleSnapshot{
		ID:           v.VehicleID,
		StartParking: v.StartParking,
		TargetLot:    v.TargetParking,
		Position:     core.Coord{X: v.Row, Y: v.Col},
		State:        state,
		Direction:    dir,
	}, nil
}

// SemaphoreToCore converts a GORM Semaphore row. Cell coordinates are not
// recoverable from the stop line and are left zero.
func SemaphoreToCore(s model.Semaphore) (core.SemaphoreSnapshot, error) {
	var phase core.Phase
	if err := phase.UnmarshalText([]byte(s.Phase)); err != nil {
		return core.SemaphoreSnapshot{}, fmt.Errorf("semaphore %d: %w", s.SemaphoreID, err)
	}
	return core.SemaphoreSnapshot{
		ID:      s.SemaphoreID,
		Phase:   phase,
		Elapsed: s.Elapsed,
	}, nil
}

// GridToCells decodes the stored tag matrix.
func GridToCells(g model.Grid) ([][]core.Tag, error) {
	var cells [][]core.Tag
	if len(g.Cells) == 0 {
		return cells, nil
	}
	if err := json.Unmarshal(g.Cells, &cells); err != nil {
		return nil, fmt.Errorf("failed to decode grid: %w", err)
	}
	return cells, nil
}
