// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/citygrid/trafficsim/internal/geo"
	"github.com/citygrid/trafficsim/internal/model"
	"github.com/citygrid/trafficsim/pkg/core"
	"gorm.io/datatypes"
)

// Rows is the full set of current-state rows for one snapshot.
type Rows struct {
	Run        model.Run
	Vehicles   []model.Vehicle
	Semaphores []model.Semaphore
	Grid       model.Grid
}

// CoreToRun converts a core.Run to a GORM model.Run.
func CoreToRun(r core.Run) model.Run {
	return model.Run{
		ID:        r.ID,
		Seed:      int64(r.Seed),
		Vehicles:  r.Vehicles,
		GridSize:  r.GridSize,
		StartTime: r.StartTime,
		Running:   true,
	}
}

// SummaryToRun converts a finished run summary to a GORM model.Run.
func SummaryToRun(s core.RunSummary) model.Run {
	r := CoreToRun(s.Run)
	r.EndTime = sql.NullTime{Time: s.Run.StartTime.Add(s.Duration), Valid: true}
	r.Tick = int64(s.Ticks)
	r.Arrived = s.Arrived
	r.Running = false
	r.Finished = s.Finished
	return r
}

// CoreToVehicle converts one vehicle snapshot to its current-state row.
func CoreToVehicle(runID string, tick uint64, v core.VehicleSnapshot, p geo.Projector) model.Vehicle {
	return model.Vehicle{
		RunID:         runID,
		VehicleID:     v.ID,
		Tick:          int64(tick),
		StartParking:  v.StartParking,
		TargetParking: v.TargetLot,
		Row:           v.Position.X,
		Col:           v.Position.Y,
		Position:      p.CellCenter(v.Position),
		State:         v.State.String(),
		Direction:     v.Direction.String(),
	}
}

// CoreToSemaphore converts one semaphore snapshot to its current-state row.
func CoreToSemaphore(runID string, tick uint64, s core.SemaphoreSnapshot, p geo.Projector) (model.Semaphore, error) {
	line, err := p.Path(s.Cells[:])
	if err != nil {
		return model.Semaphore{}, fmt.Errorf("semaphore %d: %w", s.ID, err)
	}
	return model.Semaphore{
		RunID:       runID,
		SemaphoreID: s.ID,
		Tick:        int64(tick),
		Phase:       s.Phase.String(),
		Elapsed:     s.Elapsed,
		StopLine:    line,
	}, nil
}

// CoreToGrid encodes the tag matrix as JSON.
func CoreToGrid(runID string, tick uint64, cells [][]core.Tag) (model.Grid, error) {
	if cells == nil {
		cells = [][]core.Tag{}
	}
	data, err := json.Marshal(cells)
	if err != nil {
		return model.Grid{}, fmt.Errorf("failed to encode grid: %w", err)
	}
	return model.Grid{
		RunID: runID,
		Tick:  int64(tick),
		Cells: datatypes.JSON(data),
	}, nil
}

// SnapshotToRows converts a whole snapshot. run supplies the static run fields.
func SnapshotToRows(run core.Run, s core.Snapshot, p geo.Projector) (Rows, error) {
	rows := Rows{
		Run:        CoreToRun(run),
		Vehicles:   make([]model.Vehicle, 0, len(s.Vehicles)),
		Semaphores: make([]model.Semaphore, 0, len(s.Semaphores)),
	}
	rows.Run.Tick = int64(s.Tick)
	rows.Run.Arrived = s.Arrived()
	rows.Run.Running = s.Running
	rows.Run.Finished = !s.Running

	for _, v := range s.Vehicles {
		rows.Vehicles = append(rows.Vehicles, CoreToVehicle(s.RunID, s.Tick, v, p))
	}
	for _, sem := range s.Semaphores {
		row, err := CoreToSemaphore(s.RunID, s.Tick, sem, p)
		if err != nil {
			return Rows{}, err
		}
		rows.Semaphores = append(rows.Semaphores, row)
	}

	grid, err := CoreToGrid(s.RunID, s.Tick, s.Cells)
	if err != nil {
		return Rows{}, err
	}
	rows.Grid = grid
	return rows, nil
}
