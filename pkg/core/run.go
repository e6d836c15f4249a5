// pkg/core/run.go
package core

import "time"

// Run describes one simulation run.
type Run struct {
	ID        string    `json:"id"`
	Seed      uint64    `json:"seed"`
	Vehicles  int       `json:"vehicles"`
	StartTime time.Time `json:"startTime"`
	GridSize  int       `json:"gridSize"`
}

// Snapshot is the state of the whole simulation after one tick.
// It only ever describes the current step.
type Snapshot struct {
	RunID      string              `json:"runId"`
	Tick       uint64              `json:"tick"`
	Time       time.Time           `json:"time"`
	Running    bool                `json:"running"`
	Vehicles   []VehicleSnapshot   `json:"vehicles"`
	Semaphores []SemaphoreSnapshot `json:"semaphores"`
	Cells      [][]Tag             `json:"cells"`
}

// Arrived counts vehicles in the arrived state.
func (s *Snapshot) Arrived() int {
	n := 0
	for _, v := range s.Vehicles {
		if v.State == StateArrived {
			n++
		}
	}
	return n
}

// CountByState tallies vehicles per lifecycle state.
func (s *Snapshot) CountByState() map[VehicleState]int {
	out := make(map[VehicleState]int, 4)
	for _, v := range s.Vehicles {
		out[v.State]++
	}
	return out
}

// RunSummary is produced when a run finishes or is stopped.
type RunSummary struct {
	Run      Run           `json:"run"`
	Ticks    uint64        `json:"ticks"`
	Arrived  int           `json:"arrived"`
	Finished bool          `json:"finished"`
	Duration time.Duration `json:"duration"`
}
