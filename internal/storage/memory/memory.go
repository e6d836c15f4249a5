// Package memory keeps the latest snapshot of the current run in memory and
// writes it to a JSON file when the run ends.
package memory

import (
	"slices"
	"sync"

	"github.com/citygrid/trafficsim/internal/config"
	"github.com/citygrid/trafficsim/internal/storage"
	"github.com/citygrid/trafficsim/pkg/core"
)

// Backend stores the current step of one run in memory and exports to JSON
type Backend struct {
	cfg config.MemoryConfig

	run       *core.Run
	latest    *core.Snapshot
	snapshots uint64 // snapshots received this run
	trips     map[int]*Trip

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init is a no-op for memory backend
func (b *Backend) Init() error {
	return nil
}

// Close is a no-op for memory backend
func (b *Backend) Close() error {
	return nil
}

// StartRun forgets the previous run and starts tracking run.
func (b *Backend) StartRun(run core.Run) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.run = &run
	b.latest = nil
	b.snapshots = 0
	b.trips = make(map[int]*Trip)
	return nil
}

// PublishSnapshot replaces the stored snapshot. Snapshots older than the
// stored one are ignored.
func (b *Backend) PublishSnapshot(s core.Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.run == nil {
		return storage.ErrNoRun
	}
	b.snapshots++
	if b.latest != nil && s.Tick < b.latest.Tick {
		return nil
	}
	b.trackTrips(s)
	b.latest = &s
	return nil
}

// EndRun exports the run and its last snapshot.
func (b *Backend) EndRun(summary core.RunSummary) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.run == nil {
		return storage.ErrNoRun
	}
	if err := b.exportJSON(summary); err != nil {
		return err
	}
	b.run = nil
	return nil
}

// trackTrips records lot pairs, cell changes and first arrival per vehicle.
func (b *Backend) trackTrips(s core.Snapshot) {
	var prev map[int]core.Coord
	if b.latest != nil {
		prev = make(map[int]core.Coord, len(b.latest.Vehicles))
		for _, v := range b.latest.Vehicles {
			prev[v.ID] = v.Position
		}
	}
	for _, v := range s.Vehicles {
		trip, ok := b.trips[v.ID]
		if !ok {
			trip = &Trip{Vehicle: v.ID, From: v.StartParking, To: v.TargetLot}
			b.trips[v.ID] = trip
		}
		p, seen := prev[v.ID]
		switch {
		case !seen && v.Previous != nil:
			// first sighting after leaving the lot
			trip.Moves++
		case seen && p != v.Position:
			trip.Moves++
		}
		if v.State == core.StateArrived && trip.ArrivedAt == nil {
			tick := s.Tick
			trip.ArrivedAt = &tick
		}
	}
}

// Trips returns the trips of the current run ordered by vehicle id.
func (b *Backend) Trips() []Trip {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tripList()
}

func (b *Backend) tripList() []Trip {
	out := make([]Trip, 0, len(b.trips))
	for _, t := range b.trips {
		out = append(out, *t)
	}
	slices.SortFunc(out, func(a, b Trip) int { return a.Vehicle - b.Vehicle })
	return out
}

// Latest returns a copy of the most recent snapshot.
func (b *Backend) Latest() (core.Snapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.latest == nil {
		return core.Snapshot{}, false
	}
	return *b.latest, true
}

// Received returns how many snapshots were published during the current run.
func (b *Backend) Received() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshots
}

// GetExportedFilePath returns the path to the last exported file
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
