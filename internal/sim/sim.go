// Package sim coordinates a simulation run: it owns the grid, the semaphores,
// the vehicles and the single random source they share.
package sim

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/citygrid/trafficsim/internal/grid"
	"github.com/citygrid/trafficsim/internal/layout"
	"github.com/citygrid/trafficsim/internal/legality"
	"github.com/citygrid/trafficsim/internal/semaphore"
	"github.com/citygrid/trafficsim/internal/streets"
	"github.com/citygrid/trafficsim/internal/vehicle"
	"github.com/citygrid/trafficsim/pkg/core"
)

// pcgStream is the fixed second half of the PCG state; the seed picks the first.
const pcgStream = 0x9e3779b97f4a7c15

// Config selects the run parameters. Assignments are optional; when empty,
// vehicle i starts at lot i and gets a random distinct target.
type Config struct {
	RunID       string
	Seed        uint64
	Vehicles    int
	Assignments []layout.Assignment
}

// Publisher receives a snapshot after every tick.
type Publisher interface {
	Publish(core.Snapshot) error
}

// Option configures a Simulation.
type Option func(*Simulation)

// WithLogger sets the logger used for per-tick debug output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulation) {
		s.log = l
	}
}

// WithPublisher registers a snapshot sink.
func WithPublisher(p Publisher) Option {
	return func(s *Simulation) {
		s.publishers = append(s.publishers, p)
	}
}

// StepResult summarises one tick.
type StepResult struct {
	Tick     uint64
	Moved    int
	Waiting  int
	Arrived  int
	Finished bool
	Outcomes []vehicle.Outcome
}

// Simulation is safe for concurrent use: Step takes the write lock and
// every query takes the read lock.
type Simulation struct {
	mu sync.RWMutex

	run        core.Run
	grid       *grid.Grid
	engine     *legality.Engine
	semaphores []*semaphore.Controller
	vehicles   []*vehicle.Controller
	byID       map[int]*vehicle.Controller
	rng        *rand.Rand

	tick    uint64
	running bool
	arrived int

	log        *slog.Logger
	publishers []Publisher
	metrics    *metrics
}

// New validates the layout and the vehicle setup, then places every
// semaphore and parked vehicle on a fresh grid.
func New(l *layout.Layout, cfg Config, opts ...Option) (*Simulation, error) {
	if l == nil {
		l = layout.Default()
	}
	if err := l.Validate(cfg.Vehicles, cfg.Assignments); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	s := &Simulation{
		run: core.Run{
			ID:        cfg.RunID,
			Seed:      cfg.Seed,
			Vehicles:  cfg.Vehicles,
			StartTime: time.Now(),
			GridSize:  l.Size,
		},
		grid:    grid.New(l),
		engine:  legality.New(streets.New(l.Size, l.Streets)),
		byID:    make(map[int]*vehicle.Controller, cfg.Vehicles),
		rng:     rand.New(rand.NewPCG(cfg.Seed, pcgStream)),
		running: true,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, sc := range l.Semaphores {
		s.semaphores = append(s.semaphores, semaphore.New(sc, s.grid))
	}

	assignments := cfg.Assignments
	if len(assignments) == 0 {
		var err error
		assignments, err = defaultAssignments(cfg.Vehicles, len(l.ParkingLots), s.rng)
		if err != nil {
			return nil, err
		}
	}

	for i, a := range assignments {
		start, err := l.ParkingCoord(a.Start)
		if err != nil {
			return nil, err
		}
		target, err := l.ParkingCoord(a.Target)
		if err != nil {
			return nil, err
		}
		id := i + 1
		if err := s.grid.Place(id, start); err != nil {
			return nil, err
		}
		v := vehicle.New(id, a.Start, start, a.Target, target)
		s.vehicles = append(s.vehicles, v)
		s.byID[id] = v
	}

	m, err := newMetrics(s)
	if err != nil {
		return nil, err
	}
	s.metrics = m

	s.log.Info("simulation initialized",
		"run", s.run.ID, "seed", s.run.Seed,
		"vehicles", len(s.vehicles), "semaphores", len(s.semaphores))
	return s, nil
}

// ErrTickLimit is returned by Run when the tick budget runs out before
// every vehicle arrived.
var ErrTickLimit = errors.New("tick limit reached")

// Step advances the simulation by one tick: semaphores first, then every
// vehicle that has not arrived in a freshly shuffled order, then roundabout
// bookkeeping and the termination check. Once finished, Step is a no-op.
func (s *Simulation) Step() StepResult {
	s.mu.Lock()
	res := s.step()
	var snap core.Snapshot
	if len(s.publishers) > 0 && res.Outcomes != nil {
		snap = s.snapshot()
	}
	s.mu.Unlock()

	if res.Outcomes != nil {
		s.metrics.record(res)
		for _, p := range s.publishers {
			if err := p.Publish(snap); err != nil {
				s.log.Warn("failed to publish snapshot", "tick", res.Tick, "error", err)
			}
		}
		if res.Finished {
			s.Close()
		}
	}
	return res
}

// Close releases the metric callbacks of the run. A finished run closes
// itself; call Close for a run abandoned early.
func (s *Simulation) Close() {
	if err := s.metrics.unregister(); err != nil {
		s.log.Warn("failed to unregister metrics", "run", s.run.ID, "error", err)
	}
}

func (s *Simulation) step() StepResult {
	if !s.running {
		return StepResult{Tick: s.tick, Arrived: s.arrived, Finished: true}
	}
	s.tick++
	res := StepResult{Tick: s.tick, Outcomes: make([]vehicle.Outcome, 0, len(s.vehicles))}

	for _, sem := range s.semaphores {
		if sem.Tick(s.grid) {
			s.log.Debug("semaphore switched", "tick", s.tick, "semaphore", sem.ID(), "phase", sem.Phase())
		}
	}

	for _, i := range s.rng.Perm(len(s.vehicles)) {
		v := s.vehicles[i]
		if v.Arrived() {
			continue
		}
		out, err := v.Act(s.grid, s.engine, s.rng)
		if err != nil {
			s.log.Error("vehicle move rejected by grid", "tick", s.tick, "vehicle", v.ID(), "error", err)
			res.Waiting++
			continue
		}
		res.Outcomes = append(res.Outcomes, out)

		switch out.Event {
		case vehicle.Waiting:
			res.Waiting++
			s.log.Debug("vehicle waiting", "tick", s.tick, "vehicle", v.ID(), "at", out.From)
		case vehicle.Exited, vehicle.Moved:
			res.Moved++
			s.log.Debug("vehicle moved", "tick", s.tick, "vehicle", v.ID(), "event", out.Event,
				"from", out.From, "to", out.To, "direction", v.Direction())
		case vehicle.Arrived:
			if out.From != out.To {
				res.Moved++
			}
			s.arrived++
			s.log.Debug("vehicle arrived", "tick", s.tick, "vehicle", v.ID(), "at", out.To)
		}
	}

	if n := s.grid.RestoreRoundabouts(); n > 0 {
		s.log.Debug("roundabout cells restored", "tick", s.tick, "count", n)
	}

	res.Arrived = s.arrived
	if s.arrived == len(s.vehicles) {
		s.running = false
		res.Finished = true
		s.log.Info("all vehicles arrived", "run", s.run.ID, "tick", s.tick)
	}
	return res
}

// Running reports whether any vehicle is still on its way.
func (s *Simulation) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Tick returns the number of ticks played.
func (s *Simulation) Tick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tick
}

// Info describes the run.
func (s *Simulation) Info() core.Run {
	return s.run
}

// Arrived returns how many vehicles reached their target.
func (s *Simulation) Arrived() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.arrived
}

// VehicleCount returns the number of vehicles in the run.
func (s *Simulation) VehicleCount() int {
	return len(s.vehicles)
}

// VehiclePosition returns the coordinate of vehicle id.
func (s *Simulation) VehiclePosition(id int) (core.Coord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.byID[id]
	if !ok {
		return core.Coord{}, false
	}
	return v.Position(), true
}

// Positions returns every vehicle coordinate ordered by vehicle id.
func (s *Simulation) Positions() []core.Coord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Coord, len(s.vehicles))
	for i, v := range s.vehicles {
		out[i] = v.Position()
	}
	return out
}

// CellTag returns the current tag at c.
func (s *Simulation) CellTag(c core.Coord) core.Tag {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grid.Tag(c)
}

// Snapshot copies the whole current state.
func (s *Simulation) Snapshot() core.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

func (s *Simulation) snapshot() core.Snapshot {
	snap := core.Snapshot{
		RunID:      s.run.ID,
		Tick:       s.tick,
		Time:       time.Now(),
		Running:    s.running,
		Vehicles:   make([]core.VehicleSnapshot, len(s.vehicles)),
		Semaphores: make([]core.SemaphoreSnapshot, len(s.semaphores)),
		Cells:      s.grid.Tags(),
	}
	for i, v := range s.vehicles {
		snap.Vehicles[i] = v.Snapshot()
	}
	for i, sem := range s.semaphores {
		snap.Semaphores[i] = sem.Snapshot()
	}
	return snap
}

// Verify checks the grid occupancy invariant against the vehicle positions.
func (s *Simulation) Verify() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.grid.Verify(); err != nil {
		return err
	}
	for _, v := range s.vehicles {
		if id, ok := s.grid.Occupant(v.Position()); !ok || id != v.ID() {
			return fmt.Errorf("vehicle %d at %s is not bound to its cell", v.ID(), v.Position())
		}
	}
	return nil
}
