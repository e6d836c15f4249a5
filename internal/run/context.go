package run

import (
	"log/slog"
	"sync"
	"time"

	"github.com/citygrid/trafficsim/pkg/core"
)

// Status is what the sinks have seen of the current run.
type Status struct {
	RunID      string    `json:"runId"`
	Seed       uint64    `json:"seed"`
	Vehicles   int       `json:"vehicles"`
	Tick       uint64    `json:"tick"`
	Arrived    int       `json:"arrived"`
	Running    bool      `json:"running"`
	Snapshots  uint64    `json:"snapshots"`
	LastUpdate time.Time `json:"lastUpdate"`
}

// Context holds the current run and the last snapshot the sinks processed
type Context struct {
	mu     sync.RWMutex
	run    core.Run
	status Status
}

// NewContext creates a new Context with no run loaded
func NewContext() *Context {
	return &Context{
		run:    core.Run{ID: "no run loaded"},
		status: Status{RunID: "no run loaded"},
	}
}

// Run returns the current run
func (c *Context) Run() core.Run {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.run
}

// SetRun replaces the current run and resets the status
func (c *Context) SetRun(r core.Run) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.run = r
	c.status = Status{
		RunID:      r.ID,
		Seed:       r.Seed,
		Vehicles:   r.Vehicles,
		Running:    true,
		LastUpdate: r.StartTime,
	}
}

// Observe records that s reached the sinks. Older ticks do not rewind the status.
func (c *Context) Observe(s core.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.RunID != c.run.ID {
		return
	}
	c.status.Snapshots++
	if s.Tick < c.status.Tick {
		return
	}
	c.status.Tick = s.Tick
	c.status.Arrived = s.Arrived()
	c.status.Running = s.Running
	c.status.LastUpdate = s.Time
}

// Finish records the end of the run.
func (c *Context) Finish(summary core.RunSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if summary.Run.ID != c.run.ID {
		return
	}
	c.status.Tick = summary.Ticks
	c.status.Arrived = summary.Arrived
	c.status.Running = false
}

// Status returns a copy of the current status
func (c *Context) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// LogAttrs returns the run attributes added to every log record.
func (c *Context) LogAttrs() []slog.Attr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return []slog.Attr{
		slog.String("run", c.run.ID),
		slog.Uint64("tick", c.status.Tick),
	}
}
