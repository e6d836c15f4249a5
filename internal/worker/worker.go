package worker

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/citygrid/trafficsim/internal/run"
	"github.com/citygrid/trafficsim/internal/storage"
	"github.com/citygrid/trafficsim/pkg/core"
)

// ErrUnexpectedPayload is returned when an event carries the wrong payload type
var ErrUnexpectedPayload = errors.New("unexpected event payload")

// SnapshotWriter is a secondary per-tick sink, such as the influx manager.
type SnapshotWriter interface {
	WriteSnapshot(s core.Snapshot) error
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Logger     *slog.Logger
	RunContext *run.Context
	Influx     SnapshotWriter // optional
}

// Manager feeds dispatched run events into the storage backend and the other sinks
type Manager struct {
	deps      Dependencies
	backend   storage.Backend
	lastWrite atomic.Int64
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies, backend storage.Backend) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.RunContext == nil {
		deps.RunContext = run.NewContext()
	}
	return &Manager{
		deps:    deps,
		backend: backend,
	}
}

// RunContext returns the context the manager keeps current.
func (m *Manager) RunContext() *run.Context {
	return m.deps.RunContext
}

// EndRun finishes the run on the backend. Close the dispatcher first so that
// every queued snapshot has been written.
func (m *Manager) EndRun(summary core.RunSummary) error {
	if err := m.backend.EndRun(summary); err != nil {
		return fmt.Errorf("failed to end run %s: %w", summary.Run.ID, err)
	}
	m.deps.RunContext.Finish(summary)
	if e, ok := m.backend.(storage.Exporter); ok && e.GetExportedFilePath() != "" {
		m.deps.Logger.Info("Run exported", "path", e.GetExportedFilePath())
	}
	return nil
}

// GetLastWriteDuration returns how long the last snapshot took to reach every sink.
func (m *Manager) GetLastWriteDuration() time.Duration {
	return time.Duration(m.lastWrite.Load())
}
