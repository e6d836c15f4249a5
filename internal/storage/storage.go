package storage

import (
	"errors"

	"github.com/citygrid/trafficsim/pkg/core"
)

// ErrNoRun is returned when a snapshot arrives before StartRun.
var ErrNoRun = errors.New("no run started")

// Backend is the interface all storage implementations must satisfy.
// Backends keep the current step only; every snapshot replaces the last.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Run management
	StartRun(run core.Run) error
	EndRun(summary core.RunSummary) error

	// State recording
	PublishSnapshot(s core.Snapshot) error
}

// Exporter is an optional interface for storage backends that write a file
// when a run ends.
type Exporter interface {
	GetExportedFilePath() string
}

// Nop discards everything. It backs the "none" storage type.
type Nop struct{}

func (Nop) Init() error                         { return nil }
func (Nop) Close() error                        { return nil }
func (Nop) StartRun(core.Run) error             { return nil }
func (Nop) EndRun(core.RunSummary) error        { return nil }
func (Nop) PublishSnapshot(core.Snapshot) error { return nil }
