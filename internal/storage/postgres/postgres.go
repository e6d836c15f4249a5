// Package postgres implements the storage.Backend interface using GORM/PostgreSQL
// with an internal queue and a background DB writer goroutine.
package postgres

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/citygrid/trafficsim/internal/config"
	"github.com/citygrid/trafficsim/internal/database"
	"github.com/citygrid/trafficsim/internal/geo"
	"github.com/citygrid/trafficsim/internal/model/convert"
	"github.com/citygrid/trafficsim/internal/queue"
	gormstorage "github.com/citygrid/trafficsim/internal/storage/gorm"
	"github.com/citygrid/trafficsim/pkg/core"

	"gorm.io/gorm"
)

const (
	defaultWriteInterval = 500 * time.Millisecond

	// pendingLimit bounds the rows held between two flushes of an unpaced run.
	pendingLimit = 64
)

// Dependencies holds all dependencies for the Postgres storage backend.
type Dependencies struct {
	DB            *gorm.DB // injected connection; nil connects using Config
	Config        config.DBConfig
	Logger        *slog.Logger
	Projector     geo.Projector
	WriteInterval time.Duration
}

// Backend implements storage.Backend using GORM/PostgreSQL. Snapshots are
// queued and a writer goroutine persists only the newest one per cycle.
type Backend struct {
	deps    Dependencies
	store   *gormstorage.Backend
	pending *queue.Queue[convert.Rows]

	flushMu  sync.Mutex
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	written atomic.Uint64
	skipped atomic.Uint64
}

// New creates a new Postgres storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.WriteInterval <= 0 {
		deps.WriteInterval = defaultWriteInterval
	}
	return &Backend{
		deps:     deps,
		pending:  queue.NewBounded[convert.Rows](pendingLimit),
		stopChan: make(chan struct{}),
	}
}

// Init connects if needed, runs schema migration and starts the DB writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		db, err := database.OpenPostgres(b.deps.Config)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		b.deps.DB = db
	}

	if b.deps.DB.Name() == "postgres" {
		if err := b.deps.DB.Exec(`CREATE EXTENSION IF NOT EXISTS postgis;`).Error; err != nil {
			return fmt.Errorf("failed to create PostGIS extension: %w", err)
		}
		b.deps.Logger.Info("PostGIS extension created")
	}

	b.store = gormstorage.New(gormstorage.Dependencies{
		DB:        b.deps.DB,
		Logger:    b.deps.Logger,
		Projector: b.deps.Projector,
	})
	if err := b.store.Init(); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.wg.Add(1)
	go b.writeLoop()
	return nil
}

// Close stops the writer goroutine after a final flush.
func (b *Backend) Close() error {
	b.stopOnce.Do(func() { close(b.stopChan) })
	b.wg.Wait()
	if b.store != nil {
		b.flush()
	}
	return nil
}

// StartRun inserts the run row synchronously.
func (b *Backend) StartRun(run core.Run) error {
	b.pending.Clear()
	return b.store.StartRun(run)
}

// PublishSnapshot converts s and queues it for the writer.
func (b *Backend) PublishSnapshot(s core.Snapshot) error {
	rows, err := b.store.Rows(s)
	if err != nil {
		return err
	}
	b.pending.Push(rows)
	return nil
}

// EndRun flushes the newest queued snapshot and marks the run finished.
func (b *Backend) EndRun(summary core.RunSummary) error {
	b.flush()
	return b.store.EndRun(summary)
}

// Pending returns the number of queued snapshots.
func (b *Backend) Pending() int {
	return b.pending.Len()
}

// Stats returns how many snapshots were written and how many were superseded
// before they could be written, either at flush time or by queue overflow.
func (b *Backend) Stats() (written, skipped uint64) {
	return b.written.Load(), b.skipped.Load() + b.pending.Evicted()
}

// flush writes the newest queued snapshot. A failed write is not retried;
// the next snapshot replaces the same rows.
func (b *Backend) flush() {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	rows, skipped, ok := b.pending.TakeLatest()
	if !ok {
		return
	}
	b.skipped.Add(uint64(skipped))

	start := time.Now()
	if err := b.store.WriteRows(rows); err != nil {
		b.deps.Logger.Error("Error writing snapshot", "tick", rows.Grid.Tick, "error", err)
		return
	}
	b.written.Add(1)
	b.deps.Logger.Debug("Wrote snapshot", "tick", rows.Grid.Tick, "skipped", skipped, "duration", time.Since(start))
}

// writeLoop periodically drains the queue into the DB.
func (b *Backend) writeLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.deps.WriteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			b.flush()
		}
	}
}
