// Package gormstorage implements storage.Backend as current-state tables on
// any GORM dialect. Each snapshot is upserted over the previous one, so a run
// holds one row per vehicle, one per semaphore and one grid row.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/citygrid/trafficsim/internal/geo"
	"github.com/citygrid/trafficsim/internal/model"
	"github.com/citygrid/trafficsim/internal/model/convert"
	"github.com/citygrid/trafficsim/internal/storage"
	"github.com/citygrid/trafficsim/pkg/core"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB        *gorm.DB
	Logger    *slog.Logger
	Projector geo.Projector
}

// Backend implements storage.Backend by upserting snapshot rows synchronously.
type Backend struct {
	deps Dependencies

	mu  sync.Mutex
	run *core.Run
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Backend{deps: deps}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init migrates the schema.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return errors.New("gorm backend has no database")
	}
	b.deps.Logger.Info("Migrating schema", "dialect", b.deps.DB.Name())
	if err := b.deps.DB.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close is a no-op; the connection belongs to the caller.
func (b *Backend) Close() error {
	return nil
}

// StartRun inserts the run row.
func (b *Backend) StartRun(run core.Run) error {
	row := convert.CoreToRun(run)
	if err := upsert(b.deps.DB, &row); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	b.mu.Lock()
	b.run = &run
	b.mu.Unlock()
	return nil
}

// CurrentRun returns the run started last.
func (b *Backend) CurrentRun() (core.Run, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.run == nil {
		return core.Run{}, false
	}
	return *b.run, true
}

// Rows converts s for the current run.
func (b *Backend) Rows(s core.Snapshot) (convert.Rows, error) {
	run, ok := b.CurrentRun()
	if !ok {
		return convert.Rows{}, storage.ErrNoRun
	}
	return convert.SnapshotToRows(run, s, b.deps.Projector)
}

// PublishSnapshot replaces the stored state of the run with s.
func (b *Backend) PublishSnapshot(s core.Snapshot) error {
	rows, err := b.Rows(s)
	if err != nil {
		return err
	}
	return b.WriteRows(rows)
}

// WriteRows upserts one snapshot's rows in a single transaction.
func (b *Backend) WriteRows(rows convert.Rows) error {
	return b.deps.DB.Transaction(func(tx *gorm.DB) error {
		if err := upsert(tx, &rows.Run); err != nil {
			return fmt.Errorf("failed to update run: %w", err)
		}
		if len(rows.Vehicles) > 0 {
			if err := upsert(tx, &rows.Vehicles); err != nil {
				return fmt.Errorf("failed to update vehicles: %w", err)
			}
		}
		if len(rows.Semaphores) > 0 {
			if err := upsert(tx, &rows.Semaphores); err != nil {
				return fmt.Errorf("failed to update semaphores: %w", err)
			}
		}
		if err := upsert(tx, &rows.Grid); err != nil {
			return fmt.Errorf("failed to update grid: %w", err)
		}
		return nil
	})
}

// EndRun marks the run finished.
func (b *Backend) EndRun(summary core.RunSummary) error {
	b.mu.Lock()
	started := b.run != nil
	b.run = nil
	b.mu.Unlock()
	if !started {
		return storage.ErrNoRun
	}

	row := convert.SummaryToRun(summary)
	if err := upsert(b.deps.DB, &row); err != nil {
		return fmt.Errorf("failed to finish run %s: %w", summary.Run.ID, err)
	}
	return nil
}

// LoadSnapshot reads the stored state of runID back. Previous cells and
// semaphore coordinates are not stored and come back zero.
func (b *Backend) LoadSnapshot(runID string) (core.Snapshot, error) {
	db := b.deps.DB

	var run model.Run
	if err := db.Where("id = ?", runID).First(&run).Error; err != nil {
		return core.Snapshot{}, fmt.Errorf("failed to load run %s: %w", runID, err)
	}

	snap := core.Snapshot{
		RunID:   run.ID,
		Tick:    uint64(run.Tick),
		Time:    run.UpdatedAt,
		Running: run.Running,
	}

	var vehicles []model.Vehicle
	if err := db.Where("run_id = ?", runID).Order("vehicle_id ASC").Find(&vehicles).Error; err != nil {
		return core.Snapshot{}, fmt.Errorf("failed to load vehicles: %w", err)
	}
	for _, v := range vehicles {
		vs, err := convert.VehicleToCore(v)
		if err != nil {
			return core.Snapshot{}, err
		}
		snap.Vehicles = append(snap.Vehicles, vs)
	}

	var semaphores []model.Semaphore
	if err := db.Where("run_id = ?", runID).Order("semaphore_id ASC").Find(&semaphores).Error; err != nil {
		return core.Snapshot{}, fmt.Errorf("failed to load semaphores: %w", err)
	}
	for _, s := range semaphores {
		ss, err := convert.SemaphoreToCore(s)
		if err != nil {
			return core.Snapshot{}, err
		}
		snap.Semaphores = append(snap.Semaphores, ss)
	}

	var grid model.Grid
	err := db.Where("run_id = ?", runID).First(&grid).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		return core.Snapshot{}, fmt.Errorf("failed to load grid: %w", err)
	default:
		if snap.Cells, err = convert.GridToCells(grid); err != nil {
			return core.Snapshot{}, err
		}
	}

	return snap, nil
}

// upsert inserts value or overwrites every non-key column of the existing row.
func upsert(db *gorm.DB, value any) error {
	return db.Clauses(clause.OnConflict{UpdateAll: true}).Create(value).Error
}
