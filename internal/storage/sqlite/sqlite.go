// Package sqlitestorage keeps a run in an in-memory SQLite database and copies
// it to a file on disk every DumpInterval and when the run ends.
package sqlitestorage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/citygrid/trafficsim/internal/database"
	"github.com/citygrid/trafficsim/internal/geo"
	gormstorage "github.com/citygrid/trafficsim/internal/storage/gorm"
	"github.com/citygrid/trafficsim/pkg/core"

	"gorm.io/gorm"
)

type Config struct {
	DumpInterval time.Duration
	DumpPath     string // empty disables dumps
}

// Backend is the GORM backend over an in-memory database.
type Backend struct {
	*gormstorage.Backend
	db  *gorm.DB
	cfg Config
	log *slog.Logger

	// writes counts snapshots stored; dumped is its value at the last dump.
	// The periodic dump is skipped while they are equal.
	writes atomic.Uint64
	dumped atomic.Uint64
	dumpMu sync.Mutex

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(cfg Config, projector geo.Projector, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := database.OpenSqlite("")
	if err != nil {
		return nil, fmt.Errorf("in-memory sqlite: %w", err)
	}

	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{
			DB:        db,
			Logger:    logger,
			Projector: projector,
		}),
		db:   db,
		cfg:  cfg,
		log:  logger.With("storage", "sqlite"),
		stop: make(chan struct{}),
	}, nil
}

// Init migrates the schema and starts periodic dumps when configured.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}
	if b.cfg.DumpPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(b.cfg.DumpPath), 0755); err != nil {
		return fmt.Errorf("dump directory: %w", err)
	}
	if b.cfg.DumpInterval > 0 {
		b.wg.Add(1)
		go b.dumpEvery(b.cfg.DumpInterval)
	}
	return nil
}

func (b *Backend) PublishSnapshot(s core.Snapshot) error {
	if err := b.Backend.PublishSnapshot(s); err != nil {
		return err
	}
	b.writes.Add(1)
	return nil
}

// EndRun marks the run finished and dumps the final state.
func (b *Backend) EndRun(summary core.RunSummary) error {
	if err := b.Backend.EndRun(summary); err != nil {
		return err
	}
	if b.cfg.DumpPath == "" {
		return nil
	}
	return b.Dump()
}

// Dump copies the database to DumpPath now.
func (b *Backend) Dump() error {
	b.dumpMu.Lock()
	defer b.dumpMu.Unlock()

	writes := b.writes.Load()
	start := time.Now()
	if err := database.VacuumInto(b.db, b.cfg.DumpPath); err != nil {
		return err
	}
	b.dumped.Store(writes)
	b.log.Debug("Dumped run database", "path", b.cfg.DumpPath, "snapshots", writes, "duration", time.Since(start))
	return nil
}

// GetExportedFilePath returns the dump file, or "" when dumps are off.
func (b *Backend) GetExportedFilePath() string {
	return b.cfg.DumpPath
}

// Close stops periodic dumps and closes the database.
func (b *Backend) Close() error {
	b.stopOnce.Do(func() { close(b.stop) })
	b.wg.Wait()
	if err := b.Backend.Close(); err != nil {
		return err
	}
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (b *Backend) dumpEvery(interval time.Duration) {
	defer b.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			if b.writes.Load() == b.dumped.Load() {
				continue
			}
			if err := b.Dump(); err != nil {
				b.log.Error("Periodic dump failed", "error", err)
			}
		}
	}
}
