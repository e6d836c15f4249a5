package sqlitestorage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/citygrid/trafficsim/internal/config"
	"github.com/citygrid/trafficsim/internal/database"
	"github.com/citygrid/trafficsim/internal/geo"
	"github.com/citygrid/trafficsim/internal/model"
	"github.com/citygrid/trafficsim/internal/storage"
	"github.com/citygrid/trafficsim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ storage.Backend  = (*Backend)(nil)
	_ storage.Exporter = (*Backend)(nil)
)

func testRun() core.Run {
	return core.Run{ID: "sqlite-run", Seed: 1, Vehicles: 1, StartTime: time.Now().UTC(), GridSize: 2}
}

func testSnapshot(tick uint64) core.Snapshot {
	return core.Snapshot{
		RunID:    "sqlite-run",
		Tick:     tick,
		Running:  true,
		Vehicles: []core.VehicleSnapshot{{ID: 1, Position: core.Coord{X: 0, Y: 1}, State: core.StateMoving}},
		Cells:    [][]core.Tag{{0, -1}, {1, 20}},
	}
}

func TestEndRun_DumpsToDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dumps", "run.db")
	b, err := New(Config{DumpPath: path}, geo.NewProjector(config.GeoConfig{CellSize: 1}), nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartRun(testRun()))
	require.NoError(t, b.PublishSnapshot(testSnapshot(3)))
	require.NoError(t, b.EndRun(core.RunSummary{Run: testRun(), Ticks: 3}))

	assert.Equal(t, path, b.GetExportedFilePath())
	_, err = os.Stat(path)
	require.NoError(t, err)

	dumped, err := database.OpenSqlite(path)
	require.NoError(t, err)
	var count int64
	require.NoError(t, dumped.Model(&model.Vehicle{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	sqlDB, _ := dumped.DB()
	sqlDB.Close()
}

func TestDumpLoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loop.db")
	b, err := New(Config{DumpPath: path, DumpInterval: 10 * time.Millisecond}, geo.Projector{}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())

	require.NoError(t, b.StartRun(testRun()))
	require.NoError(t, b.PublishSnapshot(testSnapshot(1)))

	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, b.Close())
}

func TestCloseWithoutDumps(t *testing.T) {
	b, err := New(Config{}, geo.Projector{}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())

	require.NoError(t, b.StartRun(testRun()))
	require.NoError(t, b.EndRun(core.RunSummary{Run: testRun()}))
	assert.Empty(t, b.GetExportedFilePath())
	require.NoError(t, b.Close())
}

func TestDumpLoop_SkipsWhenNothingChanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idle.db")
	b, err := New(Config{DumpPath: path, DumpInterval: 5 * time.Millisecond}, geo.Projector{}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartRun(testRun()))
	time.Sleep(30 * time.Millisecond)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "no snapshot yet, nothing to dump")

	require.NoError(t, b.PublishSnapshot(testSnapshot(1)))
	assert.Eventually(t, func() bool {
		return b.dumped.Load() == 1
	}, 2*time.Second, 5*time.Millisecond)
}
