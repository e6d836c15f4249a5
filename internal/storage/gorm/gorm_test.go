package gormstorage

import (
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

// Compile-time interface check
var _ storage.Backend = (*Backend)(nil)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	db, err := database.OpenSqlite("")
	require.NoError(t, err)

	b := New(Dependencies{
		DB:        db,
		Projector: geo.NewProjector(config.GeoConfig{CellSize: 10}),
	})
	require.NoError(t, b.Init())
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	return b
}

func testRun() core.Run {
	return core.Run{ID: "run-a", Seed: 5, Vehicles: 2, StartTime: time.Now().UTC(), GridSize: 3}
}

func snapshotAt(tick uint64, running bool) core.Snapshot {
	state := core.StateMoving
	if !running {
		state = core.StateArrived
	}
	return core.Snapshot{
		RunID:   "run-a",
		Tick:    tick,
		Running: running,
		Vehicles: []core.VehicleSnapshot{
			{ID: 1, StartParking: 1, TargetLot: 2, Position: core.Coord{X: 1, Y: int(tick % 3)}, State: state, Direction: core.Right},
			{ID: 2, StartParking: 2, TargetLot: 1, Position: core.Coord{X: 2, Y: 0}, State: state},
		},
		Semaphores: []core.SemaphoreSnapshot{
			{ID: 1, Cells: [2]core.Coord{{X: 0, Y: 1}, {X: 0, Y: 2}}, Phase: core.PhaseGreen, Elapsed: int(tick)},
		},
		Cells: [][]core.Tag{{0, 18, 18}, {-1, 0, 0}, {-1, 20, 21}},
	}
}

func TestInit_RequiresDB(t *testing.T) {
	b := New(Dependencies{})
	assert.Error(t, b.Init())
}

func TestInit_CreatesTables(t *testing.T) {
	b := newTestBackend(t)
	for _, m := range model.DatabaseModels {
		assert.True(t, b.DB().Migrator().HasTable(m))
	}
}

func TestPublishBeforeStart(t *testing.T) {
	b := newTestBackend(t)
	assert.ErrorIs(t, b.PublishSnapshot(snapshotAt(1, true)), storage.ErrNoRun)
	assert.ErrorIs(t, b.EndRun(core.RunSummary{}), storage.ErrNoRun)
}

func TestPublishSnapshot_KeepsOneRowPerEntity(t *testing.T) {
	b := newTestBackend(t)
	require.NoError(t, b.StartRun(testRun()))

	for tick := uint64(1); tick <= 5; tick++ {
		require.NoError(t, b.PublishSnapshot(snapshotAt(tick, true)))
	}

	var vehicles, semaphores, grids int64
	require.NoError(t, b.DB().Model(&model.Vehicle{}).Count(&vehicles).Error)
	require.NoError(t, b.DB().Model(&model.Semaphore{}).Count(&semaphores).Error)
	require.NoError(t, b.DB().Model(&model.Grid{}).Count(&grids).Error)
	assert.Equal(t, int64(2), vehicles)
	assert.Equal(t, int64(1), semaphores)
	assert.Equal(t, int64(1), grids)

	var v model.Vehicle
	require.NoError(t, b.DB().Where("run_id = ? AND vehicle_id = ?", "run-a", 1).First(&v).Error)
	assert.Equal(t, int64(5), v.Tick)
	assert.Equal(t, 2, v.Col)
	xy, ok := v.Position.XY()
	require.True(t, ok)
	assert.InDelta(t, 25.0, xy.X, 1e-6)
}

func TestLoadSnapshot(t *testing.T) {
	b := newTestBackend(t)
	require.NoError(t, b.StartRun(testRun()))
	want := snapshotAt(4, true)
	require.NoError(t, b.PublishSnapshot(want))

	got, err := b.LoadSnapshot("run-a")
	require.NoError(t, err)

	assert.Equal(t, want.Tick, got.Tick)
	assert.True(t, got.Running)
	assert.Equal(t, want.Cells, got.Cells)
	require.Len(t, got.Vehicles, 2)
	assert.Equal(t, want.Vehicles[0].Position, got.Vehicles[0].Position)
	assert.Equal(t, core.Right, got.Vehicles[0].Direction)
	require.Len(t, got.Semaphores, 1)
	assert.Equal(t, 4, got.Semaphores[0].Elapsed)
}

func TestLoadSnapshot_UnknownRun(t *testing.T) {
	b := newTestBackend(t)
	_, err := b.LoadSnapshot("missing")
	assert.Error(t, err)
}

func TestEndRun_MarksFinished(t *testing.T) {
	b := newTestBackend(t)
	run := testRun()
	require.NoError(t, b.StartRun(run))
	require.NoError(t, b.PublishSnapshot(snapshotAt(9, false)))

	require.NoError(t, b.EndRun(core.RunSummary{Run: run, Ticks: 9, Arrived: 2, Finished: true, Duration: time.Second}))

	var row model.Run
	require.NoError(t, b.DB().Where("id = ?", "run-a").First(&row).Error)
	assert.True(t, row.Finished)
	assert.False(t, row.Running)
	assert.Equal(t, 2, row.Arrived)
	assert.True(t, row.EndTime.Valid)

	_, ok := b.CurrentRun()
	assert.False(t, ok)
}
