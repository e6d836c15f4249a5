package run

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/citygrid/trafficsim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_Defaults(t *testing.T) {
	ctx := NewContext()

	assert.Equal(t, "no run loaded", ctx.Run().ID)
	assert.Equal(t, "no run loaded", ctx.Status().RunID)
	assert.False(t, ctx.Status().Running)
}

func TestContext_ObserveTracksNewestTick(t *testing.T) {
	ctx := NewContext()
	start := time.Now()
	ctx.SetRun(core.Run{ID: "r1", Seed: 3, Vehicles: 2, StartTime: start})

	st := ctx.Status()
	assert.True(t, st.Running)
	assert.Equal(t, uint64(3), st.Seed)
	assert.Equal(t, start, st.LastUpdate)

	ctx.Observe(core.Snapshot{RunID: "r1", Tick: 5, Running: true, Vehicles: []core.VehicleSnapshot{{State: core.StateArrived}}})
	ctx.Observe(core.Snapshot{RunID: "r1", Tick: 4, Running: true})
	ctx.Observe(core.Snapshot{RunID: "other", Tick: 40})

	st = ctx.Status()
	assert.Equal(t, uint64(5), st.Tick)
	assert.Equal(t, 1, st.Arrived)
	assert.Equal(t, uint64(2), st.Snapshots)
}

func TestContext_Finish(t *testing.T) {
	ctx := NewContext()
	run := core.Run{ID: "r1"}
	ctx.SetRun(run)

	ctx.Finish(core.RunSummary{Run: core.Run{ID: "stale"}, Ticks: 99})
	assert.True(t, ctx.Status().Running)

	ctx.Finish(core.RunSummary{Run: run, Ticks: 12, Arrived: 3, Finished: true})
	st := ctx.Status()
	assert.False(t, st.Running)
	assert.Equal(t, uint64(12), st.Tick)
	assert.Equal(t, 3, st.Arrived)
}

func TestContext_LogAttrs(t *testing.T) {
	ctx := NewContext()
	ctx.SetRun(core.Run{ID: "r2"})
	ctx.Observe(core.Snapshot{RunID: "r2", Tick: 7})

	attrs := ctx.LogAttrs()
	require.Len(t, attrs, 2)
	assert.True(t, attrs[0].Equal(slog.String("run", "r2")))
	assert.True(t, attrs[1].Equal(slog.Uint64("tick", 7)))
}

func TestContext_ThreadSafe(t *testing.T) {
	ctx := NewContext()
	ctx.SetRun(core.Run{ID: "r"})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(tick uint64) {
			defer wg.Done()
			ctx.Observe(core.Snapshot{RunID: "r", Tick: tick})
		}(uint64(i))
		go func() {
			defer wg.Done()
			_ = ctx.Status()
			_ = ctx.LogAttrs()
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(19), ctx.Status().Tick)
	assert.Equal(t, uint64(20), ctx.Status().Snapshots)
}
