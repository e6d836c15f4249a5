package monitor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/citygrid/trafficsim/internal/run"
	"github.com/citygrid/trafficsim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedWriter time.Duration

func (f fixedWriter) GetLastWriteDuration() time.Duration { return time.Duration(f) }

func TestGetStatus(t *testing.T) {
	ctx := run.NewContext()
	ctx.SetRun(core.Run{ID: "m1", Vehicles: 3})
	ctx.Observe(core.Snapshot{RunID: "m1", Tick: 9, Running: true})

	s := NewService(Dependencies{RunContext: ctx, Writer: fixedWriter(1500 * time.Microsecond)})
	report := s.GetStatus()

	assert.Equal(t, "m1", report.Run.RunID)
	assert.Equal(t, uint64(9), report.Run.Tick)
	assert.InDelta(t, 1.5, report.LastWriteMillis, 1e-9)
}

func TestWriteStatus(t *testing.T) {
	dir := t.TempDir()
	ctx := run.NewContext()
	ctx.SetRun(core.Run{ID: "m2"})

	s := NewService(Dependencies{RunContext: ctx, StatusDir: dir})
	require.NoError(t, s.WriteStatus())

	data, err := os.ReadFile(filepath.Join(dir, "status.json"))
	require.NoError(t, err)
	var report Report
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, "m2", report.Run.RunID)
}

func TestStartStop(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "status")
	ctx := run.NewContext()
	ctx.SetRun(core.Run{ID: "m3"})

	s := NewService(Dependencies{RunContext: ctx, StatusDir: dir, Interval: 5 * time.Millisecond})
	require.NoError(t, s.Start())
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())

	assert.Eventually(t, func() bool {
		_, err := os.Stat(s.StatusPath())
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)

	ctx.Finish(core.RunSummary{Run: core.Run{ID: "m3"}, Ticks: 4})
	s.Stop()
	assert.False(t, s.IsRunning())
	s.Stop()

	data, err := os.ReadFile(s.StatusPath())
	require.NoError(t, err)
	var report Report
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, uint64(4), report.Run.Tick)
	assert.False(t, report.Run.Running)
}
