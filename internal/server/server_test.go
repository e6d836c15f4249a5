package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/citygrid/trafficsim/internal/layout"
	"github.com/citygrid/trafficsim/internal/sim"
	"github.com/citygrid/trafficsim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cell(x, y int) core.Coord { return core.Coord{X: x, Y: y} }

// lot 1 at (1,0) drives east along row 1 to lot 2 at (1,3)
func newTestServer(t *testing.T) (*Server, *sim.Simulation) {
	t.Helper()
	l := &layout.Layout{
		Size: 5,
		Buildings: []core.Coord{
			cell(0, 0), cell(2, 0), cell(0, 1), cell(2, 1), cell(0, 2), cell(2, 2),
		},
		ParkingLots: []core.Coord{cell(1, 0), cell(1, 3)},
		Streets:     layout.Streets{RightRows: []int{1}},
	}
	s, err := sim.New(l, sim.Config{RunID: "srv", Seed: 3, Vehicles: 1})
	require.NoError(t, err)
	return New(Dependencies{Sim: s}), s
}

func do(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthcheck(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv, http.MethodGet, "/healthcheck")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPositions_StepsUntilFinished(t *testing.T) {
	srv, s := newTestServer(t)

	want := []core.Coord{cell(1, 1), cell(1, 2), cell(1, 3)}
	for i, pos := range want {
		method := http.MethodGet
		if i%2 == 1 {
			method = http.MethodPost
		}
		w := do(t, srv, method, "/positions")
		require.Equal(t, http.StatusOK, w.Code)

		var got []core.Coord
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, pos, got[0], "request %d", i+1)
	}
	assert.False(t, s.Running())

	// once finished, polling no longer advances the clock
	w := do(t, srv, http.MethodPost, "/positions")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uint64(3), s.Tick())
	assert.JSONEq(t, `[{"x":1,"y":3}]`, w.Body.String())
}

func TestReadOnlyRoutesDoNotStep(t *testing.T) {
	srv, s := newTestServer(t)

	for _, path := range []string{"/vehicles", "/cells", "/semaphores", "/status", "/cells/1,0"} {
		w := do(t, srv, http.MethodGet, path)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
	assert.Equal(t, uint64(0), s.Tick())
}

func TestVehicles(t *testing.T) {
	srv, _ := newTestServer(t)
	do(t, srv, http.MethodPost, "/positions")

	w := do(t, srv, http.MethodGet, "/vehicles")
	require.Equal(t, http.StatusOK, w.Code)

	var vehicles []core.VehicleSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &vehicles))
	require.Len(t, vehicles, 1)
	assert.Equal(t, 1, vehicles[0].ID)
	assert.Equal(t, cell(1, 1), vehicles[0].Position)
	assert.Equal(t, core.StateExited, vehicles[0].State)
}

func TestCells(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv, http.MethodGet, "/cells")
	require.Equal(t, http.StatusOK, w.Code)

	var cells [][]core.Tag
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cells))
	require.Len(t, cells, 5)
	assert.Equal(t, core.TagVehicle, cells[1][0])
	assert.Equal(t, core.TagBuilding, cells[0][0])
}

func TestCell(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv, http.MethodGet, "/cells/0,0")
	require.Equal(t, http.StatusOK, w.Code)
	var resp CellResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, CellResponse{X: 0, Y: 0, Tag: core.TagBuilding}, resp)

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/cells/abc").Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/cells/9,9").Code)
}

func TestStatus(t *testing.T) {
	srv, _ := newTestServer(t)
	do(t, srv, http.MethodPost, "/positions")

	w := do(t, srv, http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, w.Code)

	var summary core.RunSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, "srv", summary.Run.ID)
	assert.Equal(t, uint64(1), summary.Ticks)
	assert.False(t, summary.Finished)
}

func TestShutdownWithoutListen(t *testing.T) {
	srv, _ := newTestServer(t)
	assert.NoError(t, srv.Shutdown(t.Context()))
}
