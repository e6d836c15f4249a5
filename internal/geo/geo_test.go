package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/citygrid/trafficsim/internal/config"
	"github.com/citygrid/trafficsim/pkg/core"
)

const tolerance = 1e-6

func nearly(a, b float64) bool {
	return math.Abs(a-b) < tolerance
}

func TestCoords3857From4326_Origin(t *testing.T) {
	point := Coords3857From4326(0, 0)

	xy, ok := point.XY()
	if !ok {
		t.Fatal("expected non-empty point")
	}
	if !nearly(xy.X, 0) || !nearly(xy.Y, 0) {
		t.Errorf("expected (0,0), got (%f,%f)", xy.X, xy.Y)
	}
}

func TestCoords3857From4326_EastIsPositive(t *testing.T) {
	point := Coords3857From4326(10, 10)

	xy, ok := point.XY()
	if !ok {
		t.Fatal("expected non-empty point")
	}
	if xy.X <= 0 || xy.Y <= 0 {
		t.Errorf("expected positive metres, got (%f,%f)", xy.X, xy.Y)
	}
}

func TestProjector_CellCenter(t *testing.T) {
	p := NewProjector(config.GeoConfig{CellSize: 10})

	tests := []struct {
		cell  core.Coord
		wantX float64
		wantY float64
	}{
		{core.Coord{X: 0, Y: 0}, 5, -5},
		{core.Coord{X: 2, Y: 3}, 35, -25},
		{core.Coord{X: 23, Y: 0}, 5, -235},
	}

	for _, tt := range tests {
		t.Run(tt.cell.String(), func(t *testing.T) {
			xy, ok := p.CellCenter(tt.cell).XY()
			if !ok {
				t.Fatal("expected non-empty point")
			}
			if !nearly(xy.X, tt.wantX) || !nearly(xy.Y, tt.wantY) {
				t.Errorf("expected (%f,%f), got (%f,%f)", tt.wantX, tt.wantY, xy.X, xy.Y)
			}
		})
	}
}

func TestProjector_ZeroCellSizeFallsBack(t *testing.T) {
	p := NewProjector(config.GeoConfig{})

	xy, _ := p.CellCenter(core.Coord{X: 1, Y: 1}).XY()
	if !nearly(xy.X, 1.5) || !nearly(xy.Y, -1.5) {
		t.Errorf("expected unit cells, got (%f,%f)", xy.X, xy.Y)
	}
}

func TestProjector_LonLatRoundTrip(t *testing.T) {
	p := NewProjector(config.GeoConfig{OriginLon: -99.1332, OriginLat: 19.4326, CellSize: 10})

	lon, lat := p.LonLat(core.Coord{X: 0, Y: 0})
	if math.Abs(lon-(-99.1332)) > 0.001 || math.Abs(lat-19.4326) > 0.001 {
		t.Errorf("expected cell (0,0) near origin, got (%f,%f)", lon, lat)
	}

	lon2, lat2 := p.LonLat(core.Coord{X: 10, Y: 10})
	if lon2 <= lon {
		t.Errorf("expected later columns further east: %f <= %f", lon2, lon)
	}
	if lat2 >= lat {
		t.Errorf("expected later rows further south: %f >= %f", lat2, lat)
	}
}

func TestProjector_Path(t *testing.T) {
	p := NewProjector(config.GeoConfig{CellSize: 2})

	ls, err := p.Path([]core.Coord{{X: 0, Y: 0}, {X: 0, Y: 1}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seq := ls.Coordinates()
	if seq.Length() != 2 {
		t.Fatalf("expected 2 points, got %d", seq.Length())
	}
	if got := seq.GetXY(1); !nearly(got.X, 3) || !nearly(got.Y, -1) {
		t.Errorf("expected (3,-1), got (%f,%f)", got.X, got.Y)
	}
}

func TestProjector_PathTooShort(t *testing.T) {
	p := NewProjector(config.GeoConfig{CellSize: 2})

	if _, err := p.Path([]core.Coord{{X: 0, Y: 0}}); err == nil {
		t.Fatal("expected error for single cell path")
	}
}

func TestParseCoord(t *testing.T) {
	tests := []struct {
		input   string
		want    core.Coord
		wantErr bool
	}{
		{"3,4", core.Coord{X: 3, Y: 4}, false},
		{" 12 , 0 ", core.Coord{X: 12, Y: 0}, false},
		{"3", core.Coord{}, true},
		{"a,4", core.Coord{}, true},
		{"3,b", core.Coord{}, true},
		{"1,2,3", core.Coord{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCoord(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCoordinates) {
					t.Fatalf("expected ErrInvalidCoordinates, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
