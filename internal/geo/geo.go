package geo

import (
	"errors"
	"strconv"
	"strings"

	"github.com/citygrid/trafficsim/internal/config"
	"github.com/citygrid/trafficsim/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// GEO POINTS
// Cell positions are always stored as 3857 so that a stored run can be drawn on a web map
// and SQLite, which has no spatial awareness, can still round-trip the WKB.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Projector places grid cells on the map. Rows grow southwards, columns eastwards.
type Projector struct {
	originX  float64 // 3857 metres, north-west corner of cell (0,0)
	originY  float64
	cellSize float64
}

// NewProjector builds a projector for the configured origin and cell size.
func NewProjector(cfg config.GeoConfig) Projector {
	origin := Coords3857From4326(cfg.OriginLon, cfg.OriginLat)
	xy, _ := origin.XY()
	size := cfg.CellSize
	if size <= 0 {
		size = 1
	}
	return Projector{originX: xy.X, originY: xy.Y, cellSize: size}
}

// CellCenter returns the 3857 centre of c.
func (p Projector) CellCenter(c core.Coord) geom.Point {
	return geom.NewPoint(geom.Coordinates{XY: p.centerXY(c)})
}

func (p Projector) centerXY(c core.Coord) geom.XY {
	return geom.XY{
		X: p.originX + (float64(c.Y)+0.5)*p.cellSize,
		Y: p.originY - (float64(c.X)+0.5)*p.cellSize,
	}
}

// LonLat returns the WGS84 longitude and latitude of the centre of c.
func (p Projector) LonLat(c core.Coord) (lon, lat float64) {
	xy := p.centerXY(c)
	f := wgs84.EPSG().Transform(3857, 4326)
	lon, lat, _ = f(xy.X, xy.Y, 0)
	return lon, lat
}

// Coords3857From4326 creates a map point from a longitude and latitude
func Coords3857From4326(longitude, latitude float64) geom.Point {
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ := f(longitude, latitude, 0)
	return geom.NewPoint(
		geom.Coordinates{
			XY: geom.XY{X: x, Y: y},
		},
	)
}

// ParseCoord parses a "row,col" string into a grid coordinate.
func ParseCoord(s string) (core.Coord, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return core.Coord{}, ErrInvalidCoordinates
	}
	x, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return core.Coord{}, ErrInvalidCoordinates
	}
	y, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return core.Coord{}, ErrInvalidCoordinates
	}
	return core.Coord{X: x, Y: y}, nil
}
