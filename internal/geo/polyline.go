package geo

import (
	"fmt"

	"github.com/citygrid/trafficsim/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// Path joins the centres of cells into a line string.
func (p Projector) Path(cells []core.Coord) (geom.LineString, error) {
	if len(cells) < 2 {
		return geom.LineString{}, fmt.Errorf("path must have at least 2 cells, got %d", len(cells))
	}

	flatCoords := make([]float64, 0, len(cells)*2)
	for _, c := range cells {
		xy := p.centerXY(c)
		flatCoords = append(flatCoords, xy.X, xy.Y)
	}

	seq := geom.NewSequence(flatCoords, geom.DimXY)
	return geom.NewLineString(seq), nil
}
