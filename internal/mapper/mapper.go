// Package mapper converts between geographic coordinates and H3 cells.
package mapper

import (
	"github.com/mohammed-shakir/sitrep-cache/internal/core/model"
)

type Interface interface {
	CellsForBBox(bb model.BBox, res int) (model.Cells, error)
	CellForPoint(lat, lon float64, res int) (string, error)
	CellCenter(cell string) (lat, lon float64, err error)
}
