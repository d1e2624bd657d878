// Package model defines core domain types shared across the service.
package model

import "fmt"

// BBox is a lon/lat rectangle: X is longitude, Y is latitude.
type BBox struct {
	X1, Y1 float64
	X2, Y2 float64
	SRID   string
}

// String representation matching the FIRMS area format (west,south,east,north)
func (b BBox) String() string {
	return fmt.Sprintf("%.4f,%.4f,%.4f,%.4f", b.X1, b.Y1, b.X2, b.Y2)
}

func (b BBox) Contains(lat, lon float64) bool {
	return lon >= b.X1 && lon <= b.X2 && lat >= b.Y1 && lat <= b.Y2
}

type Cells []string
