// Package field implements the sampling contract the kernels consume:
// named scalar fields on rectilinear grids, bilinear in space and linear in
// time, grouped into a FieldSet with a shared mesh and named constants.
package field

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Grid is a rectilinear lon/lat grid. Axes are strictly increasing.
type Grid struct {
	Lon  []float64
	Lat  []float64
	Mesh Mesh
}

// NewGrid validates the axes and returns a grid.
func NewGrid(lon, lat []float64, mesh Mesh) (*Grid, error) {
	if err := checkAxis("lon", lon); err != nil {
		return nil, err
	}
	if err := checkAxis("lat", lat); err != nil {
		return nil, err
	}
	return &Grid{Lon: lon, Lat: lat, Mesh: mesh}, nil
}

// NewUniformGrid builds a grid with nx and ny evenly spaced nodes spanning
// [lonMin, lonMax] and [latMin, latMax].
func NewUniformGrid(lonMin, lonMax float64, nx int, latMin, latMax float64, ny int, mesh Mesh) (*Grid, error) {
	if nx < 2 || ny < 2 {
		return nil, fmt.Errorf("%w: need at least 2x2 nodes, got %dx%d", ErrInvalidGrid, nx, ny)
	}
	lon := make([]float64, nx)
	lat := make([]float64, ny)
	floats.Span(lon, lonMin, lonMax)
	floats.Span(lat, latMin, latMax)
	return NewGrid(lon, lat, mesh)
}

func checkAxis(name string, xs []float64) error {
	if len(xs) < 2 {
		return fmt.Errorf("%w: %s axis needs at least 2 nodes", ErrInvalidGrid, name)
	}
	if floats.HasNaN(xs) {
		return fmt.Errorf("%w: %s axis contains NaN", ErrInvalidGrid, name)
	}
	for i := 1; i < len(xs); i++ {
		if xs[i] <= xs[i-1] {
			return fmt.Errorf("%w: %s axis not strictly increasing at %d", ErrInvalidGrid, name, i)
		}
	}
	return nil
}

// Size returns the number of nodes along lon and lat.
func (g *Grid) Size() (nx, ny int) {
	return len(g.Lon), len(g.Lat)
}

// Spacing returns the first lon and lat intervals.
func (g *Grid) Spacing() (dlon, dlat float64) {
	return g.Lon[1] - g.Lon[0], g.Lat[1] - g.Lat[0]
}

// Contains reports whether (lon, lat) lies inside the grid, edges included.
func (g *Grid) Contains(lat, lon float64) bool {
	_, _, ok1 := locate(g.Lon, lon)
	_, _, ok2 := locate(g.Lat, lat)
	return ok1 && ok2
}

// locate returns the cell index i and the fraction w such that
// x = xs[i] + w*(xs[i+1]-xs[i]).
func locate(xs []float64, x float64) (i int, w float64, ok bool) {
	n := len(xs)
	if !(x >= xs[0] && x <= xs[n-1]) {
		return 0, 0, false
	}
	i = sort.SearchFloat64s(xs, x) - 1
	if i < 0 {
		i = 0
	}
	if i > n-2 {
		i = n - 2
	}
	w = (x - xs[i]) / (xs[i+1] - xs[i])
	return i, w, true
}
