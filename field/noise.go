package field

import (
	"fmt"

	"github.com/ojrac/opensimplex-go"
)

// NoiseParams shapes a synthetic flow built from simplex noise.
type NoiseParams struct {
	Seed      int64
	Speed     float64   // typical velocity magnitude, m/s
	Scale     float64   // eddy size in mesh units
	TimeScale float64   // noise evolution per second of simulation time
	Times     []float64 // snapshot times; empty means one static snapshot
}

// NewNoiseFlow builds U and V fields from a simplex-noise stream function
// psi, with u = -dpsi/dy and v = dpsi/dx, so the flow is non-divergent up
// to discretization error.
func NewNoiseFlow(grid *Grid, p NoiseParams) (u, v *Field, err error) {
	if p.Scale <= 0 {
		return nil, nil, fmt.Errorf("%w: noise scale must be positive, got %g", ErrInvalidGrid, p.Scale)
	}
	times := p.Times
	if len(times) == 0 {
		times = []float64{0}
	}

	noise := opensimplex.New(p.Seed)
	nx, ny := grid.Size()
	mesh := grid.Mesh

	// psi amplitude so that |u| ~ Speed over one eddy.
	amp := p.Speed * p.Scale / mesh.MeridionalFactor()

	uData := make([][]float64, len(times))
	vData := make([][]float64, len(times))
	psi := make([]float64, nx*ny)
	for k, t := range times {
		z := t * p.TimeScale
		for j, lat := range grid.Lat {
			for i, lon := range grid.Lon {
				psi[j*nx+i] = amp * noise.Eval3(lon/p.Scale, lat/p.Scale, z)
			}
		}

		us := make([]float64, nx*ny)
		vs := make([]float64, nx*ny)
		for j := 0; j < ny; j++ {
			j0, j1 := clampPair(j, ny)
			dy := (grid.Lat[j1] - grid.Lat[j0]) / mesh.MeridionalFactor()
			zonal := mesh.ZonalFactor(grid.Lat[j])
			for i := 0; i < nx; i++ {
				i0, i1 := clampPair(i, nx)
				dx := (grid.Lon[i1] - grid.Lon[i0]) / zonal
				us[j*nx+i] = -(psi[j1*nx+i] - psi[j0*nx+i]) / dy
				vs[j*nx+i] = (psi[j*nx+i1] - psi[j*nx+i0]) / dx
			}
		}
		uData[k] = us
		vData[k] = vs
	}

	if u, err = NewField(NameU, grid, times, uData); err != nil {
		return nil, nil, err
	}
	if v, err = NewField(NameV, grid, times, vData); err != nil {
		return nil, nil, err
	}
	return u, v, nil
}

// clampPair returns the neighbours used for a central difference at i,
// one-sided at the edges.
func clampPair(i, n int) (lo, hi int) {
	lo, hi = i-1, i+1
	if lo < 0 {
		lo = 0
	}
	if hi > n-1 {
		hi = n - 1
	}
	return lo, hi
}
