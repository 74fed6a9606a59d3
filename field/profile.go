package field

import "math"

// TanhProfile returns a diffusivity that rises smoothly across the zonal
// axis, from base at lon = -lonMax to base+2*amplitude at lon = lonMax:
//
//	K(lon) = base + amplitude*(1 + tanh(sharpness*lon/lonMax))
//
// It is constant in latitude.
func TanhProfile(base, amplitude, sharpness, lonMax float64) func(lat, lon float64) float64 {
	return func(_, lon float64) float64 {
		return base + amplitude*(1+math.Tanh(sharpness*lon/lonMax))
	}
}

// AddDiffusivity adds constant Kh_zonal and Kh_meridional fields.
func (fs *FieldSet) AddDiffusivity(khZonal, khMeridional float64) {
	fs.AddConstantField(NameKhZonal, khZonal)
	fs.AddConstantField(NameKhMeridional, khMeridional)
}

// AddDiffusivityFunc adds Kh_zonal and Kh_meridional fields sampled from
// functions on grid, and sets dres to the zonal grid spacing unless it is
// already set.
func (fs *FieldSet) AddDiffusivityFunc(grid *Grid, zonal, meridional func(lat, lon float64) float64) error {
	kx, err := NewFieldFunc(NameKhZonal, grid, zonal)
	if err != nil {
		return err
	}
	ky, err := NewFieldFunc(NameKhMeridional, grid, meridional)
	if err != nil {
		return err
	}
	if err := fs.AddField(kx); err != nil {
		return err
	}
	if err := fs.AddField(ky); err != nil {
		return err
	}
	if _, ok := fs.Constant(ConstDres); !ok {
		dlon, _ := grid.Spacing()
		fs.AddConstant(ConstDres, dlon)
	}
	return nil
}
