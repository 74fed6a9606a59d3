package field

import "fmt"

// Field is a named scalar on a grid, with one or more time snapshots.
// Depth is accepted by Sample but fields are two-dimensional.
type Field struct {
	Name string

	grid  *Grid
	times []float64
	data  [][]float64 // per snapshot, row-major [j*nx+i]

	constant bool
	value    float64
	mesh     Mesh
}

// NewField creates a time-varying field. times must be strictly increasing
// and each snapshot must hold nx*ny values indexed [j*nx+i] for lat j, lon i.
func NewField(name string, grid *Grid, times []float64, data [][]float64) (*Field, error) {
	if grid == nil {
		return nil, fmt.Errorf("%w: %s: nil grid", ErrInvalidGrid, name)
	}
	if len(times) == 0 || len(times) != len(data) {
		return nil, fmt.Errorf("%w: %s: %d times for %d snapshots", ErrInvalidGrid, name, len(times), len(data))
	}
	if len(times) > 1 {
		if err := checkAxis("time", times); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	nx, ny := grid.Size()
	for k, snap := range data {
		if len(snap) != nx*ny {
			return nil, fmt.Errorf("%w: %s: snapshot %d has %d values, want %d", ErrInvalidGrid, name, k, len(snap), nx*ny)
		}
	}
	return &Field{Name: name, grid: grid, times: times, data: data, mesh: grid.Mesh}, nil
}

// NewStaticField creates a time-invariant field.
func NewStaticField(name string, grid *Grid, data []float64) (*Field, error) {
	return NewField(name, grid, []float64{0}, [][]float64{data})
}

// NewConstantField creates a field with the same value everywhere and at
// all times. It never reports out-of-domain.
func NewConstantField(name string, value float64, mesh Mesh) *Field {
	return &Field{Name: name, constant: true, value: value, mesh: mesh}
}

// NewFieldFunc fills a static field by evaluating fn at every grid node.
func NewFieldFunc(name string, grid *Grid, fn func(lat, lon float64) float64) (*Field, error) {
	nx, ny := grid.Size()
	data := make([]float64, nx*ny)
	for j, lat := range grid.Lat {
		for i, lon := range grid.Lon {
			data[j*nx+i] = fn(lat, lon)
		}
	}
	return NewStaticField(name, grid, data)
}

// Mesh returns the mesh of the field's grid.
func (f *Field) Mesh() Mesh { return f.mesh }

// Grid returns the field's grid, nil for constant fields.
func (f *Field) Grid() *Grid { return f.grid }

// Sample interpolates the field at a point.
func (f *Field) Sample(time, depth, lat, lon float64) (float64, error) {
	if f.constant {
		return f.value, nil
	}

	i, wx, okx := locate(f.grid.Lon, lon)
	j, wy, oky := locate(f.grid.Lat, lat)
	if !okx || !oky {
		return 0, f.outOfDomain(time, depth, lat, lon)
	}

	if len(f.times) == 1 {
		return f.bilinear(0, i, j, wx, wy), nil
	}

	k, wt, okt := locate(f.times, time)
	if !okt {
		return 0, f.outOfDomain(time, depth, lat, lon)
	}
	v0 := f.bilinear(k, i, j, wx, wy)
	if wt == 0 {
		return v0, nil
	}
	v1 := f.bilinear(k+1, i, j, wx, wy)
	return v0 + wt*(v1-v0), nil
}

func (f *Field) bilinear(k, i, j int, wx, wy float64) float64 {
	nx := len(f.grid.Lon)
	d := f.data[k]
	v00 := d[j*nx+i]
	v10 := d[j*nx+i+1]
	v01 := d[(j+1)*nx+i]
	v11 := d[(j+1)*nx+i+1]
	return (1-wy)*((1-wx)*v00+wx*v10) + wy*((1-wx)*v01+wx*v11)
}

func (f *Field) outOfDomain(time, depth, lat, lon float64) error {
	return &OutOfDomainError{Field: f.Name, Time: time, Depth: depth, Lat: lat, Lon: lon}
}
