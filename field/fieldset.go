package field

import (
	"fmt"
	"sort"
)

// Names of the fields the built-in kernels sample.
const (
	NameU            = "U"
	NameV            = "V"
	NameKhZonal      = "Kh_zonal"
	NameKhMeridional = "Kh_meridional"

	// ConstDres is the finite-difference half-width for gradients, in mesh units.
	ConstDres = "dres"
)

// Sampler is what kernels need from the field collaborator.
type Sampler interface {
	Mesh() Mesh
	Sample(name string, time, depth, lat, lon float64) (float64, error)
	UV(time, depth, lat, lon float64) (u, v float64, err error)
	Constant(name string) (float64, bool)
}

// FieldSet groups named fields and constants that share one mesh.
// It is read-only once execution starts.
type FieldSet struct {
	mesh      Mesh
	fields    map[string]*Field
	constants map[string]float64
}

// NewFieldSet creates an empty FieldSet for the given mesh.
func NewFieldSet(mesh Mesh) *FieldSet {
	return &FieldSet{
		mesh:      mesh,
		fields:    make(map[string]*Field),
		constants: make(map[string]float64),
	}
}

// AddField adds or replaces a field. The field's mesh must match.
func (fs *FieldSet) AddField(f *Field) error {
	if f.Mesh() != fs.mesh {
		return fmt.Errorf("%w: field %s is %s, fieldset is %s", ErrMeshMismatch, f.Name, f.Mesh(), fs.mesh)
	}
	fs.fields[f.Name] = f
	return nil
}

// AddConstantField adds a field with one value everywhere.
func (fs *FieldSet) AddConstantField(name string, value float64) {
	fs.fields[name] = NewConstantField(name, value, fs.mesh)
}

// AddConstant sets a named scalar constant.
func (fs *FieldSet) AddConstant(name string, value float64) {
	fs.constants[name] = value
}

// Field returns a field by name.
func (fs *FieldSet) Field(name string) (*Field, bool) {
	f, ok := fs.fields[name]
	return f, ok
}

// Names returns the sorted field names.
func (fs *FieldSet) Names() []string {
	names := make([]string, 0, len(fs.fields))
	for name := range fs.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (fs *FieldSet) Mesh() Mesh { return fs.mesh }

func (fs *FieldSet) Sample(name string, time, depth, lat, lon float64) (float64, error) {
	f, ok := fs.fields[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	return f.Sample(time, depth, lat, lon)
}

// UV samples the velocity pair in m/s.
func (fs *FieldSet) UV(time, depth, lat, lon float64) (u, v float64, err error) {
	u, err = fs.Sample(NameU, time, depth, lat, lon)
	if err != nil {
		return 0, 0, err
	}
	v, err = fs.Sample(NameV, time, depth, lat, lon)
	if err != nil {
		return 0, 0, err
	}
	return u, v, nil
}

func (fs *FieldSet) Constant(name string) (float64, bool) {
	v, ok := fs.constants[name]
	return v, ok
}

// AddZeroFlow adds U and V fields that are zero over grid.
func (fs *FieldSet) AddZeroFlow(grid *Grid) error {
	nx, ny := grid.Size()
	for _, name := range []string{NameU, NameV} {
		f, err := NewStaticField(name, grid, make([]float64, nx*ny))
		if err != nil {
			return err
		}
		if err := fs.AddField(f); err != nil {
			return err
		}
	}
	return nil
}
