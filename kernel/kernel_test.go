package kernel

import (
	"errors"
	"math"
	"testing"

	"github.com/STOA-tech/Parcels/field"
	"github.com/STOA-tech/Parcels/random"
)

// scripted returns standard normal draws from a fixed list.
type scripted struct {
	z []float64
	i int
}

func (s *scripted) Seed(int64)                  { s.i = 0 }
func (s *scripted) Uniform(a, b float64) float64 { return a }
func (s *scripted) Exponential(rate float64) (float64, error) {
	return 1 / rate, nil
}
func (s *scripted) VonMises(mu, kappa float64) (float64, error) { return mu, nil }
func (s *scripted) Normal(mean, stddev float64) (float64, error) {
	z := s.z[s.i%len(s.z)]
	s.i++
	return mean + stddev*z, nil
}

var _ random.Generator = (*scripted)(nil)

// linearFieldSet has Kh_zonal = 10 + 0.5*lon, Kh_meridional = 20 + 0.25*lat
// and a uniform flow (0.1, -0.2) on a flat mesh.
func linearFieldSet(t *testing.T) *field.FieldSet {
	t.Helper()
	g, err := field.NewUniformGrid(-100, 100, 201, -100, 100, 201, field.MeshFlat)
	if err != nil {
		t.Fatal(err)
	}
	fs := field.NewFieldSet(field.MeshFlat)
	kx, err := field.NewFieldFunc(field.NameKhZonal, g, func(lat, lon float64) float64 { return 10 + 0.5*lon })
	if err != nil {
		t.Fatal(err)
	}
	ky, err := field.NewFieldFunc(field.NameKhMeridional, g, func(lat, lon float64) float64 { return 20 + 0.25*lat })
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range []*field.Field{kx, ky} {
		if err := fs.AddField(f); err != nil {
			t.Fatal(err)
		}
	}
	fs.AddConstantField(field.NameU, 0.1)
	fs.AddConstantField(field.NameV, -0.2)
	fs.AddConstant(field.ConstDres, 1)
	return fs
}

func assertClose(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9*math.Max(1, math.Abs(want)) {
		t.Errorf("%s = %.12g, want %.12g", name, got, want)
	}
}

func TestOneStepFormulas(t *testing.T) {
	// dt = 4 so sqrt(dt) = 2: dWx = 3, dWy = -1.
	const dt = 4.0
	dWx, dWy := 3.0, -1.0

	tests := []struct {
		name    string
		k       Kernel
		lon     float64
		lat     float64
		wantLon float64
		wantLat float64
	}{
		{
			name:    "DiffusionUniformKh",
			k:       DiffusionUniformKh,
			wantLon: math.Sqrt(20) * dWx,
			wantLat: math.Sqrt(40) * dWy,
		},
		{
			name:    "AdvectionDiffusionEM",
			k:       AdvectionDiffusionEM,
			wantLon: (0.1+0.5)*dt + math.Sqrt(20)*dWx,
			wantLat: (-0.2+0.25)*dt + math.Sqrt(40)*dWy,
		},
		{
			name:    "AdvectionDiffusionM1",
			k:       AdvectionDiffusionM1,
			wantLon: 0.1*dt + 0.5*0.5*(dWx*dWx+dt) + math.Sqrt(20)*dWx,
			wantLat: -0.2*dt + 0.5*0.25*(dWy*dWy+dt) + math.Sqrt(40)*dWy,
		},
		{
			name:    "AdvectionEE",
			k:       AdvectionEE,
			wantLon: 0.1 * dt,
			wantLat: -0.2 * dt,
		},
	}

	fs := linearFieldSet(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Particle{ID: 1, Lon: tt.lon, Lat: tt.lat, Dt: dt}
			rng := &scripted{z: []float64{1.5, -0.5}}
			if err := Call(tt.k, p, fs, rng, 0); err != nil {
				t.Fatalf("kernel failed: %v", err)
			}
			assertClose(t, "lon", p.Lon, tt.wantLon)
			assertClose(t, "lat", p.Lat, tt.wantLat)
		})
	}
}

func TestMilsteinCorrectionOverEM(t *testing.T) {
	fs := linearFieldSet(t)
	const dt = 2.0
	for _, z := range []float64{-2, -0.3, 0, 0.7, 1.9} {
		em := &Particle{Dt: dt}
		m1 := &Particle{Dt: dt}
		if err := AdvectionDiffusionEM(em, fs, &scripted{z: []float64{z, z}}, 0); err != nil {
			t.Fatal(err)
		}
		if err := AdvectionDiffusionM1(m1, fs, &scripted{z: []float64{z, z}}, 0); err != nil {
			t.Fatal(err)
		}
		dW := z * math.Sqrt(dt)
		assertClose(t, "lon correction", m1.Lon-em.Lon, 0.5*0.5*(dW*dW-dt))
		assertClose(t, "lat correction", m1.Lat-em.Lat, 0.5*0.25*(dW*dW-dt))
	}
}

func TestSphericalConversion(t *testing.T) {
	fs := field.NewFieldSet(field.MeshSpherical)
	fs.AddConstantField(field.NameKhZonal, 100)
	fs.AddConstantField(field.NameKhMeridional, 50)

	p := &Particle{Lat: 60, Dt: 1}
	if err := DiffusionUniformKh(p, fs, &scripted{z: []float64{1, 1}}, 0); err != nil {
		t.Fatal(err)
	}
	assertClose(t, "lon", p.Lon, math.Sqrt(200)/(field.MetersPerDegree*0.5))
	assertClose(t, "lat", p.Lat, 60+math.Sqrt(100)/field.MetersPerDegree)
}

func TestOutOfDomainPropagates(t *testing.T) {
	fs := linearFieldSet(t)
	for name, k := range map[string]Kernel{
		"EM": AdvectionDiffusionEM,
		"M1": AdvectionDiffusionM1,
	} {
		// lon+dres falls outside the grid.
		p := &Particle{Lon: 99.5, Lat: 0, Dt: 1}
		err := Call(k, p, fs, &scripted{z: []float64{0.1}}, 0)
		if !errors.Is(err, field.ErrOutOfDomain) {
			t.Errorf("%s: expected ErrOutOfDomain, got %v", name, err)
		}
		if p.Lon != 99.5 || p.Lat != 0 {
			t.Errorf("%s: particle moved on error: (%v, %v)", name, p.Lon, p.Lat)
		}
	}

	p := &Particle{Lon: 150, Dt: 1}
	if err := Call(DiffusionUniformKh, p, fs, &scripted{z: []float64{1}}, 0); !errors.Is(err, field.ErrOutOfDomain) {
		t.Errorf("DiffusionUniformKh: expected ErrOutOfDomain, got %v", err)
	}
}

func TestNumericalInstability(t *testing.T) {
	fs := field.NewFieldSet(field.MeshFlat)
	fs.AddConstantField(field.NameKhZonal, -1)
	fs.AddConstantField(field.NameKhMeridional, 1)

	p := &Particle{ID: 9, Lon: 1, Lat: 2, Dt: 1}
	err := Call(DiffusionUniformKh, p, fs, &scripted{z: []float64{1}}, 0)
	if !errors.Is(err, ErrNumericalInstability) {
		t.Fatalf("expected ErrNumericalInstability, got %v", err)
	}
	var ie *InstabilityError
	if !errors.As(err, &ie) || ie.ID != 9 {
		t.Errorf("expected *InstabilityError for particle 9, got %v", err)
	}
	if p.Lon != 1 || p.Lat != 2 {
		t.Errorf("position not restored: (%v, %v)", p.Lon, p.Lat)
	}
}

func TestResolutionRequired(t *testing.T) {
	fs := field.NewFieldSet(field.MeshFlat)
	fs.AddConstantField(field.NameU, 0)
	fs.AddConstantField(field.NameV, 0)
	fs.AddConstantField(field.NameKhZonal, 1)
	fs.AddConstantField(field.NameKhMeridional, 1)

	p := &Particle{Dt: 1}
	if err := AdvectionDiffusionEM(p, fs, &scripted{z: []float64{0}}, 0); !errors.Is(err, ErrMissingConstant) {
		t.Errorf("expected ErrMissingConstant, got %v", err)
	}
	fs.AddConstant(field.ConstDres, 0)
	if err := AdvectionDiffusionM1(p, fs, &scripted{z: []float64{0}}, 0); !errors.Is(err, ErrInvalidResolution) {
		t.Errorf("expected ErrInvalidResolution, got %v", err)
	}
}

func TestInvalidParameterPropagates(t *testing.T) {
	fs := field.NewFieldSet(field.MeshFlat)
	fs.AddConstant("lambd", 0)
	p := &Particle{}
	err := RandomExponentialDepth("lambd")(p, fs, random.NewMT(1), 0)
	if !errors.Is(err, random.ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestAdvectionRK4SolidBody(t *testing.T) {
	g, err := field.NewUniformGrid(-100, 100, 21, -100, 100, 21, field.MeshFlat)
	if err != nil {
		t.Fatal(err)
	}
	const period = 1000.0
	omega := 2 * math.Pi / period
	fs := field.NewFieldSet(field.MeshFlat)
	u, err := field.NewFieldFunc(field.NameU, g, func(lat, lon float64) float64 { return -omega * lat })
	if err != nil {
		t.Fatal(err)
	}
	v, err := field.NewFieldFunc(field.NameV, g, func(lat, lon float64) float64 { return omega * lon })
	if err != nil {
		t.Fatal(err)
	}
	if err := fs.AddField(u); err != nil {
		t.Fatal(err)
	}
	if err := fs.AddField(v); err != nil {
		t.Fatal(err)
	}

	p := &Particle{Lon: 50, Lat: 0, Dt: 10}
	for step := 0; step < 100; step++ {
		if err := Call(AdvectionRK4, p, fs, nil, float64(step)*p.Dt); err != nil {
			t.Fatalf("step %d: %v", step, err)
		}
	}
	if math.Abs(p.Lon-50) > 1e-3 || math.Abs(p.Lat) > 1e-3 {
		t.Errorf("after one period particle at (%v, %v), want (50, 0)", p.Lon, p.Lat)
	}
}

func TestChainStopsOnDelete(t *testing.T) {
	calls := 0
	mark := func(p *Particle, _ field.Sampler, _ random.Generator, _ float64) error {
		calls++
		p.State = StateDelete
		return nil
	}
	never := func(p *Particle, _ field.Sampler, _ random.Generator, _ float64) error {
		t.Error("kernel after delete should not run")
		return nil
	}
	p := &Particle{}
	if err := Chain(mark, never)(p, nil, nil, 0); err != nil {
		t.Fatal(err)
	}
	if calls != 1 || p.State != StateDelete {
		t.Errorf("calls=%d state=%v", calls, p.State)
	}
}

func TestLookup(t *testing.T) {
	if _, err := Lookup("AdvectionRK4", "DiffusionUniformKh"); err != nil {
		t.Errorf("Lookup: %v", err)
	}
	if _, err := Lookup("Bogus"); !errors.Is(err, ErrUnknownKernel) {
		t.Errorf("expected ErrUnknownKernel, got %v", err)
	}
	if _, err := Lookup(); !errors.Is(err, ErrUnknownKernel) {
		t.Errorf("expected ErrUnknownKernel for empty list, got %v", err)
	}
	if len(Names()) != 5 {
		t.Errorf("Names() = %v", Names())
	}
}
