// Package scenario builds a field set and a particle release from a run
// configuration.
package scenario

import (
	"fmt"
	"math"

	"github.com/STOA-tech/Parcels/config"
	"github.com/STOA-tech/Parcels/field"
	"github.com/STOA-tech/Parcels/particles"
	"github.com/STOA-tech/Parcels/random"
	"github.com/STOA-tech/Parcels/telemetry"
)

// noiseSnapshots is the number of flow snapshots for a time-varying noise flow.
const noiseSnapshots = 5

// Scenario is everything a run needs besides the kernel.
type Scenario struct {
	Grid      *field.Grid
	FieldSet  *field.FieldSet
	Particles *particles.Set
	Streams   *random.Streams

	// Start is the simulation time the run begins at. Step and Deleted are
	// the counters of the run a snapshot was taken from.
	Start   float64
	Step    int
	Deleted int
}

// Build creates the grid and fields described by cfg and releases its
// particles at time zero.
func Build(cfg *config.Config) (*Scenario, error) {
	grid, err := NewGrid(cfg)
	if err != nil {
		return nil, err
	}
	fs, err := NewFieldSet(cfg, grid, 0)
	if err != nil {
		return nil, err
	}
	set, err := Release(cfg)
	if err != nil {
		return nil, err
	}
	return &Scenario{
		Grid:      grid,
		FieldSet:  fs,
		Particles: set,
		Streams:   random.NewStreams(cfg.Derived.Backend, cfg.Run.Seed),
	}, nil
}

// Resume continues the run captured in snap for another run.runtime. The
// fields span the new leg, and the particle streams are derived from the
// seed and the snapshot step so the second leg does not repeat the draws of
// the first.
func Resume(cfg *config.Config, snap *telemetry.Snapshot) (*Scenario, error) {
	if snap.Mesh != cfg.Derived.Mesh.String() {
		return nil, fmt.Errorf("scenario: snapshot mesh %s does not match config mesh %s", snap.Mesh, cfg.Derived.Mesh)
	}
	grid, err := NewGrid(cfg)
	if err != nil {
		return nil, err
	}
	fs, err := NewFieldSet(cfg, grid, snap.Time)
	if err != nil {
		return nil, err
	}
	set, err := snap.Restore()
	if err != nil {
		return nil, err
	}
	seed := random.ContinuationSeed(cfg.Run.Seed, snap.Step)
	return &Scenario{
		Grid:      grid,
		FieldSet:  fs,
		Particles: set,
		Streams:   random.NewStreams(cfg.Derived.Backend, seed),
		Start:     snap.Time,
		Step:      snap.Step,
		Deleted:   snap.Deleted,
	}, nil
}

// End returns the simulation time the run stops at.
func (sc *Scenario) End(cfg *config.Config) float64 {
	return sc.Start + math.Copysign(cfg.Run.Runtime, cfg.Run.Dt)
}

// NewGrid returns a uniform grid extending grid.extent meters either side
// of the release point.
func NewGrid(cfg *config.Config) (*field.Grid, error) {
	mesh := cfg.Derived.Mesh
	p := cfg.Particles
	halfLon := cfg.Grid.Extent * mesh.ZonalFactor(p.StartLat)
	halfLat := cfg.Grid.Extent * mesh.MeridionalFactor()
	grid, err := field.NewUniformGrid(
		p.StartLon-halfLon, p.StartLon+halfLon, cfg.Grid.XDim,
		p.StartLat-halfLat, p.StartLat+halfLat, cfg.Grid.YDim,
		mesh,
	)
	if err != nil {
		return nil, fmt.Errorf("scenario: %w", err)
	}
	return grid, nil
}

// NewFieldSet adds the flow, diffusivity and dres to a field set on grid,
// for a run starting at simulation time start.
func NewFieldSet(cfg *config.Config, grid *field.Grid, start float64) (*field.FieldSet, error) {
	fs := field.NewFieldSet(cfg.Derived.Mesh)

	switch cfg.Flow.Kind {
	case "noise":
		halfLat := (grid.Lat[len(grid.Lat)-1] - grid.Lat[0]) / 2
		u, v, err := field.NewNoiseFlow(grid, field.NoiseParams{
			Seed:      cfg.Flow.Seed,
			Speed:     cfg.Flow.Speed,
			Scale:     cfg.Flow.Scale * 2 * halfLat,
			TimeScale: cfg.Flow.TimeScale,
			Times:     noiseTimes(cfg, start),
		})
		if err != nil {
			return nil, fmt.Errorf("scenario: noise flow: %w", err)
		}
		if err := fs.AddField(u); err != nil {
			return nil, err
		}
		if err := fs.AddField(v); err != nil {
			return nil, err
		}
	default:
		if err := fs.AddZeroFlow(grid); err != nil {
			return nil, err
		}
	}

	if cfg.Grid.Dres > 0 {
		fs.AddConstant(field.ConstDres, cfg.Grid.Dres)
	}

	d := cfg.Diffusion
	switch d.Profile {
	case "tanh":
		lonMax := (grid.Lon[len(grid.Lon)-1] - grid.Lon[0]) / 2
		center := grid.Lon[0] + lonMax
		zonal := field.TanhProfile(d.KhZonal, d.Amplitude, d.Sharpness, lonMax)
		meridional := field.TanhProfile(d.KhMeridional, d.Amplitude, d.Sharpness, lonMax)
		err := fs.AddDiffusivityFunc(grid,
			func(lat, lon float64) float64 { return zonal(lat, lon-center) },
			func(lat, lon float64) float64 { return meridional(lat, lon-center) },
		)
		if err != nil {
			return nil, fmt.Errorf("scenario: diffusivity: %w", err)
		}
	default:
		fs.AddDiffusivity(d.KhZonal, d.KhMeridional)
		if _, ok := fs.Constant(field.ConstDres); !ok {
			dlon, _ := grid.Spacing()
			fs.AddConstant(field.ConstDres, dlon)
		}
	}
	return fs, nil
}

// noiseTimes spans [start, start+runtime] (backwards for negative dt) with
// evenly spaced increasing snapshot times, or returns nil for a frozen flow.
func noiseTimes(cfg *config.Config, start float64) []float64 {
	if cfg.Flow.TimeScale == 0 {
		return nil
	}
	lo, hi := start, start+cfg.Run.Runtime
	if cfg.Run.Dt < 0 {
		lo, hi = start-cfg.Run.Runtime, start
	}
	times := make([]float64, noiseSnapshots)
	for i := range times {
		times[i] = lo + (hi-lo)*float64(i)/float64(noiseSnapshots-1)
	}
	times[noiseSnapshots-1] = hi
	return times
}

// Release creates the particle set. With a positive spread, particles are
// placed uniformly in a disc of that radius (meters) around the start point,
// drawn from a stream seeded by run.seed.
func Release(cfg *config.Config) (*particles.Set, error) {
	p := cfg.Particles
	n := p.Count
	lons := make([]float64, n)
	lats := make([]float64, n)

	rng := random.New(cfg.Derived.Backend, cfg.Run.Seed)
	mesh := cfg.Derived.Mesh
	cz, cm := mesh.ZonalFactor(p.StartLat), mesh.MeridionalFactor()
	for i := 0; i < n; i++ {
		lons[i], lats[i] = p.StartLon, p.StartLat
		if p.Spread <= 0 {
			continue
		}
		r := p.Spread * math.Sqrt(rng.Uniform(0, 1))
		theta := rng.Uniform(0, 2*math.Pi)
		lons[i] += r * math.Cos(theta) * cz
		lats[i] += r * math.Sin(theta) * cm
	}

	set := particles.New()
	if err := set.AddMany(lons, lats, p.Depth, 0); err != nil {
		return nil, err
	}
	return set, nil
}
