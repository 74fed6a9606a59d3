// Package kernel holds the per-particle integration kernels: a uniform
// random walk, Euler-Maruyama and Milstein advection-diffusion, and
// deterministic advection schemes.
//
// A kernel updates one particle in place from field samples and draws from
// that particle's generator. Kernels keep no state between calls.
package kernel

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/STOA-tech/Parcels/field"
	"github.com/STOA-tech/Parcels/random"
)

var (
	// ErrNumericalInstability is returned when a kernel produces a
	// non-finite position.
	ErrNumericalInstability = errors.New("kernel: numerical instability")

	// ErrMissingConstant is returned when a required FieldSet constant is unset.
	ErrMissingConstant = errors.New("kernel: missing fieldset constant")

	// ErrInvalidResolution is returned for a non-positive or non-finite dres.
	ErrInvalidResolution = errors.New("kernel: invalid gradient resolution")

	// ErrUnknownKernel is returned by Lookup for unregistered names.
	ErrUnknownKernel = errors.New("kernel: unknown kernel")
)

// InstabilityError records the non-finite position a kernel produced.
type InstabilityError struct {
	ID       uint64
	Time     float64
	Lon, Lat float64
	Depth    float64
}

func (e *InstabilityError) Error() string {
	return fmt.Sprintf("kernel: particle %d at time %g: non-finite position (lon=%g, lat=%g, depth=%g)",
		e.ID, e.Time, e.Lon, e.Lat, e.Depth)
}

func (e *InstabilityError) Unwrap() error {
	return ErrNumericalInstability
}

// State is a particle's status after kernel evaluation.
type State uint8

const (
	StateEvaluate State = iota
	StateSuccess
	StateDelete
	StateError
)

// Particle is the kernel's view of one particle.
type Particle struct {
	ID    uint64
	Lon   float64
	Lat   float64
	Depth float64
	Time  float64
	Dt    float64
	Vars  []float64 // user variables, indexed by the particle set's schema
	State State
}

// Kernel advances one particle. time is the particle's current time.
type Kernel func(p *Particle, fs field.Sampler, rng random.Generator, time float64) error

// Call runs k and rejects non-finite results, restoring the particle's
// previous position in that case.
func Call(k Kernel, p *Particle, fs field.Sampler, rng random.Generator, time float64) error {
	lon, lat, depth := p.Lon, p.Lat, p.Depth
	if err := k(p, fs, rng, time); err != nil {
		return err
	}
	if !finite(p.Lon) || !finite(p.Lat) || !finite(p.Depth) {
		err := &InstabilityError{ID: p.ID, Time: time, Lon: p.Lon, Lat: p.Lat, Depth: p.Depth}
		p.Lon, p.Lat, p.Depth = lon, lat, depth
		return err
	}
	return nil
}

// Chain runs kernels in order, stopping at the first error or when a kernel
// marks the particle for deletion.
func Chain(ks ...Kernel) Kernel {
	return func(p *Particle, fs field.Sampler, rng random.Generator, time float64) error {
		for _, k := range ks {
			if err := k(p, fs, rng, time); err != nil {
				return err
			}
			if p.State == StateDelete {
				return nil
			}
		}
		return nil
	}
}

var builtin = map[string]Kernel{
	"DiffusionUniformKh":   DiffusionUniformKh,
	"AdvectionDiffusionEM": AdvectionDiffusionEM,
	"AdvectionDiffusionM1": AdvectionDiffusionM1,
	"AdvectionEE":          AdvectionEE,
	"AdvectionRK4":         AdvectionRK4,
}

// Names returns the registered kernel names, sorted.
func Names() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup chains the named built-in kernels.
func Lookup(names ...string) (Kernel, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: empty kernel list", ErrUnknownKernel)
	}
	ks := make([]Kernel, 0, len(names))
	for _, name := range names {
		k, ok := builtin[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q (have %s)", ErrUnknownKernel, name, strings.Join(Names(), ", "))
		}
		ks = append(ks, k)
	}
	if len(ks) == 1 {
		return ks[0], nil
	}
	return Chain(ks...), nil
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
