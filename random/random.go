// Package random provides seeded, reproducible scalar draws from the
// distributions used by the particle kernels.
//
// Two engines implement Generator. The MT engine reproduces the reference
// stream (Mersenne Twister with the reference sampling algorithms); the PCG
// engine drives gonum distributions from a math/rand/v2 PCG source. Both draw
// from the same distributions with the same parameterizations. Their streams
// differ bit for bit but converge to the same statistics.
package random

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidParameter is returned for malformed distribution parameters.
var ErrInvalidParameter = errors.New("random: invalid distribution parameter")

// ParamError describes which distribution parameter was rejected.
type ParamError struct {
	Dist  string
	Param string
	Value float64
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("random: %s: invalid %s %v", e.Dist, e.Param, e.Value)
}

func (e *ParamError) Unwrap() error {
	return ErrInvalidParameter
}

// Generator is the draw surface exposed to kernels.
// Implementations are not safe for concurrent use.
type Generator interface {
	// Seed resets the generator. Subsequent draws are a pure function of
	// seed and call order.
	Seed(seed int64)

	// Uniform returns a value in [a, b).
	Uniform(a, b float64) float64

	// Normal returns a Gaussian draw with the given mean and standard deviation.
	Normal(mean, stddev float64) (float64, error)

	// Exponential returns a draw with the given rate (mean 1/rate).
	Exponential(rate float64) (float64, error)

	// VonMises returns an angle in [0, 2pi) with mean direction mu and
	// concentration kappa.
	VonMises(mu, kappa float64) (float64, error)
}

// Backend selects a generator engine.
type Backend uint8

const (
	// BackendMT is the reference Mersenne Twister stream.
	BackendMT Backend = iota
	// BackendPCG is the PCG stream driving gonum distributions.
	BackendPCG
)

var backendNames = map[Backend]string{
	BackendMT:  "mt19937",
	BackendPCG: "pcg",
}

// Backends lists every engine, in declaration order.
func Backends() []Backend {
	return []Backend{BackendMT, BackendPCG}
}

func (b Backend) String() string {
	if name, ok := backendNames[b]; ok {
		return name
	}
	return fmt.Sprintf("Backend(%d)", uint8(b))
}

// ParseBackend maps a config name to a Backend.
func ParseBackend(name string) (Backend, error) {
	for b, n := range backendNames {
		if n == name {
			return b, nil
		}
	}
	return 0, fmt.Errorf("random: unknown backend %q", name)
}

// New returns a generator of the given backend seeded with seed.
func New(b Backend, seed int64) Generator {
	switch b {
	case BackendPCG:
		return NewPCG(seed)
	default:
		return NewMT(seed)
	}
}

func checkNormal(mean, stddev float64) error {
	if math.IsNaN(mean) {
		return &ParamError{Dist: "normal", Param: "mean", Value: mean}
	}
	if stddev < 0 || math.IsNaN(stddev) {
		return &ParamError{Dist: "normal", Param: "stddev", Value: stddev}
	}
	return nil
}

func checkExponential(rate float64) error {
	if !(rate > 0) {
		return &ParamError{Dist: "exponential", Param: "rate", Value: rate}
	}
	return nil
}

func checkVonMises(mu, kappa float64) error {
	if math.IsNaN(mu) || math.IsInf(mu, 0) {
		return &ParamError{Dist: "vonmises", Param: "mu", Value: mu}
	}
	if kappa < 0 || math.IsNaN(kappa) {
		return &ParamError{Dist: "vonmises", Param: "kappa", Value: kappa}
	}
	return nil
}
