package random

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// pcgDefaultStream is the PCG sequence used by NewPCG.
const pcgDefaultStream = 0xda3e39cb94b95bdb

// PCG draws from gonum distributions over a math/rand/v2 PCG source.
type PCG struct {
	src *rand.PCG
	seq uint64

	unit   distuv.Uniform
	normal distuv.Normal
}

// NewPCG creates a PCG generator seeded with seed on the default sequence.
func NewPCG(seed int64) *PCG {
	return newPCGStream(uint64(seed), pcgDefaultStream)
}

func newPCGStream(seed, seq uint64) *PCG {
	src := rand.NewPCG(seed, seq)
	return &PCG{
		src:    src,
		seq:    seq,
		unit:   distuv.Uniform{Min: 0, Max: 1, Src: src},
		normal: distuv.Normal{Mu: 0, Sigma: 1, Src: src},
	}
}

// Seed resets the source, keeping the generator's sequence.
func (p *PCG) Seed(seed int64) {
	p.src.Seed(uint64(seed), p.seq)
}

func (p *PCG) Uniform(a, b float64) float64 {
	return distuv.Uniform{Min: a, Max: b, Src: p.src}.Rand()
}

func (p *PCG) Normal(mean, stddev float64) (float64, error) {
	if err := checkNormal(mean, stddev); err != nil {
		return 0, err
	}
	return mean + stddev*p.normal.Rand(), nil
}

func (p *PCG) Exponential(rate float64) (float64, error) {
	if err := checkExponential(rate); err != nil {
		return 0, err
	}
	return distuv.Exponential{Rate: rate, Src: p.src}.Rand(), nil
}

func (p *PCG) VonMises(mu, kappa float64) (float64, error) {
	if err := checkVonMises(mu, kappa); err != nil {
		return 0, err
	}
	return vonMises(p.unitDraw, mu, kappa), nil
}

// unitDraw returns a value in [0, 1).
func (p *PCG) unitDraw() float64 {
	u := p.unit.Rand()
	if u >= 1 {
		return 0
	}
	return u
}
