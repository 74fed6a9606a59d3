package main

import (
	"math"

	"github.com/STOA-tech/Parcels/config"
)

// khSpace maps (kh_zonal, kh_meridional) onto the unit square searched by
// the optimizer. Both axes share the same bounds, in m^2/s.
type khSpace struct {
	min, max float64
}

// khDim is the number of calibrated diffusivities.
const khDim = 2

func (s khSpace) clamp(kh float64) float64 {
	return math.Min(math.Max(kh, s.min), s.max)
}

// start returns the config's diffusivities in unit coordinates.
func (s khSpace) start(cfg *config.Config) []float64 {
	d := cfg.Diffusion
	return []float64{s.toUnit(d.KhZonal), s.toUnit(d.KhMeridional)}
}

func (s khSpace) toUnit(kh float64) float64 {
	return (s.clamp(kh) - s.min) / (s.max - s.min)
}

// fromUnit returns the clamped diffusivities at a point of the search.
func (s khSpace) fromUnit(x []float64) []float64 {
	kh := make([]float64, khDim)
	for i := range kh {
		kh[i] = s.clamp(s.min + x[i]*(s.max-s.min))
	}
	return kh
}

// apply sets the clamped diffusivities on cfg.
func (s khSpace) apply(cfg *config.Config, kh []float64) {
	cfg.Diffusion.KhZonal = s.clamp(kh[0])
	cfg.Diffusion.KhMeridional = s.clamp(kh[1])
}
