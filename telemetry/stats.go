package telemetry

import (
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/STOA-tech/Parcels/kernel"
)

// Moments summarizes one coordinate over the particle population.
// Std is the population standard deviation.
type Moments struct {
	Mean float64
	Std  float64
	Skew float64
	Min  float64
	Max  float64
}

// Describe computes Moments of xs. Fewer than three values give zero skew.
func Describe(xs []float64) Moments {
	if len(xs) == 0 {
		return Moments{}
	}
	mean, variance := stat.PopMeanVariance(xs, nil)
	m := Moments{
		Mean: mean,
		Std:  math.Sqrt(variance),
		Min:  floats.Min(xs),
		Max:  floats.Max(xs),
	}
	if len(xs) > 2 && variance > 0 {
		m.Skew = stat.Skew(xs, nil)
	}
	return m
}

// Percentile returns the p-quantile of sorted values, interpolating linearly.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// StepStats holds population statistics after one timestep.
type StepStats struct {
	Step    int     `csv:"step"`
	Time    float64 `csv:"time"`
	Count   int     `csv:"count"`
	Deleted int     `csv:"deleted"`

	MeanLon float64 `csv:"mean_lon"`
	MeanLat float64 `csv:"mean_lat"`
	StdLon  float64 `csv:"std_lon"`
	StdLat  float64 `csv:"std_lat"`
	SkewLon float64 `csv:"skew_lon"`
	SkewLat float64 `csv:"skew_lat"`

	// Distance from the population centroid, in mesh units.
	SpreadP50 float64 `csv:"spread_p50"`
	SpreadP90 float64 `csv:"spread_p90"`
}

// ComputeStepStats summarizes the particle population.
func ComputeStepStats(step int, time float64, ps []kernel.Particle, deleted int) StepStats {
	s := StepStats{Step: step, Time: time, Count: len(ps), Deleted: deleted}
	if len(ps) == 0 {
		return s
	}

	lons := make([]float64, len(ps))
	lats := make([]float64, len(ps))
	for i := range ps {
		lons[i] = ps[i].Lon
		lats[i] = ps[i].Lat
	}
	lon := Describe(lons)
	lat := Describe(lats)
	s.MeanLon, s.StdLon, s.SkewLon = lon.Mean, lon.Std, lon.Skew
	s.MeanLat, s.StdLat, s.SkewLat = lat.Mean, lat.Std, lat.Skew

	dist := make([]float64, len(ps))
	for i := range ps {
		dist[i] = math.Hypot(lons[i]-lon.Mean, lats[i]-lat.Mean)
	}
	sort.Float64s(dist)
	s.SpreadP50 = Percentile(dist, 0.5)
	s.SpreadP90 = Percentile(dist, 0.9)
	return s
}

// LogValue implements slog.LogValuer for structured logging.
func (s StepStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("step", s.Step),
		slog.Float64("time", s.Time),
		slog.Int("count", s.Count),
		slog.Int("deleted", s.Deleted),
		slog.Float64("mean_lon", s.MeanLon),
		slog.Float64("mean_lat", s.MeanLat),
		slog.Float64("std_lon", s.StdLon),
		slog.Float64("std_lat", s.StdLat),
		slog.Float64("skew_lon", s.SkewLon),
		slog.Float64("skew_lat", s.SkewLat),
		slog.Float64("spread_p50", s.SpreadP50),
		slog.Float64("spread_p90", s.SpreadP90),
	)
}

// TrajectoryRecord is one particle position in trajectories.csv.
type TrajectoryRecord struct {
	ID    uint64  `csv:"id"`
	Time  float64 `csv:"time"`
	Lon   float64 `csv:"lon"`
	Lat   float64 `csv:"lat"`
	Depth float64 `csv:"depth"`
}

// Trajectories converts particles to output records.
func Trajectories(ps []kernel.Particle) []TrajectoryRecord {
	out := make([]TrajectoryRecord, len(ps))
	for i, p := range ps {
		out[i] = TrajectoryRecord{ID: p.ID, Time: p.Time, Lon: p.Lon, Lat: p.Lat, Depth: p.Depth}
	}
	return out
}
