package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/STOA-tech/Parcels/config"
	"github.com/STOA-tech/Parcels/kernel"
	"github.com/STOA-tech/Parcels/scenario"
	"github.com/STOA-tech/Parcels/simulation"
	"github.com/STOA-tech/Parcels/telemetry"
)

// Target is the dispersion to reproduce: the population standard
// deviation of displacement, in meters, after the configured runtime.
type Target struct {
	StdLon float64
	StdLat float64
}

// FitnessEvaluator runs simulations and scores how far their spread is
// from the target.
type FitnessEvaluator struct {
	space      khSpace
	seeds      []int64
	baseConfig *config.Config
	target     Target

	mu          sync.Mutex
	lastSpread  Target // spread from most recent Evaluate call
	failedEvals int
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(space khSpace, seeds []int64, baseCfg *config.Config, target Target) *FitnessEvaluator {
	return &FitnessEvaluator{
		space:      space,
		seeds:      seeds,
		baseConfig: baseCfg,
		target:     target,
	}
}

// LastSpread returns the mean spread from the most recent evaluation.
func (fe *FitnessEvaluator) LastSpread() Target {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastSpread
}

// FailedEvals returns the number of runs that ended in an error.
func (fe *FitnessEvaluator) FailedEvals() int {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.failedEvals
}

// Evaluate computes fitness for diffusivities kh (m^2/s) (lower = better): the
// squared relative error of the spread on each axis, averaged over seeds.
func (fe *FitnessEvaluator) Evaluate(kh []float64) float64 {
	cfg := fe.copyConfig()
	fe.space.apply(cfg, kh)

	spreads := make([]Target, len(fe.seeds))
	errs := make([]error, len(fe.seeds))
	var wg sync.WaitGroup
	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			spreads[idx], errs[idx] = runSpread(cfg, s)
		}(i, seed)
	}
	wg.Wait()

	var fitness float64
	var mean Target
	failed := 0
	for i, sp := range spreads {
		if errs[i] != nil {
			failed++
			continue
		}
		fitness += relErr2(sp.StdLon, fe.target.StdLon) + relErr2(sp.StdLat, fe.target.StdLat)
		mean.StdLon += sp.StdLon
		mean.StdLat += sp.StdLat
	}

	fe.mu.Lock()
	defer fe.mu.Unlock()
	fe.failedEvals += failed
	ok := len(fe.seeds) - failed
	if ok == 0 {
		return math.Inf(1)
	}
	mean.StdLon /= float64(ok)
	mean.StdLat /= float64(ok)
	fe.lastSpread = mean
	return fitness / float64(ok)
}

func relErr2(got, want float64) float64 {
	if want == 0 {
		return got * got
	}
	r := (got - want) / want
	return r * r
}

// copyConfig returns a shallow copy of the base config with its own kernel list.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	cfg.Run.Kernels = append([]string(nil), fe.baseConfig.Run.Kernels...)
	return &cfg
}

// runSpread runs one simulation and returns the final spread in meters.
func runSpread(base *config.Config, seed int64) (Target, error) {
	cfg := *base
	cfg.Run.Seed = seed

	k, err := kernel.Lookup(cfg.Run.Kernels...)
	if err != nil {
		return Target{}, err
	}
	policy, err := simulation.ParseErrorPolicy(cfg.Run.ErrorPolicy)
	if err != nil {
		return Target{}, err
	}
	sc, err := scenario.Build(&cfg)
	if err != nil {
		return Target{}, err
	}

	sim := simulation.New(sc.Particles, sc.FieldSet, sc.Streams, simulation.Options{
		Workers:     1,
		ErrorPolicy: policy,
		Logger:      slog.New(slog.DiscardHandler),
	})
	defer sim.Close()
	if err := sim.Execute(context.Background(), k, cfg.Run.Runtime, cfg.Run.Dt); err != nil {
		return Target{}, err
	}
	if sc.Particles.Len() < 2 {
		return Target{}, fmt.Errorf("only %d particles left", sc.Particles.Len())
	}

	mesh := cfg.Derived.Mesh
	lon := telemetry.Describe(sc.Particles.Lons())
	lat := telemetry.Describe(sc.Particles.Lats())
	return Target{
		StdLon: lon.Std / mesh.ZonalFactor(cfg.Particles.StartLat),
		StdLat: lat.Std / mesh.MeridionalFactor(),
	}, nil
}
