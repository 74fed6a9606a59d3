// Package simulation executes kernels over a particle set.
//
// Each step snapshots the live particles from the ECS world, runs the kernel
// on every snapshot (in parallel for large sets), then applies the results
// back in ID order from a single goroutine. Every particle draws from its own
// random stream, so the outcome does not depend on the number of workers.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/STOA-tech/Parcels/field"
	"github.com/STOA-tech/Parcels/kernel"
	"github.com/STOA-tech/Parcels/particles"
	"github.com/STOA-tech/Parcels/random"
	"github.com/STOA-tech/Parcels/telemetry"
)

// ErrInvalidRun is returned for a non-positive runtime or a zero dt.
var ErrInvalidRun = errors.New("simulation: invalid run parameters")

// ErrorPolicy decides what happens to a particle whose kernel fails.
type ErrorPolicy uint8

const (
	// PolicyAbort stops execution at the first failing particle.
	PolicyAbort ErrorPolicy = iota
	// PolicyDelete removes particles that leave the domain. Other errors
	// still abort.
	PolicyDelete
)

func (p ErrorPolicy) String() string {
	switch p {
	case PolicyAbort:
		return "abort"
	case PolicyDelete:
		return "delete"
	}
	return fmt.Sprintf("ErrorPolicy(%d)", uint8(p))
}

// ParseErrorPolicy maps a config name to an ErrorPolicy.
func ParseErrorPolicy(name string) (ErrorPolicy, error) {
	switch name {
	case "abort", "":
		return PolicyAbort, nil
	case "delete":
		return PolicyDelete, nil
	}
	return 0, fmt.Errorf("simulation: unknown error policy %q", name)
}

// ParticleError attributes a kernel failure to a particle and time.
type ParticleError struct {
	ID   uint64
	Time float64
	Err  error
}

func (e *ParticleError) Error() string {
	return fmt.Sprintf("particle %d at time %g: %v", e.ID, e.Time, e.Err)
}

func (e *ParticleError) Unwrap() error { return e.Err }

// Options configures a Simulation.
type Options struct {
	Workers     int // 0 uses GOMAXPROCS, 1 runs sequentially
	ErrorPolicy ErrorPolicy
	Logger      *slog.Logger

	// Output receives trajectories every OutputDt seconds of simulated
	// time (0: only initial and final positions), step statistics every
	// StatsEvery steps, and perf stats every PerfWindow steps. Nil
	// disables file output.
	Output     *telemetry.OutputManager
	OutputDt   float64
	StatsEvery int
	PerfWindow int
}

// Simulation advances a particle set through a field set.
type Simulation struct {
	set     *particles.Set
	fs      field.Sampler
	streams *random.Streams
	opts    Options
	logger  *slog.Logger
	perf    *telemetry.PerfCollector
	pool    *pool

	kernel  kernel.Kernel
	entries []particles.Entry
	gens    []random.Generator
	errs    []error

	step    int
	deleted int
	last    telemetry.StepStats
}

// New creates a simulation. The streams must be seeded before Execute.
func New(set *particles.Set, fs field.Sampler, streams *random.Streams, opts Options) *Simulation {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Simulation{
		set:     set,
		fs:      fs,
		streams: streams,
		opts:    opts,
		logger:  logger,
		perf:    telemetry.NewPerfCollector(opts.PerfWindow),
	}
	s.pool = newPool(opts.Workers, s.computeChunk)
	return s
}

// Close stops the worker goroutines.
func (s *Simulation) Close() {
	s.pool.stop()
}

// Resume carries over the step and deletion counters of a restored run, so
// step numbers in stats and perf output continue from the snapshot.
func (s *Simulation) Resume(step, deleted int) {
	s.step = step
	s.deleted = deleted
}

// Deleted returns the number of particles removed so far.
func (s *Simulation) Deleted() int { return s.deleted }

// Steps returns the number of completed steps.
func (s *Simulation) Steps() int { return s.step }

// LastStats returns the statistics of the last completed step.
func (s *Simulation) LastStats() telemetry.StepStats { return s.last }

// Execute runs k on every particle for runtime seconds in steps of dt.
// A negative dt integrates backwards in time. The last step is shortened
// so the run ends exactly at runtime. Cancellation of ctx is checked
// between steps.
func (s *Simulation) Execute(ctx context.Context, k kernel.Kernel, runtime, dt float64) error {
	if !(runtime > 0) || dt == 0 || math.IsNaN(dt) || math.IsInf(dt, 0) || math.IsInf(runtime, 0) {
		return fmt.Errorf("%w: runtime=%g dt=%g", ErrInvalidRun, runtime, dt)
	}
	s.kernel = k

	s.logger.Info("execute",
		"particles", s.set.Len(),
		"runtime", runtime,
		"dt", dt,
		"workers", s.pool.numWorkers,
		"backend", s.streams.Backend().String(),
		"policy", s.opts.ErrorPolicy.String(),
	)

	if err := s.writeTrajectories(); err != nil {
		return err
	}

	step := math.Abs(dt)
	sign := math.Copysign(1, dt)
	nextOutput := s.opts.OutputDt
	var elapsed float64
	for elapsed < runtime-1e-9*step {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("simulation: stopped after %d steps: %w", s.step, err)
		}

		h := math.Min(step, runtime-elapsed)
		if err := s.advance(sign * h); err != nil {
			return err
		}
		elapsed += h

		if s.opts.OutputDt > 0 && elapsed >= nextOutput-1e-9*step && elapsed < runtime-1e-9*step {
			if err := s.writeTrajectories(); err != nil {
				return err
			}
			for nextOutput <= elapsed+1e-9*step {
				nextOutput += s.opts.OutputDt
			}
		}
	}

	if err := s.writeTrajectories(); err != nil {
		return err
	}
	s.logger.Info("execute done",
		"steps", s.step,
		"particles", s.set.Len(),
		"deleted", s.deleted,
	)
	return nil
}

// advance performs one timestep of length h for every live particle.
func (s *Simulation) advance(h float64) error {
	s.perf.StartStep()

	// Phase A: snapshot (single-threaded)
	s.perf.StartPhase(telemetry.PhaseSnapshot)
	s.entries = s.set.Collect(s.entries[:0])
	n := len(s.entries)
	s.gens = resize(s.gens, n)
	s.errs = resize(s.errs, n)
	for i := range s.entries {
		s.gens[i] = s.streams.Stream(s.entries[i].Particle.ID)
		s.errs[i] = nil
	}

	// Phase B: kernel (parallel above the threshold)
	s.perf.StartPhase(telemetry.PhaseKernel)
	s.pool.run(n, h)

	// Phase C: apply in ID order (single-threaded)
	s.perf.StartPhase(telemetry.PhaseApply)
	failure := s.apply()
	s.step++

	s.perf.StartPhase(telemetry.PhaseOutput)
	outErr := s.report(h)
	s.perf.EndStep()

	if failure != nil {
		return failure
	}
	return outErr
}

// computeChunk runs the kernel on snapshot entries [i0, i1).
func (s *Simulation) computeChunk(i0, i1 int, h float64) {
	for i := i0; i < i1; i++ {
		p := &s.entries[i].Particle
		p.Dt = h
		p.State = kernel.StateEvaluate
		time := p.Time
		if err := kernel.Call(s.kernel, p, s.fs, s.gens[i], time); err != nil {
			s.errs[i] = &ParticleError{ID: p.ID, Time: time, Err: err}
			continue
		}
		if p.State == kernel.StateDelete {
			continue
		}
		p.Time = time + h
		p.State = kernel.StateSuccess
	}
}

// apply writes kernel results back and handles failed particles. It returns
// the first error that the policy does not absorb.
func (s *Simulation) apply() error {
	var failure error
	for i := range s.entries {
		e := &s.entries[i]
		err := s.errs[i]
		switch {
		case err == nil && e.Particle.State == kernel.StateDelete:
			s.remove(e, "kernel")
		case err == nil:
			s.set.Store(e)
		case s.opts.ErrorPolicy == PolicyDelete && errors.Is(err, field.ErrOutOfDomain):
			s.remove(e, "out of domain")
		default:
			s.set.SetState(e.Entity, kernel.StateError)
			if failure == nil {
				failure = err
			}
		}
	}
	return failure
}

func (s *Simulation) remove(e *particles.Entry, reason string) {
	s.set.Remove(e.Entity)
	s.streams.Release(e.Particle.ID)
	s.deleted++
	s.logger.Debug("particle deleted",
		"id", e.Particle.ID,
		"time", e.Particle.Time,
		"reason", reason,
	)
}

// report computes step statistics and writes periodic output.
func (s *Simulation) report(h float64) error {
	if s.opts.StatsEvery > 0 && s.step%s.opts.StatsEvery == 0 {
		ps := s.set.Particles()
		var t float64
		if len(ps) > 0 {
			t = ps[0].Time
		}
		s.last = telemetry.ComputeStepStats(s.step, t, ps, s.deleted)
		s.logger.Debug("step", "stats", s.last, "dt", h)
		if err := s.opts.Output.WriteStats(s.last); err != nil {
			return err
		}
	}

	if s.opts.PerfWindow > 0 && s.step%s.opts.PerfWindow == 0 {
		stats := s.perf.Stats()
		stats.LogStats(s.logger)
		if err := s.opts.Output.WritePerf(stats, s.step); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulation) writeTrajectories() error {
	if s.opts.Output == nil {
		return nil
	}
	return s.opts.Output.WriteTrajectories(telemetry.Trajectories(s.set.Particles()))
}

func resize[T any](xs []T, n int) []T {
	if cap(xs) < n {
		return make([]T, n)
	}
	return xs[:n]
}
