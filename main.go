package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/STOA-tech/Parcels/config"
	"github.com/STOA-tech/Parcels/kernel"
	"github.com/STOA-tech/Parcels/scenario"
	"github.com/STOA-tech/Parcels/simulation"
	"github.com/STOA-tech/Parcels/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot (overrides output.dir)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = use config, -1 = time-based)")
	backend := flag.String("backend", "", "Random backend: mt19937 or pcg (empty = use config)")
	workers := flag.Int("workers", -1, "Kernel workers (-1 = use config, 0 = GOMAXPROCS)")
	verbose := flag.Bool("v", false, "Log per-step statistics and deletions")
	snapshotDir := flag.String("snapshot-dir", "", "Directory for the final particle snapshot (empty = none)")
	restorePath := flag.String("restore", "", "Snapshot file to continue from instead of releasing particles")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	switch {
	case *seed == -1:
		cfg.Run.Seed = time.Now().UnixNano()
	case *seed != 0:
		cfg.Run.Seed = *seed
	}
	if *backend != "" {
		cfg.Run.Backend = *backend
	}
	if *workers >= 0 {
		cfg.Run.Workers = *workers
	}
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	if err := cfg.Finalize(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger, *restorePath, *snapshotDir); err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, restorePath, snapshotDir string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	k, err := kernel.Lookup(cfg.Run.Kernels...)
	if err != nil {
		return err
	}
	policy, err := simulation.ParseErrorPolicy(cfg.Run.ErrorPolicy)
	if err != nil {
		return err
	}

	sc, err := buildScenario(cfg, restorePath)
	if err != nil {
		return err
	}
	if restorePath != "" {
		logger.Info("restored snapshot", "path", restorePath, "step", sc.Step, "time", sc.Start, "particles", sc.Particles.Len())
	}

	om, err := telemetry.NewOutputManager(cfg.Output.Dir)
	if err != nil {
		return err
	}
	defer om.Close()
	if err := om.WriteConfig(cfg); err != nil {
		return err
	}

	logger.Info("starting run",
		"seed", cfg.Run.Seed,
		"backend", cfg.Derived.Backend.String(),
		"mesh", cfg.Derived.Mesh.String(),
		"kernels", cfg.Run.Kernels,
		"fields", sc.FieldSet.Names(),
		"output_dir", om.Dir(),
	)

	sim := simulation.New(sc.Particles, sc.FieldSet, sc.Streams, simulation.Options{
		Workers:     cfg.Run.Workers,
		ErrorPolicy: policy,
		Logger:      logger,
		Output:      om,
		OutputDt:    cfg.Run.OutputDt,
		StatsEvery:  cfg.Telemetry.StatsEvery,
		PerfWindow:  cfg.Telemetry.PerfWindow,
	})
	defer sim.Close()
	sim.Resume(sc.Step, sc.Deleted)

	start := time.Now()
	if err := sim.Execute(ctx, k, cfg.Run.Runtime, cfg.Run.Dt); err != nil {
		return err
	}

	end := sc.End(cfg)
	final := telemetry.ComputeStepStats(sim.Steps(), end, sc.Particles.Particles(), sim.Deleted())
	logger.Info("run complete",
		"elapsed", time.Since(start).String(),
		"stats", final,
	)

	if snapshotDir != "" {
		snap := &telemetry.Snapshot{
			Version: telemetry.SnapshotVersion,
			Seed:    cfg.Run.Seed,
			Backend: cfg.Derived.Backend.String(),
			Mesh:    cfg.Derived.Mesh.String(),
			Step:    sim.Steps(),
			Time:    end,
			Deleted: sim.Deleted(),
		}
		snap.CaptureParticles(sc.Particles)
		path, err := telemetry.SaveSnapshot(snap, snapshotDir)
		if err != nil {
			return err
		}
		logger.Info("snapshot saved", "path", path)
	}
	return om.Close()
}

// buildScenario releases fresh particles, or continues from the snapshot at
// restorePath when it is set.
func buildScenario(cfg *config.Config, restorePath string) (*scenario.Scenario, error) {
	if restorePath == "" {
		return scenario.Build(cfg)
	}
	snap, err := telemetry.LoadSnapshot(restorePath)
	if err != nil {
		return nil, err
	}
	return scenario.Resume(cfg, snap)
}
