// Package main fits diffusivities to an observed dispersion with CMA-ES.
//
// Each evaluation runs the configured kernels for several seeds and
// compares the final standard deviation of particle positions with the
// target spread.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/optimize"

	"github.com/STOA-tech/Parcels/config"
)

// evalRecord is one row of calibrate_log.csv.
type evalRecord struct {
	Eval         int     `csv:"eval"`
	Fitness      float64 `csv:"fitness"`
	KhZonal      float64 `csv:"kh_zonal"`
	KhMeridional float64 `csv:"kh_meridional"`
	StdLon       float64 `csv:"std_lon_m"`
	StdLat       float64 `csv:"std_lat_m"`
}

// formatDuration formats a duration as HH:MM:SS or MM:SS for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	stdLon := flag.Float64("target-std-lon", 0, "Target zonal spread in meters after run.runtime")
	stdLat := flag.Float64("target-std-lat", 0, "Target meridional spread in meters after run.runtime")
	seeds := flag.Int("seeds", 3, "Number of seeds per evaluation")
	maxEvals := flag.Int("max-evals", 60, "Maximum number of evaluations")
	population := flag.Int("population", 0, "CMA-ES population size (0 = auto)")
	minKh := flag.Float64("min-kh", 0.1, "Lower bound for diffusivities (m^2/s)")
	maxKh := flag.Float64("max-kh", 1000, "Upper bound for diffusivities (m^2/s)")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if *outputDir == "" || *stdLon <= 0 || *stdLat <= 0 {
		slog.Error("--output, --target-std-lon and --target-std-lat are required")
		os.Exit(2)
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		slog.Error("failed to create output directory", "error", err)
		os.Exit(1)
	}

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	baseCfg := config.Cfg()

	space := khSpace{min: *minKh, max: *maxKh}

	evalSeeds := make([]int64, *seeds)
	for i := range evalSeeds {
		evalSeeds[i] = baseCfg.Run.Seed + int64(i*1000)
	}

	evaluator := NewFitnessEvaluator(space, evalSeeds, baseCfg, Target{StdLon: *stdLon, StdLat: *stdLat})

	initX := space.start(baseCfg)

	logPath := filepath.Join(*outputDir, "calibrate_log.csv")
	logFile, err := os.Create(logPath)
	if err != nil {
		slog.Error("failed to create log file", "error", err)
		os.Exit(1)
	}
	defer logFile.Close()

	evalCount := 0
	bestFitness := 1e9
	var bestParams []float64
	startTime := time.Now()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			raw := space.fromUnit(x)
			fitness := evaluator.Evaluate(raw)
			evalCount++

			if fitness < bestFitness {
				bestFitness = fitness
				bestParams = append([]float64(nil), raw...)
			}

			spread := evaluator.LastSpread()
			rec := []evalRecord{{
				Eval: evalCount, Fitness: fitness,
				KhZonal: raw[0], KhMeridional: raw[1],
				StdLon: spread.StdLon, StdLat: spread.StdLat,
			}}
			if evalCount == 1 {
				err = gocsv.Marshal(rec, logFile)
			} else {
				err = gocsv.MarshalWithoutHeaders(rec, logFile)
			}
			if err != nil {
				slog.Warn("failed to write log row", "error", err)
			}

			elapsed := time.Since(startTime)
			avgPerEval := elapsed / time.Duration(evalCount)
			remaining := time.Duration(*maxEvals-evalCount) * avgPerEval
			slog.Info("eval",
				"n", evalCount,
				"fitness", fitness,
				"kh_zonal", raw[0],
				"kh_meridional", raw[1],
				"best", bestFitness,
				"elapsed", formatDuration(elapsed),
				"eta", formatDuration(remaining),
			)
			return fitness
		},
	}

	settings := &optimize.Settings{
		FuncEvaluations: *maxEvals,
		Concurrent:      0, // Sequential evaluation
	}

	popSize := *population
	if popSize == 0 {
		popSize = 4 + int(3.0*float64(khDim)/2.0)
	}
	method := &optimize.CmaEsChol{
		InitStepSize: 0.3,
		Population:   popSize,
	}

	slog.Info("starting calibration",
		"params", khDim,
		"population", popSize,
		"max_evals", *maxEvals,
		"seeds", *seeds,
	)

	result, err := optimize.Minimize(problem, initX, settings, method)
	if err != nil {
		slog.Warn("optimization ended", "error", err)
	}
	if bestParams == nil && result != nil {
		bestParams = space.fromUnit(result.X)
	}
	if bestParams == nil {
		slog.Error("no evaluation completed")
		os.Exit(1)
	}

	slog.Info("calibration complete",
		"evals", evalCount,
		"elapsed", formatDuration(time.Since(startTime)),
		"fitness", bestFitness,
		"failed_runs", evaluator.FailedEvals(),
		"kh_zonal", bestParams[0],
		"kh_meridional", bestParams[1],
	)

	bestCfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to reload config", "error", err)
		os.Exit(1)
	}
	space.apply(bestCfg, bestParams)

	configOutPath := filepath.Join(*outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(configOutPath); err != nil {
		slog.Error("failed to write best config", "error", err)
		os.Exit(1)
	}
	slog.Info("best config saved", "path", configOutPath)
}
