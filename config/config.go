// Package config provides configuration loading and access for a run.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/STOA-tech/Parcels/field"
	"github.com/STOA-tech/Parcels/kernel"
	"github.com/STOA-tech/Parcels/random"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all run configuration parameters.
type Config struct {
	Run       RunConfig       `yaml:"run"`
	Mesh      string          `yaml:"mesh"` // spherical or flat
	Grid      GridConfig      `yaml:"grid"`
	Diffusion DiffusionConfig `yaml:"diffusion"`
	Flow      FlowConfig      `yaml:"flow"`
	Particles ParticlesConfig `yaml:"particles"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Output    OutputConfig    `yaml:"output"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// RunConfig holds executor settings. Times are in seconds.
type RunConfig struct {
	Seed        int64    `yaml:"seed"`
	Backend     string   `yaml:"backend"` // mt19937 or pcg
	Kernels     []string `yaml:"kernels"` // chained in order
	Runtime     float64  `yaml:"runtime"`
	Dt          float64  `yaml:"dt"`        // negative integrates backwards
	OutputDt    float64  `yaml:"output_dt"` // 0 writes trajectories only at the end
	Workers     int      `yaml:"workers"`   // 0 uses GOMAXPROCS, 1 runs sequentially
	ErrorPolicy string   `yaml:"error_policy"`
}

// GridConfig describes the rectilinear grid the fields live on.
type GridConfig struct {
	XDim   int     `yaml:"xdim"`
	YDim   int     `yaml:"ydim"`
	Extent float64 `yaml:"extent"` // half-width in meters around the release point
	Dres   float64 `yaml:"dres"`   // gradient half-width in mesh units; 0 uses the zonal spacing
}

// DiffusionConfig holds diffusivities in m^2/s.
type DiffusionConfig struct {
	KhZonal      float64 `yaml:"kh_zonal"`
	KhMeridional float64 `yaml:"kh_meridional"`
	Profile      string  `yaml:"profile"`   // uniform or tanh
	Amplitude    float64 `yaml:"amplitude"` // tanh: K rises by 2*amplitude across the grid
	Sharpness    float64 `yaml:"sharpness"` // tanh: steepness of the transition
}

// FlowConfig selects the background velocity field.
type FlowConfig struct {
	Kind      string  `yaml:"kind"`  // zero or noise
	Speed     float64 `yaml:"speed"` // m/s
	Scale     float64 `yaml:"scale"` // eddy size as a fraction of the grid extent
	TimeScale float64 `yaml:"time_scale"`
	Seed      int64   `yaml:"seed"`
}

// ParticlesConfig controls the release.
type ParticlesConfig struct {
	Count    int     `yaml:"count"`
	StartLon float64 `yaml:"start_lon"`
	StartLat float64 `yaml:"start_lat"`
	Depth    float64 `yaml:"depth"`
	Spread   float64 `yaml:"spread"` // release radius in meters; 0 is a point release
}

// TelemetryConfig holds logging cadence.
type TelemetryConfig struct {
	StatsEvery int `yaml:"stats_every"` // steps between stats records; 0 disables
	PerfWindow int `yaml:"perf_window"` // steps averaged by the perf collector
}

// OutputConfig holds output settings.
type OutputConfig struct {
	Dir string `yaml:"dir"` // empty disables file output
}

// DerivedConfig holds parsed forms of string settings.
type DerivedConfig struct {
	Mesh    field.Mesh
	Backend random.Backend
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Finalize recomputes derived values and validates the configuration.
// Call it again after changing fields, e.g. from command-line flags.
func (c *Config) Finalize() error {
	if err := c.computeDerived(); err != nil {
		return err
	}
	return c.Validate()
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() error {
	mesh, err := field.ParseMesh(c.Mesh)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	backend, err := random.ParseBackend(c.Run.Backend)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	c.Derived.Mesh = mesh
	c.Derived.Backend = backend

	if c.Diffusion.Sharpness == 0 {
		c.Diffusion.Sharpness = 10
	}
	return nil
}

// Validate checks ranges and names. It reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Run.Dt != 0, "run.dt must be non-zero")
	check(c.Run.Runtime > 0, "run.runtime must be positive, got %g", c.Run.Runtime)
	check(c.Run.OutputDt >= 0, "run.output_dt must not be negative, got %g", c.Run.OutputDt)
	check(c.Run.Workers >= 0, "run.workers must not be negative, got %d", c.Run.Workers)
	check(c.Run.ErrorPolicy == "abort" || c.Run.ErrorPolicy == "delete",
		"run.error_policy must be abort or delete, got %q", c.Run.ErrorPolicy)
	if _, err := kernel.Lookup(c.Run.Kernels...); err != nil {
		errs = append(errs, fmt.Errorf("run.kernels: %w", err))
	}

	check(c.Grid.XDim >= 2 && c.Grid.YDim >= 2, "grid needs at least 2x2 nodes, got %dx%d", c.Grid.XDim, c.Grid.YDim)
	check(c.Grid.Extent > 0, "grid.extent must be positive, got %g", c.Grid.Extent)
	check(c.Grid.Dres >= 0, "grid.dres must not be negative, got %g", c.Grid.Dres)

	check(c.Diffusion.KhZonal >= 0 && c.Diffusion.KhMeridional >= 0, "diffusivities must not be negative")
	check(c.Diffusion.Profile == "uniform" || c.Diffusion.Profile == "tanh",
		"diffusion.profile must be uniform or tanh, got %q", c.Diffusion.Profile)
	if d := c.Diffusion; d.Profile == "tanh" {
		// The profile spans [kh, kh+2*amplitude] on each axis.
		check(d.KhZonal+2*d.Amplitude >= 0, "diffusion.amplitude makes Kh_zonal negative")
		check(d.KhMeridional+2*d.Amplitude >= 0, "diffusion.amplitude makes Kh_meridional negative")
	}

	check(c.Flow.Kind == "zero" || c.Flow.Kind == "noise", "flow.kind must be zero or noise, got %q", c.Flow.Kind)
	if c.Flow.Kind == "noise" {
		check(c.Flow.Scale > 0, "flow.scale must be positive, got %g", c.Flow.Scale)
	}

	check(c.Particles.Count > 0, "particles.count must be positive, got %d", c.Particles.Count)
	check(c.Particles.Spread >= 0 && c.Particles.Spread < c.Grid.Extent,
		"particles.spread must be in [0, grid.extent), got %g", c.Particles.Spread)

	check(c.Telemetry.StatsEvery >= 0, "telemetry.stats_every must not be negative")

	if len(errs) > 0 {
		return fmt.Errorf("config: invalid: %w", errors.Join(errs...))
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
