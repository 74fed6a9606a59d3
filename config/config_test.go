package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/STOA-tech/Parcels/field"
	"github.com/STOA-tech/Parcels/random"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, int64(1234), cfg.Run.Seed)
	assert.Equal(t, []string{"DiffusionUniformKh"}, cfg.Run.Kernels)
	assert.Equal(t, 3600.0, cfg.Run.Dt)
	assert.Equal(t, field.MeshFlat, cfg.Derived.Mesh)
	assert.Equal(t, random.BackendMT, cfg.Derived.Backend)
	assert.Equal(t, 100.0, cfg.Diffusion.KhZonal)
	assert.Equal(t, 50.0, cfg.Diffusion.KhMeridional)
}

func TestLoadOverridesMerge(t *testing.T) {
	path := writeFile(t, `
mesh: spherical
run:
  backend: pcg
  kernels: [AdvectionDiffusionM1]
diffusion:
  profile: tanh
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, field.MeshSpherical, cfg.Derived.Mesh)
	assert.Equal(t, random.BackendPCG, cfg.Derived.Backend)
	assert.Equal(t, []string{"AdvectionDiffusionM1"}, cfg.Run.Kernels)
	assert.Equal(t, "tanh", cfg.Diffusion.Profile)

	// Untouched keys keep their defaults.
	assert.Equal(t, 86400.0, cfg.Run.Runtime)
	assert.Equal(t, 200, cfg.Grid.XDim)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad mesh", "mesh: torus\n", "unknown mesh"},
		{"bad backend", "run: {backend: xorshift}\n", "backend"},
		{"zero dt", "run: {dt: 0}\n", "run.dt"},
		{"bad kernel", "run: {kernels: [Teleport]}\n", "run.kernels"},
		{"no particles", "particles: {count: 0}\n", "particles.count"},
		{"bad policy", "run: {error_policy: retry}\n", "error_policy"},
		{"bad profile", "diffusion: {profile: cubic}\n", "diffusion.profile"},
		{"negative tanh zonal", "diffusion: {profile: tanh, kh_zonal: 50, kh_meridional: 500, amplitude: -100}\n", "Kh_zonal negative"},
		{"negative tanh meridional", "diffusion: {profile: tanh, kh_zonal: 500, kh_meridional: 50, amplitude: -100}\n", "Kh_meridional negative"},
		{"bad yaml", "run: [\n", "parsing config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestValidateReportsAll(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Run.Dt = 0
	cfg.Run.Runtime = -1
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run.dt")
	assert.Contains(t, err.Error(), "run.runtime")
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Run.Seed = 99

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, cfg.WriteYAML(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "seed: 99"))

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Run, again.Run)
}

func TestCfgPanicsBeforeInit(t *testing.T) {
	global = nil
	assert.Panics(t, func() { Cfg() })
	require.NoError(t, Init(""))
	assert.NotNil(t, Cfg())
}
