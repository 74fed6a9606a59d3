package scenario

import (
	"context"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/STOA-tech/Parcels/config"
	"github.com/STOA-tech/Parcels/field"
	"github.com/STOA-tech/Parcels/kernel"
	"github.com/STOA-tech/Parcels/simulation"
	"github.com/STOA-tech/Parcels/telemetry"
)

const day = 86400.0

func defaults(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func TestBuildDefaults(t *testing.T) {
	cfg := defaults(t)
	sc, err := Build(cfg)
	require.NoError(t, err)

	nx, ny := sc.Grid.Size()
	assert.Equal(t, cfg.Grid.XDim, nx)
	assert.Equal(t, cfg.Grid.YDim, ny)
	assert.InDelta(t, -cfg.Grid.Extent, sc.Grid.Lon[0], 1e-6)
	assert.InDelta(t, cfg.Grid.Extent, sc.Grid.Lat[ny-1], 1e-6)

	kx, err := sc.FieldSet.Sample(field.NameKhZonal, 0, 0, 12, 34)
	require.NoError(t, err)
	assert.Equal(t, cfg.Diffusion.KhZonal, kx)

	dres, ok := sc.FieldSet.Constant(field.ConstDres)
	require.True(t, ok)
	dlon, _ := sc.Grid.Spacing()
	assert.Equal(t, dlon, dres)

	assert.Equal(t, cfg.Particles.Count, sc.Particles.Len())
	for _, p := range sc.Particles.Particles() {
		assert.Equal(t, 0.0, p.Lon)
		assert.Equal(t, 0.0, p.Lat)
	}
}

func TestSphericalGridIsInDegrees(t *testing.T) {
	cfg := defaults(t)
	cfg.Mesh = "spherical"
	cfg.Particles.StartLat = 60
	require.NoError(t, cfg.Finalize())

	grid, err := NewGrid(cfg)
	require.NoError(t, err)

	halfLat := cfg.Grid.Extent / field.MetersPerDegree
	assert.InDelta(t, 60-halfLat, grid.Lat[0], 1e-9)
	// One degree of longitude at 60N is half a degree of latitude.
	assert.InDelta(t, 2*halfLat, grid.Lon[len(grid.Lon)-1], 1e-9)
}

func TestTanhDiffusivity(t *testing.T) {
	cfg := defaults(t)
	cfg.Diffusion.Profile = "tanh"
	cfg.Diffusion.KhZonal = 100
	cfg.Diffusion.Amplitude = 100
	require.NoError(t, cfg.Finalize())

	grid, err := NewGrid(cfg)
	require.NoError(t, err)
	fs, err := NewFieldSet(cfg, grid, 0)
	require.NoError(t, err)

	mid, err := fs.Sample(field.NameKhZonal, 0, 0, 0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 200, mid, 1)

	east, err := fs.Sample(field.NameKhZonal, 0, 0, 0, grid.Lon[len(grid.Lon)-1])
	require.NoError(t, err)
	west, err := fs.Sample(field.NameKhZonal, 0, 0, 0, grid.Lon[0])
	require.NoError(t, err)
	assert.InDelta(t, 300, east, 1e-3)
	assert.InDelta(t, 100, west, 1e-3)
}

func TestNoiseFlow(t *testing.T) {
	cfg := defaults(t)
	cfg.Flow.Kind = "noise"
	cfg.Flow.Speed = 0.2
	cfg.Flow.TimeScale = 1e-5
	require.NoError(t, cfg.Finalize())

	grid, err := NewGrid(cfg)
	require.NoError(t, err)
	fs, err := NewFieldSet(cfg, grid, 0)
	require.NoError(t, err)

	u, v, err := fs.UV(cfg.Run.Runtime/3, 0, 1000, -2000)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(u) || math.IsNaN(v))
	assert.True(t, u != 0 || v != 0)

	times := noiseTimes(cfg, 0)
	require.Len(t, times, noiseSnapshots)
	assert.Equal(t, 0.0, times[0])
	assert.Equal(t, cfg.Run.Runtime, times[noiseSnapshots-1])

	later := noiseTimes(cfg, 3600)
	assert.Equal(t, 3600.0, later[0])
	assert.Equal(t, 3600+cfg.Run.Runtime, later[noiseSnapshots-1])

	cfg.Run.Dt = -cfg.Run.Dt
	back := noiseTimes(cfg, 3600)
	assert.Equal(t, 3600-cfg.Run.Runtime, back[0])
	assert.Equal(t, 3600.0, back[noiseSnapshots-1])
}

func TestReleaseSpread(t *testing.T) {
	cfg := defaults(t)
	cfg.Particles.Spread = 5000
	cfg.Particles.StartLon = 100
	require.NoError(t, cfg.Finalize())

	set, err := Release(cfg)
	require.NoError(t, err)
	for _, p := range set.Particles() {
		r := math.Hypot(p.Lon-100, p.Lat)
		assert.LessOrEqual(t, r, 5000.0)
	}

	again, err := Release(cfg)
	require.NoError(t, err)
	assert.Equal(t, set.Lons(), again.Lons())
}

// runLeg executes one leg of cfg on sc, the way main does.
func runLeg(t *testing.T, cfg *config.Config, sc *Scenario) *simulation.Simulation {
	t.Helper()
	k, err := kernel.Lookup(cfg.Run.Kernels...)
	require.NoError(t, err)
	sim := simulation.New(sc.Particles, sc.FieldSet, sc.Streams, simulation.Options{
		Logger: slog.New(slog.DiscardHandler),
	})
	t.Cleanup(sim.Close)
	sim.Resume(sc.Step, sc.Deleted)
	require.NoError(t, sim.Execute(context.Background(), k, cfg.Run.Runtime, cfg.Run.Dt))
	return sim
}

// checkpoint saves the state after a leg and loads it back.
func checkpoint(t *testing.T, cfg *config.Config, sc *Scenario, sim *simulation.Simulation) *telemetry.Snapshot {
	t.Helper()
	snap := &telemetry.Snapshot{
		Version: telemetry.SnapshotVersion,
		Seed:    cfg.Run.Seed,
		Backend: cfg.Derived.Backend.String(),
		Mesh:    cfg.Derived.Mesh.String(),
		Step:    sim.Steps(),
		Time:    sc.End(cfg),
		Deleted: sim.Deleted(),
	}
	snap.CaptureParticles(sc.Particles)
	path, err := telemetry.SaveSnapshot(snap, t.TempDir())
	require.NoError(t, err)
	loaded, err := telemetry.LoadSnapshot(path)
	require.NoError(t, err)
	return loaded
}

func TestResumeContinuesDiffusion(t *testing.T) {
	cfg := defaults(t)
	cfg.Particles.Count = 5000
	require.NoError(t, cfg.Finalize())

	whole := defaults(t)
	whole.Particles.Count = 5000
	whole.Run.Runtime = 2 * day
	require.NoError(t, whole.Finalize())
	unsplit, err := Build(whole)
	require.NoError(t, err)
	runLeg(t, whole, unsplit)

	first, err := Build(cfg)
	require.NoError(t, err)
	sim := runLeg(t, cfg, first)
	leg1 := first.Particles.Lons()

	second, err := Resume(cfg, checkpoint(t, cfg, first, sim))
	require.NoError(t, err)
	assert.Equal(t, day, second.Start)
	sim2 := runLeg(t, cfg, second)
	assert.Equal(t, 48, sim2.Steps())

	final := second.Particles.Particles()
	require.Len(t, final, cfg.Particles.Count)
	leg2 := make([]float64, len(final))
	lons := make([]float64, len(final))
	for i, p := range final {
		assert.Equal(t, 2*day, p.Time)
		lons[i] = p.Lon
		leg2[i] = p.Lon - leg1[i]
	}

	// The second leg draws increments independent of the first.
	assert.Less(t, math.Abs(stat.Correlation(leg1, leg2, nil)), 0.1)

	want := math.Sqrt(2 * cfg.Diffusion.KhZonal * 2 * day)
	_, splitStd := stat.PopMeanStdDev(lons, nil)
	_, wholeStd := stat.PopMeanStdDev(unsplit.Particles.Lons(), nil)
	assert.InEpsilon(t, want, splitStd, 0.05)
	assert.InEpsilon(t, want, wholeStd, 0.05)
	assert.InEpsilon(t, wholeStd, splitStd, 0.07)
}

func TestResumeTimeVaryingFlow(t *testing.T) {
	cfg := defaults(t)
	cfg.Flow.Kind = "noise"
	cfg.Flow.TimeScale = 1e-5
	cfg.Run.Kernels = []string{"AdvectionRK4", "DiffusionUniformKh"}
	cfg.Particles.Count = 200
	require.NoError(t, cfg.Finalize())

	first, err := Build(cfg)
	require.NoError(t, err)
	sim := runLeg(t, cfg, first)

	second, err := Resume(cfg, checkpoint(t, cfg, first, sim))
	require.NoError(t, err)
	_, _, err = second.FieldSet.UV(2*day, 0, 0, 0)
	require.NoError(t, err)

	runLeg(t, cfg, second)
	for _, p := range second.Particles.Particles() {
		assert.Equal(t, 2*day, p.Time)
	}
}

func TestResumeRejectsOtherMesh(t *testing.T) {
	cfg := defaults(t)
	snap := &telemetry.Snapshot{Version: telemetry.SnapshotVersion, Mesh: "spherical"}
	_, err := Resume(cfg, snap)
	assert.Error(t, err)
}
