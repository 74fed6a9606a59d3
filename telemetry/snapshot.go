package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/STOA-tech/Parcels/kernel"
	"github.com/STOA-tech/Parcels/particles"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot holds the particle state of a run, for restarting it.
//
// Generator state is not stored. A resumed run draws from streams derived
// from Seed and Step, independent of the draws before the snapshot.
type Snapshot struct {
	Version int    `json:"version"`
	Seed    int64  `json:"seed"`
	Backend string `json:"backend"`
	Mesh    string `json:"mesh"`

	Step    int     `json:"step"`
	Time    float64 `json:"time"`
	Deleted int     `json:"deleted"`

	Vars      []string        `json:"vars,omitempty"`
	Particles []ParticleState `json:"particles"`
}

// ParticleState holds one particle's complete state.
type ParticleState struct {
	ID    uint64       `json:"id"`
	Lon   float64      `json:"lon"`
	Lat   float64      `json:"lat"`
	Depth float64      `json:"depth"`
	Time  float64      `json:"time"`
	State kernel.State `json:"state"`
	Vars  []float64    `json:"vars,omitempty"`
}

// CaptureParticles copies every live particle of set into the snapshot.
func (s *Snapshot) CaptureParticles(set *particles.Set) {
	s.Vars = append([]string(nil), set.Schema()...)
	ps := set.Particles()
	s.Particles = make([]ParticleState, len(ps))
	for i, p := range ps {
		s.Particles[i] = ParticleState{
			ID: p.ID, Lon: p.Lon, Lat: p.Lat, Depth: p.Depth,
			Time: p.Time, State: p.State, Vars: p.Vars,
		}
	}
}

// Restore rebuilds a particle set with the snapshot's IDs and state.
func (s *Snapshot) Restore() (*particles.Set, error) {
	set := particles.New(s.Vars...)
	for _, ps := range s.Particles {
		if len(ps.Vars) != len(s.Vars) {
			return nil, fmt.Errorf("restore snapshot: particle %d has %d vars, want %d", ps.ID, len(ps.Vars), len(s.Vars))
		}
		if err := set.Insert(kernel.Particle{
			ID: ps.ID, Lon: ps.Lon, Lat: ps.Lat, Depth: ps.Depth,
			Time: ps.Time, State: ps.State, Vars: ps.Vars,
		}); err != nil {
			return nil, fmt.Errorf("restore snapshot: %w", err)
		}
	}
	return set, nil
}

// SaveSnapshot writes a snapshot to disk.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("snapshot_%d.json", snapshot.Step))

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snapshot.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snapshot.Version, SnapshotVersion)
	}

	return &snapshot, nil
}
