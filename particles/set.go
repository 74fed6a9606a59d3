// Package particles stores the particle collection in an ECS world.
package particles

import (
	"fmt"
	"sort"

	"github.com/mlange-42/ark/ecs"

	"github.com/STOA-tech/Parcels/kernel"
)

// Entry pairs a kernel particle with its entity, for snapshot and write-back.
type Entry struct {
	Entity   ecs.Entity
	Particle kernel.Particle
}

// Set is the particle collection. It is not safe for concurrent use; the
// executor snapshots it, integrates snapshots in parallel and writes back
// from one goroutine.
type Set struct {
	world  *ecs.World
	mapper *ecs.Map4[Position, Clock, Identity, Vars]
	filter *ecs.Filter4[Position, Clock, Identity, Vars]

	schema []string
	index  map[string]int
	nextID uint64
	count  int
}

// New creates an empty set with the given user variable names.
func New(vars ...string) *Set {
	world := ecs.NewWorld()
	s := &Set{
		world:  world,
		mapper: ecs.NewMap4[Position, Clock, Identity, Vars](world),
		filter: ecs.NewFilter4[Position, Clock, Identity, Vars](world),
		schema: append([]string(nil), vars...),
		index:  make(map[string]int, len(vars)),
	}
	for i, name := range vars {
		s.index[name] = i
	}
	return s
}

// Add inserts one particle and returns its ID. IDs are assigned in
// insertion order starting at 0 and never reused.
func (s *Set) Add(lon, lat, depth, time float64) uint64 {
	id := s.nextID
	s.nextID++

	pos := Position{Lon: lon, Lat: lat, Depth: depth}
	clk := Clock{Time: time}
	ident := Identity{ID: id}
	vars := Vars{Values: make([]float64, len(s.schema))}
	s.mapper.NewEntity(&pos, &clk, &ident, &vars)
	s.count++
	return id
}

// Insert adds a particle with its existing ID and state, e.g. from a
// snapshot. IDs must be inserted in increasing order, after any ID the set
// has already assigned.
func (s *Set) Insert(p kernel.Particle) error {
	if p.ID < s.nextID {
		return fmt.Errorf("particles: id %d not after %d", p.ID, s.nextID)
	}
	if len(p.Vars) != len(s.schema) {
		return fmt.Errorf("particles: particle %d has %d vars, schema has %d", p.ID, len(p.Vars), len(s.schema))
	}
	s.nextID = p.ID + 1

	pos := Position{Lon: p.Lon, Lat: p.Lat, Depth: p.Depth}
	clk := Clock{Time: p.Time, Dt: p.Dt}
	ident := Identity{ID: p.ID, State: p.State}
	vars := Vars{Values: append(make([]float64, 0, len(p.Vars)), p.Vars...)}
	s.mapper.NewEntity(&pos, &clk, &ident, &vars)
	s.count++
	return nil
}

// AddMany inserts particles at matching lon/lat pairs.
func (s *Set) AddMany(lons, lats []float64, depth, time float64) error {
	if len(lons) != len(lats) {
		return fmt.Errorf("particles: %d lons for %d lats", len(lons), len(lats))
	}
	for i := range lons {
		s.Add(lons[i], lats[i], depth, time)
	}
	return nil
}

// Len returns the number of live particles.
func (s *Set) Len() int { return s.count }

// Schema returns the user variable names.
func (s *Set) Schema() []string { return s.schema }

// VarIndex returns the position of a user variable in Particle.Vars.
func (s *Set) VarIndex(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Collect appends every live particle to dst, ordered by ID.
func (s *Set) Collect(dst []Entry) []Entry {
	start := len(dst)
	query := s.filter.Query()
	for query.Next() {
		pos, clk, ident, vars := query.Get()
		dst = append(dst, Entry{
			Entity: query.Entity(),
			Particle: kernel.Particle{
				ID:    ident.ID,
				Lon:   pos.Lon,
				Lat:   pos.Lat,
				Depth: pos.Depth,
				Time:  clk.Time,
				Dt:    clk.Dt,
				Vars:  append([]float64(nil), vars.Values...),
				State: ident.State,
			},
		})
	}
	sortByID(dst[start:])
	return dst
}

// Store writes a particle back to its entity.
func (s *Set) Store(e *Entry) {
	pos, clk, ident, vars := s.mapper.Get(e.Entity)
	p := &e.Particle
	pos.Lon, pos.Lat, pos.Depth = p.Lon, p.Lat, p.Depth
	clk.Time, clk.Dt = p.Time, p.Dt
	ident.State = p.State
	vars.Values = p.Vars
}

// SetState updates only a particle's state, leaving its position untouched.
func (s *Set) SetState(e ecs.Entity, state kernel.State) {
	_, _, ident, _ := s.mapper.Get(e)
	ident.State = state
}

// Remove deletes a particle. It must not be called while iterating.
func (s *Set) Remove(e ecs.Entity) {
	if !s.world.Alive(e) {
		return
	}
	s.world.RemoveEntity(e)
	s.count--
}

// Particles returns a copy of every live particle, ordered by ID.
func (s *Set) Particles() []kernel.Particle {
	entries := s.Collect(make([]Entry, 0, s.count))
	out := make([]kernel.Particle, len(entries))
	for i := range entries {
		out[i] = entries[i].Particle
	}
	return out
}

// Lons returns the longitudes of every live particle, ordered by ID.
func (s *Set) Lons() []float64 {
	ps := s.Particles()
	out := make([]float64, len(ps))
	for i := range ps {
		out[i] = ps[i].Lon
	}
	return out
}

// Lats returns the latitudes of every live particle, ordered by ID.
func (s *Set) Lats() []float64 {
	ps := s.Particles()
	out := make([]float64, len(ps))
	for i := range ps {
		out[i] = ps[i].Lat
	}
	return out
}

// Var returns a user variable for every live particle, ordered by ID.
func (s *Set) Var(name string) ([]float64, error) {
	idx, ok := s.index[name]
	if !ok {
		return nil, fmt.Errorf("particles: unknown variable %q", name)
	}
	ps := s.Particles()
	out := make([]float64, len(ps))
	for i := range ps {
		out[i] = ps[i].Vars[idx]
	}
	return out, nil
}

func sortByID(es []Entry) {
	sort.Slice(es, func(i, j int) bool { return es[i].Particle.ID < es[j].Particle.ID })
}
