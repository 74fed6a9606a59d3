package random

import "sync"

// Streams hands out one independent generator per particle.
//
// A particle's stream is a pure function of (backend, master seed, particle
// ID), and persists across timesteps. Results therefore do not depend on the
// order in which particles are processed, so particles may be integrated in
// parallel. Any single stream must only be used by one goroutine at a time.
type Streams struct {
	mu      sync.Mutex
	backend Backend
	seed    int64
	streams map[uint64]Generator
}

// NewStreams creates a stream registry with the given master seed.
func NewStreams(backend Backend, seed int64) *Streams {
	return &Streams{
		backend: backend,
		seed:    seed,
		streams: make(map[uint64]Generator),
	}
}

// Seed resets the master seed and discards all existing streams.
func (s *Streams) Seed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seed = seed
	s.streams = make(map[uint64]Generator)
}

// Stream returns the generator for particle id, creating it on first use.
func (s *Streams) Stream(id uint64) Generator {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.streams[id]
	if !ok {
		g = s.derive(id)
		s.streams[id] = g
	}
	return g
}

// Release drops the stream of a removed particle.
func (s *Streams) Release(id uint64) {
	s.mu.Lock()
	delete(s.streams, id)
	s.mu.Unlock()
}

// Len returns the number of live streams.
func (s *Streams) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streams)
}

// Backend returns the engine used for new streams.
func (s *Streams) Backend() Backend { return s.backend }

// MasterSeed returns the seed streams are derived from.
func (s *Streams) MasterSeed() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seed
}

func (s *Streams) derive(id uint64) Generator {
	switch s.backend {
	case BackendPCG:
		// rand.PCG has a fixed increment, so the id is mixed into the state
		// rather than used as a sequence selector alone.
		return newPCGStream(uint64(deriveSeed(s.seed, id)), id)
	default:
		return NewMT(deriveSeed(s.seed, id))
	}
}

// ContinuationSeed returns the master seed for a run resumed after step
// steps of a run seeded with seed. Its streams are unrelated to those of the
// first leg, so the resumed particles draw fresh increments.
func ContinuationSeed(seed int64, step int) int64 {
	if step == 0 {
		return seed
	}
	return deriveSeed(seed, ^uint64(step))
}

// deriveSeed mixes a parent seed and a stream id with the SplitMix64
// finalizer.
func deriveSeed(parent int64, stream uint64) int64 {
	x := uint64(parent) ^ (stream + 0x9e3779b97f4a7c15)
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	x ^= x >> 31
	return int64(x)
}
