package particles

import "github.com/STOA-tech/Parcels/kernel"

// Position is a particle's location in mesh units (depth in meters).
type Position struct {
	Lon, Lat, Depth float64
}

// Clock is a particle's own time and step size, in seconds.
type Clock struct {
	Time, Dt float64
}

// Identity holds the stable particle ID and its last kernel state.
type Identity struct {
	ID    uint64
	State kernel.State
}

// Vars holds user-declared scalar variables, ordered by the set's schema.
type Vars struct {
	Values []float64
}
