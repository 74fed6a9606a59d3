package field

import (
	"fmt"
	"math"
)

// MetersPerDegree is the length of one degree of latitude (60 nautical miles).
const MetersPerDegree = 1852.0 * 60.0

// Mesh is the coordinate system of a grid.
type Mesh uint8

const (
	// MeshSpherical grids use degrees of longitude and latitude.
	MeshSpherical Mesh = iota
	// MeshFlat grids are already metric.
	MeshFlat
)

func (m Mesh) String() string {
	switch m {
	case MeshSpherical:
		return "spherical"
	case MeshFlat:
		return "flat"
	}
	return fmt.Sprintf("Mesh(%d)", uint8(m))
}

// ParseMesh maps a config name to a Mesh.
func ParseMesh(name string) (Mesh, error) {
	switch name {
	case "spherical":
		return MeshSpherical, nil
	case "flat":
		return MeshFlat, nil
	}
	return 0, fmt.Errorf("field: unknown mesh %q", name)
}

// MeridionalFactor converts a northward displacement in meters to mesh units.
func (m Mesh) MeridionalFactor() float64 {
	if m == MeshFlat {
		return 1
	}
	return 1 / MetersPerDegree
}

// ZonalFactor converts an eastward displacement in meters at latitude lat
// (mesh units) to mesh units.
func (m Mesh) ZonalFactor(lat float64) float64 {
	if m == MeshFlat {
		return 1
	}
	return 1 / (MetersPerDegree * math.Cos(lat*math.Pi/180))
}
