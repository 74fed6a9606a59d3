package field

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfDomain is returned when a sample point lies outside a field's
	// spatial or temporal extent.
	ErrOutOfDomain = errors.New("field: point out of domain")

	// ErrUnknownField is returned when a FieldSet has no field of that name.
	ErrUnknownField = errors.New("field: unknown field")

	// ErrMeshMismatch is returned when fields of different meshes are combined.
	ErrMeshMismatch = errors.New("field: mesh mismatch")

	// ErrInvalidGrid is returned for malformed axes or data shapes.
	ErrInvalidGrid = errors.New("field: invalid grid")
)

// OutOfDomainError records the rejected sample point.
type OutOfDomainError struct {
	Field string
	Time  float64
	Depth float64
	Lat   float64
	Lon   float64
}

func (e *OutOfDomainError) Error() string {
	return fmt.Sprintf("field: %s: point (lon=%g, lat=%g, depth=%g, time=%g) out of domain",
		e.Field, e.Lon, e.Lat, e.Depth, e.Time)
}

func (e *OutOfDomainError) Unwrap() error {
	return ErrOutOfDomain
}
