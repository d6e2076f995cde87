// Package geo abstracts the one-shot geolocation capability.
package geo

import (
	"context"
	"errors"
)

// ErrDenied is returned when the position is unavailable or permission
// was denied. Escalation falls back to configured coordinates rather
// than blocking.
var ErrDenied = errors.New("geolocation unavailable or denied")

// Position is a WGS-84 coordinate pair.
type Position struct {
	Latitude  float64
	Longitude float64
}

// Provider supplies the current position.
type Provider interface {
	CurrentPosition(ctx context.Context) (Position, error)
}

// Static always returns a fixed position. Used as the host-provided
// default and in tests.
type Static struct {
	Pos Position
}

func (s Static) CurrentPosition(ctx context.Context) (Position, error) {
	return s.Pos, nil
}

// Denied always reports denial; models a user who declined the
// permission prompt.
type Denied struct{}

func (Denied) CurrentPosition(ctx context.Context) (Position, error) {
	return Position{}, ErrDenied
}
