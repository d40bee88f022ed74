package ports

import "context"

type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// GeocodeProvider resolves a free-text address to at most one best-match
// coordinate pair. A nil result with nil error means no match.
type GeocodeProvider interface {
	Lookup(ctx context.Context, address string) (*Coordinates, error)
}
