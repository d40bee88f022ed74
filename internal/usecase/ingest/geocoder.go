package ingest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"dinesafe/internal/bootstrap/config"
	"dinesafe/internal/ports"
)

const geocodeCachePrefix = "geocode:"

// Geocoder memoizes address lookups for one sync run and throttles calls to
// the underlying provider. It is constructed per run so no counter or memo
// leaks between runs; all shared state sits behind one mutex.
//
// Resolved coordinates are additionally written through the durable cache,
// so a known address never costs a second provider call even on a later
// run. Misses are memoized for the current run only, which keeps a bad
// address from being retried within the run while still allowing the next
// incremental sync to try again.
type Geocoder struct {
	provider   ports.GeocodeProvider
	store      ports.Cache
	pauseEvery int
	pause      time.Duration

	mu     sync.Mutex
	memo   map[string]*ports.Coordinates // nil entry = memoized miss
	calls  int
	hits   int
	misses int
}

func NewGeocoder(provider ports.GeocodeProvider, store ports.Cache, cfg config.GeocoderConfig) *Geocoder {
	return &Geocoder{
		provider:   provider,
		store:      store,
		pauseEvery: cfg.PauseEvery,
		pause:      cfg.Pause(),
		memo:       make(map[string]*ports.Coordinates),
	}
}

// Resolve returns coordinates for the address or nil when the address
// cannot be resolved. A nil result is not an error for the caller beyond
// skipping the establishment for this run.
func (g *Geocoder) Resolve(ctx context.Context, address, city, state, zip string) (*ports.Coordinates, error) {
	key := normalizeAddress(address, city, state, zip)
	if key == "" {
		return nil, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if coords, ok := g.memo[key]; ok {
		if coords == nil {
			return nil, nil
		}
		clone := *coords
		return &clone, nil
	}

	if coords := g.fromStore(ctx, key); coords != nil {
		g.memo[key] = coords
		g.hits++
		clone := *coords
		return &clone, nil
	}

	g.calls++
	if g.pauseEvery > 0 && g.pause > 0 && g.calls%g.pauseEvery == 0 {
		select {
		case <-time.After(g.pause):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	coords, err := g.provider.Lookup(ctx, key)
	if err != nil || coords == nil {
		g.memo[key] = nil
		g.misses++
		return nil, err
	}

	g.memo[key] = coords
	g.hits++

	if g.store != nil {
		value := fmt.Sprintf("%g,%g", coords.Latitude, coords.Longitude)
		// A failed cache write only costs a future provider call.
		_ = g.store.Set(ctx, geocodeCachePrefix+key, value, 0)
	}

	clone := *coords
	return &clone, nil
}

// Hits reports how many addresses resolved during the run.
func (g *Geocoder) Hits() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.hits
}

// Misses reports how many addresses failed to resolve during the run.
func (g *Geocoder) Misses() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.misses
}

func (g *Geocoder) fromStore(ctx context.Context, key string) *ports.Coordinates {
	if g.store == nil {
		return nil
	}

	value, found, err := g.store.Get(ctx, geocodeCachePrefix+key)
	if err != nil || !found {
		return nil
	}

	lat, lng, ok := strings.Cut(value, ",")
	if !ok {
		return nil
	}
	latitude, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return nil
	}
	longitude, err := strconv.ParseFloat(lng, 64)
	if err != nil {
		return nil
	}
	return &ports.Coordinates{Latitude: latitude, Longitude: longitude}
}

func normalizeAddress(parts ...string) string {
	joined := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			joined = append(joined, part)
		}
	}
	return strings.ToLower(strings.Join(strings.Fields(strings.Join(joined, ", ")), " "))
}
