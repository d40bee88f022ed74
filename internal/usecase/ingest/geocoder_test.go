package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dinesafe/internal/bootstrap/config"
	"dinesafe/internal/ports"
)

type fakeProvider struct {
	mu     sync.Mutex
	calls  int
	coords *ports.Coordinates
	err    error
}

func (p *fakeProvider) Lookup(_ context.Context, _ string) (*ports.Coordinates, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	if p.coords == nil {
		return nil, nil
	}
	clone := *p.coords
	return &clone, nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type memCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string]string)}
}

func (c *memCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.data[key]
	return value, ok, nil
}

func (c *memCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func TestGeocoderMemoizesWithinRun(t *testing.T) {
	provider := &fakeProvider{coords: &ports.Coordinates{Latitude: 41.88, Longitude: -87.63}}
	geocoder := NewGeocoder(provider, newMemCache(), config.GeocoderConfig{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		coords, err := geocoder.Resolve(ctx, "123 W Adams St", "Chicago", "IL", "60604")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if coords == nil || coords.Latitude != 41.88 {
			t.Fatalf("Resolve() = %+v", coords)
		}
	}

	if got := provider.callCount(); got != 1 {
		t.Fatalf("provider called %d times", got)
	}
	if geocoder.Hits() != 3 {
		t.Fatalf("Hits() = %d", geocoder.Hits())
	}
}

func TestGeocoderReadsDurableCacheFirst(t *testing.T) {
	cache := newMemCache()
	provider := &fakeProvider{coords: &ports.Coordinates{Latitude: 41.88, Longitude: -87.63}}
	ctx := context.Background()

	first := NewGeocoder(provider, cache, config.GeocoderConfig{})
	if _, err := first.Resolve(ctx, "123 W Adams St", "Chicago", "IL", "60604"); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	// A fresh run with the same durable cache must not hit the provider.
	second := NewGeocoder(provider, cache, config.GeocoderConfig{})
	coords, err := second.Resolve(ctx, "123 W Adams St", "Chicago", "IL", "60604")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if coords == nil || coords.Longitude != -87.63 {
		t.Fatalf("Resolve() = %+v", coords)
	}
	if got := provider.callCount(); got != 1 {
		t.Fatalf("provider called %d times", got)
	}
}

func TestGeocoderMemoizesMissForRunOnly(t *testing.T) {
	cache := newMemCache()
	provider := &fakeProvider{}
	ctx := context.Background()

	geocoder := NewGeocoder(provider, cache, config.GeocoderConfig{})
	for i := 0; i < 2; i++ {
		coords, err := geocoder.Resolve(ctx, "1 Nowhere Ln", "Chicago", "IL", "60604")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if coords != nil {
			t.Fatalf("Resolve() = %+v", coords)
		}
	}
	if got := provider.callCount(); got != 1 {
		t.Fatalf("provider called %d times within run", got)
	}
	if geocoder.Misses() != 1 {
		t.Fatalf("Misses() = %d", geocoder.Misses())
	}

	// Misses are not persisted, so the next run tries again.
	next := NewGeocoder(provider, cache, config.GeocoderConfig{})
	if _, err := next.Resolve(ctx, "1 Nowhere Ln", "Chicago", "IL", "60604"); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got := provider.callCount(); got != 2 {
		t.Fatalf("provider called %d times across runs", got)
	}
}

func TestGeocoderProviderError(t *testing.T) {
	provider := &fakeProvider{err: errors.New("rate limited")}
	geocoder := NewGeocoder(provider, nil, config.GeocoderConfig{})

	coords, err := geocoder.Resolve(context.Background(), "123 W Adams St", "Chicago", "IL", "60604")
	if err == nil {
		t.Fatal("Resolve() expected error")
	}
	if coords != nil {
		t.Fatalf("Resolve() = %+v", coords)
	}
}

func TestGeocoderEmptyAddress(t *testing.T) {
	provider := &fakeProvider{coords: &ports.Coordinates{Latitude: 1, Longitude: 2}}
	geocoder := NewGeocoder(provider, nil, config.GeocoderConfig{})

	coords, err := geocoder.Resolve(context.Background(), "", "  ", "", "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if coords != nil {
		t.Fatalf("Resolve() = %+v", coords)
	}
	if provider.callCount() != 0 {
		t.Fatalf("provider called for empty address")
	}
}

func TestNormalizeAddress(t *testing.T) {
	got := normalizeAddress(" 123  W Adams St ", "Chicago", "", "60604")
	want := "123 w adams st, chicago, 60604"
	if got != want {
		t.Fatalf("normalizeAddress() = %q, want %q", got, want)
	}
}
