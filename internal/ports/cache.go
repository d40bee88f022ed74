package ports

import (
	"context"
	"time"
)

// Cache is a durable key-value capability. The geocoder uses it to persist
// resolved coordinates across sync runs; adapters may be backed by SQLite or
// any other store. TTL may be ignored by adapters that do not expire.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
