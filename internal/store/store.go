// Package store provides the key/value store with expiry that backs the
// option label cache, rate limit counters and the encrypted API token.
//
// Backends: MemoryStore (tests, single process), SQLStore (SQLite or
// PostgreSQL) and RedisStore. Open picks one from a DSN.
package store

import (
	"context"
	"io"
	"time"
)

// Store is a key/value store with per-key expiry.
//
// Get returns (nil, nil) when the key is missing or expired. A ttl of zero
// means the value never expires.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Incrementer is implemented by stores that can atomically increment an
// integer counter, setting ttl only when the counter is created. The returned
// value is the counter after the increment.
type Incrementer interface {
	IncrWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Backend is a Store that holds resources which must be released.
type Backend interface {
	Store
	io.Closer
}
