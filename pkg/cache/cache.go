// Package cache stores derived artifacts (layouts and rendered output) keyed
// by a hash of the snapshot and the options that produced them.
//
// Three backends implement [Cache]:
//
//   - [FileCache]: one JSON entry file per key under a directory, for the CLI
//   - [RedisCache]: a shared cache for the HTTP server and multiple processes
//   - [NullCache]: stores nothing, used with --no-cache and in tests
//
// Keys come from a [Keyer]. [DefaultKeyer] hashes the key options with
// SHA-256; [ScopedKeyer] adds a namespace prefix.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with optional expiry.
type Cache interface {
	// Get returns the stored data and whether the key was present. A miss
	// is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data. A zero ttl means the entry never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	Close() error
}

// Clearer is implemented by caches that can drop every entry they own.
type Clearer interface {
	Clear(ctx context.Context) (int, error)
}

// Default expiry per artifact kind.
const (
	TTLSnapshot = 24 * time.Hour
	TTLLayout   = 7 * 24 * time.Hour
	TTLArtifact = 7 * 24 * time.Hour
)
