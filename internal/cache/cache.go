// Package cache provides key/value stores for synthesized audio.
// Keys are content fingerprints, values are opaque audio blobs. Every store
// honours a maximum age on read so stale entries are treated as absent.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrMiss is returned when a key is absent or older than the requested age.
	ErrMiss = errors.New("cache: miss")
	// ErrInvalidKey is returned for keys that cannot be used as object names.
	ErrInvalidKey = errors.New("cache: invalid key")
)

// DefaultTTL is how long synthesized audio stays valid.
const DefaultTTL = 365 * 24 * time.Hour

// Store is the port every cache backend implements.
type Store interface {
	// Get returns the value stored under key. A maxAge of zero or less
	// disables the age check. Returns ErrMiss when the entry is absent or
	// expired.
	Get(ctx context.Context, key string, maxAge time.Duration) ([]byte, error)

	// Put stores data under key, replacing any previous value.
	Put(ctx context.Context, key string, data []byte) error
}

// validateKey rejects keys that could escape a directory or bucket prefix.
func validateKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return ErrInvalidKey
	}
	return nil
}

// expired reports whether an entry written at stored is older than maxAge.
func expired(stored time.Time, maxAge time.Duration) bool {
	return maxAge > 0 && time.Since(stored) > maxAge
}
