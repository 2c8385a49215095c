// Package memo memoizes expensive byte-producing operations by a fingerprint
// of their input text.
package memo

import (
	"context"
	"crypto/md5" // #nosec G501 - fingerprint only, not a security boundary
	"encoding/hex"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/maauso/speechcast/internal/cache"
)

// Key returns the lowercase hex md5 of text. The format matches cache
// directories written by earlier releases.
func Key(text string) string {
	sum := md5.Sum([]byte(text)) // #nosec G401
	return hex.EncodeToString(sum[:])
}

// ComputeFunc produces the value for a cache miss.
type ComputeFunc func(ctx context.Context) ([]byte, error)

// Stats counts lookups since the Memo was created.
type Stats struct {
	Hits   int64
	Misses int64
}

// Memo is a cache-aside wrapper around a cache.Store.
type Memo struct {
	store  cache.Store
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a Memo. A ttl of zero or less disables the age check.
func New(store cache.Store, ttl time.Duration, logger *slog.Logger) *Memo {
	if logger == nil {
		logger = slog.Default()
	}
	return &Memo{store: store, ttl: ttl, logger: logger}
}

// Do returns the cached value for text or calls compute and stores its
// result. Concurrent calls for the same text share a single compute.
// A failing cache read falls through to compute, a failing write is logged.
// The returned bool reports whether the value came from the cache.
//
// The shared lookup and compute run detached from any single caller, so a
// cancelled caller only abandons its own wait; the others still get the
// value, and it is still stored.
func (m *Memo) Do(ctx context.Context, text string, compute ComputeFunc) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	key := Key(text)
	shared := context.WithoutCancel(ctx)

	ch := m.group.DoChan(key, func() (any, error) {
		return m.lookup(shared, key, compute)
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		r := res.Val.(result)
		return r.data, r.hit, nil
	}
}

type result struct {
	data []byte
	hit  bool
}

func (m *Memo) lookup(ctx context.Context, key string, compute ComputeFunc) (result, error) {
	data, err := m.store.Get(ctx, key, m.ttl)
	switch {
	case err == nil:
		m.hits.Add(1)
		m.logger.Info("cache hit", slog.String("key", key), slog.Int("bytes", len(data)))
		return result{data: data, hit: true}, nil
	case errors.Is(err, cache.ErrMiss):
		m.logger.Info("cache miss", slog.String("key", key))
	default:
		m.logger.Warn("cache read failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
	m.misses.Add(1)

	data, err = compute(ctx)
	if err != nil {
		return result{}, err
	}

	if err := m.store.Put(ctx, key, data); err != nil {
		m.logger.Warn("cache write failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
	return result{data: data}, nil
}

// Stats returns the hit and miss counters.
func (m *Memo) Stats() Stats {
	return Stats{Hits: m.hits.Load(), Misses: m.misses.Load()}
}
