package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Compile-time check that Tiered implements Store.
var _ Store = (*Tiered)(nil)

// Tiered puts a fast store in front of a slower, persistent one. Reads that
// miss the front and hit the back refill the front.
type Tiered struct {
	front  Store
	back   Store
	logger *slog.Logger
}

// NewTiered creates a two-level store.
func NewTiered(front, back Store, logger *slog.Logger) *Tiered {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tiered{front: front, back: back, logger: logger}
}

// Get tries the front store, then the back store.
func (t *Tiered) Get(ctx context.Context, key string, maxAge time.Duration) ([]byte, error) {
	data, err := t.front.Get(ctx, key, maxAge)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, ErrMiss) {
		t.logger.Warn("front cache read failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}

	data, err = t.back.Get(ctx, key, maxAge)
	if err != nil {
		return nil, err
	}

	if err := t.front.Put(ctx, key, data); err != nil {
		t.logger.Warn("front cache refill failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
	return data, nil
}

// Put writes through to both stores. The back store is written first.
func (t *Tiered) Put(ctx context.Context, key string, data []byte) error {
	if err := t.back.Put(ctx, key, data); err != nil {
		return fmt.Errorf("back cache: %w", err)
	}
	if err := t.front.Put(ctx, key, data); err != nil {
		return fmt.Errorf("front cache: %w", err)
	}
	return nil
}
