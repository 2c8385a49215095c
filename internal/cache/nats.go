package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Compile-time check that NATSCache implements Store.
var _ Store = (*NATSCache)(nil)

// NATSCache stores entries in a JetStream object store bucket so several
// instances can share synthesized audio.
type NATSCache struct {
	bucket string
	store  jetstream.ObjectStore
}

// NewNATSCache binds to bucket, creating it if it does not exist. A positive
// ttl lets the server expire entries on its own.
func NewNATSCache(ctx context.Context, nc *nats.Conn, bucket string, ttl time.Duration) (*NATSCache, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	store, err := js.CreateOrUpdateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      bucket,
		Description: "Synthesized speech chunks",
		TTL:         ttl,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store bucket '%s': %w", bucket, err)
	}

	return &NATSCache{bucket: bucket, store: store}, nil
}

// Get reads key from the bucket.
func (n *NATSCache) Get(ctx context.Context, key string, maxAge time.Duration) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	info, err := n.store.GetInfo(ctx, key)
	if errors.Is(err, jetstream.ErrObjectNotFound) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("get object info '%s' from bucket '%s': %w", key, n.bucket, err)
	}
	if info.Deleted || expired(info.ModTime, maxAge) {
		return nil, ErrMiss
	}

	data, err := n.store.GetBytes(ctx, key)
	if errors.Is(err, jetstream.ErrObjectNotFound) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("get object '%s' from bucket '%s': %w", key, n.bucket, err)
	}
	return data, nil
}

// Put writes key to the bucket.
func (n *NATSCache) Put(ctx context.Context, key string, data []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if _, err := n.store.PutBytes(ctx, key, data); err != nil {
		return fmt.Errorf("put object '%s' to bucket '%s': %w", key, n.bucket, err)
	}
	return nil
}
