package cache

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/maauso/speechcast/internal/storage"
)

// ObjectStore is the subset of an object storage client ObjectCache needs.
// storage.S3Storage satisfies it.
type ObjectStore interface {
	GetObject(ctx context.Context, key string) (storage.Object, error)
	PutObject(ctx context.Context, key string, data []byte) error
}

// Compile-time check that ObjectCache implements Store.
var _ Store = (*ObjectCache)(nil)

// ObjectCache keeps entries in a bucket under a common prefix.
type ObjectCache struct {
	objects ObjectStore
	prefix  string
}

// NewObjectCache creates an ObjectCache. Keys are stored as prefix/key.
func NewObjectCache(objects ObjectStore, prefix string) *ObjectCache {
	return &ObjectCache{objects: objects, prefix: prefix}
}

func (o *ObjectCache) objectKey(key string) string {
	if o.prefix == "" {
		return key
	}
	return path.Join(o.prefix, key)
}

// Get downloads key. The object's last-modified time is used for the age
// check.
func (o *ObjectCache) Get(ctx context.Context, key string, maxAge time.Duration) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	obj, err := o.objects.GetObject(ctx, o.objectKey(key))
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("read cache object: %w", err)
	}
	if !obj.LastModified.IsZero() && expired(obj.LastModified, maxAge) {
		return nil, ErrMiss
	}
	return obj.Data, nil
}

// Put uploads data under key.
func (o *ObjectCache) Put(ctx context.Context, key string, data []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := o.objects.PutObject(ctx, o.objectKey(key), data); err != nil {
		return fmt.Errorf("write cache object: %w", err)
	}
	return nil
}
