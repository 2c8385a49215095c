package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
)

const (
	rawExt        = ".bin"
	compressedExt = ".zst"
	// Payloads smaller than this are never compressed.
	minCompressSize = 1024
)

// Compile-time check that DiskCache implements Store.
var _ Store = (*DiskCache)(nil)

// DiskCache stores one file per key in a directory. Entries are compressed
// with zstd when that makes them smaller; already-compressed audio usually
// stays raw. Validity is judged by the file's modification time.
type DiskCache struct {
	dir     string
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewDiskCache creates the directory if needed. A compression level of zero
// or less disables compression; reading compressed entries still works.
func NewDiskCache(dir string, compressionLevel int) (*DiskCache, error) {
	if dir == "" {
		return nil, errors.New("cache: directory is required")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	dc := &DiskCache{dir: dir}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	dc.decoder = decoder

	if compressionLevel > 0 {
		encoder, err := zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
		if err != nil {
			decoder.Close()
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		dc.encoder = encoder
	}

	return dc, nil
}

// Dir returns the cache directory.
func (dc *DiskCache) Dir() string {
	return dc.dir
}

// Get reads key from disk.
func (dc *DiskCache) Get(ctx context.Context, key string, maxAge time.Duration) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}

	for _, ext := range []string{compressedExt, rawExt} {
		path := filepath.Join(dc.dir, key+ext)
		info, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("stat cache entry: %w", err)
		}
		if expired(info.ModTime(), maxAge) {
			return nil, ErrMiss
		}

		data, err := os.ReadFile(path) // #nosec G304 - key is validated
		if err != nil {
			return nil, fmt.Errorf("read cache entry: %w", err)
		}
		if ext == compressedExt {
			data, err = dc.decoder.DecodeAll(data, nil)
			if err != nil {
				return nil, fmt.Errorf("decompress cache entry: %w", err)
			}
		}
		return data, nil
	}

	return nil, ErrMiss
}

// Put writes key atomically and removes any entry stored with the other
// encoding.
func (dc *DiskCache) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	if err := validateKey(key); err != nil {
		return err
	}

	payload, ext := data, rawExt
	if dc.encoder != nil && len(data) >= minCompressSize {
		if compressed := dc.encoder.EncodeAll(data, nil); len(compressed) < len(data) {
			payload, ext = compressed, compressedExt
		}
	}

	f, err := os.CreateTemp(dc.dir, key+".tmp-*")
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}
	tmp := f.Name()
	if _, err := f.Write(payload); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(dc.dir, key+ext)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit cache file: %w", err)
	}

	stale := rawExt
	if ext == rawExt {
		stale = compressedExt
	}
	if err := os.Remove(filepath.Join(dc.dir, key+stale)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove stale cache file: %w", err)
	}

	return nil
}

// Close releases the zstd encoder and decoder.
func (dc *DiskCache) Close() error {
	if dc.encoder != nil {
		if err := dc.encoder.Close(); err != nil {
			return fmt.Errorf("close zstd encoder: %w", err)
		}
	}
	dc.decoder.Close()
	return nil
}
