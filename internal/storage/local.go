package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Compile-time check that LocalStorage implements Storage.
var _ Storage = (*LocalStorage)(nil)

// LocalStorage keeps generated audio in a working directory on local disk.
// It does not publish; wrap it with S3Storage for that.
type LocalStorage struct {
	workDir string
	// owned is true when the directory was created by NewLocalStorage and
	// must be removed by Close.
	owned bool
}

// NewLocalStorage creates a LocalStorage rooted at workDir.
// The directory is created if it doesn't exist. When workDir is empty a fresh
// directory is created under os.TempDir() and removed again by Close.
func NewLocalStorage(workDir string) (*LocalStorage, error) {
	if workDir == "" {
		dir, err := os.MkdirTemp("", "speechcast-*")
		if err != nil {
			return nil, fmt.Errorf("create work directory: %w", err)
		}
		return &LocalStorage{workDir: dir, owned: true}, nil
	}

	if err := os.MkdirAll(workDir, 0750); err != nil {
		return nil, fmt.Errorf("create work directory: %w", err)
	}

	return &LocalStorage{workDir: workDir}, nil
}

// WorkDir returns the working directory path.
func (s *LocalStorage) WorkDir() string {
	return s.workDir
}

// SaveTemp writes data to a uniquely named file in the working directory.
func (s *LocalStorage) SaveTemp(ctx context.Context, name string, data io.Reader) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	name = strings.NewReplacer("/", "_", `\`, "_").Replace(name)
	f, err := os.CreateTemp(s.workDir, name+"_*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	fileName := f.Name()
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(fileName)
		return "", fmt.Errorf("write temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(fileName)
		return "", fmt.Errorf("close temp file: %w", err)
	}

	return fileName, nil
}

// LoadTemp opens a file from the working directory.
func (s *LocalStorage) LoadTemp(ctx context.Context, path string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.Open(path) // #nosec G304 - path is provided by trusted caller
	if err != nil {
		return nil, fmt.Errorf("open temp file: %w", err)
	}

	return f, nil
}

// CleanupTemp removes the given files and returns the first error.
// Missing files are not an error.
func (s *LocalStorage) CleanupTemp(ctx context.Context, paths []string) error {
	var firstErr error
	for _, p := range paths {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove temp file %s: %w", p, err)
			}
		}
	}
	return firstErr
}

// Publish is not supported by LocalStorage.
func (s *LocalStorage) Publish(_ context.Context, _, _ string, _ io.Reader) (string, error) {
	return "", ErrPublishNotConfigured
}

// Close removes the working directory if NewLocalStorage created it.
func (s *LocalStorage) Close() error {
	if !s.owned {
		return nil
	}
	if err := os.RemoveAll(s.workDir); err != nil {
		return fmt.Errorf("remove work directory: %w", err)
	}
	return nil
}
