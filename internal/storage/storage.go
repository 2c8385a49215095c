// Package storage provides the working directory for generated audio and
// optional S3 publishing. It defines the Storage interface (port) used by the
// job service and implementations for local disk and S3.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrPublishNotConfigured is returned when publishing is attempted
	// without an S3 bucket.
	ErrPublishNotConfigured = errors.New("storage: S3 publishing is not configured")
	// ErrObjectNotFound is returned by GetObject for missing keys.
	ErrObjectNotFound = errors.New("storage: object not found")
)

// Storage defines where conversion output lives while a job exists and where
// it is published afterwards.
type Storage interface {
	// SaveTemp writes data to a new file in the working directory and
	// returns its path. The name is used as a filename prefix.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// LoadTemp opens a file previously returned by SaveTemp.
	// The caller is responsible for closing the returned ReadCloser.
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)

	// CleanupTemp removes the given files, continuing past failures.
	CleanupTemp(ctx context.Context, paths []string) error

	// Publish uploads data under key and returns its public URL.
	// Returns ErrPublishNotConfigured when no bucket is configured.
	Publish(ctx context.Context, key, contentType string, data io.Reader) (url string, err error)
}

// Object is a blob read back from an object store.
type Object struct {
	Data         []byte
	LastModified time.Time
}
