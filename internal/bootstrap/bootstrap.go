// Package bootstrap provides dependency initialization shared by the HTTP
// server and the command line tool.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/maauso/speechcast/internal/azure"
	"github.com/maauso/speechcast/internal/cache"
	"github.com/maauso/speechcast/internal/config"
	"github.com/maauso/speechcast/internal/job"
	"github.com/maauso/speechcast/internal/memo"
	"github.com/maauso/speechcast/internal/speech"
	"github.com/maauso/speechcast/internal/storage"
)

// maxMemoryTTL caps how long the in-process tier keeps an entry.
const maxMemoryTTL = time.Hour

// Dependencies holds all initialized dependencies.
type Dependencies struct {
	Assembler *speech.Assembler
	Service   *job.ConversionService
	Storage   storage.Storage
	Memo      *memo.Memo

	closers []func() error
}

// NewDependencies creates and initializes all dependencies for the application.
// Close must be called to release caches, connections and the work directory.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{}

	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}
	deps.Storage = store
	if c, ok := store.(interface{ Close() error }); ok {
		deps.closers = append(deps.closers, c.Close)
	}

	audioCache, err := deps.initCache(ctx, cfg, store, logger)
	if err != nil {
		_ = deps.Close()
		return nil, err
	}
	deps.Memo = memo.New(audioCache, cfg.CacheTTL, logger)

	clientOpts := []azure.ClientOption{
		azure.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
		azure.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.RequestsPerSecond > 0 {
		clientOpts = append(clientOpts, azure.WithRateLimit(cfg.RequestsPerSecond, cfg.MaxConcurrentChunks))
	}
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, azure.WithBaseURL(cfg.Endpoint))
	}
	client := azure.NewClient(clientOpts...)

	synth := speech.NewCachingSynthesizer(client, deps.Memo, logger)
	deps.Assembler = speech.NewAssembler(synth,
		speech.WithMaxChunkLength(cfg.MaxChunkLength),
		speech.WithConcurrency(cfg.MaxConcurrentChunks),
		speech.WithLogger(logger),
	)

	deps.Service = job.NewConversionService(
		job.NewMemoryRepository(),
		deps.Assembler,
		store,
		cfg.SpeechOptions(),
		logger,
	)

	return deps, nil
}

// Close releases resources in reverse order of creation.
func (d *Dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.WorkDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.String("work_dir", s3Store.WorkDir()),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("work_dir", localStore.WorkDir()),
	)
	return localStore, nil
}

// initCache builds the persistent cache tier selected by CACHE_BACKEND and
// puts a bounded memory tier in front of it.
func (d *Dependencies) initCache(ctx context.Context, cfg *config.Config, store storage.Storage, logger *slog.Logger) (cache.Store, error) {
	var back cache.Store

	switch cfg.CacheBackend {
	case config.CacheBackendS3:
		objects, ok := store.(cache.ObjectStore)
		if !ok {
			return nil, config.ErrS3BucketRequired
		}
		back = cache.NewObjectCache(objects, cfg.S3Prefix)
		logger.Info("S3 cache configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("prefix", cfg.S3Prefix),
		)

	case config.CacheBackendNATS:
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("speechcast"))
		if err != nil {
			return nil, fmt.Errorf("connect to NATS: %w", err)
		}
		d.closers = append(d.closers, func() error {
			nc.Close()
			return nil
		})
		natsCache, err := cache.NewNATSCache(ctx, nc, cfg.NATSBucket, cfg.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("create NATS cache: %w", err)
		}
		back = natsCache
		logger.Info("NATS cache configured",
			slog.String("url", nc.ConnectedUrlRedacted()),
			slog.String("bucket", cfg.NATSBucket),
		)

	default:
		disk, err := cache.NewDiskCache(cfg.CacheDir, cfg.CacheCompressionLevel)
		if err != nil {
			return nil, fmt.Errorf("create disk cache: %w", err)
		}
		d.closers = append(d.closers, disk.Close)
		back = disk
		logger.Info("disk cache configured",
			slog.String("dir", disk.Dir()),
			slog.Duration("ttl", cfg.CacheTTL),
		)
	}

	if cfg.CacheMemoryItems == 0 {
		return back, nil
	}
	return cache.NewTiered(cache.NewMemoryCache(cfg.CacheMemoryItems, memoryTTL(cfg.CacheTTL)), back, logger), nil
}

// memoryTTL bounds the memory tier's lifetime. Refilled entries are stamped
// with the refill time, so this is how long an entry can outlive its
// persistent copy.
func memoryTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > maxMemoryTTL {
		return maxMemoryTTL
	}
	return ttl
}
