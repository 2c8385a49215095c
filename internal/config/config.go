// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/maauso/speechcast/internal/speech"
)

// Cache backends selectable with CACHE_BACKEND.
const (
	CacheBackendDisk = "disk"
	CacheBackendS3   = "s3"
	CacheBackendNATS = "nats"
)

// Static errors for configuration validation.
var (
	// ErrResourceKeyRequired is returned when AZURE_SPEECH_RESOURCE_KEY is not set.
	ErrResourceKeyRequired = errors.New("config: AZURE_SPEECH_RESOURCE_KEY is required")
	// ErrRegionRequired is returned when AZURE_SPEECH_REGION is not set.
	ErrRegionRequired = errors.New("config: AZURE_SPEECH_REGION is required")
	// ErrUnknownCacheBackend is returned for an unsupported CACHE_BACKEND.
	ErrUnknownCacheBackend = errors.New("config: CACHE_BACKEND must be disk, s3 or nats")
	// ErrS3BucketRequired is returned when the s3 cache backend has no bucket.
	ErrS3BucketRequired = errors.New("config: S3_BUCKET is required for the s3 cache backend")
	// ErrNATSURLRequired is returned when the nats cache backend has no URL.
	ErrNATSURLRequired = errors.New("config: NATS_URL is required for the nats cache backend")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port         int   `env:"PORT, default=8080" json:"port"`
	MaxBodyBytes int64 `env:"MAX_BODY_BYTES, default=4194304" json:"max_body_bytes"`

	// Azure Speech settings. Credentials are checked per conversion so the
	// server can start without them and report CONFIGURATION_ERROR.
	ResourceKey       string        `env:"AZURE_SPEECH_RESOURCE_KEY" json:"-"` // Masked in JSON
	Region            string        `env:"AZURE_SPEECH_REGION" json:"region"`
	Endpoint          string        `env:"AZURE_SPEECH_ENDPOINT" json:"endpoint,omitempty"` // Overrides the regional URL
	VoiceName         string        `env:"VOICE_NAME, default=en-AU-WilliamNeural" json:"voice_name"`
	SpeechRate        string        `env:"SPEECH_RATE, default=0%" json:"speech_rate"`
	LexiconURL        string        `env:"LEXICON_URL" json:"lexicon_url,omitempty"`
	RequestsPerSecond float64       `env:"REQUESTS_PER_SECOND, default=0" json:"requests_per_second"`
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT, default=60s" json:"request_timeout"`
	MaxRetries        int           `env:"MAX_RETRIES, default=0" json:"max_retries"`

	// Processing settings
	MaxChunkLength      int `env:"MAX_CHUNK_LENGTH, default=7000" json:"max_chunk_length"`
	MaxConcurrentChunks int `env:"MAX_CONCURRENT_CHUNKS, default=4" json:"max_concurrent_chunks"`

	// Cache settings
	CacheBackend          string        `env:"CACHE_BACKEND, default=disk" json:"cache_backend"`
	CacheDir              string        `env:"CACHE_DIR, default=.cache/speechcast" json:"cache_dir"`
	CacheTTL              time.Duration `env:"CACHE_TTL, default=8760h" json:"cache_ttl"`
	CacheMemoryItems      uint64        `env:"CACHE_MEMORY_ITEMS, default=256" json:"cache_memory_items"`
	CacheCompressionLevel int           `env:"CACHE_COMPRESSION_LEVEL, default=3" json:"cache_compression_level"`

	// Storage settings
	WorkDir string `env:"WORK_DIR" json:"work_dir,omitempty"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION, default=us-east-1" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	S3Prefix           string `env:"S3_PREFIX, default=speechcast/cache" json:"s3_prefix,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Optional NATS settings
	NATSURL    string `env:"NATS_URL" json:"nats_url,omitempty"`
	NATSBucket string `env:"NATS_BUCKET, default=speechcast-audio" json:"nats_bucket"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if an S3 bucket is configured.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != ""
}

// Load reads configuration from environment variables using go-envconfig.
func Load() (*Config, error) {
	return load(envconfig.OsLookuper())
}

func load(lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}

	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg.CacheBackend = strings.ToLower(strings.TrimSpace(cfg.CacheBackend))
	if err := cfg.validateCache(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validateCache() error {
	switch c.CacheBackend {
	case CacheBackendDisk:
		return nil
	case CacheBackendS3:
		if c.S3Bucket == "" {
			return ErrS3BucketRequired
		}
		return nil
	case CacheBackendNATS:
		if c.NATSURL == "" {
			return ErrNATSURLRequired
		}
		return nil
	default:
		return ErrUnknownCacheBackend
	}
}

// Validate checks that the Azure credentials are present.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ResourceKey) == "" {
		errs = append(errs, ErrResourceKeyRequired)
	}
	if strings.TrimSpace(c.Region) == "" {
		errs = append(errs, ErrRegionRequired)
	}
	return errors.Join(errs...)
}

// SpeechOptions returns the synthesis options every conversion starts from.
func (c *Config) SpeechOptions() speech.Options {
	return speech.Options{
		VoiceName:   c.VoiceName,
		ResourceKey: c.ResourceKey,
		Region:      c.Region,
		Speed:       c.SpeechRate,
		LexiconURL:  c.LexiconURL,
	}.WithDefaults()
}

// NewLogger creates a structured logger writing to stdout.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	return c.NewLoggerTo(os.Stdout)
}

// NewLoggerTo is NewLogger with an explicit destination.
func (c *Config) NewLoggerTo(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, Region: %s, ResourceKey: %s, VoiceName: %s, SpeechRate: %s, MaxChunkLength: %d, MaxConcurrentChunks: %d, CacheBackend: %s, CacheDir: %s, CacheTTL: %s, S3Bucket: %s, S3Region: %s, NATSURL: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.Region,
		mask(c.ResourceKey),
		c.VoiceName,
		c.SpeechRate,
		c.MaxChunkLength,
		c.MaxConcurrentChunks,
		c.CacheBackend,
		c.CacheDir,
		c.CacheTTL,
		c.S3Bucket,
		c.S3Region,
		c.NATSURL,
		c.LogFormat,
		c.LogLevel,
	)
}

func mask(secret string) string {
	if secret == "" {
		return "<unset>"
	}
	return "****"
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
