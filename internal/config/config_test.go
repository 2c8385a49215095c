package config

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/speechcast/internal/speech"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(envconfig.MapLookuper(map[string]string{}))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "en-AU-WilliamNeural", cfg.VoiceName)
	assert.Equal(t, "0%", cfg.SpeechRate)
	assert.Equal(t, 7000, cfg.MaxChunkLength)
	assert.Equal(t, 4, cfg.MaxConcurrentChunks)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Equal(t, CacheBackendDisk, cfg.CacheBackend)
	assert.Equal(t, ".cache/speechcast", cfg.CacheDir)
	assert.Equal(t, 8760*time.Hour, cfg.CacheTTL)
	assert.Equal(t, uint64(256), cfg.CacheMemoryItems)
	assert.Equal(t, 3, cfg.CacheCompressionLevel)
	assert.Equal(t, "speechcast-audio", cfg.NATSBucket)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.S3Enabled())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("AZURE_SPEECH_RESOURCE_KEY", "env-key")
	t.Setenv("AZURE_SPEECH_REGION", "westeurope")
	t.Setenv("PORT", "3000")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.ResourceKey)
	assert.Equal(t, "westeurope", cfg.Region)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_CustomValues(t *testing.T) {
	cfg, err := load(envconfig.MapLookuper(map[string]string{
		"AZURE_SPEECH_RESOURCE_KEY": "custom-key",
		"AZURE_SPEECH_REGION":       "eastus",
		"VOICE_NAME":                "en-GB-RyanNeural",
		"SPEECH_RATE":               "+10%",
		"LEXICON_URL":               "https://example.com/lexicon.xml",
		"REQUESTS_PER_SECOND":       "2.5",
		"REQUEST_TIMEOUT":           "15s",
		"MAX_RETRIES":               "3",
		"MAX_CHUNK_LENGTH":          "500",
		"MAX_CONCURRENT_CHUNKS":     "8",
		"CACHE_BACKEND":             "S3",
		"CACHE_TTL":                 "24h",
		"S3_BUCKET":                 "my-bucket",
		"S3_REGION":                 "eu-west-1",
		"S3_ENDPOINT":               "http://localhost:9000",
		"AWS_ACCESS_KEY_ID":         "access-key",
		"AWS_SECRET_ACCESS_KEY":     "secret-key",
		"LOG_LEVEL":                 "debug",
	}))
	require.NoError(t, err)

	assert.Equal(t, "custom-key", cfg.ResourceKey)
	assert.Equal(t, "eastus", cfg.Region)
	assert.Equal(t, "en-GB-RyanNeural", cfg.VoiceName)
	assert.Equal(t, "+10%", cfg.SpeechRate)
	assert.Equal(t, "https://example.com/lexicon.xml", cfg.LexiconURL)
	assert.InDelta(t, 2.5, cfg.RequestsPerSecond, 0.001)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 500, cfg.MaxChunkLength)
	assert.Equal(t, 8, cfg.MaxConcurrentChunks)
	assert.Equal(t, CacheBackendS3, cfg.CacheBackend)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, "my-bucket", cfg.S3Bucket)
	assert.Equal(t, "eu-west-1", cfg.S3Region)
	assert.Equal(t, "http://localhost:9000", cfg.S3Endpoint)
	assert.Equal(t, "access-key", cfg.AWSAccessKeyID)
	assert.Equal(t, "secret-key", cfg.AWSSecretAccessKey)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.S3Enabled())
}

func TestLoad_InvalidValues(t *testing.T) {
	_, err := load(envconfig.MapLookuper(map[string]string{
		"PORT":          "not-a-number",
		"CACHE_TTL":     "forever",
		"CACHE_BACKEND": "disk",
	}))
	require.Error(t, err)
}

func TestLoad_CacheBackendValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr error
	}{
		{"unknown backend", map[string]string{"CACHE_BACKEND": "redis"}, ErrUnknownCacheBackend},
		{"s3 without bucket", map[string]string{"CACHE_BACKEND": "s3"}, ErrS3BucketRequired},
		{"nats without url", map[string]string{"CACHE_BACKEND": "nats"}, ErrNATSURLRequired},
		{"nats with url", map[string]string{"CACHE_BACKEND": "nats", "NATS_URL": "nats://localhost:4222"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(envconfig.MapLookuper(tt.env))
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg := &Config{ResourceKey: "key", Region: "westeurope"}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("missing resource key", func(t *testing.T) {
		cfg := &Config{Region: "westeurope"}
		err := cfg.Validate()
		assert.ErrorIs(t, err, ErrResourceKeyRequired)
		assert.NotErrorIs(t, err, ErrRegionRequired)
	})

	t.Run("both missing", func(t *testing.T) {
		cfg := &Config{ResourceKey: "  "}
		err := cfg.Validate()
		assert.ErrorIs(t, err, ErrResourceKeyRequired)
		assert.ErrorIs(t, err, ErrRegionRequired)
	})
}

func TestConfig_SpeechOptions(t *testing.T) {
	cfg := &Config{
		ResourceKey: "key",
		Region:      "westeurope",
		LexiconURL:  "https://example.com/lexicon.xml",
	}

	opts := cfg.SpeechOptions()

	assert.Equal(t, speech.Options{
		VoiceName:   speech.DefaultVoice,
		ResourceKey: "key",
		Region:      "westeurope",
		Speed:       speech.DefaultSpeed,
		LexiconURL:  "https://example.com/lexicon.xml",
	}, opts)
	assert.NoError(t, opts.Validate())
}

func TestConfig_String(t *testing.T) {
	cfg := &Config{
		Port:               8080,
		ResourceKey:        "secret-key",
		Region:             "westeurope",
		CacheDir:           "/var/cache/speech",
		AWSSecretAccessKey: "aws-secret",
		LogFormat:          "json",
		LogLevel:           "info",
	}

	str := cfg.String()

	// Should contain non-sensitive values
	assert.Contains(t, str, "8080")
	assert.Contains(t, str, "westeurope")
	assert.Contains(t, str, "/var/cache/speech")

	// Should NOT contain sensitive values
	assert.NotContains(t, str, "secret-key")
	assert.NotContains(t, str, "aws-secret")
	assert.Contains(t, str, "ResourceKey: ****")
}

func TestConfig_NewLoggerTo_JSON(t *testing.T) {
	cfg := &Config{LogFormat: "json", LogLevel: "info"}

	var buf bytes.Buffer
	logger := cfg.NewLoggerTo(&buf)
	logger.Debug("hidden")
	logger.Info("test message")

	assert.Contains(t, buf.String(), `"msg":"test message"`)
	assert.NotContains(t, buf.String(), "hidden")
}

func TestConfig_NewLoggerTo_Text(t *testing.T) {
	cfg := &Config{LogFormat: "text", LogLevel: "debug"}

	var buf bytes.Buffer
	cfg.NewLoggerTo(&buf).Debug("visible")

	assert.Contains(t, buf.String(), "msg=visible")
}

func TestConfig_NewLogger(t *testing.T) {
	cfg := &Config{LogFormat: "text", LogLevel: "debug"}
	require.NotNil(t, cfg.NewLogger())
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo}, // defaults to info
		{"", slog.LevelInfo},        // defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}
