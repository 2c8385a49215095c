package speech

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr []error
	}{
		{"valid", Options{ResourceKey: "k", Region: "westeurope"}, nil},
		{"missing key", Options{Region: "westeurope"}, []error{ErrResourceKeyRequired}},
		{"missing region", Options{ResourceKey: "k"}, []error{ErrRegionRequired}},
		{"blank both", Options{ResourceKey: "  ", Region: ""}, []error{ErrResourceKeyRequired, ErrRegionRequired}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}

			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			for _, want := range tt.wantErr {
				assert.ErrorIs(t, err, want)
			}
		})
	}
}

func TestOptions_Language(t *testing.T) {
	tests := []struct {
		voice string
		want  string
	}{
		{"en-AU-WilliamNeural", "en-AU"},
		{"de-DE-KatjaNeural", "de-DE"},
		{"zh-CN-henan-YundengNeural", "zh-CN"},
		{"", "en-AU"},
		{"custom", "custom"},
	}

	for _, tt := range tests {
		t.Run(tt.voice, func(t *testing.T) {
			assert.Equal(t, tt.want, Options{VoiceName: tt.voice}.Language())
		})
	}
}

func TestOptions_WithDefaults(t *testing.T) {
	got := Options{}.WithDefaults()
	assert.Equal(t, DefaultVoice, got.VoiceName)
	assert.Equal(t, DefaultSpeed, got.Speed)

	kept := Options{VoiceName: "en-GB-RyanNeural", Speed: "+5%"}.WithDefaults()
	assert.Equal(t, "en-GB-RyanNeural", kept.VoiceName)
	assert.Equal(t, "+5%", kept.Speed)
}

func TestOptions_CacheScope(t *testing.T) {
	assert.Empty(t, Options{}.cacheScope())
	assert.Empty(t, Options{VoiceName: DefaultVoice, Speed: "0%"}.cacheScope())
	assert.NotEmpty(t, Options{VoiceName: "en-GB-RyanNeural"}.cacheScope())
	assert.NotEqual(t,
		Options{Speed: "+10%"}.cacheScope(),
		Options{LexiconURL: "https://example.com/lex.xml"}.cacheScope())
}
