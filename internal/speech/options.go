// Package speech turns markdown into one spoken-audio payload. It strips the
// markup, splits the text into chunks, synthesizes every chunk through a
// content-addressed cache and concatenates the results in chunk order.
package speech

import (
	"errors"
	"fmt"
	"strings"
)

// Defaults used when Options leave a field empty.
const (
	DefaultVoice = "en-AU-WilliamNeural"
	DefaultSpeed = "0%"
)

var (
	// ErrResourceKeyRequired is wrapped by ConfigurationError when the
	// provider key is missing.
	ErrResourceKeyRequired = errors.New("speech: resource key is required")
	// ErrRegionRequired is wrapped by ConfigurationError when the provider
	// region is missing.
	ErrRegionRequired = errors.New("speech: region is required")
)

// ConfigurationError reports options that cannot be used for synthesis.
// It is raised before any cache or network access.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("speech: invalid configuration: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Options controls one conversion. Treat a value as immutable once a
// conversion has started.
type Options struct {
	VoiceName   string
	ResourceKey string
	Region      string
	// Speed is a prosody rate such as "0%" or "-10%".
	Speed      string
	LexiconURL string
}

// Validate returns a *ConfigurationError when credentials are missing.
func (o Options) Validate() error {
	var errs []error
	if strings.TrimSpace(o.ResourceKey) == "" {
		errs = append(errs, ErrResourceKeyRequired)
	}
	if strings.TrimSpace(o.Region) == "" {
		errs = append(errs, ErrRegionRequired)
	}
	if len(errs) == 0 {
		return nil
	}
	return &ConfigurationError{Err: errors.Join(errs...)}
}

// WithDefaults fills empty voice and speed.
func (o Options) WithDefaults() Options {
	if o.VoiceName == "" {
		o.VoiceName = DefaultVoice
	}
	if o.Speed == "" {
		o.Speed = DefaultSpeed
	}
	return o
}

// Language returns the xml:lang tag encoded in the voice name, e.g. "en-AU"
// for "en-AU-WilliamNeural". Names without a locale prefix are returned
// unchanged.
func (o Options) Language() string {
	voice := o.WithDefaults().VoiceName
	parts := strings.SplitN(voice, "-", 3)
	if len(parts) < 3 {
		return voice
	}
	return parts[0] + "-" + parts[1]
}

// cacheScope distinguishes cache entries for non-default voice settings.
// Default settings use an empty scope so entries are keyed by the chunk text
// alone.
func (o Options) cacheScope() string {
	o = o.WithDefaults()
	if o.VoiceName == DefaultVoice && o.Speed == DefaultSpeed && o.LexiconURL == "" {
		return ""
	}
	return o.VoiceName + "|" + o.Speed + "|" + o.LexiconURL
}
