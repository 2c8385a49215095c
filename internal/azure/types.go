// Package azure provides an HTTP client for the Azure Speech text-to-speech
// REST API.
package azure

import (
	"fmt"
	"net/http"
)

// Default output and identification values.
const (
	DefaultOutputFormat = "audio-16khz-32kbitrate-mono-mp3"
	DefaultUserAgent    = "speechcast"
	synthesisPath       = "/cognitiveservices/v1"
)

// Request describes one synthesis call.
type Request struct {
	// Text is the plain text to speak. It is escaped before being embedded
	// in the SSML document.
	Text string
	// Voice is the provider voice name, e.g. "en-AU-WilliamNeural".
	Voice string
	// Language is the xml:lang tag, e.g. "en-AU".
	Language string
	// Rate is the prosody rate, e.g. "0%" or "+10%".
	Rate string
	// LexiconURL optionally points at a pronunciation lexicon.
	LexiconURL string
}

// Credentials identify the Speech resource a request is billed to.
type Credentials struct {
	ResourceKey string
	Region      string
}

// SynthesisError is returned when the provider rejects or fails a request.
// StatusCode is zero when no HTTP response was received.
type SynthesisError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *SynthesisError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" && e.StatusCode != 0 {
		msg = http.StatusText(e.StatusCode)
	}

	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("azure: synthesis failed with status %d: %s", e.StatusCode, msg)
	case msg != "":
		return "azure: synthesis failed: " + msg
	default:
		return "azure: synthesis failed"
	}
}

func (e *SynthesisError) Unwrap() error {
	return e.Err
}
