// Package server provides the HTTP API for speech conversions.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

// SpeechRequest is the HTTP request body for a synchronous conversion.
type SpeechRequest struct {
	// Markdown is the document to convert.
	Markdown string `json:"markdown" validate:"required"`
	// Voice overrides the configured voice, e.g. "en-GB-RyanNeural".
	Voice string `json:"voice,omitempty" validate:"omitempty,max=100,voice"`
	// Speed overrides the prosody rate, e.g. "+10%" or "slow".
	Speed string `json:"speed,omitempty" validate:"omitempty,rate"`
	// LexiconURL points at a pronunciation lexicon.
	LexiconURL string `json:"lexicon_url,omitempty" validate:"omitempty,url"`
}

// CreateJobRequest is the HTTP request body for creating a new job.
type CreateJobRequest struct {
	SpeechRequest
	// Slug names the output and the published object key.
	Slug string `json:"slug,omitempty" validate:"omitempty,max=200,slug"`
	// Publish uploads the finished audio to S3.
	Publish bool `json:"publish"`
}

// CreateJobResponse is the HTTP response after creating a job.
type CreateJobResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	ID              string `json:"id"`
	Slug            string `json:"slug,omitempty"`
	Status          string `json:"status"`
	Progress        int    `json:"progress"`
	TotalChunks     int    `json:"total_chunks"`
	CompletedChunks int    `json:"completed_chunks"`
	CacheHits       int    `json:"cache_hits"`
	Bytes           int    `json:"bytes,omitempty"`
	Error           string `json:"error,omitempty"`
	// AudioBase64 is the base64-encoded MP3 (completed, not published).
	AudioBase64 string `json:"audio_base64,omitempty"`
	// AudioURL is the S3 URL of the MP3 (completed, published).
	AudioURL string `json:"audio_url,omitempty"`
}

// ListJobsResponse is the HTTP response for listing jobs.
type ListJobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
