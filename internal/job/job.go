// Package job provides the Job aggregate for asynchronous speech conversions.
// It includes the Job entity with its state machine, the repository port and
// the ConversionService use case.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/maauso/speechcast/internal/job/id"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusInQueue indicates the job is waiting to be processed.
	StatusInQueue Status = "IN_QUEUE"
	// StatusRunning indicates chunks are being synthesized.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the audio is ready.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the conversion encountered an error.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the job was cancelled before it finished.
	StatusCancelled Status = "CANCELLED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning, StatusCancelled},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Job represents one markdown-to-speech conversion.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Slug names the output, e.g. a post slug. May be empty.
	Slug string
	// Status is the current job state.
	Status Status
	// TotalChunks is the number of chunks the text was split into.
	TotalChunks int
	// CompletedChunks is the number of chunks synthesized so far.
	CompletedChunks int
	// Progress is the percentage of completion (0-100).
	Progress int
	// CacheHits counts chunks served without a provider call.
	CacheHits int
	// Bytes is the size of the final audio.
	Bytes int
	// Error contains any error message if the job failed.
	Error string
	// Publish indicates whether to upload the result to S3.
	Publish bool
	// AudioPath is the local path of the finished audio.
	AudioPath string
	// AudioURL is the S3 URL if Publish was true.
	AudioURL string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing finished.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial IN_QUEUE status.
func New() *Job {
	return NewWithID(id.Generate())
}

// NewWithID creates a new Job with the specified ID and initial IN_QUEUE status.
// Useful for testing or when ID needs to be externally generated.
func NewWithID(jobID string) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Status:    StatusInQueue,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed, StatusCancelled:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from IN_QUEUE to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to COMPLETED and sets progress to 100.
func (j *Job) Complete() error {
	if err := j.TransitionTo(StatusCompleted); err != nil {
		return err
	}
	j.UpdateProgress(100)
	return nil
}

// Fail transitions the job to FAILED state with an error message.
func (j *Job) Fail(errMsg string) error {
	if err := j.TransitionTo(StatusFailed); err != nil {
		return err
	}
	j.mu.Lock()
	j.Error = errMsg
	j.mu.Unlock()
	return nil
}

// Cancel transitions the job to CANCELLED state.
func (j *Job) Cancel() error {
	return j.TransitionTo(StatusCancelled)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// RecordChunk updates chunk counters and derives the progress percentage.
func (j *Job) RecordChunk(done, total int) {
	j.mu.Lock()
	j.CompletedChunks = done
	j.TotalChunks = total
	j.mu.Unlock()

	if total > 0 {
		j.UpdateProgress(done * 100 / total)
	}
}

// UpdateProgress sets the progress percentage (0-100).
func (j *Job) UpdateProgress(progress int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	j.Progress = progress
	j.UpdatedAt = time.Now()
}

// SetOutput records the finished audio.
func (j *Job) SetOutput(audioPath, audioURL string, size, cacheHits int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.AudioPath = audioPath
	j.AudioURL = audioURL
	j.Bytes = size
	j.CacheHits = cacheHits
	j.UpdatedAt = time.Now()
}

// ClearOutput clears the audio path and URL.
// This is used when deleting the job's audio file.
func (j *Job) ClearOutput() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.AudioPath = ""
	j.AudioURL = ""
	j.UpdatedAt = time.Now()
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(validTransitions[j.Status]) == 0
}

// Clone creates a copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:              j.ID,
		Slug:            j.Slug,
		Status:          j.Status,
		TotalChunks:     j.TotalChunks,
		CompletedChunks: j.CompletedChunks,
		Progress:        j.Progress,
		CacheHits:       j.CacheHits,
		Bytes:           j.Bytes,
		Error:           j.Error,
		Publish:         j.Publish,
		AudioPath:       j.AudioPath,
		AudioURL:        j.AudioURL,
		CreatedAt:       j.CreatedAt,
		UpdatedAt:       j.UpdatedAt,
		StartedAt:       j.StartedAt,
		CompletedAt:     j.CompletedAt,
	}
}
