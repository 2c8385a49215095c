package job

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/maauso/speechcast/internal/speech"
	"github.com/maauso/speechcast/internal/storage"
)

const audioContentType = "audio/mpeg"

var (
	// ErrAudioNotReady is returned when audio is requested for a job that has
	// not completed.
	ErrAudioNotReady = errors.New("job audio is not ready")
	// ErrAudioRemote is returned when the audio was published and only a URL
	// is kept.
	ErrAudioRemote = errors.New("job audio is only available remotely")
)

// Converter is the markdown-to-speech pipeline the service drives.
type Converter interface {
	ConvertMarkdown(ctx context.Context, source string, opts speech.Options, progress speech.ProgressFunc) (speech.Result, error)
}

// ConvertInput contains the parameters of one conversion.
type ConvertInput struct {
	// Markdown is the document to speak.
	Markdown string
	// Slug names the output file and the published object.
	Slug string
	// Voice, Speed and LexiconURL override the configured defaults when set.
	Voice      string
	Speed      string
	LexiconURL string
	// Publish uploads the result through storage.Publish.
	Publish bool
}

// ConvertOutput contains the result of processing a job.
type ConvertOutput struct {
	JobID     string
	Status    Status
	AudioPath string
	AudioURL  string
	Error     string
}

// ConversionService runs conversions as jobs.
type ConversionService struct {
	repo      Repository
	converter Converter
	storage   storage.Storage
	defaults  speech.Options
	logger    *slog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewConversionService creates a new ConversionService. defaults supplies
// credentials and voice settings for every conversion.
func NewConversionService(
	repo Repository,
	converter Converter,
	store storage.Storage,
	defaults speech.Options,
	logger *slog.Logger,
) *ConversionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConversionService{
		repo:      repo,
		converter: converter,
		storage:   store,
		defaults:  defaults,
		logger:    logger,
		cancels:   make(map[string]context.CancelFunc),
	}
}

// Options merges the overrides in input with the configured defaults.
func (s *ConversionService) Options(input ConvertInput) speech.Options {
	opts := s.defaults
	if input.Voice != "" {
		opts.VoiceName = input.Voice
	}
	if input.Speed != "" {
		opts.Speed = input.Speed
	}
	if input.LexiconURL != "" {
		opts.LexiconURL = input.LexiconURL
	}
	return opts.WithDefaults()
}

// Convert runs a conversion synchronously without creating a job.
func (s *ConversionService) Convert(ctx context.Context, input ConvertInput) (speech.Result, error) {
	return s.converter.ConvertMarkdown(ctx, input.Markdown, s.Options(input), nil)
}

// CreateJob creates a new job and persists it to the repository.
// The job is created in IN_QUEUE status, ready for processing.
func (s *ConversionService) CreateJob(ctx context.Context, input ConvertInput) (*Job, error) {
	job := New()
	job.Slug = input.Slug
	job.Publish = input.Publish

	s.logger.Info("creating new job",
		slog.String("job_id", job.ID),
		slog.String("slug", input.Slug),
		slog.Int("markdown_bytes", len(input.Markdown)),
		slog.Bool("publish", input.Publish),
	)

	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	return job, nil
}

// GetJob retrieves a job by ID.
func (s *ConversionService) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// ListJobs returns all jobs, oldest first.
func (s *ConversionService) ListJobs(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// Process creates a job and runs it to completion.
func (s *ConversionService) Process(ctx context.Context, input ConvertInput) (*ConvertOutput, error) {
	job, err := s.CreateJob(ctx, input)
	if err != nil {
		return nil, err
	}
	return s.ProcessExistingJob(ctx, job.ID, input)
}

// ProcessExistingJob converts the markdown of a job created by CreateJob,
// stores the audio in the working directory and optionally publishes it.
// The job ends COMPLETED, FAILED or, when deleted meanwhile, CANCELLED.
func (s *ConversionService) ProcessExistingJob(ctx context.Context, jobID string, input ConvertInput) (*ConvertOutput, error) {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("find job: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancels[jobID] = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.cancels, jobID)
		s.mu.Unlock()
		cancel()
	}()

	if err := job.Start(); err != nil {
		return nil, fmt.Errorf("start job: %w", err)
	}
	if err := s.repo.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}

	logger := s.logger.With(slog.String("job_id", jobID))
	logger.Info("processing job", slog.String("slug", job.Slug))

	result, err := s.converter.ConvertMarkdown(ctx, input.Markdown, s.Options(input), func(done, total int) {
		job.RecordChunk(done, total)
		if err := s.repo.Update(ctx, job); err != nil && !errors.Is(err, ErrJobNotFound) {
			logger.Warn("failed to save progress", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return s.finishFailed(ctx, job, fmt.Errorf("convert: %w", err))
	}

	audioPath, err := s.storage.SaveTemp(ctx, outputName(job), bytes.NewReader(result.Audio))
	if err != nil {
		return s.finishFailed(ctx, job, fmt.Errorf("save audio: %w", err))
	}

	var audioURL string
	if job.Publish {
		audioURL, err = s.storage.Publish(ctx, publishKey(job), audioContentType, bytes.NewReader(result.Audio))
		if err != nil {
			_ = s.storage.CleanupTemp(context.WithoutCancel(ctx), []string{audioPath})
			return s.finishFailed(ctx, job, fmt.Errorf("publish audio: %w", err))
		}
	}

	job.SetOutput(audioPath, audioURL, len(result.Audio), result.CacheHits)
	job.RecordChunk(result.Chunks, result.Chunks)
	if err := job.Complete(); err != nil {
		return nil, fmt.Errorf("complete job: %w", err)
	}

	if err := s.repo.Update(context.WithoutCancel(ctx), job); err != nil {
		// Deleted while the audio was being written.
		_ = s.storage.CleanupTemp(context.WithoutCancel(ctx), []string{audioPath})
		return nil, fmt.Errorf("save job: %w", err)
	}

	logger.Info("job completed",
		slog.Int("chunks", result.Chunks),
		slog.Int("cache_hits", result.CacheHits),
		slog.Int("bytes", len(result.Audio)),
		slog.Duration("duration", result.Duration),
	)

	return &ConvertOutput{
		JobID:     job.ID,
		Status:    job.GetStatus(),
		AudioPath: audioPath,
		AudioURL:  audioURL,
	}, nil
}

func (s *ConversionService) finishFailed(ctx context.Context, job *Job, cause error) (*ConvertOutput, error) {
	if errors.Is(ctx.Err(), context.Canceled) {
		_ = job.Cancel()
	} else {
		_ = job.Fail(cause.Error())
	}

	if err := s.repo.Update(context.WithoutCancel(ctx), job); err != nil && !errors.Is(err, ErrJobNotFound) {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Error("job failed",
		slog.String("job_id", job.ID),
		slog.String("status", string(job.GetStatus())),
		slog.String("error", cause.Error()),
	)

	return &ConvertOutput{
		JobID:  job.ID,
		Status: job.GetStatus(),
		Error:  cause.Error(),
	}, cause
}

// OpenAudio opens the local audio of a completed job.
// The caller is responsible for closing the returned ReadCloser.
func (s *ConversionService) OpenAudio(ctx context.Context, id string) (io.ReadCloser, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != StatusCompleted {
		return nil, ErrAudioNotReady
	}
	if job.AudioPath == "" {
		return nil, ErrAudioRemote
	}
	return s.storage.LoadTemp(ctx, job.AudioPath)
}

// DeleteJob cancels a running job, removes its audio and forgets it.
func (s *ConversionService) DeleteJob(ctx context.Context, id string) error {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	cancel, running := s.cancels[id]
	s.mu.Unlock()
	if running {
		cancel()
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if job.AudioPath != "" {
		if err := s.storage.CleanupTemp(ctx, []string{job.AudioPath}); err != nil {
			s.logger.Warn("failed to remove job audio",
				slog.String("job_id", id),
				slog.String("path", job.AudioPath),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("job deleted", slog.String("job_id", id), slog.Bool("was_running", running))
	return nil
}

func outputName(job *Job) string {
	if job.Slug != "" {
		return job.Slug
	}
	return job.ID
}

func publishKey(job *Job) string {
	if slug := strings.Trim(job.Slug, "/"); slug != "" {
		return path.Join(slug, "index.mp3")
	}
	return job.ID + ".mp3"
}
