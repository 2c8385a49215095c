package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/speechcast/internal/azure"
	"github.com/maauso/speechcast/internal/job"
	"github.com/maauso/speechcast/internal/speech"
)

// DefaultMaxBodyBytes caps request bodies.
const DefaultMaxBodyBytes = 4 << 20

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            *job.ConversionService
	validator          *validator.Validate
	logger             *slog.Logger
	enableAsyncProcess bool
	maxBodyBytes       int64
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, CreateJob only creates the job and returns immediately
// without starting background processing.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// WithMaxBodyBytes limits the size of JSON request bodies.
func WithMaxBodyBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.ConversionService, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
		validator:          newValidator(),
		logger:             logger,
		enableAsyncProcess: true,
		maxBodyBytes:       DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Speech handles POST /speech requests. The MP3 is returned as the body.
func (h *Handlers) Speech(w http.ResponseWriter, r *http.Request) {
	var req SpeechRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.Convert(r.Context(), job.ConvertInput{
		Markdown:   req.Markdown,
		Voice:      req.Voice,
		Speed:      req.Speed,
		LexiconURL: req.LexiconURL,
	})
	if err != nil {
		h.writeConversionError(w, err)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Audio)))
	w.Header().Set("X-Speech-Chunks", strconv.Itoa(result.Chunks))
	w.Header().Set("X-Speech-Cache-Hits", strconv.Itoa(result.CacheHits))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.Audio); err != nil {
		h.logger.Warn("failed to write audio", slog.String("error", err.Error()))
	}
}

// CreateJob handles POST /jobs requests.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if !h.decode(w, r, &req) {
		return
	}

	input := job.ConvertInput{
		Markdown:   req.Markdown,
		Slug:       req.Slug,
		Voice:      req.Voice,
		Speed:      req.Speed,
		LexiconURL: req.LexiconURL,
		Publish:    req.Publish,
	}

	createdJob, err := h.service.CreateJob(r.Context(), input)
	if err != nil {
		h.logger.Error("failed to create job",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		return
	}

	// Detach from the request so the conversion outlives it
	if h.enableAsyncProcess {
		go func(ctx context.Context, jobID string, inp job.ConvertInput) {
			if _, err := h.service.ProcessExistingJob(ctx, jobID, inp); err != nil {
				h.logger.Error("background processing failed",
					slog.String("job_id", jobID),
					slog.String("error", err.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), createdJob.ID, input)
	}

	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		ID:     createdJob.ID,
		Status: string(createdJob.Status),
	})
}

// ListJobs handles GET /jobs requests. Audio is never inlined.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.ListJobs(r.Context())
	if err != nil {
		h.logger.Error("failed to list jobs", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "JOB_FETCH_FAILED")
		return
	}

	resp := ListJobsResponse{Jobs: make([]JobResponse, 0, len(jobs))}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, toJobResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetJob handles GET /jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	foundJob, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		h.writeJobError(w, jobID, err)
		return
	}

	resp := toJobResponse(foundJob)

	// Inline the audio of completed, unpublished jobs
	if foundJob.Status == job.StatusCompleted && resp.AudioURL == "" {
		data, err := h.readAudio(r.Context(), jobID)
		if err != nil {
			h.logger.Error("failed to read job audio",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
		} else {
			resp.AudioBase64 = base64.StdEncoding.EncodeToString(data)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetJobAudio handles GET /jobs/{id}/audio requests. Published audio is
// served by redirecting to its URL.
func (h *Handlers) GetJobAudio(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	rc, err := h.service.OpenAudio(r.Context(), jobID)
	if errors.Is(err, job.ErrAudioRemote) {
		if published, findErr := h.service.GetJob(r.Context(), jobID); findErr == nil && published.AudioURL != "" {
			http.Redirect(w, r, published.AudioURL, http.StatusFound)
			return
		}
	}
	if err != nil {
		h.writeJobError(w, jobID, err)
		return
	}
	defer func() { _ = rc.Close() }()

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", `inline; filename="`+jobID+`.mp3"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("failed to stream audio",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}

// DeleteJob handles DELETE /jobs/{id} requests.
// A running job is cancelled; its audio file is removed.
func (h *Handlers) DeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	if err := h.service.DeleteJob(r.Context(), jobID); err != nil {
		h.writeJobError(w, jobID, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) readAudio(ctx context.Context, jobID string) ([]byte, error) {
	rc, err := h.service.OpenAudio(ctx, jobID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

// decode reads and validates a JSON body. It writes the error response and
// returns false on failure.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large", "BODY_TOO_LARGE")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return false
	}
	return true
}

func (h *Handlers) writeConversionError(w http.ResponseWriter, err error) {
	var cfgErr *speech.ConfigurationError
	var synthErr *azure.SynthesisError

	switch {
	case errors.As(err, &cfgErr):
		h.logger.Error("speech is not configured", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err.Error(), "CONFIGURATION_ERROR")
	case errors.As(err, &synthErr):
		h.logger.Error("synthesis failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, err.Error(), "SYNTHESIS_FAILED")
	default:
		h.logger.Error("conversion failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "conversion failed", "CONVERSION_FAILED")
	}
}

func (h *Handlers) writeJobError(w http.ResponseWriter, jobID string, err error) {
	switch {
	case errors.Is(err, job.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
	case errors.Is(err, job.ErrAudioNotReady):
		writeError(w, http.StatusConflict, "job audio is not ready", "AUDIO_NOT_READY")
	case errors.Is(err, job.ErrAudioRemote):
		writeError(w, http.StatusGone, "job audio was published and is not kept locally", "AUDIO_NOT_LOCAL")
	default:
		h.logger.Error("job request failed",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
	}
}

func toJobResponse(j *job.Job) JobResponse {
	resp := JobResponse{
		ID:              j.ID,
		Slug:            j.Slug,
		Status:          string(j.Status),
		Progress:        j.Progress,
		TotalChunks:     j.TotalChunks,
		CompletedChunks: j.CompletedChunks,
		CacheHits:       j.CacheHits,
		Bytes:           j.Bytes,
		Error:           j.Error,
	}
	if j.Status == job.StatusCompleted {
		resp.AudioURL = j.AudioURL
	}
	return resp
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
