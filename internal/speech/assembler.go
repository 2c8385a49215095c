package speech

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/maauso/speechcast/internal/chunk"
	"github.com/maauso/speechcast/internal/markdown"
)

// DefaultConcurrency is the number of chunks synthesized at once.
const DefaultConcurrency = 4

// ProgressFunc is called after each chunk finishes. Calls come from worker
// goroutines but are serialized and done increases by one each time.
type ProgressFunc func(done, total int)

// Result is the outcome of a successful conversion.
type Result struct {
	// Audio is the ordered concatenation of every chunk's audio.
	Audio     []byte
	Chunks    int
	CacheHits int
	Duration  time.Duration
}

// Assembler runs the conversion pipeline.
type Assembler struct {
	synth          Synthesizer
	maxChunkLength int
	concurrency    int
	logger         *slog.Logger
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithMaxChunkLength sets the soft chunk size in characters.
func WithMaxChunkLength(n int) AssemblerOption {
	return func(a *Assembler) {
		if n > 0 {
			a.maxChunkLength = n
		}
	}
}

// WithConcurrency sets how many chunks are synthesized at once.
func WithConcurrency(n int) AssemblerOption {
	return func(a *Assembler) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) AssemblerOption {
	return func(a *Assembler) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAssembler creates an Assembler around synth.
func NewAssembler(synth Synthesizer, opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		synth:          synth,
		maxChunkLength: chunk.DefaultMaxLength,
		concurrency:    DefaultConcurrency,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ConvertMarkdown strips markup from source and converts the remaining text.
func (a *Assembler) ConvertMarkdown(ctx context.Context, source string, opts Options, progress ProgressFunc) (Result, error) {
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}
	return a.ConvertText(ctx, markdown.ToText(source), opts, progress)
}

// ConvertText splits text into chunks, synthesizes them concurrently and
// concatenates the audio in chunk order. If any chunk fails, chunks that have
// not started are skipped, chunks in flight are allowed to finish, and the
// first error is returned without audio.
func (a *Assembler) ConvertText(ctx context.Context, text string, opts Options, progress ProgressFunc) (Result, error) {
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}

	start := time.Now()
	chunks := chunk.Split(text, a.maxChunkLength)
	total := len(chunks)

	a.logger.Info("converting text",
		slog.Int("chunks", total),
		slog.Int("chars", len([]rune(text))),
		slog.Int("concurrency", a.concurrency),
	)

	results := make([]ChunkAudio, total)

	var (
		failed atomic.Bool
		done   int
		mu     sync.Mutex
		g      errgroup.Group
	)
	g.SetLimit(a.concurrency)

	for i, c := range chunks {
		if failed.Load() || ctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if failed.Load() {
				return nil
			}
			if err := ctx.Err(); err != nil {
				failed.Store(true)
				return fmt.Errorf("chunk %d: %w", i, err)
			}

			audio, err := a.synth.SynthesizeChunk(ctx, c, opts)
			if err != nil {
				failed.Store(true)
				a.logger.Error("chunk synthesis failed",
					slog.Int("chunk", i),
					slog.String("error", err.Error()),
				)
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			results[i] = audio

			mu.Lock()
			done++
			if progress != nil {
				progress(done, total)
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("conversion cancelled: %w", err)
	}

	var buf bytes.Buffer
	hits := 0
	for _, r := range results {
		buf.Write(r.Data)
		if r.Cached {
			hits++
		}
	}

	res := Result{
		Audio:     buf.Bytes(),
		Chunks:    total,
		CacheHits: hits,
		Duration:  time.Since(start),
	}

	a.logger.Info("conversion complete",
		slog.Int("chunks", total),
		slog.Int("cache_hits", hits),
		slog.Int("bytes", len(res.Audio)),
		slog.Duration("duration", res.Duration),
	)

	return res, nil
}
