package speech

import (
	"context"
	"log/slog"

	"github.com/maauso/speechcast/internal/azure"
	"github.com/maauso/speechcast/internal/memo"
)

// ChunkAudio is the audio for one chunk.
type ChunkAudio struct {
	Data []byte
	// Cached is true when no remote call was made.
	Cached bool
}

// Synthesizer produces audio for a single chunk of plain text.
type Synthesizer interface {
	SynthesizeChunk(ctx context.Context, text string, opts Options) (ChunkAudio, error)
}

// Compile-time check that CachingSynthesizer implements Synthesizer.
var _ Synthesizer = (*CachingSynthesizer)(nil)

// CachingSynthesizer looks chunks up by content fingerprint and calls the
// provider only on a miss.
type CachingSynthesizer struct {
	client azure.Client
	memo   *memo.Memo
	logger *slog.Logger
}

// NewCachingSynthesizer creates a CachingSynthesizer.
func NewCachingSynthesizer(client azure.Client, m *memo.Memo, logger *slog.Logger) *CachingSynthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachingSynthesizer{client: client, memo: m, logger: logger}
}

// SynthesizeChunk returns audio for text. Provider failures are returned
// as-is and are not retried here.
func (s *CachingSynthesizer) SynthesizeChunk(ctx context.Context, text string, opts Options) (ChunkAudio, error) {
	if err := opts.Validate(); err != nil {
		return ChunkAudio{}, err
	}
	opts = opts.WithDefaults()

	fingerprint := text
	if scope := opts.cacheScope(); scope != "" {
		fingerprint = scope + "\n" + text
	}

	data, hit, err := s.memo.Do(ctx, fingerprint, func(ctx context.Context) ([]byte, error) {
		s.logger.Debug("synthesizing chunk",
			slog.String("voice", opts.VoiceName),
			slog.Int("chars", len([]rune(text))),
		)
		return s.client.Synthesize(ctx,
			azure.Credentials{ResourceKey: opts.ResourceKey, Region: opts.Region},
			azure.Request{
				Text:       text,
				Voice:      opts.VoiceName,
				Language:   opts.Language(),
				Rate:       opts.Speed,
				LexiconURL: opts.LexiconURL,
			})
	})
	if err != nil {
		return ChunkAudio{}, err
	}

	return ChunkAudio{Data: data, Cached: hit}, nil
}
