// Package cli implements the speechcast command line tool.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/maauso/speechcast/internal/bootstrap"
	"github.com/maauso/speechcast/internal/config"
	"github.com/maauso/speechcast/internal/post"
	"github.com/maauso/speechcast/internal/speech"
)

// outputFile is the name every post's audio is written to.
const outputFile = "index.mp3"

type app struct {
	cfg    *config.Config
	logger *slog.Logger
	stdin  io.Reader
	stdout io.Writer

	voice string
	speed string
}

// NewRootCommand builds the speechcast command tree. stdin and stdout back
// the "-" arguments of say.
func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdin: stdin, stdout: stdout}

	root := &cobra.Command{
		Use:           "speechcast",
		Short:         "Turn markdown posts into spoken MP3 audio",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if a.voice != "" {
				cfg.VoiceName = a.voice
			}
			if a.speed != "" {
				cfg.SpeechRate = a.speed
			}
			a.cfg = cfg
			a.logger = cfg.NewLoggerTo(stderr)
			return nil
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&a.voice, "voice", "", "voice name (default $VOICE_NAME)")
	root.PersistentFlags().StringVar(&a.speed, "speed", "", "prosody rate such as +10% (default $SPEECH_RATE)")

	root.AddCommand(a.buildCommand(), a.sayCommand())
	return root
}

// Execute runs the command line tool and returns the process exit code.
func Execute(ctx context.Context) int {
	cmd := NewRootCommand(os.Stdin, os.Stdout, os.Stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func (a *app) buildCommand() *cobra.Command {
	var contentDir, outDir string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Write OUT/<slug>/index.mp3 for every post under the content directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.build(cmd.Context(), contentDir, outDir)
		},
	}
	cmd.Flags().StringVar(&contentDir, "content", "content/blog", "directory holding the markdown posts")
	cmd.Flags().StringVar(&outDir, "out", "dist/blog", "directory the audio is written to")
	return cmd
}

func (a *app) sayCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "say FILE|-",
		Short: "Convert one markdown file to MP3",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.say(cmd.Context(), args[0], output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "-", "MP3 file to write, - for stdout")
	return cmd
}

func (a *app) build(ctx context.Context, contentDir, outDir string) error {
	posts, err := post.Collect(contentDir)
	if err != nil {
		return err
	}

	deps, err := bootstrap.NewDependencies(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer func() { _ = deps.Close() }()

	start := time.Now()
	opts := a.cfg.SpeechOptions()
	var total uint64
	var chunks, hits int

	// Posts run one after another; each fans out its own chunks.
	for _, p := range posts {
		result, err := deps.Assembler.ConvertMarkdown(ctx, p.Body, opts, nil)
		if err != nil {
			return fmt.Errorf("post %s: %w", p.Path, err)
		}

		dst := filepath.Join(outDir, filepath.FromSlash(p.Slug), outputFile)
		if err := writeFile(dst, result.Audio); err != nil {
			return err
		}

		total += uint64(len(result.Audio))
		chunks += result.Chunks
		hits += result.CacheHits
		a.logger.Info("post converted",
			slog.String("slug", p.Slug),
			slog.String("path", dst),
			slog.Int("chunks", result.Chunks),
			slog.Int("cache_hits", result.CacheHits),
			slog.String("size", humanize.Bytes(uint64(len(result.Audio)))),
		)
	}

	a.logger.Info("build finished",
		slog.Int("posts", len(posts)),
		slog.Int("chunks", chunks),
		slog.Int("cache_hits", hits),
		slog.String("size", humanize.Bytes(total)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (a *app) say(ctx context.Context, input, output string) error {
	source, err := a.readInput(input)
	if err != nil {
		return err
	}

	deps, err := bootstrap.NewDependencies(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer func() { _ = deps.Close() }()

	result, err := deps.Assembler.ConvertMarkdown(ctx, source, a.cfg.SpeechOptions(), progressLogger(a.logger))
	if err != nil {
		return err
	}

	if output == "-" {
		_, err = a.stdout.Write(result.Audio)
		return err
	}
	if err := writeFile(output, result.Audio); err != nil {
		return err
	}
	a.logger.Info("audio written",
		slog.String("path", output),
		slog.String("size", humanize.Bytes(uint64(len(result.Audio)))),
		slog.Int("cache_hits", result.CacheHits),
	)
	return nil
}

// readInput returns the markdown body of input, "-" meaning stdin.
func (a *app) readInput(input string) (string, error) {
	var data []byte
	var err error
	if input == "-" {
		data, err = io.ReadAll(a.stdin)
	} else {
		data, err = os.ReadFile(input) // #nosec G304 - path is given by the user
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", input, err)
	}

	p, err := post.Parse(data)
	if err != nil {
		return "", err
	}
	return p.Body, nil
}

func progressLogger(logger *slog.Logger) speech.ProgressFunc {
	return func(done, total int) {
		logger.Debug("chunk synthesized", slog.Int("done", done), slog.Int("total", total))
	}
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil { // #nosec G306 - audio is published
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
