package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"subline/internal/cmdrun"
	"subline/internal/logging"
	"subline/internal/media/ffprobe"
	"subline/internal/services"
)

// Output format for everything handed to a recognizer.
const (
	SampleRate = 16000
	Channels   = 1
	Codec      = "pcm_s16le"
)

// Filter expressions applied by Convert, in chain order.
const (
	FilterNormalize   = "loudnorm"
	FilterReduceNoise = "afftdn"
	FilterTrimSilence = "silenceremove=start_periods=1:start_threshold=-50dB"
)

// Options toggles the optional clean-up filters and steers track selection.
type Options struct {
	Normalize    bool
	ReduceNoise  bool
	TrimSilence  bool
	LanguageHint string
}

// FilterChain returns the -af expression for opts, or "" when no filter is
// enabled.
func FilterChain(opts Options) string {
	var filters []string
	if opts.Normalize {
		filters = append(filters, FilterNormalize)
	}
	if opts.ReduceNoise {
		filters = append(filters, FilterReduceNoise)
	}
	if opts.TrimSilence {
		filters = append(filters, FilterTrimSilence)
	}
	return strings.Join(filters, ",")
}

// Converter transcodes media into recognizer-ready WAV files.
type Converter struct {
	ffmpeg string
	prober *ffprobe.Prober
	run    cmdrun.Runner
	logger *slog.Logger
}

// NewConverter builds a Converter. prober may be nil, in which case one is
// created for the "ffprobe" binary.
func NewConverter(ffmpegBinary string, prober *ffprobe.Prober, logger *slog.Logger) *Converter {
	if strings.TrimSpace(ffmpegBinary) == "" {
		ffmpegBinary = "ffmpeg"
	}
	if prober == nil {
		prober = ffprobe.New("")
	}
	return &Converter{
		ffmpeg: ffmpegBinary,
		prober: prober,
		run:    cmdrun.Exec,
		logger: logging.NewComponentLogger(logger, "audio"),
	}
}

// WithRunner replaces the ffmpeg command runner (for testing).
func (c *Converter) WithRunner(run cmdrun.Runner) *Converter {
	c.run = cmdrun.OrExec(run)
	return c
}

// Probe returns the duration of path in seconds.
func (c *Converter) Probe(ctx context.Context, path string) (float64, error) {
	seconds, err := c.prober.Duration(ctx, path)
	if err != nil {
		return 0, services.Wrap(services.ErrConversion, "Conversion", "probe duration", "Could not read media duration", err)
	}
	return seconds, nil
}

// Convert transcodes source into a 16 kHz mono PCM WAV at dest, applying the
// filters enabled in opts. For multi-track media the primary audio stream is
// chosen with Select.
func (c *Converter) Convert(ctx context.Context, source, dest string, opts Options) (string, error) {
	if strings.TrimSpace(source) == "" || strings.TrimSpace(dest) == "" {
		return "", services.Wrap(services.ErrValidation, "Conversion", "convert", "source and destination are required", nil)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", services.Wrap(services.ErrAcquisition, "Conversion", "ensure work dir", "Could not create working directory", err)
	}

	probe, err := c.prober.Inspect(ctx, source)
	if err != nil {
		return "", services.Wrap(services.ErrConversion, "Conversion", "inspect source", "Could not inspect source media", err)
	}
	selection := Select(probe.Streams, opts.LanguageHint)
	if selection.PrimaryIndex < 0 {
		return "", services.Wrap(services.ErrBadInput, "Conversion", "select audio", "Source has no audio stream", nil)
	}
	if selection.Candidates > 1 {
		attrs := append(logging.DecisionAttrs("audio_stream", selection.Label(), "primary stream by language and channels"),
			logging.Int("stream_index", selection.PrimaryIndex),
			logging.Int("candidates", selection.Candidates),
		)
		c.logger.Info("audio stream selected", logging.Args(attrs...)...)
	}

	args := convertArgs(source, dest, selection.PrimaryIndex, FilterChain(opts))
	c.logger.Debug("converting audio", logging.String("source", source), logging.String("command", c.ffmpeg+" "+strings.Join(args, " ")))
	if _, err := c.run(ctx, c.ffmpeg, args...); err != nil {
		return "", services.Wrap(services.ErrConversion, "Conversion", "ffmpeg convert", "Audio conversion failed", err)
	}
	return dest, nil
}

// Extract writes the [start, start+duration) window of source to dest as a
// recognizer-ready WAV.
func (c *Converter) Extract(ctx context.Context, source, dest string, start, duration float64) error {
	if duration <= 0 {
		return fmt.Errorf("extract: invalid duration %.3f", duration)
	}
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-ss", formatSeconds(start),
		"-t", formatSeconds(duration),
		"-i", source,
		"-vn",
		"-sn",
		"-dn",
		"-ac", strconv.Itoa(Channels),
		"-ar", strconv.Itoa(SampleRate),
		"-c:a", Codec,
		dest,
	}
	if _, err := c.run(ctx, c.ffmpeg, args...); err != nil {
		return fmt.Errorf("ffmpeg extract: %w", err)
	}
	return nil
}

func convertArgs(source, dest string, streamIndex int, filters string) []string {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-map", fmt.Sprintf("0:%d", streamIndex),
		"-vn",
		"-sn",
		"-dn",
	}
	if filters != "" {
		args = append(args, "-af", filters)
	}
	return append(args,
		"-ac", strconv.Itoa(Channels),
		"-ar", strconv.Itoa(SampleRate),
		"-c:a", Codec,
		dest,
	)
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
