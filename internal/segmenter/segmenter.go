// Package segmenter splits long audio into fixed-length chunks that can be
// recognized one at a time without losing global timing.
package segmenter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"subline/internal/cancel"
	"subline/internal/logging"
	"subline/internal/progress"
	"subline/internal/services"
)

const stageName = progress.StageChunkCreation

// MinDuration is the shortest window worth cutting, in seconds. ffmpeg
// durations are written with millisecond precision, so anything shorter
// would come out as a zero-sample file.
const MinDuration = 0.001

// AudioChunk is one window of the source audio. StartOffset is the chunk's
// position in the full audio and is added to every timestamp recognized
// inside it. An empty chunk has no file (Path is empty).
type AudioChunk struct {
	Index       int
	Path        string
	StartOffset float64
	Duration    float64
}

// Empty reports whether the window is shorter than MinDuration. Empty chunks
// are planned but never extracted or recognized.
func (c AudioChunk) Empty() bool {
	return c.Duration < MinDuration
}

// Prober reports media duration in seconds.
type Prober interface {
	Probe(ctx context.Context, path string) (float64, error)
}

// Extractor writes the [start, start+duration) window of source to dest.
type Extractor interface {
	Extract(ctx context.Context, source, dest string, start, duration float64) error
}

// Segmenter cuts audio into chunks.
type Segmenter struct {
	prober    Prober
	extractor Extractor
	dir       string
	sink      progress.Sink
	signal    *cancel.Signal
	logger    *slog.Logger
}

// Option customizes a Segmenter.
type Option func(*Segmenter)

// WithDir places chunk files in dir instead of next to the source audio.
func WithDir(dir string) Option {
	return func(s *Segmenter) { s.dir = dir }
}

// WithProgress sets the sink that receives "Chunk Creation" events.
func WithProgress(sink progress.Sink) Option {
	return func(s *Segmenter) { s.sink = progress.OrDiscard(sink) }
}

// WithSignal sets the cancellation signal checked before each chunk.
func WithSignal(signal *cancel.Signal) Option {
	return func(s *Segmenter) { s.signal = signal }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Segmenter) { s.logger = logging.NewComponentLogger(logger, "segmenter") }
}

// New builds a Segmenter.
func New(prober Prober, extractor Extractor, opts ...Option) *Segmenter {
	s := &Segmenter{
		prober:    prober,
		extractor: extractor,
		sink:      progress.Discard,
		logger:    logging.NewComponentLogger(nil, "segmenter"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Plan returns the chunk windows for an audio of duration seconds without
// touching the filesystem. There are always floor(duration/chunkLength)+1
// windows; the last may be shorter than chunkLength, or empty when duration
// is an exact multiple of chunkLength.
func Plan(duration, chunkLength float64) []AudioChunk {
	if chunkLength <= 0 || duration < 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return nil
	}
	count := int(math.Floor(duration/chunkLength)) + 1
	chunks := make([]AudioChunk, 0, count)
	for i := range count {
		start := float64(i) * chunkLength
		end := math.Min(float64(i+1)*chunkLength, duration)
		span := end - start
		if span < 0 {
			span = 0
		}
		chunks = append(chunks, AudioChunk{Index: i, StartOffset: start, Duration: span})
	}
	return chunks
}

// Split probes audioPath and materializes each chunk. When a chunk fails to
// transcode, the chunks already written are returned along with the error so
// the caller can remove them. A cancellation observed between chunks returns
// the chunks so far and a nil error.
func (s *Segmenter) Split(ctx context.Context, audioPath string, chunkLength float64) ([]AudioChunk, error) {
	if chunkLength <= 0 {
		return nil, services.Wrap(services.ErrValidation, stageName, "split", fmt.Sprintf("chunk length must be positive, got %v", chunkLength), nil)
	}
	if s.prober == nil || s.extractor == nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "split", "segmenter requires a prober and an extractor", nil)
	}
	duration, err := s.prober.Probe(ctx, audioPath)
	if err != nil {
		return nil, err
	}

	dir := s.dir
	if dir == "" {
		dir = filepath.Dir(audioPath)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrAcquisition, stageName, "ensure chunk dir", "Could not create chunk directory", err)
	}

	plan := Plan(duration, chunkLength)
	s.logger.Info("splitting audio",
		logging.String("source", audioPath),
		logging.Float64("duration_seconds", duration),
		logging.Float64("chunk_length", chunkLength),
		logging.Int("chunks", len(plan)),
		logging.String(logging.FieldEventType, "split_started"),
	)

	chunks := make([]AudioChunk, 0, len(plan))
	for i, chunk := range plan {
		if cancel.Requested(ctx, s.signal) {
			s.logger.Info("chunking cancelled",
				logging.Int("completed", len(chunks)),
				logging.Int("chunks", len(plan)),
				logging.String(logging.FieldEventType, "split_cancelled"),
			)
			return chunks, nil
		}
		if !chunk.Empty() {
			chunk.Path = filepath.Join(dir, fmt.Sprintf("chunk_%04d.wav", chunk.Index))
			if err := s.extractor.Extract(ctx, audioPath, chunk.Path, chunk.StartOffset, chunk.Duration); err != nil {
				return chunks, services.Wrap(services.ErrConversion, stageName, "extract chunk",
					fmt.Sprintf("Chunk %d (%.3fs+%.3fs) could not be transcoded", chunk.Index, chunk.StartOffset, chunk.Duration), err)
			}
		}
		chunks = append(chunks, chunk)
		s.sink.Report(progress.NewEvent(progress.StageChunkCreation, i+1, len(plan)))
	}
	return chunks, nil
}

// Remove deletes the files backing chunks. Missing files are ignored.
func Remove(chunks []AudioChunk) error {
	var errs []error
	for _, chunk := range chunks {
		if chunk.Path == "" {
			continue
		}
		if err := os.Remove(chunk.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
