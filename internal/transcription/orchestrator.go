// Package transcription drives audio chunks through a recognizer and stitches
// the results into one transcript on the global timeline.
package transcription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"subline/internal/cancel"
	"subline/internal/language"
	"subline/internal/logging"
	"subline/internal/progress"
	"subline/internal/recognition"
	"subline/internal/segmenter"
	"subline/internal/services"
)

const stageName = "Transcription"

// Segment is one recognized utterance. Start and End are seconds on the
// global timeline of the source audio. TranslatedText stays nil until a
// translation is recorded for the segment.
type Segment struct {
	Start          float64
	End            float64
	Text           string
	TranslatedText *string
}

// DisplayText returns the translation when present, else the original text.
func (s Segment) DisplayText() string {
	if s.TranslatedText != nil {
		return *s.TranslatedText
	}
	return s.Text
}

// Observer receives per-chunk outcomes, typically for metrics.
type Observer interface {
	ChunkRecognized(elapsed time.Duration)
	RecognitionFailed(kind string)
}

// Orchestrator recognizes chunks strictly in index order.
type Orchestrator struct {
	recognizer recognition.Recognizer
	sink       progress.Sink
	signal     *cancel.Signal
	observer   Observer
	logger     *slog.Logger
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithProgress sets the sink that receives "Transcription" events.
func WithProgress(sink progress.Sink) Option {
	return func(o *Orchestrator) { o.sink = progress.OrDiscard(sink) }
}

// WithSignal sets the cancellation signal checked before each chunk.
func WithSignal(signal *cancel.Signal) Option {
	return func(o *Orchestrator) { o.signal = signal }
}

// WithObserver sets the per-chunk observer.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logging.NewComponentLogger(logger, "transcription") }
}

// NewOrchestrator builds an Orchestrator around recognizer.
func NewOrchestrator(recognizer recognition.Recognizer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		recognizer: recognizer,
		sink:       progress.Discard,
		logger:     logging.NewComponentLogger(nil, "transcription"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Transcribe recognizes chunks in order and returns the aggregated segments
// with the run's language.
//
// A non-auto languageHint is passed to every chunk and is returned as the
// language. Otherwise the first chunk that reports a language decides it and
// later detections are ignored.
//
// Cancellation is observed before each chunk; the segments of fully
// recognized chunks are returned with a nil error. A recognition failure
// aborts the run; the error carries services.ErrBadInput when the audio is
// unusable and services.ErrEngineFault otherwise.
func (o *Orchestrator) Transcribe(ctx context.Context, chunks []segmenter.AudioChunk, languageHint string) ([]Segment, string, error) {
	if o.recognizer == nil {
		return nil, "", services.Wrap(services.ErrConfiguration, stageName, "transcribe", "no recognizer configured", nil)
	}
	hint := ""
	detected := ""
	if !language.IsAuto(languageHint) {
		hint = languageHint
		detected = languageHint
	}

	total := len(chunks)
	segments := make([]Segment, 0, total*8)
	for i, chunk := range chunks {
		if cancel.Requested(ctx, o.signal) {
			o.logCancelled(i, total)
			return segments, detected, nil
		}

		if !chunk.Empty() {
			started := time.Now()
			result, err := o.recognizer.Recognize(ctx, chunk, hint)
			if err != nil {
				if ctx.Err() != nil {
					// Hard stop while the chunk was running; its output is discarded.
					o.logCancelled(i, total)
					return segments, detected, nil
				}
				return segments, detected, o.fail(chunk, err)
			}
			if o.observer != nil {
				o.observer.ChunkRecognized(time.Since(started))
			}
			for _, seg := range result.Segments {
				segments = append(segments, Segment{
					Start: chunk.StartOffset + seg.Start,
					End:   chunk.StartOffset + seg.End,
					Text:  seg.Text,
				})
			}
			if detected == "" && result.Language != "" {
				detected = normalizeDetected(result.Language)
				o.logger.Info("language detected",
					logging.String("language", detected),
					logging.Int("chunk", chunk.Index),
					logging.String(logging.FieldEventType, "language_detected"),
				)
			}
			o.logger.Debug("chunk recognized",
				logging.Int("chunk", chunk.Index),
				logging.Float64("offset", chunk.StartOffset),
				logging.Int("segments", len(result.Segments)),
				logging.Duration("elapsed", time.Since(started)),
			)
		}
		o.sink.Report(progress.NewEvent(progress.StageTranscription, i+1, total))
	}
	return segments, detected, nil
}

func (o *Orchestrator) fail(chunk segmenter.AudioChunk, err error) error {
	if !errors.Is(err, services.ErrBadInput) && !errors.Is(err, services.ErrEngineFault) {
		err = services.Wrap(services.ErrEngineFault, stageName, "recognize", "recognizer failed", err)
	}
	kind := services.FailureKind(err)
	if o.observer != nil {
		o.observer.RecognitionFailed(kind)
	}
	hint := "retry the job; the engine may recover"
	if errors.Is(err, services.ErrBadInput) {
		hint = "the audio could not be decoded; check the source file"
	}
	logging.ErrorWithContext(o.logger, "chunk recognition failed", "recognition_failed",
		logging.Int("chunk", chunk.Index),
		logging.Float64("offset", chunk.StartOffset),
		logging.String("failure_kind", kind),
		logging.String(logging.FieldErrorHint, hint),
		logging.Error(err),
	)
	return fmt.Errorf("chunk %d at %.3fs: %w", chunk.Index, chunk.StartOffset, err)
}

func (o *Orchestrator) logCancelled(done, total int) {
	o.logger.Info("transcription cancelled",
		logging.Int("completed", done),
		logging.Int("chunks", total),
		logging.String(logging.FieldEventType, "transcription_cancelled"),
	)
}

func normalizeDetected(value string) string {
	if code := language.ToISO2(value); code != "" {
		return code
	}
	return value
}
