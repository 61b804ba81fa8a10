// Package recognition adapts speech-recognition engines to a single
// chunk-at-a-time contract and owns the loaded model between runs.
package recognition

import (
	"context"
	"fmt"
	"strings"

	"subline/internal/config"
	"subline/internal/segmenter"
	"subline/internal/services"
	"subline/internal/services/openai"
	"subline/internal/services/whisperx"
)

// Segment is one utterance in chunk-local seconds.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// Result is what an engine returns for one chunk. Language is empty when the
// engine made no detection.
type Result struct {
	Segments []Segment
	Language string
}

// Recognizer transcribes one chunk. Implementations need no state across
// calls beyond their loaded model.
type Recognizer interface {
	Recognize(ctx context.Context, chunk segmenter.AudioChunk, languageHint string) (Result, error)
}

// RecognizerFunc adapts a function to Recognizer.
type RecognizerFunc func(ctx context.Context, chunk segmenter.AudioChunk, languageHint string) (Result, error)

// Recognize calls f.
func (f RecognizerFunc) Recognize(ctx context.Context, chunk segmenter.AudioChunk, languageHint string) (Result, error) {
	return f(ctx, chunk, languageHint)
}

// WhisperX runs each chunk through the whisperx CLI, writing its JSON into
// WorkDir.
type WhisperX struct {
	Service *whisperx.Service
	WorkDir string
}

// Recognize implements Recognizer.
func (w *WhisperX) Recognize(ctx context.Context, chunk segmenter.AudioChunk, languageHint string) (Result, error) {
	transcript, err := w.Service.Transcribe(ctx, chunk.Path, w.WorkDir, languageHint)
	if err != nil {
		return Result{}, err
	}
	out := Result{Language: transcript.Language, Segments: make([]Segment, 0, len(transcript.Segments))}
	for _, seg := range transcript.Segments {
		out.Segments = append(out.Segments, Segment{Start: seg.Start, End: seg.End, Text: strings.TrimSpace(seg.Text)})
	}
	return out, nil
}

// OpenAI sends each chunk to a hosted transcription model.
type OpenAI struct {
	Client *openai.Client
}

// Recognize implements Recognizer.
func (o *OpenAI) Recognize(ctx context.Context, chunk segmenter.AudioChunk, languageHint string) (Result, error) {
	transcript, err := o.Client.Transcribe(ctx, chunk.Path, languageHint)
	if err != nil {
		return Result{}, err
	}
	out := Result{Language: transcript.Language, Segments: make([]Segment, 0, len(transcript.Segments))}
	for _, seg := range transcript.Segments {
		out.Segments = append(out.Segments, Segment{Start: seg.Start, End: seg.End, Text: strings.TrimSpace(seg.Text)})
	}
	return out, nil
}

// KnownVariants lists the model variants an engine accepts.
func KnownVariants(engine string) []string {
	switch engine {
	case config.EngineOpenAI:
		return append([]string(nil), openai.Models...)
	default:
		return append([]string(nil), whisperx.Models...)
	}
}

// NewLoader returns a Loader that builds the configured engine for a variant.
// workDir receives intermediate engine output.
func NewLoader(cfg *config.Config, workDir string) Loader {
	return func(variant string) (Recognizer, error) {
		switch cfg.Transcription.Engine {
		case config.EngineWhisperX, "":
			svc := whisperx.NewService(whisperx.Config{
				Model:       variant,
				CUDAEnabled: cfg.Transcription.CUDAEnabled,
				VADMethod:   cfg.Transcription.VADMethod,
				HFToken:     cfg.Transcription.HFToken,
			})
			return &WhisperX{Service: svc, WorkDir: workDir}, nil
		case config.EngineOpenAI:
			if strings.TrimSpace(cfg.OpenAI.APIKey) == "" {
				return nil, services.Wrap(services.ErrConfiguration, "Transcription", "openai", "openai.api_key is required for the openai engine", nil)
			}
			client := openai.New(openai.Config{
				APIKey:             cfg.OpenAI.APIKey,
				BaseURL:            cfg.OpenAI.BaseURL,
				TranscriptionModel: variant,
				ChatModel:          cfg.OpenAI.ChatModel,
			})
			return &OpenAI{Client: client}, nil
		default:
			return nil, services.Wrap(services.ErrConfiguration, "Transcription", "engine", fmt.Sprintf("unknown engine %q", cfg.Transcription.Engine), nil)
		}
	}
}

// Variant returns the model variant the configured engine should load.
func Variant(cfg *config.Config) string {
	if cfg.Transcription.Engine == config.EngineOpenAI {
		if v := strings.TrimSpace(cfg.OpenAI.TranscriptionModel); v != "" {
			return v
		}
		return openai.DefaultTranscriptionModel
	}
	if v := strings.TrimSpace(cfg.Transcription.ModelVariant); v != "" {
		return v
	}
	return whisperx.DefaultModel
}
