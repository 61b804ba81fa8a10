package whisperx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"subline/internal/cmdrun"
	langpkg "subline/internal/language"
	"subline/internal/services"
)

// badInputMarkers appear in whisperx output when the audio itself cannot be
// decoded, as opposed to the model or runtime failing.
var badInputMarkers = []string{
	"failed to load audio",
	"invalid data found when processing input",
	"does not contain any stream",
	"output file #0 does not contain any stream",
}

// Service runs WhisperX through uvx.
type Service struct {
	cfg Config
	run cmdrun.Runner
}

// NewService creates a WhisperX service with the given configuration.
func NewService(cfg Config) *Service {
	s := &Service{cfg: cfg}
	// Torch 2.6 changed torch.load default to weights_only=true, breaking
	// WhisperX/pyannote checkpoints. Force the legacy behavior unless the
	// caller already chose.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		s.run = cmdrun.WithEnv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	} else {
		s.run = cmdrun.Exec
	}
	return s
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner cmdrun.Runner) *Service {
	s.run = cmdrun.OrExec(runner)
	return s
}

// Model returns the configured model name.
func (s *Service) Model() string {
	if s.cfg.Model != "" {
		return s.cfg.Model
	}
	return DefaultModel
}

// Transcript is the parsed whisperx JSON output.
type Transcript struct {
	Segments []Segment `json:"segments"`
	Language string    `json:"language"`
}

// Segment represents a transcribed segment from WhisperX JSON output.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Transcribe runs whisperx on source, writing its JSON next to outputDir, and
// returns the parsed transcript. Failures that stem from undecodable audio
// carry services.ErrBadInput; everything else carries services.ErrEngineFault.
func (s *Service) Transcribe(ctx context.Context, source, outputDir, language string) (Transcript, error) {
	if strings.TrimSpace(source) == "" {
		return Transcript{}, services.Wrap(services.ErrValidation, "Transcription", "whisperx", "source path required", nil)
	}
	if outputDir == "" {
		outputDir = filepath.Dir(source)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Transcript{}, services.Wrap(services.ErrEngineFault, "Transcription", "whisperx", "Could not create output directory", err)
	}

	if _, err := s.run(ctx, UVXCommand, s.buildArgs(source, outputDir, language)...); err != nil {
		return Transcript{}, classify(err)
	}

	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	transcript, err := LoadTranscript(filepath.Join(outputDir, base+".json"))
	if err != nil {
		return Transcript{}, services.Wrap(services.ErrEngineFault, "Transcription", "whisperx", "whisperx produced no readable transcript", err)
	}
	return transcript, nil
}

func classify(err error) error {
	text := strings.ToLower(cmdrun.Output(err) + " " + err.Error())
	for _, marker := range badInputMarkers {
		if strings.Contains(text, marker) {
			return services.Wrap(services.ErrBadInput, "Transcription", "whisperx", "Audio could not be decoded", err)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTransient, "Transcription", "whisperx", "whisperx interrupted", err)
	}
	return services.Wrap(services.ErrEngineFault, "Transcription", "whisperx", "whisperx failed", err)
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (s *Service) buildArgs(source, outputDir, language string) []string {
	args := make([]string, 0, 40)

	if s.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", s.Model(),
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--segment_resolution", SegmentResolution,
		"--chunk_size", ChunkSize,
		"--vad_onset", VADOnset,
		"--vad_offset", VADOffset,
		"--beam_size", BeamSize,
		"--temperature", Temperature,
		"--no_align",
	)

	vadMethod := s.cfg.VADMethod
	if vadMethod == "" {
		vadMethod = VADMethodSilero
	}
	args = append(args, "--vad_method", vadMethod)
	if vadMethod == VADMethodPyannote && s.cfg.HFToken != "" {
		args = append(args, "--hf_token", s.cfg.HFToken)
	}

	if lang := langpkg.ToISO2(language); lang != "" {
		args = append(args, "--language", lang)
	}

	if s.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}
	return args
}

// LoadTranscript loads a WhisperX JSON file.
func LoadTranscript(jsonPath string) (Transcript, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return Transcript{}, err
	}
	var payload Transcript
	if err := json.Unmarshal(data, &payload); err != nil {
		return Transcript{}, fmt.Errorf("parse whisperx json: %w", err)
	}
	return payload, nil
}
