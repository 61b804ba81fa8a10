package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir   string `toml:"work_dir"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
	StateDir  string `toml:"state_dir"`
}

// Transcription contains speech-recognition settings.
type Transcription struct {
	// Engine selects the recognizer backend ("whisperx" or "openai").
	Engine string `toml:"engine"`
	// ModelVariant names the model size (tiny, base, small, medium, large-v3...).
	ModelVariant string `toml:"model_variant"`
	// Language is an ISO code or name; empty means auto-detect.
	Language string `toml:"language"`
	// ChunkLength is the segment length in seconds.
	ChunkLength int    `toml:"chunk_length"`
	CUDAEnabled bool   `toml:"cuda_enabled"`
	VADMethod   string `toml:"vad_method"`
	HFToken     string `toml:"hf_token"`
}

// Audio contains pre-processing toggles applied during conversion.
type Audio struct {
	Normalize   bool `toml:"normalize"`
	ReduceNoise bool `toml:"reduce_noise"`
	TrimSilence bool `toml:"trim_silence"`
}

// Translation contains settings for the optional translation stage.
type Translation struct {
	Enabled           bool   `toml:"enabled"`
	TargetLanguage    string `toml:"target_language"`
	Primary           string `toml:"primary"`
	Fallback          string `toml:"fallback"`
	Retries           int    `toml:"retries"`
	RetryDelaySeconds int    `toml:"retry_delay_seconds"`
}

// LLM contains OpenRouter-style chat completion settings.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// OpenAI contains settings for the OpenAI transcription and chat APIs.
type OpenAI struct {
	APIKey             string `toml:"api_key"`
	BaseURL            string `toml:"base_url"`
	TranscriptionModel string `toml:"transcription_model"`
	ChatModel          string `toml:"chat_model"`
}

// MyMemory contains settings for the MyMemory translation API.
type MyMemory struct {
	BaseURL string `toml:"base_url"`
	Email   string `toml:"email"`
}

// Output contains settings for the persisted subtitle artifact.
type Output struct {
	Format          string `toml:"format"`
	DeleteTempFiles bool   `toml:"delete_temp_files"`

	// FilterHallucinations drops credit lines and filler phrases recognized
	// over silence or music. Off by default.
	FilterHallucinations bool `toml:"filter_hallucinations"`
}

// Download contains settings for remote source acquisition.
type Download struct {
	YTDLPBinary string `toml:"ytdlp_binary"`
	AudioFormat string `toml:"audio_format"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Metrics contains configuration for the Prometheus endpoint.
type Metrics struct {
	Enabled bool   `toml:"enabled"`
	Bind    string `toml:"bind"`
}

// Notifications contains ntfy settings for job completion messages.
type Notifications struct {
	// NtfyTopic is the full topic URL; empty disables notifications.
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	// OnSuccess also notifies for completed jobs; failures always notify.
	OnSuccess bool `toml:"on_success"`
}

// Config encapsulates all configuration values for subline.
//
// Configuration sections by subsystem:
//   - Paths: working, output, log and state directories
//   - Transcription: recognizer engine, model variant, chunking
//   - Audio: loudness normalization, noise reduction, silence trimming
//   - Translation: provider selection and retry policy
//   - LLM / OpenAI / MyMemory: provider connection settings
//   - Output: subtitle format and temp file retention
//   - Download: yt-dlp settings for URL sources
//   - Notifications: ntfy messages when a job ends
//   - Logging, Metrics: observability
type Config struct {
	Paths         Paths         `toml:"paths"`
	Transcription Transcription `toml:"transcription"`
	Audio         Audio         `toml:"audio"`
	Translation   Translation   `toml:"translation"`
	LLM           LLM           `toml:"llm"`
	OpenAI        OpenAI        `toml:"openai"`
	MyMemory      MyMemory      `toml:"mymemory"`
	Output        Output        `toml:"output"`
	Download      Download      `toml:"download"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
	Metrics       Metrics       `toml:"metrics"`
}

// DefaultConfigPath returns ~/.config/subline/config.toml, expanded.
func DefaultConfigPath() (string, error) {
	return ExpandPath("~/.config/subline/config.toml")
}

// Load reads the config at path (or the first default location that exists),
// applies environment fallbacks from the process and any ./.env file, then
// normalizes and validates it. It also reports the resolved path and whether
// a file was found there; a missing file yields the defaults.
func Load(path string) (*Config, string, bool, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, "", false, err
	}
	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	cfg := Default()
	if exists {
		if err := decodeFile(resolved, &cfg); err != nil {
			return nil, resolved, true, err
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, resolved, exists, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, resolved, exists, err
	}
	return &cfg, resolved, exists, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// resolveConfigPath honours an explicit path even when it does not exist.
// Otherwise the user config wins over ./subline.toml.
func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		exists, err := isFile(expanded)
		return expanded, exists, err
	}

	userPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("subline.toml")
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{userPath, projectPath} {
		if ok, _ := isFile(candidate); ok {
			return candidate, true, nil
		}
	}
	return userPath, false, nil
}

func isFile(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("stat config: %w", err)
	default:
		return !info.IsDir(), nil
	}
}

// EnsureDirectories creates the directories a run writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.OutputDir, c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name used for conversion and chunking.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for duration probing.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// HistoryPath returns the SQLite database path for job history.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// LockDir returns the directory holding per-model lock files.
func (c *Config) LockDir() string {
	return filepath.Join(c.Paths.StateDir, "locks")
}

// ExpandPath resolves a leading ~ to the home directory and returns the
// cleaned absolute path. Empty input stays empty.
func ExpandPath(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if value == "~" || strings.HasPrefix(value, "~/") || strings.HasPrefix(value, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		value = filepath.Join(home, value[1:])
	}
	absolute, err := filepath.Abs(value)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", value, err)
	}
	return absolute, nil
}

// CreateSample writes the commented sample configuration to path.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains the chat completion settings used by the llm translator.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// GetLLM returns the LLM connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
	}
}

// UsesProvider reports whether the named translation provider is selected
// as primary or fallback while translation is enabled.
func (c *Config) UsesProvider(name string) bool {
	if !c.Translation.Enabled {
		return false
	}
	return c.Translation.Primary == name || c.Translation.Fallback == name
}
