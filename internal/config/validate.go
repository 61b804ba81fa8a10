package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateTranslation(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if topic := c.Notifications.NtfyTopic; topic != "" &&
		!strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be an http(s) URL, got %q", topic)
	}
	return nil
}

func (c *Config) validateTranscription() error {
	switch c.Transcription.Engine {
	case EngineWhisperX:
	case EngineOpenAI:
		if c.OpenAI.APIKey == "" {
			defaultPath, err := DefaultConfigPath()
			if err != nil {
				defaultPath = "~/.config/subline/config.toml"
			}
			return fmt.Errorf("openai.api_key is required for transcription.engine = %q. Set OPENAI_API_KEY or edit %s", EngineOpenAI, defaultPath)
		}
	default:
		return fmt.Errorf("transcription.engine: unsupported value %q (want %q or %q)", c.Transcription.Engine, EngineWhisperX, EngineOpenAI)
	}
	if c.Transcription.ChunkLength <= 0 {
		return errors.New("transcription.chunk_length must be positive")
	}
	switch c.Transcription.VADMethod {
	case "silero", "pyannote":
	default:
		return fmt.Errorf("transcription.vad_method: unsupported value %q", c.Transcription.VADMethod)
	}
	return nil
}

func (c *Config) validateTranslation() error {
	if !c.Translation.Enabled {
		return nil
	}
	for field, name := range map[string]string{
		"translation.primary":  c.Translation.Primary,
		"translation.fallback": c.Translation.Fallback,
	} {
		switch name {
		case ProviderLLM, ProviderOpenAI, ProviderMyMemory:
		case ProviderNone:
			if field == "translation.primary" {
				return errors.New("translation.primary cannot be none when translation.enabled is true")
			}
		default:
			return fmt.Errorf("%s: unsupported provider %q", field, name)
		}
	}
	if c.UsesProvider(ProviderLLM) && c.LLM.APIKey == "" {
		return errors.New("llm.api_key must be set when the llm translation provider is selected (or export OPENROUTER_API_KEY)")
	}
	if c.UsesProvider(ProviderOpenAI) && c.OpenAI.APIKey == "" {
		return errors.New("openai.api_key must be set when the openai translation provider is selected (or export OPENAI_API_KEY)")
	}
	if strings.TrimSpace(c.Translation.TargetLanguage) == "" {
		return errors.New("translation.target_language must be set when translation.enabled is true")
	}
	return nil
}

func (c *Config) validateOutput() error {
	switch c.Output.Format {
	case FormatSRT, FormatVTT, FormatTXT:
		return nil
	default:
		return fmt.Errorf("output.format: unsupported value %q (want srt, vtt or txt)", c.Output.Format)
	}
}

func (c *Config) validateLogging() error {
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
