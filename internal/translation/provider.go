// Package translation rewrites transcript lines into a target language with
// retries, provider failover and pass-through as the last resort.
package translation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"subline/internal/config"
	"subline/internal/services"
	"subline/internal/services/llm"
	"subline/internal/services/mymemory"
	"subline/internal/services/openai"
)

// Provider translates one line of text into target, a language name or code.
type Provider interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, text, target string) (string, error)

// Translate calls f.
func (f ProviderFunc) Translate(ctx context.Context, text, target string) (string, error) {
	return f(ctx, text, target)
}

// Names lists the provider names accepted by NewProvider.
func Names() []string {
	return []string{config.ProviderLLM, config.ProviderOpenAI, config.ProviderMyMemory, config.ProviderNone}
}

// NewProvider builds the named provider from cfg. The "none" provider (or an
// empty name) yields a nil Provider, which the Stage skips.
func NewProvider(name string, cfg *config.Config) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", config.ProviderNone:
		return nil, nil
	case config.ProviderLLM:
		settings := cfg.GetLLM()
		if settings.APIKey == "" {
			return nil, services.Wrap(services.ErrConfiguration, "Translation", "llm", "llm.api_key is required for the llm translator", nil)
		}
		return llm.NewClient(llm.Config{
			APIKey:         settings.APIKey,
			BaseURL:        settings.BaseURL,
			Model:          settings.Model,
			Referer:        settings.Referer,
			Title:          settings.Title,
			TimeoutSeconds: settings.TimeoutSeconds,
		}), nil
	case config.ProviderOpenAI:
		if strings.TrimSpace(cfg.OpenAI.APIKey) == "" {
			return nil, services.Wrap(services.ErrConfiguration, "Translation", "openai", "openai.api_key is required for the openai translator", nil)
		}
		return openai.New(openai.Config{
			APIKey:    cfg.OpenAI.APIKey,
			BaseURL:   cfg.OpenAI.BaseURL,
			ChatModel: cfg.OpenAI.ChatModel,
		}), nil
	case config.ProviderMyMemory:
		return mymemory.NewClient(mymemory.Config{
			BaseURL: cfg.MyMemory.BaseURL,
			Email:   cfg.MyMemory.Email,
		}), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "Translation", "provider", fmt.Sprintf("unknown translation provider %q", name), nil)
	}
}

// NewStageFromConfig builds a Stage with the configured primary and fallback
// providers and retry policy. A provider that cannot be built is left out and
// its error is returned alongside the stage. The stage is nil only when
// neither provider is usable.
func NewStageFromConfig(cfg *config.Config, opts ...Option) (*Stage, error) {
	primary, primaryErr := NewProvider(cfg.Translation.Primary, cfg)
	fallback, fallbackErr := NewProvider(cfg.Translation.Fallback, cfg)
	err := errors.Join(primaryErr, fallbackErr)
	if primary == nil && fallback == nil {
		if err == nil {
			err = services.Wrap(services.ErrConfiguration, "Translation", "providers", "no translation provider configured", nil)
		}
		return nil, err
	}
	base := []Option{
		WithProviderNames(cfg.Translation.Primary, cfg.Translation.Fallback),
		WithRetries(cfg.Translation.Retries),
		WithRetryDelay(time.Duration(cfg.Translation.RetryDelaySeconds) * time.Second),
	}
	return NewStage(primary, fallback, append(base, opts...)...), err
}
