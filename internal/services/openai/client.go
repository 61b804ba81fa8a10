// Package openai adapts the OpenAI API (or any compatible endpoint) for
// speech recognition and line translation via go-openai.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	gopenai "github.com/sashabaranov/go-openai"

	"subline/internal/language"
	"subline/internal/services"
)

// Defaults used when Config leaves a field empty.
const (
	DefaultBaseURL            = "https://api.openai.com/v1"
	DefaultTranscriptionModel = "whisper-1"
	DefaultChatModel          = "gpt-4o-mini"
	defaultTimeout            = 120 * time.Second
)

// Models lists transcription models the API accepts.
var Models = []string{"whisper-1", "gpt-4o-transcribe", "gpt-4o-mini-transcribe"}

// Config describes how to reach the API.
type Config struct {
	APIKey             string
	BaseURL            string
	TranscriptionModel string
	ChatModel          string
	Timeout            time.Duration
}

// Client wraps a go-openai client.
type Client struct {
	api *gopenai.Client
	cfg Config
}

// New builds a Client from cfg.
func New(cfg Config) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(cfg.TranscriptionModel) == "" {
		cfg.TranscriptionModel = DefaultTranscriptionModel
	}
	if strings.TrimSpace(cfg.ChatModel) == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	clientCfg := gopenai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &Client{api: gopenai.NewClientWithConfig(clientCfg), cfg: cfg}
}

// Segment is one timed span of recognized speech, in seconds relative to the
// start of the submitted file.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// Transcript is the verbose transcription response.
type Transcript struct {
	Segments []Segment
	Language string
}

// Transcribe uploads the audio at path. A 4xx rejection of the audio carries
// services.ErrBadInput; server, quota and network failures carry
// services.ErrEngineFault.
func (c *Client) Transcribe(ctx context.Context, path, languageHint string) (Transcript, error) {
	if _, err := os.Stat(path); err != nil {
		return Transcript{}, services.Wrap(services.ErrBadInput, "Transcription", "openai", "Audio file missing", err)
	}
	req := gopenai.AudioRequest{
		Model:    c.cfg.TranscriptionModel,
		FilePath: path,
		Language: language.ToISO2(languageHint),
		Format:   gopenai.AudioResponseFormatVerboseJSON,
	}
	resp, err := c.api.CreateTranscription(ctx, req)
	if err != nil {
		return Transcript{}, classify(err, "openai transcription failed")
	}

	out := Transcript{Language: language.ToISO2(resp.Language)}
	if out.Language == "" {
		out.Language = strings.ToLower(strings.TrimSpace(resp.Language))
	}
	for _, seg := range resp.Segments {
		out.Segments = append(out.Segments, Segment{Start: seg.Start, End: seg.End, Text: seg.Text})
	}
	if len(out.Segments) == 0 && strings.TrimSpace(resp.Text) != "" {
		out.Segments = []Segment{{Start: 0, End: resp.Duration, Text: resp.Text}}
	}
	return out, nil
}

// Translate asks the chat model for a translation of text into target
// (a language name or code). Only the translated text is returned.
func (c *Client) Translate(ctx context.Context, text, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	req := gopenai.ChatCompletionRequest{
		Model: c.cfg.ChatModel,
		Messages: []gopenai.ChatCompletionMessage{
			{Role: gopenai.ChatMessageRoleSystem, Content: translationPrompt(target)},
			{Role: gopenai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0.2,
	}
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", services.Wrap(services.ErrTranslation, "Translation", "openai", "chat completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", services.Wrap(services.ErrTranslation, "Translation", "openai", "empty completion", nil)
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", services.Wrap(services.ErrTranslation, "Translation", "openai", "empty translation", nil)
	}
	return out, nil
}

// HealthCheck lists models to verify the key and endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		if code := statusCode(err); code > 0 {
			return fmt.Errorf("openai health: HTTP %d: %w", code, err)
		}
		return fmt.Errorf("openai health: %w", err)
	}
	return nil
}

func translationPrompt(target string) string {
	return fmt.Sprintf("You translate subtitle lines into %s. Reply with the translated line only, "+
		"keeping meaning and tone. Do not add quotes, notes or explanations.", language.DisplayName(target))
}

// statusCode extracts the HTTP status from go-openai errors, or 0.
func statusCode(err error) int {
	var apiErr *gopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *gopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func classify(err error, message string) error {
	switch code := statusCode(err); {
	case code == http.StatusBadRequest, code == http.StatusRequestEntityTooLarge, code == http.StatusUnsupportedMediaType:
		return services.Wrap(services.ErrBadInput, "Transcription", "openai", fmt.Sprintf("%s (HTTP %d)", message, code), err)
	case code > 0:
		return services.Wrap(services.ErrEngineFault, "Transcription", "openai", fmt.Sprintf("%s (HTTP %d)", message, code), err)
	default:
		return services.Wrap(services.ErrEngineFault, "Transcription", "openai", message, err)
	}
}
