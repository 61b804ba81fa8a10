package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gopenai "github.com/sashabaranov/go-openai"

	"subline/internal/language"
	"subline/internal/services"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	// DefaultBaseURL is OpenRouter's OpenAI-compatible API root.
	DefaultBaseURL = "https://openrouter.ai/api/v1"
)

// Config captures the runtime settings required to talk to the LLM.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// Client talks to an OpenAI-compatible chat endpoint such as OpenRouter.
// Each call is a single request.
type Client struct {
	api   *gopenai.Client
	model string
	keyed bool
}

// NewClient constructs an LLM client using the supplied configuration.
func NewClient(cfg Config) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	httpClient := &http.Client{
		Timeout: timeout,
		Transport: attributionTransport{
			referer: strings.TrimSpace(cfg.Referer),
			title:   strings.TrimSpace(cfg.Title),
		},
	}

	key := strings.TrimSpace(cfg.APIKey)
	apiCfg := gopenai.DefaultConfig(key)
	apiCfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if apiCfg.BaseURL == "" {
		apiCfg.BaseURL = DefaultBaseURL
	}
	apiCfg.HTTPClient = httpClient
	return &Client{
		api:   gopenai.NewClientWithConfig(apiCfg),
		model: strings.TrimSpace(cfg.Model),
		keyed: key != "",
	}
}

// attributionTransport adds the optional OpenRouter app attribution headers.
type attributionTransport struct {
	referer string
	title   string
}

func (t attributionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.referer == "" && t.title == "" {
		return http.DefaultTransport.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	if t.referer != "" {
		req.Header.Set("HTTP-Referer", t.referer)
	}
	if t.title != "" {
		req.Header.Set("X-Title", t.title)
	}
	return http.DefaultTransport.RoundTrip(req)
}

// StatusError is returned when the endpoint answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.StatusCode, snippet(e.Message))
}

func (e *StatusError) Unwrap() error { return e.Err }

// CompleteJSON runs a JSON-mode chat completion and returns the first
// non-empty message content.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	switch {
	case systemPrompt == "":
		return "", errors.New("llm complete: system prompt required")
	case userPrompt == "":
		return "", errors.New("llm complete: user prompt required")
	case !c.keyed:
		return "", errors.New("llm complete: api key required")
	}
	resp, err := c.api.CreateChatCompletion(ctx, gopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []gopenai.ChatCompletionMessage{
			{Role: gopenai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: gopenai.ChatMessageRoleUser, Content: userPrompt},
		},
		ResponseFormat: &gopenai.ChatCompletionResponseFormat{Type: gopenai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return "", asStatusError(err)
	}
	for _, choice := range resp.Choices {
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return content, nil
		}
	}
	return "", fmt.Errorf("llm complete: empty content from %d choices", len(resp.Choices))
}

func asStatusError(err error) error {
	var apiErr *gopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return &StatusError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
	}
	var reqErr *gopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return &StatusError{StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error(), Err: err}
	}
	return fmt.Errorf("llm request: %w", err)
}

// Translate renders text in target (a language name or code). The model is
// asked for {"translation": "..."} so stray commentary can be discarded.
func (c *Client) Translate(ctx context.Context, text, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	content, err := c.CompleteJSON(ctx, TranslationPrompt(target), text)
	if err != nil {
		return "", services.Wrap(services.ErrTranslation, "Translation", "llm", "chat completion failed", err)
	}
	var parsed struct {
		Translation string `json:"translation"`
	}
	if err := DecodeLLMJSON(content, &parsed); err != nil {
		return "", services.Wrap(services.ErrTranslation, "Translation", "llm", "unparseable translation payload", err)
	}
	out := strings.TrimSpace(parsed.Translation)
	if out == "" {
		return "", services.Wrap(services.ErrTranslation, "Translation", "llm", "empty translation", nil)
	}
	return out, nil
}

// TranslationPrompt is the system prompt used by Translate.
func TranslationPrompt(target string) string {
	return fmt.Sprintf(`You translate subtitle lines into %s.
Keep the meaning, tone and register of the original line. Keep names untranslated.
Respond with JSON only, exactly in the form {"translation": "<translated line>"}.`, language.DisplayName(target))
}

// HealthCheck asks for a trivial JSON reply to prove the key and model work.
func (c *Client) HealthCheck(ctx context.Context) error {
	content, err := c.CompleteJSON(ctx, "You must respond with JSON only.", `Respond with {"ok":true}`)
	if err != nil {
		return fmt.Errorf("llm health: %w", err)
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeLLMJSON(content, &parsed); err != nil {
		return fmt.Errorf("llm health: %w", err)
	}
	if !parsed.OK {
		return errors.New("llm health: unexpected response")
	}
	return nil
}

// DecodeLLMJSON decodes the JSON object in an LLM reply. Code fences and
// prose around the outermost braces are ignored.
func DecodeLLMJSON(content string, target any) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return errors.New("empty payload")
	}
	err := json.Unmarshal([]byte(content), target)
	if err == nil {
		return nil
	}
	object := extractObject(content)
	if object == "" || object == content {
		return fmt.Errorf("%w (payload: %s)", err, snippet(content))
	}
	if err := json.Unmarshal([]byte(object), target); err != nil {
		return fmt.Errorf("%w (extracted: %s)", err, snippet(object))
	}
	return nil
}

func extractObject(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return ""
	}
	return content[start : end+1]
}

func snippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	const limit = 160
	if runes := []rune(clean); len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return clean
}
