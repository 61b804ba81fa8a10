// Package mymemory is a client for the MyMemory translation API, used as the
// default fallback translator because it needs no API key.
package mymemory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"subline/internal/language"
	"subline/internal/services"
)

// DefaultBaseURL is the public MyMemory endpoint.
const DefaultBaseURL = "https://api.mymemory.translated.net/get"

// autodetect asks MyMemory to guess the source language.
const autodetect = "Autodetect"

// Config describes the MyMemory endpoint.
type Config struct {
	BaseURL string
	// Email raises the anonymous daily quota when set.
	Email   string
	Timeout time.Duration
}

// Client translates single lines through MyMemory.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient builds a Client.
func NewClient(cfg Config) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Client{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

type response struct {
	ResponseData struct {
		TranslatedText string `json:"translatedText"`
	} `json:"responseData"`
	// MyMemory reports the status as a number or a quoted number.
	ResponseStatus  json.RawMessage `json:"responseStatus"`
	ResponseDetails string          `json:"responseDetails"`
}

func (r response) status() int {
	raw := strings.Trim(string(r.ResponseStatus), `" `)
	code, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return code
}

// Translate renders text in target (a language name or code).
func (c *Client) Translate(ctx context.Context, text, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	code := language.ToISO2(target)
	if code == "" {
		return "", services.Wrap(services.ErrTranslation, "Translation", "mymemory", fmt.Sprintf("unsupported target language %q", target), nil)
	}

	query := url.Values{}
	query.Set("q", text)
	query.Set("langpair", autodetect+"|"+code)
	if c.cfg.Email != "" {
		query.Set("de", c.cfg.Email)
	}
	endpoint := c.cfg.BaseURL + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", services.Wrap(services.ErrTranslation, "Translation", "mymemory", "build request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTranslation, "Translation", "mymemory", "request failed", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", services.Wrap(services.ErrTranslation, "Translation", "mymemory", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", services.Wrap(services.ErrTranslation, "Translation", "mymemory", fmt.Sprintf("http %d", resp.StatusCode), nil)
	}

	var payload response
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", services.Wrap(services.ErrTranslation, "Translation", "mymemory", "decode response", err)
	}
	if status := payload.status(); status != 0 && status != http.StatusOK {
		return "", services.Wrap(services.ErrTranslation, "Translation", "mymemory",
			fmt.Sprintf("status %d: %s", status, strings.TrimSpace(payload.ResponseDetails)), nil)
	}
	out := strings.TrimSpace(payload.ResponseData.TranslatedText)
	// Quota exhaustion comes back as a 200 with the warning as the "translation".
	if out == "" || strings.HasPrefix(strings.ToUpper(out), "MYMEMORY WARNING") {
		return "", services.Wrap(services.ErrTranslation, "Translation", "mymemory", "no usable translation returned", nil)
	}
	return out, nil
}
