package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"judge-evals/internal/apperr"
)

const (
	// DefaultHTTPBaseURL targets the OpenAI chat completions endpoint.
	DefaultHTTPBaseURL = "https://api.openai.com/v1/chat/completions"
	DefaultHTTPModel   = "gpt-3.5-turbo"

	maxResponseBytes = 1 << 20
)

// PayloadBuilder renders the request body for one summarization.
type PayloadBuilder func(text, model string) ([]byte, error)

// ResponseParser extracts the summary from a successful response body.
type ResponseParser func(body []byte) (string, error)

// HTTPConfig configures the generic chat-completion backend. Any
// chat-completion style API can be adapted by supplying BuildPayload and
// ParseResponse; both default to the OpenAI shape.
type HTTPConfig struct {
	Name          string
	BaseURL       string
	APIKey        string
	Model         string
	Timeout       time.Duration
	BuildPayload  PayloadBuilder
	ParseResponse ResponseParser
	Client        *http.Client
}

// HTTPProvider posts the evaluation text to a configurable JSON endpoint.
type HTTPProvider struct {
	cfg HTTPConfig
}

// NewHTTPProvider fills defaults. A missing API key is reported by Summarize
// before any request is sent.
func NewHTTPProvider(cfg HTTPConfig) *HTTPProvider {
	if cfg.Name == "" {
		cfg.Name = "http"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultHTTPBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultHTTPModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BuildPayload == nil {
		cfg.BuildPayload = OpenAIPayload
	}
	if cfg.ParseResponse == nil {
		cfg.ParseResponse = OpenAIResponse
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	return &HTTPProvider{cfg: cfg}
}

func (p *HTTPProvider) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return "", apperr.Config("API Key is missing")
	}

	payload, err := p.cfg.BuildPayload(text, p.cfg.Model)
	if err != nil {
		return "", apperr.Provider(p.cfg.Name, fmt.Errorf("build payload: %w", err))
	}

	reqCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, p.cfg.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return "", apperr.Provider(p.cfg.Name, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.cfg.Client.Do(req)
	if err != nil {
		return "", classify(reqCtx, p.cfg.Name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", classify(reqCtx, p.cfg.Name, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", apperr.Provider(p.cfg.Name, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	summary, err := p.cfg.ParseResponse(body)
	if err != nil {
		return "", apperr.Provider(p.cfg.Name, fmt.Errorf("parse response: %w", err))
	}
	return summary, nil
}

// OpenAIPayload builds an OpenAI chat completions request.
func OpenAIPayload(text, model string) ([]byte, error) {
	body := []byte(`{}`)
	var err error
	if body, err = sjson.SetBytes(body, "model", model); err != nil {
		return nil, err
	}
	messages := []map[string]string{
		{"role": "system", "content": Instruction},
		{"role": "user", "content": text},
	}
	if body, err = sjson.SetBytes(body, "messages", messages); err != nil {
		return nil, err
	}
	if body, err = sjson.SetBytes(body, "temperature", 0.5); err != nil {
		return nil, err
	}
	return sjson.SetBytes(body, "max_tokens", 150)
}

// OpenAIResponse reads choices[0].message.content.
func OpenAIResponse(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", ErrMalformedResponse
	}
	content := gjson.GetBytes(body, "choices.0.message.content")
	if content.Type != gjson.String {
		return "", ErrMalformedResponse
	}
	if strings.TrimSpace(content.Str) == "" {
		return "", ErrEmptyResponse
	}
	return content.Str, nil
}
