package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"judge-evals/internal/apperr"
)

const (
	// DefaultLocalBaseURL is Ollama's OpenAI-compatible endpoint.
	DefaultLocalBaseURL = "http://localhost:11434/v1"
	DefaultLocalModel   = "llama3"

	defaultLocalTemperature = 0.2
	localProviderName       = "ollama"
)

// LocalConfig configures the local-model backend.
type LocalConfig struct {
	// Name labels errors and spans; defaults to "ollama".
	Name    string
	BaseURL string
	Model   string
	// APIKey is ignored by Ollama but forwarded for gateways that need one.
	APIKey  string
	Timeout time.Duration
}

// LocalClient calls a locally reachable inference server that speaks the
// OpenAI chat completions protocol (Ollama, llama.cpp server, vLLM).
type LocalClient struct {
	name    string
	model   openai.ChatModel
	timeout time.Duration
	client  *openai.Client
}

// NewLocalClient builds a client with defaults against a local Ollama.
func NewLocalClient(cfg LocalConfig) *LocalClient {
	if cfg.Name == "" {
		cfg.Name = localProviderName
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultLocalBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLocalModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.APIKey == "" {
		cfg.APIKey = localProviderName
	}
	cli := openai.NewClient(
		option.WithBaseURL(cfg.BaseURL),
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	)
	return &LocalClient{
		name:    cfg.Name,
		model:   openai.ChatModel(cfg.Model),
		timeout: cfg.Timeout,
		client:  &cli,
	}
}

func (c *LocalClient) Summarize(ctx context.Context, text string) (string, error) {
	if c == nil || c.client == nil {
		return "", apperr.Config("local model client is not configured")
	}
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Chat.Completions.New(reqCtx, openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    []openai.ChatCompletionMessageParamUnion{userMessage(Instruction + "\n\n" + text)},
		Temperature: openai.Float(defaultLocalTemperature),
	})
	if err != nil {
		return "", classify(reqCtx, c.name, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", apperr.Provider(c.name, fmt.Errorf("model %s: %w", c.model, ErrEmptyResponse))
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func userMessage(content string) openai.ChatCompletionMessageParamUnion {
	return openai.ChatCompletionMessageParamUnion{
		OfUser: &openai.ChatCompletionUserMessageParam{
			Content: openai.ChatCompletionUserMessageParamContentUnion{
				OfString: openai.String(content),
			},
		},
	}
}
