// Package ai provides the LLM client used for evaluation and summary
// prompts. It wraps a langchaingo model selected by configuration so the
// rest of the pipeline never depends on a concrete provider.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"sift/internal/config"
)

// Sampling temperatures. Text generation runs slightly warm for readable
// prose; JSON generation runs cold to keep the output parseable.
const (
	textTemperature = 0.3
	jsonTemperature = 0.1
)

// Client is a provider-agnostic LLM client. Every call is bounded by the
// configured per-call timeout, so a stuck backend fails the call instead
// of blocking the pipeline run.
type Client struct {
	llm     llms.Model
	model   string
	timeout time.Duration
}

// New creates a client for the configured provider.
func New(cfg config.LLMConfig) (*Client, error) {
	var model llms.Model
	var err error

	switch cfg.Provider {
	case "ollama":
		model, err = ollama.New(
			ollama.WithModel(cfg.Model),
			ollama.WithServerURL(cfg.BaseURL),
		)
		if err != nil {
			return nil, fmt.Errorf("creating ollama client: %w", err)
		}

	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		model, err = openai.New(
			openai.WithToken(cfg.APIKey),
			openai.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("creating openai client: %w", err)
		}

	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic provider requires an API key")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.APIKey),
			anthropic.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("creating anthropic client: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}

	return &Client{
		llm:     model,
		model:   cfg.Model,
		timeout: cfg.Timeout(),
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// GenerateText runs a plain text completion. Errors from the backend are
// returned as-is; retries are the caller's decision.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt,
		llms.WithTemperature(textTemperature),
	)
	if err != nil {
		return "", fmt.Errorf("generating text: %w", err)
	}
	return resp, nil
}

// GenerateJSON runs a completion in JSON mode and unmarshals the response
// into dest. Markdown code fences around the JSON body are stripped first.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, dest any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt,
		llms.WithTemperature(jsonTemperature),
		llms.WithJSONMode(),
	)
	if err != nil {
		return fmt.Errorf("generating json: %w", err)
	}

	cleaned := extractJSON(resp)
	if err := json.Unmarshal([]byte(cleaned), dest); err != nil {
		return fmt.Errorf("parsing llm response JSON: %w", err)
	}
	return nil
}

// extractJSON strips markdown code fences from a string that may contain
// JSON wrapped in ```json ... ``` or ``` ... ``` blocks. This handles the
// common case where LLMs return JSON inside code fences.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)

	// Try ```json ... ``` first.
	if after, found := strings.CutPrefix(s, "```json"); found {
		if idx := strings.LastIndex(after, "```"); idx >= 0 {
			after = after[:idx]
		}
		return strings.TrimSpace(after)
	}

	// Try plain ``` ... ```.
	if after, found := strings.CutPrefix(s, "```"); found {
		if idx := strings.LastIndex(after, "```"); idx >= 0 {
			after = after[:idx]
		}
		return strings.TrimSpace(after)
	}

	return s
}
