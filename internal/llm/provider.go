// Package llm provides a provider-agnostic adapter for the external
// text-generation call. The pipeline treats completions as an opaque
// function returning structured JSON; this package hides the transport.
// Zero external dependencies — uses net/http directly.
package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// Provider is the interface for text-generation completions.
type Provider interface {
	// Complete sends a prompt and returns the response text.
	Complete(ctx context.Context, prompt string, opts CompletionOpts) (string, error)
	// Name returns a human-readable provider name (e.g. "deepseek/deepseek-chat").
	Name() string
}

// CompletionOpts configures a single completion request.
type CompletionOpts struct {
	MaxTokens   int     // max tokens to generate (0 = provider default)
	Temperature float64 // 0.0-2.0 (0 = deterministic)
	Model       string  // override model for this request (empty = provider default)
	Format      string  // "json" for structured output, empty for plain text
	System      string  // system prompt (optional)
}

// Config holds provider configuration. A missing API key is a
// construction-time error, surfaced immediately and never retried.
type Config struct {
	Provider string        // "deepseek", "openrouter"
	Model    string        // e.g. "deepseek-chat", "openai/gpt-4o-mini"
	APIKey   string        // API key (empty = read from env)
	BaseURL  string        // optional URL override
	Timeout  time.Duration // HTTP client timeout (0 = DefaultTimeout)
}

// DefaultTimeout bounds a single completion request.
const DefaultTimeout = 60 * time.Second

// NewProvider creates a completion provider from the given config.
func NewProvider(cfg Config) (Provider, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	switch strings.ToLower(cfg.Provider) {
	case "deepseek", "":
		key := cfg.APIKey
		if key == "" {
			key = os.Getenv("DEEPSEEK_API_KEY")
		}
		if key == "" {
			return nil, fmt.Errorf("deepseek provider requires DEEPSEEK_API_KEY env var")
		}
		model := cfg.Model
		if model == "" {
			model = "deepseek-chat"
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://api.deepseek.com"
		}
		return &deepseekProvider{
			apiKey:  key,
			model:   model,
			baseURL: baseURL,
			timeout: timeout,
		}, nil

	case "openrouter":
		key := cfg.APIKey
		if key == "" {
			key = os.Getenv("OPENROUTER_API_KEY")
		}
		if key == "" {
			return nil, fmt.Errorf("openrouter provider requires OPENROUTER_API_KEY env var")
		}
		model := cfg.Model
		if model == "" {
			model = "openai/gpt-4o-mini"
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://openrouter.ai/api/v1"
		}
		return &openrouterProvider{
			apiKey:  key,
			model:   model,
			baseURL: baseURL,
			timeout: timeout,
		}, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %q (supported: deepseek, openrouter)", cfg.Provider)
	}
}
