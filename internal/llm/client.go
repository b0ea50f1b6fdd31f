// Package llm provides the polling backend: one Client implementation per
// vendor, selected by configuration, never by runtime type inspection.
// Failures surface as TransientError or PermanentError so the simulation
// driver can apply its retry policy.
package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"jefferson/internal/config"
)

// Client completes a single prompt.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// New builds a client for the configured provider.
func New(cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "openai", "glm", "zai":
		return NewOpenAIClient(cfg), nil
	case "anthropic":
		return NewAnthropicClient(cfg), nil
	case "gemini":
		return NewGeminiClient(cfg)
	case "mock":
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
}

// newLimiter builds the per-client rate limiter from the configured
// minimum request interval. Nil when rate limiting is disabled.
func newLimiter(cfg config.LLMConfig) *rate.Limiter {
	if cfg.MinRequestInterval == "" {
		return nil
	}
	interval, err := time.ParseDuration(cfg.MinRequestInterval)
	if err != nil || interval <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

func waitLimiter(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}
