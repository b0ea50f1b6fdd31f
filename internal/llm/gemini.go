package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"jefferson/internal/config"
)

// GeminiClient completes prompts through the Google GenAI SDK.
type GeminiClient struct {
	client      *genai.Client
	model       string
	maxTokens   int
	temperature float64
	limiter     *rate.Limiter
}

// NewGeminiClient creates a Gemini client from config.
func NewGeminiClient(cfg config.LLMConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 500
	}

	return &GeminiClient{
		client:      client,
		model:       model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		limiter:     newLimiter(cfg),
	}, nil
}

// Complete sends the prompt and returns the completion text.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	if err := waitLimiter(ctx, c.limiter); err != nil {
		return "", err
	}

	temp := float32(c.temperature)
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(c.maxTokens),
		Temperature:     &temp,
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), cfg)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		// The SDK surfaces HTTP status via APIError.
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", classifyStatus(apiErr.Code, err)
		}
		return "", &TransientError{Err: err}
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", &PermanentError{Err: fmt.Errorf("no completion returned")}
	}
	return text, nil
}
