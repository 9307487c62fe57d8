package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/timtro-cloud/trobot/internal/domain"
)

// Generator is a chat-completion provider using the OpenAI-compatible API.
type Generator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// GeneratorConfig holds the generation provider settings.
type GeneratorConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
}

// NewGenerator creates an OpenAI-compatible chat-completion provider.
func NewGenerator(cfg GeneratorConfig) *Generator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Generator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: float32(cfg.Temperature),
	}
}

// Generate implements domain.Generator. Quota rejections come back as
// *domain.QuotaError carrying the provider's Retry-After hint.
func (g *Generator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return "", classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response: %w", domain.ErrGenerationProvider)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// classifyError separates quota rejections from other provider failures so
// the gateway opens the breaker only on the former.
func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests || isQuotaMessage(apiErr.Message) {
			return domain.NewQuotaError(retryAfterHint(apiErr.Message))
		}
		return fmt.Errorf("completion API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, domain.ErrGenerationProvider)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			return domain.NewQuotaError(0)
		}
		return fmt.Errorf("completion API error %d: %w",
			reqErr.HTTPStatusCode, domain.ErrGenerationProvider)
	}

	return fmt.Errorf("completion request failed: %v: %w", err, domain.ErrGenerationProvider)
}

func isQuotaMessage(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "too many requests")
}

// retryAfterHint parses "try again in 12.3s" style hints out of provider
// rate-limit messages. Returns 0 when no hint is present.
func retryAfterHint(msg string) int {
	lower := strings.ToLower(msg)
	idx := strings.Index(lower, "try again in ")
	if idx < 0 {
		return 0
	}
	rest := lower[idx+len("try again in "):]

	end := 0
	for end < len(rest) && (rest[end] >= '0' && rest[end] <= '9' || rest[end] == '.') {
		end++
	}
	if end == 0 {
		return 0
	}
	seconds, err := strconv.ParseFloat(rest[:end], 64)
	if err != nil {
		return 0
	}
	unit := strings.TrimSpace(rest[end:])
	switch {
	case strings.HasPrefix(unit, "ms"):
		seconds /= 1000
	case strings.HasPrefix(unit, "m"):
		seconds *= 60
	}
	return int(seconds + 0.999)
}
