package domain

import "context"

// Generator is the outbound generation provider contract.
// Implementations must return an error unwrapping to ErrGenerationQuota
// (ideally a *QuotaError with the retry-after hint) on rate-limit rejections,
// so the circuit breaker can distinguish them from transient failures.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// GenerationUsage carries provider token accounting for logging.
type GenerationUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
