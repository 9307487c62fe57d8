package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrListingNotFound signals a missing listing.
	ErrListingNotFound = errors.New("listing not found")
	// ErrIndexNotBuilt signals that no retrieval index is available yet.
	ErrIndexNotBuilt = errors.New("retrieval index not built")
	// ErrEmbeddingUnavailable signals that the embedding service cannot serve vectors.
	// Retrieval degrades to lexical-only when it sees this.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
	// ErrGenerationQuota signals a quota/rate-limit rejection from the generation provider.
	ErrGenerationQuota = errors.New("generation quota exhausted")
	// ErrGenerationProvider signals a non-quota generation provider failure.
	ErrGenerationProvider = errors.New("generation provider error")
	// ErrCircuitOpen signals that the generation circuit breaker is open.
	ErrCircuitOpen = errors.New("generation circuit open")
	// ErrStoreUnavailable signals a listing-store read failure.
	ErrStoreUnavailable = errors.New("listing store unavailable")
	// ErrNoIntent signals that no deterministic intent matched the message.
	ErrNoIntent = errors.New("no deterministic intent matched")
)

// QuotaError wraps ErrGenerationQuota with the provider's retry-after hint.
type QuotaError struct {
	RetryAfterSec int
}

func (e *QuotaError) Error() string {
	if e.RetryAfterSec > 0 {
		return fmt.Sprintf("%s: retry after %ds", ErrGenerationQuota.Error(), e.RetryAfterSec)
	}
	return ErrGenerationQuota.Error()
}

func (e *QuotaError) Unwrap() error { return ErrGenerationQuota }

// NewQuotaError creates a quota error with an optional retry-after hint in seconds.
func NewQuotaError(retryAfterSec int) error {
	return &QuotaError{RetryAfterSec: retryAfterSec}
}
