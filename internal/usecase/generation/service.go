// Package generation wraps the outbound LLM provider with retries and a
// shared circuit breaker so quota exhaustion degrades to a canned reply
// instead of hammering the provider.
package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timtro-cloud/trobot/internal/config"
	"github.com/timtro-cloud/trobot/internal/domain"
	"github.com/timtro-cloud/trobot/internal/logger"
	"github.com/timtro-cloud/trobot/internal/metrics"
	"go.uber.org/zap"
)

// Breaker is the shared generation circuit breaker state.
type Breaker interface {
	Open(ctx context.Context, cooldown time.Duration) error
	Remaining(ctx context.Context) (time.Duration, error)
}

// Service is the resilient generation gateway.
type Service struct {
	gen     domain.Generator
	breaker Breaker
	cfg     config.GenerationConfig
	sleep   func(time.Duration)
}

func New(gen domain.Generator, breaker Breaker, cfg config.GenerationConfig) *Service {
	return &Service{gen: gen, breaker: breaker, cfg: cfg, sleep: time.Sleep}
}

// WithSleep replaces the backoff sleeper, for tests.
func (s *Service) WithSleep(sleep func(time.Duration)) *Service {
	s.sleep = sleep
	return s
}

// Fallback returns the canned reply used while the breaker is open.
func (s *Service) Fallback() string { return s.cfg.FallbackMessage }

// Generate produces a completion, retrying transient failures with
// exponential backoff. A quota rejection opens the breaker for the
// configured cooldown, stretched to the provider's Retry-After hint up to
// the configured cap; while open, calls fail fast with ErrCircuitOpen.
func (s *Service) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	log := logger.FromContext(ctx)

	remaining, err := s.breaker.Remaining(ctx)
	if err != nil {
		// Breaker state unreadable: fail open and try the provider.
		log.Warn("breaker state unavailable", zap.Error(err))
	}
	if remaining > 0 {
		metrics.BreakerRejectionsTotal.Inc()
		return "", fmt.Errorf("%w: retry in %s", domain.ErrCircuitOpen, remaining.Round(time.Second))
	}

	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			s.sleep(backoff(attempt))
		}

		start := time.Now()
		answer, err := s.gen.Generate(ctx, systemPrompt, userPrompt)
		metrics.GenerationRequestDuration.WithLabelValues(s.cfg.Model).Observe(time.Since(start).Seconds())
		if err == nil {
			metrics.GenerationRequestsTotal.WithLabelValues(s.cfg.Model, "ok").Inc()
			return answer, nil
		}
		lastErr = err

		if errors.Is(err, domain.ErrGenerationQuota) {
			metrics.GenerationRequestsTotal.WithLabelValues(s.cfg.Model, "quota").Inc()
			s.openBreaker(ctx, err, log)
			return "", err
		}
		if ctx.Err() != nil {
			metrics.GenerationRequestsTotal.WithLabelValues(s.cfg.Model, "canceled").Inc()
			return "", err
		}
		metrics.GenerationRequestsTotal.WithLabelValues(s.cfg.Model, "error").Inc()
		log.Warn("generation attempt failed",
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return "", fmt.Errorf("generation failed after %d attempts: %w", s.cfg.MaxRetries, lastErr)
}

func (s *Service) openBreaker(ctx context.Context, cause error, log *zap.Logger) {
	cooldown := time.Duration(s.cfg.CooldownSec) * time.Second

	var qe *domain.QuotaError
	if errors.As(cause, &qe) && qe.RetryAfterSec > 0 {
		hinted := time.Duration(qe.RetryAfterSec) * time.Second
		if hinted > cooldown {
			cooldown = hinted
		}
		if limit := time.Duration(s.cfg.RetryAfterCap) * time.Second; cooldown > limit {
			cooldown = limit
		}
	}

	if err := s.breaker.Open(ctx, cooldown); err != nil {
		log.Error("failed to open generation breaker", zap.Error(err))
		return
	}
	metrics.BreakerTransitionsTotal.WithLabelValues("open").Inc()
	log.Warn("generation breaker opened",
		zap.Duration("cooldown", cooldown),
		zap.Error(cause))
}

func backoff(attempt int) time.Duration {
	return time.Duration(1<<(attempt-1)) * 500 * time.Millisecond
}
