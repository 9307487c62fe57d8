package generation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/timtro-cloud/trobot/internal/config"
	"github.com/timtro-cloud/trobot/internal/domain"
)

type mockGenerator struct {
	calls   int
	results []func() (string, error)
}

func (m *mockGenerator) Generate(context.Context, string, string) (string, error) {
	i := m.calls
	m.calls++
	if i >= len(m.results) {
		i = len(m.results) - 1
	}
	return m.results[i]()
}

type mockBreaker struct {
	remaining time.Duration
	opened    time.Duration
	openCalls int
	remainErr error
	openErr   error
}

func (m *mockBreaker) Open(_ context.Context, cooldown time.Duration) error {
	m.openCalls++
	m.opened = cooldown
	return m.openErr
}

func (m *mockBreaker) Remaining(context.Context) (time.Duration, error) {
	return m.remaining, m.remainErr
}

func testCfg() config.GenerationConfig {
	return config.GenerationConfig{
		Model:           "llama-3.1-8b-instant",
		MaxRetries:      3,
		CooldownSec:     300,
		RetryAfterCap:   1800,
		FallbackMessage: "Hệ thống đang bận, bạn thử lại sau nhé.",
	}
}

func newService(gen domain.Generator, br Breaker) *Service {
	return New(gen, br, testCfg()).WithSleep(func(time.Duration) {})
}

func ok(answer string) func() (string, error) {
	return func() (string, error) { return answer, nil }
}

func fail(err error) func() (string, error) {
	return func() (string, error) { return "", err }
}

func TestGenerate_Success(t *testing.T) {
	gen := &mockGenerator{results: []func() (string, error){ok("xin chào")}}
	svc := newService(gen, &mockBreaker{})

	answer, err := svc.Generate(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if answer != "xin chào" {
		t.Fatalf("got %q", answer)
	}
	if gen.calls != 1 {
		t.Fatalf("expected 1 provider call, got %d", gen.calls)
	}
}

func TestGenerate_RetriesTransientFailures(t *testing.T) {
	gen := &mockGenerator{results: []func() (string, error){
		fail(errors.New("connection reset")),
		fail(errors.New("connection reset")),
		ok("recovered"),
	}}
	var slept []time.Duration
	svc := New(gen, &mockBreaker{}, testCfg()).WithSleep(func(d time.Duration) { slept = append(slept, d) })

	answer, err := svc.Generate(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if answer != "recovered" {
		t.Fatalf("got %q", answer)
	}
	if len(slept) != 2 || slept[0] != 500*time.Millisecond || slept[1] != time.Second {
		t.Fatalf("unexpected backoff schedule: %v", slept)
	}
}

func TestGenerate_ExhaustsRetries(t *testing.T) {
	gen := &mockGenerator{results: []func() (string, error){fail(errors.New("boom"))}}
	svc := newService(gen, &mockBreaker{})

	if _, err := svc.Generate(context.Background(), "sys", "user"); err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if gen.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", gen.calls)
	}
}

func TestGenerate_QuotaOpensBreakerWithoutRetry(t *testing.T) {
	gen := &mockGenerator{results: []func() (string, error){fail(domain.NewQuotaError(0))}}
	br := &mockBreaker{}
	svc := newService(gen, br)

	_, err := svc.Generate(context.Background(), "sys", "user")
	if !errors.Is(err, domain.ErrGenerationQuota) {
		t.Fatalf("got %v, want quota error", err)
	}
	if gen.calls != 1 {
		t.Fatalf("quota error must not be retried, got %d calls", gen.calls)
	}
	if br.openCalls != 1 || br.opened != 300*time.Second {
		t.Fatalf("breaker opened %d times for %v, want once for 300s", br.openCalls, br.opened)
	}
}

func TestGenerate_RetryAfterHintStretchesCooldown(t *testing.T) {
	gen := &mockGenerator{results: []func() (string, error){fail(domain.NewQuotaError(900))}}
	br := &mockBreaker{}
	svc := newService(gen, br)

	svc.Generate(context.Background(), "sys", "user")
	if br.opened != 900*time.Second {
		t.Fatalf("cooldown %v, want hinted 900s", br.opened)
	}
}

func TestGenerate_RetryAfterHintIsCapped(t *testing.T) {
	gen := &mockGenerator{results: []func() (string, error){fail(domain.NewQuotaError(7200))}}
	br := &mockBreaker{}
	svc := newService(gen, br)

	svc.Generate(context.Background(), "sys", "user")
	if br.opened != 1800*time.Second {
		t.Fatalf("cooldown %v, want capped at 1800s", br.opened)
	}
}

func TestGenerate_OpenBreakerFailsFast(t *testing.T) {
	gen := &mockGenerator{results: []func() (string, error){ok("should not run")}}
	svc := newService(gen, &mockBreaker{remaining: 120 * time.Second})

	_, err := svc.Generate(context.Background(), "sys", "user")
	if !errors.Is(err, domain.ErrCircuitOpen) {
		t.Fatalf("got %v, want ErrCircuitOpen", err)
	}
	if gen.calls != 0 {
		t.Fatal("provider must not be called while the breaker is open")
	}
}

func TestGenerate_BreakerReadFailureFailsOpen(t *testing.T) {
	gen := &mockGenerator{results: []func() (string, error){ok("answer")}}
	svc := newService(gen, &mockBreaker{remainErr: errors.New("redis down")})

	answer, err := svc.Generate(context.Background(), "sys", "user")
	if err != nil || answer != "answer" {
		t.Fatalf("got %q, %v; breaker read failure should not block generation", answer, err)
	}
}

func TestFallback(t *testing.T) {
	svc := newService(&mockGenerator{results: []func() (string, error){ok("")}}, &mockBreaker{})
	if svc.Fallback() == "" {
		t.Fatal("fallback message should come from config")
	}
}
