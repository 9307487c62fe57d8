package chat

import (
	"context"

	"github.com/timtro-cloud/trobot/internal/domain"
	"github.com/timtro-cloud/trobot/internal/usecase/intent"
	"github.com/timtro-cloud/trobot/internal/usecase/retrieval"
)

// IntentEngine resolves structured questions deterministically.
type IntentEngine interface {
	Handle(ctx context.Context, text string, sessCtx intent.Context, authenticated bool) (intent.Result, error)
}

// Retriever ranks corpus documents for grounding the generated answer.
type Retriever interface {
	Search(ctx context.Context, q retrieval.Query) ([]domain.Hit, error)
}

// Generator produces free-form answers, with a canned fallback for outages.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Fallback() string
}

// SessionStore keeps the bounded per-session conversation log.
type SessionStore interface {
	Append(ctx context.Context, sessionID string, ex domain.Exchange) error
	History(ctx context.Context, sessionID string) (*domain.History, error)
	Clear(ctx context.Context, sessionID string) error
}

// AnswerCache memoizes generated answers keyed by normalized query.
type AnswerCache interface {
	Get(ctx context.Context, query string) (string, bool)
	Put(ctx context.Context, query, answer string)
}
