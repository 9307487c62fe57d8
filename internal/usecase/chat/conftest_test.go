package chat

import (
	"context"

	"github.com/timtro-cloud/trobot/internal/domain"
	"github.com/timtro-cloud/trobot/internal/usecase/intent"
	"github.com/timtro-cloud/trobot/internal/usecase/retrieval"
)

type mockIntents struct {
	result  intent.Result
	err     error
	calls   int
	lastCtx intent.Context
}

func (m *mockIntents) Handle(_ context.Context, _ string, sessCtx intent.Context, _ bool) (intent.Result, error) {
	m.calls++
	m.lastCtx = sessCtx
	return m.result, m.err
}

type mockRetriever struct {
	hits      []domain.Hit
	err       error
	lastQuery retrieval.Query
	calls     int
}

func (m *mockRetriever) Search(_ context.Context, q retrieval.Query) ([]domain.Hit, error) {
	m.calls++
	m.lastQuery = q
	return m.hits, m.err
}

type mockGenerator struct {
	answer     string
	err        error
	fallback   string
	calls      int
	lastSystem string
	lastUser   string
}

func (m *mockGenerator) Generate(_ context.Context, system, user string) (string, error) {
	m.calls++
	m.lastSystem = system
	m.lastUser = user
	return m.answer, m.err
}

func (m *mockGenerator) Fallback() string { return m.fallback }

type mockSessions struct {
	histories map[string]*domain.History
	appendErr error
	histErr   error
	appended  []domain.Exchange
}

func newMockSessions() *mockSessions {
	return &mockSessions{histories: make(map[string]*domain.History)}
}

func (m *mockSessions) Append(_ context.Context, sessionID string, ex domain.Exchange) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.appended = append(m.appended, ex)
	h, ok := m.histories[sessionID]
	if !ok {
		h = domain.NewHistory(5)
		m.histories[sessionID] = h
	}
	h.Append(ex)
	return nil
}

func (m *mockSessions) History(_ context.Context, sessionID string) (*domain.History, error) {
	if m.histErr != nil {
		return nil, m.histErr
	}
	if h, ok := m.histories[sessionID]; ok {
		return h, nil
	}
	return domain.NewHistory(5), nil
}

func (m *mockSessions) Clear(_ context.Context, sessionID string) error {
	delete(m.histories, sessionID)
	return nil
}

type mockAnswers struct {
	entries map[string]string
	gets    int
	puts    int
}

func newMockAnswers() *mockAnswers {
	return &mockAnswers{entries: make(map[string]string)}
}

func (m *mockAnswers) Get(_ context.Context, query string) (string, bool) {
	m.gets++
	answer, ok := m.entries[query]
	return answer, ok
}

func (m *mockAnswers) Put(_ context.Context, query, answer string) {
	m.puts++
	m.entries[query] = answer
}
