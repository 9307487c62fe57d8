package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/timtro-cloud/trobot/internal/domain"
	chatuc "github.com/timtro-cloud/trobot/internal/usecase/chat"
	healthuc "github.com/timtro-cloud/trobot/internal/usecase/health"
	indexeruc "github.com/timtro-cloud/trobot/internal/usecase/indexer"
)

type mockChat struct {
	reply       chatuc.Reply
	askErr      error
	hist        *domain.History
	histErr     error
	clearErr    error
	lastSession string
	lastText    string
	lastAuth    bool
}

func (m *mockChat) Ask(_ context.Context, sessionID, text string, authenticated bool) (chatuc.Reply, error) {
	m.lastSession = sessionID
	m.lastText = text
	m.lastAuth = authenticated
	return m.reply, m.askErr
}

func (m *mockChat) History(context.Context, string) (*domain.History, error) {
	return m.hist, m.histErr
}

func (m *mockChat) Clear(context.Context, string) error { return m.clearErr }

type mockIndexer struct {
	stats indexeruc.Stats
	err   error
}

func (m *mockIndexer) Rebuild(context.Context) (indexeruc.Stats, error) { return m.stats, m.err }

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

func newTestRouter(c *mockChat, ix *mockIndexer, h *mockHealth) http.Handler {
	if h == nil {
		h = &mockHealth{report: healthuc.Report{Status: healthuc.Healthy}}
	}
	srv := NewServer(c, ix, h, zap.NewNop())
	r := chi.NewRouter()
	srv.Routes(r)
	return r
}

func TestHandleChat(t *testing.T) {
	c := &mockChat{reply: chatuc.Reply{Answer: "xin chào", Source: "rag"}}
	router := newTestRouter(c, &mockIndexer{}, nil)

	body := `{"session_id":"s1","message":"tìm phòng","authenticated":true}`
	req := httptest.NewRequest("POST", "/chat", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rr.Code, rr.Body.String())
	}
	var reply chatuc.Reply
	if err := json.NewDecoder(rr.Body).Decode(&reply); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reply.Answer != "xin chào" || reply.Source != "rag" {
		t.Fatalf("got %+v", reply)
	}
	if c.lastSession != "s1" || c.lastText != "tìm phòng" || !c.lastAuth {
		t.Fatalf("request fields not forwarded: %+v", c)
	}
}

func TestHandleChat_MissingFields(t *testing.T) {
	router := newTestRouter(&mockChat{}, &mockIndexer{}, nil)

	cases := []string{
		`{"message":"hi"}`,
		`{"session_id":"s1"}`,
		`not json`,
	}
	for _, body := range cases {
		req := httptest.NewRequest("POST", "/chat", strings.NewReader(body))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("body %q: got %d, want 400", body, rr.Code)
		}
	}
}

func TestHandleChat_StoreUnavailable(t *testing.T) {
	c := &mockChat{askErr: domain.ErrStoreUnavailable}
	router := newTestRouter(c, &mockIndexer{}, nil)

	req := httptest.NewRequest("POST", "/chat", strings.NewReader(`{"session_id":"s1","message":"hi"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("got %d, want 503", rr.Code)
	}
}

func TestHandleHistory(t *testing.T) {
	hist := domain.NewHistory(5)
	hist.Append(domain.Exchange{UserText: "hi", BotText: "chào"})
	router := newTestRouter(&mockChat{hist: hist}, &mockIndexer{}, nil)

	req := httptest.NewRequest("GET", "/history/s1", http.NoBody)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d", rr.Code)
	}
	var resp historyResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SessionID != "s1" || len(resp.Entries) != 1 || resp.Entries[0].Bot != "chào" {
		t.Fatalf("got %+v", resp)
	}
}

func TestHandleHistory_EmptySessionIsEmptyList(t *testing.T) {
	router := newTestRouter(&mockChat{hist: domain.NewHistory(5)}, &mockIndexer{}, nil)

	req := httptest.NewRequest("GET", "/history/unknown", http.NoBody)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"entries":[]`) {
		t.Fatalf("entries should be an empty array, got %s", rr.Body.String())
	}
}

func TestHandleClearHistory(t *testing.T) {
	router := newTestRouter(&mockChat{}, &mockIndexer{}, nil)

	req := httptest.NewRequest("DELETE", "/history/s1", http.NoBody)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("got %d, want 204", rr.Code)
	}
}

func TestHandleReindex(t *testing.T) {
	ix := &mockIndexer{stats: indexeruc.Stats{Docs: 12, Vectors: 12, Tokens: 480}}
	router := newTestRouter(&mockChat{}, ix, nil)

	req := httptest.NewRequest("POST", "/reindex", http.NoBody)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d", rr.Code)
	}
	var stats indexeruc.Stats
	if err := json.NewDecoder(rr.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Docs != 12 || stats.Tokens != 480 {
		t.Fatalf("got %+v", stats)
	}
}

func TestHandleReindex_Failure(t *testing.T) {
	ix := &mockIndexer{err: errors.New("gather failed")}
	router := newTestRouter(&mockChat{}, ix, nil)

	req := httptest.NewRequest("POST", "/reindex", http.NoBody)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("got %d, want 500", rr.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	h := &mockHealth{report: healthuc.Report{
		Status: healthuc.Healthy,
		Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK},
	}}
	router := newTestRouter(&mockChat{}, &mockIndexer{}, h)

	req := httptest.NewRequest("GET", "/health", http.NoBody)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d", rr.Code)
	}
}

func TestHandleHealth_Degraded503(t *testing.T) {
	h := &mockHealth{report: healthuc.Report{
		Status: healthuc.Degraded,
		Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckError},
	}}
	router := newTestRouter(&mockChat{}, &mockIndexer{}, h)

	req := httptest.NewRequest("GET", "/health", http.NoBody)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("got %d, want 503", rr.Code)
	}
}
