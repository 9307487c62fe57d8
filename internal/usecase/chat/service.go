// Package chat orchestrates one conversation turn: quick responses, the
// answer cache, the deterministic intent engine, and finally
// retrieval-augmented generation.
package chat

import (
	"context"
	"strings"
	"time"

	"github.com/timtro-cloud/trobot/internal/config"
	"github.com/timtro-cloud/trobot/internal/domain"
	"github.com/timtro-cloud/trobot/internal/domain/criteria"
	"github.com/timtro-cloud/trobot/internal/logger"
	"github.com/timtro-cloud/trobot/internal/metrics"
	"github.com/timtro-cloud/trobot/internal/usecase/intent"
	"github.com/timtro-cloud/trobot/internal/usecase/retrieval"
	"github.com/timtro-cloud/trobot/internal/vntext"
	"go.uber.org/zap"
)

// Reply is one answered turn.
type Reply struct {
	Answer string `json:"answer"`
	Source string `json:"source"` // quick | cache | intent | rag | fallback
	Intent string `json:"intent,omitempty"`
}

// Service is the conversation orchestrator.
type Service struct {
	intents  IntentEngine
	search   Retriever
	gen      Generator
	sessions SessionStore
	answers  AnswerCache
	cfg      config.ChatConfig
	topK     int
	now      func() time.Time
}

func New(
	intents IntentEngine,
	search Retriever,
	gen Generator,
	sessions SessionStore,
	answers AnswerCache,
	cfg config.ChatConfig,
	topK int,
) *Service {
	return &Service{
		intents:  intents,
		search:   search,
		gen:      gen,
		sessions: sessions,
		answers:  answers,
		cfg:      cfg,
		topK:     topK,
		now:      time.Now,
	}
}

// WithClock replaces the clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Ask answers one user message within a session.
func (s *Service) Ask(ctx context.Context, sessionID, text string, authenticated bool) (Reply, error) {
	log := logger.FromContext(ctx)
	start := s.now()

	finish := func(r Reply, status string) (Reply, error) {
		metrics.ChatRequestsTotal.WithLabelValues(r.Source, status).Inc()
		metrics.ChatRequestDuration.WithLabelValues(r.Source).Observe(s.now().Sub(start).Seconds())
		if err := s.sessions.Append(ctx, sessionID, domain.Exchange{
			UserText:  text,
			BotText:   r.Answer,
			Timestamp: s.now(),
		}); err != nil {
			log.Warn("failed to append session history", zap.Error(err))
		}
		return r, nil
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{
			Answer: "Bạn muốn hỏi gì về phòng trọ? Ví dụ: \"tìm phòng dưới 3 triệu ở Bình Dương\".",
			Source: "quick",
		}, nil
	}
	folded := vntext.Fold(text)

	if q := quickResponse(folded); q != "" {
		return finish(Reply{Answer: q, Source: "quick"}, "ok")
	}

	hist, err := s.sessions.History(ctx, sessionID)
	if err != nil {
		log.Warn("failed to load session history", zap.Error(err))
		hist = nil
	}
	sessCtx := intent.ExtractContext(hist)

	// A non-empty transcript feeds the generation prompt and its province
	// carries into retrieval, so any answer produced mid-session is personal
	// and must not enter or leave the shared cache.
	cacheable := s.cacheable(folded) && (hist == nil || hist.Len() == 0)
	if cacheable {
		if answer, ok := s.answers.Get(ctx, text); ok {
			return finish(Reply{Answer: answer, Source: "cache"}, "ok")
		}
	}

	crit := criteria.Parse(text)

	// Deictic follow-ups ("tin này", "cái đó") about a known listing go
	// straight to generation, which sees the transcript; the intent engine
	// would re-run the last search instead.
	followUp := sessCtx.LastPostID != 0 && matchesAny(folded, deicticCues) && !matchesAny(folded, contactCues)

	if !followUp {
		res, err := s.intents.Handle(ctx, text, sessCtx, authenticated)
		if err != nil {
			log.Warn("intent engine failed", zap.Error(err))
			return finish(Reply{
				Answer: "Hệ thống dữ liệu tin đăng đang bận, bạn thử lại sau ít phút nhé.",
				Source: "fallback",
			}, "degraded")
		}
		if res.Handled {
			return finish(Reply{Answer: res.Answer, Source: "intent", Intent: res.Intent}, "ok")
		}
	}

	hits := s.retrieve(ctx, text, folded, crit, sessCtx)
	system, user := buildPrompts(hits, hist, text, crit.Describe())

	answer, err := s.gen.Generate(ctx, system, user)
	if err != nil {
		log.Warn("generation unavailable, serving fallback", zap.Error(err))
		return finish(Reply{Answer: s.gen.Fallback(), Source: "fallback"}, "degraded")
	}

	if cacheable {
		s.answers.Put(ctx, text, answer)
	}
	return finish(Reply{Answer: answer, Source: "rag"}, "ok")
}

// History returns the session transcript, oldest first.
func (s *Service) History(ctx context.Context, sessionID string) (*domain.History, error) {
	return s.sessions.History(ctx, sessionID)
}

// Clear wipes the session transcript.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	return s.sessions.Clear(ctx, sessionID)
}

func (s *Service) retrieve(ctx context.Context, text, folded string, crit criteria.Criteria, sessCtx intent.Context) []domain.Hit {
	province := crit.Province
	if province == "" {
		province = sessCtx.Province
	}

	hits, err := s.search.Search(ctx, retrieval.Query{
		Text:     text,
		Intent:   classifyIntent(folded, crit),
		Province: province,
		Price:    crit.Price,
		Area:     crit.Area,
		TopK:     s.topK,
	})
	if err != nil {
		logger.FromContext(ctx).Warn("retrieval failed, generating without sources", zap.Error(err))
		return nil
	}
	return hits
}

var faqCues = []string{
	"lam sao", "lam the nao", "cach ", "huong dan",
	"quy dinh", "chinh sach", "dang tin", "tai sao", "co duoc",
}

var pricingCues = []string{"bang gia", "goi vip", "phi dang tin", "gia goi"}

func classifyIntent(folded string, crit criteria.Criteria) retrieval.Intent {
	for _, cue := range pricingCues {
		if strings.Contains(folded, cue) {
			return retrieval.IntentPricing
		}
	}
	for _, cue := range faqCues {
		if strings.Contains(folded, cue) {
			return retrieval.IntentFAQ
		}
	}
	if crit.HasFilter() {
		return retrieval.IntentListing
	}
	return retrieval.IntentGeneral
}

var contactCues = []string{"lien he", "so dien thoai", "sdt", "lien lac"}

var deicticCues = []string{"tin nay", "tin do", "cai nay", "cai do", "tin tren", "o tren", "vua roi"}

func matchesAny(folded string, cues []string) bool {
	for _, cue := range cues {
		if strings.Contains(folded, cue) {
			return true
		}
	}
	return false
}

// cacheable excludes queries whose answer depends on who asks: contact
// requests and follow-ups with deictic references. Ask additionally refuses
// the cache for any turn with conversation history behind it.
func (s *Service) cacheable(folded string) bool {
	return !matchesAny(folded, contactCues) && !matchesAny(folded, deicticCues)
}

var greetings = map[string]string{
	"chao":     "Chào bạn! Mình là trợ lý tìm phòng. Bạn đang tìm phòng ở khu vực nào?",
	"xin chao": "Chào bạn! Mình là trợ lý tìm phòng. Bạn đang tìm phòng ở khu vực nào?",
	"chao ban": "Chào bạn! Mình là trợ lý tìm phòng. Bạn đang tìm phòng ở khu vực nào?",
	"hello":    "Chào bạn! Mình là trợ lý tìm phòng. Bạn đang tìm phòng ở khu vực nào?",
	"hi":       "Chào bạn! Mình là trợ lý tìm phòng. Bạn đang tìm phòng ở khu vực nào?",
	"alo":      "Chào bạn! Mình là trợ lý tìm phòng. Bạn đang tìm phòng ở khu vực nào?",
}

// quickResponse short-circuits greetings and pleasantries. Only exact short
// messages match so "chào" inside a real question never triggers it.
func quickResponse(folded string) string {
	if answer, ok := greetings[folded]; ok {
		return answer
	}
	switch folded {
	case "cam on", "cam on ban", "cam on nhe", "thanks", "thank you":
		return "Không có gì! Cần tìm phòng cứ nhắn mình nhé."
	case "tam biet", "bye":
		return "Tạm biệt bạn, chúc bạn sớm tìm được phòng ưng ý!"
	case "ban la ai", "ban lam duoc gi", "giup duoc gi":
		return "Mình giúp bạn tìm phòng trọ, căn hộ theo giá, khu vực, diện tích, và trả lời các câu hỏi về đăng tin. Bạn cứ hỏi tự nhiên nhé!"
	}
	return ""
}
