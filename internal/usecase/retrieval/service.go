// Package retrieval ranks corpus documents against a query by fusing
// lexical tf-idf scores with dense cosine similarity.
package retrieval

import (
	"context"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/timtro-cloud/trobot/internal/config"
	"github.com/timtro-cloud/trobot/internal/domain"
	"github.com/timtro-cloud/trobot/internal/domain/criteria"
	"github.com/timtro-cloud/trobot/internal/logger"
	"github.com/timtro-cloud/trobot/internal/repository/corpus"
	"github.com/timtro-cloud/trobot/internal/vntext"
)

// Intent steers kind boosts during ranking.
type Intent int

const (
	IntentGeneral Intent = iota
	IntentFAQ
	IntentListing
	IntentPricing
)

// articles still get a mild lift on general queries so help content
// surfaces without an explicit FAQ phrasing
const articleGeneralBoost = 1.8

const snippetRunes = 200

// Query is one ranked retrieval request.
type Query struct {
	Text     string
	Intent   Intent
	Province string
	Price    *criteria.Bound
	Area     *criteria.Bound
	TopK     int
}

// Service ranks documents for the chat pipeline.
type Service struct {
	index IndexProvider
	embed Embedder
	cfg   config.RetrievalConfig
	now   func() time.Time
}

// New creates a retrieval service.
func New(index IndexProvider, embed Embedder, cfg config.RetrievalConfig) *Service {
	return &Service{index: index, embed: embed, cfg: cfg, now: time.Now}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Search returns the best matching documents, highest score first. Dense
// scoring degrades gracefully: if the embedder fails, lexical results are
// served alone.
func (s *Service) Search(ctx context.Context, q Query) ([]domain.Hit, error) {
	ix, err := s.index.Current()
	if err != nil {
		return nil, err
	}

	topK := q.TopK
	if topK <= 0 {
		topK = s.cfg.TopK
	}

	lex := s.lexicalScores(ix, q)

	var queryVec []float32
	if s.embed != nil {
		res, err := s.embed.Embed(ctx, q.Text)
		if err != nil {
			logger.FromContext(ctx).Warn("Dense scoring unavailable, serving lexical only", zap.Error(err))
		} else {
			queryVec = res.Embedding
		}
	}

	type scored struct {
		idx   int
		score float64
	}
	var results []scored
	for i := range ix.Docs {
		lexScore := lex[i]
		var denseScore float64
		if queryVec != nil && len(ix.Docs[i].Vector) > 0 {
			denseScore = cosine(queryVec, ix.Docs[i].Vector)
			if denseScore < 0 {
				denseScore = 0
			}
		}

		score := math.Max(lexScore, denseScore)
		if lexScore > 0 && denseScore > 0 {
			// agreement between the two signals is strong evidence
			score *= s.cfg.HybridBonus
		}
		if score <= 0 {
			continue
		}
		results = append(results, scored{idx: i, score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return ix.Docs[results[i].idx].ID < ix.Docs[results[j].idx].ID
	})
	if len(results) > topK {
		results = results[:topK]
	}

	hits := make([]domain.Hit, len(results))
	for i, r := range results {
		doc := ix.Docs[r.idx]
		hits[i] = domain.Hit{
			DocID:   doc.ID,
			Kind:    doc.Kind,
			Title:   doc.Title,
			URL:     doc.URL,
			Snippet: snippet(doc.Text),
			Score:   r.score,
			Meta:    doc.Meta,
		}
	}
	return hits, nil
}

// lexicalScores computes boosted tf-idf scores normalized to [0, 1].
func (s *Service) lexicalScores(ix *corpus.Index, q Query) []float64 {
	tokens := expandQuery(vntext.Tokenize(q.Text))
	now := s.now()

	scores := make([]float64, len(ix.Docs))
	var maxScore float64

	for i := range ix.Docs {
		doc := &ix.Docs[i]
		if doc.Len == 0 {
			continue
		}

		var base float64
		for _, tok := range tokens {
			tf := doc.TF[tok.term]
			if tf == 0 {
				continue
			}
			base += tok.weight * (float64(tf) / float64(doc.Len)) * ix.IDF(tok.term)
		}
		if base == 0 {
			continue
		}

		score := base
		score *= s.intentBoost(q.Intent, doc.Kind)
		score *= s.freshnessBoost(doc, now)
		score *= s.metadataBoost(doc, q)
		score *= titleBoost(doc.Title, q.Text)

		scores[i] = score
		if score > maxScore {
			maxScore = score
		}
	}

	if maxScore > 0 {
		for i := range scores {
			scores[i] /= maxScore
		}
	}
	return scores
}

func (s *Service) intentBoost(intent Intent, kind domain.Kind) float64 {
	switch intent {
	case IntentFAQ:
		if kind == domain.KindArticle {
			return s.cfg.ArticleBoost
		}
	case IntentPricing:
		if kind == domain.KindPackage {
			return s.cfg.PackageBoost
		}
	case IntentListing:
		if kind == domain.KindListing {
			return s.cfg.ListingBoost
		}
	case IntentGeneral:
		if kind == domain.KindArticle {
			return articleGeneralBoost
		}
	}
	return 1
}

func (s *Service) freshnessBoost(doc *corpus.Doc, now time.Time) float64 {
	if doc.Kind != domain.KindListing || doc.CreatedAt.IsZero() {
		return 1
	}
	age := now.Sub(doc.CreatedAt)
	switch {
	case age <= 7*24*time.Hour:
		return s.cfg.FreshWeekBoost
	case age <= 30*24*time.Hour:
		return s.cfg.FreshMonthBoost
	default:
		return 1
	}
}

func (s *Service) metadataBoost(doc *corpus.Doc, q Query) float64 {
	boost := 1.0
	if q.Price != nil && doc.Meta.PriceMil > 0 &&
		q.Price.Matches(doc.Meta.PriceMil, criteria.DefaultPriceTolerance) {
		boost *= s.cfg.MetaBoost
	}
	if q.Area != nil && doc.Meta.AreaM2 > 0 &&
		q.Area.Matches(doc.Meta.AreaM2, criteria.DefaultAreaTolerance) {
		boost *= s.cfg.MetaBoost
	}
	if q.Province != "" && doc.Meta.Province == q.Province {
		boost *= s.cfg.ProvinceBoost
	}
	return boost
}

// titleBoost rewards word overlap between the query and the title:
// 1 + 0.15 per shared word, capped at 2.
func titleBoost(title, query string) float64 {
	titleWords := make(map[string]bool)
	for _, w := range vntext.Tokenize(title) {
		titleWords[w] = true
	}

	boost := 1.0
	for _, w := range vntext.Tokenize(query) {
		if titleWords[w] {
			boost += 0.15
		}
	}
	if boost > 2 {
		boost = 2
	}
	return boost
}

func cosine(a []float32, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= snippetRunes {
		return text
	}
	return string(runes[:snippetRunes]) + "…"
}
