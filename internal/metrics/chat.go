package metrics

import "github.com/prometheus/client_golang/prometheus"

// Chat pipeline Prometheus metrics.
var (
	ChatRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trobot",
			Name:      "chat_requests_total",
			Help:      "Total number of chat requests",
		},
		[]string{"source", "status"}, // source: quick / cache / intent / rag / fallback
	)

	ChatRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trobot",
			Name:      "chat_request_duration_seconds",
			Help:      "Chat request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source"},
	)

	IntentHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trobot",
			Name:      "intent_hits_total",
			Help:      "Deterministic intent resolutions by intent name",
		},
		[]string{"intent"},
	)

	AnswerCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trobot",
			Name:      "answer_cache_total",
			Help:      "Answer cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trobot",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trobot",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"model"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trobot",
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	GenerationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trobot",
			Name:      "generation_requests_total",
			Help:      "Total number of generation requests",
		},
		[]string{"model", "status"}, // status: ok / quota / error
	)

	GenerationRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trobot",
			Name:      "generation_request_duration_seconds",
			Help:      "Generation request duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"model"},
	)

	BreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trobot",
			Name:      "breaker_transitions_total",
			Help:      "Generation circuit breaker transitions",
		},
		[]string{"state"}, // "open" / "closed"
	)

	BreakerRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trobot",
			Name:      "breaker_rejections_total",
			Help:      "Generation calls short-circuited while the breaker was open",
		},
	)
)

var chatMetricsRegistered bool

// RegisterChatMetrics registers Prometheus chat pipeline metrics. Must be called once from main.
func RegisterChatMetrics() {
	if chatMetricsRegistered {
		return
	}
	prometheus.MustRegister(ChatRequestsTotal)
	prometheus.MustRegister(ChatRequestDuration)
	prometheus.MustRegister(IntentHitsTotal)
	prometheus.MustRegister(AnswerCacheTotal)
	prometheus.MustRegister(EmbeddingRequestsTotal)
	prometheus.MustRegister(EmbeddingRequestDuration)
	prometheus.MustRegister(EmbeddingCacheTotal)
	prometheus.MustRegister(GenerationRequestsTotal)
	prometheus.MustRegister(GenerationRequestDuration)
	prometheus.MustRegister(BreakerTransitionsTotal)
	prometheus.MustRegister(BreakerRejectionsTotal)
	chatMetricsRegistered = true
}
