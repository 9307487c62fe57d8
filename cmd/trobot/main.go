package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/timtro-cloud/trobot/internal/config"
	"github.com/timtro-cloud/trobot/internal/db"
	dbRedis "github.com/timtro-cloud/trobot/internal/db/redis"
	"github.com/timtro-cloud/trobot/internal/domain"
	"github.com/timtro-cloud/trobot/internal/domain/criteria"
	logpkg "github.com/timtro-cloud/trobot/internal/logger"
	"github.com/timtro-cloud/trobot/internal/metrics"
	breakerrepo "github.com/timtro-cloud/trobot/internal/repository/breaker"
	corpusrepo "github.com/timtro-cloud/trobot/internal/repository/corpus"
	"github.com/timtro-cloud/trobot/internal/repository/embcache"
	"github.com/timtro-cloud/trobot/internal/repository/gencache"
	listingrepo "github.com/timtro-cloud/trobot/internal/repository/listing"
	sessionrepo "github.com/timtro-cloud/trobot/internal/repository/session"
	chiTransport "github.com/timtro-cloud/trobot/internal/transport/chi"
	openaiTransport "github.com/timtro-cloud/trobot/internal/transport/openai"
	"github.com/timtro-cloud/trobot/internal/usecase/chat"
	generationuc "github.com/timtro-cloud/trobot/internal/usecase/generation"
	healthuc "github.com/timtro-cloud/trobot/internal/usecase/health"
	indexeruc "github.com/timtro-cloud/trobot/internal/usecase/indexer"
	intentuc "github.com/timtro-cloud/trobot/internal/usecase/intent"
	retrievaluc "github.com/timtro-cloud/trobot/internal/usecase/retrieval"
	"github.com/timtro-cloud/trobot/internal/version"
)

const sessionTTL = 24 * time.Hour

// defaultPackages is the paid-package catalog shown by the pricing intent
// and indexed into the corpus.
var defaultPackages = []domain.Package{
	{Plan: "vip1", Name: "VIP 1", PriceVND: 50000, PostsPerDay: 5, ExpireDays: 30, TitleColor: "red", Active: true},
	{Plan: "vip2", Name: "VIP 2", PriceVND: 120000, PostsPerDay: 10, ExpireDays: 30, TitleColor: "orange", Active: true},
	{Plan: "vip3", Name: "VIP 3", PriceVND: 250000, PostsPerDay: 20, ExpireDays: 30, TitleColor: "blue", Active: true},
}

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting trobot API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register chat metrics explicitly (no init())
	metrics.RegisterChatMetrics()

	prefix := cfg.Database.KeyPrefix

	// Embedder chain: OpenAI-compatible provider wrapped in a Redis cache.
	// Without an API key the engine runs lexical-only.
	embedder, embedChecker := buildEmbedder(cfg.Embedding, store, prefix, logger)
	if embedder == nil {
		logger.Warn("No embedding API key configured, dense retrieval disabled")
	}

	// Repositories
	listings := listingrepo.New(store, prefix)
	sessions := sessionrepo.New(store, prefix, cfg.Chat.HistoryLimit, sessionTTL)
	answers := gencache.New(store, prefix,
		time.Duration(cfg.Chat.AnswerCacheTTL)*time.Second, metrics.AnswerCacheTotal, logger)
	breaker := breakerrepo.New(store, prefix)
	index := corpusrepo.NewRepo(cfg.Corpus.IndexPath)

	// Pass nil interface (not typed nil pointer!) if embedding is not configured.
	var queryEmbedder retrievaluc.Embedder
	if embedder != nil {
		queryEmbedder = embedder
	}

	// Use case services
	retrievalSvc := retrievaluc.New(index, queryEmbedder, cfg.Retrieval)

	priceTol := criteria.Tolerance{
		ExactDelta: cfg.Chat.PriceExactDelta,
		ApproxPct:  cfg.Chat.PriceApproxPct,
		ApproxMin:  cfg.Chat.PriceApproxMin,
	}
	intentSvc := intentuc.New(listings, defaultPackages, priceTol,
		cfg.Chat.ContactPhoneMask, metrics.IntentHitsTotal)

	generator := openaiTransport.NewGenerator(openaiTransport.GeneratorConfig{
		APIKey:      cfg.Generation.APIKey,
		BaseURL:     cfg.Generation.BaseURL,
		Model:       cfg.Generation.Model,
		MaxTokens:   cfg.Generation.MaxTokens,
		Temperature: cfg.Generation.Temperature,
	})
	generationSvc := generationuc.New(generator, breaker, cfg.Generation)

	chatSvc := chat.New(intentSvc, retrievalSvc, generationSvc, sessions, answers,
		cfg.Chat, cfg.Retrieval.TopK)

	var batchEmbedder domain.BatchEmbedder
	if embedder != nil {
		batchEmbedder = embedder
	}
	indexerSvc := indexeruc.New(listings, defaultPackages, batchEmbedder, index, cfg.Corpus.ArticleDir)

	// Build the index on a fresh deploy so chat serves sourced answers
	// without waiting for a manual reindex. A failure is not fatal: the
	// engine degrades to generation-only until POST /reindex succeeds.
	if err := indexerSvc.EnsureReady(logpkg.ContextWithLogger(ctx, logger), index); err != nil {
		logger.Warn("Initial index build failed", zap.Error(err))
	}

	healthSvc := healthuc.New(store, embedChecker, index)

	// HTTP server
	server := chiTransport.NewServer(chatSvc, indexerSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the embedding chain: OpenAI provider -> Redis cache.
// Returns a nil embedder when no API key is configured.
func buildEmbedder(
	cfg config.EmbeddingConfig,
	store db.Store,
	prefix string,
	logger *zap.Logger,
) (*embcache.CachedEmbedder, healthuc.EmbeddingChecker) {
	if cfg.APIKey == "" {
		return nil, nil
	}

	base := openaiTransport.NewEmbedder(openaiTransport.EmbedderConfig{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
	})

	cached := embcache.New(base, store, prefix,
		time.Duration(cfg.CacheTTL)*time.Second, metrics.EmbeddingCacheTotal, logger)
	return cached, base
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
