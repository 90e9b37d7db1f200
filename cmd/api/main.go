// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/squadnav-ai/conversational-backend/internal/cache"
	"github.com/squadnav-ai/conversational-backend/internal/config"
	"github.com/squadnav-ai/conversational-backend/internal/handler"
	"github.com/squadnav-ai/conversational-backend/internal/health"
	"github.com/squadnav-ai/conversational-backend/internal/indexsync"
	"github.com/squadnav-ai/conversational-backend/internal/kv"
	"github.com/squadnav-ai/conversational-backend/internal/llm"
	"github.com/squadnav-ai/conversational-backend/internal/middleware"
	natsclient "github.com/squadnav-ai/conversational-backend/internal/nats"
	"github.com/squadnav-ai/conversational-backend/internal/primary"
	"github.com/squadnav-ai/conversational-backend/internal/ratelimit"
	"github.com/squadnav-ai/conversational-backend/internal/search"
	"github.com/squadnav-ai/conversational-backend/internal/service"
	"github.com/squadnav-ai/conversational-backend/pkg/logger"
	"github.com/squadnav-ai/conversational-backend/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize tracing if enabled
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "conversational-backend", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	// Key-value store. Construction never fails; a down store degrades
	// reads and writes instead of blocking startup.
	kvClient := kv.New(ctx, kv.Config{
		Addr:        cfg.RedisAddr(),
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		PoolSize:    cfg.RedisPoolSize,
		DialTimeout: cfg.RedisDialTimeout,
	}, log)
	defer kvClient.Close()

	// Search index. Bootstrap failures degrade search rather than
	// blocking startup; a later reindex reconciles.
	searchClient, err := search.New(search.Config{
		URL:         cfg.ElasticsearchURL(),
		IndexPrefix: cfg.ESIndexPrefix,
	}, log)
	if err != nil {
		log.Error("failed to create search client", zap.Error(err))
		os.Exit(1)
	}
	if err := searchClient.EnsureIndices(ctx); err != nil {
		log.Warn("failed to bootstrap search indices", zap.Error(err))
	}

	// Primary store is the one hard dependency.
	primaryStore, err := primary.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to primary store", zap.Error(err))
		os.Exit(1)
	}
	defer primaryStore.Close()
	if err := primaryStore.EnsureSchema(ctx); err != nil {
		log.Error("failed to ensure schema", zap.Error(err))
		os.Exit(1)
	}

	// Connect to NATS
	natsClient, err := natsclient.Connect(ctx, natsclient.Config{
		URL:      cfg.NATSURL,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}, log)
	if err != nil {
		log.Error("failed to connect to NATS", zap.Error(err))
		os.Exit(1)
	}
	defer natsClient.Close()

	// Ensure the index sync stream exists
	streamManager := natsclient.NewStreamManager(natsClient)
	if err := streamManager.EnsureStream(ctx); err != nil {
		log.Error("failed to ensure stream", zap.Error(err))
		os.Exit(1)
	}

	// Index sync worker drains the queue into the search index.
	if cfg.IndexSyncEnabled {
		consumer, err := streamManager.EnsureConsumer(ctx)
		if err != nil {
			log.Error("failed to ensure consumer", zap.Error(err))
			os.Exit(1)
		}
		worker := indexsync.NewWorker(consumer, searchClient, log)
		go worker.Run(ctx)

		monitor := indexsync.NewMonitor(streamManager, 30*time.Second, log)
		go monitor.Run(ctx)
	}

	// Caching and rate limiting over the key-value store
	responseCache := cache.New(kvClient, cache.Config{
		ConversationTTL: cfg.CacheTTLConversations,
		LLMTTL:          cfg.CacheTTLLLM,
		MemoTTL:         cfg.CacheTTLDefault,
	}, log)
	limiter := ratelimit.New(kvClient, cfg.RateLimitRPM, cfg.RateLimitBurst, log)

	// LLM client with response memoization
	apiKey := cfg.AnthropicAPIKey
	if llm.Provider(cfg.DefaultLLM) == llm.ProviderOpenAI {
		apiKey = cfg.OpenAIAPIKey
	}
	baseLLM, err := llm.NewClient(llm.Provider(cfg.DefaultLLM), apiKey)
	if err != nil {
		log.Error("failed to create LLM client", zap.Error(err))
		os.Exit(1)
	}
	llmClient := llm.NewCachedClient(baseLLM, responseCache)

	// Initialize services
	chatSvc := service.NewChatService(primaryStore, responseCache, llmClient, streamManager, cfg.LLMModel, log)
	conversationSvc := service.NewConversationService(primaryStore, responseCache, streamManager, log)
	reindexSvc := service.NewReindexService(primaryStore, searchClient, 0, log)

	// Initialize handlers
	checker := health.New(kvClient, searchClient, natsClient, primaryStore)
	healthHandler := handler.NewHealthHandler(primaryStore, checker)
	chatHandler := handler.NewChatHandler(chatSvc, log)
	conversationHandler := handler.NewConversationHandler(conversationSvc, log)
	searchHandler := handler.NewSearchHandler(searchClient, responseCache, log)
	rateLimitHandler := handler.NewRateLimitHandler(limiter, "api")
	reindexHandler := handler.NewReindexHandler(reindexSvc, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())
	r.Use(middleware.Throttle(cfg.RateLimitRPM*4, time.Minute))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Get("/health/infra", healthHandler.Infra)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(limiter, "api"))

		r.Route("/use-cases/{useCaseID}", func(r chi.Router) {
			r.Post("/chat", chatHandler.Chat)
			r.Get("/conversations", conversationHandler.List)
			r.Delete("/conversations/{id}", conversationHandler.Delete)
		})

		r.Get("/conversations/{id}/messages", conversationHandler.Messages)

		r.Route("/search", func(r chi.Router) {
			r.Get("/messages", searchHandler.Messages)
			r.Get("/conversations", searchHandler.Conversations)
			r.Get("/suggest", searchHandler.Suggest)
		})

		r.Get("/analytics/messages", searchHandler.Analytics)
		r.Get("/rate-limit", rateLimitHandler.Status)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireScope("admin"))
			r.Post("/reindex", reindexHandler.Reindex)
		})
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Stop background workers, then drain in-flight requests.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
