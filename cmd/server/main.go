package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sagechat/sage/internal/api"
	"github.com/sagechat/sage/internal/chat"
	"github.com/sagechat/sage/internal/composer"
	"github.com/sagechat/sage/internal/config"
	"github.com/sagechat/sage/internal/embedding"
	"github.com/sagechat/sage/internal/knowledge"
	"github.com/sagechat/sage/internal/llm"
	"github.com/sagechat/sage/internal/memory"
	"github.com/sagechat/sage/internal/persona"
	"github.com/sagechat/sage/internal/store"
)

func main() {
	// Logger
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// SQLite
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Stores
	chatStore := store.NewChatStore(db)
	memoryStore := store.NewMemoryStore(db)
	credStore := store.NewCredentialStore(db)
	embCacheStore := store.NewEmbeddingCacheStore(db)

	// Persona overrides
	if cfg.PersonasPath != "" {
		if err := persona.LoadOverrides(cfg.PersonasPath); err != nil {
			logger.Error("failed to load persona overrides", "path", cfg.PersonasPath, "error", err)
			os.Exit(1)
		}
	}

	// Knowledge corpus
	know := knowledge.Empty()
	if cfg.CorpusPath != "" {
		know, err = knowledge.Load(cfg.CorpusPath)
		if err != nil {
			logger.Error("failed to load knowledge corpus", "path", cfg.CorpusPath, "error", err)
			os.Exit(1)
		}
		logger.Info("knowledge corpus loaded", "path", cfg.CorpusPath, "items", know.Len())
	} else {
		logger.Warn("no knowledge corpus configured, retrieval disabled")
	}

	// External services
	ollamaClient := embedding.NewOllamaClient(cfg.OllamaBaseURL, cfg.EmbeddingModel)
	embedder := embedding.NewCachedEmbedder(ollamaClient, embCacheStore, cfg.EmbeddingModel, cfg.EmbeddingDim)
	llmClient := llm.New(cfg.AnthropicAPIKey, cfg.AnthropicModel, int64(cfg.MaxTokens), 120*time.Second)

	if err := ollamaClient.HealthCheck(); err != nil {
		logger.Warn("ollama not available at startup, will retry on first use", "error", err)
	}

	// Memory and composition
	freshness := time.Duration(cfg.SummaryFreshDays) * 24 * time.Hour
	memSvc := memory.NewService(memoryStore, chatStore, cfg.HistoryWindow, freshness, logger)
	maintainer := memory.NewMaintainer(memoryStore, chatStore, llmClient, cfg.SummaryInterval, cfg.ExtractInterval, cfg.SessionWindow, logger)
	comp := composer.New(memSvc, know, embedder, cfg.KnowledgeTopK, logger)

	// Chat service
	svc := chat.NewService(chatStore, comp, llmClient, maintainer, cfg.MaxMessageLen, logger)

	// Router
	limiter := api.NewSlidingLimiter(cfg.RateLimitPerMin, time.Minute)
	router := api.NewRouter(db, svc, chatStore, memoryStore, credStore, ollamaClient, know, limiter, logger)

	// Server. WriteTimeout covers the whole response, so it has to outlast
	// the longest streamed completion.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("sage server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
