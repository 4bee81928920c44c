package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/sagechat/sage/internal/chat"
	"github.com/sagechat/sage/internal/embedding"
	"github.com/sagechat/sage/internal/knowledge"
	"github.com/sagechat/sage/internal/store"
)

// NewRouter creates the Chi router with all routes and middleware.
func NewRouter(
	db *store.DB,
	svc *chat.Service,
	chats *store.ChatStore,
	memories *store.MemoryStore,
	creds *store.CredentialStore,
	ollama *embedding.OllamaClient,
	know *knowledge.Store,
	limiter *SlidingLimiter,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (runs on ALL routes including /health)
	r.Use(CORS)
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recovery(logger))

	// Handlers
	healthH := NewHealthHandler(db, ollama, know)
	chatH := NewChatHandler(svc, chats, logger)
	memoryH := NewMemoryHandler(memories)
	knowledgeH := NewKnowledgeHandler(know, logger)

	// Unauthenticated routes
	r.Get("/health", healthH.Health)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(CredentialAuth(creds, logger))
		r.Use(RateLimit(limiter))

		r.Route("/chat", func(r chi.Router) {
			r.Post("/stream", chatH.Stream)
			r.Post("/messages", chatH.SendMessage)
		})

		r.Route("/chats", func(r chi.Router) {
			r.Get("/", chatH.List)
			r.Get("/{id}", chatH.Get)
			r.Delete("/{id}", chatH.Delete)
		})

		r.Get("/memory", memoryH.Get)
		r.Post("/knowledge/reload", knowledgeH.Reload)
	})

	return r
}
