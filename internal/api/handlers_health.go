package api

import (
	"net/http"

	"github.com/sagechat/sage/internal/embedding"
	"github.com/sagechat/sage/internal/knowledge"
	"github.com/sagechat/sage/internal/models"
	"github.com/sagechat/sage/internal/store"
)

type HealthHandler struct {
	db     *store.DB
	ollama *embedding.OllamaClient
	know   *knowledge.Store
}

func NewHealthHandler(db *store.DB, ollama *embedding.OllamaClient, know *knowledge.Store) *HealthHandler {
	return &HealthHandler{db: db, ollama: ollama, know: know}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := models.HealthResponse{
		Status: "ok",
	}

	// Check Ollama
	if err := h.ollama.HealthCheck(); err != nil {
		resp.Ollama = models.ServiceCheck{Status: "error", Message: err.Error()}
		resp.Status = "degraded"
	} else {
		resp.Ollama = models.ServiceCheck{Status: "ok"}
	}

	// Knowledge corpus: empty is degraded retrieval, not a failure.
	if h.know.Len() == 0 {
		resp.Knowledge = models.ServiceCheck{Status: "empty"}
	} else {
		resp.Knowledge = models.ServiceCheck{Status: "ok"}
	}

	// Check DB
	count, err := h.db.ChatCount()
	if err != nil {
		resp.DB = models.ServiceCheck{Status: "error", Message: err.Error()}
		resp.Status = "degraded"
	} else {
		resp.DB = models.ServiceCheck{Status: "ok"}
		resp.ChatCount = count
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
