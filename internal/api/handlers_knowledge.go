package api

import (
	"log/slog"
	"net/http"

	"github.com/sagechat/sage/internal/knowledge"
)

// KnowledgeHandler exposes the corpus reload operation.
type KnowledgeHandler struct {
	know   *knowledge.Store
	logger *slog.Logger
}

func NewKnowledgeHandler(know *knowledge.Store, logger *slog.Logger) *KnowledgeHandler {
	return &KnowledgeHandler{know: know, logger: logger}
}

// Reload handles POST /knowledge/reload. On failure the previous corpus
// stays in place and the error is reported.
func (h *KnowledgeHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.know.Reload(); err != nil {
		h.logger.Error("knowledge reload failed", "error", err)
		writeError(w, http.StatusInternalServerError, "reload failed: "+err.Error())
		return
	}
	h.logger.Info("knowledge corpus reloaded", "items", h.know.Len())
	writeJSON(w, http.StatusOK, map[string]any{"items": h.know.Len()})
}
