package api

import (
	"net/http"

	"github.com/sagechat/sage/internal/store"
)

// MemoryHandler exposes the caller's memory record.
type MemoryHandler struct {
	memories *store.MemoryStore
}

func NewMemoryHandler(memories *store.MemoryStore) *MemoryHandler {
	return &MemoryHandler{memories: memories}
}

// Get handles GET /memory.
func (h *MemoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.memories.Get(UserID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
