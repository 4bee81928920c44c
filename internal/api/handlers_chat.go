package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sagechat/sage/internal/chat"
	"github.com/sagechat/sage/internal/models"
	"github.com/sagechat/sage/internal/store"
)

// ChatHandler serves the streaming turn endpoint and chat CRUD.
type ChatHandler struct {
	svc    *chat.Service
	chats  *store.ChatStore
	logger *slog.Logger
}

func NewChatHandler(svc *chat.Service, chats *store.ChatStore, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{svc: svc, chats: chats, logger: logger}
}

// turnStatus maps turn failures to HTTP statuses.
func turnStatus(err error) (int, string) {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, chat.ErrMessageTooLong),
		errors.Is(err, chat.ErrUnknownPersona):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, chat.ErrChatNotFound):
		return http.StatusNotFound, "chat not found"
	default:
		return http.StatusInternalServerError, "failed to generate response"
	}
}

// Stream handles POST /chat/stream. It emits SSE events of the form
// `data: {"content": chunk}` followed by a terminal `data: {"done": true,
// "chatId": id}`. Validation failures are reported as JSON before the
// stream starts; once streaming has begun, a failure simply ends the stream.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	var req models.StreamRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	started := false
	startStream := func() {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		started = true
	}

	result, err := h.svc.StreamTurn(r.Context(), UserID(r), req, func(chunk string) {
		if !started {
			startStream()
		}
		writeEvent(w, models.StreamChunk{Content: chunk})
		flusher.Flush()
	})
	if err != nil {
		if !started {
			status, msg := turnStatus(err)
			writeError(w, status, msg)
			return
		}
		// Headers are gone; log and close the stream without a done event.
		h.logger.Warn("stream aborted", "error", err)
		return
	}

	if !started {
		// Empty reply: still open the stream so the terminal event arrives.
		startStream()
	}
	writeEvent(w, models.StreamChunk{Done: true, ChatID: result.ChatID})
	flusher.Flush()
}

// SendMessage handles POST /chat/messages: a non-streaming turn that
// returns the updated or newly created chat session.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req models.SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	session, err := h.svc.SendTurn(r.Context(), UserID(r), req)
	if err != nil {
		status, msg := turnStatus(err)
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// List handles GET /chats.
func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.chats.List(UserID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chats": entries})
}

// Get handles GET /chats/{id}.
func (h *ChatHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	session, err := h.chats.GetWithMessages(UserID(r), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if session == nil {
		writeError(w, http.StatusNotFound, "chat not found")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// Delete handles DELETE /chats/{id}. Messages cascade with the chat.
func (h *ChatHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	deleted, err := h.chats.Delete(UserID(r), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "chat not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeEvent writes one SSE data event.
func writeEvent(w http.ResponseWriter, chunk models.StreamChunk) {
	data, err := json.Marshal(chunk)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}
