// Package chat orchestrates one conversational turn: resolve the session,
// persist the user message, compose the prompt, call the generator, persist
// the reply, and kick off memory maintenance.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sagechat/sage/internal/composer"
	"github.com/sagechat/sage/internal/llm"
	"github.com/sagechat/sage/internal/memory"
	"github.com/sagechat/sage/internal/models"
	"github.com/sagechat/sage/internal/persona"
	"github.com/sagechat/sage/internal/store"
)

// DefaultMaxMessageLen bounds incoming message size before any external call.
const DefaultMaxMessageLen = 8000

// maintenanceTimeout bounds the background distillation work per turn.
const maintenanceTimeout = 3 * time.Minute

// Validation and lookup failures surfaced to the transport layer.
var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrMessageTooLong = errors.New("message is too long")
	ErrUnknownPersona = errors.New("unknown persona")
	ErrChatNotFound   = errors.New("chat not found")
)

// Generator is the completion surface the turn needs; *llm.Client satisfies it.
type Generator interface {
	Complete(ctx context.Context, system string, msgs []llm.ChatMessage) (string, error)
	Stream(ctx context.Context, system string, msgs []llm.ChatMessage, onChunk func(string)) (string, error)
}

// TurnResult reports a completed streamed turn.
type TurnResult struct {
	ChatID string
	Reply  string
}

type Service struct {
	chats      *store.ChatStore
	composer   *composer.Composer
	gen        Generator
	maintainer *memory.Maintainer
	maxLen     int
	logger     *slog.Logger
}

func NewService(chats *store.ChatStore, comp *composer.Composer, gen Generator, maintainer *memory.Maintainer, maxMessageLen int, logger *slog.Logger) *Service {
	if maxMessageLen <= 0 {
		maxMessageLen = DefaultMaxMessageLen
	}
	return &Service{
		chats:      chats,
		composer:   comp,
		gen:        gen,
		maintainer: maintainer,
		maxLen:     maxMessageLen,
		logger:     logger,
	}
}

// validate rejects bad input before any external call is made.
func (s *Service) validate(message, personaTag string) error {
	if message == "" {
		return ErrEmptyMessage
	}
	if len(message) > s.maxLen {
		return ErrMessageTooLong
	}
	if personaTag != "" && !persona.Known(personaTag) {
		return ErrUnknownPersona
	}
	return nil
}

// resolveChat loads the user's chat or creates a new one titled from the
// first message.
func (s *Service) resolveChat(userID, chatID, message string) (*models.ChatSession, bool, error) {
	if chatID != "" {
		chat, err := s.chats.GetByID(userID, chatID)
		if err != nil {
			return nil, false, err
		}
		if chat == nil {
			return nil, false, ErrChatNotFound
		}
		return chat, false, nil
	}
	chat, err := s.chats.Create(userID, "", message)
	if err != nil {
		return nil, false, err
	}
	return chat, true, nil
}

// StreamTurn runs one streamed turn, invoking onChunk per text delta. The
// user message is persisted before the model call; the assistant message is
// persisted only once fully formed, except that on client disconnect a
// non-empty partial reply is kept rather than silently dropped.
func (s *Service) StreamTurn(ctx context.Context, userID string, req models.StreamRequest, onChunk func(string)) (*TurnResult, error) {
	if err := s.validate(req.Message, req.Persona); err != nil {
		return nil, err
	}

	chat, created, err := s.resolveChat(userID, req.ChatID, req.Message)
	if err != nil {
		return nil, err
	}

	// Compose before persisting the new message so the short-term window
	// holds only prior turns; a brand-new chat has no history to splice in.
	historyChatID := chat.ID
	if created {
		historyChatID = ""
	}
	prompt, err := s.composer.Compose(ctx, userID, historyChatID, req.Persona, req.Message)
	if err != nil {
		return nil, fmt.Errorf("compose prompt: %w", err)
	}

	if err := s.chats.AppendMessage(chat.ID, &models.Message{
		Role:    models.RoleUser,
		Content: req.Message,
	}); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	reply, err := s.gen.Stream(ctx, prompt.System, prompt.Messages, onChunk)
	if err != nil {
		if ctx.Err() != nil && reply != "" {
			if perr := s.persistReply(context.Background(), chat.ID, userID, req, reply, false); perr != nil {
				s.logger.Error("partial reply lost on disconnect", "chat", chat.ID, "error", perr)
			}
		}
		return nil, fmt.Errorf("generate reply: %w", err)
	}

	if err := s.persistReply(ctx, chat.ID, userID, req, reply, true); err != nil {
		return nil, err
	}

	return &TurnResult{ChatID: chat.ID, Reply: reply}, nil
}

// SendTurn runs one non-streaming turn and returns the updated session with
// its message list.
func (s *Service) SendTurn(ctx context.Context, userID string, req models.SendMessageRequest) (*models.ChatSession, error) {
	if err := s.validate(req.Message, req.Persona); err != nil {
		return nil, err
	}

	chat, created, err := s.resolveChat(userID, req.ChatID, req.Message)
	if err != nil {
		return nil, err
	}

	historyChatID := chat.ID
	if created {
		historyChatID = ""
	}
	prompt, err := s.composer.Compose(ctx, userID, historyChatID, req.Persona, req.Message)
	if err != nil {
		return nil, fmt.Errorf("compose prompt: %w", err)
	}

	if err := s.chats.AppendMessage(chat.ID, &models.Message{
		Role:    models.RoleUser,
		Content: req.Message,
	}); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	reply, err := s.gen.Complete(ctx, prompt.System, prompt.Messages)
	if err != nil {
		return nil, fmt.Errorf("generate reply: %w", err)
	}

	if err := s.persistReply(ctx, chat.ID, userID, models.StreamRequest(req), reply, true); err != nil {
		return nil, err
	}

	return s.chats.GetWithMessages(userID, chat.ID)
}

// persistReply appends the assistant message and, when the turn completed
// normally, triggers background memory maintenance. A persistence failure is
// returned to the caller; the reply must never be reported as saved when it
// was not.
func (s *Service) persistReply(ctx context.Context, chatID, userID string, req models.StreamRequest, reply string, maintain bool) error {
	tag := req.Persona
	if !persona.Known(tag) {
		tag = "neutral"
	}

	if err := s.chats.AppendMessage(chatID, &models.Message{
		Role:    models.RoleAssistant,
		Content: reply,
		Persona: tag,
	}); err != nil {
		return fmt.Errorf("persist assistant message: %w", err)
	}

	if !maintain || s.maintainer == nil {
		return nil
	}
	go func() {
		mctx, cancel := context.WithTimeout(context.Background(), maintenanceTimeout)
		defer cancel()
		s.maintainer.UpdateUserMemory(mctx, userID, models.Exchange{
			UserMessage: req.Message,
			AIResponse:  reply,
			Persona:     tag,
		})
	}()
	return nil
}
