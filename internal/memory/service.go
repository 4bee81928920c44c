// Package memory implements the per-user memory read path and the
// background maintainer that distills conversations into durable facts,
// preferences, and a rolling summary.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sagechat/sage/internal/models"
	"github.com/sagechat/sage/internal/store"
)

const (
	// DefaultHistoryWindow is how many recent messages of a chat are
	// spliced into the prompt as short-term history.
	DefaultHistoryWindow = 10

	// DefaultSummaryFreshness is how long a rolling summary stays usable
	// before it is treated as absent.
	DefaultSummaryFreshness = 7 * 24 * time.Hour

	// DefaultFactCap bounds how many facts reach the prompt.
	DefaultFactCap = 20

	// longMessageThreshold: a very long incoming message halves the
	// history window so the composed prompt stays bounded.
	longMessageThreshold = 2000
)

// Service is the memory read path consumed by the context composer.
type Service struct {
	memories  *store.MemoryStore
	chats     *store.ChatStore
	window    int
	freshness time.Duration
	factCap   int
	logger    *slog.Logger
}

func NewService(memories *store.MemoryStore, chats *store.ChatStore, window int, freshness time.Duration, logger *slog.Logger) *Service {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	if freshness <= 0 {
		freshness = DefaultSummaryFreshness
	}
	return &Service{
		memories:  memories,
		chats:     chats,
		window:    window,
		freshness: freshness,
		factCap:   DefaultFactCap,
		logger:    logger,
	}
}

// GetUserMemory assembles the per-user context for one turn: capped facts,
// the preference map, and a relevantHistory text combining the rolling
// summary (when fresh) with the chat's recent message window. A brand-new
// user gets empty context without error; the only write is the lazy
// creation of an empty record. currentMessage influences only how much
// history is included.
//
// The short-term window is returned separately so the composer can reuse it
// as the model's message list.
func (s *Service) GetUserMemory(ctx context.Context, userID, currentMessage, chatID string) (*models.MemoryContext, []*models.Message, error) {
	rec, err := s.memories.Get(userID)
	if err != nil {
		return nil, nil, fmt.Errorf("load memory record: %w", err)
	}

	summary := strings.TrimSpace(rec.Summary)
	if summary != "" {
		age := time.Since(time.Unix(rec.LastUpdated, 0))
		if age > s.freshness {
			// Stale: treat as absent, keep the stored text untouched.
			summary = ""
		}
	}

	window := s.window
	if len(currentMessage) > longMessageThreshold {
		window = window / 2
	}

	var shortTerm []*models.Message
	if chatID != "" {
		chat, err := s.chats.GetByID(userID, chatID)
		if err != nil {
			return nil, nil, fmt.Errorf("load chat: %w", err)
		}
		if chat != nil {
			shortTerm, err = s.chats.RecentMessages(chatID, window)
			if err != nil {
				return nil, nil, fmt.Errorf("load recent messages: %w", err)
			}
		}
	}

	history := composeHistory(summary, shortTerm)

	facts, err := s.memories.ListFacts(userID, s.factCap)
	if err != nil {
		return nil, nil, fmt.Errorf("load facts: %w", err)
	}

	return &models.MemoryContext{
		Facts:           facts,
		Preferences:     rec.Preferences,
		RelevantHistory: history,
	}, shortTerm, nil
}

// composeHistory merges the fresh summary with the short-term window. The
// summary is prefixed as a labeled section unless it already repeats the
// window text; with no window it stands alone; with neither the result is
// empty.
func composeHistory(summary string, shortTerm []*models.Message) string {
	windowText := RenderTranscript(shortTerm)

	switch {
	case windowText == "" && summary == "":
		return ""
	case windowText == "":
		return summary
	case summary == "" || summary == strings.TrimSpace(windowText):
		return windowText
	default:
		return "General summary of earlier conversations:\n" + summary + "\n\nRecent messages:\n" + windowText
	}
}

// RenderTranscript flattens messages into role-tagged lines.
func RenderTranscript(msgs []*models.Message) string {
	if len(msgs) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, m := range msgs {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(string(m.Role))
		sb.WriteString(": ")
		sb.WriteString(m.Content)
	}
	return sb.String()
}
