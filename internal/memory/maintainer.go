package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sagechat/sage/internal/llm"
	"github.com/sagechat/sage/internal/models"
	"github.com/sagechat/sage/internal/store"
)

const (
	// DefaultSummaryInterval regenerates the rolling summary every Nth
	// completed conversation.
	DefaultSummaryInterval = 5

	// DefaultExtractInterval runs fact/preference extraction every Nth
	// completed conversation. Both intervals are checked against the same
	// count, so both fire together at common multiples.
	DefaultExtractInterval = 3

	// DefaultSessionWindow is how many recent sessions feed the summary.
	DefaultSessionWindow = 10
)

const summaryInstruction = "You summarize conversations for a personal assistant. " +
	"Produce a concise summary of the transcripts below, emphasizing facts about the user, " +
	"their interests, recurring problems, and stated preferences. Write plain prose, no headers."

const extractionInstruction = "You extract durable information about a user from one exchange. " +
	"Reply with a single JSON object of the form " +
	`{"facts": [{"content": "...", "source": "fact"}], "preferences": {"key": "value"}}` +
	". source must be one of observation, fact, preference. " +
	"Only include things worth remembering long-term. If there is nothing, return " +
	`{"facts": [], "preferences": {}}` + "."

// Generator is the slice of the completion client the maintainer needs.
type Generator interface {
	Complete(ctx context.Context, system string, msgs []llm.ChatMessage) (string, error)
}

// Maintainer periodically distills raw conversation into the memory record.
// It runs after the response has been flushed and never surfaces errors to
// the user-facing turn: every failure is logged and swallowed.
type Maintainer struct {
	memories        *store.MemoryStore
	chats           *store.ChatStore
	gen             Generator
	summaryInterval int
	extractInterval int
	sessionWindow   int
	logger          *slog.Logger
}

func NewMaintainer(memories *store.MemoryStore, chats *store.ChatStore, gen Generator, summaryInterval, extractInterval, sessionWindow int, logger *slog.Logger) *Maintainer {
	if summaryInterval <= 0 {
		summaryInterval = DefaultSummaryInterval
	}
	if extractInterval <= 0 {
		extractInterval = DefaultExtractInterval
	}
	if sessionWindow <= 0 {
		sessionWindow = DefaultSessionWindow
	}
	return &Maintainer{
		memories:        memories,
		chats:           chats,
		gen:             gen,
		summaryInterval: summaryInterval,
		extractInterval: extractInterval,
		sessionWindow:   sessionWindow,
		logger:          logger,
	}
}

// ShouldSummarize reports whether a completed-conversation count triggers
// summary regeneration.
func ShouldSummarize(count, interval int) bool {
	return count > 0 && interval > 0 && count%interval == 0
}

// ShouldExtract reports whether the count triggers fact extraction.
func ShouldExtract(count, interval int) bool {
	return count > 0 && interval > 0 && count%interval == 0
}

// UpdateUserMemory applies the sampling policy for one completed turn. The
// trigger counter is the user's persisted conversation count, so it stays
// correct across server instances.
func (m *Maintainer) UpdateUserMemory(ctx context.Context, userID string, ex models.Exchange) {
	count, err := m.chats.CountByUser(userID)
	if err != nil {
		m.logger.Warn("memory maintenance skipped", "user", userID, "error", err)
		return
	}

	if ShouldSummarize(count, m.summaryInterval) {
		if err := m.regenerateSummary(ctx, userID); err != nil {
			m.logger.Warn("summary regeneration failed", "user", userID, "error", err)
		}
	}

	if ShouldExtract(count, m.extractInterval) {
		if err := m.extract(ctx, userID, ex); err != nil {
			m.logger.Warn("fact extraction failed", "user", userID, "error", err)
		}
	}
}

// regenerateSummary rebuilds the rolling summary from the user's recent
// sessions. On provider failure the stored summary is left unchanged.
func (m *Maintainer) regenerateSummary(ctx context.Context, userID string) error {
	sessions, err := m.chats.RecentSessions(userID, m.sessionWindow)
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}
	if len(sessions) == 0 {
		return nil
	}

	var sb strings.Builder
	for i, sess := range sessions {
		if i > 0 {
			sb.WriteString("\n\n---\n\n")
		}
		sb.WriteString(RenderTranscript(sess.Messages))
	}

	summary, err := m.gen.Complete(ctx, summaryInstruction, []llm.ChatMessage{
		{Role: models.RoleUser, Content: sb.String()},
	})
	if err != nil {
		return fmt.Errorf("generate summary: %w", err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		// Never overwrite a good summary with empty output.
		return nil
	}

	if err := m.memories.SetSummary(userID, summary); err != nil {
		return fmt.Errorf("store summary: %w", err)
	}
	m.logger.Debug("summary regenerated", "user", userID, "sessions", len(sessions))
	return nil
}

// extract asks the model for structured facts/preferences from the latest
// exchange and merges whatever parses. A response without a parseable
// payload skips the update.
func (m *Maintainer) extract(ctx context.Context, userID string, ex models.Exchange) error {
	if strings.TrimSpace(ex.UserMessage) == "" {
		return nil
	}

	exchange := "user: " + ex.UserMessage + "\nassistant: " + ex.AIResponse
	resp, err := m.gen.Complete(ctx, extractionInstruction, []llm.ChatMessage{
		{Role: models.RoleUser, Content: exchange},
	})
	if err != nil {
		return fmt.Errorf("generate extraction: %w", err)
	}

	payload, ok := ParseExtraction(resp)
	if !ok {
		m.logger.Debug("extraction response had no parseable payload", "user", userID)
		return nil
	}

	added, err := m.memories.AddFacts(userID, payload.Facts)
	if err != nil {
		return fmt.Errorf("store facts: %w", err)
	}
	if err := m.memories.SetPreferences(userID, payload.Preferences); err != nil {
		return fmt.Errorf("store preferences: %w", err)
	}

	m.logger.Debug("extraction merged",
		"user", userID,
		"facts_added", added,
		"preferences", len(payload.Preferences),
	)
	return nil
}
