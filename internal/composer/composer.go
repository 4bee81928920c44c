// Package composer assembles the full prompt for a turn: persona
// instruction, user memory, retrieved knowledge, and the short-term message
// list.
package composer

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/sagechat/sage/internal/embedding"
	"github.com/sagechat/sage/internal/knowledge"
	"github.com/sagechat/sage/internal/llm"
	"github.com/sagechat/sage/internal/memory"
	"github.com/sagechat/sage/internal/models"
	"github.com/sagechat/sage/internal/persona"
)

// DefaultTopK is how many knowledge snippets are retrieved per turn.
const DefaultTopK = 3

const snippetSeparator = "\n---\n"

// Prompt is the composed input for the persona response generator.
type Prompt struct {
	// System is the single concatenated system-level instruction.
	System string
	// Messages is the bounded short-term history plus the new user message.
	Messages []llm.ChatMessage
}

// Composer is stateless and safe for concurrent use; each call builds its
// own buffers.
type Composer struct {
	memory   *memory.Service
	know     *knowledge.Store
	embedder embedding.Embedder
	topK     int
	logger   *slog.Logger
}

func New(mem *memory.Service, know *knowledge.Store, embedder embedding.Embedder, topK int, logger *slog.Logger) *Composer {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Composer{
		memory:   mem,
		know:     know,
		embedder: embedder,
		topK:     topK,
		logger:   logger,
	}
}

// Compose builds the prompt for one turn. Memory and knowledge retrieval
// degrade to empty sections on failure; only the persona resolution is
// identity-critical, and it falls back to a neutral instruction rather than
// failing on unknown tags.
func (c *Composer) Compose(ctx context.Context, userID, chatID, personaTag, message string) (*Prompt, error) {
	instruction := persona.Instruction(personaTag)

	memCtx, shortTerm, err := c.memory.GetUserMemory(ctx, userID, message, chatID)
	if err != nil {
		c.logger.Warn("memory lookup failed, composing without memory context",
			"user", userID, "error", err)
		memCtx = &models.MemoryContext{
			Facts:       []models.PersonalFact{},
			Preferences: map[string]string{},
		}
		shortTerm = nil
	}

	knowledgeBlock := c.retrieveKnowledge(ctx, message)

	var sb strings.Builder
	sb.WriteString(instruction)

	if len(memCtx.Facts) > 0 {
		sb.WriteString("\n\nAbout the user:\n")
		for i, f := range memCtx.Facts {
			if i > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString("- ")
			sb.WriteString(f.Content)
		}
	}

	if len(memCtx.Preferences) > 0 {
		sb.WriteString("\n\nUser preferences:\n")
		first := true
		for _, k := range sortedKeys(memCtx.Preferences) {
			if !first {
				sb.WriteByte('\n')
			}
			first = false
			sb.WriteString("- ")
			sb.WriteString(k)
			sb.WriteString(": ")
			sb.WriteString(memCtx.Preferences[k])
		}
	}

	if memCtx.RelevantHistory != "" {
		sb.WriteString("\n\nConversation context:\n")
		sb.WriteString(memCtx.RelevantHistory)
	}

	if knowledgeBlock != "" {
		sb.WriteString("\n\nReference material:\n")
		sb.WriteString(knowledgeBlock)
	}

	msgs := make([]llm.ChatMessage, 0, len(shortTerm)+1)
	for _, m := range shortTerm {
		msgs = append(msgs, llm.ChatMessage{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, llm.ChatMessage{Role: models.RoleUser, Content: message})

	return &Prompt{
		System:   sb.String(),
		Messages: msgs,
	}, nil
}

// retrieveKnowledge embeds the message and joins the top-k snippets. Any
// failure yields an empty block; retrieval is never fatal to the turn.
func (c *Composer) retrieveKnowledge(ctx context.Context, message string) string {
	if c.know == nil || c.know.Len() == 0 {
		return ""
	}

	vec, err := c.embedder.Embed(ctx, message)
	if err != nil {
		c.logger.Warn("query embedding failed, composing without knowledge context", "error", err)
		return ""
	}

	snippets := c.know.TopRelevant(vec, c.topK)
	if len(snippets) == 0 {
		return ""
	}

	parts := make([]string, len(snippets))
	for i, s := range snippets {
		parts[i] = s.Content
	}
	return strings.Join(parts, snippetSeparator)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
