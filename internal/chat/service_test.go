package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sagechat/sage/internal/composer"
	"github.com/sagechat/sage/internal/knowledge"
	"github.com/sagechat/sage/internal/llm"
	"github.com/sagechat/sage/internal/memory"
	"github.com/sagechat/sage/internal/models"
	"github.com/sagechat/sage/internal/store"
)

type staticEmbedder struct{}

func (staticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

// fakeGen streams its reply in fixed chunks, or fails after emitting some.
type fakeGen struct {
	reply      string
	chunkSize  int
	err        error
	failAfter  int
	lastSystem string
	lastMsgs   []llm.ChatMessage
}

func (g *fakeGen) Complete(ctx context.Context, system string, msgs []llm.ChatMessage) (string, error) {
	g.lastSystem = system
	g.lastMsgs = msgs
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func (g *fakeGen) Stream(ctx context.Context, system string, msgs []llm.ChatMessage, onChunk func(string)) (string, error) {
	g.lastSystem = system
	g.lastMsgs = msgs

	size := g.chunkSize
	if size <= 0 {
		size = 4
	}
	var sb strings.Builder
	emitted := 0
	for i := 0; i < len(g.reply); i += size {
		end := i + size
		if end > len(g.reply) {
			end = len(g.reply)
		}
		chunk := g.reply[i:end]
		sb.WriteString(chunk)
		if onChunk != nil {
			onChunk(chunk)
		}
		emitted++
		if g.err != nil && emitted >= g.failAfter {
			return sb.String(), g.err
		}
	}
	if g.err != nil {
		return sb.String(), g.err
	}
	return sb.String(), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServiceDB(t *testing.T, gen Generator) (*Service, *store.ChatStore, *store.DB) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	chats := store.NewChatStore(db)
	memories := store.NewMemoryStore(db)
	memSvc := memory.NewService(memories, chats, 10, 7*24*time.Hour, testLogger())
	comp := composer.New(memSvc, knowledge.Empty(), staticEmbedder{}, 3, testLogger())
	svc := NewService(chats, comp, gen, nil, 0, testLogger())
	return svc, chats, db
}

func newTestService(t *testing.T, gen Generator) (*Service, *store.ChatStore) {
	svc, chats, _ := newTestServiceDB(t, gen)
	return svc, chats
}

// rejectAssistantInserts makes every assistant-role message insert fail, so
// tests can exercise reply-persistence failures.
func rejectAssistantInserts(t *testing.T, db *store.DB) {
	t.Helper()
	_, err := db.Exec(`
		CREATE TRIGGER reject_assistant BEFORE INSERT ON messages
		WHEN NEW.role = 'assistant'
		BEGIN
			SELECT RAISE(ABORT, 'assistant inserts disabled');
		END
	`)
	if err != nil {
		t.Fatalf("create trigger: %v", err)
	}
}

func TestStreamTurnCreatesChatAndPersistsExchange(t *testing.T) {
	gen := &fakeGen{reply: "Peace comes from within."}
	svc, chats := newTestService(t, gen)

	var streamed strings.Builder
	result, err := svc.StreamTurn(context.Background(), "u1", models.StreamRequest{
		Message: "How do I find peace?",
		Persona: "buddha",
	}, func(chunk string) { streamed.WriteString(chunk) })
	if err != nil {
		t.Fatalf("StreamTurn: %v", err)
	}

	if result.Reply != "Peace comes from within." {
		t.Errorf("Reply = %q", result.Reply)
	}
	if streamed.String() != result.Reply {
		t.Errorf("streamed %q, reply %q", streamed.String(), result.Reply)
	}

	session, err := chats.GetWithMessages("u1", result.ChatID)
	if err != nil {
		t.Fatalf("GetWithMessages: %v", err)
	}
	if session == nil {
		t.Fatal("chat not created")
	}
	if session.Title != "How do I find peace?" {
		t.Errorf("Title = %q", session.Title)
	}
	if len(session.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(session.Messages))
	}
	if session.Messages[0].Role != models.RoleUser {
		t.Errorf("messages[0].Role = %q", session.Messages[0].Role)
	}
	if session.Messages[1].Role != models.RoleAssistant || session.Messages[1].Persona != "buddha" {
		t.Errorf("messages[1] = %+v", session.Messages[1])
	}
}

func TestStreamTurnValidation(t *testing.T) {
	svc, _ := newTestService(t, &fakeGen{reply: "ok"})

	tests := []struct {
		name    string
		req     models.StreamRequest
		wantErr error
	}{
		{name: "empty message", req: models.StreamRequest{Message: ""}, wantErr: ErrEmptyMessage},
		{name: "too long", req: models.StreamRequest{Message: strings.Repeat("a", DefaultMaxMessageLen+1)}, wantErr: ErrMessageTooLong},
		{name: "unknown persona", req: models.StreamRequest{Message: "hi", Persona: "socrates"}, wantErr: ErrUnknownPersona},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.StreamTurn(context.Background(), "u1", tt.req, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestStreamTurnUnknownChat(t *testing.T) {
	svc, _ := newTestService(t, &fakeGen{reply: "ok"})

	_, err := svc.StreamTurn(context.Background(), "u1", models.StreamRequest{
		Message: "hi",
		ChatID:  "no-such-chat",
	}, nil)
	if !errors.Is(err, ErrChatNotFound) {
		t.Errorf("err = %v, want ErrChatNotFound", err)
	}
}

func TestStreamTurnForeignChatReportsNotFound(t *testing.T) {
	svc, chats := newTestService(t, &fakeGen{reply: "ok"})

	chat, err := chats.Create("owner", "", "mine")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = svc.StreamTurn(context.Background(), "intruder", models.StreamRequest{
		Message: "hi",
		ChatID:  chat.ID,
	}, nil)
	if !errors.Is(err, ErrChatNotFound) {
		t.Errorf("err = %v, want ErrChatNotFound", err)
	}
}

func TestStreamTurnProviderFailureDropsReply(t *testing.T) {
	gen := &fakeGen{reply: "partial output", err: errors.New("provider failed"), failAfter: 1}
	svc, chats := newTestService(t, gen)

	chat, err := chats.Create("u1", "", "start")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = svc.StreamTurn(context.Background(), "u1", models.StreamRequest{
		Message: "hi",
		ChatID:  chat.ID,
	}, nil)
	if err == nil {
		t.Fatal("expected provider failure to surface")
	}

	session, err := chats.GetWithMessages("u1", chat.ID)
	if err != nil {
		t.Fatalf("GetWithMessages: %v", err)
	}
	// The user message is kept; the partial assistant output is not.
	if len(session.Messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(session.Messages))
	}
	if session.Messages[0].Role != models.RoleUser {
		t.Errorf("messages[0].Role = %q", session.Messages[0].Role)
	}
}

func TestStreamTurnClientDisconnectKeepsPartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := &fakeGen{reply: "a long partial answer", chunkSize: 5, err: context.Canceled, failAfter: 2}
	svc, chats := newTestService(t, gen)

	chat, err := chats.Create("u1", "", "start")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = svc.StreamTurn(ctx, "u1", models.StreamRequest{
		Message: "hi",
		ChatID:  chat.ID,
	}, func(string) { cancel() })
	if err == nil {
		t.Fatal("expected cancellation to surface")
	}

	session, err := chats.GetWithMessages("u1", chat.ID)
	if err != nil {
		t.Fatalf("GetWithMessages: %v", err)
	}
	if len(session.Messages) != 2 {
		t.Fatalf("messages = %d, want 2 (partial reply kept)", len(session.Messages))
	}
	got := session.Messages[1]
	if got.Role != models.RoleAssistant {
		t.Errorf("messages[1].Role = %q", got.Role)
	}
	if got.Content == "" || got.Content == "a long partial answer" {
		t.Errorf("expected a non-empty strict prefix, got %q", got.Content)
	}
	if !strings.HasPrefix("a long partial answer", got.Content) {
		t.Errorf("persisted content %q is not a prefix of the reply", got.Content)
	}
}

func TestStreamTurnComposesBeforePersisting(t *testing.T) {
	gen := &fakeGen{reply: "answer two"}
	svc, chats := newTestService(t, gen)

	result, err := svc.StreamTurn(context.Background(), "u1", models.StreamRequest{
		Message: "question one",
	}, nil)
	if err != nil {
		t.Fatalf("StreamTurn: %v", err)
	}

	_, err = svc.StreamTurn(context.Background(), "u1", models.StreamRequest{
		Message: "question two",
		ChatID:  result.ChatID,
	}, nil)
	if err != nil {
		t.Fatalf("StreamTurn: %v", err)
	}

	// The prompt for turn two carries turn one plus the new message, and the
	// new message appears exactly once.
	if len(gen.lastMsgs) != 3 {
		t.Fatalf("prompt messages = %d, want 3", len(gen.lastMsgs))
	}
	count := 0
	for _, m := range gen.lastMsgs {
		if m.Content == "question two" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("new message appears %d times in the prompt, want 1", count)
	}

	session, err := chats.GetWithMessages("u1", result.ChatID)
	if err != nil {
		t.Fatalf("GetWithMessages: %v", err)
	}
	if len(session.Messages) != 4 {
		t.Errorf("messages = %d, want 4", len(session.Messages))
	}
}

func TestSendTurnSurfacesPersistFailure(t *testing.T) {
	gen := &fakeGen{reply: "a reply that will not survive"}
	svc, chats, db := newTestServiceDB(t, gen)
	rejectAssistantInserts(t, db)

	_, err := svc.SendTurn(context.Background(), "u1", models.SendMessageRequest{Message: "hello"})
	if err == nil {
		t.Fatal("SendTurn reported success with the reply unpersisted")
	}

	// The user message made it in before the failure; the reply did not.
	entries, lerr := chats.List("u1")
	if lerr != nil {
		t.Fatalf("List: %v", lerr)
	}
	if len(entries) != 1 {
		t.Fatalf("chats = %d, want 1", len(entries))
	}
	session, gerr := chats.GetWithMessages("u1", entries[0].ID)
	if gerr != nil {
		t.Fatalf("GetWithMessages: %v", gerr)
	}
	if len(session.Messages) != 1 || session.Messages[0].Role != models.RoleUser {
		t.Errorf("messages = %+v, want only the user message", session.Messages)
	}
}

func TestStreamTurnSurfacesPersistFailure(t *testing.T) {
	gen := &fakeGen{reply: "streamed but unsaved"}
	svc, _, db := newTestServiceDB(t, gen)
	rejectAssistantInserts(t, db)

	_, err := svc.StreamTurn(context.Background(), "u1", models.StreamRequest{Message: "hello"}, nil)
	if err == nil {
		t.Fatal("StreamTurn reported success with the reply unpersisted")
	}
}

func TestSendTurnReturnsSessionWithMessages(t *testing.T) {
	gen := &fakeGen{reply: "full reply"}
	svc, _ := newTestService(t, gen)

	session, err := svc.SendTurn(context.Background(), "u1", models.SendMessageRequest{
		Message: "hello",
		Persona: "stoic",
	})
	if err != nil {
		t.Fatalf("SendTurn: %v", err)
	}
	if len(session.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(session.Messages))
	}
	if session.Messages[1].Content != "full reply" {
		t.Errorf("assistant content = %q", session.Messages[1].Content)
	}
	if !strings.Contains(gen.lastSystem, "Stoic") {
		t.Errorf("persona instruction missing from system prompt: %q", gen.lastSystem)
	}
}

func TestSendTurnNeutralPersonaTag(t *testing.T) {
	gen := &fakeGen{reply: "reply"}
	svc, _ := newTestService(t, gen)

	session, err := svc.SendTurn(context.Background(), "u1", models.SendMessageRequest{
		Message: "hello",
	})
	if err != nil {
		t.Fatalf("SendTurn: %v", err)
	}
	if session.Messages[1].Persona != "neutral" {
		t.Errorf("assistant persona = %q, want neutral", session.Messages[1].Persona)
	}
}
