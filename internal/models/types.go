package models

// Role identifies who authored a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}

// FactSource classifies where a personal fact came from.
type FactSource string

const (
	FactSourceObservation FactSource = "observation"
	FactSourceFact        FactSource = "fact"
	FactSourcePreference  FactSource = "preference"
)

var validFactSources = map[FactSource]bool{
	FactSourceObservation: true,
	FactSourceFact:        true,
	FactSourcePreference:  true,
}

func (s FactSource) IsValid() bool {
	return validFactSources[s]
}

// StreamRequest is the payload for POST /chat/stream.
type StreamRequest struct {
	Message string `json:"message"`
	Persona string `json:"persona"`
	ChatID  string `json:"chatId,omitempty"`
}

// StreamChunk is a single SSE data event emitted during a streamed turn.
type StreamChunk struct {
	Content string `json:"content,omitempty"`
	Done    bool   `json:"done,omitempty"`
	ChatID  string `json:"chatId,omitempty"`
}

// SendMessageRequest is the payload for POST /chat/messages.
type SendMessageRequest struct {
	Message string `json:"message"`
	Persona string `json:"persona"`
	ChatID  string `json:"chatId,omitempty"`
}

// ChatListEntry is a chat session without its message list, for GET /chats.
type ChatListEntry struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	LastMessage string `json:"lastMessage"`
	CreatedAt   int64  `json:"createdAt"`
	UpdatedAt   int64  `json:"updatedAt"`
}

// MemoryContext is what the composer receives from the memory accessor:
// the per-user durable context for one turn.
type MemoryContext struct {
	Facts           []PersonalFact    `json:"facts"`
	Preferences     map[string]string `json:"preferences"`
	RelevantHistory string            `json:"relevantHistory"`
}

// Exchange is one completed turn handed to the memory maintainer.
type Exchange struct {
	UserMessage string
	AIResponse  string
	Persona     string
}

// HealthResponse is returned from GET /health.
type HealthResponse struct {
	Status    string       `json:"status"`
	DB        ServiceCheck `json:"db"`
	Ollama    ServiceCheck `json:"ollama"`
	Knowledge ServiceCheck `json:"knowledge"`
	ChatCount int          `json:"chatCount"`
}

type ServiceCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
