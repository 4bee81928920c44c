package models

// Message is one entry in a chat session's ordered message list.
// Persona is set only on assistant messages.
type Message struct {
	ID        string `json:"id"`
	ChatID    string `json:"chatId"`
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Persona   string `json:"persona,omitempty"`
	CreatedAt int64  `json:"createdAt"`
}

// ChatSession is a single conversation owned by one user.
type ChatSession struct {
	ID          string     `json:"id"`
	UserID      string     `json:"-"`
	Title       string     `json:"title"`
	LastMessage string     `json:"lastMessage"`
	Messages    []*Message `json:"messages,omitempty"`
	CreatedAt   int64      `json:"createdAt"`
	UpdatedAt   int64      `json:"updatedAt"`
}
