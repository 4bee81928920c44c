package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/sagechat/sage/internal/models"
)

// maxTitleLen bounds auto-derived chat titles.
const maxTitleLen = 60

// ChatStore handles chat session and message persistence. All reads are
// scoped to an owner; a chat that exists but belongs to someone else is
// reported exactly like a chat that does not exist.
type ChatStore struct {
	db *DB
}

func NewChatStore(db *DB) *ChatStore {
	return &ChatStore{db: db}
}

// Create starts a new chat session for a user. When title is empty it is
// derived from firstMessage.
func (s *ChatStore) Create(userID, title, firstMessage string) (*models.ChatSession, error) {
	if title == "" {
		title = DeriveTitle(firstMessage)
	}
	now := time.Now().Unix()
	chat := &models.ChatSession{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.Exec(`
		INSERT INTO chats (id, user_id, title, last_message, created_at, updated_at)
		VALUES (?, ?, ?, '', ?, ?)
	`, chat.ID, chat.UserID, chat.Title, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert chat: %w", err)
	}
	return chat, nil
}

// GetByID fetches a chat owned by userID, or nil when no such chat exists
// for that owner.
func (s *ChatStore) GetByID(userID, chatID string) (*models.ChatSession, error) {
	var chat models.ChatSession
	err := s.db.QueryRow(`
		SELECT id, user_id, title, last_message, created_at, updated_at
		FROM chats WHERE id = ? AND user_id = ?
	`, chatID, userID).Scan(&chat.ID, &chat.UserID, &chat.Title, &chat.LastMessage, &chat.CreatedAt, &chat.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}
	return &chat, nil
}

// GetWithMessages fetches a chat and its full ordered message list.
func (s *ChatStore) GetWithMessages(userID, chatID string) (*models.ChatSession, error) {
	chat, err := s.GetByID(userID, chatID)
	if err != nil || chat == nil {
		return chat, err
	}
	msgs, err := s.messages(chatID, 0)
	if err != nil {
		return nil, err
	}
	chat.Messages = msgs
	return chat, nil
}

// List returns the user's chats, most recently updated first.
func (s *ChatStore) List(userID string) ([]*models.ChatListEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, title, last_message, created_at, updated_at
		FROM chats WHERE user_id = ?
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	entries := []*models.ChatListEntry{}
	for rows.Next() {
		var e models.ChatListEntry
		if err := rows.Scan(&e.ID, &e.Title, &e.LastMessage, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Delete removes a chat and, through the foreign-key cascade, its messages.
// Returns false when the chat does not exist for this owner.
func (s *ChatStore) Delete(userID, chatID string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM chats WHERE id = ? AND user_id = ?`, chatID, userID)
	if err != nil {
		return false, fmt.Errorf("delete chat: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// AppendMessage adds a message at the end of a chat's ordered list and
// refreshes the chat's last-message metadata. The sequence number is
// assigned inside the transaction so appends commit in order.
func (s *ChatStore) AppendMessage(chatID string, msg *models.Message) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	var seq int
	if err := tx.QueryRow(
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM messages WHERE chat_id = ?`, chatID,
	).Scan(&seq); err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt == 0 {
		msg.CreatedAt = time.Now().Unix()
	}
	msg.ChatID = chatID

	var persona any
	if msg.Persona != "" {
		persona = msg.Persona
	}
	if _, err := tx.Exec(`
		INSERT INTO messages (id, chat_id, sequence, role, content, persona, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, chatID, seq, string(msg.Role), msg.Content, persona, msg.CreatedAt); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	if _, err := tx.Exec(`
		UPDATE chats SET last_message = ?, updated_at = ? WHERE id = ?
	`, msg.Content, msg.CreatedAt, chatID); err != nil {
		return fmt.Errorf("update chat metadata: %w", err)
	}

	return tx.Commit()
}

// RecentMessages returns the last `limit` messages of a chat in their
// original order. limit <= 0 returns the whole list.
func (s *ChatStore) RecentMessages(chatID string, limit int) ([]*models.Message, error) {
	return s.messages(chatID, limit)
}

func (s *ChatStore) messages(chatID string, limit int) ([]*models.Message, error) {
	query := `
		SELECT id, chat_id, role, content, persona, created_at
		FROM messages WHERE chat_id = ?
		ORDER BY sequence ASC
	`
	args := []any{chatID}
	if limit > 0 {
		// Take the tail of the list but keep chronological order.
		query = `
			SELECT id, chat_id, role, content, persona, created_at FROM (
				SELECT id, chat_id, sequence, role, content, persona, created_at
				FROM messages WHERE chat_id = ?
				ORDER BY sequence DESC LIMIT ?
			) ORDER BY sequence ASC
		`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	msgs := []*models.Message{}
	for rows.Next() {
		var m models.Message
		var persona sql.NullString
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &persona, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if persona.Valid {
			m.Persona = persona.String
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

// CountByUser returns how many chat sessions the user has. The memory
// maintainer derives its trigger counters from this persisted count.
func (s *ChatStore) CountByUser(userID string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM chats WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count chats: %w", err)
	}
	return count, nil
}

// RecentSessions returns the user's most recently updated chats, each with
// its message list, newest chat first.
func (s *ChatStore) RecentSessions(userID string, limit int) ([]*models.ChatSession, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(`
		SELECT id, user_id, title, last_message, created_at, updated_at
		FROM chats WHERE user_id = ?
		ORDER BY updated_at DESC LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent sessions: %w", err)
	}
	defer rows.Close()

	var chats []*models.ChatSession
	for rows.Next() {
		var c models.ChatSession
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.LastMessage, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, c := range chats {
		msgs, err := s.messages(c.ID, 0)
		if err != nil {
			return nil, err
		}
		c.Messages = msgs
	}
	return chats, nil
}

// DeriveTitle builds a chat title from the first user message: first line,
// truncated on a word boundary where possible. Truncation counts runes so a
// multibyte character is never split.
func DeriveTitle(message string) string {
	title := strings.TrimSpace(message)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = title[:i]
	}
	if title == "" {
		return "New chat"
	}
	runes := []rune(title)
	if len(runes) <= maxTitleLen {
		return title
	}
	cut := string(runes[:maxTitleLen])
	if i := strings.LastIndexByte(cut, ' '); i >= 0 && utf8.RuneCountInString(cut[:i]) > maxTitleLen/2 {
		cut = cut[:i]
	}
	return cut + "…"
}
