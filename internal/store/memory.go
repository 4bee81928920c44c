package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/sagechat/sage/internal/models"
)

// MemoryStore persists per-user memory records: the rolling summary, the
// extracted fact list, and the preference map. Records are created lazily
// and never deleted.
type MemoryStore struct {
	db *DB
}

func NewMemoryStore(db *DB) *MemoryStore {
	return &MemoryStore{db: db}
}

// Ensure creates an empty memory record for the user if none exists.
func (s *MemoryStore) Ensure(userID string) error {
	_, err := s.db.Exec(`
		INSERT INTO memory_records (user_id, summary, last_updated)
		VALUES (?, '', ?)
		ON CONFLICT(user_id) DO NOTHING
	`, userID, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("ensure memory record: %w", err)
	}
	return nil
}

// Get loads the user's memory record, creating an empty one when absent.
func (s *MemoryStore) Get(userID string) (*models.MemoryRecord, error) {
	if err := s.Ensure(userID); err != nil {
		return nil, err
	}

	rec := &models.MemoryRecord{
		UserID:      userID,
		Facts:       []models.PersonalFact{},
		Preferences: map[string]string{},
	}
	err := s.db.QueryRow(`
		SELECT summary, last_updated FROM memory_records WHERE user_id = ?
	`, userID).Scan(&rec.Summary, &rec.LastUpdated)
	if err != nil {
		return nil, fmt.Errorf("get memory record: %w", err)
	}

	facts, err := s.ListFacts(userID, 0)
	if err != nil {
		return nil, err
	}
	rec.Facts = facts

	prefs, err := s.Preferences(userID)
	if err != nil {
		return nil, err
	}
	rec.Preferences = prefs

	return rec, nil
}

// ListFacts returns the user's facts, oldest first. limit > 0 keeps only the
// most recent limit entries (still in chronological order).
func (s *MemoryStore) ListFacts(userID string, limit int) ([]models.PersonalFact, error) {
	query := `
		SELECT content, source, created_at FROM memory_facts
		WHERE user_id = ? ORDER BY id ASC
	`
	args := []any{userID}
	if limit > 0 {
		query = `
			SELECT content, source, created_at FROM (
				SELECT id, content, source, created_at FROM memory_facts
				WHERE user_id = ? ORDER BY id DESC LIMIT ?
			) ORDER BY id ASC
		`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}
	defer rows.Close()

	facts := []models.PersonalFact{}
	for rows.Next() {
		var f models.PersonalFact
		if err := rows.Scan(&f.Content, &f.Source, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

// AddFacts appends facts whose trimmed content is not already present for
// the user. Returns how many were actually inserted. LastUpdated refreshes
// only when something was written.
func (s *MemoryStore) AddFacts(userID string, facts []models.PersonalFact) (int, error) {
	if err := s.Ensure(userID); err != nil {
		return 0, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin add facts: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	added := 0
	for _, f := range facts {
		content := strings.TrimSpace(f.Content)
		if content == "" {
			continue
		}
		source := f.Source
		if !source.IsValid() {
			source = models.FactSourceObservation
		}
		res, err := tx.Exec(`
			INSERT INTO memory_facts (user_id, content, source, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(user_id, content) DO NOTHING
		`, userID, content, string(source), now)
		if err != nil {
			return 0, fmt.Errorf("insert fact: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		added += int(n)
	}

	if added > 0 {
		if _, err := tx.Exec(
			`UPDATE memory_records SET last_updated = ? WHERE user_id = ?`, now, userID,
		); err != nil {
			return 0, fmt.Errorf("touch memory record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return added, nil
}

// Preferences returns the user's preference map.
func (s *MemoryStore) Preferences(userID string) (map[string]string, error) {
	rows, err := s.db.Query(`
		SELECT key, value FROM memory_preferences WHERE user_id = ?
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	defer rows.Close()

	prefs := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}
		prefs[k] = v
	}
	return prefs, rows.Err()
}

// SetPreferences merges preferences key by key, last write wins. Superseded
// values are overwritten, not versioned.
func (s *MemoryStore) SetPreferences(userID string, prefs map[string]string) error {
	if len(prefs) == 0 {
		return nil
	}
	if err := s.Ensure(userID); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin set preferences: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	for k, v := range prefs {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, err := tx.Exec(`
			INSERT INTO memory_preferences (user_id, key, value, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, userID, k, v, now); err != nil {
			return fmt.Errorf("upsert preference: %w", err)
		}
	}

	if _, err := tx.Exec(
		`UPDATE memory_records SET last_updated = ? WHERE user_id = ?`, now, userID,
	); err != nil {
		return fmt.Errorf("touch memory record: %w", err)
	}

	return tx.Commit()
}

// SetSummary replaces the rolling conversation summary and refreshes
// LastUpdated.
func (s *MemoryStore) SetSummary(userID, summary string) error {
	if err := s.Ensure(userID); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		UPDATE memory_records SET summary = ?, last_updated = ? WHERE user_id = ?
	`, summary, time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("set summary: %w", err)
	}
	return nil
}
