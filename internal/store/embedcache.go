package store

import (
	"database/sql"
	"fmt"
	"time"
)

// EmbeddingCacheEntry stores a cached embedding keyed by content hash.
type EmbeddingCacheEntry struct {
	ContentHash string
	Embedding   []byte
	Dimension   int
	Model       string
	UpdatedAt   int64
}

// EmbeddingCacheStore keeps generated embeddings in SQLite so repeated
// queries never re-hit the embedding service.
type EmbeddingCacheStore struct {
	db *DB
}

func NewEmbeddingCacheStore(db *DB) *EmbeddingCacheStore {
	return &EmbeddingCacheStore{db: db}
}

// Get returns the cached entry for a content hash, or nil on a miss.
func (s *EmbeddingCacheStore) Get(contentHash string) (*EmbeddingCacheEntry, error) {
	var e EmbeddingCacheEntry
	err := s.db.QueryRow(`
		SELECT content_hash, embedding, dimension, model, updated_at
		FROM embedding_cache WHERE content_hash = ?
	`, contentHash).Scan(&e.ContentHash, &e.Embedding, &e.Dimension, &e.Model, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get embedding cache: %w", err)
	}
	return &e, nil
}

// Put inserts or replaces a cache entry.
func (s *EmbeddingCacheStore) Put(e *EmbeddingCacheEntry) error {
	if e.UpdatedAt == 0 {
		e.UpdatedAt = time.Now().Unix()
	}
	_, err := s.db.Exec(`
		INSERT INTO embedding_cache (content_hash, embedding, dimension, model, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(content_hash) DO UPDATE SET
			embedding = excluded.embedding,
			dimension = excluded.dimension,
			model = excluded.model,
			updated_at = excluded.updated_at
	`, e.ContentHash, e.Embedding, e.Dimension, e.Model, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put embedding cache: %w", err)
	}
	return nil
}
