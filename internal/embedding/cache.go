package embedding

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/sagechat/sage/internal/retry"
	"github.com/sagechat/sage/internal/store"
	"github.com/sagechat/sage/internal/vector"
)

// CachedEmbedder wraps an Embedder with content-hash caching in SQLite and
// retries transient provider failures with backoff.
type CachedEmbedder struct {
	client Embedder
	cache  *store.EmbeddingCacheStore
	model  string
	dim    int
}

func NewCachedEmbedder(client Embedder, cache *store.EmbeddingCacheStore, model string, dim int) *CachedEmbedder {
	return &CachedEmbedder{
		client: client,
		cache:  cache,
		model:  model,
		dim:    dim,
	}
}

// Embed returns the embedding for text, using cache when available.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	hash := ContentHash(text)

	entry, err := e.cache.Get(hash)
	if err != nil {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}
	if entry != nil && entry.Model == e.model {
		return vector.FromBytes(entry.Embedding), nil
	}

	var vec []float32
	cfg := retry.Defaults
	cfg.Retryable = func(err error) bool { return errors.Is(err, ErrTransient) }
	err = retry.Do(ctx, cfg, func() error {
		var embedErr error
		vec, embedErr = e.client.Embed(ctx, text)
		return embedErr
	})
	if err != nil {
		return nil, err
	}

	// Cache write failures are non-fatal; the embedding is already in hand.
	_ = e.cache.Put(&store.EmbeddingCacheEntry{
		ContentHash: hash,
		Embedding:   vector.ToBytes(vec),
		Dimension:   e.dim,
		Model:       e.model,
	})

	return vec, nil
}

// ContentHash computes a SHA-256 hash of text content.
func ContentHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%x", h)
}
