// Package knowledge owns the immutable pre-embedded persona reference corpus
// and answers relevance queries against it.
package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync/atomic"

	"github.com/sagechat/sage/internal/vector"
)

// Item is one (source, text, embedding) entry of the corpus. Items are
// immutable once loaded; the whole corpus is replaced on Reload.
type Item struct {
	Source    string    `json:"source"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding"`
}

// Snippet is a retrieval result: corpus content plus its similarity to the
// query embedding.
type Snippet struct {
	Source     string  `json:"source"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// Store holds the corpus behind an atomic snapshot pointer so Reload never
// exposes a partially-loaded state to concurrent readers.
type Store struct {
	path     string
	snapshot atomic.Pointer[[]Item]
}

// Load reads the corpus file and returns a ready Store. The file is a JSON
// array of items with precomputed embeddings. An empty or absent corpus is
// not an error at query time, but a malformed file is an error here.
func Load(path string) (*Store, error) {
	items, err := readCorpus(path)
	if err != nil {
		return nil, err
	}
	s := &Store{path: path}
	s.snapshot.Store(&items)
	return s, nil
}

// Empty returns a Store with no corpus, used when no corpus path is
// configured. TopRelevant on it returns no snippets.
func Empty() *Store {
	s := &Store{}
	items := []Item{}
	s.snapshot.Store(&items)
	return s
}

// TopRelevant scores every corpus item against the query embedding and
// returns the k best, descending by similarity. Ties keep load order. An
// empty corpus yields an empty slice, never an error.
func (s *Store) TopRelevant(query []float32, k int) []Snippet {
	items := *s.snapshot.Load()
	if len(items) == 0 || len(query) == 0 || k <= 0 {
		return []Snippet{}
	}

	snippets := make([]Snippet, 0, len(items))
	for _, it := range items {
		sim, err := vector.Cosine(query, it.Embedding)
		if err != nil {
			// Dimension mismatch with the query; the item cannot be ranked.
			continue
		}
		snippets = append(snippets, Snippet{
			Source:     it.Source,
			Content:    it.Content,
			Similarity: sim,
		})
	}

	sort.SliceStable(snippets, func(i, j int) bool {
		return snippets[i].Similarity > snippets[j].Similarity
	})

	if k > len(snippets) {
		k = len(snippets)
	}
	return snippets[:k]
}

// Len reports the current corpus size.
func (s *Store) Len() int {
	return len(*s.snapshot.Load())
}

// Reload re-reads the corpus file and swaps it in atomically. On any load
// failure the previous snapshot is retained untouched.
func (s *Store) Reload() error {
	if s.path == "" {
		return fmt.Errorf("knowledge: no corpus path configured")
	}
	items, err := readCorpus(s.path)
	if err != nil {
		return err
	}
	s.snapshot.Store(&items)
	return nil
}

func readCorpus(path string) ([]Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}

	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse corpus: %w", err)
	}
	if items == nil {
		items = []Item{}
	}
	return items, nil
}
