// Package inmemory provides an in-memory evidence store, mainly for tests and
// small corpora.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/claimsage/claimsage/evidence"
	"github.com/claimsage/claimsage/retrieval"
)

type entry struct {
	passage evidence.Passage
	vec     []float32
}

// Store implements retrieval.Store and retrieval.Indexer over an in-memory
// slice of embedded passages.
type Store struct {
	embedder retrieval.Embedder
	entries  []entry
	mu       sync.RWMutex
}

// New creates an empty in-memory store backed by the given embedder.
func New(embedder retrieval.Embedder) *Store {
	return &Store{embedder: embedder}
}

// Index embeds and stores the given passages.
func (s *Store) Index(ctx context.Context, passages []evidence.Passage) error {
	if len(passages) == 0 {
		return nil
	}

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Content
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed passages: %w", err)
	}
	if len(vectors) != len(passages) {
		return fmt.Errorf("expected %d embeddings, got %d", len(passages), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range passages {
		s.entries = append(s.entries, entry{passage: p, vec: vectors[i]})
	}
	return nil
}

// Count returns the number of indexed passages.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Retrieve returns the passages matching the query under the given mode.
func (s *Store) Retrieve(ctx context.Context, query string, mode retrieval.Mode) ([]evidence.Passage, error) {
	if mode == retrieval.ModeHybrid {
		semantic, err := s.Retrieve(ctx, query, retrieval.ModeSemantic)
		if err != nil {
			return nil, err
		}
		similarity, err := s.Retrieve(ctx, query, retrieval.ModeSimilarity)
		if err != nil {
			return nil, err
		}
		return retrieval.MergeHybrid(semantic, similarity), nil
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.entries) == 0 {
		return nil, nil
	}

	type scored struct {
		entry      entry
		similarity float32
	}
	results := make([]scored, 0, len(s.entries))
	for _, e := range s.entries {
		if len(e.vec) != len(queryVec) {
			continue
		}
		results = append(results, scored{
			entry:      e,
			similarity: retrieval.CosineSimilarity(queryVec, e.vec),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].similarity > results[j].similarity
	})

	if mode == retrieval.ModeSimilarity {
		limit := retrieval.SimilarityK
		if limit > len(results) {
			limit = len(results)
		}
		out := make([]evidence.Passage, limit)
		for i := 0; i < limit; i++ {
			out[i] = results[i].entry.passage
		}
		return out, nil
	}

	// Semantic: take a wide candidate set, then rerank for diversity.
	fetch := retrieval.SemanticFetchK
	if fetch > len(results) {
		fetch = len(results)
	}
	candidates := make([][]float32, fetch)
	for i := 0; i < fetch; i++ {
		candidates[i] = results[i].entry.vec
	}

	out := make([]evidence.Passage, 0, retrieval.SemanticK)
	for _, idx := range retrieval.SelectMMR(queryVec, candidates, retrieval.SemanticK, retrieval.MMRLambda) {
		out = append(out, results[idx].entry.passage)
	}
	return out, nil
}
