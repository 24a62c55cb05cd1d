package inmemory

import (
	"context"
	"fmt"
	"testing"

	"github.com/claimsage/claimsage/evidence"
	"github.com/claimsage/claimsage/retrieval"
)

// stubEmbedder maps known texts onto fixed vectors.
type stubEmbedder struct {
	vectors map[string][]float32
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, ok := s.vectors[text]
	if !ok {
		return nil, fmt.Errorf("no vector for %q", text)
	}
	return vec, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (s *stubEmbedder) Dimension() int { return 2 }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	emb := &stubEmbedder{vectors: map[string][]float32{
		"water damage":  {1, 0},
		"flood clause":  {0.95, 0.05},
		"fire clause":   {0, 1},
		"theft clause":  {0.5, 0.5},
		"water damage?": {1, 0},
	}}
	store := New(emb)
	err := store.Index(context.Background(), []evidence.Passage{
		{Content: "flood clause", Source: "policy.pdf", Page: "3"},
		{Content: "fire clause", Source: "policy.pdf", Page: "9"},
		{Content: "theft clause", Source: "policy.pdf", Page: "12"},
	})
	if err != nil {
		t.Fatalf("Index error: %v", err)
	}
	return store
}

func TestSimilarityRanksByCosine(t *testing.T) {
	store := newTestStore(t)

	out, err := store.Retrieve(context.Background(), "water damage?", retrieval.ModeSimilarity)
	if err != nil {
		t.Fatalf("Retrieve error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected all 3 passages, got %d", len(out))
	}
	if out[0].Content != "flood clause" {
		t.Fatalf("expected closest passage first, got %q", out[0].Content)
	}
}

func TestSemanticReturnsAtMostK(t *testing.T) {
	store := newTestStore(t)

	out, err := store.Retrieve(context.Background(), "water damage?", retrieval.ModeSemantic)
	if err != nil {
		t.Fatalf("Retrieve error: %v", err)
	}
	if len(out) == 0 || len(out) > retrieval.SemanticK {
		t.Fatalf("expected between 1 and %d passages, got %d", retrieval.SemanticK, len(out))
	}
	if out[0].Content != "flood clause" {
		t.Fatalf("expected most relevant passage first, got %q", out[0].Content)
	}
}

func TestHybridDeduplicatesBySourcePage(t *testing.T) {
	store := newTestStore(t)

	out, err := store.Retrieve(context.Background(), "water damage?", retrieval.ModeHybrid)
	if err != nil {
		t.Fatalf("Retrieve error: %v", err)
	}

	seen := map[evidence.Key]bool{}
	for _, p := range out {
		if seen[p.Key()] {
			t.Fatalf("duplicate (source, page) in hybrid results: %v", p.Key())
		}
		seen[p.Key()] = true
	}
}

func TestRetrieveEmptyStore(t *testing.T) {
	store := New(&stubEmbedder{vectors: map[string][]float32{"q": {1, 0}}})

	out, err := store.Retrieve(context.Background(), "q", retrieval.ModeSemantic)
	if err != nil {
		t.Fatalf("Retrieve error: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected no passages, got %d", len(out))
	}
}
