// Package retrieval defines the evidence-store and embedder abstractions used
// by the question-answering pipeline, together with the ranking math shared by
// the store implementations.
package retrieval

import (
	"context"
	"math"

	"github.com/claimsage/claimsage/evidence"
)

// Mode selects the retrieval strategy for one query.
type Mode string

const (
	// ModeSemantic retrieves a wide candidate set and reranks it for
	// diversity with maximal marginal relevance.
	ModeSemantic Mode = "semantic"
	// ModeSimilarity retrieves by plain cosine similarity.
	ModeSimilarity Mode = "similarity"
	// ModeHybrid unions the semantic and similarity result sets.
	ModeHybrid Mode = "hybrid"
)

// Retrieval depths per mode.
const (
	SemanticK      = 6
	SemanticFetchK = 24
	SimilarityK    = 8
	MMRLambda      = 0.5
)

// ParseMode maps a strategy name onto a Mode, defaulting to semantic for
// anything unrecognized.
func ParseMode(s string) Mode {
	switch Mode(s) {
	case ModeSimilarity:
		return ModeSimilarity
	case ModeHybrid:
		return ModeHybrid
	default:
		return ModeSemantic
	}
}

// Store is the evidence store queried by the pipeline.
type Store interface {
	// Retrieve returns the passages matching the query under the given
	// mode. An empty result is not an error.
	Retrieve(ctx context.Context, query string, mode Mode) ([]evidence.Passage, error)
}

// Indexer is implemented by stores that can ingest passages.
type Indexer interface {
	// Index embeds and stores the given passages.
	Index(ctx context.Context, passages []evidence.Passage) error
}

// Embedder converts text into vector embeddings.
type Embedder interface {
	// Embed converts text to a vector embedding
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts multiple texts to embeddings
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension return number of embedding dimensions
	Dimension() int
}

// MergeHybrid unions two result sets, deduplicating by (source, page) with
// the semantic results first.
func MergeHybrid(semantic, similarity []evidence.Passage) []evidence.Passage {
	merged := make([]evidence.Passage, 0, len(semantic)+len(similarity))
	merged = append(merged, semantic...)
	merged = append(merged, similarity...)
	return evidence.Dedupe(merged)
}

// CosineSimilarity calculates the cosine similarity between two vectors.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := 0; i < len(a); i++ {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return float32(dotProduct / (math.Sqrt(normA)*math.Sqrt(normB) + 1e-8))
}

// Normalize scales the vector to unit length (L2 norm).
func Normalize(vec []float32) []float32 {
	if len(vec) == 0 {
		return vec
	}
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}
