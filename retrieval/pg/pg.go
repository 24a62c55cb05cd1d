// Package pg provides a PostgreSQL/pgvector-backed evidence store.
package pg

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/claimsage/claimsage/config"
	claimerrors "github.com/claimsage/claimsage/errors"
	"github.com/claimsage/claimsage/evidence"
	"github.com/claimsage/claimsage/retrieval"
)

// Config holds pgvector connection settings.
type Config struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	SSLMode   string
	Dimension int    // Embedding dimension (default: 1536 for OpenAI)
	TableName string // Table name (default: passages)
}

// DefaultConfig returns default pgvector configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:      "127.0.0.1",
		Port:      5432,
		User:      "postgres",
		Password:  "postgres",
		DBName:    "claimsage",
		SSLMode:   "disable",
		Dimension: 1536,
		TableName: "passages",
	}
}

// Store implements retrieval.Store and retrieval.Indexer on PostgreSQL with
// the pgvector extension.
type Store struct {
	db        *sql.DB
	embedder  retrieval.Embedder
	dimension int
	tableName string
}

// New connects to PostgreSQL, enables pgvector, and creates the passages
// table if needed.
func New(cfg *Config, embedder retrieval.Embedder) (*Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := config.ValidatePostgresConfig(cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	store := &Store{
		db:        db,
		embedder:  embedder,
		dimension: cfg.Dimension,
		tableName: cfg.TableName,
	}

	if err := store.setup(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to setup pgvector: %w", err)
	}

	return store, nil
}

func (s *Store) setup(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTableSQL := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id VARCHAR(255) PRIMARY KEY,
		content TEXT NOT NULL,
		source TEXT NOT NULL,
		page TEXT NOT NULL,
		embedding vector(%d) NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`, s.tableName, s.dimension)

	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	return nil
}

// Index embeds and upserts the given passages. Passage identity is derived
// from the content and its (source, page) location, so re-indexing the same
// document is idempotent.
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

	query := fmt.Sprintf(`
	INSERT INTO %s (id, content, source, page, embedding)
	VALUES ($1, $2, $3, $4, $5::vector)
	ON CONFLICT (id) DO UPDATE SET
		content = EXCLUDED.content,
		embedding = EXCLUDED.embedding,
		created_at = CURRENT_TIMESTAMP
	`, s.tableName)

	for i, p := range passages {
		if len(vectors[i]) != s.dimension {
			return fmt.Errorf("embedding dimension mismatch: expected %d, got %d", s.dimension, len(vectors[i]))
		}
		_, err := s.db.ExecContext(ctx, query, passageID(p), p.Content, p.Source, p.Page, vectorToString(vectors[i]))
		if err != nil {
			return fmt.Errorf("failed to add passage: %w", err)
		}
	}

	return nil
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
	if len(queryVec) != s.dimension {
		return nil, fmt.Errorf("query vector dimension mismatch: expected %d, got %d", s.dimension, len(queryVec))
	}

	fetch := retrieval.SimilarityK
	if mode == retrieval.ModeSemantic {
		fetch = retrieval.SemanticFetchK
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
	SELECT content, source, page, embedding
	FROM %s
	ORDER BY embedding <-> $1::vector
	LIMIT $2
	`, s.tableName), vectorToString(queryVec), fetch)
	if err != nil {
		return nil, fmt.Errorf("%w: search passages: %v", claimerrors.ErrUnavailable, err)
	}
	defer rows.Close()

	var passages []evidence.Passage
	var candidates [][]float32
	for rows.Next() {
		var content, source, page, vectorStr string
		if err := rows.Scan(&content, &source, &page, &vectorStr); err != nil {
			return nil, fmt.Errorf("failed to scan passage: %w", err)
		}
		vec, err := stringToVector(vectorStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse vector for passage %s p.%s: %w", source, page, err)
		}
		passages = append(passages, evidence.Passage{Content: content, Source: source, Page: page})
		candidates = append(candidates, vec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating passages: %w", err)
	}

	if mode == retrieval.ModeSimilarity {
		return passages, nil
	}

	out := make([]evidence.Passage, 0, retrieval.SemanticK)
	for _, idx := range retrieval.SelectMMR(queryVec, candidates, retrieval.SemanticK, retrieval.MMRLambda) {
		out = append(out, passages[idx])
	}
	return out, nil
}

// Count returns the number of indexed passages.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", s.tableName)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count passages: %w", err)
	}
	return count, nil
}

// Clear removes all indexed passages.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s", s.tableName)); err != nil {
		return fmt.Errorf("failed to clear passages: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func passageID(p evidence.Passage) string {
	sum := sha1.Sum([]byte(p.Source + "\x00" + p.Page + "\x00" + p.Content))
	return hex.EncodeToString(sum[:])
}

func vectorToString(vec []float32) string {
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = fmt.Sprintf("%f", v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func stringToVector(str string) ([]float32, error) {
	str = strings.TrimPrefix(str, "[")
	str = strings.TrimSuffix(str, "]")
	parts := strings.Split(str, ",")

	vec := make([]float32, 0, len(parts))
	for i, part := range parts {
		var v float32
		n, err := fmt.Sscanf(strings.TrimSpace(part), "%f", &v)
		if err != nil || n != 1 {
			return nil, fmt.Errorf("failed to parse vector component at index %d: %q", i, part)
		}
		vec = append(vec, v)
	}
	return vec, nil
}
