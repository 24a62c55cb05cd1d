package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	claimerrors "github.com/claimsage/claimsage/errors"
	"github.com/claimsage/claimsage/session"
)

// RedisStore implements session.Store using Redis. TTL expiry is delegated
// to Redis key expiration.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string        // Redis server address (e.g., "localhost:6379")
	Password string        // Redis password (if any)
	DB       int           // Redis database number
	Prefix   string        // Key prefix for namespacing
	TTL      time.Duration // Time-to-live for checkpoints (0 means DefaultTTL)
}

// NewRedisStore creates a new Redis-based checkpoint store.
func NewRedisStore(config *RedisConfig) *RedisStore {
	if config == nil {
		config = &RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "claimsage:session:",
		}
	}
	if config.TTL <= 0 {
		config.TTL = session.DefaultTTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	return &RedisStore{
		client: client,
		prefix: config.Prefix,
		ttl:    config.TTL,
	}
}

func (s *RedisStore) key(token string) string {
	return s.prefix + token
}

// Save stores or replaces the checkpoint under its token.
func (s *RedisStore) Save(ctx context.Context, cp *session.Checkpoint) error {
	if cp == nil {
		return fmt.Errorf("checkpoint cannot be nil")
	}
	if cp.Token == "" {
		return fmt.Errorf("checkpoint token cannot be empty: %w", claimerrors.ErrInvalidInput)
	}

	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	if err := s.client.Set(ctx, s.key(cp.Token), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store checkpoint in Redis: %w", err)
	}
	return nil
}

// Load returns the checkpoint for a token.
func (s *RedisStore) Load(ctx context.Context, token string) (*session.Checkpoint, error) {
	data, err := s.client.Get(ctx, s.key(token)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("session %s: %w", token, claimerrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get checkpoint: %w", err)
	}

	var cp session.Checkpoint
	if err := json.Unmarshal([]byte(data), &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

// Delete removes the checkpoint for a token.
func (s *RedisStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// Ping checks if Redis connection is alive
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
