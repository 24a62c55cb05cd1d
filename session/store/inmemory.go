// Package store provides session.Store implementations backed by memory,
// Redis, and MongoDB.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	claimerrors "github.com/claimsage/claimsage/errors"
	"github.com/claimsage/claimsage/session"
)

type inMemoryEntry struct {
	checkpoint *session.Checkpoint
	expiresAt  time.Time
}

// InMemoryStore implements session.Store using in-memory storage with TTL
// expiry. Expired entries are dropped lazily on access and by a background
// sweeper.
type InMemoryStore struct {
	entries map[string]inMemoryEntry
	ttl     time.Duration
	mu      sync.RWMutex
	done    chan struct{}
	once    sync.Once
}

// NewInMemoryStore creates an in-memory checkpoint store. A ttl of 0 falls
// back to session.DefaultTTL.
func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	if ttl <= 0 {
		ttl = session.DefaultTTL
	}
	s := &InMemoryStore{
		entries: make(map[string]inMemoryEntry),
		ttl:     ttl,
		done:    make(chan struct{}),
	}
	go s.sweep()
	return s
}

func (s *InMemoryStore) sweep() {
	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for token, e := range s.entries {
				if now.After(e.expiresAt) {
					delete(s.entries, token)
				}
			}
			s.mu.Unlock()
		}
	}
}

// Save stores or replaces the checkpoint under its token.
func (s *InMemoryStore) Save(ctx context.Context, cp *session.Checkpoint) error {
	if cp == nil {
		return fmt.Errorf("checkpoint cannot be nil")
	}
	if cp.Token == "" {
		return fmt.Errorf("checkpoint token cannot be empty: %w", claimerrors.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *cp
	s.entries[cp.Token] = inMemoryEntry{
		checkpoint: &clone,
		expiresAt:  time.Now().Add(s.ttl),
	}
	return nil
}

// Load returns the checkpoint for a token.
func (s *InMemoryStore) Load(ctx context.Context, token string) (*session.Checkpoint, error) {
	s.mu.RLock()
	e, ok := s.entries[token]
	s.mu.RUnlock()

	if !ok || time.Now().After(e.expiresAt) {
		if ok {
			s.mu.Lock()
			delete(s.entries, token)
			s.mu.Unlock()
		}
		return nil, fmt.Errorf("session %s: %w", token, claimerrors.ErrNotFound)
	}

	clone := *e.checkpoint
	return &clone, nil
}

// Delete removes the checkpoint for a token.
func (s *InMemoryStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, token)
	return nil
}

// Count returns the number of live checkpoints.
func (s *InMemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close stops the background sweeper.
func (s *InMemoryStore) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}
