// Package session defines resumable pipeline checkpoints and the store
// abstraction they persist through.
package session

import (
	"context"
	"encoding/json"
	"time"
)

// DefaultTTL is how long a checkpoint survives without updates before a
// store may expire it.
const DefaultTTL = 30 * time.Minute

// Checkpoint is a snapshot of one pipeline run, saved after every completed
// node so an interrupted run can be resumed under its session token.
type Checkpoint struct {
	Token     string          `json:"token" bson:"_id"`
	Question  string          `json:"question" bson:"question"`
	Node      string          `json:"node" bson:"node"`
	Iteration int             `json:"iteration" bson:"iteration"`
	State     json.RawMessage `json:"state" bson:"state"`
	CreatedAt time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" bson:"updated_at"`
}

// Store persists checkpoints keyed by session token.
type Store interface {
	// Save stores or replaces the checkpoint under its token.
	Save(ctx context.Context, cp *Checkpoint) error

	// Load returns the checkpoint for a token. A missing or expired token
	// yields errors.ErrNotFound.
	Load(ctx context.Context, token string) (*Checkpoint, error)

	// Delete removes the checkpoint for a token. Deleting an absent token
	// is not an error.
	Delete(ctx context.Context, token string) error
}
