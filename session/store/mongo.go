package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	claimerrors "github.com/claimsage/claimsage/errors"
	"github.com/claimsage/claimsage/session"
)

// MongoStore implements session.Store using MongoDB. TTL expiry is delegated
// to a TTL index on updated_at.
type MongoStore struct {
	client     *mongo.Client
	db         *mongo.Database
	collection *mongo.Collection
}

// MongoConfig holds MongoDB connection configuration
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
	TTL        time.Duration // Time-to-live for checkpoints (0 means DefaultTTL)
}

// DefaultMongoConfig returns default MongoDB configuration
func DefaultMongoConfig() *MongoConfig {
	return &MongoConfig{
		URI:        "mongodb://localhost:27017",
		Database:   "claimsage",
		Collection: "checkpoints",
	}
}

// NewMongoStore creates a new MongoDB-based checkpoint store.
func NewMongoStore(config *MongoConfig) (*MongoStore, error) {
	if config == nil {
		config = DefaultMongoConfig()
	}
	if config.TTL <= 0 {
		config.TTL = session.DefaultTTL
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(config.Database)
	collection := db.Collection(config.Collection)

	store := &MongoStore{
		client:     client,
		db:         db,
		collection: collection,
	}

	if err := store.createIndexes(context.Background(), config.TTL); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return store, nil
}

func (s *MongoStore) createIndexes(ctx context.Context, ttl time.Duration) error {
	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "updated_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(ttl / time.Second)),
	}

	_, err := s.collection.Indexes().CreateOne(ctx, indexModel)
	return err
}

// Save stores or replaces the checkpoint under its token.
func (s *MongoStore) Save(ctx context.Context, cp *session.Checkpoint) error {
	if cp == nil {
		return fmt.Errorf("checkpoint cannot be nil")
	}
	if cp.Token == "" {
		return fmt.Errorf("checkpoint token cannot be empty: %w", claimerrors.ErrInvalidInput)
	}

	now := time.Now()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now

	opts := options.Replace().SetUpsert(true)
	filter := bson.M{"_id": cp.Token}

	if _, err := s.collection.ReplaceOne(ctx, filter, cp, opts); err != nil {
		return fmt.Errorf("failed to save checkpoint to MongoDB: %w", err)
	}
	return nil
}

// Load returns the checkpoint for a token.
func (s *MongoStore) Load(ctx context.Context, token string) (*session.Checkpoint, error) {
	var cp session.Checkpoint
	err := s.collection.FindOne(ctx, bson.M{"_id": token}).Decode(&cp)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("session %s: %w", token, claimerrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get checkpoint: %w", err)
	}
	return &cp, nil
}

// Delete removes the checkpoint for a token.
func (s *MongoStore) Delete(ctx context.Context, token string) error {
	if _, err := s.collection.DeleteOne(ctx, bson.M{"_id": token}); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// Ping checks if MongoDB connection is alive
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close closes the MongoDB connection
func (s *MongoStore) Close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.client.Disconnect(ctx)
}
