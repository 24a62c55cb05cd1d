package store

import (
	"os"
	"strconv"
	"time"

	"github.com/claimsage/claimsage/session"
)

// RedisConfigFromEnv loads Redis session configuration from environment variables
func RedisConfigFromEnv() *RedisConfig {
	return &RedisConfig{
		Addr:     getEnv("REDIS_SESSION_ADDR", "localhost:6379"),
		Password: getEnv("REDIS_SESSION_PASSWORD", ""),
		DB:       getEnvInt("REDIS_SESSION_DB", 0),
		Prefix:   getEnv("REDIS_SESSION_PREFIX", "claimsage:session:"),
		TTL:      getEnvDuration("REDIS_SESSION_TTL", session.DefaultTTL),
	}
}

// MongoConfigFromEnv loads MongoDB session configuration from environment variables
func MongoConfigFromEnv() *MongoConfig {
	return &MongoConfig{
		URI:        getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		Database:   getEnv("MONGODB_DB", "claimsage"),
		Collection: getEnv("MONGODB_COLLECTION", "checkpoints"),
		TTL:        getEnvDuration("MONGODB_SESSION_TTL", session.DefaultTTL),
	}
}

// Helper functions for environment variable reading

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
