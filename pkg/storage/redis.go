// Package storage provides pipeline artifact storage implementations.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/InsaneAbhishek/inventoryai/pkg/dataset"
)

// RedisStore implements the Store interface using Redis as a backend.
// It enables multi-instance deployments by providing shared storage for
// pipeline artifacts with configurable TTL-based expiration.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
}

// NewRedisStore creates a new Redis-backed store.
//
// Parameters:
//   - addr: Redis server address (e.g., "localhost:6379")
//   - password: Redis password (empty string for no auth)
//   - db: Redis database number (typically 0)
//   - ttl: Artifact expiration duration (0 uses default of 24 hours)
//
// Returns an error if the connection to Redis fails or if parameters are
// invalid.
func NewRedisStore(addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	if addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	if db < 0 {
		return nil, errors.New("redis database number must be >= 0")
	}

	if ttl == 0 {
		ttl = 24 * time.Hour
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &RedisStore{
		client: client,
		ttl:    ttl,
	}, nil
}

// Put stores a pipeline artifact in Redis with TTL-based expiration.
// The key format is "inventoryai:data:{user}:{stage}".
func (r *RedisStore) Put(ctx context.Context, user string, stage Stage, records []dataset.Record) error {
	if !validUser(user) {
		return fmt.Errorf("invalid user identifier %q: only alphanumeric, hyphens, and underscores allowed", user)
	}
	if _, err := ParseStage(string(stage)); err != nil {
		return err
	}

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}

	if err := r.client.Set(ctx, redisKey(user, stage), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store artifact in redis: %w", err)
	}

	return nil
}

// Get retrieves the stored artifact for a user and stage.
//
// Returns:
//   - records: The stored rows (nil if not found)
//   - found: true if an artifact exists, false if not found
//   - error: non-nil if an error occurred (excluding "not found")
func (r *RedisStore) Get(ctx context.Context, user string, stage Stage) ([]dataset.Record, bool, error) {
	if user == "" {
		return nil, false, errors.New("user identifier required")
	}

	data, err := r.client.Get(ctx, redisKey(user, stage)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get artifact from redis: %w", err)
	}

	var records []dataset.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal artifact: %w", err)
	}

	return records, true, nil
}

// Close closes the Redis client connection.
// It is safe to call multiple times (idempotent).
func (r *RedisStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client == nil {
		return nil
	}

	err := r.client.Close()
	r.client = nil
	if err != nil && err.Error() == "redis: client is closed" {
		return nil
	}

	return err
}

// Ping checks the Redis connection health.
// Returns an error if the connection is unavailable.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func redisKey(user string, stage Stage) string {
	return fmt.Sprintf("inventoryai:data:%s:%s", user, stage)
}
