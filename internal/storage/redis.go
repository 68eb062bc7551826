package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	store "github.com/jwebster45206/adventure-engine/pkg/storage"
	"github.com/jwebster45206/adventure-engine/pkg/state"
)

// RedisStorage implements the Storage interface using Redis for session data
// and the filesystem for adventures.
type RedisStorage struct {
	catalog
	client *redis.Client
	logger *slog.Logger
	ttl    time.Duration
}

// Ensure RedisStorage implements Storage interface
var _ store.Storage = (*RedisStorage)(nil)

// NewRedisStorage creates a new Redis storage instance. redisURL is either a
// host:port address or a redis:// URL. A ttl of zero keeps session keys
// forever; unlocks never expire.
func NewRedisStorage(redisURL string, dataDir string, ttl time.Duration, logger *slog.Logger) (*RedisStorage, error) {
	opts := &redis.Options{Addr: redisURL}
	if strings.Contains(redisURL, "://") {
		parsed, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	}
	return NewRedisStorageWithClient(redis.NewClient(opts), dataDir, ttl, logger), nil
}

// NewRedisStorageWithClient wraps an existing client.
func NewRedisStorageWithClient(rdb *redis.Client, dataDir string, ttl time.Duration, logger *slog.Logger) *RedisStorage {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStorage{
		catalog: newCatalog(dataDir, logger),
		client:  rdb,
		logger:  logger,
		ttl:     ttl,
	}
}

// Client exposes the underlying connection for the event broadcaster and effect log.
func (r *RedisStorage) Client() *redis.Client {
	return r.client
}

// Health and lifecycle methods

func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStorage) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

func stateKey(clientID uuid.UUID) string   { return "engine-state:" + clientID.String() }
func sessionKey(clientID uuid.UUID) string { return "engine-session:" + clientID.String() }
func unlocksKey(clientID uuid.UUID) string { return "unlocks:" + clientID.String() }

// Engine state operations (Redis-backed)

func (r *RedisStorage) SaveEngineState(ctx context.Context, clientID uuid.UUID, st state.EngineState) error {
	data, err := json.Marshal(st)
	if err != nil {
		r.logger.Error("Failed to marshal engine state", "client_id", clientID, "error", err)
		return fmt.Errorf("failed to marshal engine state: %w", err)
	}

	if err := r.client.Set(ctx, stateKey(clientID), data, r.ttl).Err(); err != nil {
		r.logger.Error("Failed to save engine state", "client_id", clientID, "error", err)
		return fmt.Errorf("failed to save engine state: %w", err)
	}
	return nil
}

func (r *RedisStorage) LoadEngineState(ctx context.Context, clientID uuid.UUID) (state.EngineState, error) {
	data, err := r.client.Get(ctx, stateKey(clientID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.logger.Debug("Engine state not found", "client_id", clientID)
			return nil, nil // Return nil for not found
		}
		r.logger.Error("Failed to load engine state", "client_id", clientID, "error", err)
		return nil, fmt.Errorf("failed to load engine state: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var st state.EngineState
	if err := json.Unmarshal(data, &st); err != nil {
		r.logger.Error("Failed to unmarshal engine state", "client_id", clientID, "error", err)
		return nil, fmt.Errorf("%w: %v", state.ErrCorrupt, err)
	}
	return st, nil
}

func (r *RedisStorage) SaveSessionID(ctx context.Context, clientID uuid.UUID, sessionID string) error {
	if err := r.client.Set(ctx, sessionKey(clientID), sessionID, r.ttl).Err(); err != nil {
		r.logger.Error("Failed to save session id", "client_id", clientID, "error", err)
		return fmt.Errorf("failed to save session id: %w", err)
	}
	return nil
}

func (r *RedisStorage) LoadSessionID(ctx context.Context, clientID uuid.UUID) (string, error) {
	id, err := r.client.Get(ctx, sessionKey(clientID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("failed to load session id: %w", err)
	}
	return id, nil
}

func (r *RedisStorage) DeleteSession(ctx context.Context, clientID uuid.UUID) error {
	if err := r.client.Del(ctx, stateKey(clientID), sessionKey(clientID)).Err(); err != nil {
		r.logger.Error("Failed to delete session", "client_id", clientID, "error", err)
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Unlock operations (Redis sets)

func (r *RedisStorage) AddUnlock(ctx context.Context, clientID uuid.UUID, id string) (bool, error) {
	added, err := r.client.SAdd(ctx, unlocksKey(clientID), id).Result()
	if err != nil {
		return false, fmt.Errorf("failed to add unlock: %w", err)
	}
	return added > 0, nil
}

func (r *RedisStorage) IsUnlocked(ctx context.Context, clientID uuid.UUID, id string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, unlocksKey(clientID), id).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check unlock: %w", err)
	}
	return ok, nil
}

func (r *RedisStorage) ListUnlocks(ctx context.Context, clientID uuid.UUID) ([]string, error) {
	ids, err := r.client.SMembers(ctx, unlocksKey(clientID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list unlocks: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *RedisStorage) ClearUnlocks(ctx context.Context, clientID uuid.UUID) error {
	if err := r.client.Del(ctx, unlocksKey(clientID)).Err(); err != nil {
		return fmt.Errorf("failed to clear unlocks: %w", err)
	}
	return nil
}
