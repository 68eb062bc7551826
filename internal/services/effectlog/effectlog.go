// Package effectlog keeps the effects fired for each client until a client
// drains them, for clients that poll instead of holding an event stream open.
package effectlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultMaxEntries bounds each client's log; older entries are dropped.
const DefaultMaxEntries = 100

// Entry is one fired effect.
type Entry struct {
	Action    string    `json:"action"`
	Payload   string    `json:"payload,omitempty"`
	Turn      int       `json:"turn"`
	SessionID string    `json:"session_id,omitempty"`
	FiredAt   time.Time `json:"fired_at"`
}

// Log stores fired effects per client.
type Log interface {
	Append(ctx context.Context, clientID uuid.UUID, e Entry) error
	// Drain removes and returns every entry, oldest first.
	Drain(ctx context.Context, clientID uuid.UUID) ([]Entry, error)
	Depth(ctx context.Context, clientID uuid.UUID) (int, error)
	Clear(ctx context.Context, clientID uuid.UUID) error
}

func logKey(clientID uuid.UUID) string {
	return fmt.Sprintf("effects:%s", clientID.String())
}

// RedisLog keeps each client's entries in a Redis list.
type RedisLog struct {
	rdb        *redis.Client
	maxEntries int64
}

var _ Log = (*RedisLog)(nil)

func NewRedisLog(rdb *redis.Client, maxEntries int) *RedisLog {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &RedisLog{rdb: rdb, maxEntries: int64(maxEntries)}
}

// Append adds an entry to the end of the client's log
func (l *RedisLog) Append(ctx context.Context, clientID uuid.UUID, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to serialize effect: %w", err)
	}

	key := logKey(clientID)
	pipe := l.rdb.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -l.maxEntries, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append effect: %w", err)
	}
	return nil
}

func (l *RedisLog) Drain(ctx context.Context, clientID uuid.UUID) ([]Entry, error) {
	key := logKey(clientID)

	pipe := l.rdb.TxPipeline()
	rangeCmd := pipe.LRange(ctx, key, 0, -1)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to drain effects: %w", err)
	}

	raw := rangeCmd.Val()
	entries := make([]Entry, 0, len(raw))
	for _, r := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			return nil, fmt.Errorf("failed to parse effect: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (l *RedisLog) Depth(ctx context.Context, clientID uuid.UUID) (int, error) {
	count, err := l.rdb.LLen(ctx, logKey(clientID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get effect log depth: %w", err)
	}
	return int(count), nil
}

func (l *RedisLog) Clear(ctx context.Context, clientID uuid.UUID) error {
	if err := l.rdb.Del(ctx, logKey(clientID)).Err(); err != nil {
		return fmt.Errorf("failed to clear effect log: %w", err)
	}
	return nil
}

// MemoryLog keeps entries in process memory. Used with the SQLite backend.
type MemoryLog struct {
	mu         sync.Mutex
	entries    map[uuid.UUID][]Entry
	maxEntries int
}

var _ Log = (*MemoryLog)(nil)

func NewMemoryLog(maxEntries int) *MemoryLog {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &MemoryLog{entries: make(map[uuid.UUID][]Entry), maxEntries: maxEntries}
}

func (l *MemoryLog) Append(ctx context.Context, clientID uuid.UUID, e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	list := append(l.entries[clientID], e)
	if len(list) > l.maxEntries {
		list = list[len(list)-l.maxEntries:]
	}
	l.entries[clientID] = list
	return nil
}

func (l *MemoryLog) Drain(ctx context.Context, clientID uuid.UUID) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := append([]Entry{}, l.entries[clientID]...)
	delete(l.entries, clientID)
	return out, nil
}

func (l *MemoryLog) Depth(ctx context.Context, clientID uuid.UUID) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries[clientID]), nil
}

func (l *MemoryLog) Clear(ctx context.Context, clientID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, clientID)
	return nil
}
