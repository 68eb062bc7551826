package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	store "github.com/jwebster45206/adventure-engine/pkg/storage"
	"github.com/jwebster45206/adventure-engine/pkg/state"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS engine_state (
		client_id TEXT PRIMARY KEY,
		state_json TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS engine_session (
		client_id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS unlocks (
		client_id TEXT NOT NULL,
		unlock_id TEXT NOT NULL,
		unlocked_at INTEGER NOT NULL,
		PRIMARY KEY (client_id, unlock_id)
	)`,
}

// SQLiteStorage implements the Storage interface with a local SQLite file for
// session data and the filesystem for adventures.
type SQLiteStorage struct {
	catalog
	sqlDB  *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Ensure SQLiteStorage implements Storage interface
var _ store.Storage = (*SQLiteStorage)(nil)

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
func OpenSQLite(path string, dataDir string, logger *slog.Logger) (*SQLiteStorage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(filepath.Clean(path)), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	for _, stmt := range sqliteSchema {
		if _, err := sqlDB.Exec(stmt); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	logger.Info("SQLite storage opened", "path", path)
	return &SQLiteStorage{
		catalog: newCatalog(dataDir, logger),
		sqlDB:   sqlDB,
		logger:  logger,
		now:     time.Now,
	}, nil
}

func (s *SQLiteStorage) Ping(ctx context.Context) error {
	if err := s.sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ping failed: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *SQLiteStorage) SaveEngineState(ctx context.Context, clientID uuid.UUID, st state.EngineState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal engine state: %w", err)
	}

	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO engine_state (client_id, state_json, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(client_id) DO UPDATE SET
			state_json = excluded.state_json,
			updated_at = excluded.updated_at`,
		clientID.String(), string(data), s.now().UnixMilli(),
	)
	if err != nil {
		s.logger.Error("Failed to save engine state", "client_id", clientID, "error", err)
		return fmt.Errorf("failed to save engine state: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) LoadEngineState(ctx context.Context, clientID uuid.UUID) (state.EngineState, error) {
	var data string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT state_json FROM engine_state WHERE client_id = ?`,
		clientID.String(),
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load engine state: %w", err)
	}

	var st state.EngineState
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		s.logger.Error("Failed to unmarshal engine state", "client_id", clientID, "error", err)
		return nil, fmt.Errorf("%w: %v", state.ErrCorrupt, err)
	}
	return st, nil
}

func (s *SQLiteStorage) SaveSessionID(ctx context.Context, clientID uuid.UUID, sessionID string) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO engine_session (client_id, session_id, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(client_id) DO UPDATE SET
			session_id = excluded.session_id,
			updated_at = excluded.updated_at`,
		clientID.String(), sessionID, s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save session id: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) LoadSessionID(ctx context.Context, clientID uuid.UUID) (string, error) {
	var id string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT session_id FROM engine_session WHERE client_id = ?`,
		clientID.String(),
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to load session id: %w", err)
	}
	return id, nil
}

func (s *SQLiteStorage) DeleteSession(ctx context.Context, clientID uuid.UUID) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{
		`DELETE FROM engine_state WHERE client_id = ?`,
		`DELETE FROM engine_session WHERE client_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, clientID.String()); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) AddUnlock(ctx context.Context, clientID uuid.UUID, id string) (bool, error) {
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO unlocks (client_id, unlock_id, unlocked_at) VALUES (?, ?, ?)
		 ON CONFLICT(client_id, unlock_id) DO NOTHING`,
		clientID.String(), id, s.now().UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to add unlock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to add unlock: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStorage) IsUnlocked(ctx context.Context, clientID uuid.UUID, id string) (bool, error) {
	var n int
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM unlocks WHERE client_id = ? AND unlock_id = ?`,
		clientID.String(), id,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check unlock: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStorage) ListUnlocks(ctx context.Context, clientID uuid.UUID) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT unlock_id FROM unlocks WHERE client_id = ? ORDER BY unlock_id`,
		clientID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list unlocks: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan unlock: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list unlocks: %w", err)
	}
	return ids, nil
}

func (s *SQLiteStorage) ClearUnlocks(ctx context.Context, clientID uuid.UUID) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM unlocks WHERE client_id = ?`, clientID.String()); err != nil {
		return fmt.Errorf("failed to clear unlocks: %w", err)
	}
	return nil
}
