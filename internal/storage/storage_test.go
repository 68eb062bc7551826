package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	store "github.com/jwebster45206/adventure-engine/pkg/storage"
	"github.com/jwebster45206/adventure-engine/pkg/state"
)

const sampleAdventure = `---
title: Sky Island
description: Float above the clouds.
resources:
  - id: hp
    label: HP
    max: 20
    initial: 20
---
The wind howls.
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeAdventures(t *testing.T) string {
	t.Helper()
	dataDir := t.TempDir()
	dir := filepath.Join(dataDir, "adventures")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sky-island.mdoc"), []byte(sampleAdventure), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.mdoc"), []byte("no frontmatter here"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	return dataDir
}

func setupRedis(t *testing.T, dataDir string, ttl time.Duration) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStorageWithClient(rdb, dataDir, ttl, testLogger())
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func setupSQLite(t *testing.T, dataDir string) *SQLiteStorage {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "engine.db"), dataDir, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func backends(t *testing.T) map[string]store.Storage {
	dataDir := writeAdventures(t)
	redisStorage, _ := setupRedis(t, dataDir, time.Hour)
	return map[string]store.Storage{
		"redis":  redisStorage,
		"sqlite": setupSQLite(t, dataDir),
		"mock":   store.NewMockStorage(),
	}
}

func TestStorage_EngineStateRoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clientID := uuid.New()

			loaded, err := s.LoadEngineState(ctx, clientID)
			require.NoError(t, err)
			assert.Nil(t, loaded, "missing state loads as nil")

			st := state.New(time.UnixMilli(1748779200000)).With("hp", 12).With("trust", 3)
			require.NoError(t, s.SaveEngineState(ctx, clientID, st))

			loaded, err = s.LoadEngineState(ctx, clientID)
			require.NoError(t, err)
			assert.Equal(t, st, loaded)

			// Overwrite replaces the whole state.
			require.NoError(t, s.SaveEngineState(ctx, clientID, state.EngineState{}))
			loaded, err = s.LoadEngineState(ctx, clientID)
			require.NoError(t, err)
			assert.Empty(t, loaded)
		})
	}
}

func TestStorage_SessionID(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clientID := uuid.New()

			id, err := s.LoadSessionID(ctx, clientID)
			require.NoError(t, err)
			assert.Empty(t, id)

			require.NoError(t, s.SaveSessionID(ctx, clientID, "guest-sky-island"))
			require.NoError(t, s.SaveEngineState(ctx, clientID, state.EngineState{"hp": 1}))

			id, err = s.LoadSessionID(ctx, clientID)
			require.NoError(t, err)
			assert.Equal(t, "guest-sky-island", id)

			require.NoError(t, s.DeleteSession(ctx, clientID))
			id, err = s.LoadSessionID(ctx, clientID)
			require.NoError(t, err)
			assert.Empty(t, id)
			st, err := s.LoadEngineState(ctx, clientID)
			require.NoError(t, err)
			assert.Nil(t, st)
		})
	}
}

func TestStorage_Unlocks(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clientID := uuid.New()
			other := uuid.New()

			added, err := s.AddUnlock(ctx, clientID, "secret-cave")
			require.NoError(t, err)
			assert.True(t, added)

			added, err = s.AddUnlock(ctx, clientID, "secret-cave")
			require.NoError(t, err)
			assert.False(t, added, "second add is not new")

			_, err = s.AddUnlock(ctx, clientID, "dragon-egg")
			require.NoError(t, err)

			ok, err := s.IsUnlocked(ctx, clientID, "secret-cave")
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = s.IsUnlocked(ctx, other, "secret-cave")
			require.NoError(t, err)
			assert.False(t, ok)

			ids, err := s.ListUnlocks(ctx, clientID)
			require.NoError(t, err)
			assert.Equal(t, []string{"dragon-egg", "secret-cave"}, ids)

			require.NoError(t, s.ClearUnlocks(ctx, clientID))
			ids, err = s.ListUnlocks(ctx, clientID)
			require.NoError(t, err)
			assert.Empty(t, ids)
		})
	}
}

func TestStorage_CorruptState(t *testing.T) {
	dataDir := writeAdventures(t)
	ctx := context.Background()
	clientID := uuid.New()

	t.Run("redis", func(t *testing.T) {
		s, mr := setupRedis(t, dataDir, 0)
		require.NoError(t, mr.Set(stateKey(clientID), "{not json"))

		_, err := s.LoadEngineState(ctx, clientID)
		assert.ErrorIs(t, err, state.ErrCorrupt)
	})

	t.Run("sqlite", func(t *testing.T) {
		s := setupSQLite(t, dataDir)
		_, err := s.sqlDB.Exec(`INSERT INTO engine_state (client_id, state_json, updated_at) VALUES (?, ?, 0)`, clientID.String(), "[1,2")
		require.NoError(t, err)

		_, err = s.LoadEngineState(ctx, clientID)
		assert.ErrorIs(t, err, state.ErrCorrupt)
	})
}

func TestRedisStorage_Keys(t *testing.T) {
	s, mr := setupRedis(t, "", time.Hour)
	ctx := context.Background()
	clientID := uuid.New()

	require.NoError(t, s.SaveEngineState(ctx, clientID, state.EngineState{"hp": 3}))
	require.NoError(t, s.SaveSessionID(ctx, clientID, "guest-sky-island"))
	_, err := s.AddUnlock(ctx, clientID, "secret-cave")
	require.NoError(t, err)

	assert.True(t, mr.Exists("engine-state:"+clientID.String()))
	assert.True(t, mr.Exists("engine-session:"+clientID.String()))
	assert.True(t, mr.Exists("unlocks:"+clientID.String()))

	raw, err := mr.Get("engine-state:" + clientID.String())
	require.NoError(t, err)
	assert.JSONEq(t, `{"hp":3}`, raw)

	assert.Equal(t, time.Hour, mr.TTL("engine-state:"+clientID.String()))
	assert.Equal(t, time.Duration(0), mr.TTL("unlocks:"+clientID.String()))

	mr.FastForward(2 * time.Hour)
	st, err := s.LoadEngineState(ctx, clientID)
	require.NoError(t, err)
	assert.Nil(t, st)
	ok, err := s.IsUnlocked(ctx, clientID, "secret-cave")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisStorage_Ping(t *testing.T) {
	s, mr := setupRedis(t, "", 0)
	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.WaitForConnection(ctx))

	mr.Close()
	assert.Error(t, s.Ping(ctx))
}

func TestSQLiteStorage_RequiresPath(t *testing.T) {
	_, err := OpenSQLite("  ", "", nil)
	assert.Error(t, err)
}

func TestSQLiteStorage_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.db")
	ctx := context.Background()
	clientID := uuid.New()

	s, err := OpenSQLite(path, "", testLogger())
	require.NoError(t, err)
	require.NoError(t, s.SaveEngineState(ctx, clientID, state.EngineState{"hp": 9}))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path, "", testLogger())
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Ping(ctx))

	st, err := s.LoadEngineState(ctx, clientID)
	require.NoError(t, err)
	assert.Equal(t, 9, st["hp"])
}

func TestCatalog(t *testing.T) {
	dataDir := writeAdventures(t)
	c := newCatalog(dataDir, testLogger())
	ctx := context.Background()

	list, err := c.ListAdventures(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"sky-island": "Sky Island"}, list)

	a, err := c.GetAdventure(ctx, "sky-island")
	require.NoError(t, err)
	assert.Equal(t, "sky-island", a.ID)
	assert.Equal(t, 20, a.Resources[0].Max)
	assert.Contains(t, a.Body, "The wind howls.")

	for _, id := range []string{"missing", "../sky-island", "a/b", ""} {
		_, err := c.GetAdventure(ctx, id)
		assert.ErrorIs(t, err, store.ErrAdventureNotFound, id)
	}

	_, err = c.GetAdventure(ctx, "broken")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrAdventureNotFound)
}

func TestCatalog_MissingDirectory(t *testing.T) {
	c := newCatalog(filepath.Join(t.TempDir(), "nope"), testLogger())
	list, err := c.ListAdventures(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestNewRedisStorage_Address(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	for name, addr := range map[string]string{
		"host and port": mr.Addr(),
		"url":           "redis://" + mr.Addr() + "/0",
	} {
		t.Run(name, func(t *testing.T) {
			rs, err := NewRedisStorage(addr, t.TempDir(), time.Hour, testLogger())
			require.NoError(t, err)
			t.Cleanup(func() { _ = rs.Close() })
			assert.NoError(t, rs.Ping(ctx))
		})
	}

	_, err := NewRedisStorage("redis://:bad port", t.TempDir(), 0, testLogger())
	assert.Error(t, err)
}
