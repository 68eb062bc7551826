package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/jwebster45206/adventure-engine/pkg/adventure"
	"github.com/jwebster45206/adventure-engine/pkg/state"
)

var ErrAdventureNotFound = errors.New("adventure not found")

// Storage defines a unified interface for all storage operations.
// Per-client session data lives in the backend (Redis or SQLite); adventures
// are read from the filesystem.
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Engine state operations. A missing state loads as nil with no error;
	// undecodable data is reported with state.ErrCorrupt.
	SaveEngineState(ctx context.Context, clientID uuid.UUID, st state.EngineState) error
	LoadEngineState(ctx context.Context, clientID uuid.UUID) (state.EngineState, error)
	SaveSessionID(ctx context.Context, clientID uuid.UUID, sessionID string) error
	LoadSessionID(ctx context.Context, clientID uuid.UUID) (string, error)
	DeleteSession(ctx context.Context, clientID uuid.UUID) error

	// Unlock operations. AddUnlock reports whether the id was newly added.
	AddUnlock(ctx context.Context, clientID uuid.UUID, id string) (bool, error)
	IsUnlocked(ctx context.Context, clientID uuid.UUID, id string) (bool, error)
	ListUnlocks(ctx context.Context, clientID uuid.UUID) ([]string, error)
	ClearUnlocks(ctx context.Context, clientID uuid.UUID) error

	// Adventure operations (filesystem-backed). ListAdventures maps id to title.
	ListAdventures(ctx context.Context) (map[string]string, error)
	GetAdventure(ctx context.Context, id string) (*adventure.Adventure, error)
}
