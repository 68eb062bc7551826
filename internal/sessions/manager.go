// Package sessions owns the engines of connected clients. Each client id gets
// one engine, persisted through the configured storage and wired to the
// server's effect handlers.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/adventure-engine/internal/logger"
	"github.com/jwebster45206/adventure-engine/internal/services/effectlog"
	"github.com/jwebster45206/adventure-engine/pkg/engine"
	store "github.com/jwebster45206/adventure-engine/pkg/storage"
	"github.com/jwebster45206/adventure-engine/pkg/state"
)

var (
	ErrUnknownAdventure = errors.New("unknown adventure")
	ErrSessionNotFound  = errors.New("session not found")
)

const callTimeout = 2 * time.Second

// Publisher pushes session events to connected clients.
type Publisher interface {
	PublishEffectFired(ctx context.Context, clientID uuid.UUID, sessionID, action, payload string, turn int) error
	PublishStateUpdated(ctx context.Context, clientID uuid.UUID, sessionID string, turn int, current string) error
	PublishSessionStarted(ctx context.Context, clientID uuid.UUID, sessionID, adventureID string) error
	PublishSessionReset(ctx context.Context, clientID uuid.UUID) error
}

type Options struct {
	Storage   store.Storage
	Publisher Publisher     // optional
	EffectLog effectlog.Log // optional
	Logger    *slog.Logger

	AdvanceTurnDelay time.Duration
	HistoryLimit     int
	RoundPolicy      engine.RoundPolicy
	NewScheduler     func() engine.Scheduler
}

// Manager keeps one Session per client.
type Manager struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	opts     Options
	logger   *slog.Logger
}

func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.NewScheduler == nil {
		opts.NewScheduler = func() engine.Scheduler { return engine.NewTimerScheduler() }
	}
	return &Manager{
		sessions: make(map[uuid.UUID]*Session),
		opts:     opts,
		logger:   opts.Logger,
	}
}

// Start loads adventureID into the client's engine, replacing any session the
// client had. Authenticated clients get a timestamped session id.
func (m *Manager) Start(ctx context.Context, clientID uuid.UUID, adventureID string, authenticated bool) (*Session, error) {
	adv, err := m.opts.Storage.GetAdventure(ctx, adventureID)
	if err != nil {
		if errors.Is(err, store.ErrAdventureNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAdventure, adventureID)
		}
		return nil, fmt.Errorf("failed to load adventure: %w", err)
	}

	m.mu.Lock()
	s, ok := m.sessions[clientID]
	if !ok {
		s = m.newSession(clientID)
		m.sessions[clientID] = s
	}
	m.mu.Unlock()

	s.authenticated.Store(authenticated)
	s.setAdventure(adv)
	sessionID, err := s.Engine.Load(adv)
	if err != nil {
		return nil, err
	}

	m.logger.Info("Session started", "client_id", clientID, "session_id", sessionID, "adventure_id", adv.ID)
	if m.opts.Publisher != nil {
		if err := m.opts.Publisher.PublishSessionStarted(ctx, clientID, sessionID, adv.ID); err != nil {
			m.logger.Warn("Failed to publish session start", "client_id", clientID, "error", err)
		}
	}
	return s, nil
}

// Get returns the client's live session, hydrating it from storage when it is
// not in memory. It fails with ErrSessionNotFound when nothing is persisted.
func (m *Manager) Get(ctx context.Context, clientID uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[clientID]; ok {
		return s, nil
	}

	s := m.newSession(clientID)
	restored, err := s.Engine.Hydrate(ctx)
	if err != nil {
		s.Engine.Close()
		return nil, fmt.Errorf("failed to hydrate session: %w", err)
	}
	if !restored {
		s.Engine.Close()
		return nil, ErrSessionNotFound
	}

	adventureID, guest := engine.ParseSessionID(s.Engine.SessionID())
	s.authenticated.Store(!guest)
	if adv, err := m.opts.Storage.GetAdventure(ctx, adventureID); err != nil {
		m.logger.Warn("Hydrated session has no loadable adventure; rules are inactive",
			"client_id", clientID, "adventure_id", adventureID, "error", err)
	} else {
		s.setAdventure(adv)
		if err := s.Engine.Resume(adv); err != nil {
			m.logger.Warn("Failed to resume adventure", "client_id", clientID, "error", err)
		}
	}

	m.sessions[clientID] = s
	m.logger.Debug("Session hydrated", "client_id", clientID, "session_id", s.Engine.SessionID())
	return s, nil
}

// Reset tears the client's session down and removes its persisted state.
// Unlocks survive a reset.
func (m *Manager) Reset(ctx context.Context, clientID uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.sessions[clientID]
	delete(m.sessions, clientID)
	m.mu.Unlock()

	if ok {
		s.Engine.ResetEngine()
		s.Engine.Close()
	}

	if err := m.opts.Storage.DeleteSession(ctx, clientID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if m.opts.EffectLog != nil {
		if err := m.opts.EffectLog.Clear(ctx, clientID); err != nil {
			m.logger.Warn("Failed to clear effect log", "client_id", clientID, "error", err)
		}
	}
	if m.opts.Publisher != nil {
		if err := m.opts.Publisher.PublishSessionReset(ctx, clientID); err != nil {
			m.logger.Warn("Failed to publish session reset", "client_id", clientID, "error", err)
		}
	}

	m.logger.Info("Session reset", "client_id", clientID)
	return nil
}

// DrainEffects returns and forgets the effects fired for the client.
func (m *Manager) DrainEffects(ctx context.Context, clientID uuid.UUID) ([]effectlog.Entry, error) {
	if m.opts.EffectLog == nil {
		return []effectlog.Entry{}, nil
	}
	return m.opts.EffectLog.Drain(ctx, clientID)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops every session's scheduled work. State stays persisted.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		s.Engine.Close()
		delete(m.sessions, id)
	}
}

func (m *Manager) newSession(clientID uuid.UUID) *Session {
	s := &Session{
		ClientID:  clientID,
		storage:   m.opts.Storage,
		publisher: m.opts.Publisher,
		effectLog: m.opts.EffectLog,
		logger:    logger.WithClientID(m.logger, clientID.String()),
	}

	s.Engine = engine.New(engine.Options{
		Logger:           s.logger,
		Dispatcher:       s.effectTable(),
		Persister:        clientPersister{storage: m.opts.Storage, clientID: clientID},
		Auth:             engine.AuthFunc(s.authenticated.Load),
		Scheduler:        m.opts.NewScheduler(),
		AdvanceTurnDelay: m.opts.AdvanceTurnDelay,
		HistoryLimit:     m.opts.HistoryLimit,
		RoundPolicy:      m.opts.RoundPolicy,
	})
	s.Engine.Subscribe(s.publishState)
	return s
}

// clientPersister scopes a Storage to one client for the engine.
type clientPersister struct {
	storage  store.Storage
	clientID uuid.UUID
}

func (p clientPersister) SaveEngineState(ctx context.Context, st state.EngineState) error {
	return p.storage.SaveEngineState(ctx, p.clientID, st)
}

func (p clientPersister) LoadEngineState(ctx context.Context) (state.EngineState, error) {
	return p.storage.LoadEngineState(ctx, p.clientID)
}

func (p clientPersister) SaveSessionID(ctx context.Context, sessionID string) error {
	return p.storage.SaveSessionID(ctx, p.clientID, sessionID)
}

func (p clientPersister) LoadSessionID(ctx context.Context) (string, error) {
	return p.storage.LoadSessionID(ctx, p.clientID)
}

var _ engine.Persister = clientPersister{}

