package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/jwebster45206/adventure-engine/pkg/adventure"
	"github.com/jwebster45206/adventure-engine/pkg/state"
)

// MockStorage is a mock implementation of Storage for testing
type MockStorage struct {
	mu         sync.RWMutex
	states     map[uuid.UUID]state.EngineState
	sessions   map[uuid.UUID]string
	unlocks    map[uuid.UUID]map[string]struct{}
	adventures map[string]*adventure.Adventure
	corrupt    map[uuid.UUID]bool
	pingError  error
	saveError  error
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		states:     make(map[uuid.UUID]state.EngineState),
		sessions:   make(map[uuid.UUID]string),
		unlocks:    make(map[uuid.UUID]map[string]struct{}),
		adventures: make(map[string]*adventure.Adventure),
		corrupt:    make(map[uuid.UUID]bool),
	}
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetSaveError makes every save fail with err
func (m *MockStorage) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

// MarkCorrupt makes the client's persisted state undecodable
func (m *MockStorage) MarkCorrupt(clientID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.corrupt[clientID] = true
}

// AddAdventure adds an adventure to the mock storage (for testing)
func (m *MockStorage) AddAdventure(a *adventure.Adventure) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adventures[a.ID] = a
}

func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MockStorage) Close() error {
	return nil
}

func (m *MockStorage) SaveEngineState(ctx context.Context, clientID uuid.UUID, st state.EngineState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	m.states[clientID] = st.Clone()
	delete(m.corrupt, clientID)
	return nil
}

func (m *MockStorage) LoadEngineState(ctx context.Context, clientID uuid.UUID) (state.EngineState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.corrupt[clientID] {
		return nil, fmt.Errorf("%w: client %s", state.ErrCorrupt, clientID)
	}
	st, exists := m.states[clientID]
	if !exists {
		return nil, nil // Return nil for not found
	}
	return st.Clone(), nil
}

func (m *MockStorage) SaveSessionID(ctx context.Context, clientID uuid.UUID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	m.sessions[clientID] = sessionID
	return nil
}

func (m *MockStorage) LoadSessionID(ctx context.Context, clientID uuid.UUID) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[clientID], nil
}

func (m *MockStorage) DeleteSession(ctx context.Context, clientID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, clientID)
	delete(m.sessions, clientID)
	delete(m.corrupt, clientID)
	return nil
}

func (m *MockStorage) AddUnlock(ctx context.Context, clientID uuid.UUID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.unlocks[clientID]
	if !ok {
		set = make(map[string]struct{})
		m.unlocks[clientID] = set
	}
	if _, exists := set[id]; exists {
		return false, nil
	}
	set[id] = struct{}{}
	return true, nil
}

func (m *MockStorage) IsUnlocked(ctx context.Context, clientID uuid.UUID, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.unlocks[clientID][id]
	return ok, nil
}

func (m *MockStorage) ListUnlocks(ctx context.Context, clientID uuid.UUID) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.unlocks[clientID]))
	for id := range m.unlocks[clientID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MockStorage) ClearUnlocks(ctx context.Context, clientID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.unlocks, clientID)
	return nil
}

func (m *MockStorage) ListAdventures(ctx context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[string]string, len(m.adventures))
	for id, a := range m.adventures {
		result[id] = a.DisplayTitle()
	}
	return result, nil
}

func (m *MockStorage) GetAdventure(ctx context.Context, id string) (*adventure.Adventure, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, exists := m.adventures[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrAdventureNotFound, id)
	}
	return a, nil
}
