package sessions

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/adventure-engine/internal/services/effectlog"
	"github.com/jwebster45206/adventure-engine/pkg/adventure"
	"github.com/jwebster45206/adventure-engine/pkg/conditionals"
	"github.com/jwebster45206/adventure-engine/pkg/engine"
	store "github.com/jwebster45206/adventure-engine/pkg/storage"
)

type published struct {
	kind    string
	action  string
	payload string
	turn    int
	current string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) add(e published) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) PublishEffectFired(_ context.Context, _ uuid.UUID, _ string, action, payload string, turn int) error {
	p.add(published{kind: "effect", action: action, payload: payload, turn: turn})
	return nil
}

func (p *recordingPublisher) PublishStateUpdated(_ context.Context, _ uuid.UUID, _ string, turn int, current string) error {
	p.add(published{kind: "state", turn: turn, current: current})
	return nil
}

func (p *recordingPublisher) PublishSessionStarted(context.Context, uuid.UUID, string, string) error {
	p.add(published{kind: "started"})
	return nil
}

func (p *recordingPublisher) PublishSessionReset(context.Context, uuid.UUID) error {
	p.add(published{kind: "reset"})
	return nil
}

func (p *recordingPublisher) count(kind string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.kind == kind {
			n++
		}
	}
	return n
}

func skyIsland() *adventure.Adventure {
	return &adventure.Adventure{
		ID:          "sky-island",
		Title:       "Sky Island",
		Description: "Float above the clouds.",
		Body:        "The wind howls.",
		Resources: []adventure.Resource{
			{ID: "hp", Label: "HP", Max: 20, Initial: 20},
			{ID: "goblin_hp", Label: "Goblin HP", Max: 12, Initial: 12},
		},
		Rules: []adventure.Rule{
			{Condition: conditionals.Condition{TargetID: "hp", Operator: conditionals.OpLessOrEqual, Threshold: 5}, Action: adventure.ActionToast, Payload: "Critical!"},
			{Condition: conditionals.Condition{TargetID: "hp", Operator: conditionals.OpLessOrEqual, Threshold: 5}, Action: adventure.ActionUnlock, Payload: "secret-cave"},
			{Condition: conditionals.Condition{TargetID: "goblin_hp", Operator: conditionals.OpEqual, Threshold: 0}, Action: adventure.ActionRemoveCombatant, Payload: "storm-goblin"},
		},
		Combatants: []adventure.Combatant{
			{ID: "captain", Name: "Captain", Type: adventure.CombatantHero, LinkedResource: "hp"},
			{ID: "storm-goblin", Name: "Storm Goblin", Type: adventure.CombatantEnemy, LinkedResource: "goblin_hp"},
		},
	}
}

type fixture struct {
	manager   *Manager
	storage   *store.MockStorage
	publisher *recordingPublisher
	log       *effectlog.MemoryLog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		storage:   store.NewMockStorage(),
		publisher: &recordingPublisher{},
		log:       effectlog.NewMemoryLog(0),
	}
	f.storage.AddAdventure(skyIsland())
	f.manager = NewManager(Options{
		Storage:      f.storage,
		Publisher:    f.publisher,
		EffectLog:    f.log,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		NewScheduler: func() engine.Scheduler { return engine.NewManualScheduler() },
	})
	t.Cleanup(f.manager.Close)
	return f
}

func TestManager_Start(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	clientID := uuid.New()

	s, err := f.manager.Start(ctx, clientID, "sky-island", false)
	require.NoError(t, err)

	v := s.View()
	assert.Equal(t, "guest-sky-island", v.SessionID)
	assert.Equal(t, "Sky Island", v.Title)
	assert.Equal(t, 20, v.State["hp"])
	assert.Len(t, v.Queue, 2)
	assert.Len(t, v.Health, 2)
	assert.Equal(t, 1, f.publisher.count("started"))

	id, err := f.storage.LoadSessionID(ctx, clientID)
	require.NoError(t, err)
	assert.Equal(t, "guest-sky-island", id)
}

func TestManager_StartAuthenticated(t *testing.T) {
	f := newFixture(t)
	s, err := f.manager.Start(context.Background(), uuid.New(), "sky-island", true)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(s.Engine.SessionID(), "sky-island-"))
}

func TestManager_StartUnknownAdventure(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.Start(context.Background(), uuid.New(), "atlantis", false)
	assert.ErrorIs(t, err, ErrUnknownAdventure)
	assert.Equal(t, 0, f.manager.Len())
}

func TestManager_EffectsAreLoggedAndPublished(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	clientID := uuid.New()

	s, err := f.manager.Start(ctx, clientID, "sky-island", false)
	require.NoError(t, err)

	s.Engine.ModifyResource("hp", -16, 20)

	entries, err := f.manager.DrainEffects(ctx, clientID)
	require.NoError(t, err)
	var actions []string
	for _, e := range entries {
		actions = append(actions, e.Action+":"+e.Payload)
		assert.Equal(t, "guest-sky-island", e.SessionID)
		assert.Equal(t, 1, e.Turn)
	}
	assert.Equal(t, []string{"toast:Critical!", "unlock:secret-cave", "toast:Unlocked: secret-cave"}, actions)
	assert.Equal(t, 3, f.publisher.count("effect"))

	ok, err := f.storage.IsUnlocked(ctx, clientID, "secret-cave")
	require.NoError(t, err)
	assert.True(t, ok)

	// Already unlocked: no second toast on the next turn.
	s.Engine.AdvanceTurn()
	entries, err = f.manager.DrainEffects(ctx, clientID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "toast", entries[0].Action)
	assert.Equal(t, "unlock", entries[1].Action)
}

func TestManager_RemoveCombatantEffect(t *testing.T) {
	f := newFixture(t)
	s, err := f.manager.Start(context.Background(), uuid.New(), "sky-island", false)
	require.NoError(t, err)

	s.Engine.ModifyResource("goblin_hp", -12, 12)
	q := s.Engine.Queue()
	require.Len(t, q, 1)
	assert.Equal(t, "captain", q[0].ID)
}

func TestManager_StatePublishedOnTurnChange(t *testing.T) {
	f := newFixture(t)
	s, err := f.manager.Start(context.Background(), uuid.New(), "sky-island", false)
	require.NoError(t, err)
	before := f.publisher.count("state")
	require.Positive(t, before)

	s.Engine.SetResource("goblin_hp", 11)
	assert.Equal(t, before, f.publisher.count("state"), "resource writes alone are not published")

	s.Engine.AdvanceTurn()
	assert.Equal(t, before+1, f.publisher.count("state"))
}

func TestManager_GetHydratesFromStorage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	clientID := uuid.New()

	s, err := f.manager.Start(ctx, clientID, "sky-island", false)
	require.NoError(t, err)
	s.Engine.ModifyResource("hp", -4, 20)
	s.Engine.AdvanceTurn()
	want := s.Engine.State()

	// Simulate a process restart.
	f.manager.Close()
	require.Equal(t, 0, f.manager.Len())

	restored, err := f.manager.Get(ctx, clientID)
	require.NoError(t, err)
	assert.Equal(t, want, restored.Engine.State())
	assert.Equal(t, "guest-sky-island", restored.Engine.SessionID())
	assert.Equal(t, "sky-island", restored.Engine.AdventureID())
	assert.Len(t, restored.Engine.Queue(), 2)

	again, err := f.manager.Get(ctx, clientID)
	require.NoError(t, err)
	assert.Same(t, restored, again)
}

func TestManager_GetUnknownClient(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 0, f.manager.Len())
}

func TestManager_GetCorruptState(t *testing.T) {
	f := newFixture(t)
	clientID := uuid.New()
	f.storage.MarkCorrupt(clientID)

	_, err := f.manager.Get(context.Background(), clientID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManager_Reset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	clientID := uuid.New()

	s, err := f.manager.Start(ctx, clientID, "sky-island", false)
	require.NoError(t, err)
	s.Engine.ModifyResource("hp", -16, 20)

	require.NoError(t, f.manager.Reset(ctx, clientID))
	assert.Equal(t, 0, f.manager.Len())
	assert.Equal(t, 1, f.publisher.count("reset"))

	_, err = f.manager.Get(ctx, clientID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	entries, err := f.manager.DrainEffects(ctx, clientID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	ok, err := f.storage.IsUnlocked(ctx, clientID, "secret-cave")
	require.NoError(t, err)
	assert.True(t, ok, "unlocks survive a reset")

	// Resetting again is harmless.
	require.NoError(t, f.manager.Reset(ctx, clientID))
}

func TestManager_WithoutOptionalServices(t *testing.T) {
	storage := store.NewMockStorage()
	storage.AddAdventure(skyIsland())
	m := NewManager(Options{Storage: storage, NewScheduler: func() engine.Scheduler { return engine.NewManualScheduler() }})
	defer m.Close()

	s, err := m.Start(context.Background(), uuid.New(), "sky-island", false)
	require.NoError(t, err)
	s.Engine.ModifyResource("hp", -16, 20)

	entries, err := m.DrainEffects(context.Background(), s.ClientID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestManager_EngineLogsCarryClientID(t *testing.T) {
	var buf bytes.Buffer
	storage := store.NewMockStorage()
	storage.AddAdventure(skyIsland())
	m := NewManager(Options{
		Storage:      storage,
		EffectLog:    effectlog.NewMemoryLog(0),
		Logger:       slog.New(slog.NewTextHandler(&buf, nil)),
		NewScheduler: func() engine.Scheduler { return engine.NewManualScheduler() },
	})
	t.Cleanup(m.Close)

	clientID := uuid.New()
	_, err := m.Start(context.Background(), clientID, "sky-island", false)
	require.NoError(t, err)

	var initLine string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, "Engine initialized") {
			initLine = line
		}
	}
	require.NotEmpty(t, initLine)
	assert.Contains(t, initLine, "client_id="+clientID.String())
}
