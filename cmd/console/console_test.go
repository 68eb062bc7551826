package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/adventure-engine/internal/services/effectlog"
	"github.com/jwebster45206/adventure-engine/internal/sessions"
	"github.com/jwebster45206/adventure-engine/pkg/adventure"
	"github.com/jwebster45206/adventure-engine/pkg/conditionals"
	"github.com/jwebster45206/adventure-engine/pkg/engine"
	"github.com/jwebster45206/adventure-engine/pkg/storage"
)

func crypt() *adventure.Adventure {
	return &adventure.Adventure{
		ID:          "crypt",
		Title:       "The Crypt",
		Description: "Down the stairs.",
		Body:        "Dust everywhere.",
		Resources: []adventure.Resource{
			{ID: "hp", Label: "HP", Max: 10, Initial: 10, Theme: adventure.ThemeRed},
			{ID: "ghoul_hp", Label: "Ghoul", Max: 8, Initial: 8, Style: adventure.StyleHidden},
			{ID: "gold", Label: "Gold", Max: 99, Initial: 0, Style: adventure.StyleCounter},
		},
		Rules: []adventure.Rule{
			{Condition: conditionals.Condition{TargetID: "gold", Operator: conditionals.OpGreaterOrEqual, Threshold: 10}, Action: adventure.ActionConfetti},
		},
		Surges: []adventure.SurgeEvent{
			{TriggerTurn: 3, Dialogue: "The doors seal shut.", Animation: adventure.AnimationLock},
		},
		Combatants: []adventure.Combatant{
			{ID: "knight", Name: "Knight", Type: adventure.CombatantHero, LinkedResource: "hp"},
			{ID: "ghoul", Name: "Ghoul", Type: adventure.CombatantEnemy, LinkedResource: "ghoul_hp"},
		},
	}
}

func newSession(t *testing.T) (*sessions.Manager, *sessions.Session, uuid.UUID) {
	t.Helper()
	store := storage.NewMockStorage()
	store.AddAdventure(crypt())
	manager := sessions.NewManager(sessions.Options{
		Storage:      store,
		EffectLog:    effectlog.NewMemoryLog(0),
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		NewScheduler: func() engine.Scheduler { return engine.NewManualScheduler() },
	})
	t.Cleanup(manager.Close)

	clientID := uuid.New()
	s, err := manager.Start(context.Background(), clientID, "crypt", false)
	require.NoError(t, err)
	return manager, s, clientID
}

func TestExecute_Resources(t *testing.T) {
	_, s, _ := newSession(t)

	tests := []struct {
		input  string
		status string
		value  int
	}{
		{"hp -4", "HP: 6/10", 6},
		{"hp +9", "HP: 10/10", 10},
		{"hp =42", "HP: 42/10", 42},
		{"hp reset", "HP: 10/10", 10},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			status, err := execute(s, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.value, s.Engine.Resource("hp"))
		})
	}

	for _, bad := range []string{"hp", "hp lots", "hp =x", "mana +1"} {
		_, err := execute(s, bad)
		assert.Error(t, err, bad)
	}
}

func TestExecute_EffectsReachTheLog(t *testing.T) {
	manager, s, clientID := newSession(t)

	_, err := execute(s, "gold +12")
	require.NoError(t, err)

	entries, err := manager.DrainEffects(context.Background(), clientID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "confetti", entries[0].Action)
	assert.Contains(t, renderEffect(entries[0]), "confetti")
}

func TestExecute_TurnsAndLockingSurge(t *testing.T) {
	_, s, _ := newSession(t)

	status, err := execute(s, "next")
	require.NoError(t, err)
	assert.Equal(t, "Turn 2 begins", status)

	_, err = execute(s, "next")
	require.NoError(t, err)
	require.NotNil(t, s.Engine.ActiveSurge())

	_, err = execute(s, "hp -1")
	assert.ErrorIs(t, err, errSurgeLocked)

	status, err = execute(s, "dismiss")
	require.NoError(t, err)
	assert.Equal(t, "Surge dismissed", status)

	_, err = execute(s, "dismiss")
	assert.Error(t, err)

	status, err = execute(s, "rewind 2")
	require.NoError(t, err)
	assert.Equal(t, "Rewound to turn 2", status)
	assert.Equal(t, 2, s.Engine.CurrentTurn())

	_, err = execute(s, "rewind 99")
	assert.Error(t, err)
	_, err = execute(s, "rewind")
	assert.Error(t, err)
}

func TestExecute_Queue(t *testing.T) {
	_, s, _ := newSession(t)
	require.Len(t, s.Engine.Queue(), 2)

	status, err := execute(s, "front ghoul")
	require.NoError(t, err)
	assert.Equal(t, "Ghoul acts next", status)

	status, err = execute(s, "step")
	require.NoError(t, err)
	assert.Equal(t, "Now acting: Knight", status)

	_, err = execute(s, "order ghoul, knight")
	require.NoError(t, err)
	assert.Equal(t, "ghoul", s.Engine.CurrentCombatant())

	_, err = execute(s, "order ghoul")
	assert.ErrorIs(t, err, engine.ErrNotPermutation)

	_, err = execute(s, "remove ghoul")
	require.NoError(t, err)
	_, err = execute(s, "remove ghoul")
	assert.Error(t, err)

	status, err = execute(s, "party Ada Lovelace, Bo")
	require.NoError(t, err)
	assert.Contains(t, status, "Party of 2")

	status, err = execute(s, "encounter")
	require.NoError(t, err)
	assert.Equal(t, "Encounter started with 3 combatants", status)
}

func TestExecute_Drawer(t *testing.T) {
	_, s, _ := newSession(t)
	before := s.Engine.DrawerExpanded()
	_, err := execute(s, "drawer")
	require.NoError(t, err)
	assert.Equal(t, !before, s.Engine.DrawerExpanded())
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList("a b"))
	assert.Equal(t, []string{"Ada Lovelace", "Bo"}, splitList("Ada Lovelace, Bo,"))
	assert.Empty(t, splitList(""))
}

func TestResolveClientID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", clientIDFile)

	first, err := resolveClientID("", path)
	require.NoError(t, err)
	second, err := resolveClientID("", path)
	require.NoError(t, err)
	assert.Equal(t, first, second, "saved id is reused")

	explicit := uuid.New()
	got, err := resolveClientID(explicit.String(), path)
	require.NoError(t, err)
	assert.Equal(t, explicit, got)

	_, err = resolveClientID("not-a-uuid", path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))
	replaced, err := resolveClientID("", path)
	require.NoError(t, err)
	assert.NotEqual(t, first, replaced)
}

func TestRenderHelpers(t *testing.T) {
	assert.Equal(t, "█████░░░░░", resourceBar(5, 10, 10))
	assert.Equal(t, "██████████", resourceBar(50, 10, 10))
	assert.Equal(t, "░░░░░░░░░░", resourceBar(-3, 10, 10))
	assert.Equal(t, "░░░░", resourceBar(3, 0, 4))

	adv := crypt()
	out := writeResources(adv, map[string]int{"hp": 7, "ghoul_hp": 8, "gold": 3})
	assert.Contains(t, out, "7/10")
	assert.Contains(t, out, "Gold:")
	assert.NotContains(t, out, "Ghoul", "hidden resources are not drawn")

	v := sessions.View{}
	v.Queue = adv.Combatants
	v.CurrentCombatant = "ghoul"
	queue := writeQueue(v)
	assert.Equal(t, 2, strings.Count(queue, "\n"))
	assert.Contains(t, queue, "Knight")
}
