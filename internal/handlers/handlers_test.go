package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/adventure-engine/internal/services/effectlog"
	"github.com/jwebster45206/adventure-engine/internal/sessions"
	"github.com/jwebster45206/adventure-engine/pkg/adventure"
	"github.com/jwebster45206/adventure-engine/pkg/conditionals"
	"github.com/jwebster45206/adventure-engine/pkg/engine"
	"github.com/jwebster45206/adventure-engine/pkg/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError, // Reduce noise in tests
	}))
}

func lighthouse() *adventure.Adventure {
	return &adventure.Adventure{
		ID:    "lighthouse",
		Title: "The Lighthouse",
		Body:  "Waves crash below.",
		Resources: []adventure.Resource{
			{ID: "hp", Label: "HP", Max: 10, Initial: 10},
			{ID: "crab_hp", Label: "Crab HP", Max: 6, Initial: 6},
		},
		Rules: []adventure.Rule{
			{Condition: conditionals.Condition{TargetID: "hp", Operator: conditionals.OpLessOrEqual, Threshold: 3}, Action: adventure.ActionToast, Payload: "Hold on!"},
			{Condition: conditionals.Condition{TargetID: "hp", Operator: conditionals.OpLessOrEqual, Threshold: 3}, Action: adventure.ActionUnlock, Payload: "keeper-log"},
		},
		Surges: []adventure.SurgeEvent{
			{TriggerTurn: 2, Dialogue: "The lamp goes dark.", Animation: adventure.AnimationFlash,
				ModifyResources: []adventure.ResourceMod{{ResourceID: "hp", Delta: -1}}},
		},
		Combatants: []adventure.Combatant{
			{ID: "keeper", Name: "Keeper", Type: adventure.CombatantHero, LinkedResource: "hp"},
			{ID: "crab", Name: "Giant Crab", Type: adventure.CombatantEnemy, LinkedResource: "crab_hp"},
		},
	}
}

type testServer struct {
	mux     *http.ServeMux
	storage *storage.MockStorage
	manager *sessions.Manager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{storage: storage.NewMockStorage()}
	ts.storage.AddAdventure(lighthouse())
	ts.manager = sessions.NewManager(sessions.Options{
		Storage:      ts.storage,
		EffectLog:    effectlog.NewMemoryLog(0),
		Logger:       testLogger(),
		NewScheduler: func() engine.Scheduler { return engine.NewManualScheduler() },
	})
	t.Cleanup(ts.manager.Close)

	sh := NewSessionsHandler(ts.manager, testLogger())
	ah := NewAdventuresHandler(ts.storage, testLogger())
	uh := NewUnlocksHandler(ts.storage, testLogger())

	ts.mux = http.NewServeMux()
	ts.mux.Handle("/health", NewHealthHandler(ts.storage, ts.manager, testLogger()))
	ts.mux.Handle("/v1/sessions", sh)
	ts.mux.Handle("/v1/sessions/", sh)
	ts.mux.Handle("/v1/adventures", ah)
	ts.mux.Handle("/v1/adventures/", ah)
	ts.mux.Handle("/v1/unlocks/", uh)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	ts.mux.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}
