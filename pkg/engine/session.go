package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jwebster45206/adventure-engine/pkg/adventure"
	"github.com/jwebster45206/adventure-engine/pkg/effects"
	"github.com/jwebster45206/adventure-engine/pkg/state"
)

const guestPrefix = "guest-"

// NewSessionID derives a session id from the adventure and the auth state.
func NewSessionID(adventureID string, authenticated bool, unixMilli int64) string {
	if !authenticated {
		return guestPrefix + adventureID
	}
	return fmt.Sprintf("%s-%d", adventureID, unixMilli)
}

// ParseSessionID recovers the adventure id from a session id and reports
// whether it belongs to a guest.
func ParseSessionID(id string) (adventureID string, guest bool) {
	if rest, ok := strings.CutPrefix(id, guestPrefix); ok {
		return rest, true
	}
	if i := strings.LastIndexByte(id, '-'); i > 0 {
		if _, err := strconv.ParseInt(id[i+1:], 10, 64); err == nil {
			return id[:i], false
		}
	}
	return id, false
}

// InitEngine starts a fresh session for adventureID with each resource at
// its initial value. Pending scheduled work from a previous session is
// cancelled. It returns the new session id.
func (e *Engine) InitEngine(adventureID string, resources []adventure.Resource) string {
	e.scheduler.CancelAll()

	now := e.now()
	sessionID := NewSessionID(adventureID, e.auth.IsAuthenticated(), now.UnixMilli())
	e.sessionID.Set(sessionID)

	st := state.New(now)
	for _, r := range resources {
		st[r.ID] = r.Initial
	}

	// Everything the director reads is reset before the state is written, so
	// the first evaluation sees the new session only.
	e.fired.Set(state.FiredRules{})
	e.history.Set([]state.TurnHistoryEntry{{Turn: 1, Snapshot: st.Clone(), Timestamp: now}})
	e.activeSurge.Set(nil)
	e.observedTurn.Set(0)
	e.engineState.Set(st)

	e.logger.Info("Engine initialized", "session_id", sessionID, "resources", len(resources))
	return sessionID
}

// Load starts a session for adv: it initializes the engine, starts an
// encounter when the adventure has combatants, and installs the director.
// Validation problems and actions the dispatcher cannot perform are logged;
// they do not stop the session.
func (e *Engine) Load(adv *adventure.Adventure) (string, error) {
	if adv == nil {
		return "", ErrNilAdventure
	}
	e.warnContent(adv)

	e.ClearScript()
	sessionID := e.InitEngine(adv.ID, adv.Resources)
	if len(adv.Combatants) > 0 {
		if err := e.StartEncounter(adv.Combatants); err != nil {
			return sessionID, fmt.Errorf("failed to start encounter: %w", err)
		}
	}
	e.SetScript(adv.ID, adv.Rules, adv.Surges)
	return sessionID, nil
}

// Resume reinstalls adv's director over an already hydrated state without
// resetting it. The queue is rebuilt when it is empty.
func (e *Engine) Resume(adv *adventure.Adventure) error {
	if adv == nil {
		return ErrNilAdventure
	}
	e.warnContent(adv)

	if len(e.queue.Get()) == 0 && len(adv.Combatants) > 0 {
		if err := e.StartEncounter(adv.Combatants); err != nil {
			return fmt.Errorf("failed to start encounter: %w", err)
		}
	}
	e.SetScript(adv.ID, adv.Rules, adv.Surges)
	return nil
}

func (e *Engine) warnContent(adv *adventure.Adventure) {
	for _, issue := range adventure.Validate(adv) {
		e.logger.Warn("Adventure content issue", "adventure_id", adv.ID, "severity", issue.Severity, "issue", issue.Message)
	}
	for _, action := range effects.Unsupported(e.dispatcher, adv.Rules) {
		e.logger.Warn("Rule action has no effect handler", "adventure_id", adv.ID, "action", action)
	}
}

// Hydrate restores the persisted state and session id. Persisted data that
// cannot be decoded is logged and the state stays empty; only storage
// failures are returned. It reports whether a non-empty state was restored.
// Surges for the restored turn are treated as already seen.
func (e *Engine) Hydrate(ctx context.Context) (bool, error) {
	if e.persister == nil {
		return false, nil
	}

	sessionID, err := e.persister.LoadSessionID(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load session id: %w", err)
	}

	st, err := e.persister.LoadEngineState(ctx)
	if errors.Is(err, state.ErrCorrupt) {
		e.logger.Error("Failed to parse engine state, starting empty", "error", err)
		e.sessionID.Set(sessionID)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load engine state: %w", err)
	}

	e.sessionID.Set(sessionID)
	if len(st) == 0 {
		return false, nil
	}

	turn := st.Turn()
	e.fired.Set(state.FiredRules{})
	e.history.Set([]state.TurnHistoryEntry{{Turn: turn, Snapshot: st.Clone(), Timestamp: e.now()}})
	e.activeSurge.Set(nil)
	e.observedTurn.Set(turn)
	e.engineState.Set(st)

	e.logger.Debug("Engine hydrated", "session_id", sessionID, "turn", turn)
	return true, nil
}

// ResetEngine tears the session down: scheduled work is cancelled, the
// director is uninstalled and every piece of session state returns to empty.
// The empty state and session id are persisted. Calling it twice is the same
// as calling it once.
func (e *Engine) ResetEngine() {
	e.scheduler.CancelAll()
	e.ClearScript()
	e.observedTurn.Set(0)

	e.engineState.Set(state.EngineState{})
	e.fired.Set(state.FiredRules{})
	e.history.Set(nil)
	e.activeSurge.Set(nil)
	e.sessionID.Set("")
	e.queue.Set(nil)
	e.roundLeader.Set("")
	e.party.Set(nil)
	e.drawerExpanded.Set(false)
	e.autoExpand.Set(false)

	e.logger.Info("Engine reset")
}
