package engine

import (
	"github.com/jwebster45206/adventure-engine/pkg/state"
)

// AdvanceTurn increments the current turn and records a history snapshot of
// the new state. It returns the new turn.
func (e *Engine) AdvanceTurn() int {
	now := e.now()
	next := e.engineState.Update(func(cur state.EngineState) state.EngineState {
		return cur.With(state.KeyCurrentTurn, cur.Turn()+1)
	})

	turn := next.Turn()
	e.appendHistory(state.TurnHistoryEntry{
		Turn:      turn,
		Snapshot:  next.Clone(),
		Timestamp: now,
	})
	e.logger.Debug("Turn advanced", "turn", turn, "session_id", e.SessionID())
	return turn
}

// RewindToTurn restores the most recent snapshot recorded for turn and forgets
// fired rules from later turns so they can fire again. History itself is
// kept, so replaying past a rewound turn records that turn again; the later
// entry wins, restoring the state last seen at that turn rather than the first.
// It reports whether a snapshot was found.
func (e *Engine) RewindToTurn(turn int) bool {
	entry, ok := e.findHistory(turn)
	if !ok {
		e.logger.Debug("No history for turn, rewind ignored", "turn", turn)
		return false
	}

	e.engineState.Set(entry.Snapshot.Clone())
	e.fired.Update(func(cur state.FiredRules) state.FiredRules {
		return cur.UpTo(turn)
	})
	e.logger.Info("Rewound to turn", "turn", turn, "session_id", e.SessionID())
	return true
}

// CurrentTurn returns the turn of the current state.
func (e *Engine) CurrentTurn() int {
	return e.engineState.Get().Turn()
}

// History returns a copy of the turn history, oldest first.
func (e *Engine) History() []state.TurnHistoryEntry {
	h := e.history.Get()
	out := make([]state.TurnHistoryEntry, len(h))
	copy(out, h)
	return out
}

func (e *Engine) findHistory(turn int) (state.TurnHistoryEntry, bool) {
	h := e.history.Get()
	for i := len(h) - 1; i >= 0; i-- {
		if h[i].Turn == turn {
			return h[i], true
		}
	}
	return state.TurnHistoryEntry{}, false
}

func (e *Engine) appendHistory(entry state.TurnHistoryEntry) {
	e.history.Update(func(cur []state.TurnHistoryEntry) []state.TurnHistoryEntry {
		next := make([]state.TurnHistoryEntry, 0, len(cur)+1)
		next = append(next, cur...)
		next = append(next, entry)
		if e.historyLimit > 0 && len(next) > e.historyLimit {
			next = next[len(next)-e.historyLimit:]
		}
		return next
	})
}
