package state

import (
	"errors"
	"maps"
	"time"
)

// Reserved system keys. Resource ids may not start with an underscore.
const (
	KeyCurrentTurn  = "_currentTurn"
	KeySessionStart = "_sessionStart"
)

// ErrCorrupt marks persisted session data that could not be decoded.
var ErrCorrupt = errors.New("corrupt persisted state")

// EngineState maps resource ids (and the reserved system keys) to their current
// values. It is always replaced as a whole, never mutated in place once stored.
type EngineState map[string]int

// New builds a fresh engine state at turn 1.
func New(start time.Time) EngineState {
	return EngineState{
		KeyCurrentTurn:  1,
		KeySessionStart: int(start.UnixMilli()),
	}
}

// Clone returns a deep copy. A nil state clones to an empty, non-nil state.
func (s EngineState) Clone() EngineState {
	out := make(EngineState, len(s))
	maps.Copy(out, s)
	return out
}

// With returns a copy of s with key set to value.
func (s EngineState) With(key string, value int) EngineState {
	out := s.Clone()
	out[key] = value
	return out
}

// Value implements conditionals.StateView.
func (s EngineState) Value(id string) (int, bool) {
	v, ok := s[id]
	return v, ok
}

// Turn is the current turn, defaulting to 1 when unset.
func (s EngineState) Turn() int {
	if t, ok := s[KeyCurrentTurn]; ok && t != 0 {
		return t
	}
	return 1
}

// Resources returns the state without the reserved system keys.
func (s EngineState) Resources() map[string]int {
	out := make(map[string]int, len(s))
	for k, v := range s {
		if len(k) > 0 && k[0] == '_' {
			continue
		}
		out[k] = v
	}
	return out
}

// TurnHistoryEntry is a snapshot of the engine state at a turn, kept for rewind.
type TurnHistoryEntry struct {
	Turn      int         `json:"turn"`
	Snapshot  EngineState `json:"snapshot"`
	Timestamp time.Time   `json:"timestamp"`
}
