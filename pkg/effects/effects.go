// Package effects is the boundary between the rule engine and whatever renders
// effects (toasts, confetti, screen shake, redirects, unlocks). The engine only
// decides which action fires with which payload.
package effects

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/jwebster45206/adventure-engine/pkg/adventure"
)

// Dispatcher receives fired effects. It is fire-and-forget: nothing is returned
// to the engine.
type Dispatcher interface {
	Fire(action adventure.Action, payload string)
}

// Handler performs one effect.
type Handler func(payload string)

// Table is a finite dispatch table from action to handler.
type Table struct {
	mu       sync.RWMutex
	handlers map[adventure.Action]Handler
	logger   *slog.Logger
}

// Ensure Table implements Dispatcher
var _ Dispatcher = (*Table)(nil)

func NewTable(logger *slog.Logger) *Table {
	if logger == nil {
		logger = slog.Default()
	}
	return &Table{
		handlers: make(map[adventure.Action]Handler),
		logger:   logger,
	}
}

// Register binds a handler to an action, replacing any previous one.
func (t *Table) Register(action adventure.Action, h Handler) *Table {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[action] = h
	return t
}

// Supports reports whether a handler is registered for action.
func (t *Table) Supports(action adventure.Action) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.handlers[action]
	return ok
}

// Actions returns the registered actions, sorted.
func (t *Table) Actions() []adventure.Action {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]adventure.Action, 0, len(t.handlers))
	for a := range t.handlers {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Fire runs the handler for action. Unknown actions are logged and skipped.
func (t *Table) Fire(action adventure.Action, payload string) {
	t.mu.RLock()
	h, ok := t.handlers[action]
	t.mu.RUnlock()

	if !ok {
		t.logger.Warn("Unknown effect action", "action", action, "payload", payload)
		return
	}
	h(payload)
}

// Unsupported returns the effect actions used by rules that d cannot handle.
// Dispatchers that cannot describe their support are assumed to handle everything.
func Unsupported(d Dispatcher, rules []adventure.Rule) []adventure.Action {
	type supporter interface {
		Supports(adventure.Action) bool
	}
	s, ok := d.(supporter)
	if !ok {
		return nil
	}

	seen := make(map[adventure.Action]bool)
	var out []adventure.Action
	for _, r := range rules {
		if !r.Action.IsEffect() || seen[r.Action] {
			continue
		}
		seen[r.Action] = true
		if !s.Supports(r.Action) {
			out = append(out, r.Action)
		}
	}
	return out
}

// Func adapts a plain function to the Dispatcher interface.
type Func func(action adventure.Action, payload string)

func (f Func) Fire(action adventure.Action, payload string) { f(action, payload) }

// Discard drops every effect.
var Discard Dispatcher = Func(func(adventure.Action, string) {})

// Recorder stores fired effects in order. Useful for tests and for clients that
// poll rather than stream.
type Recorder struct {
	mu    sync.Mutex
	fired []Fired
}

// Fired is one recorded effect.
type Fired struct {
	Action  adventure.Action `json:"action"`
	Payload string           `json:"payload"`
}

func (r *Recorder) Fire(action adventure.Action, payload string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired = append(r.fired, Fired{Action: action, Payload: payload})
}

// Fired returns a copy of everything recorded so far.
func (r *Recorder) Fired() []Fired {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Fired, len(r.fired))
	copy(out, r.fired)
	return out
}

// Count returns how many times action fired with payload.
func (r *Recorder) Count(action adventure.Action, payload string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, f := range r.fired {
		if f.Action == action && f.Payload == payload {
			n++
		}
	}
	return n
}
