// Package engine is the client-side state and rule engine for an adventure
// session. An Engine is an explicit state container: it owns every piece of
// session state (resource values, turn history, fired rules, the combatant
// queue, the active surge) as separate atomic cells, and exposes the
// mutators, controllers and the rule-evaluating director that operate on them.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jwebster45206/adventure-engine/pkg/adventure"
	"github.com/jwebster45206/adventure-engine/pkg/effects"
	"github.com/jwebster45206/adventure-engine/pkg/state"
)

const (
	DefaultAdvanceTurnDelay = 500 * time.Millisecond
	DefaultPersistTimeout   = 2 * time.Second
)

var (
	ErrSurgeActive    = errors.New("cannot start an encounter while a surge is active")
	ErrNotPermutation = errors.New("new order is not a permutation of the current queue")
	ErrNilAdventure   = errors.New("adventure cannot be nil")
)

// RoundPolicy decides how the global turn counter relates to the combatant queue.
type RoundPolicy string

const (
	// RoundPolicyQueue advances the turn each time the rotation brings the round
	// leader back to the front of the queue. This is the default.
	RoundPolicyQueue RoundPolicy = "queue"
	// RoundPolicyManual keeps turns and queue rotation independent.
	RoundPolicyManual RoundPolicy = "manual"
)

// Persister stores the engine state and session id for one client.
type Persister interface {
	SaveEngineState(ctx context.Context, st state.EngineState) error
	LoadEngineState(ctx context.Context) (state.EngineState, error)
	SaveSessionID(ctx context.Context, sessionID string) error
	LoadSessionID(ctx context.Context) (string, error)
}

// AuthChecker classifies a session as guest or authenticated. It is a
// presence check only and must not block.
type AuthChecker interface {
	IsAuthenticated() bool
}

// AuthFunc adapts a function to AuthChecker.
type AuthFunc func() bool

func (f AuthFunc) IsAuthenticated() bool { return f() }

// Guest is an AuthChecker that always reports a guest session.
var Guest AuthChecker = AuthFunc(func() bool { return false })

type Options struct {
	Logger     *slog.Logger
	Dispatcher effects.Dispatcher
	Persister  Persister
	Auth       AuthChecker
	Scheduler  Scheduler
	Rand       *rand.Rand
	Now        func() time.Time

	AdvanceTurnDelay time.Duration
	PersistTimeout   time.Duration
	// HistoryLimit caps the number of turn snapshots kept; 0 keeps all of them.
	HistoryLimit int
	RoundPolicy  RoundPolicy
}

// script is the rule/surge configuration the director watches with.
type script struct {
	adventureID string
	rules       []adventure.Rule
	surges      []adventure.SurgeEvent
}

type Engine struct {
	logger         *slog.Logger
	dispatcher     effects.Dispatcher
	persister      Persister
	auth           AuthChecker
	scheduler      Scheduler
	now            func() time.Time
	advanceDelay   time.Duration
	persistTimeout time.Duration
	historyLimit   int
	roundPolicy    RoundPolicy

	rngMu sync.Mutex
	rng   *rand.Rand

	dismissMu sync.Mutex

	engineState    *state.Cell[state.EngineState]
	history        *state.Cell[[]state.TurnHistoryEntry]
	fired          *state.Cell[state.FiredRules]
	queue          *state.Cell[[]adventure.Combatant]
	roundLeader    *state.Cell[string]
	activeSurge    *state.Cell[*adventure.SurgeEvent]
	sessionID      *state.Cell[string]
	party          *state.Cell[[]adventure.PartyMember]
	drawerExpanded *state.Cell[bool]
	autoExpand     *state.Cell[bool]

	script       *state.Cell[*script]
	observedTurn *state.Cell[int]

	subsMu sync.Mutex
	subsID int
	subs   map[int]func()
}

// New builds an engine with empty session state. Call InitEngine or Load to
// start a session, or Hydrate to restore a persisted one.
func New(opts Options) *Engine {
	e := &Engine{
		logger:         opts.Logger,
		dispatcher:     opts.Dispatcher,
		persister:      opts.Persister,
		auth:           opts.Auth,
		scheduler:      opts.Scheduler,
		now:            opts.Now,
		rng:            opts.Rand,
		advanceDelay:   opts.AdvanceTurnDelay,
		persistTimeout: opts.PersistTimeout,
		historyLimit:   opts.HistoryLimit,
		roundPolicy:    opts.RoundPolicy,

		engineState:    state.NewCell(state.EngineState{}),
		history:        state.NewCell[[]state.TurnHistoryEntry](nil),
		fired:          state.NewCell(state.FiredRules{}),
		queue:          state.NewCell[[]adventure.Combatant](nil),
		roundLeader:    state.NewCell(""),
		activeSurge:    state.NewCell[*adventure.SurgeEvent](nil),
		sessionID:      state.NewCell(""),
		party:          state.NewCell[[]adventure.PartyMember](nil),
		drawerExpanded: state.NewCell(false),
		autoExpand:     state.NewCell(false),
		script:         state.NewCell[*script](nil),
		observedTurn:   state.NewCell(0),
		subs:           make(map[int]func()),
	}

	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.dispatcher == nil {
		e.dispatcher = effects.Discard
	}
	if e.auth == nil {
		e.auth = Guest
	}
	if e.scheduler == nil {
		e.scheduler = NewTimerScheduler()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if e.advanceDelay <= 0 {
		e.advanceDelay = DefaultAdvanceTurnDelay
	}
	if e.persistTimeout <= 0 {
		e.persistTimeout = DefaultPersistTimeout
	}
	if e.historyLimit < 0 {
		e.historyLimit = 0
	}
	if e.roundPolicy == "" {
		e.roundPolicy = RoundPolicyQueue
	}

	// The director and the persister see every engine state once, in write
	// order, even when several goroutines write.
	e.engineState.Subscribe(e.direct)

	if e.persister != nil {
		e.engineState.Subscribe(e.persistState)
		e.sessionID.Subscribe(e.persistSessionID)
	}

	e.engineState.Subscribe(func(state.EngineState) { e.changed() })
	e.history.Subscribe(func([]state.TurnHistoryEntry) { e.changed() })
	e.fired.Subscribe(func(state.FiredRules) { e.changed() })
	e.queue.Subscribe(func([]adventure.Combatant) { e.changed() })
	e.activeSurge.Subscribe(func(*adventure.SurgeEvent) { e.changed() })
	e.sessionID.Subscribe(func(string) { e.changed() })
	e.party.Subscribe(func([]adventure.PartyMember) { e.changed() })
	e.drawerExpanded.Subscribe(func(bool) { e.changed() })
	e.autoExpand.Subscribe(func(bool) { e.changed() })

	return e
}

// Subscribe registers fn to be called after any piece of session state changes.
// Calls for one piece of state arrive in change order; they may run on the
// goroutine of an earlier, still delivering, writer.
func (e *Engine) Subscribe(fn func()) func() {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	e.subsID++
	id := e.subsID
	e.subs[id] = fn
	return func() {
		e.subsMu.Lock()
		defer e.subsMu.Unlock()
		delete(e.subs, id)
	}
}

func (e *Engine) changed() {
	e.subsMu.Lock()
	fns := make([]func(), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.subsMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (e *Engine) persistState(st state.EngineState) {
	ctx, cancel := context.WithTimeout(context.Background(), e.persistTimeout)
	defer cancel()
	if err := e.persister.SaveEngineState(ctx, st); err != nil {
		e.logger.Error("Failed to persist engine state", "error", err)
	}
}

func (e *Engine) persistSessionID(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), e.persistTimeout)
	defer cancel()
	if err := e.persister.SaveSessionID(ctx, id); err != nil {
		e.logger.Error("Failed to persist session id", "error", err)
	}
}

// State returns a copy of the current engine state.
func (e *Engine) State() state.EngineState {
	return e.engineState.Get().Clone()
}

// SessionID returns the current session identifier, empty when no session is loaded.
func (e *Engine) SessionID() string {
	return e.sessionID.Get()
}

// AdventureID returns the id of the adventure whose rules are installed.
func (e *Engine) AdventureID() string {
	if sc := e.script.Get(); sc != nil {
		return sc.adventureID
	}
	return ""
}

// View is a consistent-enough read of every session cell, for rendering.
type View struct {
	SessionID        string                   `json:"session_id"`
	AdventureID      string                   `json:"adventure_id,omitempty"`
	State            state.EngineState        `json:"state"`
	CurrentTurn      int                      `json:"current_turn"`
	History          []state.TurnHistoryEntry `json:"history"`
	FiredRules       []string                 `json:"fired_rules"`
	Queue            []adventure.Combatant    `json:"queue"`
	CurrentCombatant string                   `json:"current_combatant,omitempty"`
	RoundLeader      string                   `json:"round_leader,omitempty"`
	ActiveSurge      *adventure.SurgeEvent    `json:"active_surge"`
	Party            []adventure.PartyMember  `json:"party,omitempty"`
	DrawerExpanded   bool                     `json:"drawer_expanded"`
	ShouldAutoExpand bool                     `json:"should_auto_expand"`
}

// Snapshot reads every cell into a View. Each field is individually settled;
// cells written concurrently with the snapshot may be from adjacent writes.
func (e *Engine) Snapshot() View {
	st := e.State()
	return View{
		SessionID:        e.SessionID(),
		AdventureID:      e.AdventureID(),
		State:            st,
		CurrentTurn:      st.Turn(),
		History:          e.History(),
		FiredRules:       e.fired.Get().Strings(),
		Queue:            e.Queue(),
		CurrentCombatant: e.CurrentCombatant(),
		RoundLeader:      e.roundLeader.Get(),
		ActiveSurge:      e.ActiveSurge(),
		Party:            e.Party(),
		DrawerExpanded:   e.drawerExpanded.Get(),
		ShouldAutoExpand: e.autoExpand.Get(),
	}
}

// Close cancels scheduled work. The engine's state is left untouched.
func (e *Engine) Close() {
	e.scheduler.CancelAll()
}
