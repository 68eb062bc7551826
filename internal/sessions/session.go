package sessions

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/adventure-engine/internal/services/effectlog"
	"github.com/jwebster45206/adventure-engine/pkg/actor"
	"github.com/jwebster45206/adventure-engine/pkg/adventure"
	"github.com/jwebster45206/adventure-engine/pkg/effects"
	"github.com/jwebster45206/adventure-engine/pkg/engine"
	store "github.com/jwebster45206/adventure-engine/pkg/storage"
)

// Session is one client's engine plus the adventure it is playing.
type Session struct {
	ClientID uuid.UUID
	Engine   *engine.Engine

	authenticated atomic.Bool

	mu        sync.RWMutex
	adventure *adventure.Adventure
	published stateKey

	storage   store.Storage
	publisher Publisher
	effectLog effectlog.Log
	logger    *slog.Logger
}

type stateKey struct {
	sessionID string
	turn      int
	current   string
}

func (s *Session) setAdventure(a *adventure.Adventure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adventure = a
}

// Adventure returns the adventure being played, or nil when none is loaded.
func (s *Session) Adventure() *adventure.Adventure {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.adventure
}

// View is the engine view plus the health of queued combatants.
type View struct {
	engine.View
	Title  string         `json:"title,omitempty"`
	Health []actor.Health `json:"health,omitempty"`
}

func (s *Session) View() View {
	v := View{View: s.Engine.Snapshot()}
	if adv := s.Adventure(); adv != nil && v.SessionID != "" {
		v.Title = adv.DisplayTitle()
		v.Health = actor.Roster(v.Queue, adv, v.State)
	}
	return v
}

// effectTable maps every effect action to its server-side handler.
func (s *Session) effectTable() *effects.Table {
	t := effects.NewTable(s.logger)
	for _, a := range []adventure.Action{
		adventure.ActionToast,
		adventure.ActionConfetti,
		adventure.ActionShake,
		adventure.ActionFlash,
		adventure.ActionRedirect,
	} {
		t.Register(a, s.relay(a))
	}
	t.Register(adventure.ActionUnlock, s.unlock)
	t.Register(adventure.ActionRemoveCombatant, func(id string) {
		if !s.Engine.RemoveCombatant(id) {
			s.logger.Debug("Combatant to remove not in queue", "combatant", id)
		}
	})
	return t
}

func (s *Session) relay(action adventure.Action) effects.Handler {
	return func(payload string) {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		s.record(ctx, action, payload)
	}
}

func (s *Session) unlock(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	added, err := s.storage.AddUnlock(ctx, s.ClientID, id)
	if err != nil {
		s.logger.Error("Failed to record unlock", "unlock", id, "error", err)
		return
	}
	s.record(ctx, adventure.ActionUnlock, id)
	if added {
		s.record(ctx, adventure.ActionToast, fmt.Sprintf("Unlocked: %s", id))
	}
}

// record appends the effect to the log and broadcasts it.
func (s *Session) record(ctx context.Context, action adventure.Action, payload string) {
	entry := effectlog.Entry{
		Action:    string(action),
		Payload:   payload,
		Turn:      s.Engine.CurrentTurn(),
		SessionID: s.Engine.SessionID(),
		FiredAt:   time.Now(),
	}

	if s.effectLog != nil {
		if err := s.effectLog.Append(ctx, s.ClientID, entry); err != nil {
			s.logger.Warn("Failed to append effect", "action", action, "error", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishEffectFired(ctx, s.ClientID, entry.SessionID, entry.Action, payload, entry.Turn); err != nil {
			s.logger.Warn("Failed to publish effect", "action", action, "error", err)
		}
	}
}

// publishState sends state.updated when the turn, the active combatant or the
// session changes.
func (s *Session) publishState() {
	if s.publisher == nil {
		return
	}

	key := stateKey{
		sessionID: s.Engine.SessionID(),
		turn:      s.Engine.CurrentTurn(),
		current:   s.Engine.CurrentCombatant(),
	}
	s.mu.Lock()
	if key == s.published {
		s.mu.Unlock()
		return
	}
	s.published = key
	s.mu.Unlock()

	if key.sessionID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	if err := s.publisher.PublishStateUpdated(ctx, s.ClientID, key.sessionID, key.turn, key.current); err != nil {
		s.logger.Warn("Failed to publish state update", "error", err)
	}
}
