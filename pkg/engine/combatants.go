package engine

import (
	"strings"

	"github.com/google/uuid"

	"github.com/jwebster45206/adventure-engine/pkg/adventure"
)

// StartEncounter builds the queue from combatants, shuffles it and makes the
// new head the active combatant and round leader. When a party is set its
// members join as heroes in place of any hero entries in combatants. It fails
// with ErrSurgeActive while a surge is active.
func (e *Engine) StartEncounter(combatants []adventure.Combatant) error {
	if e.activeSurge.Get() != nil {
		return ErrSurgeActive
	}

	pool := e.encounterPool(combatants)
	e.shuffle(pool)

	e.queue.Set(pool)
	leader := ""
	if len(pool) > 0 {
		leader = pool[0].ID
	}
	e.roundLeader.Set(leader)
	e.logger.Info("Encounter started", "combatants", len(pool), "first", leader)
	return nil
}

func (e *Engine) encounterPool(combatants []adventure.Combatant) []adventure.Combatant {
	party := e.party.Get()
	if len(party) == 0 {
		return append([]adventure.Combatant(nil), combatants...)
	}

	pool := make([]adventure.Combatant, 0, len(party)+len(combatants))
	for _, m := range party {
		pool = append(pool, adventure.Combatant{
			ID:     m.ID,
			Name:   m.Name,
			Avatar: m.Avatar,
			Type:   adventure.CombatantHero,
		})
	}
	for _, c := range combatants {
		if c.Type != adventure.CombatantHero {
			pool = append(pool, c)
		}
	}
	return pool
}

// shuffle is an in-place Fisher-Yates shuffle.
func (e *Engine) shuffle(cs []adventure.Combatant) {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	for i := len(cs) - 1; i > 0; i-- {
		j := e.rng.IntN(i + 1)
		cs[i], cs[j] = cs[j], cs[i]
	}
}

// AdvanceCombatantTurn rotates the queue left by one. Under RoundPolicyQueue,
// bringing the round leader back to the front also advances the turn.
func (e *Engine) AdvanceCombatantTurn() {
	rotated := false
	head := ""
	e.queue.Update(func(cur []adventure.Combatant) []adventure.Combatant {
		if len(cur) == 0 {
			return cur
		}
		next := make([]adventure.Combatant, 0, len(cur))
		next = append(next, cur[1:]...)
		next = append(next, cur[0])
		rotated = true
		head = next[0].ID
		return next
	})

	if rotated && e.roundPolicy == RoundPolicyQueue && head == e.roundLeader.Get() {
		e.AdvanceTurn()
	}
}

// ReorderQueue replaces the queue with newOrder, which must contain exactly
// the combatants currently queued. Its head becomes the active combatant and
// the round leader.
func (e *Engine) ReorderQueue(newOrder []adventure.Combatant) error {
	var err error
	e.queue.Update(func(cur []adventure.Combatant) []adventure.Combatant {
		if !samePermutation(cur, newOrder) {
			err = ErrNotPermutation
			return cur
		}
		return append([]adventure.Combatant(nil), newOrder...)
	})
	if err != nil {
		return err
	}
	if len(newOrder) > 0 {
		e.roundLeader.Set(newOrder[0].ID)
	}
	return nil
}

// ReorderQueueByID reorders the queue using combatant ids.
func (e *Engine) ReorderQueueByID(ids []string) error {
	byID := make(map[string]adventure.Combatant)
	for _, c := range e.queue.Get() {
		byID[c.ID] = c
	}
	order := make([]adventure.Combatant, 0, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			return ErrNotPermutation
		}
		order = append(order, c)
	}
	return e.ReorderQueue(order)
}

func samePermutation(a, b []adventure.Combatant) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, c := range a {
		counts[c.ID]++
	}
	for _, c := range b {
		counts[c.ID]--
		if counts[c.ID] < 0 {
			return false
		}
	}
	return true
}

// MoveCombatantToFront moves the combatant with id to the head of the queue,
// keeping the relative order of everyone else, and raises the drawer
// auto-expand flag. It reports whether the queue changed.
func (e *Engine) MoveCombatantToFront(id string) bool {
	moved := false
	e.queue.Update(func(cur []adventure.Combatant) []adventure.Combatant {
		idx := indexOf(cur, id)
		if idx <= 0 {
			return cur
		}
		next := make([]adventure.Combatant, 0, len(cur))
		next = append(next, cur[idx])
		next = append(next, cur[:idx]...)
		next = append(next, cur[idx+1:]...)
		moved = true
		return next
	})

	if moved {
		e.autoExpand.Set(true)
	}
	return moved
}

// RemoveCombatant drops every queue entry with id. When the removed combatant
// was at the head its successor is now active; no extra rotation happens. A
// removed round leader hands the role to the new head.
func (e *Engine) RemoveCombatant(id string) bool {
	removed := false
	head := ""
	e.queue.Update(func(cur []adventure.Combatant) []adventure.Combatant {
		next := make([]adventure.Combatant, 0, len(cur))
		for _, c := range cur {
			if c.ID == id {
				removed = true
				continue
			}
			next = append(next, c)
		}
		if len(next) > 0 {
			head = next[0].ID
		}
		return next
	})

	if !removed {
		return false
	}
	e.roundLeader.Update(func(cur string) string {
		if cur == id {
			return head
		}
		return cur
	})
	e.logger.Info("Combatant removed", "combatant", id)
	return true
}

// Queue returns a copy of the combatant queue; the head is the active combatant.
func (e *Engine) Queue() []adventure.Combatant {
	return append([]adventure.Combatant(nil), e.queue.Get()...)
}

// CurrentCombatant returns the id at the head of the queue, or "" when empty.
func (e *Engine) CurrentCombatant() string {
	q := e.queue.Get()
	if len(q) == 0 {
		return ""
	}
	return q[0].ID
}

// RoundLeader returns the id whose return to the head of the queue closes a round.
func (e *Engine) RoundLeader() string {
	return e.roundLeader.Get()
}

// SetParty stores the roster used by StartEncounter. Members with a blank name
// are dropped and members without an id are given one.
func (e *Engine) SetParty(members []adventure.PartyMember) []adventure.PartyMember {
	party := make([]adventure.PartyMember, 0, len(members))
	for _, m := range members {
		m.Name = strings.TrimSpace(m.Name)
		if m.Name == "" {
			continue
		}
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		party = append(party, m)
	}
	e.party.Set(party)
	return append([]adventure.PartyMember(nil), party...)
}

func (e *Engine) Party() []adventure.PartyMember {
	return append([]adventure.PartyMember(nil), e.party.Get()...)
}

func indexOf(cs []adventure.Combatant, id string) int {
	for i, c := range cs {
		if c.ID == id {
			return i
		}
	}
	return -1
}
