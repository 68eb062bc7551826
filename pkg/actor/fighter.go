package actor

import (
	"errors"
	"fmt"

	"github.com/jwebster45206/d20"

	"github.com/jwebster45206/adventure-engine/pkg/adventure"
)

// DefaultAC is the armor class given to combatants, which carry none of their own.
const DefaultAC = 10

var ErrNoHealth = errors.New("combatant has no linked health resource")

// Fighter is the runtime view of a queued combatant whose health is tracked by
// a linked resource. The engine state owns the number; the d20 actor mirrors it
// for display, the way player characters wrap their sheet.
type Fighter struct {
	Combatant adventure.Combatant
	Actor     *d20.Actor // Built from the linked resource's max

	down bool
}

// NewFighter builds a fighter for c from its linked resource definition and the
// resource's current value.
func NewFighter(c adventure.Combatant, res adventure.Resource, current int) (*Fighter, error) {
	if c.LinkedResource == "" || res.Max <= 0 {
		return nil, ErrNoHealth
	}

	a, err := d20.NewActor(c.ID).
		WithHP(res.Max).
		WithAC(DefaultAC).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build actor: %w", err)
	}

	f := &Fighter{Combatant: c, Actor: a}
	if err := f.SetHP(current); err != nil {
		return nil, err
	}
	return f, nil
}

// SetHP clamps v to [0, MaxHP]. Zero is recorded on the fighter; the actor
// keeps its last living value.
func (f *Fighter) SetHP(v int) error {
	v = min(max(v, 0), f.Actor.MaxHP())
	if v == 0 {
		f.down = true
		return nil
	}
	f.down = false
	if err := f.Actor.SetHP(v); err != nil {
		return fmt.Errorf("failed to set HP: %w", err)
	}
	return nil
}

func (f *Fighter) HP() int {
	if f.down {
		return 0
	}
	return f.Actor.HP()
}

func (f *Fighter) MaxHP() int { return f.Actor.MaxHP() }

// Down reports whether the fighter has no HP left.
func (f *Fighter) Down() bool { return f.down }

// Health is the serializable health summary shown next to a queued combatant.
type Health struct {
	ID       string                  `json:"id"`
	Name     string                  `json:"name"`
	Type     adventure.CombatantType `json:"type"`
	Resource string                  `json:"resource"`
	HP       int                     `json:"hp"`
	MaxHP    int                     `json:"max_hp"`
	AC       int                     `json:"ac"`
	Down     bool                    `json:"down"`
}

func (f *Fighter) Health() Health {
	return Health{
		ID:       f.Combatant.ID,
		Name:     f.Combatant.Name,
		Type:     f.Combatant.Type,
		Resource: f.Combatant.LinkedResource,
		HP:       f.HP(),
		MaxHP:    f.MaxHP(),
		AC:       f.Actor.AC(),
		Down:     f.Down(),
	}
}

// Percent is the remaining health in [0, 100].
func (h Health) Percent() int {
	if h.MaxHP <= 0 {
		return 0
	}
	return h.HP * 100 / h.MaxHP
}

// Roster returns health summaries for the queued combatants that have a linked
// resource, in queue order. Combatants whose resource is unknown are skipped.
func Roster(queue []adventure.Combatant, adv *adventure.Adventure, values map[string]int) []Health {
	if adv == nil {
		return nil
	}
	out := make([]Health, 0, len(queue))
	for _, c := range queue {
		if c.LinkedResource == "" {
			continue
		}
		res, ok := adv.Resource(c.LinkedResource)
		if !ok {
			continue
		}
		f, err := NewFighter(c, res, values[c.LinkedResource])
		if err != nil {
			continue
		}
		out = append(out, f.Health())
	}
	return out
}
