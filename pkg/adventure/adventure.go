// Package adventure defines the static per-adventure configuration consumed by the
// engine: resources, rules, surge events and combatants.
package adventure

import (
	"github.com/jwebster45206/adventure-engine/pkg/conditionals"
)

type Theme string

const (
	ThemeRed    Theme = "red"
	ThemeGreen  Theme = "green"
	ThemeBlue   Theme = "blue"
	ThemeGold   Theme = "gold"
	ThemePurple Theme = "purple"
)

func (t Theme) Valid() bool {
	switch t {
	case ThemeRed, ThemeGreen, ThemeBlue, ThemeGold, ThemePurple:
		return true
	}
	return false
}

type Style string

const (
	StyleBar     Style = "bar"
	StyleCounter Style = "counter"
	StyleHidden  Style = "hidden"
)

func (s Style) Valid() bool {
	switch s {
	case StyleBar, StyleCounter, StyleHidden:
		return true
	}
	return false
}

// Resource is a named, bounded integer tracked across a session (HP, trust, XP).
// The current value lives in the engine state keyed by ID.
type Resource struct {
	ID      string `json:"id" yaml:"id"`
	Label   string `json:"label" yaml:"label"`
	Max     int    `json:"max" yaml:"max"`
	Initial int    `json:"initial" yaml:"initial"`
	Theme   Theme  `json:"theme,omitempty" yaml:"theme,omitempty"`
	Style   Style  `json:"style,omitempty" yaml:"style,omitempty"`
	Icon    string `json:"icon,omitempty" yaml:"icon,omitempty"`
}

// Action is what a rule does once its condition is met.
type Action string

const (
	ActionToast           Action = "toast"
	ActionConfetti        Action = "confetti"
	ActionShake           Action = "shake"
	ActionRedirect        Action = "redirect"
	ActionUnlock          Action = "unlock"
	ActionAdvanceTurn     Action = "advance_turn"
	ActionSurge           Action = "surge"
	ActionFlash           Action = "flash"
	ActionRemoveCombatant Action = "remove_combatant"
)

// Actions lists every rule action the engine understands.
var Actions = []Action{
	ActionToast,
	ActionConfetti,
	ActionShake,
	ActionRedirect,
	ActionUnlock,
	ActionAdvanceTurn,
	ActionSurge,
	ActionFlash,
	ActionRemoveCombatant,
}

func (a Action) Valid() bool {
	for _, known := range Actions {
		if a == known {
			return true
		}
	}
	return false
}

// IsEffect reports whether the action is forwarded to the effect dispatcher.
// advance_turn and surge are handled by the engine itself.
func (a Action) IsEffect() bool {
	return a != ActionAdvanceTurn && a != ActionSurge
}

// Rule is a condition-action pair. It fires at most once per turn.
type Rule struct {
	conditionals.Condition `yaml:",inline"`
	Action                 Action `json:"action" yaml:"action"`
	Payload                string `json:"payload,omitempty" yaml:"payload,omitempty"`
}

type Animation string

const (
	AnimationNone  Animation = "none"
	AnimationShake Animation = "shake"
	AnimationFlash Animation = "flash"
	AnimationLock  Animation = "lock"
)

func (a Animation) Valid() bool {
	switch a {
	case "", AnimationNone, AnimationShake, AnimationFlash, AnimationLock:
		return true
	}
	return false
}

// ResourceMod is a delta applied to a resource when a surge is dismissed.
type ResourceMod struct {
	ResourceID string `json:"resourceId" yaml:"resourceId"`
	Delta      int    `json:"delta" yaml:"delta"`
}

// SurgeEvent is a scripted plot-twist interruption.
// Target names the combatant moved to the front of the queue when ForceFirst is set.
type SurgeEvent struct {
	TriggerTurn     int           `json:"triggerTurn" yaml:"triggerTurn"`
	Dialogue        string        `json:"dialogue" yaml:"dialogue"`
	ForceFirst      bool          `json:"forceFirst,omitempty" yaml:"forceFirst,omitempty"`
	Target          string        `json:"target,omitempty" yaml:"target,omitempty"`
	Animation       Animation     `json:"animation,omitempty" yaml:"animation,omitempty"`
	ModifyResources []ResourceMod `json:"modifyResources,omitempty" yaml:"modifyResources,omitempty"`
}

// Clone returns a deep copy of the surge.
func (s SurgeEvent) Clone() SurgeEvent {
	if s.ModifyResources != nil {
		mods := make([]ResourceMod, len(s.ModifyResources))
		copy(mods, s.ModifyResources)
		s.ModifyResources = mods
	}
	return s
}

type CombatantType string

const (
	CombatantHero  CombatantType = "hero"
	CombatantEnemy CombatantType = "enemy"
	CombatantAlly  CombatantType = "ally"
)

func (c CombatantType) Valid() bool {
	switch c {
	case CombatantHero, CombatantEnemy, CombatantAlly:
		return true
	}
	return false
}

// Combatant is a participant in the turn-order queue.
type Combatant struct {
	ID             string        `json:"id" yaml:"id"`
	Name           string        `json:"name" yaml:"name"`
	Avatar         string        `json:"avatar,omitempty" yaml:"avatar,omitempty"`
	Type           CombatantType `json:"type" yaml:"type"`
	LinkedResource string        `json:"linkedResource,omitempty" yaml:"linkedResource,omitempty"`
}

// PartyMember is one member of the real-life party mustered before play.
type PartyMember struct {
	ID     string `json:"id,omitempty" yaml:"id,omitempty"`
	Name   string `json:"name" yaml:"name"`
	Avatar string `json:"avatar,omitempty" yaml:"avatar,omitempty"`
}

// Adventure is the full definition loaded from a content file.
type Adventure struct {
	ID          string       `json:"id" yaml:"id,omitempty"`
	Title       string       `json:"title" yaml:"title"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Resources   []Resource   `json:"resources" yaml:"resources"`
	Rules       []Rule       `json:"rules,omitempty" yaml:"rules,omitempty"`
	Surges      []SurgeEvent `json:"surges,omitempty" yaml:"surges,omitempty"`
	Combatants  []Combatant  `json:"combatants,omitempty" yaml:"combatants,omitempty"`
	Body        string       `json:"body,omitempty" yaml:"-"`
}

// Resource returns the resource definition with the given id.
func (a *Adventure) Resource(id string) (Resource, bool) {
	for _, r := range a.Resources {
		if r.ID == id {
			return r, true
		}
	}
	return Resource{}, false
}
