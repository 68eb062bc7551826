package engine

import (
	"github.com/jwebster45206/adventure-engine/pkg/adventure"
)

// ActivateSurge makes s the active surge. A surge that is already active is
// replaced. Activation raises the drawer auto-expand flag, dispatches the
// surge's shake or flash animation, and moves the target to the front of the
// combatant queue when ForceFirst is set.
func (e *Engine) ActivateSurge(s adventure.SurgeEvent) {
	surge := s.Clone()
	e.activeSurge.Set(&surge)
	e.autoExpand.Set(true)

	switch surge.Animation {
	case adventure.AnimationShake:
		e.dispatcher.Fire(adventure.ActionShake, "")
	case adventure.AnimationFlash:
		e.dispatcher.Fire(adventure.ActionFlash, "")
	}

	if surge.ForceFirst {
		if surge.Target == "" {
			e.logger.Warn("Surge forces first turn but names no target", "turn", surge.TriggerTurn)
		} else if !e.MoveCombatantToFront(surge.Target) {
			e.logger.Debug("Surge target not moved", "target", surge.Target)
		}
	}
}

// ActiveSurge returns a copy of the active surge, or nil.
func (e *Engine) ActiveSurge() *adventure.SurgeEvent {
	s := e.activeSurge.Get()
	if s == nil {
		return nil
	}
	c := s.Clone()
	return &c
}

// DismissSurge applies the active surge's resource modifications, clamped to
// [0, SurgeCeiling], and then clears it. It reports whether a surge was active.
func (e *Engine) DismissSurge() bool {
	e.dismissMu.Lock()
	defer e.dismissMu.Unlock()

	s := e.activeSurge.Get()
	if s == nil {
		return false
	}

	for _, mod := range s.ModifyResources {
		e.ModifyResource(mod.ResourceID, mod.Delta, SurgeCeiling)
	}
	// A rule fired by the deltas may have activated a new surge; keep it.
	e.activeSurge.Update(func(cur *adventure.SurgeEvent) *adventure.SurgeEvent {
		if cur == s {
			return nil
		}
		return cur
	})
	e.logger.Info("Surge dismissed", "turn", s.TriggerTurn, "modifications", len(s.ModifyResources))
	return true
}

// SetDrawerExpanded records whether the combatant drawer is open.
func (e *Engine) SetDrawerExpanded(expanded bool) {
	e.drawerExpanded.Set(expanded)
}

func (e *Engine) DrawerExpanded() bool {
	return e.drawerExpanded.Get()
}

// ConsumeAutoExpand returns the auto-expand flag and lowers it. When it was
// raised the drawer is expanded as well.
func (e *Engine) ConsumeAutoExpand() bool {
	raised := false
	e.autoExpand.Update(func(cur bool) bool {
		raised = cur
		return false
	})
	if raised {
		e.drawerExpanded.Set(true)
	}
	return raised
}
