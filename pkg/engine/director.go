package engine

import (
	"strconv"
	"strings"

	"github.com/jwebster45206/adventure-engine/pkg/adventure"
	"github.com/jwebster45206/adventure-engine/pkg/state"
)

// SetScript installs the rules and surge events the director evaluates, and
// queues one evaluation pass against the current state. Passing no rules and no
// surges still installs an (empty) script; use ClearScript to uninstall.
func (e *Engine) SetScript(adventureID string, rules []adventure.Rule, surges []adventure.SurgeEvent) {
	sc := &script{
		adventureID: adventureID,
		rules:       append([]adventure.Rule(nil), rules...),
		surges:      make([]adventure.SurgeEvent, len(surges)),
	}
	for i, s := range surges {
		sc.surges[i] = s.Clone()
	}

	e.script.Set(sc)
	e.logger.Debug("Director installed", "adventure_id", adventureID, "rules", len(rules), "surges", len(surges))
	// Re-deliver through the cell so this pass is ordered with concurrent writes.
	e.engineState.Renotify()
}

// ClearScript uninstalls the director's rules and surges.
func (e *Engine) ClearScript() {
	e.script.Set(nil)
}

// direct runs after every settled engine state: rules first, then the
// turn-triggered surge check when the turn has changed since the last pass.
func (e *Engine) direct(st state.EngineState) {
	sc := e.script.Get()
	if sc == nil {
		return
	}

	e.evaluateRules(sc, st)

	turn := st.Turn()
	changed := false
	e.observedTurn.Update(func(prev int) int {
		changed = prev != turn
		return turn
	})
	if changed {
		e.checkSurges(sc, turn)
	}
}

func (e *Engine) evaluateRules(sc *script, st state.EngineState) {
	turn := st.Turn()
	for i, rule := range sc.rules {
		key := state.FiredRuleKey{Turn: turn, Rule: i}
		if e.fired.Get().Has(key) {
			continue
		}
		if !rule.Met(st) {
			continue
		}
		if !e.markFired(key) {
			continue
		}

		e.logger.Info("Rule triggered",
			"turn", turn,
			"rule", i,
			"condition", rule.Condition.String(),
			"action", rule.Action)
		e.dispatchRule(sc, rule)
	}
}

// markFired records key and reports whether this call was the one that did.
func (e *Engine) markFired(key state.FiredRuleKey) bool {
	won := false
	e.fired.Update(func(cur state.FiredRules) state.FiredRules {
		if cur.Has(key) {
			return cur
		}
		won = true
		return cur.With(key)
	})
	return won
}

func (e *Engine) dispatchRule(sc *script, rule adventure.Rule) {
	switch rule.Action {
	case adventure.ActionAdvanceTurn:
		e.scheduler.After(e.advanceDelay, func() { e.AdvanceTurn() })
	case adventure.ActionSurge:
		e.surgeFromRule(sc, rule.Payload)
	default:
		e.dispatcher.Fire(rule.Action, rule.Payload)
	}
}

func (e *Engine) surgeFromRule(sc *script, payload string) {
	turn, err := strconv.Atoi(strings.TrimSpace(payload))
	if err != nil {
		e.logger.Warn("Surge rule payload is not a turn number", "payload", payload)
		return
	}
	for _, s := range sc.surges {
		if s.TriggerTurn == turn {
			e.ActivateSurge(s)
			return
		}
	}
	e.logger.Warn("No surge event for turn", "turn", turn)
}

func (e *Engine) checkSurges(sc *script, turn int) {
	for _, s := range sc.surges {
		if s.TriggerTurn == turn {
			e.logger.Info("Surge event triggered", "turn", turn, "target", s.Target)
			e.ActivateSurge(s)
			return
		}
	}
}
