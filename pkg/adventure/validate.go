package adventure

import (
	"fmt"
	"strings"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is a single validation finding.
type Issue struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Severity, i.Message)
}

// Issues is the result of validating an adventure.
type Issues []Issue

// HasErrors reports whether any issue is an error.
func (is Issues) HasErrors() bool {
	for _, i := range is {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

func (is Issues) Errors() []string {
	var out []string
	for _, i := range is {
		if i.Severity == SeverityError {
			out = append(out, i.Message)
		}
	}
	return out
}

type validator struct {
	issues Issues
}

func (v *validator) errorf(format string, args ...any) {
	v.issues = append(v.issues, Issue{Severity: SeverityError, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) warnf(format string, args ...any) {
	v.issues = append(v.issues, Issue{Severity: SeverityWarning, Message: fmt.Sprintf(format, args...)})
}

// Validate checks an adventure definition. Errors make the content unpublishable;
// warnings describe things the engine tolerates at runtime.
func Validate(a *Adventure) Issues {
	v := &validator{}
	if a == nil {
		v.errorf("adventure is nil")
		return v.issues
	}

	if strings.TrimSpace(a.Title) == "" {
		v.errorf("missing required field: title")
	}
	if strings.TrimSpace(a.Description) == "" {
		v.errorf("missing required field: description")
	}
	if strings.TrimSpace(a.Body) == "" {
		v.errorf("content body is empty")
	}

	resourceIDs := v.validateResources(a.Resources)
	v.validateRules(a.Rules, resourceIDs, len(a.Surges) > 0)
	combatantIDs := v.validateCombatants(a.Combatants)
	v.validateSurges(a.Surges, resourceIDs, combatantIDs)

	return v.issues
}

func (v *validator) validateResources(resources []Resource) map[string]bool {
	ids := make(map[string]bool)
	if len(resources) == 0 {
		v.errorf("at least one resource is required")
		return ids
	}

	for i, r := range resources {
		if r.ID == "" {
			v.errorf("resource at index %d missing id", i)
			continue
		}
		if strings.HasPrefix(r.ID, "_") {
			v.errorf("resource %q uses the reserved '_' prefix", r.ID)
		}
		if ids[r.ID] {
			v.errorf("duplicate resource id: %s", r.ID)
		}
		ids[r.ID] = true

		if r.Label == "" {
			v.errorf("resource %q missing label", r.ID)
		}
		if r.Max < 0 {
			v.errorf("resource %q has negative max %d", r.ID, r.Max)
		}
		if r.Initial < 0 || r.Initial > r.Max {
			v.errorf("resource %q initial %d outside [0, %d]", r.ID, r.Initial, r.Max)
		}
		if r.Theme != "" && !r.Theme.Valid() {
			v.warnf("resource %q has unknown theme %q", r.ID, r.Theme)
		}
		if r.Style != "" && !r.Style.Valid() {
			v.warnf("resource %q has unknown style %q", r.ID, r.Style)
		}
	}
	return ids
}

func (v *validator) validateRules(rules []Rule, resourceIDs map[string]bool, hasSurges bool) {
	for i, rule := range rules {
		if !resourceIDs[rule.TargetID] {
			v.errorf("rule %d references non-existent resource %q", i, rule.TargetID)
		}
		if !rule.Operator.Valid() {
			v.errorf("rule %d has unknown operator %q", i, rule.Operator)
		}
		if !rule.Action.Valid() {
			// The dispatcher logs and skips these; the rest of the rules still run.
			v.warnf("rule %d has unknown action %q", i, rule.Action)
		}
		if rule.Action == ActionSurge && !hasSurges {
			v.warnf("rule %d triggers a surge but no surges are defined", i)
		}
		if (rule.Action == ActionRedirect || rule.Action == ActionUnlock || rule.Action == ActionRemoveCombatant) && rule.Payload == "" {
			v.warnf("rule %d action %q has an empty payload", i, rule.Action)
		}
	}
}

func (v *validator) validateCombatants(combatants []Combatant) map[string]bool {
	ids := make(map[string]bool)
	for i, c := range combatants {
		if c.ID == "" {
			v.errorf("combatant at index %d missing id", i)
			continue
		}
		if ids[c.ID] {
			v.errorf("duplicate combatant id: %s", c.ID)
		}
		ids[c.ID] = true
		if !c.Type.Valid() {
			v.errorf("combatant %q has unknown type %q", c.ID, c.Type)
		}
	}
	return ids
}

func (v *validator) validateSurges(surges []SurgeEvent, resourceIDs, combatantIDs map[string]bool) {
	for i, s := range surges {
		if s.TriggerTurn < 1 {
			v.errorf("surge %d has invalid triggerTurn (must be >= 1)", i)
		}
		if s.Dialogue == "" {
			v.errorf("surge %d missing dialogue", i)
		}
		if !s.Animation.Valid() {
			v.warnf("surge %d has unknown animation %q", i, s.Animation)
		}
		if s.ForceFirst {
			switch {
			case s.Target == "":
				v.errorf("surge %d sets forceFirst without a target combatant", i)
			case !combatantIDs[s.Target]:
				v.warnf("surge %d targets %q which is not a scripted combatant", i, s.Target)
			}
		}
		for _, mod := range s.ModifyResources {
			if !resourceIDs[mod.ResourceID] {
				v.errorf("surge %d modifies non-existent resource %q", i, mod.ResourceID)
			}
		}
	}
}
