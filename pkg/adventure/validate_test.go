package adventure

import (
	"strings"
	"testing"

	"github.com/jwebster45206/adventure-engine/pkg/conditionals"
)

func validAdventure() *Adventure {
	return &Adventure{
		ID:          "test",
		Title:       "Test",
		Description: "A test adventure",
		Body:        "Once upon a time.",
		Resources: []Resource{
			{ID: "hp", Label: "HP", Max: 20, Initial: 20, Theme: ThemeRed, Style: StyleBar},
		},
		Rules: []Rule{
			{Condition: conditionals.Condition{TargetID: "hp", Operator: conditionals.OpLessOrEqual, Threshold: 5}, Action: ActionToast, Payload: "Critical!"},
		},
		Surges: []SurgeEvent{
			{TriggerTurn: 2, Dialogue: "Boo!", ForceFirst: true, Target: "goblin"},
		},
		Combatants: []Combatant{
			{ID: "goblin", Name: "Goblin", Type: CombatantEnemy},
		},
	}
}

func hasIssue(issues Issues, severity Severity, fragment string) bool {
	for _, i := range issues {
		if i.Severity == severity && strings.Contains(i.Message, fragment) {
			return true
		}
	}
	return false
}

func TestValidate_Valid(t *testing.T) {
	issues := Validate(validAdventure())
	if len(issues) != 0 {
		t.Errorf("expected no issues, got %v", issues)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(a *Adventure)
		severity Severity
		fragment string
	}{
		{"missing title", func(a *Adventure) { a.Title = "" }, SeverityError, "title"},
		{"missing description", func(a *Adventure) { a.Description = " " }, SeverityError, "description"},
		{"empty body", func(a *Adventure) { a.Body = "" }, SeverityError, "body"},
		{"no resources", func(a *Adventure) { a.Resources = nil; a.Rules = nil; a.Surges = nil }, SeverityError, "at least one resource"},
		{"duplicate resource", func(a *Adventure) { a.Resources = append(a.Resources, a.Resources[0]) }, SeverityError, "duplicate resource id: hp"},
		{"missing resource id", func(a *Adventure) { a.Resources[0].ID = "" }, SeverityError, "missing id"},
		{"reserved prefix", func(a *Adventure) { a.Resources[0].ID = "_currentTurn" }, SeverityError, "reserved"},
		{"missing label", func(a *Adventure) { a.Resources[0].Label = "" }, SeverityError, "missing label"},
		{"initial above max", func(a *Adventure) { a.Resources[0].Initial = 21 }, SeverityError, "outside"},
		{"unknown theme", func(a *Adventure) { a.Resources[0].Theme = "pink" }, SeverityWarning, "theme"},
		{"rule unknown target", func(a *Adventure) { a.Rules[0].TargetID = "mana" }, SeverityError, "non-existent resource \"mana\""},
		{"rule unknown operator", func(a *Adventure) { a.Rules[0].Operator = "!=" }, SeverityError, "operator"},
		{"rule unknown action", func(a *Adventure) { a.Rules[0].Action = "explode" }, SeverityWarning, "unknown action"},
		{"redirect without payload", func(a *Adventure) { a.Rules[0].Action = ActionRedirect; a.Rules[0].Payload = "" }, SeverityWarning, "empty payload"},
		{"surge turn zero", func(a *Adventure) { a.Surges[0].TriggerTurn = 0 }, SeverityError, "triggerTurn"},
		{"surge missing dialogue", func(a *Adventure) { a.Surges[0].Dialogue = "" }, SeverityError, "dialogue"},
		{"surge forceFirst without target", func(a *Adventure) { a.Surges[0].Target = "" }, SeverityError, "without a target"},
		{"surge unknown target", func(a *Adventure) { a.Surges[0].Target = "dragon" }, SeverityWarning, "dragon"},
		{"surge unknown resource", func(a *Adventure) {
			a.Surges[0].ModifyResources = []ResourceMod{{ResourceID: "gold", Delta: 1}}
		}, SeverityError, "modifies non-existent resource \"gold\""},
		{"combatant bad type", func(a *Adventure) { a.Combatants[0].Type = "villain" }, SeverityError, "unknown type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adv := validAdventure()
			tt.mutate(adv)
			issues := Validate(adv)
			if !hasIssue(issues, tt.severity, tt.fragment) {
				t.Errorf("expected %s containing %q, got %v", tt.severity, tt.fragment, issues)
			}
		})
	}
}

func TestIssues_HasErrors(t *testing.T) {
	warnings := Issues{{Severity: SeverityWarning, Message: "meh"}}
	if warnings.HasErrors() {
		t.Error("warnings alone should not count as errors")
	}
	withError := append(warnings, Issue{Severity: SeverityError, Message: "bad"})
	if !withError.HasErrors() {
		t.Error("expected HasErrors to be true")
	}
	if got := withError.Errors(); len(got) != 1 || got[0] != "bad" {
		t.Errorf("Errors() = %v", got)
	}
}

func TestAction_IsEffect(t *testing.T) {
	for _, a := range Actions {
		want := a != ActionAdvanceTurn && a != ActionSurge
		if a.IsEffect() != want {
			t.Errorf("%s.IsEffect() = %v, want %v", a, a.IsEffect(), want)
		}
	}
}
