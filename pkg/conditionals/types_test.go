package conditionals

import "testing"

type mapView map[string]int

func (m mapView) Value(id string) (int, bool) {
	v, ok := m[id]
	return v, ok
}

func TestOperatorCompare(t *testing.T) {
	tests := []struct {
		op        Operator
		value     int
		threshold int
		expected  bool
	}{
		{OpLessThan, 4, 5, true},
		{OpLessThan, 5, 5, false},
		{OpGreaterThan, 6, 5, true},
		{OpGreaterThan, 5, 5, false},
		{OpEqual, 5, 5, true},
		{OpEqual, 4, 5, false},
		{OpGreaterOrEqual, 5, 5, true},
		{OpGreaterOrEqual, 4, 5, false},
		{OpLessOrEqual, 5, 5, true},
		{OpLessOrEqual, 6, 5, false},
		{Operator("!="), 1, 2, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			if got := tt.op.Compare(tt.value, tt.threshold); got != tt.expected {
				t.Errorf("%d %s %d = %v, want %v", tt.value, tt.op, tt.threshold, got, tt.expected)
			}
		})
	}
}

func TestOperatorValid(t *testing.T) {
	for _, op := range Operators {
		if !op.Valid() {
			t.Errorf("expected %q to be valid", op)
		}
	}
	if Operator("=>").Valid() {
		t.Error("expected => to be invalid")
	}
}

func TestConditionMet(t *testing.T) {
	view := mapView{"hp": 4}

	if !(Condition{TargetID: "hp", Operator: OpLessOrEqual, Threshold: 5}).Met(view) {
		t.Error("hp <= 5 should be met when hp is 4")
	}
	if (Condition{TargetID: "hp", Operator: OpGreaterThan, Threshold: 5}).Met(view) {
		t.Error("hp > 5 should not be met when hp is 4")
	}
	// Missing targets never match, even for comparisons zero would satisfy.
	if (Condition{TargetID: "mana", Operator: OpLessThan, Threshold: 10}).Met(view) {
		t.Error("condition on missing resource should not be met")
	}
	if (Condition{TargetID: "hp", Operator: OpLessThan, Threshold: 10}).Met(nil) {
		t.Error("nil view should never satisfy a condition")
	}
}

func TestConditionString(t *testing.T) {
	c := Condition{TargetID: "trust", Operator: OpGreaterOrEqual, Threshold: 3}
	if got := c.String(); got != "trust >= 3" {
		t.Errorf("String() = %q", got)
	}
}
