package conditionals

import "fmt"

// Operator compares a resource value against a rule threshold.
type Operator string

const (
	OpLessThan       Operator = "<"
	OpGreaterThan    Operator = ">"
	OpEqual          Operator = "=="
	OpGreaterOrEqual Operator = ">="
	OpLessOrEqual    Operator = "<="
)

// Operators lists every supported operator in declaration order.
var Operators = []Operator{OpLessThan, OpGreaterThan, OpEqual, OpGreaterOrEqual, OpLessOrEqual}

// Valid reports whether o is one of the supported operators.
func (o Operator) Valid() bool {
	switch o {
	case OpLessThan, OpGreaterThan, OpEqual, OpGreaterOrEqual, OpLessOrEqual:
		return true
	}
	return false
}

// Compare evaluates "value <o> threshold". Unknown operators never match.
func (o Operator) Compare(value, threshold int) bool {
	switch o {
	case OpLessThan:
		return value < threshold
	case OpGreaterThan:
		return value > threshold
	case OpEqual:
		return value == threshold
	case OpGreaterOrEqual:
		return value >= threshold
	case OpLessOrEqual:
		return value <= threshold
	default:
		return false
	}
}

// Condition is the "when" half of a rule: a single resource compared to a threshold.
type Condition struct {
	TargetID  string   `json:"targetId" yaml:"targetId"`
	Operator  Operator `json:"operator" yaml:"operator"`
	Threshold int      `json:"threshold" yaml:"threshold"`
}

func (c Condition) String() string {
	return fmt.Sprintf("%s %s %d", c.TargetID, c.Operator, c.Threshold)
}

// StateView provides the minimal interface needed to evaluate conditions
// This avoids an import cycle with the state package
type StateView interface {
	Value(id string) (int, bool)
}

// Met checks the condition against the view.
// A target missing from the view never satisfies the condition.
func (c Condition) Met(view StateView) bool {
	if view == nil {
		return false
	}
	value, ok := view.Value(c.TargetID)
	if !ok {
		return false
	}
	return c.Operator.Compare(value, c.Threshold)
}
