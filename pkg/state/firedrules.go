package state

import (
	"fmt"
	"sort"
)

// FiredRuleKey identifies a rule that already fired during a turn.
type FiredRuleKey struct {
	Turn int
	Rule int
}

// String encodes the key as "turn:rule".
func (k FiredRuleKey) String() string {
	return fmt.Sprintf("%d:%d", k.Turn, k.Rule)
}

// FiredRules is a copy-on-write set of fired rule keys.
type FiredRules map[FiredRuleKey]struct{}

func (f FiredRules) Has(k FiredRuleKey) bool {
	_, ok := f[k]
	return ok
}

// With returns a copy of f including k.
func (f FiredRules) With(k FiredRuleKey) FiredRules {
	out := make(FiredRules, len(f)+1)
	for key := range f {
		out[key] = struct{}{}
	}
	out[k] = struct{}{}
	return out
}

// UpTo returns a copy of f without keys whose turn is after turn.
func (f FiredRules) UpTo(turn int) FiredRules {
	out := make(FiredRules, len(f))
	for key := range f {
		if key.Turn <= turn {
			out[key] = struct{}{}
		}
	}
	return out
}

// Strings returns the encoded keys sorted by turn, then rule.
func (f FiredRules) Strings() []string {
	keys := make([]FiredRuleKey, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Turn != keys[j].Turn {
			return keys[i].Turn < keys[j].Turn
		}
		return keys[i].Rule < keys[j].Rule
	})
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}
