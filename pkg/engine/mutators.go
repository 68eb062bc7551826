package engine

import (
	"math"

	"github.com/jwebster45206/adventure-engine/pkg/state"
)

// SurgeCeiling is the upper bound used when surge deltas are applied. It
// saturates rather than capping at a resource's declared max.
const SurgeCeiling = math.MaxInt

// ModifyResource adds delta to the resource's current value (0 when absent)
// and clamps the result to [0, ceiling]. A negative ceiling is treated as 0.
// It returns the stored value.
func (e *Engine) ModifyResource(id string, delta, ceiling int) int {
	var out int
	e.engineState.Update(func(cur state.EngineState) state.EngineState {
		out = clampAdd(cur[id], delta, ceiling)
		return cur.With(id, out)
	})
	return out
}

// SetResource stores value unchanged. It performs no clamping.
func (e *Engine) SetResource(id string, value int) {
	e.engineState.Update(func(cur state.EngineState) state.EngineState {
		return cur.With(id, value)
	})
}

// ResetResource restores a resource to its initial value.
func (e *Engine) ResetResource(id string, initial int) {
	e.SetResource(id, initial)
}

// Resource returns the current value of a resource, 0 when absent.
func (e *Engine) Resource(id string) int {
	return e.engineState.Get()[id]
}

func clampAdd(cur, delta, ceiling int) int {
	if ceiling < 0 {
		ceiling = 0
	}

	var sum int
	switch {
	case delta > 0 && cur > math.MaxInt-delta:
		sum = math.MaxInt
	case delta < 0 && cur < math.MinInt-delta:
		sum = math.MinInt
	default:
		sum = cur + delta
	}

	return min(max(sum, 0), ceiling)
}
