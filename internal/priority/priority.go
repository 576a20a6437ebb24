// Package priority applies the transient boost and deboost around a
// thread's base priority. Idle and real-time threads are never adjusted.
package priority

import (
	"github.com/me/ksched/internal/thread"
	"github.com/me/ksched/pkg/model"
)

// Boost raises a waking thread's priority by one step, stopping below
// the highest priority and at MaxPriorityAdj.
func Boost(t *thread.Thread) {
	if t.Exempt() {
		return
	}
	if t.PriorityBoost < model.MaxPriorityAdj &&
		t.BasePriority+t.PriorityBoost+1 < model.HighestPriority {
		t.PriorityBoost++
	}
}

// Floor returns the lowest boost Deboost may reach. An expired quantum may
// sink the thread up to MaxPriorityAdj below its base, never below the
// lowest priority; a voluntary yield never goes below the base.
func Floor(t *thread.Thread, quantumExpired bool) int {
	if !quantumExpired {
		return 0
	}
	floor := -model.MaxPriorityAdj
	if t.BasePriority+floor < model.LowestPriority {
		floor = model.LowestPriority - t.BasePriority
	}
	return floor
}

// Deboost lowers the thread's boost by one step toward Floor.
func Deboost(t *thread.Thread, quantumExpired bool) {
	if t.Exempt() {
		return
	}
	if t.PriorityBoost <= Floor(t, quantumExpired) {
		return
	}
	t.PriorityBoost--
}

// InRange reports whether the thread's unclamped priority is valid and
// its boost is within bounds.
func InRange(t *thread.Thread) bool {
	p := t.BasePriority + t.PriorityBoost
	return model.ValidPriority(p) &&
		t.PriorityBoost >= -model.MaxPriorityAdj &&
		t.PriorityBoost <= model.MaxPriorityAdj
}
