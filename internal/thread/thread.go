// Package thread holds the thread records the scheduler reads and writes.
// Records live in a Table and are addressed by ID handles, so queue
// membership is a field on the record instead of a pointer link.
package thread

import (
	"fmt"

	"github.com/me/ksched/pkg/model"
)

// ID is a handle into a Table.
type ID int32

// None is the invalid handle.
const None ID = -1

// NotQueued is the RunQueue value of a thread that is on no run queue.
const NotQueued = -1

// Thread is a schedulable thread record.
type Thread struct {
	ID   ID
	Name string

	BasePriority       int
	PriorityBoost      int
	State              model.ThreadState
	RemainingTimeSlice int
	PinnedCPU          model.CPUNum
	LastCPU            model.CPUNum

	Idle     bool
	RealTime bool

	// RunQueue is the priority level whose queue holds the thread, or
	// NotQueued. Only the run queue store writes it.
	RunQueue int
}

// Effective returns base priority plus boost, clamped to the valid range.
func (t *Thread) Effective() int {
	p := t.BasePriority + t.PriorityBoost
	if p < model.LowestPriority {
		return model.LowestPriority
	}
	if p > model.HighestPriority {
		return model.HighestPriority
	}
	return p
}

// Queued reports whether the thread is on a run queue.
func (t *Thread) Queued() bool {
	return t.RunQueue != NotQueued
}

// Exempt reports whether priority adjustment skips this thread.
func (t *Thread) Exempt() bool {
	return t.Idle || t.RealTime
}

// CanRunOn reports whether the thread's pin allows cpu.
func (t *Thread) CanRunOn(cpu model.CPUNum) bool {
	return t.PinnedCPU == model.NoCPU || t.PinnedCPU == cpu
}

func (t *Thread) String() string {
	return fmt.Sprintf("%s(#%d pri=%d%+d)", t.Name, t.ID, t.BasePriority, t.PriorityBoost)
}

// Spec describes a thread to create.
type Spec struct {
	Name      string
	Priority  int
	PinnedCPU model.CPUNum
	RealTime  bool
}
