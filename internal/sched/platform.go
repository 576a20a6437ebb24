package sched

import (
	"github.com/me/ksched/internal/cpuselect"
	"github.com/me/ksched/internal/thread"
	"github.com/me/ksched/pkg/model"
)

// RescheduleFlags qualify a reschedule signal.
type RescheduleFlags uint32

const (
	// RescheduleWake marks a signal sent because a thread became ready.
	RescheduleWake RescheduleFlags = 1 << iota
)

// Platform is the multiprocessor and context-switch machinery the
// scheduler drives. Every method is called with the scheduler lock held.
type Platform interface {
	cpuselect.Topology

	// CurrentThread returns the thread running on CurrentCPU.
	CurrentThread() thread.ID

	// Reschedule asks the CPUs in mask to re-run their dispatch loop.
	// It must not call back into the scheduler synchronously.
	Reschedule(mask model.CPUMask, flags RescheduleFlags)

	// ContextSwitch makes next the running thread of cpu in place of old.
	ContextSwitch(cpu model.CPUNum, old, next thread.ID)
}

// Observer receives scheduling decisions as they are made.
type Observer interface {
	OnEnqueue(cpu model.CPUNum, t *thread.Thread, head bool)
	OnSignal(cpu model.CPUNum, t *thread.Thread, mask model.CPUMask)
	OnSwitch(cpu model.CPUNum, old, next *thread.Thread)
}

type nopObserver struct{}

func (nopObserver) OnEnqueue(model.CPUNum, *thread.Thread, bool)          {}
func (nopObserver) OnSignal(model.CPUNum, *thread.Thread, model.CPUMask)  {}
func (nopObserver) OnSwitch(model.CPUNum, *thread.Thread, *thread.Thread) {}
