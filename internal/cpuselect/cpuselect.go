// Package cpuselect decides which CPUs to signal when a thread becomes ready.
package cpuselect

import (
	"github.com/me/ksched/internal/thread"
	"github.com/me/ksched/pkg/model"
)

// Topology reports the multiprocessor state the selector consults.
type Topology interface {
	OnlineMask() model.CPUMask
	IdleMask() model.CPUMask
	CurrentCPU() model.CPUNum
}

// Selector picks reschedule targets. Its rotating cursor is shared by all
// CPUs and must be guarded by the scheduler lock.
type Selector struct {
	// Broadcast signals every online CPU but the local one.
	Broadcast bool
	// SMP enables cross-CPU signals; without it nothing is ever signaled.
	SMP bool

	cursor model.CPUNum
}

// New returns a selector with its cursor at CPU 0.
func New(smp, broadcast bool) *Selector {
	return &Selector{SMP: smp, Broadcast: broadcast}
}

// FindCPU returns the CPUs to signal for the newly ready thread t.
// An empty mask means no signal is needed.
func (s *Selector) FindCPU(t *thread.Thread, topo Topology) model.CPUMask {
	curr := topo.CurrentCPU()
	online := topo.OnlineMask()

	if s.Broadcast {
		return online.Clear(curr)
	}
	if !s.SMP {
		return 0
	}

	idle := topo.IdleMask() & online
	last := t.LastCPU
	if !idle.Empty() {
		if idle.Has(curr) {
			return 0
		}
		if idle.Has(last) {
			return model.MaskOf(last)
		}
		return s.pick(idle, online)
	}

	if last == curr || !online.Has(last) {
		return s.pick(online.Clear(curr), online)
	}
	return model.MaskOf(last)
}

// pick advances the cursor one CPU, wrapping past the highest online CPU,
// and returns the first CPU of mask at or after the previous position.
// The scan starts where the cursor stood before the advance, not after it.
func (s *Selector) pick(mask, online model.CPUMask) model.CPUMask {
	if mask.Empty() {
		return 0
	}
	highest := online.Highest()
	if s.cursor > highest || s.cursor < 0 {
		s.cursor = 0
	}
	start := s.cursor
	s.cursor++
	if s.cursor > highest {
		s.cursor = 0
	}

	n := highest + 1
	for i := model.CPUNum(0); i < n; i++ {
		c := (start + i) % n
		if mask.Has(c) {
			return model.MaskOf(c)
		}
	}
	// mask holds only CPUs above the highest online one.
	return model.MaskOf(mask.Lowest())
}

// Cursor returns the position the next pick starts from.
func (s *Selector) Cursor() model.CPUNum {
	return s.cursor
}

// SetCursor seeds the rotating cursor.
func (s *Selector) SetCursor(c model.CPUNum) {
	s.cursor = c
}
