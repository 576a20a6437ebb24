package sim

import (
	"github.com/me/ksched/internal/config"
	"github.com/me/ksched/internal/sched"
	"github.com/me/ksched/internal/thread"
	"github.com/me/ksched/pkg/model"
)

// machine is a simulated SMP system. It stands in for the thread,
// multiprocessing and context-switch subsystems the scheduler drives.
type machine struct {
	cfg     config.SimConfig
	threads *thread.Table
	sched   *sched.Scheduler

	online  model.CPUMask
	running []thread.ID
	curr    model.CPUNum
	pending model.CPUMask
	queues  map[string]*thread.WaitList

	dispatches map[thread.ID]int
	ticks      map[thread.ID]int
	signals    int
	switches   int
}

func (m *machine) OnlineMask() model.CPUMask { return m.online }
func (m *machine) CurrentCPU() model.CPUNum  { return m.curr }
func (m *machine) CurrentThread() thread.ID  { return m.running[m.curr] }

func (m *machine) IdleMask() model.CPUMask {
	var mask model.CPUMask
	for c, id := range m.running {
		if m.threads.Get(id).Idle {
			mask = mask.Set(model.CPUNum(c))
		}
	}
	return mask
}

// Reschedule latches the signal; it is delivered once the current
// operation has released the scheduler lock.
func (m *machine) Reschedule(mask model.CPUMask, _ sched.RescheduleFlags) {
	m.pending |= mask & m.online
	m.signals++
}

func (m *machine) ContextSwitch(cpu model.CPUNum, _, next thread.ID) {
	m.running[cpu] = next
	m.switches++
	m.dispatches[next]++
}

// on runs fn as CPU cpu with the scheduler lock held.
func (m *machine) on(cpu model.CPUNum, fn func()) {
	m.sched.Lock()
	defer m.sched.Unlock()
	m.curr = cpu
	fn()
}

// deliver runs the pending reschedule signals. A signaled CPU preempts
// whatever it is running.
func (m *machine) deliver() {
	for !m.pending.Empty() {
		cpu := m.pending.Lowest()
		m.pending = m.pending.Clear(cpu)
		m.on(cpu, m.sched.Preempt)
	}
}

func (m *machine) current(cpu model.CPUNum) *thread.Thread {
	return m.threads.Get(m.running[cpu])
}

func (m *machine) queue(name string) *thread.WaitList {
	q, ok := m.queues[name]
	if !ok {
		q = &thread.WaitList{}
		m.queues[name] = q
	}
	return q
}

// unpark removes id from whichever wait queue holds it.
func (m *machine) unpark(id thread.ID) {
	for _, q := range m.queues {
		if q.Remove(id) {
			return
		}
	}
}
