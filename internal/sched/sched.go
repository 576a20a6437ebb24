// Package sched is the scheduler façade: the block, unblock, yield,
// preempt and reschedule operations that move threads between the run
// queues and the CPUs.
//
// Every operation requires the scheduler lock to be held by the caller
// and leaves it held. Precondition violations panic.
package sched

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/me/ksched/internal/cpuselect"
	"github.com/me/ksched/internal/priority"
	"github.com/me/ksched/internal/runqueue"
	"github.com/me/ksched/internal/thread"
	"github.com/me/ksched/pkg/model"
)

// Config holds scheduler configuration.
type Config struct {
	TimeSlice int  // Quantum handed to a thread whose slice is exhausted
	SMP       bool // Signal other CPUs when threads wake
	Broadcast bool // Signal every other CPU instead of choosing one
	Debug     bool // Check lock ownership and priority bounds
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{TimeSlice: 5, SMP: true}
}

// Scheduler owns the run queues, idle table and CPU selector.
type Scheduler struct {
	mu   sync.Mutex
	held atomic.Bool

	cfg      Config
	threads  *thread.Table
	rq       *runqueue.Store
	selector *cpuselect.Selector
	platform Platform
	observer Observer
	logger   *slog.Logger
}

// New creates a scheduler over the thread table tb. InitEarly must run
// before any other operation.
func New(tb *thread.Table, p Platform, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.TimeSlice <= 0 {
		cfg.TimeSlice = DefaultConfig().TimeSlice
	}
	return &Scheduler{
		cfg:      cfg,
		threads:  tb,
		rq:       runqueue.New(tb),
		selector: cpuselect.New(cfg.SMP, cfg.Broadcast),
		platform: p,
		observer: nopObserver{},
		logger:   logger.With("component", "sched"),
	}
}

// SetObserver installs o, or a no-op observer when o is nil.
func (s *Scheduler) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	s.observer = o
}

// Lock acquires the scheduler lock.
func (s *Scheduler) Lock() {
	s.mu.Lock()
	s.held.Store(true)
}

// Unlock releases the scheduler lock.
func (s *Scheduler) Unlock() {
	s.held.Store(false)
	s.mu.Unlock()
}

// Held reports whether the scheduler lock is held by anyone.
func (s *Scheduler) Held() bool {
	return s.held.Load()
}

func (s *Scheduler) assertHeld(op string) {
	if s.cfg.Debug && !s.held.Load() {
		panic("sched: " + op + " called without the scheduler lock")
	}
}

// Threads returns the thread table.
func (s *Scheduler) Threads() *thread.Table {
	return s.threads
}

// RunQueue returns the run-queue store. Callers must hold the lock.
func (s *Scheduler) RunQueue() *runqueue.Store {
	return s.rq
}

// Selector returns the CPU selector. Callers must hold the lock.
func (s *Scheduler) Selector() *cpuselect.Selector {
	return s.selector
}

// Config returns the effective configuration.
func (s *Scheduler) Config() Config {
	return s.cfg
}

// SetIdleThread registers id as cpu's idle thread.
func (s *Scheduler) SetIdleThread(cpu model.CPUNum, id thread.ID) {
	if !s.threads.Get(id).Idle {
		panic(fmt.Sprintf("sched: %s is not an idle thread", s.threads.Get(id)))
	}
	s.rq.SetIdle(cpu, id)
}

// IdleThread returns cpu's idle thread.
func (s *Scheduler) IdleThread(cpu model.CPUNum) thread.ID {
	return s.rq.Idle(cpu)
}

// InitEarly empties all run queues and clears the bitmap.
func (s *Scheduler) InitEarly() {
	s.rq.Init()
	s.logger.Debug("run queues initialized", "levels", model.NumPriorities, "time_slice", s.cfg.TimeSlice)
}

func (s *Scheduler) current() *thread.Thread {
	return s.threads.Get(s.platform.CurrentThread())
}

// Block switches away from the current thread, which the caller has
// already parked on a wait structure and moved out of RUNNING.
func (s *Scheduler) Block() {
	s.assertHeld("Block")
	cur := s.current()
	if cur.Idle {
		panic("sched: Block from idle thread " + cur.Name)
	}
	if cur.State == model.ThreadStateRunning {
		panic(fmt.Sprintf("sched: Block on running thread %s", cur))
	}
	s.resched()
}

// Unblock makes t ready, boosts it and queues it at the head of its level,
// then signals the CPU chosen to run it. It reports whether the calling
// CPU should reschedule itself.
func (s *Scheduler) Unblock(id thread.ID) bool {
	s.assertHeld("Unblock")
	return s.unblock(s.threads.Get(id))
}

// UnblockList wakes every thread on list, popping from the tail. It
// reports whether the calling CPU should reschedule itself.
func (s *Scheduler) UnblockList(list *thread.WaitList) bool {
	s.assertHeld("UnblockList")
	local := false
	for id, ok := list.PopTail(); ok; id, ok = list.PopTail() {
		if s.unblock(s.threads.Get(id)) {
			local = true
		}
	}
	return local
}

func (s *Scheduler) unblock(t *thread.Thread) bool {
	if t.Idle {
		panic(fmt.Sprintf("sched: unblock of idle thread %s", t))
	}
	if t.Queued() {
		panic(fmt.Sprintf("sched: unblock of queued thread %s", t))
	}
	if s.cfg.Debug && t.State == model.ThreadStateRunning {
		panic(fmt.Sprintf("sched: unblock of running thread %s", t))
	}

	cpu := s.platform.CurrentCPU()
	t.State = model.ThreadStateReady
	priority.Boost(t)
	s.checkPriority(t)
	s.rq.InsertHead(t.ID)
	s.observer.OnEnqueue(cpu, t, true)

	mask := s.selector.FindCPU(t, s.platform)
	if !mask.Empty() {
		s.observer.OnSignal(cpu, t, mask)
		s.platform.Reschedule(mask, RescheduleWake)
	}
	return (mask.Empty() || s.cfg.Broadcast) && t.CanRunOn(cpu) && s.outranksCurrent(t)
}

func (s *Scheduler) outranksCurrent(t *thread.Thread) bool {
	cur := s.current()
	return cur.Idle || t.Effective() > cur.Effective()
}

// Yield gives up the rest of the current thread's quantum and queues it
// behind its peers.
func (s *Scheduler) Yield() {
	s.assertHeld("Yield")
	cur := s.current()
	if cur.Idle {
		panic("sched: Yield from idle thread " + cur.Name)
	}
	cur.State = model.ThreadStateReady
	cur.RemainingTimeSlice = 0
	priority.Deboost(cur, false)
	s.enqueue(cur, false)
	s.resched()
}

// Preempt requeues the current thread after a timer or wake interrupt. A
// thread with quantum left keeps its place at the head; one that used up
// its quantum is deboosted and goes to the tail.
func (s *Scheduler) Preempt() {
	s.assertHeld("Preempt")
	cur := s.current()
	cur.State = model.ThreadStateReady
	if !cur.Idle {
		if cur.RemainingTimeSlice > 0 {
			s.enqueue(cur, true)
		} else {
			priority.Deboost(cur, true)
			s.enqueue(cur, false)
		}
	}
	s.resched()
}

// Reschedule lets the running thread re-evaluate what should run. The
// thread is always deboosted, never below its base priority.
func (s *Scheduler) Reschedule() {
	s.assertHeld("Reschedule")
	cur := s.current()
	cur.State = model.ThreadStateReady
	if !cur.Idle {
		priority.Deboost(cur, false)
		s.enqueue(cur, cur.RemainingTimeSlice > 0)
	}
	s.resched()
}

// GetTopThread dequeues the thread cpu should run next.
func (s *Scheduler) GetTopThread(cpu model.CPUNum) thread.ID {
	s.assertHeld("GetTopThread")
	return s.rq.SelectAndRemove(cpu)
}

func (s *Scheduler) enqueue(t *thread.Thread, head bool) {
	s.checkPriority(t)
	if head {
		s.rq.InsertHead(t.ID)
	} else {
		s.rq.InsertTail(t.ID)
	}
	s.observer.OnEnqueue(s.platform.CurrentCPU(), t, head)
}

// resched picks the next thread for the current CPU and switches to it.
func (s *Scheduler) resched() {
	cpu := s.platform.CurrentCPU()
	old := s.current()
	next := s.threads.Get(s.rq.SelectAndRemove(cpu))

	next.State = model.ThreadStateRunning
	next.LastCPU = cpu
	if next.RemainingTimeSlice <= 0 {
		next.RemainingTimeSlice = s.cfg.TimeSlice
	}
	if next.ID == old.ID {
		return
	}

	s.logger.Debug("switch", "cpu", cpu, "from", old.Name, "to", next.Name,
		"priority", next.Effective(), "boost", next.PriorityBoost)
	s.observer.OnSwitch(cpu, old, next)
	s.platform.ContextSwitch(cpu, old.ID, next.ID)
}

func (s *Scheduler) checkPriority(t *thread.Thread) {
	if s.cfg.Debug && !t.Exempt() && !priority.InRange(t) {
		panic(fmt.Sprintf("sched: priority of %s out of range", t))
	}
}
