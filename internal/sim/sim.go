// Package sim plays scenarios against the scheduler on a simulated SMP
// machine and records every scheduling decision.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/me/ksched/internal/config"
	"github.com/me/ksched/internal/scenario"
	"github.com/me/ksched/internal/sched"
	"github.com/me/ksched/internal/thread"
	"github.com/me/ksched/pkg/model"
)

// ErrStepLimit is returned when a run executes more steps than allowed.
var ErrStepLimit = errors.New("step limit exceeded")

// Result is the outcome of a simulated run.
type Result struct {
	Run     model.Run
	Events  []model.TraceEvent
	Threads []model.ThreadSummary
}

// Simulator runs scenarios with a base machine configuration.
type Simulator struct {
	base   config.SimConfig
	logger *slog.Logger
}

// New creates a Simulator. Scenario settings override base.
func New(base config.SimConfig, logger *slog.Logger) *Simulator {
	return &Simulator{
		base:   base,
		logger: logger.With("component", "sim"),
	}
}

// run is the state of a single simulation.
type run struct {
	m      *machine
	tr     *tracer
	steps  int
	limit  int
	logger *slog.Logger
}

// Run validates sc, executes its events in order and returns the trace.
func (s *Simulator) Run(ctx context.Context, sc *scenario.Scenario) (*Result, error) {
	cfg := sc.Config(s.base)
	if apiErr := sc.Validate(cfg.CPUs); apiErr != nil {
		return nil, apiErr
	}
	source, err := sc.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal scenario: %w", err)
	}

	runID := "run_" + uuid.New().String()
	logger := s.logger.With("run_id", runID, "scenario", sc.Name)
	r := newRun(cfg, runID, logger)

	start := time.Now()
	logger.Info("run started", "cpus", cfg.CPUs, "time_slice", cfg.TimeSlice,
		"threads", len(sc.Threads), "events", len(sc.Events))

	if err := r.load(sc); err != nil {
		return nil, err
	}
	for i, ev := range sc.Events {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run canceled at event %d: %w", i, err)
		}
		r.tr.step = ev.At
		if err := r.exec(ev); err != nil {
			return nil, fmt.Errorf("event %d (at %d, %s on cpu %d): %w", i, ev.At, ev.Op, ev.CPU, err)
		}
	}

	res := &Result{
		Run: model.Run{
			ID:        runID,
			Name:      sc.Name,
			CPUs:      cfg.CPUs,
			TimeSlice: cfg.TimeSlice,
			Steps:     r.steps,
			Switches:  r.m.switches,
			Signals:   r.m.signals,
			Scenario:  string(source),
			Duration:  time.Since(start),
			CreatedAt: start.UTC(),
		},
		Events:  r.tr.events,
		Threads: r.summaries(runID),
	}
	logger.Info("run finished", "steps", res.Run.Steps, "switches", res.Run.Switches,
		"signals", res.Run.Signals, "trace_events", len(res.Events), "duration", res.Run.Duration)
	return res, nil
}

func newRun(cfg config.SimConfig, runID string, logger *slog.Logger) *run {
	tb := thread.NewTable()
	m := &machine{
		cfg:        cfg,
		threads:    tb,
		online:     model.FirstN(cfg.CPUs),
		running:    make([]thread.ID, cfg.CPUs),
		queues:     make(map[string]*thread.WaitList),
		dispatches: make(map[thread.ID]int),
		ticks:      make(map[thread.ID]int),
	}
	m.sched = sched.New(tb, m, sched.Config{
		TimeSlice: cfg.TimeSlice,
		SMP:       !cfg.Uniprocessor,
		Broadcast: cfg.Broadcast,
		Debug:     cfg.Debug,
	}, logger)
	tr := &tracer{runID: runID}
	m.sched.SetObserver(tr)

	m.sched.Lock()
	m.sched.InitEarly()
	for c := 0; c < cfg.CPUs; c++ {
		cpu := model.CPUNum(c)
		id := tb.NewIdle(cpu)
		m.sched.SetIdleThread(cpu, id)
		m.running[c] = id
	}
	m.sched.Unlock()

	return &run{m: m, tr: tr, limit: cfg.MaxSteps, logger: logger}
}

// load creates the scenario's threads. Ready threads are woken from
// CPU 0 in declaration order; blocked ones are parked on their queue.
func (r *run) load(sc *scenario.Scenario) error {
	m := r.m
	var ready []thread.ID
	for _, st := range sc.Threads {
		id := m.threads.New(thread.Spec{
			Name:      st.Name,
			Priority:  st.Priority,
			PinnedCPU: st.PinnedCPU(),
			RealTime:  st.RealTime,
		})
		t := m.threads.Get(id)
		t.State = model.ThreadStateBlocked
		if st.Start == scenario.StartReady {
			ready = append(ready, id)
		} else if st.Queue != "" {
			m.queue(st.Queue).Add(id)
		}
	}
	for _, id := range ready {
		if err := r.step(); err != nil {
			return err
		}
		m.on(0, func() {
			if m.sched.Unblock(id) {
				m.sched.Reschedule()
			}
		})
		m.deliver()
	}
	return nil
}

func (r *run) step() error {
	r.steps++
	if r.limit > 0 && r.steps > r.limit {
		return fmt.Errorf("%w: %d", ErrStepLimit, r.limit)
	}
	return nil
}

func (r *run) exec(ev scenario.Event) error {
	m := r.m
	cpu := model.CPUNum(ev.CPU)

	switch ev.Op {
	case scenario.OpTick:
		for i := 0; i < ev.Ticks(); i++ {
			if err := r.step(); err != nil {
				return err
			}
			r.tick(cpu)
			m.deliver()
		}
		return nil
	case scenario.OpTickAll:
		for i := 0; i < ev.Ticks(); i++ {
			if err := r.step(); err != nil {
				return err
			}
			for _, c := range m.online.CPUs() {
				r.tick(c)
			}
			m.deliver()
		}
		return nil
	}

	if err := r.step(); err != nil {
		return err
	}
	var err error
	switch ev.Op {
	case scenario.OpWake:
		err = r.wake(cpu, ev.Thread)
	case scenario.OpWakeOne:
		r.wakeOne(cpu, ev.Queue)
	case scenario.OpWakeAll:
		r.wakeAll(cpu, ev.Queue)
	case scenario.OpBlock:
		err = r.block(cpu, ev.Queue)
	case scenario.OpYield:
		if cur := m.current(cpu); cur.Idle {
			return fmt.Errorf("cpu %d is idle", cpu)
		}
		m.on(cpu, m.sched.Yield)
	case scenario.OpPreempt:
		m.on(cpu, m.sched.Preempt)
	case scenario.OpReschedule:
		m.on(cpu, m.sched.Reschedule)
	default:
		err = fmt.Errorf("unknown op %q", ev.Op)
	}
	if err != nil {
		return err
	}
	m.deliver()
	return nil
}

func (r *run) wake(cpu model.CPUNum, name string) error {
	m := r.m
	id, ok := m.threads.Lookup(name)
	if !ok {
		return fmt.Errorf("unknown thread %q", name)
	}
	t := m.threads.Get(id)
	if !t.State.IsWaiting() || t.Queued() {
		return fmt.Errorf("thread %q is not blocked (%s)", name, t.State)
	}
	m.unpark(id)
	m.on(cpu, func() {
		if m.sched.Unblock(id) {
			m.sched.Reschedule()
		}
	})
	return nil
}

func (r *run) wakeOne(cpu model.CPUNum, queue string) {
	m := r.m
	id, ok := m.queue(queue).PopTail()
	if !ok {
		r.logger.Debug("wake_one on empty queue", "queue", queue, "cpu", cpu)
		return
	}
	m.on(cpu, func() {
		if m.sched.Unblock(id) {
			m.sched.Reschedule()
		}
	})
}

func (r *run) wakeAll(cpu model.CPUNum, queue string) {
	m := r.m
	list := m.queue(queue)
	if list.Len() == 0 {
		r.logger.Debug("wake_all on empty queue", "queue", queue, "cpu", cpu)
		return
	}
	m.on(cpu, func() {
		if m.sched.UnblockList(list) {
			m.sched.Reschedule()
		}
	})
}

func (r *run) block(cpu model.CPUNum, queue string) error {
	m := r.m
	cur := m.current(cpu)
	if cur.Idle {
		return fmt.Errorf("cpu %d is idle", cpu)
	}
	m.on(cpu, func() {
		cur.State = model.ThreadStateBlocked
		if queue != "" {
			m.queue(queue).Add(cur.ID)
		}
		r.tr.block(cpu, cur, queue)
		m.sched.Block()
	})
	return nil
}

// tick charges one tick to the thread running on cpu and preempts it
// when its quantum runs out. An idle CPU polls the run queues and
// switches to any thread it is eligible to run, picking up wakes that
// signaled no CPU.
func (r *run) tick(cpu model.CPUNum) {
	m := r.m
	cur := m.current(cpu)
	if cur.Idle {
		m.on(cpu, func() {
			if _, ok := m.sched.RunQueue().Peek(cpu); ok {
				m.sched.Preempt()
			}
		})
		return
	}
	m.ticks[cur.ID]++
	cur.RemainingTimeSlice--
	if cur.RemainingTimeSlice > 0 {
		return
	}
	m.on(cpu, func() {
		r.tr.expire(cpu, cur)
		m.sched.Preempt()
	})
}

func (r *run) summaries(runID string) []model.ThreadSummary {
	var out []model.ThreadSummary
	for _, t := range r.m.threads.All() {
		if t.Idle {
			continue
		}
		out = append(out, model.ThreadSummary{
			RunID:        runID,
			Name:         t.Name,
			BasePriority: t.BasePriority,
			Boost:        t.PriorityBoost,
			State:        t.State,
			PinnedCPU:    t.PinnedCPU,
			LastCPU:      t.LastCPU,
			Dispatches:   r.m.dispatches[t.ID],
			TicksRun:     r.m.ticks[t.ID],
		})
	}
	return out
}
