package sim

import (
	"github.com/me/ksched/internal/thread"
	"github.com/me/ksched/pkg/model"
)

// tracer records scheduler decisions as trace events.
type tracer struct {
	runID  string
	step   int
	events []model.TraceEvent
}

func (tr *tracer) add(ev model.TraceEvent) {
	ev.RunID = tr.runID
	ev.Seq = len(tr.events)
	ev.Step = tr.step
	tr.events = append(tr.events, ev)
}

func (tr *tracer) OnEnqueue(cpu model.CPUNum, t *thread.Thread, head bool) {
	op := model.TraceOpEnqueueTail
	if head {
		op = model.TraceOpEnqueueHead
	}
	tr.add(model.TraceEvent{
		CPU:      cpu,
		Op:       op,
		Thread:   t.Name,
		Priority: t.Effective(),
		Boost:    t.PriorityBoost,
		Detail:   string(t.State),
	})
}

func (tr *tracer) OnSignal(cpu model.CPUNum, t *thread.Thread, mask model.CPUMask) {
	tr.add(model.TraceEvent{
		CPU:      cpu,
		Op:       model.TraceOpSignal,
		Thread:   t.Name,
		Priority: t.Effective(),
		Boost:    t.PriorityBoost,
		Mask:     mask,
		Detail:   mask.String(),
	})
}

func (tr *tracer) OnSwitch(cpu model.CPUNum, old, next *thread.Thread) {
	tr.add(model.TraceEvent{
		CPU:      cpu,
		Op:       model.TraceOpSwitch,
		Thread:   old.Name,
		Next:     next.Name,
		Priority: next.Effective(),
		Boost:    next.PriorityBoost,
		Detail:   string(old.State),
	})
}

func (tr *tracer) block(cpu model.CPUNum, t *thread.Thread, queue string) {
	tr.add(model.TraceEvent{
		CPU:      cpu,
		Op:       model.TraceOpBlock,
		Thread:   t.Name,
		Priority: t.Effective(),
		Boost:    t.PriorityBoost,
		Detail:   queue,
	})
}

func (tr *tracer) expire(cpu model.CPUNum, t *thread.Thread) {
	tr.add(model.TraceEvent{
		CPU:      cpu,
		Op:       model.TraceOpTick,
		Thread:   t.Name,
		Priority: t.Effective(),
		Boost:    t.PriorityBoost,
		Detail:   "quantum expired",
	})
}
