package model

import "time"

// TraceOp names a scheduling decision recorded in a run trace.
type TraceOp string

const (
	TraceOpEnqueueHead TraceOp = "enqueue_head"
	TraceOpEnqueueTail TraceOp = "enqueue_tail"
	TraceOpSwitch      TraceOp = "switch"
	TraceOpSignal      TraceOp = "signal"
	TraceOpBlock       TraceOp = "block"
	TraceOpTick        TraceOp = "tick"
)

// Run describes one simulated scheduling run.
type Run struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	CPUs      int           `json:"cpus"`
	TimeSlice int           `json:"time_slice"`
	Steps     int           `json:"steps"`
	Switches  int           `json:"switches"`
	Signals   int           `json:"signals"`
	Scenario  string        `json:"scenario,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
	CreatedAt time.Time     `json:"created_at"`
}

// TraceEvent is a single decision taken by the scheduler during a run.
type TraceEvent struct {
	RunID    string  `json:"run_id"`
	Seq      int     `json:"seq"`
	Step     int     `json:"step"`
	CPU      CPUNum  `json:"cpu"`
	Op       TraceOp `json:"op"`
	Thread   string  `json:"thread,omitempty"`
	Next     string  `json:"next,omitempty"`
	Priority int     `json:"priority"`
	Boost    int     `json:"boost"`
	Mask     CPUMask `json:"mask,omitempty"`
	Detail   string  `json:"detail,omitempty"`
}

// ThreadSummary captures a thread's final scheduling statistics for a run.
type ThreadSummary struct {
	RunID        string      `json:"run_id"`
	Name         string      `json:"name"`
	BasePriority int         `json:"base_priority"`
	Boost        int         `json:"boost"`
	State        ThreadState `json:"state"`
	PinnedCPU    CPUNum      `json:"pinned_cpu"`
	LastCPU      CPUNum      `json:"last_cpu"`
	Dispatches   int         `json:"dispatches"`
	TicksRun     int         `json:"ticks_run"`
}
