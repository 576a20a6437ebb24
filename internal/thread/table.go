package thread

import (
	"fmt"

	"github.com/me/ksched/pkg/model"
)

// Table is an arena of thread records. IDs are stable for the table's lifetime.
type Table struct {
	threads []*Thread
	byName  map[string]ID
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{byName: make(map[string]ID)}
}

// New adds a thread in the INITIAL state and returns its ID.
// It panics on an out-of-range priority or a duplicate name.
func (tb *Table) New(spec Spec) ID {
	if !model.ValidPriority(spec.Priority) {
		panic(fmt.Sprintf("thread: priority %d out of range for %q", spec.Priority, spec.Name))
	}
	if _, dup := tb.byName[spec.Name]; dup && spec.Name != "" {
		panic(fmt.Sprintf("thread: duplicate name %q", spec.Name))
	}
	id := ID(len(tb.threads))
	tb.threads = append(tb.threads, &Thread{
		ID:           id,
		Name:         spec.Name,
		BasePriority: spec.Priority,
		State:        model.ThreadStateInitial,
		PinnedCPU:    spec.PinnedCPU,
		LastCPU:      model.NoCPU,
		RealTime:     spec.RealTime,
		RunQueue:     NotQueued,
	})
	if spec.Name != "" {
		tb.byName[spec.Name] = id
	}
	return id
}

// NewIdle adds the idle thread for cpu. Idle threads are pinned, run at the
// idle priority and start out RUNNING on their CPU.
func (tb *Table) NewIdle(cpu model.CPUNum) ID {
	id := tb.New(Spec{
		Name:      fmt.Sprintf("idle%d", cpu),
		Priority:  model.IdlePriority,
		PinnedCPU: cpu,
	})
	t := tb.threads[id]
	t.Idle = true
	t.State = model.ThreadStateRunning
	t.LastCPU = cpu
	return id
}

// Get returns the record for id. It panics on an unknown handle.
func (tb *Table) Get(id ID) *Thread {
	if id < 0 || int(id) >= len(tb.threads) {
		panic(fmt.Sprintf("thread: unknown id %d", id))
	}
	return tb.threads[id]
}

// Lookup finds a thread by name.
func (tb *Table) Lookup(name string) (ID, bool) {
	id, ok := tb.byName[name]
	return id, ok
}

// Len returns the number of threads ever created.
func (tb *Table) Len() int {
	return len(tb.threads)
}

// All returns the records in ID order.
func (tb *Table) All() []*Thread {
	out := make([]*Thread, len(tb.threads))
	copy(out, tb.threads)
	return out
}
