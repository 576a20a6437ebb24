package thread

import (
	"testing"

	"github.com/me/ksched/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_New(t *testing.T) {
	tb := NewTable()
	a := tb.New(Spec{Name: "a", Priority: 10, PinnedCPU: model.NoCPU})
	b := tb.New(Spec{Name: "b", Priority: 20, PinnedCPU: 1, RealTime: true})

	assert.Equal(t, ID(0), a)
	assert.Equal(t, ID(1), b)
	assert.Equal(t, 2, tb.Len())

	ta := tb.Get(a)
	assert.Equal(t, model.ThreadStateInitial, ta.State)
	assert.Equal(t, NotQueued, ta.RunQueue)
	assert.Equal(t, model.NoCPU, ta.LastCPU)
	assert.False(t, ta.Queued())

	id, ok := tb.Lookup("b")
	require.True(t, ok)
	assert.Equal(t, b, id)
	assert.True(t, tb.Get(b).Exempt())
}

func TestTable_NewPanics(t *testing.T) {
	tb := NewTable()
	tb.New(Spec{Name: "a", Priority: 1, PinnedCPU: model.NoCPU})

	assert.Panics(t, func() { tb.New(Spec{Name: "a", Priority: 1, PinnedCPU: model.NoCPU}) })
	assert.Panics(t, func() { tb.New(Spec{Name: "x", Priority: model.NumPriorities, PinnedCPU: model.NoCPU}) })
	assert.Panics(t, func() { tb.Get(42) })
}

func TestTable_NewIdle(t *testing.T) {
	tb := NewTable()
	id := tb.NewIdle(3)
	idle := tb.Get(id)
	assert.True(t, idle.Idle)
	assert.True(t, idle.Exempt())
	assert.Equal(t, "idle3", idle.Name)
	assert.Equal(t, model.CPUNum(3), idle.PinnedCPU)
	assert.Equal(t, model.ThreadStateRunning, idle.State)
	assert.True(t, idle.CanRunOn(3))
	assert.False(t, idle.CanRunOn(0))
}

func TestThread_Effective(t *testing.T) {
	tests := []struct {
		base, boost, want int
	}{
		{10, 0, 10},
		{10, 4, 14},
		{10, -4, 6},
		{1, -4, model.LowestPriority},
		{30, 4, model.HighestPriority},
	}
	for _, tt := range tests {
		th := &Thread{BasePriority: tt.base, PriorityBoost: tt.boost}
		assert.Equal(t, tt.want, th.Effective(), "base=%d boost=%d", tt.base, tt.boost)
	}
}

func TestWaitList_PopTailIsLIFO(t *testing.T) {
	var w WaitList
	w.Add(1)
	w.Add(2)
	w.Add(3)
	assert.Equal(t, []ID{1, 2, 3}, w.IDs())

	id, ok := w.PopTail()
	require.True(t, ok)
	assert.Equal(t, ID(3), id)

	assert.True(t, w.Remove(1))
	assert.False(t, w.Remove(1))

	id, _ = w.PopTail()
	assert.Equal(t, ID(2), id)
	_, ok = w.PopTail()
	assert.False(t, ok)
	assert.Equal(t, 0, w.Len())
}
