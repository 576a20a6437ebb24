package cpuselect

import (
	"testing"

	"github.com/me/ksched/internal/thread"
	"github.com/me/ksched/pkg/model"
	"github.com/stretchr/testify/assert"
)

type fakeTopo struct {
	online, idle model.CPUMask
	curr         model.CPUNum
}

func (f fakeTopo) OnlineMask() model.CPUMask { return f.online }
func (f fakeTopo) IdleMask() model.CPUMask   { return f.idle }
func (f fakeTopo) CurrentCPU() model.CPUNum  { return f.curr }

func TestFindCPU(t *testing.T) {
	four := model.FirstN(4)
	tests := []struct {
		name      string
		smp       bool
		broadcast bool
		online    model.CPUMask
		idle      model.CPUMask
		curr      model.CPUNum
		last      model.CPUNum
		cursor    model.CPUNum
		want      model.CPUMask
	}{
		{"broadcast", true, true, four, 0, 1, 2, 0, model.MaskOf(0, 2, 3)},
		{"broadcast without smp", false, true, four, 0, 0, 0, 0, model.MaskOf(1, 2, 3)},
		{"uniprocessor", false, false, model.MaskOf(0), model.MaskOf(0), 0, 0, 0, 0},
		{"current cpu idle", true, false, four, model.MaskOf(0, 2), 2, 0, 0, 0},
		{"last cpu idle", true, false, four, model.MaskOf(3), 1, 3, 0, model.MaskOf(3)},
		{"last cpu idle among others", true, false, four, model.MaskOf(1, 3), 0, 3, 0, model.MaskOf(3)},
		{"other idle cpu from cursor", true, false, four, model.MaskOf(1, 3), 0, 2, 0, model.MaskOf(1)},
		{"other idle cpu wraps", true, false, four, model.MaskOf(1), 0, 2, 3, model.MaskOf(1)},
		{"idle cursor hits exactly", true, false, four, model.MaskOf(1, 3), 0, 2, 3, model.MaskOf(3)},
		{"busy, last is current", true, false, four, 0, 1, 1, 1, model.MaskOf(2)},
		{"busy, last is current, cursor on current", true, false, four, 0, 1, 1, 0, model.MaskOf(0)},
		{"busy, last elsewhere", true, false, four, 0, 0, 2, 0, model.MaskOf(2)},
		{"busy, never ran", true, false, four, 0, 0, model.NoCPU, 0, model.MaskOf(1)},
		{"busy, single cpu", true, false, model.MaskOf(0), 0, 0, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.smp, tt.broadcast)
			s.SetCursor(tt.cursor)
			th := &thread.Thread{LastCPU: tt.last, PinnedCPU: model.NoCPU}
			got := s.FindCPU(th, fakeTopo{online: tt.online, idle: tt.idle, curr: tt.curr})
			assert.Equal(t, tt.want, got, "got %v want %v", got, tt.want)
		})
	}
}

func TestPick_RotatesCursor(t *testing.T) {
	s := New(true, false)
	online := model.FirstN(4)
	topo := fakeTopo{online: online, idle: 0, curr: 0}
	th := &thread.Thread{LastCPU: 0, PinnedCPU: model.NoCPU}

	// Busy system, thread last ran here: spread across the other CPUs.
	var got []model.CPUMask
	for i := 0; i < 8; i++ {
		got = append(got, s.FindCPU(th, topo))
	}
	want := []model.CPUMask{
		model.MaskOf(1), model.MaskOf(1), model.MaskOf(2), model.MaskOf(3),
		model.MaskOf(1), model.MaskOf(1), model.MaskOf(2), model.MaskOf(3),
	}
	assert.Equal(t, want, got)
}

func TestPick_CursorWrapsPastHighestOnline(t *testing.T) {
	s := New(true, false)
	s.SetCursor(7)
	got := s.pick(model.MaskOf(1), model.FirstN(2))
	assert.Equal(t, model.MaskOf(1), got)
	assert.Equal(t, model.CPUNum(1), s.Cursor())

	assert.Equal(t, model.CPUMask(0), s.pick(0, model.FirstN(2)))
	assert.Equal(t, model.CPUNum(1), s.Cursor(), "empty mask must not advance the cursor")
}
