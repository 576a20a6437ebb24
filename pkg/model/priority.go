package model

// Priority levels. Higher numbers run first.
const (
	NumPriorities   = 32
	LowestPriority  = 0
	HighestPriority = NumPriorities - 1
	DefaultPriority = NumPriorities / 2
	LowPriority     = NumPriorities / 4
	HighPriority    = (NumPriorities / 4) * 3
	IdlePriority    = LowestPriority

	// MaxPriorityAdj bounds the transient boost or deboost applied around a
	// thread's base priority.
	MaxPriorityAdj = 4
)

// ValidPriority reports whether p is a schedulable priority level.
func ValidPriority(p int) bool {
	return p >= LowestPriority && p <= HighestPriority
}
