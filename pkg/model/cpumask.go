package model

import (
	"math/bits"
	"strconv"
	"strings"
)

// CPUNum identifies a logical CPU.
type CPUNum int

const (
	// NoCPU marks an unset CPU, e.g. a thread that is not pinned.
	NoCPU CPUNum = -1

	// MaxCPUs is the number of CPUs a CPUMask can describe.
	MaxCPUs = 32
)

// Valid reports whether c addresses a CPU representable in a CPUMask.
func (c CPUNum) Valid() bool {
	return c >= 0 && c < MaxCPUs
}

// CPUMask is a set of CPUs, one bit per CPU.
type CPUMask uint32

// MaskOf returns the mask containing exactly the given CPUs.
func MaskOf(cpus ...CPUNum) CPUMask {
	var m CPUMask
	for _, c := range cpus {
		m = m.Set(c)
	}
	return m
}

// FirstN returns the mask of CPUs 0..n-1.
func FirstN(n int) CPUMask {
	if n <= 0 {
		return 0
	}
	if n >= MaxCPUs {
		return ^CPUMask(0)
	}
	return CPUMask(1)<<uint(n) - 1
}

func (m CPUMask) Has(c CPUNum) bool {
	return c.Valid() && m&(1<<uint(c)) != 0
}

func (m CPUMask) Set(c CPUNum) CPUMask {
	if !c.Valid() {
		return m
	}
	return m | 1<<uint(c)
}

func (m CPUMask) Clear(c CPUNum) CPUMask {
	if !c.Valid() {
		return m
	}
	return m &^ (1 << uint(c))
}

// Without returns m minus every CPU in other.
func (m CPUMask) Without(other CPUMask) CPUMask {
	return m &^ other
}

func (m CPUMask) Empty() bool {
	return m == 0
}

func (m CPUMask) Count() int {
	return bits.OnesCount32(uint32(m))
}

// Highest returns the highest CPU in the mask, or NoCPU if empty.
func (m CPUMask) Highest() CPUNum {
	if m == 0 {
		return NoCPU
	}
	return CPUNum(bits.Len32(uint32(m)) - 1)
}

// Lowest returns the lowest CPU in the mask, or NoCPU if empty.
func (m CPUMask) Lowest() CPUNum {
	if m == 0 {
		return NoCPU
	}
	return CPUNum(bits.TrailingZeros32(uint32(m)))
}

// CPUs lists the CPUs in the mask in ascending order.
func (m CPUMask) CPUs() []CPUNum {
	out := make([]CPUNum, 0, m.Count())
	for rest := uint32(m); rest != 0; rest &= rest - 1 {
		out = append(out, CPUNum(bits.TrailingZeros32(rest)))
	}
	return out
}

// String renders the mask as a CPU list, e.g. "{0,2,3}".
func (m CPUMask) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, c := range m.CPUs() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(int(c)))
	}
	b.WriteByte('}')
	return b.String()
}
