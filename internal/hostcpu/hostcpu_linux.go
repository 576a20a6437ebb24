//go:build linux

package hostcpu

import (
	"runtime"

	"golang.org/x/sys/unix"
)

func affinityCount() int {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return runtime.NumCPU()
	}
	return set.Count()
}
