//go:build !linux

package hostcpu

import "runtime"

func affinityCount() int {
	return runtime.NumCPU()
}
