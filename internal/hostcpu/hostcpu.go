// Package hostcpu reports how many CPUs this process may run on.
package hostcpu

import "github.com/me/ksched/pkg/model"

// Count returns the number of CPUs in the process affinity mask, capped
// at model.MaxCPUs and never below 1.
func Count() int {
	n := affinityCount()
	if n < 1 {
		n = 1
	}
	if n > model.MaxCPUs {
		n = model.MaxCPUs
	}
	return n
}
