// internal/engine/batch/concurrency.go
package batch

import (
	"runtime"
)

const (
	// maxConcurrency caps workers; every worker drives a browser tab.
	maxConcurrency = 16
	// tabMemoryMB is a rough footprint of one rendering tab.
	tabMemoryMB = 150
)

// OptimalConcurrency picks a worker count from CPU count and free memory.
func OptimalConcurrency() int {
	numCPU := runtime.NumCPU()

	// Each extraction waits on two network fetches most of the time
	optimal := numCPU * 2
	if optimal > maxConcurrency {
		optimal = maxConcurrency
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	availMB := (m.Sys - m.Alloc) / 1024 / 1024
	maxByMemory := int(availMB / tabMemoryMB)

	if maxByMemory > 0 && maxByMemory < optimal {
		optimal = maxByMemory
	}
	if optimal < 1 {
		optimal = 1
	}
	return optimal
}
