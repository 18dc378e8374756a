package flow

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/spindleworks/novem/errors"
)

// SystemMetrics tracks resource usage for traversal pool monitoring
type SystemMetrics struct {
	WorkersActive int     `json:"workers_active"` // Workers currently executing a move
	WorkersTotal  int     `json:"workers_total"`  // Total configured workers
	MemoryUsedGB  float64 `json:"memory_used_gb"` // Current memory usage in GB
	MemoryTotalGB float64 `json:"memory_total_gb"`
	MemoryPercent float64 `json:"memory_percent"`
	StepsTaken    uint64  `json:"steps_taken"`   // Total traversal steps issued
	RekeysIssued  uint64  `json:"rekeys_issued"` // Total counter re-keys issued
}

// getMemoryStats returns current memory usage in bytes
func getMemoryStats() (total uint64, available uint64, err error) {
	v, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to get memory stats")
	}
	return v.Total, v.Available, nil
}

// calculateSafeWorkerCount recommends worker count based on available memory.
// Traversal workers are cheap; the bound exists to keep a misconfigured pool
// from piling onto an already starved host.
func calculateSafeWorkerCount(availableGB float64) int {
	const memoryBuffer = 1.0 // GB reserved for the rest of the host

	if availableGB < memoryBuffer {
		return 1 // Always allow at least 1 worker
	}

	recommended := int(availableGB-memoryBuffer) * 4
	if recommended < 1 {
		return 1
	}
	if recommended > 64 {
		return 64
	}
	return recommended
}

// GetSystemMetrics returns current system resource usage
func (p *Pool) GetSystemMetrics() SystemMetrics {
	total, available, err := getMemoryStats()

	var memUsedGB, memTotalGB, memPercent float64
	if err == nil && total > 0 {
		memTotalGB = float64(total) / 1024 / 1024 / 1024
		memUsedGB = float64(total-available) / 1024 / 1024 / 1024
		memPercent = (memUsedGB / memTotalGB) * 100
	}

	p.mu.Lock()
	activeWorkers := p.activeWorkers
	p.mu.Unlock()

	return SystemMetrics{
		WorkersActive: activeWorkers,
		WorkersTotal:  p.workers,
		MemoryUsedGB:  memUsedGB,
		MemoryTotalGB: memTotalGB,
		MemoryPercent: memPercent,
		StepsTaken:    p.stepsTaken.Load(),
		RekeysIssued:  p.rekeysIssued.Load(),
	}
}

// checkMemoryPressure validates worker count against available memory.
// Returns a warning message if worker count may be too high, empty string if OK.
func (p *Pool) checkMemoryPressure() string {
	total, available, err := getMemoryStats()
	if err != nil {
		return "" // Can't check, assume OK
	}

	availableGB := float64(available) / 1024 / 1024 / 1024
	totalGB := float64(total) / 1024 / 1024 / 1024
	recommended := calculateSafeWorkerCount(availableGB)

	if p.workers > recommended {
		return fmt.Sprintf(
			"Worker count (%d) exceeds recommended (%d) for available memory (%.1f/%.1fGB)",
			p.workers, recommended, totalGB-availableGB, totalGB)
	}

	return ""
}
