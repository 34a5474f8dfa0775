package monitor

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// Usage is one point-in-time reading of host resources.
type Usage struct {
	CPUPercent    float64 `json:"cpuPercent"`
	MemoryPercent float64 `json:"memoryPercent"`
	MemoryUsed    uint64  `json:"memoryUsedBytes"`
	MemoryTotal   uint64  `json:"memoryTotalBytes"`
}

// Sampler produces a usage reading. The orchestrator takes one of these
// so tests can feed it synthetic readings.
type Sampler func(ctx context.Context) (Usage, error)

// Sample reads host CPU and memory through gopsutil. The CPU figure is
// measured over a one second window, so a call blocks for that long.
func Sample(ctx context.Context) (Usage, error) {
	var u Usage
	cpuPercents, err := cpu.PercentWithContext(ctx, time.Second, false)
	if err != nil {
		return u, err
	}
	if len(cpuPercents) > 0 {
		u.CPUPercent = cpuPercents[0]
	}
	memStats, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return u, err
	}
	u.MemoryPercent = memStats.UsedPercent
	u.MemoryUsed = memStats.Used
	u.MemoryTotal = memStats.Total
	return u, nil
}
