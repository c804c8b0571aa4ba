package dashboard

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// hostStatus is the host resource sample returned by /healthz.
type hostStatus struct {
	CPUPercent  float64 `json:"cpu_percent"`
	MemoryUsed  uint64  `json:"memory_used"`
	MemoryTotal uint64  `json:"memory_total"`
	MemoryPct   float64 `json:"memory_percent"`
	DiskPct     float64 `json:"disk_percent"`
}

var (
	cpuPercentFn = func(ctx context.Context, interval time.Duration) ([]float64, error) {
		return cpu.PercentWithContext(ctx, interval, false)
	}
	memoryStatsFn = mem.VirtualMemoryWithContext
	diskUsageFn   = disk.UsageWithContext
)

// sampleHost collects what it can. A failing collector leaves its fields zero
// and is returned in errs.
func sampleHost(ctx context.Context, diskPath string) (hostStatus, []error) {
	var (
		status hostStatus
		errs   []error
	)

	if samples, err := cpuPercentFn(ctx, 0); err != nil {
		errs = append(errs, err)
	} else if len(samples) > 0 {
		status.CPUPercent = samples[0]
	}

	if vm, err := memoryStatsFn(ctx); err != nil {
		errs = append(errs, err)
	} else {
		status.MemoryUsed = vm.Used
		status.MemoryTotal = vm.Total
		status.MemoryPct = vm.UsedPercent
	}

	if du, err := diskUsageFn(ctx, diskPath); err != nil {
		errs = append(errs, err)
	} else {
		status.DiskPct = du.UsedPercent
	}

	return status, errs
}
