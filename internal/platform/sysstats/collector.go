package sysstats

import (
	"context"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Snapshot is one utilization sample. Percentages are 0-100.
type Snapshot struct {
	CPUPercent  float64
	RAMPercent  float64
	RAMTotal    uint64
	RAMUsed     uint64
	CollectedAt time.Time
}

// Collector samples the host. CPU usage is measured since the previous call,
// so the first sample may read 0.
type Collector struct {
	cpuPercent func(ctx context.Context, interval time.Duration, percpu bool) ([]float64, error)
	memory     func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	logger     *slog.Logger
}

// NewCollector creates a Collector backed by gopsutil.
func NewCollector(logger *slog.Logger) *Collector {
	return &Collector{
		cpuPercent: cpu.PercentWithContext,
		memory:     mem.VirtualMemoryWithContext,
		logger:     logger.With("component", "sysstats_collector"),
	}
}

// Collect takes a sample without blocking. A metric that cannot be read is
// left at zero.
func (c *Collector) Collect(ctx context.Context) Snapshot {
	snap := Snapshot{CollectedAt: time.Now()}

	if percents, err := c.cpuPercent(ctx, 0, false); err != nil {
		c.logger.Debug("cpu usage unavailable", "error", err)
	} else if len(percents) > 0 {
		snap.CPUPercent = percents[0]
	}

	if vm, err := c.memory(ctx); err != nil {
		c.logger.Debug("memory usage unavailable", "error", err)
	} else {
		snap.RAMPercent = vm.UsedPercent
		snap.RAMTotal = vm.Total
		snap.RAMUsed = vm.Used
	}

	return snap
}
