package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// SystemStats je jeden snímek stavu hostitele a našeho procesu.
type SystemStats struct {
	CPUPercent    float64
	MemUsedBytes  uint64 // Total - Available, bez diskové cache
	MemTotalBytes uint64
	DiskUsedBytes uint64
	ProcessRSS    uint64
}

// SystemSampler pravidelně měří hostitele a plní gauge v Metrics.
type SystemSampler struct {
	metrics  *Metrics
	logger   *slog.Logger
	interval time.Duration
	diskPath string
}

func NewSystemSampler(metrics *Metrics, interval time.Duration, logger *slog.Logger) *SystemSampler {
	return &SystemSampler{metrics: metrics, logger: logger, interval: interval, diskPath: "/"}
}

// Collect změří jeden snímek. Chyba jedné části nezastaví měření ostatních.
func (s *SystemSampler) Collect(ctx context.Context) SystemStats {
	var stats SystemStats

	// Měření CPU trvá 1s (rozdíl čítačů na začátku a na konci).
	if pct, err := cpu.PercentWithContext(ctx, time.Second, false); err == nil && len(pct) > 0 {
		stats.CPUPercent = pct[0]
	} else if err != nil {
		s.logger.Warn("Chyba při čtení CPU statistik", "error", err)
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.MemUsedBytes = vm.Total - vm.Available
		stats.MemTotalBytes = vm.Total
	} else {
		s.logger.Warn("Chyba při čtení RAM statistik", "error", err)
	}

	if du, err := disk.UsageWithContext(ctx, s.diskPath); err == nil {
		stats.DiskUsedBytes = du.Used
	} else {
		s.logger.Warn("Chyba při čtení statistik disku", "error", err)
	}

	if p, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil {
			stats.ProcessRSS = mi.RSS
		}
	}
	return stats
}

func (s *SystemSampler) record(stats SystemStats) {
	s.metrics.HostCPUPercent.Set(stats.CPUPercent)
	s.metrics.HostMemUsedBytes.Set(float64(stats.MemUsedBytes))
	s.metrics.HostMemTotalBytes.Set(float64(stats.MemTotalBytes))
	s.metrics.HostDiskUsedBytes.Set(float64(stats.DiskUsedBytes))
	s.metrics.ProcessRSSBytes.Set(float64(stats.ProcessRSS))
}

// Run měří hned při startu a pak každý interval, dokud neskončí ctx.
func (s *SystemSampler) Run(ctx context.Context) {
	s.record(s.Collect(ctx))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := s.Collect(ctx)
			s.record(stats)
			s.logger.Debug("Systémové metriky", "cpu", stats.CPUPercent, "rss", stats.ProcessRSS)
		}
	}
}
