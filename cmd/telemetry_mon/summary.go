package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"telemetry_mon/internal/format"
	"telemetry_mon/internal/monitor"
	"telemetry_mon/internal/profiler"
)

// reporter логирует сводку по каждой области на каждом такте служб
type reporter struct {
	logger   *zap.Logger
	profiler *profiler.Profiler

	cpu      *monitor.CPU
	memory   *monitor.Memory
	disk     *monitor.Disk
	services *monitor.Services
}

func (r *reporter) Refresh(ctx context.Context) error {
	if r.cpu != nil {
		r.logger.Info("CPU", zap.String("summary", cpuSummary(r.cpu.Snapshot())))
	}
	if r.memory != nil {
		r.logger.Info("Memory", zap.String("summary", memorySummary(r.memory.Snapshot())))
	}
	if r.disk != nil {
		r.logger.Info("Disk", zap.String("summary", diskSummary(r.disk.AllDisks(), r.disk.Totals())))
	}
	if r.services != nil {
		r.logger.Info("Services", zap.String("summary", servicesSummary(r.services.Statistics())))
	}
	if r.profiler != nil {
		r.profiler.LogMemStats()
	}
	return nil
}

// Close агрегаторы освобождает планировщик
func (r *reporter) Close() error { return nil }

func cpuSummary(s monitor.CPUSnapshot) string {
	usage := format.NA
	if s.UsageOK {
		usage = format.FormatPercent(s.UsagePercent)
	}
	return fmt.Sprintf("%s @ %s, %d processes, %d threads, %d handles, up %s, %s, %s, %s",
		usage,
		format.FormatMHz(s.ClockMHz),
		s.Counts.Processes, s.Counts.Threads, s.Counts.Handles,
		format.FormatUptime(s.Uptime),
		format.FormatTemperature(s.Temperature.Value, s.Temperature.OK),
		format.FormatWatts(s.Power.Value, s.Power.OK),
		format.FormatVolts(s.Voltage.Value, s.Voltage.OK))
}

func memorySummary(s monitor.MemorySnapshot) string {
	if !s.StatusOK {
		return format.NA
	}
	return fmt.Sprintf("%s of %s (%s), committed %s/%s, cached %s, reserved %s",
		format.FormatBytes(s.UsedBytes),
		format.FormatBytes(s.TotalBytes),
		format.FormatPercent(s.UsagePercent),
		format.FormatBytes(s.CommittedBytes),
		format.FormatBytes(s.CommitLimitBytes),
		readingBytes(s.Cached),
		format.FormatBytes(s.HardwareReservedBytes))
}

func diskSummary(disks []monitor.DiskSnapshot, totals monitor.DiskTotals) string {
	out := fmt.Sprintf("%d disks, %s used of %s",
		len(disks), format.FormatBytes(totals.UsedBytes), format.FormatBytes(totals.TotalBytes))
	for _, d := range disks {
		if !d.PerfAvailable {
			out += fmt.Sprintf("; #%d %s", d.Disk.Index, format.NA)
			continue
		}
		out += fmt.Sprintf("; #%d %s %s (%s active, %.1f ms)",
			d.Disk.Index, d.Disk.Type,
			format.FormatSpeed(d.TransferBytesPerSec),
			format.FormatPercent(d.ActiveTimePercent),
			d.ResponseTimeMs)
	}
	return out
}

func servicesSummary(s monitor.Statistics) string {
	return fmt.Sprintf("%d total, %d running, %d stopped, %d paused",
		s.Total, s.Running, s.Stopped, s.Paused)
}

func readingBytes(r monitor.Reading) string {
	if !r.OK || r.Value < 0 {
		return format.NA
	}
	return format.FormatBytes(uint64(r.Value))
}
