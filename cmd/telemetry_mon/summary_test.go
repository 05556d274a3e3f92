package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"telemetry_mon/internal/inventory"
	"telemetry_mon/internal/monitor"
	"telemetry_mon/internal/svcctl"
)

func TestCPUSummary(t *testing.T) {
	t.Parallel()

	s := monitor.CPUSnapshot{
		UsagePercent: 42.4,
		UsageOK:      true,
		ClockMHz:     3600,
		Counts:       monitor.ProcessCounts{Processes: 120, Threads: 1500, Handles: 40000},
		Uptime:       26*time.Hour + 5*time.Minute,
		Temperature:  monitor.Reading{Value: 55, OK: true},
	}
	got := cpuSummary(s)
	assert.Contains(t, got, "42% @ 3.60 GHz")
	assert.Contains(t, got, "120 processes")
	assert.Contains(t, got, "up 1.02:05:00")
	assert.Contains(t, got, "55 °C")
	assert.Contains(t, got, "N/A")

	assert.Contains(t, cpuSummary(monitor.CPUSnapshot{}), "N/A @ N/A")
}

func TestMemorySummary(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "N/A", memorySummary(monitor.MemorySnapshot{}))

	got := memorySummary(monitor.MemorySnapshot{
		StatusOK:     true,
		TotalBytes:   16 << 30,
		UsedBytes:    8 << 30,
		UsagePercent: 50,
		Cached:       monitor.Reading{Value: 1 << 30, OK: true},
	})
	assert.Contains(t, got, "8.0 GB of 16.0 GB (50%)")
	assert.Contains(t, got, "cached 1.0 GB")
}

func TestDiskSummary(t *testing.T) {
	t.Parallel()

	disks := []monitor.DiskSnapshot{
		{
			Disk:                inventory.DiskRecord{Index: 0, Type: inventory.DiskSSD},
			PerfAvailable:       true,
			TransferBytesPerSec: 2 * 1024 * 1024,
			ActiveTimePercent:   12,
			ResponseTimeMs:      0.5,
		},
		{Disk: inventory.DiskRecord{Index: 1}},
	}
	got := diskSummary(disks, monitor.DiskTotals{TotalBytes: 1 << 40, UsedBytes: 1 << 39})
	assert.Equal(t, "2 disks, 512.0 GB used of 1.0 TB; #0 SSD 2.0 MB/s (12% active, 0.5 ms); #1 N/A", got)
}

func TestReporterLogsEveryDomain(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	r := &reporter{logger: zap.New(core)}
	require.NoError(t, r.Refresh(context.Background()))
	assert.Zero(t, logs.Len())
	require.NoError(t, r.Close())
}

func TestPrintServices(t *testing.T) {
	t.Parallel()

	list := []svcctl.Record{
		{Name: "Spooler", DisplayName: "Print Spooler", Status: svcctl.StatusRunning, StartMode: svcctl.StartAutomatic, PID: 1234},
		{Name: "wuauserv", DisplayName: "Windows Update", Status: svcctl.StatusStartPending, StartMode: svcctl.StartManual},
	}

	var buf bytes.Buffer
	printServices(&buf, list)
	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "Print Spooler")
	assert.Contains(t, out, "1234")
	assert.Contains(t, out, "Starting...")

	running := intersect(list, []svcctl.Record{{Name: "spooler"}, {Name: "Winmgmt"}})
	require.Len(t, running, 1)
	assert.Equal(t, "Spooler", running[0].Name)
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", truncate("  short ", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

func TestRootCommandTree(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	for _, path := range [][]string{{"run"}, {"inventory"}, {"services"}, {"service", "restart"}, {"service", "continue"}} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("cpu-interval"))
}
