package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"telemetry_mon/internal/counters"
	"telemetry_mon/internal/inventory"
)

func TestAggregatorsStartFromEmptyInventory(t *testing.T) {
	stubHost(t, ProcessCounts{Processes: 3, Threads: 9}, nil, 60)
	stubMemoryStatus(t, memoryStatus{Total: 8 * gib, Available: 6 * gib, UsagePercent: 25}, nil)
	stubVolumes(t, map[string]disk.UsageStat{})

	provider := newFakeProvider()
	provider.set(counters.CategoryProcessor, counters.ProcessorTime, counters.TotalInstance, 0, 40)
	sampler := counters.NewSampler(provider, time.Second, zap.NewNop())

	batch := &inventory.Batch{}
	ctx := context.Background()

	cpu := NewCPU(ctx, sampler, batch.Processor, nil, nil, 60, zap.NewNop())
	mem := NewMemory(ctx, sampler, batch.Memory, 60, zap.NewNop())
	dsk := NewDisk(ctx, sampler, batch.Disks, counters.NewResolver("", ""), nil, 60, zap.NewNop())

	require.NoError(t, cpu.Refresh(ctx))
	require.NoError(t, mem.Refresh(ctx))
	require.NoError(t, dsk.Refresh(ctx))

	c := cpu.Snapshot()
	assert.True(t, c.UsageOK)
	assert.Equal(t, 40.0, c.UsagePercent)
	assert.Zero(t, c.ClockMHz)
	assert.Equal(t, 3, c.Counts.Processes)

	m := mem.Snapshot()
	assert.True(t, m.StatusOK)
	assert.Equal(t, 2*gib, m.UsedBytes)
	assert.Zero(t, m.HardwareReservedBytes)
	assert.Zero(t, m.TotalSlots)

	assert.Empty(t, dsk.AllDisks())
	assert.Equal(t, DiskTotals{}, dsk.Totals())

	for _, closer := range []interface{ Close() error }{cpu, mem, dsk} {
		require.NoError(t, closer.Close())
	}
	assert.True(t, provider.allClosed())
}
