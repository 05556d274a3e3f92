package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"telemetry_mon/internal/counters"
	"telemetry_mon/internal/inventory"
	"telemetry_mon/internal/sensors"
)

func stubHost(t *testing.T, counts ProcessCounts, countsErr error, uptime uint64) {
	t.Helper()

	prevCounts, prevUptime := processCounts, hostUptime
	processCounts = func(context.Context) (ProcessCounts, error) { return counts, countsErr }
	hostUptime = func(context.Context) (uint64, error) { return uptime, nil }
	t.Cleanup(func() {
		processCounts, hostUptime = prevCounts, prevUptime
	})
}

func TestCPURefresh(t *testing.T) {
	stubHost(t, ProcessCounts{Processes: 120, Threads: 1500, Handles: 40000}, nil, 90061)

	provider := newFakeProvider()
	provider.set(counters.CategoryProcessor, counters.ProcessorTime, counters.TotalInstance, 0, 25, 130)
	provider.set(counters.CategoryProcessorInfo, counters.ProcessorPerformance, counters.TotalInstance, 0, 50)

	sampler := counters.NewSampler(provider, time.Second, zap.NewNop())
	proc := &inventory.ProcessorRecord{Name: "Test CPU", Cores: 8, LogicalProcessors: 16, Sockets: 1, BaseClockMHz: 3000}
	sens := &fakeSensors{values: map[sensors.SensorType]float64{
		sensors.TypeTemperature: 45,
		sensors.TypeVoltage:     1.2,
	}}

	ctx := context.Background()
	c := NewCPU(ctx, sampler, proc, nil, sens, 60, zap.NewNop())
	assert.Equal(t, StateReady, c.State())

	require.NoError(t, c.Refresh(ctx))
	snap := c.Snapshot()
	assert.Equal(t, 25.0, snap.UsagePercent)
	assert.True(t, snap.UsageOK)
	assert.Equal(t, 1500.0, snap.ClockMHz)
	assert.Equal(t, 16, snap.Processor.LogicalProcessors)
	assert.Equal(t, 120, snap.Counts.Processes)
	assert.Equal(t, 25*time.Hour+61*time.Second, snap.Uptime)
	assert.Equal(t, Reading{Value: 45, OK: true}, snap.Temperature)
	assert.Equal(t, Reading{Value: 1.2, OK: true}, snap.Voltage)
	assert.False(t, snap.Power.OK, "missing sensor is unavailable, not zero")

	require.NoError(t, c.Refresh(ctx))
	snap = c.Snapshot()
	assert.Equal(t, 100.0, snap.UsagePercent, "usage is clamped")
	assert.Equal(t, []float64{25, 100}, snap.History)
	assert.Equal(t, snap, c.Snapshot(), "snapshot is idempotent")

	c.ClearHistory()
	assert.Equal(t, []float64{25, 100}, c.Snapshot().History, "published snapshot is not mutated")

	require.NoError(t, c.Close())
	assert.Equal(t, StateDisposed, c.State())
	assert.ErrorIs(t, c.Refresh(ctx), ErrDisposed)
	assert.NoError(t, c.Close())
	assert.True(t, provider.allClosed())
}

func TestCPUClockFallback(t *testing.T) {
	stubHost(t, ProcessCounts{}, errors.New("access denied"), 10)

	provider := newFakeProvider()
	provider.set(counters.CategoryProcessor, counters.ProcessorTime, counters.TotalInstance, 0, 10)
	sampler := counters.NewSampler(provider, time.Second, zap.NewNop())
	proc := &inventory.ProcessorRecord{BaseClockMHz: 3600}
	ctx := context.Background()

	c := NewCPU(ctx, sampler, proc, fakeClock{mhz: 4200}, nil, 60, zap.NewNop())
	require.NoError(t, c.Refresh(ctx))
	assert.Equal(t, 4200.0, c.Snapshot().ClockMHz)
	assert.Zero(t, c.Snapshot().Counts.Processes)

	c = NewCPU(ctx, sampler, proc, fakeClock{err: errors.New("wmi unavailable")}, nil, 60, zap.NewNop())
	require.NoError(t, c.Refresh(ctx))
	assert.Equal(t, 3600.0, c.Snapshot().ClockMHz)
}

func TestCPULowTemperatureIsUnavailable(t *testing.T) {
	stubHost(t, ProcessCounts{}, nil, 0)

	sampler := counters.NewSampler(newFakeProvider(), time.Second, zap.NewNop())
	sens := &fakeSensors{values: map[sensors.SensorType]float64{sensors.TypeTemperature: 8}}
	ctx := context.Background()

	c := NewCPU(ctx, sampler, nil, nil, sens, 60, zap.NewNop())
	require.NoError(t, c.Refresh(ctx))

	snap := c.Snapshot()
	assert.False(t, snap.Temperature.OK)
	assert.False(t, snap.UsageOK, "no usage counter")
	assert.Empty(t, snap.History)
}

func TestCPUSubscribe(t *testing.T) {
	stubHost(t, ProcessCounts{Processes: 1}, nil, 0)

	provider := newFakeProvider()
	provider.set(counters.CategoryProcessor, counters.ProcessorTime, counters.TotalInstance, 0, 33)
	sampler := counters.NewSampler(provider, time.Second, zap.NewNop())
	ctx := context.Background()

	c := NewCPU(ctx, sampler, nil, nil, nil, 60, zap.NewNop())
	ch := c.Subscribe()
	require.NoError(t, c.Refresh(ctx))

	snap := <-ch
	assert.Equal(t, 33.0, snap.UsagePercent)

	require.NoError(t, c.Close())
	_, ok := <-ch
	assert.False(t, ok)
}
