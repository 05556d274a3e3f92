package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"telemetry_mon/internal/counters"
	"telemetry_mon/internal/inventory"
)

type fakeHealth struct{}

func (fakeHealth) Health(_ context.Context, d inventory.DiskRecord) inventory.DiskHealth {
	return inventory.DiskHealth{Status: inventory.HealthHealthy, TemperatureC: float64(30 + d.Index), HasTemperature: true}
}

func stubVolumes(t *testing.T, usage map[string]disk.UsageStat) {
	t.Helper()

	prev := volumeUsage
	volumeUsage = func(_ context.Context, path string) (*disk.UsageStat, error) {
		u, ok := usage[path]
		if !ok {
			return nil, errors.New("volume not mounted")
		}
		return &u, nil
	}
	t.Cleanup(func() { volumeUsage = prev })
}

func setDiskCounters(p *fakeProvider, instance string, read, write, transfer, idle, secs float64) {
	p.set(counters.CategoryPhysicalDisk, counters.DiskReadBytes, instance, 0, read)
	p.set(counters.CategoryPhysicalDisk, counters.DiskWriteBytes, instance, 0, write)
	p.set(counters.CategoryPhysicalDisk, counters.DiskBytes, instance, 0, transfer)
	p.set(counters.CategoryPhysicalDisk, counters.DiskIdleTime, instance, 0, idle)
	p.set(counters.CategoryPhysicalDisk, counters.DiskSecTransfer, instance, 0, secs)
}

func testDisks() []inventory.DiskRecord {
	return []inventory.DiskRecord{
		{Index: 0, ID: "0", Model: "NVMe SSD", Type: inventory.DiskSSD, Volumes: []inventory.VolumeRecord{{Name: "C:"}}},
		{Index: 1, ID: "1", Model: "HDD", Type: inventory.DiskHDD, Volumes: []inventory.VolumeRecord{{Name: "D:"}}},
		{Index: 2, ID: "2", Model: "USB Stick", Volumes: []inventory.VolumeRecord{{Name: "E:"}}},
	}
}

func TestDiskUnresolvedInstanceStillReported(t *testing.T) {
	stubVolumes(t, map[string]disk.UsageStat{
		`C:\`: {Total: 500, Free: 200},
		`D:\`: {Total: 1000, Free: 1200},
		`E:\`: {Total: 64, Free: 32},
	})

	provider := newFakeProvider()
	provider.instances[counters.CategoryPhysicalDisk] = []string{"0 C:", "1 D:", "_Total"}
	setDiskCounters(provider, "0 C:", 1000, 2000, 3000, -20, 0.004)
	setDiskCounters(provider, "1 D:", 10, 20, 30, 130, 0.0125)

	sampler := counters.NewSampler(provider, time.Second, zap.NewNop())
	ctx := context.Background()

	d := NewDisk(ctx, sampler, testDisks(), counters.NewResolver("", ""), fakeHealth{}, 60, zap.NewNop())
	require.NoError(t, d.Refresh(ctx))

	all := d.AllDisks()
	require.Len(t, all, 3)

	sys := all[0]
	assert.True(t, sys.PerfAvailable)
	assert.Equal(t, "0 C:", sys.Instance)
	assert.Equal(t, 1000.0, sys.ReadBytesPerSec)
	assert.Equal(t, 2000.0, sys.WriteBytesPerSec)
	assert.Equal(t, 3000.0, sys.TransferBytesPerSec)
	assert.Equal(t, 100.0, sys.ActiveTimePercent, "negative idle clamps to 100")
	assert.InDelta(t, 4.0, sys.ResponseTimeMs, 1e-9)
	assert.Equal(t, []float64{3000}, sys.History)
	assert.Equal(t, uint64(300), sys.Disk.Volumes[0].UsedBytes)

	data := all[1]
	assert.Equal(t, 0.0, data.ActiveTimePercent, "idle above 100 clamps to 0")
	assert.InDelta(t, 12.5, data.ResponseTimeMs, 1e-9)
	assert.Equal(t, data.Disk.Volumes[0].TotalBytes, data.Disk.Volumes[0].UsedBytes+data.Disk.Volumes[0].FreeBytes)

	usb := all[2]
	assert.False(t, usb.PerfAvailable)
	assert.Empty(t, usb.Instance)
	assert.Zero(t, usb.TransferBytesPerSec)
	assert.Zero(t, usb.ActiveTimePercent)
	assert.Equal(t, "USB Stick", usb.Disk.Model)
	assert.Equal(t, uint64(32), usb.Disk.Volumes[0].FreeBytes)

	totals := d.Totals()
	assert.Equal(t, uint64(1564), totals.TotalBytes)
	assert.Equal(t, totals.TotalBytes, totals.UsedBytes+totals.FreeBytes)

	require.NoError(t, d.Close())
	assert.True(t, provider.allClosed())
}

func TestDiskHistoryAndHealth(t *testing.T) {
	stubVolumes(t, nil)

	provider := newFakeProvider()
	provider.instances[counters.CategoryPhysicalDisk] = []string{"0 C:"}
	provider.set(counters.CategoryPhysicalDisk, counters.DiskReadBytes, "0 C:", 0, 1)
	provider.set(counters.CategoryPhysicalDisk, counters.DiskWriteBytes, "0 C:", 0, 1)
	provider.set(counters.CategoryPhysicalDisk, counters.DiskBytes, "0 C:", 0, 500, 2500, 100)
	provider.set(counters.CategoryPhysicalDisk, counters.DiskIdleTime, "0 C:", 0, 50)
	provider.set(counters.CategoryPhysicalDisk, counters.DiskSecTransfer, "0 C:", 0, 0.001)

	sampler := counters.NewSampler(provider, time.Second, zap.NewNop())
	ctx := context.Background()
	d := NewDisk(ctx, sampler, testDisks()[:1], counters.NewResolver("", ""), fakeHealth{}, 60, zap.NewNop())

	for i := 0; i < 3; i++ {
		require.NoError(t, d.Refresh(ctx))
	}

	s, ok := d.Get(0)
	require.True(t, ok)
	assert.Equal(t, []float64{500, 2500, 100}, s.History)
	assert.Equal(t, 2500.0, s.MaxTransferBytesPerSec)
	assert.Equal(t, 50.0, s.ActiveTimePercent)

	d.ClearHistory()
	require.NoError(t, d.Refresh(ctx))
	s, _ = d.Get(0)
	assert.Equal(t, []float64{100}, s.History)

	h, ok := d.Health(ctx, 0)
	require.True(t, ok)
	assert.Equal(t, inventory.HealthHealthy, h.Status)
	assert.Equal(t, 30.0, h.TemperatureC)

	_, ok = d.Health(ctx, 7)
	assert.False(t, ok)
	_, ok = d.Get(7)
	assert.False(t, ok)
}

func TestDiskWithoutCounterSubsystem(t *testing.T) {
	stubVolumes(t, map[string]disk.UsageStat{`C:\`: {Total: 10, Free: 4}})

	sampler := counters.NewSampler(newFakeProvider(), time.Second, zap.NewNop())
	ctx := context.Background()
	d := NewDisk(ctx, sampler, testDisks()[:1], counters.NewResolver("", ""), nil, 60, zap.NewNop())

	require.NoError(t, d.Refresh(ctx))
	all := d.AllDisks()
	require.Len(t, all, 1)
	assert.False(t, all[0].PerfAvailable)
	assert.Equal(t, uint64(6), all[0].Disk.Volumes[0].UsedBytes)

	h, ok := d.Health(ctx, 0)
	assert.False(t, ok)
	assert.Equal(t, inventory.HealthUnknown, h.Status)
}

func TestMountPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `C:\`, mountPath("C:"))
	assert.Equal(t, "/home", mountPath("/home"))
	assert.Equal(t, `D:\`, mountPath(`D:\`))
}
