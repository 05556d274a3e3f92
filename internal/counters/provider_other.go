//go:build !windows

package counters

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

var (
	cpuTimes      = cpu.Times
	ioCounters    = disk.IOCounters
	virtualMemory = mem.VirtualMemory
	now           = time.Now
)

type psProvider struct{}

// NewProvider возвращает провайдер, вычисляющий счетчики из кумулятивных
// показателей gopsutil. Скоростные счетчики считаются как разность между чтениями.
func NewProvider() Provider {
	return psProvider{}
}

// Instances перечисляет экземпляры категории
func (psProvider) Instances(category string) ([]string, error) {
	switch category {
	case CategoryProcessor:
		times, err := cpuTimes(true)
		if err != nil {
			return nil, fmt.Errorf("failed to get CPU times: %w", err)
		}
		out := []string{TotalInstance}
		for i := range times {
			out = append(out, strconv.Itoa(i))
		}
		return out, nil
	case CategoryPhysicalDisk:
		stats, err := ioCounters()
		if err != nil {
			return nil, fmt.Errorf("failed to get disk IO counters: %w", err)
		}
		out := make([]string, 0, len(stats)+1)
		for name := range stats {
			out = append(out, name)
		}
		sort.Strings(out)
		return append(out, TotalInstance), nil
	case CategoryMemory:
		return nil, nil
	default:
		return nil, fmt.Errorf("%s: %w", category, ErrUnsupported)
	}
}

// Open открывает счетчик по пути
func (psProvider) Open(path Path) (Counter, error) {
	switch path.Category {
	case CategoryProcessor:
		if path.Counter != ProcessorTime {
			break
		}
		percpu := path.Instance != "" && path.Instance != TotalInstance
		idx := 0
		if percpu {
			n, err := strconv.Atoi(path.Instance)
			if err != nil {
				return nil, fmt.Errorf("invalid processor instance %q: %w", path.Instance, err)
			}
			idx = n
		}
		return &cpuCounter{percpu: percpu, index: idx}, nil
	case CategoryPhysicalDisk:
		switch path.Counter {
		case DiskReadBytes, DiskWriteBytes, DiskBytes, DiskIdleTime, DiskSecTransfer:
			return &diskCounter{name: path.Instance, metric: path.Counter}, nil
		}
	case CategoryMemory:
		switch path.Counter {
		case MemoryCacheBytes, MemoryPoolPaged, MemoryPoolNonpaged:
			return &memoryCounter{metric: path.Counter}, nil
		}
	}

	return nil, fmt.Errorf("%s: %w", path, ErrUnsupported)
}

type cpuCounter struct {
	percpu bool
	index  int

	mu          sync.Mutex
	prevBusy    float64
	prevTotal   float64
	hasBaseline bool
}

func (c *cpuCounter) Read() (float64, error) {
	times, err := cpuTimes(c.percpu)
	if err != nil {
		return 0, err
	}
	if c.index >= len(times) {
		return 0, fmt.Errorf("processor %d not found", c.index)
	}

	t := times[c.index]
	total := t.User + t.System + t.Idle + t.Nice + t.Iowait + t.Irq + t.Softirq + t.Steal
	busy := total - t.Idle - t.Iowait

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasBaseline {
		c.prevBusy, c.prevTotal, c.hasBaseline = busy, total, true
		return 0, nil
	}

	dTotal := total - c.prevTotal
	dBusy := busy - c.prevBusy
	c.prevBusy, c.prevTotal = busy, total
	if dTotal <= 0 {
		return 0, nil
	}

	return clampPercent(dBusy / dTotal * 100), nil
}

func (c *cpuCounter) Close() error { return nil }

type diskCounter struct {
	name   string
	metric string

	mu   sync.Mutex
	prev *disk.IOCountersStat
	at   time.Time
}

func (c *diskCounter) Read() (float64, error) {
	stat, err := c.current()
	if err != nil {
		return 0, err
	}
	ts := now()

	c.mu.Lock()
	defer c.mu.Unlock()

	prev, prevAt := c.prev, c.at
	c.prev, c.at = &stat, ts
	if prev == nil {
		return 0, nil
	}

	elapsed := ts.Sub(prevAt).Seconds()
	if elapsed <= 0 {
		return 0, nil
	}

	switch c.metric {
	case DiskReadBytes:
		return float64(delta(stat.ReadBytes, prev.ReadBytes)) / elapsed, nil
	case DiskWriteBytes:
		return float64(delta(stat.WriteBytes, prev.WriteBytes)) / elapsed, nil
	case DiskBytes:
		bytes := delta(stat.ReadBytes, prev.ReadBytes) + delta(stat.WriteBytes, prev.WriteBytes)
		return float64(bytes) / elapsed, nil
	case DiskIdleTime:
		busyMs := float64(delta(stat.IoTime, prev.IoTime))
		return clampPercent(100 - busyMs/(elapsed*1000)*100), nil
	case DiskSecTransfer:
		transfers := delta(stat.ReadCount, prev.ReadCount) + delta(stat.WriteCount, prev.WriteCount)
		if transfers == 0 {
			return 0, nil
		}
		waitMs := delta(stat.ReadTime, prev.ReadTime) + delta(stat.WriteTime, prev.WriteTime)
		return float64(waitMs) / float64(transfers) / 1000, nil
	}

	return 0, ErrUnsupported
}

// current читает счетчики одного диска или сумму по всем дискам для _Total
func (c *diskCounter) current() (disk.IOCountersStat, error) {
	var names []string
	if c.name != TotalInstance {
		names = []string{c.name}
	}

	stats, err := ioCounters(names...)
	if err != nil {
		return disk.IOCountersStat{}, err
	}

	if c.name != TotalInstance {
		stat, ok := stats[c.name]
		if !ok {
			return disk.IOCountersStat{}, fmt.Errorf("disk %s not found", c.name)
		}
		return stat, nil
	}

	var sum disk.IOCountersStat
	for _, s := range stats {
		sum.ReadBytes += s.ReadBytes
		sum.WriteBytes += s.WriteBytes
		sum.ReadCount += s.ReadCount
		sum.WriteCount += s.WriteCount
		sum.ReadTime += s.ReadTime
		sum.WriteTime += s.WriteTime
		sum.IoTime += s.IoTime
	}
	return sum, nil
}

func (c *diskCounter) Close() error { return nil }

type memoryCounter struct {
	metric string
}

func (c *memoryCounter) Read() (float64, error) {
	vm, err := virtualMemory()
	if err != nil {
		return 0, err
	}

	switch c.metric {
	case MemoryCacheBytes:
		return float64(vm.Cached + vm.Buffers), nil
	case MemoryPoolPaged:
		return float64(vm.Sreclaimable), nil
	case MemoryPoolNonpaged:
		return float64(vm.Sunreclaim), nil
	}

	return 0, ErrUnsupported
}

func (c *memoryCounter) Close() error { return nil }

// delta защищает от сброса кумулятивного счетчика
func delta(cur, prev uint64) uint64 {
	if cur < prev {
		return 0
	}
	return cur - prev
}

func clampPercent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
