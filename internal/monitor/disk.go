package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"go.uber.org/zap"

	"telemetry_mon/internal/counters"
	"telemetry_mon/internal/history"
	"telemetry_mon/internal/inventory"
)

var volumeUsage = disk.UsageWithContext

// Счетчики, открываемые на каждый диск, в порядке опроса
var diskCounters = []string{
	counters.DiskReadBytes,
	counters.DiskWriteBytes,
	counters.DiskBytes,
	counters.DiskIdleTime,
	counters.DiskSecTransfer,
}

const (
	diskRead = iota
	diskWrite
	diskTransfer
	diskIdle
	diskResponse
)

// HealthSource источник SMART-состояния диска
type HealthSource interface {
	Health(ctx context.Context, disk inventory.DiskRecord) inventory.DiskHealth
}

// DiskSnapshot снимок одного диска. У диска без экземпляра счетчика
// PerfAvailable=false, а показатели производительности нулевые.
type DiskSnapshot struct {
	Disk          inventory.DiskRecord `json:"disk"`
	Instance      string               `json:"instance,omitempty"`
	PerfAvailable bool                 `json:"perf_available"`

	ReadBytesPerSec        float64 `json:"read_bytes_per_sec"`
	WriteBytesPerSec       float64 `json:"write_bytes_per_sec"`
	TransferBytesPerSec    float64 `json:"transfer_bytes_per_sec"`
	MaxTransferBytesPerSec float64 `json:"max_transfer_bytes_per_sec"`
	ActiveTimePercent      float64 `json:"active_time_percent"`
	ResponseTimeMs         float64 `json:"response_time_ms"`

	History   []float64 `json:"history"`
	Timestamp time.Time `json:"timestamp"`
}

// DiskTotals суммарное пространство всех томов
type DiskTotals struct {
	TotalBytes uint64 `json:"total_bytes"`
	UsedBytes  uint64 `json:"used_bytes"`
	FreeBytes  uint64 `json:"free_bytes"`
}

type diskEntry struct {
	record   inventory.DiskRecord
	instance string
	handles  []*counters.Handle
	history  *history.Buffer
}

// Disk агрегатор производительности и заполненности физических дисков
type Disk struct {
	lifecycle

	sampler *counters.Sampler
	health  HealthSource
	logger  *zap.Logger

	mu      sync.RWMutex
	entries []*diskEntry
	snap    []DiskSnapshot

	hub Hub[[]DiskSnapshot]
}

// NewDisk сопоставляет диски экземплярам счетчиков и открывает счетчики.
// Диск без экземпляра сохраняет описание и тома. health может быть nil.
func NewDisk(ctx context.Context, sampler *counters.Sampler, disks []inventory.DiskRecord,
	resolver counters.Resolver, health HealthSource, historySize int, logger *zap.Logger) *Disk {
	d := &Disk{
		sampler: sampler,
		health:  health,
		logger:  logger.Named("disk"),
	}

	instances, err := sampler.Instances(counters.CategoryPhysicalDisk)
	if err != nil {
		d.logger.Warn("Disk counter instances unavailable", zap.Error(err))
	}

	for _, rec := range disks {
		e := &diskEntry{record: rec.Clone(), history: history.New(historySize)}
		d.entries = append(d.entries, e)

		instance, ok := resolver.Resolve(rec.ID, instances)
		if !ok {
			d.logger.Debug("No counter instance for disk",
				zap.String("disk", rec.ID), zap.String("model", rec.Model))
			continue
		}
		e.instance = instance
		e.handles = d.openHandles(ctx, instance)
	}

	d.snap = d.buildSnapshot(time.Time{}, make([][]counters.Reading, len(d.entries)))
	d.ready()

	return d
}

// openHandles открывает все счетчики диска; при отказе любого счетчика
// диск остается без показателей производительности
func (d *Disk) openHandles(ctx context.Context, instance string) []*counters.Handle {
	handles := make([]*counters.Handle, 0, len(diskCounters))
	for _, name := range diskCounters {
		h, err := d.sampler.Open(ctx, counters.CategoryPhysicalDisk, name, instance)
		if err != nil {
			d.logger.Warn("Disk counter unavailable",
				zap.String("instance", instance), zap.String("counter", name), zap.Error(err))
			_ = releaseAll(d.sampler, handles...)
			return nil
		}
		handles = append(handles, h)
	}
	return handles
}

// Refresh выполняет один опрос всех дисков
func (d *Disk) Refresh(ctx context.Context) error {
	if err := d.begin(); err != nil {
		return err
	}
	defer d.end()

	var all []*counters.Handle
	for _, e := range d.entries {
		all = append(all, e.handles...)
	}
	flat := d.sampler.SampleAll(ctx, all)

	readings := make([][]counters.Reading, len(d.entries))
	failed := 0
	offset := 0
	for i, e := range d.entries {
		readings[i] = flat[offset : offset+len(e.handles)]
		offset += len(e.handles)
		for _, r := range readings[i] {
			if !r.OK {
				failed++
			}
		}
	}

	volumeFailures := d.refreshVolumes(ctx)

	d.mu.Lock()
	snap := d.buildSnapshot(time.Now(), readings)
	d.snap = snap
	d.mu.Unlock()

	if failed > 0 || volumeFailures > 0 {
		d.logger.Warn("Disk sampling incomplete",
			zap.Int("failed_counters", failed),
			zap.Int("failed_volumes", volumeFailures))
	}
	d.hub.Publish(snap)

	return nil
}

// refreshVolumes перечитывает размеры томов напрямую из файловой системы
func (d *Disk) refreshVolumes(ctx context.Context) int {
	failures := 0
	for _, e := range d.entries {
		for i := range e.record.Volumes {
			v := &e.record.Volumes[i]
			usage, err := volumeUsage(ctx, mountPath(v.Name))
			if err != nil {
				failures++
				d.logger.Debug("Volume usage unavailable", zap.String("volume", v.Name), zap.Error(err))
				continue
			}
			d.mu.Lock()
			v.Refresh(usage.Total, usage.Free)
			d.mu.Unlock()
		}
	}
	return failures
}

// buildSnapshot вызывается под d.mu
func (d *Disk) buildSnapshot(ts time.Time, readings [][]counters.Reading) []DiskSnapshot {
	out := make([]DiskSnapshot, 0, len(d.entries))
	for i, e := range d.entries {
		s := DiskSnapshot{
			Disk:      e.record.Clone(),
			Instance:  e.instance,
			Timestamp: ts,
		}

		r := readings[i]
		s.PerfAvailable = len(e.handles) == len(diskCounters)
		if s.PerfAvailable && len(r) == len(diskCounters) {
			s.ReadBytesPerSec = r[diskRead].Value
			s.WriteBytesPerSec = r[diskWrite].Value
			s.TransferBytesPerSec = r[diskTransfer].Value
			s.ActiveTimePercent = clamp(100-r[diskIdle].Value, 0, 100)
			s.ResponseTimeMs = r[diskResponse].Value * 1000
			if !ts.IsZero() {
				e.history.Push(s.TransferBytesPerSec)
			}
		}

		s.History = e.history.Values()
		s.MaxTransferBytesPerSec = e.history.Max()
		out = append(out, s)
	}
	return out
}

// AllDisks возвращает снимки всех дисков, включая диски без счетчиков
func (d *Disk) AllDisks() []DiskSnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]DiskSnapshot(nil), d.snap...)
}

// Snapshot синоним AllDisks
func (d *Disk) Snapshot() []DiskSnapshot { return d.AllDisks() }

// Get возвращает снимок диска по индексу
func (d *Disk) Get(index int) (DiskSnapshot, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, s := range d.snap {
		if s.Disk.Index == index {
			return s, true
		}
	}
	return DiskSnapshot{}, false
}

// Totals суммирует размеры томов всех дисков
func (d *Disk) Totals() DiskTotals {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var t DiskTotals
	for _, s := range d.snap {
		for _, v := range s.Disk.Volumes {
			t.TotalBytes += v.TotalBytes
			t.UsedBytes += v.UsedBytes
			t.FreeBytes += v.FreeBytes
		}
	}
	return t
}

// Subscribe возвращает канал снимков после каждого опроса
func (d *Disk) Subscribe() <-chan []DiskSnapshot {
	return d.hub.Subscribe()
}

// ClearHistory очищает историю скорости передачи всех дисков
func (d *Disk) ClearHistory() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, e := range d.entries {
		e.history.Reset()
	}
}

// Health запрашивает SMART-состояние диска по требованию
func (d *Disk) Health(ctx context.Context, index int) (inventory.DiskHealth, bool) {
	if d.health == nil {
		return inventory.DiskHealth{Status: inventory.HealthUnknown}, false
	}

	d.mu.RLock()
	var rec *inventory.DiskRecord
	for _, e := range d.entries {
		if e.record.Index == index {
			r := e.record.Clone()
			rec = &r
			break
		}
	}
	d.mu.RUnlock()

	if rec == nil {
		return inventory.DiskHealth{Status: inventory.HealthUnknown}, false
	}
	return d.health.Health(ctx, *rec), true
}

// Close освобождает счетчики всех дисков; повторный вызов ничего не делает
func (d *Disk) Close() error {
	if !d.dispose() {
		return nil
	}
	d.hub.Close()

	var all []*counters.Handle
	for _, e := range d.entries {
		all = append(all, e.handles...)
	}
	return releaseAll(d.sampler, all...)
}

// mountPath превращает букву диска "C:" в корень тома "C:\"
func mountPath(name string) string {
	if len(name) == 2 && name[1] == ':' {
		return name + `\`
	}
	return name
}
