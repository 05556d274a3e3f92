package monitor

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"telemetry_mon/internal/counters"
	"telemetry_mon/internal/history"
	"telemetry_mon/internal/inventory"
	"telemetry_mon/internal/sensors"
)

// minValidTemperature показания не выше этого порога считаются отсутствующими
const minValidTemperature = 10.0

var (
	processCounts = countProcesses
	hostUptime    = host.UptimeWithContext
)

// Reading значение метрики; OK=false означает "недоступно", а не ноль
type Reading struct {
	Value float64 `json:"value"`
	OK    bool    `json:"ok"`
}

// ProcessCounts число процессов, потоков и дескрипторов в системе
type ProcessCounts struct {
	Processes int `json:"processes"`
	Threads   int `json:"threads"`
	Handles   int `json:"handles"`
}

// ClockSource запасной источник текущей частоты процессора
type ClockSource interface {
	LiveClockMHz(ctx context.Context) (float64, error)
}

// SensorReader источник показаний датчиков процессора
type SensorReader interface {
	Update(ctx context.Context) error
	Probe(kind sensors.SensorType) (float64, bool)
}

// CPUSnapshot снимок состояния процессора за один опрос
type CPUSnapshot struct {
	Processor    inventory.ProcessorRecord `json:"processor"`
	UsagePercent float64                   `json:"usage_percent"`
	UsageOK      bool                      `json:"usage_ok"`
	ClockMHz     float64                   `json:"clock_mhz"`
	Counts       ProcessCounts             `json:"counts"`
	Uptime       time.Duration             `json:"uptime"`
	Temperature  Reading                   `json:"temperature"`
	Power        Reading                   `json:"power"`
	Voltage      Reading                   `json:"voltage"`
	History      []float64                 `json:"history"`
	Timestamp    time.Time                 `json:"timestamp"`
}

// CPU агрегатор загрузки, частоты и датчиков процессора
type CPU struct {
	lifecycle

	sampler *counters.Sampler
	clock   ClockSource
	sensors SensorReader
	logger  *zap.Logger

	processor inventory.ProcessorRecord
	usage     *counters.Handle
	perf      *counters.Handle

	mu      sync.RWMutex
	history *history.Buffer
	counts  ProcessCounts
	snap    CPUSnapshot

	hub Hub[CPUSnapshot]
}

// NewCPU открывает счетчики процессора. Недоступный счетчик не мешает
// созданию агрегатора: соответствующая метрика будет отмечена как недоступная.
// clock и sensorReader могут быть nil.
func NewCPU(ctx context.Context, sampler *counters.Sampler, processor *inventory.ProcessorRecord,
	clock ClockSource, sensorReader SensorReader, historySize int, logger *zap.Logger) *CPU {
	c := &CPU{
		sampler: sampler,
		clock:   clock,
		sensors: sensorReader,
		logger:  logger.Named("cpu"),
		history: history.New(historySize),
	}
	if processor != nil {
		c.processor = *processor
	}

	var err error
	c.usage, err = sampler.Open(ctx, counters.CategoryProcessor, counters.ProcessorTime, counters.TotalInstance)
	if err != nil {
		c.logger.Warn("CPU usage counter unavailable", zap.Error(err))
	}
	c.perf, err = sampler.Open(ctx, counters.CategoryProcessorInfo, counters.ProcessorPerformance, counters.TotalInstance)
	if err != nil {
		c.logger.Debug("Processor performance counter unavailable", zap.Error(err))
	}

	c.snap = CPUSnapshot{Processor: c.processor, ClockMHz: c.processor.BaseClockMHz}
	c.ready()

	return c
}

// Refresh выполняет один опрос
func (c *CPU) Refresh(ctx context.Context) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	var failed []string
	readings := c.sampler.SampleAll(ctx, []*counters.Handle{c.usage, c.perf})

	snap := CPUSnapshot{Processor: c.processor, Timestamp: time.Now()}

	if c.usage != nil {
		snap.UsagePercent = clamp(readings[0].Value, 0, 100)
		snap.UsageOK = readings[0].OK
		if !snap.UsageOK {
			failed = append(failed, "usage")
		}
	}

	snap.ClockMHz = c.clockMHz(ctx, readings[1])

	if counts, err := processCounts(ctx); err == nil {
		c.counts = counts
	} else {
		failed = append(failed, "processes")
		c.logger.Debug("Process enumeration failed", zap.Error(err))
	}
	snap.Counts = c.counts

	if secs, err := hostUptime(ctx); err == nil {
		snap.Uptime = time.Duration(secs) * time.Second
	} else {
		failed = append(failed, "uptime")
	}

	if c.sensors != nil {
		if err := c.sensors.Update(ctx); err != nil {
			c.logger.Debug("Sensor update failed", zap.Error(err))
		}
		snap.Temperature = c.probe(sensors.TypeTemperature)
		if snap.Temperature.Value <= minValidTemperature {
			snap.Temperature = Reading{}
		}
		snap.Power = c.probe(sensors.TypePower)
		snap.Voltage = c.probe(sensors.TypeVoltage)
	}

	c.mu.Lock()
	if c.usage != nil {
		c.history.Push(snap.UsagePercent)
	}
	snap.History = c.history.Values()
	c.snap = snap
	c.mu.Unlock()

	if len(failed) > 0 {
		c.logger.Warn("CPU sampling incomplete", zap.Strings("failed", failed))
	}
	c.hub.Publish(snap)

	return nil
}

// clockMHz: база × производительность, затем прямой запрос частоты, затем базовая частота
func (c *CPU) clockMHz(ctx context.Context, perf counters.Reading) float64 {
	base := c.processor.BaseClockMHz
	if c.perf != nil && perf.OK && perf.Value > 0 && base > 0 {
		return base * perf.Value / 100
	}
	if c.clock != nil {
		if mhz, err := c.clock.LiveClockMHz(ctx); err == nil && mhz > 0 {
			return mhz
		}
	}
	return base
}

func (c *CPU) probe(kind sensors.SensorType) Reading {
	v, ok := c.sensors.Probe(kind)
	if !ok {
		return Reading{}
	}
	return Reading{Value: v, OK: true}
}

// Snapshot возвращает последний снимок
func (c *CPU) Snapshot() CPUSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Subscribe возвращает канал снимков после каждого опроса
func (c *CPU) Subscribe() <-chan CPUSnapshot {
	return c.hub.Subscribe()
}

// ClearHistory очищает историю загрузки
func (c *CPU) ClearHistory() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history.Reset()
}

// Close освобождает счетчики; повторный вызов ничего не делает
func (c *CPU) Close() error {
	if !c.dispose() {
		return nil
	}
	c.hub.Close()

	return releaseAll(c.sampler, c.usage, c.perf)
}

// countProcesses обходит процессы параллельно; исчезнувшие процессы пропускаются
func countProcesses(ctx context.Context) (ProcessCounts, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return ProcessCounts{}, err
	}

	var alive, threads, handles atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for _, p := range procs {
		p := p
		g.Go(func() error {
			n, err := p.NumThreadsWithContext(gctx)
			if err != nil {
				return nil
			}
			alive.Add(1)
			threads.Add(int64(n))
			if fds, err := p.NumFDsWithContext(gctx); err == nil {
				handles.Add(int64(fds))
			}
			return nil
		})
	}
	_ = g.Wait()

	return ProcessCounts{
		Processes: int(alive.Load()),
		Threads:   int(threads.Load()),
		Handles:   int(handles.Load()),
	}, nil
}
