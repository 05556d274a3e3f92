package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"telemetry_mon/internal/counters"
	"telemetry_mon/internal/history"
	"telemetry_mon/internal/inventory"
)

// memoryStatus ответ системного вызова состояния памяти
type memoryStatus struct {
	Total        uint64
	Available    uint64
	UsagePercent float64
	Committed    uint64
	CommitLimit  uint64
}

var memoryStatusFunc = readMemoryStatus

// MemorySnapshot снимок состояния памяти за один опрос
type MemorySnapshot struct {
	TotalBytes       uint64  `json:"total_bytes"`
	AvailableBytes   uint64  `json:"available_bytes"`
	UsedBytes        uint64  `json:"used_bytes"`
	UsagePercent     float64 `json:"usage_percent"`
	CommittedBytes   uint64  `json:"committed_bytes"`
	CommitLimitBytes uint64  `json:"commit_limit_bytes"`
	StatusOK         bool    `json:"status_ok"`

	Cached       Reading `json:"cached"`
	PagedPool    Reading `json:"paged_pool"`
	NonPagedPool Reading `json:"non_paged_pool"`

	InstalledBytes        uint64 `json:"installed_bytes"`
	HardwareReservedBytes uint64 `json:"hardware_reserved_bytes"`
	SpeedMHz              int    `json:"speed_mhz"`
	FormFactor            string `json:"form_factor"`
	SlotsUsed             int    `json:"slots_used"`
	TotalSlots            int    `json:"total_slots"`

	History   []float64 `json:"history"`
	Timestamp time.Time `json:"timestamp"`
}

// Memory агрегатор использования памяти
type Memory struct {
	lifecycle

	sampler *counters.Sampler
	logger  *zap.Logger

	record        inventory.MemoryRecord
	reserved      uint64
	reservedKnown bool
	cache    *counters.Handle
	paged    *counters.Handle
	nonpaged *counters.Handle

	mu      sync.RWMutex
	history *history.Buffer
	snap    MemorySnapshot

	hub Hub[MemorySnapshot]
}

// NewMemory открывает счетчики кэша и пулов и вычисляет зарезервированную память
func NewMemory(ctx context.Context, sampler *counters.Sampler, record inventory.MemoryRecord,
	historySize int, logger *zap.Logger) *Memory {
	m := &Memory{
		sampler: sampler,
		logger:  logger.Named("memory"),
		record:  record,
		history: history.New(historySize),
	}

	m.cache = m.open(ctx, counters.MemoryCacheBytes)
	m.paged = m.open(ctx, counters.MemoryPoolPaged)
	m.nonpaged = m.open(ctx, counters.MemoryPoolNonpaged)

	if status, err := memoryStatusFunc(ctx); err == nil {
		m.setReserved(status.Total)
	} else {
		m.logger.Warn("Memory status unavailable", zap.Error(err))
	}

	m.snap = m.staticSnapshot()
	m.ready()

	return m
}

func (m *Memory) open(ctx context.Context, counter string) *counters.Handle {
	h, err := m.sampler.Open(ctx, counters.CategoryMemory, counter, "")
	if err != nil {
		m.logger.Debug("Memory counter unavailable", zap.String("counter", counter), zap.Error(err))
		return nil
	}
	return h
}

// setReserved вычисляет зарезервированную память по первому успешному запросу состояния
func (m *Memory) setReserved(visible uint64) {
	if m.reservedKnown {
		return
	}
	m.reserved = m.hardwareReserved(visible)
	m.reservedKnown = true
}

// hardwareReserved установленная минус видимая ОС память, не меньше нуля
func (m *Memory) hardwareReserved(visible uint64) uint64 {
	installed := m.record.InstalledBytes
	if installed == 0 {
		return 0
	}
	if installed < visible {
		m.logger.Warn("Installed memory is less than visible memory, hardware reserved set to zero",
			zap.Uint64("installed", installed),
			zap.Uint64("visible", visible))
		return 0
	}
	return installed - visible
}

func (m *Memory) staticSnapshot() MemorySnapshot {
	return MemorySnapshot{
		InstalledBytes:        m.record.InstalledBytes,
		HardwareReservedBytes: m.reserved,
		SpeedMHz:              m.record.SpeedMHz,
		FormFactor:            m.record.FormFactor,
		SlotsUsed:             m.record.SlotsUsed(),
		TotalSlots:            m.record.TotalSlots,
	}
}

// Refresh выполняет один опрос
func (m *Memory) Refresh(ctx context.Context) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	var failed []string
	snap := m.staticSnapshot()
	snap.Timestamp = time.Now()

	status, err := memoryStatusFunc(ctx)
	if err == nil {
		m.setReserved(status.Total)
		snap.HardwareReservedBytes = m.reserved
		snap.StatusOK = true
		snap.TotalBytes = status.Total
		snap.AvailableBytes = status.Available
		if status.Available < status.Total {
			snap.UsedBytes = status.Total - status.Available
		}
		snap.UsagePercent = clamp(status.UsagePercent, 0, 100)
		snap.CommittedBytes = status.Committed
		snap.CommitLimitBytes = status.CommitLimit
	} else {
		failed = append(failed, "status")
	}

	handles := []*counters.Handle{m.cache, m.paged, m.nonpaged}
	readings := m.sampler.SampleAll(ctx, handles)
	for i, r := range readings {
		if handles[i] != nil && !r.OK {
			failed = append(failed, handles[i].Path().Counter)
		}
	}
	snap.Cached = counterReading(m.cache, readings[0])
	snap.PagedPool = counterReading(m.paged, readings[1])
	snap.NonPagedPool = counterReading(m.nonpaged, readings[2])

	m.mu.Lock()
	if snap.StatusOK {
		m.history.Push(snap.UsagePercent)
	}
	snap.History = m.history.Values()
	m.snap = snap
	m.mu.Unlock()

	if len(failed) > 0 {
		m.logger.Warn("Memory sampling incomplete", zap.Strings("failed", failed))
	}
	m.hub.Publish(snap)

	return nil
}

// Snapshot возвращает последний снимок
func (m *Memory) Snapshot() MemorySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// Subscribe возвращает канал снимков после каждого опроса
func (m *Memory) Subscribe() <-chan MemorySnapshot {
	return m.hub.Subscribe()
}

// ClearHistory очищает историю использования
func (m *Memory) ClearHistory() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history.Reset()
}

// Close освобождает счетчики; повторный вызов ничего не делает
func (m *Memory) Close() error {
	if !m.dispose() {
		return nil
	}
	m.hub.Close()

	return releaseAll(m.sampler, m.cache, m.paged, m.nonpaged)
}

// counterReading значение счетчика; отсутствующий дескриптор дает "недоступно".
// После сбоя чтения остается предыдущее значение.
func counterReading(h *counters.Handle, r counters.Reading) Reading {
	if h == nil {
		return Reading{}
	}
	if r.OK {
		return Reading{Value: r.Value, OK: true}
	}
	if v, ok := h.Last(); ok {
		return Reading{Value: v, OK: true}
	}
	return Reading{}
}
