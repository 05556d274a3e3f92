package sensors

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ErrClosed дерево датчиков уже освобождено
var ErrClosed = errors.New("sensor probe closed")

var (
	powerKeywords       = []string{"Package", "CPU Package", "CPU Cores"}
	voltageKeywords     = []string{"Core", "CPU", "VID"}
	temperatureKeywords = []string{"Package", "Tctl", "Tdie", "Core"}
	boardCPUKeywords    = []string{"CPU", "Processor"}
)

// Probe выбирает показания температуры, мощности и напряжения процессора.
// Probe единолично владеет деревом датчиков и освобождает его один раз.
type Probe struct {
	tree   Tree
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// NewProbe создает пробу поверх дерева датчиков
func NewProbe(tree Tree, logger *zap.Logger) *Probe {
	return &Probe{
		tree:   tree,
		logger: logger.Named("sensors"),
	}
}

// Update перечитывает дерево датчиков
func (p *Probe) Update(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	return p.tree.Update(ctx)
}

// Probe возвращает значение датчика нужного типа; found=false, если датчика нет
func (p *Probe) Probe(kind SensorType) (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, false
	}

	hw := p.tree.Hardware()
	switch kind {
	case TypePower:
		return pick(collect(hw, KindCPU, TypePower), powerKeywords)
	case TypeVoltage:
		return pick(collect(hw, KindCPU, TypeVoltage), voltageKeywords)
	case TypeTemperature:
		if v, ok := pick(collect(hw, KindCPU, TypeTemperature), temperatureKeywords); ok {
			return v, true
		}
		board := append(collect(hw, KindMotherboard, TypeTemperature), collect(hw, KindSuperIO, TypeTemperature)...)
		return matchKeyword(board, boardCPUKeywords)
	}

	return 0, false
}

// Close освобождает дерево датчиков; повторный вызов ничего не делает
func (p *Probe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.tree.Close()
}

// collect собирает датчики типа st у компонентов класса kind и всех их подкомпонентов
func collect(hw []Hardware, kind HardwareKind, st SensorType) []Sensor {
	var out []Sensor
	var walk func(h Hardware, inside bool)
	walk = func(h Hardware, inside bool) {
		inside = inside || h.Kind == kind
		if inside {
			for _, s := range h.Sensors {
				if s.Type == st {
					out = append(out, s)
				}
			}
		}
		for _, sub := range h.Sub {
			walk(sub, inside)
		}
	}
	for _, h := range hw {
		walk(h, false)
	}
	return out
}

// pick сначала ищет датчик по ключевым словам, затем берет первый положительный
func pick(sensors []Sensor, keywords []string) (float64, bool) {
	if v, ok := matchKeyword(sensors, keywords); ok {
		return v, true
	}
	for _, s := range sensors {
		if s.Value != nil && *s.Value > 0 {
			return *s.Value, true
		}
	}
	return 0, false
}

func matchKeyword(sensors []Sensor, keywords []string) (float64, bool) {
	for _, kw := range keywords {
		for _, s := range sensors {
			if s.Value == nil || *s.Value <= 0 {
				continue
			}
			if strings.Contains(strings.ToLower(s.Name), strings.ToLower(kw)) {
				return *s.Value, true
			}
		}
	}
	return 0, false
}
