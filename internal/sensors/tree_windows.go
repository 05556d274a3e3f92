//go:build windows

package sensors

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yusufpapurcu/wmi"
)

// Пространства имен WMI провайдеров мониторинга оборудования
var namespaces = []string{`root\LibreHardwareMonitor`, `root\OpenHardwareMonitor`}

type wmiHardware struct {
	Identifier   string
	Name         string
	HardwareType string
	Parent       string
}

type wmiSensor struct {
	Identifier string
	Name       string
	SensorType string
	Parent     string
	Value      float32
}

type wmiTree struct {
	mu        sync.Mutex
	namespace string
	hardware  []wmiHardware
	sensors   []wmiSensor
}

// NewTree находит пространство имен провайдера и считывает список оборудования.
// Без запущенного провайдера дерево пустое, и проба ничего не находит.
func NewTree(ctx context.Context) (Tree, error) {
	var errs []error
	for _, ns := range namespaces {
		var hw []wmiHardware
		if err := queryWMI(ctx, "SELECT Identifier, Name, HardwareType, Parent FROM Hardware", &hw, ns); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ns, err))
			continue
		}
		return &wmiTree{namespace: ns, hardware: hw}, nil
	}
	return &wmiTree{}, errors.Join(errs...)
}

func queryWMI(ctx context.Context, q string, dst interface{}, ns string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := wmi.QueryNamespace(q, dst, ns)
	var mismatch *wmi.ErrFieldMismatch
	if errors.As(err, &mismatch) {
		return nil
	}
	return err
}

func (t *wmiTree) Update(ctx context.Context) error {
	t.mu.Lock()
	ns := t.namespace
	t.mu.Unlock()
	if ns == "" {
		return nil
	}

	var sensors []wmiSensor
	if err := queryWMI(ctx, "SELECT Identifier, Name, SensorType, Parent, Value FROM Sensor", &sensors, ns); err != nil {
		return fmt.Errorf("failed to query sensors: %w", err)
	}

	t.mu.Lock()
	t.sensors = sensors
	t.mu.Unlock()
	return nil
}

func (t *wmiTree) Hardware() []Hardware {
	t.mu.Lock()
	defer t.mu.Unlock()

	bySensorParent := make(map[string][]Sensor)
	for _, s := range t.sensors {
		bySensorParent[s.Parent] = append(bySensorParent[s.Parent], Sensor{
			Name:  s.Name,
			Type:  sensorType(s.SensorType),
			Value: value(float64(s.Value)),
		})
	}

	ids := make(map[string]bool, len(t.hardware))
	for _, h := range t.hardware {
		ids[h.Identifier] = true
	}

	var build func(parent string) []Hardware
	build = func(parent string) []Hardware {
		var out []Hardware
		for _, h := range t.hardware {
			isRoot := parent == "" && !ids[h.Parent]
			if !isRoot && (parent == "" || h.Parent != parent) {
				continue
			}
			out = append(out, Hardware{
				Name:    h.Name,
				Kind:    hardwareKind(h.HardwareType),
				Sensors: bySensorParent[h.Identifier],
				Sub:     build(h.Identifier),
			})
		}
		return out
	}
	return build("")
}

func (t *wmiTree) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hardware = nil
	t.sensors = nil
	return nil
}

func hardwareKind(s string) HardwareKind {
	switch s {
	case "Cpu", "CPU":
		return KindCPU
	case "Motherboard", "Mainboard":
		return KindMotherboard
	case "SuperIO":
		return KindSuperIO
	default:
		return KindOther
	}
}

func sensorType(s string) SensorType {
	switch s {
	case "Temperature":
		return TypeTemperature
	case "Power":
		return TypePower
	case "Voltage":
		return TypeVoltage
	default:
		return TypeOther
	}
}
