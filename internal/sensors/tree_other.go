//go:build !windows

package sensors

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v3/host"
)

var (
	hwmonRoot          = "/sys/class/hwmon"
	sensorsTemperature = host.SensorsTemperaturesWithContext

	cpuChips   = []string{"coretemp", "k10temp", "k8temp", "zenpower", "cpu_thermal", "cpu-thermal"}
	boardChips = []string{"nct", "it8", "w83", "f71", "asus", "acpitz", "dell_smm", "thinkpad"}
)

type hwmonTree struct {
	mu       sync.Mutex
	hardware []Hardware
}

// NewTree возвращает дерево датчиков из hwmon. Если чипов нет,
// используются температуры gopsutil без группировки по чипам.
func NewTree(ctx context.Context) (Tree, error) {
	t := &hwmonTree{}
	return t, t.Update(ctx)
}

func (t *hwmonTree) Update(ctx context.Context) error {
	hw, err := readHwmon(hwmonRoot)
	if err != nil || len(hw) == 0 {
		hw, err = readPsutil(ctx)
	}

	t.mu.Lock()
	t.hardware = hw
	t.mu.Unlock()

	return err
}

func (t *hwmonTree) Hardware() []Hardware {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hardware
}

func (t *hwmonTree) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hardware = nil
	return nil
}

// readHwmon читает чипы hwmon; чипы материнской платы становятся
// подкомпонентами общего узла Motherboard
func readHwmon(root string) ([]Hardware, error) {
	dirs, err := filepath.Glob(filepath.Join(root, "hwmon*"))
	if err != nil {
		return nil, err
	}
	sort.Strings(dirs)

	var out []Hardware
	board := Hardware{Name: "Motherboard", Kind: KindMotherboard}
	for _, dir := range dirs {
		name := readString(filepath.Join(dir, "name"))
		if name == "" {
			continue
		}
		chip := Hardware{Name: name, Kind: chipKind(name), Sensors: readChipSensors(dir)}
		if chip.Kind == KindSuperIO {
			board.Sub = append(board.Sub, chip)
			continue
		}
		out = append(out, chip)
	}
	if len(board.Sub) > 0 {
		out = append(out, board)
	}

	return out, nil
}

func readChipSensors(dir string) []Sensor {
	inputs, _ := filepath.Glob(filepath.Join(dir, "*_input"))
	averages, _ := filepath.Glob(filepath.Join(dir, "power*_average"))
	files := append(inputs, averages...)
	sort.Strings(files)

	var out []Sensor
	for _, f := range files {
		base := filepath.Base(f)
		prefix := base[:strings.LastIndex(base, "_")]

		var st SensorType
		var scale float64
		switch {
		case strings.HasPrefix(prefix, "temp"):
			st, scale = TypeTemperature, 1000
		case strings.HasPrefix(prefix, "in"):
			st, scale = TypeVoltage, 1000
		case strings.HasPrefix(prefix, "power"):
			st, scale = TypePower, 1e6
		default:
			continue
		}

		label := readString(filepath.Join(dir, prefix+"_label"))
		if label == "" {
			label = prefix
		}

		s := Sensor{Name: label, Type: st}
		if raw, err := strconv.ParseFloat(readString(f), 64); err == nil {
			s.Value = value(raw / scale)
		}
		out = append(out, s)
	}
	return out
}

// readPsutil строит плоское дерево из температур gopsutil
func readPsutil(ctx context.Context) ([]Hardware, error) {
	temps, err := sensorsTemperature(ctx)
	if len(temps) == 0 {
		return nil, err
	}

	cpu := Hardware{Name: "CPU", Kind: KindCPU}
	other := Hardware{Name: "Other", Kind: KindOther}
	for _, t := range temps {
		s := Sensor{Name: t.SensorKey, Type: TypeTemperature, Value: value(t.Temperature)}
		if chipKind(t.SensorKey) == KindCPU {
			cpu.Sensors = append(cpu.Sensors, s)
		} else {
			other.Sensors = append(other.Sensors, s)
		}
	}

	return []Hardware{cpu, other}, nil
}

func chipKind(name string) HardwareKind {
	name = strings.ToLower(name)
	for _, c := range cpuChips {
		if strings.HasPrefix(name, c) {
			return KindCPU
		}
	}
	for _, c := range boardChips {
		if strings.HasPrefix(name, c) {
			return KindSuperIO
		}
	}
	return KindOther
}

func readString(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
