package sensors

import "context"

// HardwareKind класс аппаратного компонента
type HardwareKind int

const (
	KindOther HardwareKind = iota
	KindCPU
	KindMotherboard
	KindSuperIO
)

// SensorType тип датчика
type SensorType int

const (
	TypeOther SensorType = iota
	TypeTemperature
	TypePower
	TypeVoltage
)

func (t SensorType) String() string {
	switch t {
	case TypeTemperature:
		return "temperature"
	case TypePower:
		return "power"
	case TypeVoltage:
		return "voltage"
	default:
		return "other"
	}
}

// Sensor датчик; Value пуст, если значение не считано
type Sensor struct {
	Name  string
	Type  SensorType
	Value *float64
}

// Hardware компонент дерева датчиков
type Hardware struct {
	Name    string
	Kind    HardwareKind
	Sensors []Sensor
	Sub     []Hardware
}

// Tree дерево датчиков стороннего провайдера мониторинга
type Tree interface {
	// Update перечитывает значения датчиков
	Update(ctx context.Context) error
	// Hardware возвращает компоненты верхнего уровня
	Hardware() []Hardware
	Close() error
}

func value(v float64) *float64 { return &v }
