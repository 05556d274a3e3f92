package counters

import "strings"

const (
	// TotalInstance агрегирующий экземпляр счетчика
	TotalInstance = "_Total"

	DefaultInstanceLabel = "PhysicalDrive"
	DefaultSystemDrive   = "C:"
)

// Resolver сопоставляет идентификатор устройства из инвентаризации
// с именем экземпляра в подсистеме счетчиков производительности
type Resolver struct {
	// Label префикс, с которым подсистема счетчиков может называть устройство
	Label string
	// SystemDrive буква системного тома
	SystemDrive string
}

// NewResolver создает резолвер с заданными префиксом и системным томом
func NewResolver(label, systemDrive string) Resolver {
	if label == "" {
		label = DefaultInstanceLabel
	}
	if systemDrive == "" {
		systemDrive = DefaultSystemDrive
	}
	return Resolver{Label: label, SystemDrive: systemDrive}
}

// Resolve ищет экземпляр счетчика для устройства; побеждает первое совпадение.
// Отсутствие совпадения (съемные и виртуальные диски) не является ошибкой.
func (r Resolver) Resolve(id string, instances []string) (string, bool) {
	if id == "" || len(instances) == 0 {
		return "", false
	}

	candidates := []string{
		id,
		id + " ",
		r.Label + id,
		id + " " + r.SystemDrive,
	}
	for _, want := range candidates {
		for _, inst := range instances {
			if inst == want {
				return inst, true
			}
		}
	}

	for _, inst := range instances {
		fields := strings.Fields(inst)
		if len(fields) == 0 || fields[0] == TotalInstance {
			continue
		}
		if fields[0] == id {
			return inst, true
		}
	}

	return "", false
}

// Resolve использует резолвер с настройками по умолчанию
func Resolve(id string, instances []string) (string, bool) {
	return NewResolver("", "").Resolve(id, instances)
}
