package inventory

import (
	"context"
	"errors"
)

// ErrUnsupported запрос недоступен на этой платформе
var ErrUnsupported = errors.New("inventory query not supported on this platform")

// Коды типа носителя современного API управления хранилищем
const (
	MediaCodeHDD uint16 = 3
	MediaCodeSSD uint16 = 4
	MediaCodeSCM uint16 = 5
)

// RawProcessor сырые поля процессора из интерфейса инвентаризации
type RawProcessor struct {
	Name              string
	Manufacturer      string
	Cores             uint32
	LogicalProcessors uint32
	MaxClockMHz       uint32
	L2CacheKB         uint32
	L3CacheKB         uint32
	Virtualization    *bool
}

// RawMemoryModule сырые поля модуля памяти
type RawMemoryModule struct {
	Bank         string
	Locator      string
	Manufacturer string
	PartNumber   string
	Capacity     uint64
	Speed        *uint32
	FormFactor   uint16
}

// RawDisk сырые поля физического диска. Index отсутствует у
// некорректных записей, такие диски пропускаются.
type RawDisk struct {
	Index         *uint32
	ID            string
	DevicePath    string
	PNPDeviceID   string
	Model         string
	Serial        string
	InterfaceType string
	MediaType     string
	Size          uint64
	Partitions    uint32
}

// RawVolume сырые поля логического тома
type RawVolume struct {
	Name       string
	Label      string
	FileSystem string
	Size       uint64
	Free       uint64
}

// SmartData данные SMART одного диска
type SmartData struct {
	PredictFailure *bool
	VendorSpecific []byte
}

// Source интерфейс инвентаризации ОС
type Source interface {
	Processors(ctx context.Context) ([]RawProcessor, error)
	MemoryModules(ctx context.Context) ([]RawMemoryModule, error)
	MemorySlots(ctx context.Context) (int, error)
	Disks(ctx context.Context) ([]RawDisk, error)
	// StorageMedia возвращает коды типа носителя по идентификатору диска
	StorageMedia(ctx context.Context) (map[string]uint16, error)
	// Volumes обходит граф связей диск -> раздел -> логический том
	Volumes(ctx context.Context, disk RawDisk) ([]RawVolume, error)
	// PageFiles возвращает пути файлов и устройств подкачки
	PageFiles(ctx context.Context) ([]string, error)
	// SystemVolume имя системного тома
	SystemVolume() string
	// LiveClockMHz текущая частота процессора
	LiveClockMHz(ctx context.Context) (float64, error)
	SMART(ctx context.Context, disk DiskRecord) (SmartData, error)
}
