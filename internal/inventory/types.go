package inventory

import "strings"

// DiskType тип физического накопителя
type DiskType int

const (
	DiskUnknown DiskType = iota
	DiskHDD
	DiskSSD
	DiskSCM
)

func (t DiskType) String() string {
	switch t {
	case DiskHDD:
		return "HDD"
	case DiskSSD:
		return "SSD"
	case DiskSCM:
		return "SCM"
	default:
		return "Unknown"
	}
}

// MarshalText выводит тип диска строкой в JSON
func (t DiskType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// ProcessorRecord описание процессора, неизменяемое после старта
type ProcessorRecord struct {
	Name              string  `json:"name"`
	Manufacturer      string  `json:"manufacturer"`
	Cores             int     `json:"cores"`
	LogicalProcessors int     `json:"logical_processors"`
	Sockets           int     `json:"sockets"`
	BaseClockMHz      float64 `json:"base_clock_mhz"`
	L2CacheKB         uint64  `json:"l2_cache_kb"`
	L3CacheKB         uint64  `json:"l3_cache_kb"`
	Virtualization    bool    `json:"virtualization"`
}

// MemoryModuleRecord один модуль памяти
type MemoryModuleRecord struct {
	Bank          string `json:"bank"`
	Manufacturer  string `json:"manufacturer"`
	PartNumber    string `json:"part_number"`
	CapacityBytes uint64 `json:"capacity_bytes"`
	SpeedMHz      int    `json:"speed_mhz"`
	FormFactor    string `json:"form_factor"`
}

// MemoryRecord сводка по установленной памяти
type MemoryRecord struct {
	Modules        []MemoryModuleRecord `json:"modules"`
	TotalSlots     int                  `json:"total_slots"`
	InstalledBytes uint64               `json:"installed_bytes"`
	SpeedMHz       int                  `json:"speed_mhz"`
	FormFactor     string               `json:"form_factor"`
}

// SlotsUsed количество занятых слотов
func (m MemoryRecord) SlotsUsed() int { return len(m.Modules) }

// VolumeRecord логический том на диске
type VolumeRecord struct {
	Name       string `json:"name"`
	Label      string `json:"label"`
	FileSystem string `json:"file_system"`
	TotalBytes uint64 `json:"total_bytes"`
	FreeBytes  uint64 `json:"free_bytes"`
	UsedBytes  uint64 `json:"used_bytes"`
}

// Refresh обновляет размеры тома; занятое место всегда пересчитывается
func (v *VolumeRecord) Refresh(total, free uint64) {
	if free > total {
		free = total
	}
	v.TotalBytes = total
	v.FreeBytes = free
	v.UsedBytes = total - free
}

// UsagePercent процент занятого места
func (v VolumeRecord) UsagePercent() float64 {
	if v.TotalBytes == 0 {
		return 0
	}
	return float64(v.UsedBytes) / float64(v.TotalBytes) * 100
}

// DiskRecord физический диск
type DiskRecord struct {
	Index        int            `json:"index"`
	ID           string         `json:"id"`
	DevicePath   string         `json:"device_path"`
	PNPDeviceID  string         `json:"pnp_device_id,omitempty"`
	Model        string         `json:"model"`
	Serial       string         `json:"serial"`
	Interface    string         `json:"interface"`
	MediaType    string         `json:"media_type"`
	Type         DiskType       `json:"type"`
	SizeBytes    uint64         `json:"size_bytes"`
	Partitions   int            `json:"partitions"`
	IsSystemDisk bool           `json:"is_system_disk"`
	HasPageFile  bool           `json:"has_page_file"`
	Volumes      []VolumeRecord `json:"volumes"`
}

// FormattedCapacity сумма размеров томов диска
func (d DiskRecord) FormattedCapacity() uint64 {
	var total uint64
	for _, v := range d.Volumes {
		total += v.TotalBytes
	}
	return total
}

// Clone возвращает копию записи с собственным срезом томов
func (d DiskRecord) Clone() DiskRecord {
	out := d
	out.Volumes = append([]VolumeRecord(nil), d.Volumes...)
	return out
}

// Skip элемент, пропущенный при инвентаризации
type Skip struct {
	Kind   string `json:"kind"`
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Batch результат инвентаризации
type Batch struct {
	Processor *ProcessorRecord `json:"processor,omitempty"`
	Memory    MemoryRecord     `json:"memory"`
	Disks     []DiskRecord     `json:"disks"`
	Skipped   []Skip           `json:"skipped,omitempty"`
}

// FormFactorName расшифровывает код форм-фактора модуля памяти
func FormFactorName(code uint16) string {
	switch code {
	case 8:
		return "DIMM"
	case 12:
		return "SODIMM"
	case 13:
		return "RIMM"
	case 0:
		return ""
	default:
		return "Other"
	}
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToUpper(s), strings.ToUpper(substr))
}
