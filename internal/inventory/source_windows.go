//go:build windows

package inventory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/yusufpapurcu/wmi"
)

const (
	storageNamespace = `root\Microsoft\Windows\Storage`
	smartNamespace   = `root\WMI`
)

type win32Processor struct {
	Name                          string
	Manufacturer                  string
	NumberOfCores                 uint32
	NumberOfLogicalProcessors     uint32
	MaxClockSpeed                 uint32
	CurrentClockSpeed             uint32
	L2CacheSize                   *uint32
	L3CacheSize                   *uint32
	VirtualizationFirmwareEnabled *bool
}

type win32PhysicalMemory struct {
	BankLabel     *string
	DeviceLocator *string
	Manufacturer  *string
	PartNumber    *string
	Capacity      uint64
	Speed         *uint32
	FormFactor    uint16
}

type win32PhysicalMemoryArray struct {
	MemoryDevices uint32
}

type win32DiskDrive struct {
	Index         *uint32
	DeviceID      string
	PNPDeviceID   *string
	Model         *string
	SerialNumber  *string
	InterfaceType *string
	MediaType     *string
	Size          *uint64
	Partitions    *uint32
}

type win32DiskPartition struct {
	DeviceID string
}

type win32LogicalDisk struct {
	DeviceID   string
	VolumeName *string
	FileSystem *string
	Size       *uint64
	FreeSpace  *uint64
}

type msftPhysicalDisk struct {
	DeviceId  string
	MediaType *uint16
}

type win32PageFileUsage struct {
	Name string
}

type failurePredictStatus struct {
	InstanceName   string
	PredictFailure bool
}

type failurePredictData struct {
	InstanceName   string
	VendorSpecific []uint8
}

type wmiSource struct{}

// NewSource возвращает источник инвентаризации на основе WMI
func NewSource() Source {
	return wmiSource{}
}

// query выполняет WQL-запрос. Несовпадение типов полей (NULL в WMI)
// не считается ошибкой: остальные поля уже заполнены.
func query(ctx context.Context, q string, dst interface{}, namespace ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var err error
	if len(namespace) > 0 {
		err = wmi.QueryNamespace(q, dst, namespace[0])
	} else {
		err = wmi.Query(q, dst)
	}

	var mismatch *wmi.ErrFieldMismatch
	if errors.As(err, &mismatch) {
		return nil
	}
	return err
}

func (wmiSource) Processors(ctx context.Context) ([]RawProcessor, error) {
	var dst []win32Processor
	if err := query(ctx, "SELECT Name, Manufacturer, NumberOfCores, NumberOfLogicalProcessors, MaxClockSpeed, CurrentClockSpeed, L2CacheSize, L3CacheSize, VirtualizationFirmwareEnabled FROM Win32_Processor", &dst); err != nil {
		return nil, fmt.Errorf("failed to query Win32_Processor: %w", err)
	}

	out := make([]RawProcessor, 0, len(dst))
	for _, p := range dst {
		out = append(out, RawProcessor{
			Name:              p.Name,
			Manufacturer:      p.Manufacturer,
			Cores:             p.NumberOfCores,
			LogicalProcessors: p.NumberOfLogicalProcessors,
			MaxClockMHz:       p.MaxClockSpeed,
			L2CacheKB:         deref(p.L2CacheSize),
			L3CacheKB:         deref(p.L3CacheSize),
			Virtualization:    p.VirtualizationFirmwareEnabled,
		})
	}
	return out, nil
}

func (wmiSource) MemoryModules(ctx context.Context) ([]RawMemoryModule, error) {
	var dst []win32PhysicalMemory
	if err := query(ctx, "SELECT BankLabel, DeviceLocator, Manufacturer, PartNumber, Capacity, Speed, FormFactor FROM Win32_PhysicalMemory", &dst); err != nil {
		return nil, fmt.Errorf("failed to query Win32_PhysicalMemory: %w", err)
	}

	out := make([]RawMemoryModule, 0, len(dst))
	for _, m := range dst {
		out = append(out, RawMemoryModule{
			Bank:         deref(m.BankLabel),
			Locator:      deref(m.DeviceLocator),
			Manufacturer: deref(m.Manufacturer),
			PartNumber:   deref(m.PartNumber),
			Capacity:     m.Capacity,
			Speed:        m.Speed,
			FormFactor:   m.FormFactor,
		})
	}
	return out, nil
}

func (wmiSource) MemorySlots(ctx context.Context) (int, error) {
	var dst []win32PhysicalMemoryArray
	if err := query(ctx, "SELECT MemoryDevices FROM Win32_PhysicalMemoryArray", &dst); err != nil {
		return 0, fmt.Errorf("failed to query Win32_PhysicalMemoryArray: %w", err)
	}

	total := 0
	for _, a := range dst {
		total += int(a.MemoryDevices)
	}
	return total, nil
}

func (wmiSource) Disks(ctx context.Context) ([]RawDisk, error) {
	var dst []win32DiskDrive
	if err := query(ctx, "SELECT Index, DeviceID, PNPDeviceID, Model, SerialNumber, InterfaceType, MediaType, Size, Partitions FROM Win32_DiskDrive", &dst); err != nil {
		return nil, fmt.Errorf("failed to query Win32_DiskDrive: %w", err)
	}

	out := make([]RawDisk, 0, len(dst))
	for _, d := range dst {
		out = append(out, RawDisk{
			Index:         d.Index,
			DevicePath:    d.DeviceID,
			PNPDeviceID:   deref(d.PNPDeviceID),
			Model:         deref(d.Model),
			Serial:        deref(d.SerialNumber),
			InterfaceType: deref(d.InterfaceType),
			MediaType:     deref(d.MediaType),
			Size:          deref(d.Size),
			Partitions:    deref(d.Partitions),
		})
	}
	return out, nil
}

func (wmiSource) StorageMedia(ctx context.Context) (map[string]uint16, error) {
	var dst []msftPhysicalDisk
	if err := query(ctx, "SELECT DeviceId, MediaType FROM MSFT_PhysicalDisk", &dst, storageNamespace); err != nil {
		return nil, fmt.Errorf("failed to query MSFT_PhysicalDisk: %w", err)
	}

	out := make(map[string]uint16, len(dst))
	for _, d := range dst {
		if d.MediaType != nil {
			out[d.DeviceId] = *d.MediaType
		}
	}
	return out, nil
}

func (wmiSource) Volumes(ctx context.Context, disk RawDisk) ([]RawVolume, error) {
	var partitions []win32DiskPartition
	q := fmt.Sprintf("ASSOCIATORS OF {Win32_DiskDrive.DeviceID='%s'} WHERE AssocClass = Win32_DiskDriveToDiskPartition", escapeWQL(disk.DevicePath))
	if err := query(ctx, q, &partitions); err != nil {
		return nil, fmt.Errorf("failed to query partitions of %s: %w", disk.DevicePath, err)
	}

	var out []RawVolume
	for _, p := range partitions {
		var logical []win32LogicalDisk
		q := fmt.Sprintf("ASSOCIATORS OF {Win32_DiskPartition.DeviceID='%s'} WHERE AssocClass = Win32_LogicalDiskToPartition", escapeWQL(p.DeviceID))
		if err := query(ctx, q, &logical); err != nil {
			return out, fmt.Errorf("failed to query volumes of %s: %w", p.DeviceID, err)
		}
		for _, l := range logical {
			out = append(out, RawVolume{
				Name:       l.DeviceID,
				Label:      deref(l.VolumeName),
				FileSystem: deref(l.FileSystem),
				Size:       deref(l.Size),
				Free:       deref(l.FreeSpace),
			})
		}
	}
	return out, nil
}

func (wmiSource) PageFiles(ctx context.Context) ([]string, error) {
	var dst []win32PageFileUsage
	if err := query(ctx, "SELECT Name FROM Win32_PageFileUsage", &dst); err != nil {
		return nil, fmt.Errorf("failed to query Win32_PageFileUsage: %w", err)
	}

	out := make([]string, 0, len(dst))
	for _, p := range dst {
		out = append(out, p.Name)
	}
	return out, nil
}

func (wmiSource) SystemVolume() string {
	if drive := os.Getenv("SystemDrive"); drive != "" {
		return drive
	}
	return "C:"
}

func (wmiSource) LiveClockMHz(ctx context.Context) (float64, error) {
	var dst []win32Processor
	if err := query(ctx, "SELECT CurrentClockSpeed FROM Win32_Processor", &dst); err != nil {
		return 0, fmt.Errorf("failed to query clock speed: %w", err)
	}
	if len(dst) == 0 {
		return 0, errors.New("no processor reported")
	}
	return float64(dst[0].CurrentClockSpeed), nil
}

func (wmiSource) SMART(ctx context.Context, disk DiskRecord) (SmartData, error) {
	if disk.PNPDeviceID == "" {
		return SmartData{}, ErrUnsupported
	}
	var out SmartData

	var status []failurePredictStatus
	if err := query(ctx, "SELECT InstanceName, PredictFailure FROM MSStorageDriver_FailurePredictStatus", &status, smartNamespace); err != nil {
		return out, fmt.Errorf("failed to query SMART status: %w", err)
	}
	for _, s := range status {
		if matchesInstance(s.InstanceName, disk.PNPDeviceID) {
			failing := s.PredictFailure
			out.PredictFailure = &failing
			break
		}
	}

	var data []failurePredictData
	if err := query(ctx, "SELECT InstanceName, VendorSpecific FROM MSStorageDriver_FailurePredictData", &data, smartNamespace); err == nil {
		for _, d := range data {
			if matchesInstance(d.InstanceName, disk.PNPDeviceID) {
				out.VendorSpecific = d.VendorSpecific
				break
			}
		}
	}

	return out, nil
}

// matchesInstance сравнивает имя экземпляра WMI с PNP-идентификатором диска
func matchesInstance(instance, pnp string) bool {
	return strings.Contains(strings.ToUpper(instance), strings.ToUpper(pnp))
}

func escapeWQL(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
