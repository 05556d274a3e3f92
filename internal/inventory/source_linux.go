//go:build linux

package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jaypipes/ghw"
	"github.com/jaypipes/ghw/pkg/block"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

var (
	blockInfo       = ghw.Block
	memoryInfo      = ghw.Memory
	cpuInfo         = cpu.InfoWithContext
	cpuCounts       = cpu.CountsWithContext
	diskUsage       = disk.UsageWithContext
	swapDevices     = mem.SwapDevicesWithContext
	virtualPrefixes = []string{"loop", "ram", "zram", "dm-", "md"}
)

type ghwSource struct {
	mu    sync.Mutex
	disks map[string]*block.Disk
}

// NewSource возвращает источник инвентаризации на основе ghw и gopsutil
func NewSource() Source {
	return &ghwSource{}
}

func (s *ghwSource) Processors(ctx context.Context) ([]RawProcessor, error) {
	infos, err := cpuInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get CPU info: %w", err)
	}
	if len(infos) == 0 {
		return nil, errors.New("no processor reported")
	}

	physical, err := cpuCounts(ctx, false)
	if err != nil {
		physical = 0
	}
	logical, err := cpuCounts(ctx, true)
	if err != nil {
		logical = len(infos)
	}

	sockets := map[string]struct{}{}
	virt := false
	for _, info := range infos {
		sockets[info.PhysicalID] = struct{}{}
		for _, flag := range info.Flags {
			if flag == "vmx" || flag == "svm" {
				virt = true
			}
		}
	}

	// gopsutil не разбивает ядра по сокетам: делим поровну
	n := uint32(len(sockets))
	out := make([]RawProcessor, 0, n)
	for i := uint32(0); i < n; i++ {
		out = append(out, RawProcessor{
			Name:              infos[0].ModelName,
			Manufacturer:      infos[0].VendorID,
			Cores:             uint32(physical) / n,
			LogicalProcessors: uint32(logical) / n,
			MaxClockMHz:       uint32(infos[0].Mhz),
			L3CacheKB:         uint32(infos[0].CacheSize),
			Virtualization:    &virt,
		})
	}
	return out, nil
}

func (s *ghwSource) MemoryModules(ctx context.Context) ([]RawMemoryModule, error) {
	info, err := memoryInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to get memory info: %w", err)
	}

	out := make([]RawMemoryModule, 0, len(info.Modules))
	for _, m := range info.Modules {
		if m == nil {
			continue
		}
		var capacity uint64
		if m.SizeBytes > 0 {
			capacity = uint64(m.SizeBytes)
		}
		out = append(out, RawMemoryModule{
			Bank:         m.Label,
			Locator:      m.Location,
			Manufacturer: m.Vendor,
			Capacity:     capacity,
		})
	}

	// без DMI модулей нет: считаем всю физическую память одним модулем
	if len(out) == 0 && info.TotalPhysicalBytes > 0 {
		out = append(out, RawMemoryModule{Bank: "System", Capacity: uint64(info.TotalPhysicalBytes)})
	}
	return out, nil
}

func (s *ghwSource) MemorySlots(ctx context.Context) (int, error) {
	return 0, ErrUnsupported
}

func (s *ghwSource) Disks(ctx context.Context) ([]RawDisk, error) {
	info, err := blockInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to get block devices: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	raws, byName := disksFromBlock(info)
	s.disks = byName
	return raws, nil
}

// disksFromBlock переводит описание ghw в сырые записи дисков
func disksFromBlock(info *block.Info) ([]RawDisk, map[string]*block.Disk) {
	byName := make(map[string]*block.Disk)
	var out []RawDisk
	index := uint32(0)
	for _, d := range info.Disks {
		if d == nil || isVirtualDisk(d.Name) {
			continue
		}
		idx := index
		index++
		byName[d.Name] = d

		out = append(out, RawDisk{
			Index:         &idx,
			ID:            d.Name,
			DevicePath:    "/dev/" + d.Name,
			Model:         d.Model,
			Serial:        d.SerialNumber,
			InterfaceType: d.StorageController.String(),
			MediaType:     d.DriveType.String(),
			Size:          d.SizeBytes,
			Partitions:    uint32(len(d.Partitions)),
		})
	}
	return out, byName
}

func isVirtualDisk(name string) bool {
	for _, p := range virtualPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// StorageMedia использует признак вращения из sysfs, который ghw отдает как тип диска
func (s *ghwSource) StorageMedia(ctx context.Context) (map[string]uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disks == nil {
		return nil, errors.New("disks not enumerated")
	}

	out := make(map[string]uint16)
	for name, d := range s.disks {
		switch d.DriveType.String() {
		case "HDD":
			out[name] = MediaCodeHDD
		case "SSD":
			out[name] = MediaCodeSSD
		}
	}
	return out, nil
}

func (s *ghwSource) Volumes(ctx context.Context, raw RawDisk) ([]RawVolume, error) {
	s.mu.Lock()
	d, ok := s.disks[raw.ID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("disk %s not enumerated", raw.ID)
	}

	var out []RawVolume
	var errs []error
	for _, p := range d.Partitions {
		if p == nil || p.MountPoint == "" {
			continue
		}
		vol := RawVolume{Name: p.MountPoint, Label: p.Label, FileSystem: p.Type, Size: p.SizeBytes}
		usage, err := diskUsage(ctx, p.MountPoint)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.MountPoint, err))
		} else {
			vol.Size = usage.Total
			vol.Free = usage.Free
			if vol.FileSystem == "" {
				vol.FileSystem = usage.Fstype
			}
		}
		out = append(out, vol)
	}
	return out, errors.Join(errs...)
}

func (s *ghwSource) PageFiles(ctx context.Context) ([]string, error) {
	devices, err := swapDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get swap devices: %w", err)
	}

	out := make([]string, 0, len(devices))
	for _, d := range devices {
		if d != nil {
			out = append(out, d.Name)
		}
	}
	return out, nil
}

func (s *ghwSource) SystemVolume() string { return "/" }

func (s *ghwSource) LiveClockMHz(ctx context.Context) (float64, error) {
	infos, err := cpuInfo(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get CPU info: %w", err)
	}
	if len(infos) == 0 {
		return 0, errors.New("no processor reported")
	}

	var sum float64
	for _, info := range infos {
		sum += info.Mhz
	}
	return sum / float64(len(infos)), nil
}

func (s *ghwSource) SMART(ctx context.Context, d DiskRecord) (SmartData, error) {
	return SmartData{}, ErrUnsupported
}
