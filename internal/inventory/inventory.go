package inventory

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Inventory выполняет однократную инвентаризацию оборудования
type Inventory struct {
	source Source
	logger *zap.Logger
}

// New создает инвентаризацию поверх источника ОС
func New(source Source, logger *zap.Logger) *Inventory {
	return &Inventory{
		source: source,
		logger: logger.Named("inventory"),
	}
}

// Enumerate перечисляет процессор, память и диски. Ошибка одного устройства
// попадает в Skipped; ошибка возвращается, только если недоступен весь источник.
func (i *Inventory) Enumerate(ctx context.Context) (*Batch, error) {
	batch := &Batch{}
	var failures []error

	if err := i.enumerateProcessor(ctx, batch); err != nil {
		failures = append(failures, err)
	}
	if err := i.enumerateMemory(ctx, batch); err != nil {
		failures = append(failures, err)
	}
	if err := i.enumerateDisks(ctx, batch); err != nil {
		failures = append(failures, err)
	}

	if len(failures) == 3 {
		return nil, fmt.Errorf("inventory source unavailable: %w", errors.Join(failures...))
	}

	for _, s := range batch.Skipped {
		i.logger.Warn("Inventory item skipped",
			zap.String("kind", s.Kind),
			zap.String("id", s.ID),
			zap.String("reason", s.Reason))
	}

	i.logger.Debug("Inventory enumerated",
		zap.Int("disks", len(batch.Disks)),
		zap.Int("memory_modules", len(batch.Memory.Modules)),
		zap.Int("skipped", len(batch.Skipped)))

	return batch, nil
}

// LiveClockMHz запрашивает текущую частоту процессора
func (i *Inventory) LiveClockMHz(ctx context.Context) (float64, error) {
	return i.source.LiveClockMHz(ctx)
}

func (i *Inventory) enumerateProcessor(ctx context.Context, batch *Batch) error {
	raws, err := i.source.Processors(ctx)
	if err != nil {
		batch.Skipped = append(batch.Skipped, Skip{Kind: "processor", Reason: err.Error()})
		return err
	}

	rec, err := newProcessorRecord(raws)
	if err != nil {
		batch.Skipped = append(batch.Skipped, Skip{Kind: "processor", Reason: err.Error()})
		return nil
	}
	batch.Processor = rec

	return nil
}

func (i *Inventory) enumerateMemory(ctx context.Context, batch *Batch) error {
	raws, err := i.source.MemoryModules(ctx)
	if err != nil {
		batch.Skipped = append(batch.Skipped, Skip{Kind: "memory", Reason: err.Error()})
		return err
	}

	for idx, raw := range raws {
		mod, err := newMemoryModuleRecord(raw)
		if err != nil {
			batch.Skipped = append(batch.Skipped, Skip{Kind: "memory", ID: strconv.Itoa(idx), Reason: err.Error()})
			continue
		}
		batch.Memory.Modules = append(batch.Memory.Modules, mod)
		batch.Memory.InstalledBytes += mod.CapacityBytes
	}

	if len(batch.Memory.Modules) > 0 {
		first := batch.Memory.Modules[0]
		batch.Memory.SpeedMHz = first.SpeedMHz
		batch.Memory.FormFactor = first.FormFactor
	}

	slots, err := i.source.MemorySlots(ctx)
	if err != nil || slots < len(batch.Memory.Modules) {
		slots = len(batch.Memory.Modules)
	}
	batch.Memory.TotalSlots = slots

	return nil
}

func (i *Inventory) enumerateDisks(ctx context.Context, batch *Batch) error {
	raws, err := i.source.Disks(ctx)
	if err != nil {
		batch.Skipped = append(batch.Skipped, Skip{Kind: "disk", Reason: err.Error()})
		return err
	}

	media, err := i.source.StorageMedia(ctx)
	if err != nil {
		i.logger.Debug("Storage management media types unavailable", zap.Error(err))
		media = nil
	}

	system := i.source.SystemVolume()
	for _, raw := range raws {
		rec, err := newDiskRecord(raw)
		if err != nil {
			batch.Skipped = append(batch.Skipped, Skip{Kind: "disk", ID: raw.DevicePath, Reason: err.Error()})
			continue
		}

		code, hasCode := media[rec.ID]
		rec.Type = ClassifyDisk(code, hasCode, raw.MediaType, raw.Model, raw.InterfaceType)

		volumes, err := i.source.Volumes(ctx, raw)
		if err != nil {
			batch.Skipped = append(batch.Skipped, Skip{Kind: "volume", ID: rec.ID, Reason: err.Error()})
		}
		for _, rv := range volumes {
			vol := VolumeRecord{Name: rv.Name, Label: rv.Label, FileSystem: rv.FileSystem}
			vol.Refresh(rv.Size, rv.Free)
			rec.Volumes = append(rec.Volumes, vol)
			if strings.EqualFold(rv.Name, system) {
				rec.IsSystemDisk = true
			}
		}

		batch.Disks = append(batch.Disks, rec)
	}

	sort.SliceStable(batch.Disks, func(a, b int) bool { return batch.Disks[a].Index < batch.Disks[b].Index })

	pageFiles, err := i.source.PageFiles(ctx)
	if err != nil {
		i.logger.Debug("Page file query failed", zap.Error(err))
	}
	markPageFiles(batch.Disks, pageFiles)

	return nil
}

// ClassifyDisk определяет тип диска: сначала по коду современного API,
// затем по строковым признакам. Ошибкой не завершается никогда.
func ClassifyDisk(code uint16, hasCode bool, mediaType, model, iface string) DiskType {
	if hasCode {
		switch code {
		case MediaCodeHDD:
			return DiskHDD
		case MediaCodeSSD:
			return DiskSSD
		case MediaCodeSCM:
			return DiskSCM
		}
	}

	switch {
	case containsFold(mediaType, "SSD"), containsFold(model, "SSD"):
		return DiskSSD
	case containsFold(iface, "NVMe"), containsFold(model, "NVMe"):
		return DiskSSD
	case containsFold(mediaType, "Fixed hard disk"):
		return DiskHDD
	}

	return DiskUnknown
}

func newProcessorRecord(raws []RawProcessor) (*ProcessorRecord, error) {
	if len(raws) == 0 {
		return nil, errors.New("no processor reported")
	}

	first := raws[0]
	if strings.TrimSpace(first.Name) == "" {
		return nil, errors.New("processor name is empty")
	}

	rec := &ProcessorRecord{
		Name:         strings.TrimSpace(first.Name),
		Manufacturer: strings.TrimSpace(first.Manufacturer),
		Sockets:      len(raws),
		BaseClockMHz: float64(first.MaxClockMHz),
		L2CacheKB:    uint64(first.L2CacheKB),
		L3CacheKB:    uint64(first.L3CacheKB),
	}
	for _, raw := range raws {
		rec.Cores += int(raw.Cores)
		rec.LogicalProcessors += int(raw.LogicalProcessors)
		if raw.Virtualization != nil && *raw.Virtualization {
			rec.Virtualization = true
		}
	}

	return rec, nil
}

func newMemoryModuleRecord(raw RawMemoryModule) (MemoryModuleRecord, error) {
	if raw.Capacity == 0 {
		return MemoryModuleRecord{}, errors.New("module capacity is zero")
	}

	bank := strings.TrimSpace(raw.Bank)
	if bank == "" {
		bank = strings.TrimSpace(raw.Locator)
	}

	mod := MemoryModuleRecord{
		Bank:          bank,
		Manufacturer:  strings.TrimSpace(raw.Manufacturer),
		PartNumber:    strings.TrimSpace(raw.PartNumber),
		CapacityBytes: raw.Capacity,
		FormFactor:    FormFactorName(raw.FormFactor),
	}
	if raw.Speed != nil {
		mod.SpeedMHz = int(*raw.Speed)
	}

	return mod, nil
}

func newDiskRecord(raw RawDisk) (DiskRecord, error) {
	if raw.Index == nil {
		return DiskRecord{}, errors.New("disk index is missing")
	}

	id := raw.ID
	if id == "" {
		id = strconv.FormatUint(uint64(*raw.Index), 10)
	}

	return DiskRecord{
		Index:       int(*raw.Index),
		ID:          id,
		DevicePath:  raw.DevicePath,
		PNPDeviceID: raw.PNPDeviceID,
		Model:       strings.TrimSpace(raw.Model),
		Serial:      strings.TrimSpace(raw.Serial),
		Interface:   raw.InterfaceType,
		MediaType:   raw.MediaType,
		SizeBytes:   raw.Size,
		Partitions:  int(raw.Partitions),
	}, nil
}

// markPageFiles отмечает диски, на которых лежат файлы подкачки.
// Файл относится к тому с самым длинным совпадающим префиксом,
// устройство подкачки относится к диску по имени раздела.
func markPageFiles(disks []DiskRecord, pageFiles []string) {
	for _, pf := range pageFiles {
		if dev, ok := strings.CutPrefix(pf, "/dev/"); ok {
			best, bestLen := -1, 0
			for i, d := range disks {
				if strings.HasPrefix(dev, d.ID) && len(d.ID) > bestLen {
					best, bestLen = i, len(d.ID)
				}
			}
			if best >= 0 {
				disks[best].HasPageFile = true
			}
			continue
		}

		target := strings.ToUpper(filepath.ToSlash(pf))
		best, bestLen := -1, 0
		for i, d := range disks {
			for _, v := range d.Volumes {
				name := strings.ToUpper(filepath.ToSlash(v.Name))
				if name != "" && strings.HasPrefix(target, name) && len(name) > bestLen {
					best, bestLen = i, len(name)
				}
			}
		}
		if best >= 0 {
			disks[best].HasPageFile = true
		}
	}
}
