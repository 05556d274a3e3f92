//go:build !windows && !linux

package inventory

import "context"

type unsupportedSource struct{}

// NewSource возвращает пустой источник для платформ без инвентаризации
func NewSource() Source {
	return unsupportedSource{}
}

func (unsupportedSource) Processors(context.Context) ([]RawProcessor, error) {
	return nil, ErrUnsupported
}

func (unsupportedSource) MemoryModules(context.Context) ([]RawMemoryModule, error) {
	return nil, ErrUnsupported
}

func (unsupportedSource) MemorySlots(context.Context) (int, error) { return 0, ErrUnsupported }

func (unsupportedSource) Disks(context.Context) ([]RawDisk, error) { return nil, ErrUnsupported }

func (unsupportedSource) StorageMedia(context.Context) (map[string]uint16, error) {
	return nil, ErrUnsupported
}

func (unsupportedSource) Volumes(context.Context, RawDisk) ([]RawVolume, error) {
	return nil, ErrUnsupported
}

func (unsupportedSource) PageFiles(context.Context) ([]string, error) { return nil, ErrUnsupported }

func (unsupportedSource) SystemVolume() string { return "/" }

func (unsupportedSource) LiveClockMHz(context.Context) (float64, error) { return 0, ErrUnsupported }

func (unsupportedSource) SMART(context.Context, DiskRecord) (SmartData, error) {
	return SmartData{}, ErrUnsupported
}
