//go:build windows

package monitor

import (
	"context"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// readMemoryStatus читает состояние памяти через GlobalMemoryStatusEx
func readMemoryStatus(ctx context.Context) (memoryStatus, error) {
	if err := ctx.Err(); err != nil {
		return memoryStatus{}, err
	}

	var ms windows.MemoryStatusEx
	ms.Length = uint32(unsafe.Sizeof(ms))
	if err := windows.GlobalMemoryStatusEx(&ms); err != nil {
		return memoryStatus{}, fmt.Errorf("GlobalMemoryStatusEx: %w", err)
	}

	return memoryStatus{
		Total:        ms.TotalPhys,
		Available:    ms.AvailPhys,
		UsagePercent: float64(ms.MemoryLoad),
		Committed:    ms.TotalPageFile - ms.AvailPageFile,
		CommitLimit:  ms.TotalPageFile,
	}, nil
}
