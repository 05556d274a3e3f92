//go:build !windows

package monitor

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"
)

var virtualMemory = mem.VirtualMemoryWithContext

func readMemoryStatus(ctx context.Context) (memoryStatus, error) {
	vm, err := virtualMemory(ctx)
	if err != nil {
		return memoryStatus{}, fmt.Errorf("failed to read memory status: %w", err)
	}

	return memoryStatus{
		Total:        vm.Total,
		Available:    vm.Available,
		UsagePercent: vm.UsedPercent,
		Committed:    vm.CommittedAS,
		CommitLimit:  vm.CommitLimit,
	}, nil
}
