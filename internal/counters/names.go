package counters

import "fmt"

// Категории и имена счетчиков, которые использует монитор
const (
	CategoryProcessor     = "Processor"
	CategoryProcessorInfo = "Processor Information"
	CategoryPhysicalDisk  = "PhysicalDisk"
	CategoryMemory        = "Memory"

	ProcessorTime        = "% Processor Time"
	ProcessorPerformance = "% Processor Performance"

	DiskReadBytes   = "Disk Read Bytes/sec"
	DiskWriteBytes  = "Disk Write Bytes/sec"
	DiskBytes       = "Disk Bytes/sec"
	DiskIdleTime    = "% Idle Time"
	DiskSecTransfer = "Avg. Disk sec/Transfer"

	MemoryCacheBytes   = "Cache Bytes"
	MemoryPoolPaged    = "Pool Paged Bytes"
	MemoryPoolNonpaged = "Pool Nonpaged Bytes"
)

// Path адрес счетчика: категория, имя и экземпляр
type Path struct {
	Category string
	Counter  string
	Instance string
}

// String возвращает путь в нотации подсистемы счетчиков
func (p Path) String() string {
	if p.Instance == "" {
		return fmt.Sprintf(`\%s\%s`, p.Category, p.Counter)
	}
	return fmt.Sprintf(`\%s(%s)\%s`, p.Category, p.Instance, p.Counter)
}
