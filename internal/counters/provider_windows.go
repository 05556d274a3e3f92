//go:build windows

package counters

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modpdh = windows.NewLazySystemDLL("pdh.dll")

	procPdhOpenQueryW               = modpdh.NewProc("PdhOpenQueryW")
	procPdhAddEnglishCounterW       = modpdh.NewProc("PdhAddEnglishCounterW")
	procPdhCollectQueryData         = modpdh.NewProc("PdhCollectQueryData")
	procPdhGetFormattedCounterValue = modpdh.NewProc("PdhGetFormattedCounterValue")
	procPdhEnumObjectItemsW         = modpdh.NewProc("PdhEnumObjectItemsW")
	procPdhCloseQuery               = modpdh.NewProc("PdhCloseQuery")
)

const (
	pdhFmtDouble   = 0x00000200
	pdhFmtNoCap100 = 0x00008000

	pdhCstatusValidData = 0x00000000
	pdhCstatusNewData   = 0x00000001
	pdhMoreData         = 0x800007D2

	perfDetailWizard = 400
)

type pdhFmtCounterValueDouble struct {
	CStatus     uint32
	_           uint32
	DoubleValue float64
}

type pdhProvider struct{}

// NewProvider возвращает провайдер счетчиков PDH
func NewProvider() Provider {
	return pdhProvider{}
}

// Instances перечисляет экземпляры объекта PDH
func (pdhProvider) Instances(category string) ([]string, error) {
	object, err := windows.UTF16PtrFromString(category)
	if err != nil {
		return nil, err
	}

	var counterLen, instanceLen uint32
	r, _, _ := procPdhEnumObjectItemsW.Call(
		0, 0,
		uintptr(unsafe.Pointer(object)),
		0, uintptr(unsafe.Pointer(&counterLen)),
		0, uintptr(unsafe.Pointer(&instanceLen)),
		perfDetailWizard, 0)
	if uint32(r) != pdhMoreData && r != 0 {
		return nil, fmt.Errorf("PdhEnumObjectItemsW(%s) failed: 0x%x", category, r)
	}
	if instanceLen == 0 {
		return nil, nil
	}

	counterBuf := make([]uint16, counterLen)
	instanceBuf := make([]uint16, instanceLen)
	var counterPtr uintptr
	if counterLen > 0 {
		counterPtr = uintptr(unsafe.Pointer(&counterBuf[0]))
	}
	r, _, _ = procPdhEnumObjectItemsW.Call(
		0, 0,
		uintptr(unsafe.Pointer(object)),
		counterPtr, uintptr(unsafe.Pointer(&counterLen)),
		uintptr(unsafe.Pointer(&instanceBuf[0])), uintptr(unsafe.Pointer(&instanceLen)),
		perfDetailWizard, 0)
	if r != 0 {
		return nil, fmt.Errorf("PdhEnumObjectItemsW(%s) failed: 0x%x", category, r)
	}

	return splitMultiSZ(instanceBuf), nil
}

// Open создает отдельный запрос PDH на каждый счетчик
func (pdhProvider) Open(path Path) (Counter, error) {
	var query windows.Handle
	if r, _, _ := procPdhOpenQueryW.Call(0, 0, uintptr(unsafe.Pointer(&query))); r != 0 {
		return nil, fmt.Errorf("PdhOpenQueryW failed: 0x%x", r)
	}

	full, err := windows.UTF16PtrFromString(path.String())
	if err != nil {
		procPdhCloseQuery.Call(uintptr(query))
		return nil, err
	}

	var counter windows.Handle
	r, _, _ := procPdhAddEnglishCounterW.Call(
		uintptr(query),
		uintptr(unsafe.Pointer(full)),
		0,
		uintptr(unsafe.Pointer(&counter)))
	if r != 0 {
		procPdhCloseQuery.Call(uintptr(query))
		return nil, fmt.Errorf("PdhAddEnglishCounterW(%s) failed: 0x%x", path, r)
	}

	return &pdhCounter{query: query, counter: counter}, nil
}

type pdhCounter struct {
	query   windows.Handle
	counter windows.Handle
}

func (c *pdhCounter) Read() (float64, error) {
	if r, _, _ := procPdhCollectQueryData.Call(uintptr(c.query)); r != 0 {
		return 0, fmt.Errorf("PdhCollectQueryData failed: 0x%x", r)
	}

	var value pdhFmtCounterValueDouble
	r, _, _ := procPdhGetFormattedCounterValue.Call(
		uintptr(c.counter),
		pdhFmtDouble|pdhFmtNoCap100,
		0,
		uintptr(unsafe.Pointer(&value)))
	if r != 0 {
		return 0, fmt.Errorf("PdhGetFormattedCounterValue failed: 0x%x", r)
	}
	if value.CStatus != pdhCstatusValidData && value.CStatus != pdhCstatusNewData {
		return 0, fmt.Errorf("counter status 0x%x", value.CStatus)
	}

	return value.DoubleValue, nil
}

func (c *pdhCounter) Close() error {
	if r, _, _ := procPdhCloseQuery.Call(uintptr(c.query)); r != 0 {
		return fmt.Errorf("PdhCloseQuery failed: 0x%x", r)
	}
	return nil
}

// splitMultiSZ разбирает список строк, разделенных нулями
func splitMultiSZ(buf []uint16) []string {
	var out []string
	start := 0
	for i, ch := range buf {
		if ch != 0 {
			continue
		}
		if i == start {
			break
		}
		out = append(out, windows.UTF16ToString(buf[start:i]))
		start = i + 1
	}
	return out
}
