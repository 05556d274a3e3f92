package format

import (
	"fmt"
	"time"
)

// NA выводится вместо значения, когда метрика недоступна
const NA = "N/A"

var byteUnits = []string{"B", "KB", "MB", "GB", "TB"}

// FormatBytes переводит количество байт в строку с одним знаком после запятой
func FormatBytes(bytes uint64) string {
	value := float64(bytes)
	unit := 0
	for value >= 1024 && unit < len(byteUnits)-1 {
		value /= 1024
		unit++
	}
	return fmt.Sprintf("%.1f %s", value, byteUnits[unit])
}

// FormatSpeed форматирует скорость передачи в байтах в секунду
func FormatSpeed(bytesPerSec float64) string {
	if bytesPerSec < 0 {
		bytesPerSec = 0
	}
	switch {
	case bytesPerSec < 1024:
		return fmt.Sprintf("%.1f B/s", bytesPerSec)
	case bytesPerSec < 1024*1024:
		return fmt.Sprintf("%.1f KB/s", bytesPerSec/1024)
	}

	mb := bytesPerSec / (1024 * 1024)
	if mb > 1000 {
		return fmt.Sprintf("%.2f GB/s", mb/1024)
	}
	return fmt.Sprintf("%.1f MB/s", mb)
}

// FormatPercent форматирует процент
func FormatPercent(value float64) string {
	return fmt.Sprintf("%.0f%%", value)
}

// FormatUptime форматирует время работы системы
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	if days > 0 {
		return fmt.Sprintf("%d.%02d:%02d:%02d", days, hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// FormatTemperature выводит температуру или N/A
func FormatTemperature(celsius float64, ok bool) string {
	if !ok {
		return NA
	}
	return fmt.Sprintf("%.0f °C", celsius)
}

// FormatWatts выводит мощность или N/A
func FormatWatts(watts float64, ok bool) string {
	if !ok {
		return NA
	}
	return fmt.Sprintf("%.1f W", watts)
}

// FormatVolts выводит напряжение или N/A
func FormatVolts(volts float64, ok bool) string {
	if !ok {
		return NA
	}
	return fmt.Sprintf("%.3f V", volts)
}

// FormatMHz выводит частоту в ГГц
func FormatMHz(mhz float64) string {
	if mhz <= 0 {
		return NA
	}
	return fmt.Sprintf("%.2f GHz", mhz/1000)
}
