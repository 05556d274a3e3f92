package inventory

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// smartTemperatureOffset смещение байта температуры в данных производителя
const smartTemperatureOffset = 194*12 + 5

// Состояния здоровья диска
const (
	HealthHealthy = "Healthy"
	HealthWarning = "Warning"
	HealthUnknown = "Unknown"
)

// DiskHealth состояние диска по SMART
type DiskHealth struct {
	Status         string  `json:"status"`
	TemperatureC   float64 `json:"temperature_c"`
	HasTemperature bool    `json:"has_temperature"`
}

// Health запрашивает SMART по требованию; при любой ошибке состояние неизвестно
func (i *Inventory) Health(ctx context.Context, disk DiskRecord) DiskHealth {
	health := DiskHealth{Status: HealthUnknown}

	data, err := i.source.SMART(ctx, disk)
	if err != nil {
		if !errors.Is(err, ErrUnsupported) {
			i.logger.Debug("SMART query failed", zap.String("disk", disk.ID), zap.Error(err))
		}
		return health
	}

	if data.PredictFailure != nil {
		if *data.PredictFailure {
			health.Status = HealthWarning
		} else {
			health.Status = HealthHealthy
		}
	}
	health.TemperatureC, health.HasTemperature = ParseSmartTemperature(data.VendorSpecific)

	return health
}

// ParseSmartTemperature читает температуру по фиксированному смещению.
// Разметка буфера зависит от производителя, поэтому вне диапазона 1..99 температуры нет.
func ParseSmartTemperature(vendor []byte) (float64, bool) {
	if len(vendor) <= smartTemperatureOffset {
		return 0, false
	}

	t := vendor[smartTemperatureOffset]
	if t == 0 || t >= 100 {
		return 0, false
	}

	return float64(t), true
}
