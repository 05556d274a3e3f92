// Package monitor собирает данные инвентаризации, счетчиков и датчиков
// в снимки по доменам: процессор, память, диски и службы.
package monitor

import (
	"errors"

	"telemetry_mon/internal/counters"
)

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func releaseAll(sampler *counters.Sampler, handles ...*counters.Handle) error {
	var errs []error
	for _, h := range handles {
		if h == nil {
			continue
		}
		if err := sampler.Release(h); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
