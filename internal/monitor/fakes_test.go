package monitor

import (
	"context"
	"sync"

	"telemetry_mon/internal/counters"
	"telemetry_mon/internal/sensors"
)

// fakeCounter возвращает значения по порядку, повторяя последнее
type fakeCounter struct {
	mu     sync.Mutex
	values []float64
	next   int
	closed bool
}

func (c *fakeCounter) Read() (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.values[c.next]
	if c.next < len(c.values)-1 {
		c.next++
	}
	return v, nil
}

func (c *fakeCounter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

type fakeProvider struct {
	mu        sync.Mutex
	instances map[string][]string
	values    map[string][]float64
	opened    map[string]*fakeCounter
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		instances: map[string][]string{},
		values:    map[string][]float64{},
		opened:    map[string]*fakeCounter{},
	}
}

func (p *fakeProvider) set(category, counter, instance string, values ...float64) {
	path := counters.Path{Category: category, Counter: counter, Instance: instance}
	p.values[path.String()] = values
}

func (p *fakeProvider) Instances(category string) ([]string, error) {
	list, ok := p.instances[category]
	if !ok {
		return nil, counters.ErrUnsupported
	}
	return list, nil
}

func (p *fakeProvider) Open(path counters.Path) (counters.Counter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	values, ok := p.values[path.String()]
	if !ok {
		return nil, counters.ErrUnsupported
	}
	c := &fakeCounter{values: values}
	p.opened[path.String()] = c
	return c, nil
}

func (p *fakeProvider) allClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, c := range p.opened {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if !closed {
			return false
		}
	}
	return true
}

type fakeSensors struct {
	values    map[sensors.SensorType]float64
	updateErr error
}

func (f *fakeSensors) Update(context.Context) error { return f.updateErr }

func (f *fakeSensors) Probe(kind sensors.SensorType) (float64, bool) {
	v, ok := f.values[kind]
	return v, ok
}

type fakeClock struct {
	mhz float64
	err error
}

func (f fakeClock) LiveClockMHz(context.Context) (float64, error) { return f.mhz, f.err }
