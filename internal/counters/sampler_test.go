package counters

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCounter struct {
	mu      sync.Mutex
	values  []float64
	errs    map[int]error
	blockAt int
	gate    chan struct{}
	reads   int
	closes  int
}

func (c *fakeCounter) Read() (float64, error) {
	c.mu.Lock()
	n := c.reads
	c.reads++
	gate := c.gate
	block := gate != nil && c.blockAt == n
	c.mu.Unlock()

	if block {
		<-gate
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err, ok := c.errs[n]; ok {
		return 0, err
	}
	if n < len(c.values) {
		return c.values[n], nil
	}
	return c.values[len(c.values)-1], nil
}

func (c *fakeCounter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

func (c *fakeCounter) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

type fakeProvider struct {
	counters  map[string]*fakeCounter
	instances map[string][]string
}

func (p *fakeProvider) Instances(category string) ([]string, error) {
	inst, ok := p.instances[category]
	if !ok {
		return nil, ErrUnsupported
	}
	return inst, nil
}

func (p *fakeProvider) Open(path Path) (Counter, error) {
	c, ok := p.counters[path.String()]
	if !ok {
		return nil, ErrUnsupported
	}
	return c, nil
}

func newTestSampler(counters map[string]*fakeCounter) *Sampler {
	return NewSampler(&fakeProvider{counters: counters}, 100*time.Millisecond, zap.NewNop())
}

func TestSamplerPrimesOnOpen(t *testing.T) {
	t.Parallel()

	c := &fakeCounter{values: []float64{1, 2, 3}}
	s := newTestSampler(map[string]*fakeCounter{`\Processor(_Total)\% Processor Time`: c})

	h, err := s.Open(context.Background(), CategoryProcessor, ProcessorTime, TotalInstance)
	require.NoError(t, err)

	v, ok := s.Sample(context.Background(), h)
	assert.True(t, ok)
	assert.Equal(t, 2.0, v, "first value returned must be the second OS read")

	v, ok = s.Sample(context.Background(), h)
	assert.True(t, ok)
	assert.Equal(t, 3.0, v)
}

func TestSamplerPrimingErrorIgnored(t *testing.T) {
	t.Parallel()

	c := &fakeCounter{values: []float64{0, 7}, errs: map[int]error{0: errors.New("no baseline")}}
	s := newTestSampler(map[string]*fakeCounter{`\Memory\Cache Bytes`: c})

	h, err := s.Open(context.Background(), CategoryMemory, MemoryCacheBytes, "")
	require.NoError(t, err)

	_, hasValue := h.Last()
	assert.False(t, hasValue)

	v, ok := s.Sample(context.Background(), h)
	assert.True(t, ok)
	assert.Equal(t, 7.0, v)
}

func TestSamplerOpenUnknownCounter(t *testing.T) {
	t.Parallel()

	s := newTestSampler(nil)
	_, err := s.Open(context.Background(), CategoryPhysicalDisk, DiskIdleTime, "9")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestSamplerFailureKeepsPreviousValue(t *testing.T) {
	t.Parallel()

	c := &fakeCounter{values: []float64{0, 20, 0, 30}, errs: map[int]error{2: errors.New("instance vanished")}}
	s := newTestSampler(map[string]*fakeCounter{`\PhysicalDisk(0 C:)\% Idle Time`: c})

	h, err := s.Open(context.Background(), CategoryPhysicalDisk, DiskIdleTime, "0 C:")
	require.NoError(t, err)

	v, ok := s.Sample(context.Background(), h)
	require.True(t, ok)
	assert.Equal(t, 20.0, v)

	v, ok = s.Sample(context.Background(), h)
	assert.False(t, ok)
	assert.Equal(t, 20.0, v)
	assert.Error(t, h.Err())

	v, ok = s.Sample(context.Background(), h)
	assert.True(t, ok)
	assert.Equal(t, 30.0, v)
	assert.NoError(t, h.Err())
}

func TestSampleAllStalledCounterDoesNotBlockOthers(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	stalled := &fakeCounter{values: []float64{0, 1}, blockAt: 1, gate: gate}
	healthy := &fakeCounter{values: []float64{0, 42}}
	s := newTestSampler(map[string]*fakeCounter{
		`\PhysicalDisk(0)\% Idle Time`: stalled,
		`\PhysicalDisk(1)\% Idle Time`: healthy,
	})

	ctx := context.Background()
	h0, err := s.Open(ctx, CategoryPhysicalDisk, DiskIdleTime, "0")
	require.NoError(t, err)
	h1, err := s.Open(ctx, CategoryPhysicalDisk, DiskIdleTime, "1")
	require.NoError(t, err)

	start := time.Now()
	readings := s.SampleAll(ctx, []*Handle{h0, nil, h1})
	assert.Less(t, time.Since(start), time.Second)

	require.Len(t, readings, 3)
	assert.False(t, readings[0].OK)
	assert.ErrorIs(t, h0.Err(), ErrReadTimeout)
	assert.False(t, readings[1].OK)
	assert.True(t, readings[2].OK)
	assert.Equal(t, 42.0, readings[2].Value)

	// пока чтение висит, повторный опрос сразу возвращает старое значение
	_, ok := s.Sample(ctx, h0)
	assert.False(t, ok)

	close(gate)
	require.Eventually(t, func() bool {
		v, ok := h0.Last()
		return ok && v == 1
	}, time.Second, 10*time.Millisecond)
}

func TestSamplerCloseReleasesOnce(t *testing.T) {
	t.Parallel()

	c := &fakeCounter{values: []float64{0, 5}}
	s := newTestSampler(map[string]*fakeCounter{`\Memory\Pool Paged Bytes`: c})

	h, err := s.Open(context.Background(), CategoryMemory, MemoryPoolPaged, "")
	require.NoError(t, err)
	_, ok := s.Sample(context.Background(), h)
	require.True(t, ok)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	require.NoError(t, s.Release(h))
	assert.Equal(t, 1, c.closeCount())

	v, ok := s.Sample(context.Background(), h)
	assert.False(t, ok)
	assert.Equal(t, 5.0, v)
	assert.ErrorIs(t, h.Err(), ErrHandleClosed)

	_, err = s.Open(context.Background(), CategoryMemory, MemoryPoolPaged, "")
	assert.ErrorIs(t, err, ErrSamplerClosed)
}

func TestReleaseDuringStalledRead(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	c := &fakeCounter{values: []float64{0, 1}, blockAt: 1, gate: gate}
	s := newTestSampler(map[string]*fakeCounter{`\Memory\Pool Nonpaged Bytes`: c})

	h, err := s.Open(context.Background(), CategoryMemory, MemoryPoolNonpaged, "")
	require.NoError(t, err)

	_, ok := s.Sample(context.Background(), h)
	require.False(t, ok)

	require.NoError(t, s.Release(h))
	assert.Equal(t, 0, c.closeCount(), "counter must not be closed while a read is in flight")

	close(gate)
	require.Eventually(t, func() bool { return c.closeCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestPathString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `\Memory\Cache Bytes`, Path{Category: CategoryMemory, Counter: MemoryCacheBytes}.String())
	assert.Equal(t, `\PhysicalDisk(0 C:)\Disk Bytes/sec`,
		Path{Category: CategoryPhysicalDisk, Counter: DiskBytes, Instance: "0 C:"}.String())
}
