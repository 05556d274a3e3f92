package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycle(t *testing.T) {
	t.Parallel()

	var l lifecycle
	assert.Equal(t, StateUninitialized, l.State())
	assert.ErrorIs(t, l.begin(), ErrNotReady)

	l.ready()
	assert.Equal(t, StateReady, l.State())

	require.NoError(t, l.begin())
	assert.Equal(t, StateSampling, l.State())
	assert.ErrorIs(t, l.begin(), ErrBusy)

	l.end()
	assert.Equal(t, StateReady, l.State())

	assert.True(t, l.dispose())
	assert.False(t, l.dispose())
	assert.ErrorIs(t, l.begin(), ErrDisposed)

	l.ready()
	l.end()
	assert.Equal(t, StateDisposed, l.State())
}

func TestHubKeepsLatest(t *testing.T) {
	t.Parallel()

	var h Hub[int]
	ch := h.Subscribe()

	h.Publish(1)
	h.Publish(2)
	h.Publish(3)

	assert.Equal(t, 3, <-ch)
	select {
	case v := <-ch:
		t.Fatalf("unexpected stale value %d", v)
	default:
	}

	other := h.Subscribe()
	h.Unsubscribe(other)
	_, ok := <-other
	assert.False(t, ok)

	h.Close()
	_, ok = <-ch
	assert.False(t, ok)

	h.Publish(4)
	_, ok = <-h.Subscribe()
	assert.False(t, ok, "subscribe after close returns a closed channel")
}
