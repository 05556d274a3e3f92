package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoopTicksImmediately(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticked := make(chan struct{}, 1)
	l := &Loop{Name: "cpu", Interval: time.Hour, Tick: func(context.Context) error {
		select {
		case ticked <- struct{}{}:
		default:
		}
		return nil
	}}

	done := make(chan struct{})
	go func() {
		l.Run(ctx, zap.NewNop())
		close(done)
	}()

	select {
	case <-ticked:
	case <-time.After(time.Second):
		t.Fatal("first tick was not immediate")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cancellation did not interrupt the wait")
	}
	assert.Equal(t, int64(1), l.Stats().Ticks)
}

func TestLoopSurvivesErrorsAndPanics(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.ErrorLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var n atomic.Int32
	l := &Loop{Name: "disk", Interval: time.Millisecond, Tick: func(context.Context) error {
		switch n.Add(1) {
		case 1:
			return errors.New("boom")
		case 2:
			panic("bad counter")
		case 3:
			cancel()
		}
		return nil
	}}

	l.Run(ctx, zap.New(core))

	assert.Equal(t, int32(3), n.Load())
	stats := l.Stats()
	assert.Equal(t, int64(3), stats.Ticks)
	assert.Equal(t, int64(2), stats.Failures)

	entries := logs.FilterMessage("Polling tick failed").All()
	require.Len(t, entries, 2)
	assert.Contains(t, entries[1].ContextMap()["error"], "tick panicked: bad counter")
}

func TestLoopTickReceivesDeadline(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var hasDeadline atomic.Bool
	l := &Loop{Name: "memory", Interval: time.Hour, Timeout: time.Second, Tick: func(tickCtx context.Context) error {
		_, ok := tickCtx.Deadline()
		hasDeadline.Store(ok)
		cancel()
		return nil
	}}

	l.Run(ctx, zap.NewNop())
	assert.True(t, hasDeadline.Load())
}
