package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultTickTimeout ограничение длительности одного опроса
const DefaultTickTimeout = 30 * time.Second

// Loop периодически вызывает Tick до отмены контекста
type Loop struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration
	Tick     func(ctx context.Context) error

	ticks    atomic.Int64
	failures atomic.Int64
	lastRun  atomic.Int64
}

// LoopStats статистика цикла
type LoopStats struct {
	Name         string        `json:"name"`
	Interval     time.Duration `json:"interval"`
	Ticks        int64         `json:"ticks"`
	Failures     int64         `json:"failures"`
	LastDuration time.Duration `json:"last_duration"`
}

// Stats возвращает статистику цикла
func (l *Loop) Stats() LoopStats {
	return LoopStats{
		Name:         l.Name,
		Interval:     l.Interval,
		Ticks:        l.ticks.Load(),
		Failures:     l.failures.Load(),
		LastDuration: time.Duration(l.lastRun.Load()),
	}
}

// Run выполняет первый опрос сразу, затем ждет интервал между опросами.
// Ошибки и паники опроса логируются, цикл продолжается. Отмена контекста
// прерывает ожидание.
func (l *Loop) Run(ctx context.Context, logger *zap.Logger) {
	logger = logger.With(zap.String("loop", l.Name))
	logger.Debug("Polling loop started", zap.Duration("interval", l.Interval))

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Polling loop stopped")
			return
		case <-timer.C:
		}

		l.runTick(ctx, logger)

		if ctx.Err() != nil {
			logger.Debug("Polling loop stopped")
			return
		}
		timer.Reset(l.Interval)
	}
}

// runTick выполняет один опрос с таймаутом и восстановлением после паники
func (l *Loop) runTick(ctx context.Context, logger *zap.Logger) {
	start := time.Now()

	timeout := l.Timeout
	if timeout <= 0 {
		timeout = DefaultTickTimeout
	}
	tickCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := l.safeTick(tickCtx)

	duration := time.Since(start)
	l.ticks.Add(1)
	l.lastRun.Store(int64(duration))

	if err != nil && ctx.Err() == nil {
		l.failures.Add(1)
		logger.Error("Polling tick failed", zap.Error(err), zap.Duration("duration", duration))
		return
	}
	logger.Debug("Polling tick completed", zap.Duration("duration", duration))
}

func (l *Loop) safeTick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panicked: %v", r)
		}
	}()
	return l.Tick(ctx)
}
