package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Aggregator опрашиваемый источник снимков
type Aggregator interface {
	Refresh(ctx context.Context) error
	Close() error
}

type entry struct {
	loop *Loop
	agg  Aggregator
}

// Scheduler запускает по циклу опроса на каждый агрегатор и
// дожидается завершения всех циклов при остановке
type Scheduler struct {
	logger *zap.Logger

	mu      sync.Mutex
	entries []entry
	started bool
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New создает новый планировщик
func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{logger: logger.Named("scheduler")}
}

// Add регистрирует агрегатор с интервалом опроса. Агрегатор будет
// освобожден планировщиком после остановки циклов.
func (s *Scheduler) Add(name string, interval time.Duration, agg Aggregator) error {
	if interval <= 0 {
		return fmt.Errorf("loop %s: interval must be positive", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("loop %s: scheduler already started", name)
	}
	s.entries = append(s.entries, entry{
		loop: &Loop{Name: name, Interval: interval, Tick: agg.Refresh},
		agg:  agg,
	})
	return nil
}

// Start запускает все циклы опроса
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errors.New("scheduler already started")
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.logger.Info("Starting scheduler", zap.Int("loops", len(s.entries)))

	for _, e := range s.entries {
		e := e
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			e.loop.Run(s.ctx, s.logger)
		}()
	}

	s.logger.Info("Scheduler started successfully")
	return nil
}

// Stop отменяет все циклы опроса
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.logger.Info("Stopping scheduler")
		s.cancel()
	}
}

// Wait ожидает завершения всех циклов и освобождает агрегаторы
func (s *Scheduler) Wait() error {
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for _, e := range s.entries {
		if err := e.agg.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", e.loop.Name, err))
		}
	}

	s.logger.Info("Scheduler stopped")
	return errors.Join(errs...)
}

// Stats возвращает статистику всех циклов
func (s *Scheduler) Stats() []LoopStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]LoopStats, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.loop.Stats())
	}
	return out
}
