package counters

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Handle открытый счетчик, принадлежащий сэмплеру
type Handle struct {
	path Path
	raw  Counter

	mu       sync.Mutex
	last     float64
	hasValue bool
	lastErr  error
	busy     bool
	closed   bool
	released bool
}

// Path возвращает адрес счетчика
func (h *Handle) Path() Path { return h.path }

// Last возвращает последнее успешно прочитанное значение
func (h *Handle) Last() (float64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last, h.hasValue
}

// Err возвращает ошибку последнего чтения
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}

type readResult struct {
	value float64
	err   error
}

// start запускает чтение в отдельной горутине. Зависшее чтение не блокирует
// вызывающего: результат будет учтен, когда чтение завершится.
func (h *Handle) start(prime bool) (<-chan readResult, bool) {
	h.mu.Lock()
	if h.closed || h.busy {
		h.mu.Unlock()
		return nil, false
	}
	h.busy = true
	h.mu.Unlock()

	done := make(chan readResult, 1)
	go func() {
		v, err := h.raw.Read()

		h.mu.Lock()
		h.busy = false
		if !prime {
			if err == nil {
				h.last = v
				h.hasValue = true
				h.lastErr = nil
			} else {
				h.lastErr = err
			}
		}
		release := h.closed && !h.released
		if release {
			h.released = true
		}
		h.mu.Unlock()

		if release {
			_ = h.raw.Close()
		}
		done <- readResult{value: v, err: err}
	}()

	return done, true
}

// close освобождает счетчик ровно один раз; если идет чтение,
// счетчик освободит читающая горутина
func (h *Handle) close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	if h.busy {
		h.mu.Unlock()
		return nil
	}
	h.released = true
	h.mu.Unlock()

	return h.raw.Close()
}

// Reading результат одного чтения
type Reading struct {
	Value float64
	OK    bool
}

// Sampler открывает и опрашивает счетчики производительности
type Sampler struct {
	provider Provider
	timeout  time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	handles []*Handle
	closed  bool
}

// NewSampler создает сэмплер; timeout ограничивает одно чтение счетчика
func NewSampler(provider Provider, timeout time.Duration, logger *zap.Logger) *Sampler {
	return &Sampler{
		provider: provider,
		timeout:  timeout,
		logger:   logger.Named("sampler"),
	}
}

// Instances перечисляет экземпляры категории
func (s *Sampler) Instances(category string) ([]string, error) {
	return s.provider.Instances(category)
}

// Open открывает счетчик и выполняет холостое чтение.
// Ошибка холостого чтения игнорируется, зависание считается отказом.
func (s *Sampler) Open(ctx context.Context, category, counter, instance string) (*Handle, error) {
	path := Path{Category: category, Counter: counter, Instance: instance}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrSamplerClosed
	}

	raw, err := s.provider.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open counter %s: %w", path, err)
	}

	h := &Handle{path: path, raw: raw}
	done, _ := h.start(true)
	if res, err := s.wait(ctx, done); err != nil {
		_ = h.close()
		return nil, fmt.Errorf("failed to prime counter %s: %w", path, err)
	} else if res.err != nil {
		s.logger.Debug("Priming read failed", zap.String("counter", path.String()), zap.Error(res.err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		_ = h.close()
		return nil, ErrSamplerClosed
	}
	s.handles = append(s.handles, h)

	return h, nil
}

// Sample читает счетчик. При ошибке или таймауте возвращает
// предыдущее значение и ok=false.
func (s *Sampler) Sample(ctx context.Context, h *Handle) (float64, bool) {
	if h == nil {
		return 0, false
	}

	done, started := h.start(false)
	if !started {
		h.mu.Lock()
		if h.closed {
			h.lastErr = ErrHandleClosed
		}
		v := h.last
		h.mu.Unlock()
		return v, false
	}

	res, err := s.wait(ctx, done)
	if err != nil {
		h.mu.Lock()
		h.lastErr = err
		v := h.last
		h.mu.Unlock()
		s.logger.Debug("Counter read did not complete",
			zap.String("counter", h.path.String()), zap.Error(err))
		return v, false
	}
	if res.err != nil {
		v, _ := h.Last()
		s.logger.Debug("Counter read failed",
			zap.String("counter", h.path.String()), zap.Error(res.err))
		return v, false
	}

	return res.value, true
}

// SampleAll опрашивает счетчики параллельно; порядок результатов совпадает с порядком дескрипторов
func (s *Sampler) SampleAll(ctx context.Context, handles []*Handle) []Reading {
	out := make([]Reading, len(handles))

	g, gctx := errgroup.WithContext(ctx)
	for i, h := range handles {
		if h == nil {
			continue
		}
		i, h := i, h
		g.Go(func() error {
			v, ok := s.Sample(gctx, h)
			out[i] = Reading{Value: v, OK: ok}
			return nil
		})
	}
	_ = g.Wait()

	return out
}

// Release освобождает один дескриптор
func (s *Sampler) Release(h *Handle) error {
	if h == nil {
		return nil
	}

	s.mu.Lock()
	for i, cur := range s.handles {
		if cur == h {
			s.handles = append(s.handles[:i], s.handles[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	return h.close()
}

// Close освобождает все дескрипторы; повторный вызов ничего не делает
func (s *Sampler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	handles := s.handles
	s.handles = nil
	s.mu.Unlock()

	var errs []error
	for _, h := range handles {
		if err := h.close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", h.path, err))
		}
	}

	return errors.Join(errs...)
}

func (s *Sampler) wait(ctx context.Context, done <-chan readResult) (readResult, error) {
	if done == nil {
		return readResult{}, ErrHandleClosed
	}

	var timeout <-chan time.Time
	if s.timeout > 0 {
		timer := time.NewTimer(s.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case res := <-done:
		return res, nil
	case <-timeout:
		return readResult{}, ErrReadTimeout
	case <-ctx.Done():
		return readResult{}, ctx.Err()
	}
}
