package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"telemetry_mon/internal/svcctl"
)

const (
	// DefaultActionTimeout ожидание смены состояния службы
	DefaultActionTimeout = 30 * time.Second

	statusPollInterval = 250 * time.Millisecond
)

var errWaitTimeout = errors.New("timed out waiting for service status")

// ActionResult результат действия со службой
type ActionResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Statistics сводка по службам
type Statistics struct {
	Total     int `json:"total"`
	Running   int `json:"running"`
	Stopped   int `json:"stopped"`
	Paused    int `json:"paused"`
	Automatic int `json:"automatic"`
	Manual    int `json:"manual"`
	Disabled  int `json:"disabled"`
}

// ServicesSnapshot снимок списка служб
type ServicesSnapshot struct {
	Services   []svcctl.Record `json:"services"`
	Statistics Statistics      `json:"statistics"`
	Enriched   bool            `json:"enriched"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Services агрегатор служб ОС. Кэш списка служб изменяют и опрос,
// и действия пользователя, поэтому он защищен одним мьютексом.
type Services struct {
	lifecycle

	backend svcctl.Backend
	timeout time.Duration
	poll    time.Duration
	logger  *zap.Logger

	mu       sync.Mutex
	services []svcctl.Record
	index    map[string]int
	watch    map[string]bool
	enriched bool
	failed   bool
	updated  time.Time

	hub Hub[ServicesSnapshot]
}

// NewServices загружает список служб. Если недоступен и расширенный запрос,
// и базовое перечисление, агрегатор создается с пустым списком.
func NewServices(ctx context.Context, backend svcctl.Backend, timeout time.Duration, logger *zap.Logger) *Services {
	if timeout <= 0 {
		timeout = DefaultActionTimeout
	}
	s := &Services{
		backend: backend,
		timeout: timeout,
		poll:    statusPollInterval,
		logger:  logger.Named("services"),
	}

	s.Load(ctx)
	s.ready()

	return s
}

// Load полностью перезагружает список: расширенный запрос, затем
// базовое перечисление без обогащения, затем пустой список
func (s *Services) Load(ctx context.Context) {
	list, err := s.backend.List(ctx)
	enriched := true
	failed := false
	if err != nil {
		s.logger.Warn("Service query failed, falling back to basic enumeration", zap.Error(err))
		enriched = false
		list, err = s.backend.ListBasic(ctx)
		if err != nil {
			s.logger.Error("Service enumeration failed", zap.Error(err))
			list = nil
			failed = true
		}
	}
	if !enriched {
		for i := range list {
			list[i].Enriched = false
		}
	}

	sort.SliceStable(list, func(i, j int) bool {
		return strings.ToLower(list[i].DisplayName) < strings.ToLower(list[j].DisplayName)
	})

	s.mu.Lock()
	s.services = list
	s.enriched = enriched
	s.failed = failed
	s.updated = time.Now()
	s.reindex()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Debug("Services loaded", zap.Int("count", len(list)), zap.Bool("enriched", enriched))
	s.hub.Publish(snap)
}

// reindex вызывается под s.mu
func (s *Services) reindex() {
	s.index = make(map[string]int, len(s.services))
	for i, rec := range s.services {
		s.index[strings.ToLower(rec.Name)] = i
	}
}

// Watch ограничивает опрос указанными службами; nil возвращает опрос всех служб
func (s *Services) Watch(names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if names == nil {
		s.watch = nil
		return
	}
	s.watch = make(map[string]bool, len(names))
	for _, n := range names {
		s.watch[strings.ToLower(n)] = true
	}
}

// Refresh обновляет только состояние и PID наблюдаемых служб.
// После неудачной загрузки списка опрос повторяет загрузку целиком.
func (s *Services) Refresh(ctx context.Context) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	s.mu.Lock()
	reload := s.failed
	s.mu.Unlock()
	if reload {
		s.Load(ctx)
		return nil
	}

	s.mu.Lock()
	names := make([]string, 0, len(s.services))
	for _, rec := range s.services {
		if s.watch == nil || s.watch[strings.ToLower(rec.Name)] {
			names = append(names, rec.Name)
		}
	}
	s.mu.Unlock()

	failed := 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.refreshOne(ctx, name); err != nil {
			failed++
		}
	}
	if failed > 0 {
		s.logger.Warn("Service refresh incomplete", zap.Int("failed", failed), zap.Int("total", len(names)))
	}

	s.mu.Lock()
	s.updated = time.Now()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.hub.Publish(snap)

	return nil
}

func (s *Services) refreshOne(ctx context.Context, name string) error {
	st, err := s.backend.Query(ctx, name)
	if err != nil {
		s.logger.Debug("Service query failed", zap.String("service", name), zap.Error(err))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.index[strings.ToLower(name)]; ok {
		s.services[i].Status = st.Status
		s.services[i].PID = st.PID
	}
	return nil
}

// Enrich загружает подробные поля одной службы
func (s *Services) Enrich(ctx context.Context, name string) error {
	rec, err := s.backend.Details(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to enrich service %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("%s: %w", name, svcctl.ErrNotFound)
	}
	rec.Name = s.services[i].Name
	if rec.DisplayName == "" {
		rec.DisplayName = s.services[i].DisplayName
	}
	rec.Enriched = true
	s.services[i] = rec

	return nil
}

// EnrichAll обогащает все службы; это дорогой путь только для явного запроса
func (s *Services) EnrichAll(ctx context.Context) error {
	s.mu.Lock()
	names := make([]string, 0, len(s.services))
	for _, rec := range s.services {
		if !rec.Enriched {
			names = append(names, rec.Name)
		}
	}
	s.mu.Unlock()

	var errs []error
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Enrich(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Snapshot возвращает копию списка служб и статистику
func (s *Services) Snapshot() ServicesSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Services) snapshotLocked() ServicesSnapshot {
	return ServicesSnapshot{
		Services:   append([]svcctl.Record(nil), s.services...),
		Statistics: statistics(s.services),
		Enriched:   s.enriched,
		Timestamp:  s.updated,
	}
}

// Subscribe возвращает канал снимков после каждого опроса
func (s *Services) Subscribe() <-chan ServicesSnapshot {
	return s.hub.Subscribe()
}

// Services возвращает копию всех служб
func (s *Services) Services() []svcctl.Record {
	return s.filter(func(svcctl.Record) bool { return true })
}

// Get возвращает службу по имени без учета регистра
func (s *Services) Get(name string) (svcctl.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[strings.ToLower(name)]
	if !ok {
		return svcctl.Record{}, false
	}
	return s.services[i], true
}

// Search ищет подстроку в имени, отображаемом имени и описании; пустой запрос возвращает все
func (s *Services) Search(query string) []svcctl.Record {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return s.Services()
	}
	return s.filter(func(r svcctl.Record) bool {
		return strings.Contains(strings.ToLower(r.Name), q) ||
			strings.Contains(strings.ToLower(r.DisplayName), q) ||
			strings.Contains(strings.ToLower(r.Description), q)
	})
}

// ByStatus возвращает службы в указанном состоянии
func (s *Services) ByStatus(status svcctl.Status) []svcctl.Record {
	return s.filter(func(r svcctl.Record) bool { return r.Status == status })
}

// ByStartMode возвращает службы с указанным режимом запуска
func (s *Services) ByStartMode(mode svcctl.StartMode) []svcctl.Record {
	return s.filter(func(r svcctl.Record) bool { return r.StartMode == mode })
}

// Statistics считает службы по состояниям и режимам запуска
func (s *Services) Statistics() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return statistics(s.services)
}

func (s *Services) filter(keep func(svcctl.Record) bool) []svcctl.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]svcctl.Record, 0, len(s.services))
	for _, r := range s.services {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func statistics(list []svcctl.Record) Statistics {
	st := Statistics{Total: len(list)}
	for _, r := range list {
		switch r.Status {
		case svcctl.StatusRunning:
			st.Running++
		case svcctl.StatusStopped:
			st.Stopped++
		case svcctl.StatusPaused:
			st.Paused++
		}
		switch r.StartMode {
		case svcctl.StartAutomatic:
			st.Automatic++
		case svcctl.StartManual:
			st.Manual++
		case svcctl.StartDisabled:
			st.Disabled++
		}
	}
	return st
}

// Start запускает службу и ждет состояния Running
func (s *Services) Start(ctx context.Context, name string) ActionResult {
	st, err := s.query(ctx, name)
	if err != nil {
		return s.failure("start", name, err)
	}
	switch st.Status {
	case svcctl.StatusRunning:
		return ActionResult{OK: true, Message: "Service is already running"}
	case svcctl.StatusStartPending:
		return ActionResult{OK: true, Message: "Service is already starting"}
	}

	if err := s.backend.Start(ctx, name); err != nil {
		return s.cannot("start", name, err)
	}
	if err := s.waitFor(ctx, name, svcctl.StatusRunning); err != nil {
		return s.waitFailure("start", name, err)
	}

	return s.success(ctx, name, "Service started successfully")
}

// Stop останавливает службу и ждет состояния Stopped
func (s *Services) Stop(ctx context.Context, name string) ActionResult {
	st, err := s.query(ctx, name)
	if err != nil {
		return s.failure("stop", name, err)
	}
	switch st.Status {
	case svcctl.StatusStopped:
		return ActionResult{OK: true, Message: "Service is already stopped"}
	case svcctl.StatusStopPending:
		return ActionResult{OK: true, Message: "Service is already stopping"}
	}
	if !st.CanStop {
		return ActionResult{Message: "Service cannot be stopped"}
	}

	if err := s.backend.Stop(ctx, name); err != nil {
		return s.cannot("stop", name, err)
	}
	if err := s.waitFor(ctx, name, svcctl.StatusStopped); err != nil {
		return s.waitFailure("stop", name, err)
	}

	return s.success(ctx, name, "Service stopped successfully")
}

// Restart останавливает службу, если она не остановлена, и запускает снова
func (s *Services) Restart(ctx context.Context, name string) ActionResult {
	st, err := s.query(ctx, name)
	if err != nil {
		return s.failure("restart", name, err)
	}

	if st.Status != svcctl.StatusStopped {
		if !st.CanStop {
			return ActionResult{Message: "Service cannot be stopped for restart"}
		}
		if err := s.backend.Stop(ctx, name); err != nil {
			return s.failure("restart", name, err)
		}
		if err := s.waitFor(ctx, name, svcctl.StatusStopped); err != nil {
			return s.waitFailure("restart", name, err)
		}
	}

	if err := s.backend.Start(ctx, name); err != nil {
		return s.failure("restart", name, err)
	}
	if err := s.waitFor(ctx, name, svcctl.StatusRunning); err != nil {
		return s.waitFailure("restart", name, err)
	}

	return s.success(ctx, name, "Service restarted successfully")
}

// Pause приостанавливает службу и ждет состояния Paused
func (s *Services) Pause(ctx context.Context, name string) ActionResult {
	st, err := s.query(ctx, name)
	if err != nil {
		return s.failure("pause", name, err)
	}
	if st.Status == svcctl.StatusPaused {
		return ActionResult{OK: true, Message: "Service is already paused"}
	}
	if !st.CanPauseAndContinue {
		return ActionResult{Message: "Service cannot be paused"}
	}

	if err := s.backend.Pause(ctx, name); err != nil {
		return s.failure("pause", name, err)
	}
	if err := s.waitFor(ctx, name, svcctl.StatusPaused); err != nil {
		return s.waitFailure("pause", name, err)
	}

	return s.success(ctx, name, "Service paused successfully")
}

// Continue возобновляет приостановленную службу
func (s *Services) Continue(ctx context.Context, name string) ActionResult {
	st, err := s.query(ctx, name)
	if err != nil {
		return s.failure("continue", name, err)
	}
	if st.Status != svcctl.StatusPaused {
		return ActionResult{Message: "Service is not paused"}
	}

	if err := s.backend.Continue(ctx, name); err != nil {
		return s.failure("continue", name, err)
	}
	if err := s.waitFor(ctx, name, svcctl.StatusRunning); err != nil {
		return s.waitFailure("continue", name, err)
	}

	return s.success(ctx, name, "Service continued successfully")
}

// query читает состояние службы перед действием
func (s *Services) query(ctx context.Context, name string) (svcctl.State, error) {
	if s.State() == StateDisposed {
		return svcctl.State{}, ErrDisposed
	}
	return s.backend.Query(ctx, name)
}

// waitFor опрашивает состояние службы, пока оно не станет want или не истечет таймаут
func (s *Services) waitFor(ctx context.Context, name string, want svcctl.Status) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		st, err := s.backend.Query(ctx, name)
		if err == nil && st.Status == want {
			return nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return errWaitTimeout
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Services) success(ctx context.Context, name, message string) ActionResult {
	_ = s.refreshOne(ctx, name)
	s.hub.Publish(s.Snapshot())

	s.logger.Info(message, zap.String("service", name))
	return ActionResult{OK: true, Message: message}
}

func (s *Services) failure(action, name string, err error) ActionResult {
	s.logger.Warn("Service action failed",
		zap.String("action", action),
		zap.String("service", name),
		zap.Error(err))
	return ActionResult{Message: fmt.Sprintf("Error: %v", err)}
}

func (s *Services) cannot(action, name string, err error) ActionResult {
	s.logger.Warn("Service action rejected",
		zap.String("action", action),
		zap.String("service", name),
		zap.Error(err))
	return ActionResult{Message: fmt.Sprintf("Cannot %s service: %v", action, err)}
}

func (s *Services) waitFailure(action, name string, err error) ActionResult {
	if !errors.Is(err, errWaitTimeout) {
		return s.failure(action, name, err)
	}
	s.logger.Warn("Service action timed out",
		zap.String("action", action),
		zap.String("service", name),
		zap.Duration("timeout", s.timeout))
	return ActionResult{Message: fmt.Sprintf("Service %s timed out (%d seconds)", action, int(s.timeout.Seconds()))}
}

// Close освобождает интерфейс управления службами; повторный вызов ничего не делает
func (s *Services) Close() error {
	if !s.dispose() {
		return nil
	}
	s.hub.Close()

	return s.backend.Close()
}
