package profiler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"runtime"
	rpprof "runtime/pprof"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config представляет конфигурацию профилировщика
type Config struct {
	Enable      bool   // включить профилирование
	HTTPPort    int    // порт для HTTP сервера pprof
	CPUProfile  string // путь к файлу CPU профиля
	MemProfile  string // путь к файлу профиля памяти
	ProfileTime int    // время записи CPU профиля в секундах
}

// Profiler управляет профилированием процесса мониторинга
type Profiler struct {
	config     Config
	logger     *zap.Logger
	httpServer *http.Server

	mu       sync.Mutex
	cpuFile  *os.File
	cpuTimer *time.Timer
}

// New создает новый профилировщик
func New(config Config, logger *zap.Logger) *Profiler {
	return &Profiler{
		config: config,
		logger: logger.Named("profiler"),
	}
}

// Start запускает профилирование
func (p *Profiler) Start(ctx context.Context) error {
	if !p.config.Enable {
		p.logger.Debug("Profiling disabled")
		return nil
	}

	p.logger.Info("Starting profiler",
		zap.Int("http_port", p.config.HTTPPort),
		zap.String("cpu_profile", p.config.CPUProfile),
		zap.String("mem_profile", p.config.MemProfile))

	p.startHTTPServer()

	if p.config.CPUProfile != "" {
		if err := p.startCPUProfile(); err != nil {
			return fmt.Errorf("failed to start CPU profiling: %w", err)
		}
	}

	return nil
}

// Stop останавливает профилирование и сохраняет профиль памяти
func (p *Profiler) Stop() error {
	if !p.config.Enable {
		return nil
	}

	var errs []error

	if err := p.stopCPUProfile(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop CPU profiling: %w", err))
	}

	if p.config.MemProfile != "" {
		if err := p.writeMemProfile(); err != nil {
			errs = append(errs, fmt.Errorf("failed to write memory profile: %w", err))
		}
	}

	if p.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown HTTP server: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("profiler shutdown errors: %w", err)
	}

	p.logger.Info("Profiler stopped")
	return nil
}

// Handler возвращает обработчик с pprof endpoints и информационной страницей
func (p *Profiler) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `
telemetry_mon profiler

Available endpoints:
- /debug/pprof/          - pprof index
- /debug/pprof/cmdline   - command line
- /debug/pprof/profile   - CPU profile (30s)
- /debug/pprof/symbol    - symbol lookup
- /debug/pprof/trace     - execution trace (1s)
- /debug/pprof/heap      - heap profile
- /debug/pprof/goroutine - goroutine profile

Usage examples:
go tool pprof http://localhost:%d/debug/pprof/profile
go tool pprof http://localhost:%d/debug/pprof/heap
`, p.config.HTTPPort, p.config.HTTPPort)
	})

	return mux
}

// startHTTPServer запускает HTTP сервер для pprof endpoints
func (p *Profiler) startHTTPServer() {
	if p.config.HTTPPort <= 0 {
		return
	}

	p.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", p.config.HTTPPort),
		Handler:           p.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		p.logger.Info("Starting pprof HTTP server",
			zap.String("addr", p.httpServer.Addr))

		if err := p.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("pprof HTTP server error", zap.Error(err))
		}
	}()
}

// startCPUProfile начинает CPU профилирование в файл
func (p *Profiler) startCPUProfile() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	file, err := os.Create(p.config.CPUProfile)
	if err != nil {
		return fmt.Errorf("failed to create CPU profile file: %w", err)
	}

	if err := rpprof.StartCPUProfile(file); err != nil {
		file.Close()
		return fmt.Errorf("failed to start CPU profiling: %w", err)
	}
	p.cpuFile = file

	p.logger.Info("Started CPU profiling", zap.String("file", p.config.CPUProfile))

	// Автоматически останавливаем через заданное время
	if p.config.ProfileTime > 0 {
		p.cpuTimer = time.AfterFunc(time.Duration(p.config.ProfileTime)*time.Second, func() {
			if err := p.stopCPUProfile(); err != nil {
				p.logger.Error("Failed to stop CPU profiling", zap.Error(err))
			}
		})
	}

	return nil
}

// stopCPUProfile останавливает CPU профилирование; повторный вызов ничего не делает
func (p *Profiler) stopCPUProfile() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cpuTimer != nil {
		p.cpuTimer.Stop()
		p.cpuTimer = nil
	}
	if p.cpuFile == nil {
		return nil
	}

	rpprof.StopCPUProfile()

	err := p.cpuFile.Close()
	p.cpuFile = nil
	if err != nil {
		return fmt.Errorf("failed to close CPU profile file: %w", err)
	}

	p.logger.Info("Stopped CPU profiling", zap.String("file", p.config.CPUProfile))
	return nil
}

// writeMemProfile записывает профиль памяти в файл
func (p *Profiler) writeMemProfile() error {
	file, err := os.Create(p.config.MemProfile)
	if err != nil {
		return fmt.Errorf("failed to create memory profile file: %w", err)
	}
	defer file.Close()

	runtime.GC()

	if err := rpprof.WriteHeapProfile(file); err != nil {
		return fmt.Errorf("failed to write memory profile: %w", err)
	}

	p.logger.Info("Written memory profile", zap.String("file", p.config.MemProfile))
	return nil
}

// GetMemStats возвращает статистику памяти процесса
func (p *Profiler) GetMemStats() runtime.MemStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m
}

// LogMemStats логирует статистику памяти процесса
func (p *Profiler) LogMemStats() {
	if !p.config.Enable {
		return
	}

	m := p.GetMemStats()
	p.logger.Info("Memory statistics",
		zap.Uint64("alloc_mb", m.Alloc/1024/1024),
		zap.Uint64("total_alloc_mb", m.TotalAlloc/1024/1024),
		zap.Uint64("sys_mb", m.Sys/1024/1024),
		zap.Uint32("num_gc", m.NumGC),
		zap.Int("goroutines", runtime.NumGoroutine()),
	)
}
