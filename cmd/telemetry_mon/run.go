package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"telemetry_mon/internal/config"
	"telemetry_mon/internal/counters"
	"telemetry_mon/internal/inventory"
	"telemetry_mon/internal/logger"
	"telemetry_mon/internal/monitor"
	"telemetry_mon/internal/profiler"
	"telemetry_mon/internal/scheduler"
	"telemetry_mon/internal/sensors"
	"telemetry_mon/internal/svcctl"
)

func newRunCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Poll CPU, memory, disks and services until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(cmd.Context(), cfg, logger.Logger)
		},
	}
}

// runMonitor собирает агрегаторы, запускает планировщик и ждет сигнала остановки
func runMonitor(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	log.Info("Starting telemetry monitor",
		zap.String("version", version),
		zap.Duration("cpu_interval", cfg.CPUInterval),
		zap.Duration("memory_interval", cfg.MemoryInterval),
		zap.Duration("disk_interval", cfg.DiskInterval),
		zap.Duration("services_interval", cfg.ServicesInterval))

	prof := profiler.New(profiler.Config{
		Enable:      cfg.ProfileEnable,
		HTTPPort:    cfg.ProfileHTTPPort,
		CPUProfile:  cfg.ProfileCPUFile,
		MemProfile:  cfg.ProfileMemFile,
		ProfileTime: cfg.ProfileTime,
	}, log)
	if err := prof.Start(ctx); err != nil {
		return fmt.Errorf("failed to start profiler: %w", err)
	}
	defer func() {
		if err := prof.Stop(); err != nil {
			log.Error("Failed to stop profiler", zap.Error(err))
		}
	}()

	inv := inventory.New(inventory.NewSource(), log)
	batch := loadInventory(ctx, inv, log)

	sampler := counters.NewSampler(counters.NewProvider(), cfg.SampleTimeout, log)
	defer func() {
		if err := sampler.Close(); err != nil {
			log.Error("Failed to close counter sampler", zap.Error(err))
		}
	}()

	var sensorReader monitor.SensorReader
	if cfg.SensorsEnable {
		if probe := openProbe(ctx, log); probe != nil {
			defer probe.Close()
			sensorReader = probe
		}
	}

	sched := scheduler.New(log)
	rep := &reporter{logger: log.Named("summary"), profiler: prof}

	rep.cpu = monitor.NewCPU(ctx, sampler, batch.Processor, inv, sensorReader, cfg.HistorySize, log)
	rep.memory = monitor.NewMemory(ctx, sampler, batch.Memory, cfg.HistorySize, log)
	rep.disk = monitor.NewDisk(ctx, sampler, batch.Disks,
		counters.NewResolver(cfg.InstanceLabel, cfg.SystemDrive), inv, cfg.HistorySize, log)

	if err := sched.Add("cpu", cfg.CPUInterval, rep.cpu); err != nil {
		return err
	}
	if err := sched.Add("memory", cfg.MemoryInterval, rep.memory); err != nil {
		return err
	}
	if err := sched.Add("disk", cfg.DiskInterval, rep.disk); err != nil {
		return err
	}

	backend, err := svcctl.NewBackend(ctx, log)
	if err != nil {
		log.Warn("Service control unavailable", zap.Error(err))
	} else {
		rep.services = monitor.NewServices(ctx, backend, cfg.ServiceActionTimeout, log)
		if err := sched.Add("services", cfg.ServicesInterval, rep.services); err != nil {
			return err
		}
	}

	if err := sched.Add("summary", cfg.ServicesInterval, rep); err != nil {
		return err
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	<-ctx.Done()
	log.Info("Shutdown signal received")

	sched.Stop()
	if err := sched.Wait(); err != nil {
		log.Error("Failed to release aggregators", zap.Error(err))
	}

	for _, st := range sched.Stats() {
		log.Info("Polling loop statistics",
			zap.String("loop", st.Name),
			zap.Int64("ticks", st.Ticks),
			zap.Int64("failures", st.Failures))
	}

	log.Info("Telemetry monitor stopped")
	return nil
}

// loadInventory перечисляет оборудование; при отказе источника агрегаторы
// запускаются с пустыми описаниями
func loadInventory(ctx context.Context, inv *inventory.Inventory, log *zap.Logger) *inventory.Batch {
	batch, err := inv.Enumerate(ctx)
	if err != nil {
		log.Error("Hardware inventory unavailable, continuing without hardware descriptions", zap.Error(err))
		return &inventory.Batch{}
	}
	return batch
}

// openProbe открывает дерево датчиков; без датчиков мониторинг продолжается
func openProbe(ctx context.Context, log *zap.Logger) *sensors.Probe {
	tree, err := sensors.NewTree(ctx)
	if err != nil {
		log.Warn("Hardware sensors unavailable", zap.Error(err))
		if tree != nil {
			_ = tree.Close()
		}
		return nil
	}
	return sensors.NewProbe(tree, log)
}
