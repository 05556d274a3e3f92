package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"telemetry_mon/internal/config"
	"telemetry_mon/internal/logger"
)

// переопределяется при сборке через ldflags
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd собирает дерево команд; конфигурация и логгер
// инициализируются перед выполнением любой подкоманды
func newRootCmd() *cobra.Command {
	cfg := config.NewConfig()

	root := &cobra.Command{
		Use:           "telemetry_mon",
		Short:         "Local hardware telemetry and service control",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(cmd); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := logger.Initialize(cfg.LogLevel); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Cleanup()
		},
	}

	config.AddFlags(root)

	root.AddCommand(
		newRunCmd(cfg),
		newInventoryCmd(cfg),
		newServicesCmd(cfg),
		newServiceCmd(cfg),
	)

	return root
}
