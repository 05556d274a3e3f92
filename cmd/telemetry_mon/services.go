package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"telemetry_mon/internal/config"
	"telemetry_mon/internal/logger"
	"telemetry_mon/internal/monitor"
	"telemetry_mon/internal/svcctl"
)

func newServicesCmd(cfg *config.Config) *cobra.Command {
	var (
		status string
		mode   string
		search string
		enrich bool
	)

	cmd := &cobra.Command{
		Use:   "services",
		Short: "List OS services with status and statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			services, err := openServices(ctx, cfg, logger.Logger)
			if err != nil {
				return err
			}
			defer services.Close()

			if enrich {
				if err := services.EnrichAll(ctx); err != nil {
					logger.Logger.Warn("Service enrichment incomplete", zap.Error(err))
				}
			}

			list := services.Services()
			if search != "" {
				list = intersect(list, services.Search(search))
			}
			if status != "" {
				list = intersect(list, services.ByStatus(svcctl.ParseStatus(status)))
			}
			if mode != "" {
				list = intersect(list, services.ByStartMode(svcctl.ParseStartMode(mode)))
			}

			out := cmd.OutOrStdout()
			printServices(out, list)
			fmt.Fprintf(out, "\n%s\n", servicesSummary(services.Statistics()))
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Show only services with status (running, stopped, paused, ...)")
	cmd.Flags().StringVar(&mode, "start-mode", "", "Show only services with start mode (auto, manual, disabled, ...)")
	cmd.Flags().StringVar(&search, "search", "", "Case-insensitive substring of name, display name or description")
	cmd.Flags().BoolVar(&enrich, "details", false, "Query full details of every listed service")
	return cmd
}

func newServiceCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Control a single OS service",
	}

	actions := []struct {
		name  string
		short string
		run   func(s *monitor.Services, ctx context.Context, name string) monitor.ActionResult
	}{
		{"start", "Start a service", (*monitor.Services).Start},
		{"stop", "Stop a service", (*monitor.Services).Stop},
		{"restart", "Stop and start a service", (*monitor.Services).Restart},
		{"pause", "Pause a service", (*monitor.Services).Pause},
		{"continue", "Continue a paused service", (*monitor.Services).Continue},
	}

	for _, a := range actions {
		cmd.AddCommand(&cobra.Command{
			Use:   a.name + " NAME",
			Short: a.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()

				services, err := openServices(ctx, cfg, logger.Logger)
				if err != nil {
					return err
				}
				defer services.Close()

				res := a.run(services, ctx, args[0])
				fmt.Fprintln(cmd.OutOrStdout(), res.Message)
				if !res.OK {
					return fmt.Errorf("%s %s failed", a.name, args[0])
				}
				return nil
			},
		})
	}

	return cmd
}

// openServices подключается к диспетчеру служб и загружает список
func openServices(ctx context.Context, cfg *config.Config, log *zap.Logger) (*monitor.Services, error) {
	backend, err := svcctl.NewBackend(ctx, log)
	if err != nil {
		return nil, fmt.Errorf("service control unavailable: %w", err)
	}
	return monitor.NewServices(ctx, backend, cfg.ServiceActionTimeout, log), nil
}

// intersect оставляет записи list, присутствующие в other, сохраняя порядок list
func intersect(list, other []svcctl.Record) []svcctl.Record {
	keep := make(map[string]bool, len(other))
	for _, r := range other {
		keep[strings.ToLower(r.Name)] = true
	}

	out := make([]svcctl.Record, 0, len(list))
	for _, r := range list {
		if keep[strings.ToLower(r.Name)] {
			out = append(out, r)
		}
	}
	return out
}

func printServices(w io.Writer, list []svcctl.Record) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDISPLAY NAME\tSTATUS\tSTART MODE\tPID")
	for _, r := range list {
		pid := ""
		if r.PID != 0 {
			pid = fmt.Sprint(r.PID)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.Name, truncate(r.DisplayName, 48), r.Status.Display(), r.StartMode, pid)
	}
	tw.Flush()
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-3]) + "..."
}
