package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"telemetry_mon/internal/config"
	"telemetry_mon/internal/inventory"
	"telemetry_mon/internal/logger"
)

func newInventoryCmd(cfg *config.Config) *cobra.Command {
	var withHealth bool

	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "Print processor, memory and disk inventory as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logger.Logger

			inv := inventory.New(inventory.NewSource(), log)
			batch, err := inv.Enumerate(ctx)
			if err != nil {
				return fmt.Errorf("failed to enumerate hardware: %w", err)
			}

			out := struct {
				*inventory.Batch
				Health map[int]inventory.DiskHealth `json:"health,omitempty"`
			}{Batch: batch}

			if withHealth {
				out.Health = make(map[int]inventory.DiskHealth, len(batch.Disks))
				for _, d := range batch.Disks {
					out.Health[d.Index] = inv.Health(ctx, d)
				}
			}

			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode inventory: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))

			log.Debug("Inventory printed",
				zap.Int("disks", len(batch.Disks)),
				zap.Int("skipped", len(batch.Skipped)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&withHealth, "health", false, "Query SMART health of every disk")
	return cmd
}
