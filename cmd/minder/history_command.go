package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"minder/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent telemetry samples",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg.Paths.HistoryDB)
			if err != nil {
				return err
			}
			defer store.Close()

			samples, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(samples) == 0 {
				fmt.Fprintln(out, "No telemetry samples recorded yet")
				return nil
			}

			rows := make([][]string, 0, len(samples))
			for _, sample := range samples {
				rows = append(rows, []string{
					sample.RecordedAt.UTC().Format(time.RFC3339),
					strconv.Itoa(sample.Blocks),
					strconv.Itoa(sample.Headers),
					fmt.Sprintf("%.2f%%", 100*sample.Progress),
					fmt.Sprintf("%.2f GiB", float64(sample.SizeOnDisk)/(1024*1024*1024)),
					fmt.Sprintf("%d (%d in / %d out)", sample.Connections, sample.ConnectionsIn, sample.ConnectionsOut),
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"Recorded At", "Blocks", "Headers", "Progress", "Disk", "Connections"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of samples to show")
	return cmd
}
