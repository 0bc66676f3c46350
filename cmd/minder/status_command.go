package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"minder/internal/statusdoc"
)

const maskedValue = "********"

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var plain bool
	var reveal bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the last published node status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			doc, err := statusdoc.Read(cfg.Paths.StatsPath)
			if err != nil {
				return fmt.Errorf("no published status yet (is minder run active?): %w", err)
			}

			out := cmd.OutOrStdout()
			if plain {
				for _, entry := range doc.Entries {
					fmt.Fprintf(out, "%s: %s\n", entry.Label, displayValue(entry.Stat, reveal))
				}
				return nil
			}

			rows := make([][]string, 0, doc.Len())
			for _, entry := range doc.Entries {
				description := ""
				if entry.Stat.Description != nil {
					description = *entry.Stat.Description
				}
				rows = append(rows, []string{entry.Label, displayValue(entry.Stat, reveal), description})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"Stat", "Value", "Description"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "Print key: value lines instead of a table")
	cmd.Flags().BoolVar(&reveal, "reveal", false, "Show masked values such as passwords and connection URLs")
	return cmd
}

// displayValue hides masked stats unless the caller asked to reveal them.
func displayValue(stat statusdoc.Stat, reveal bool) string {
	if stat.Masked && !reveal {
		return maskedValue
	}
	return stat.Value
}
