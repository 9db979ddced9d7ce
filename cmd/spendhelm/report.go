package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"spendhelm/internal/analytics"
)

func (a *app) reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Spending summary for a period",
		Long: `Show totals, the category breakdown and daily spending.

By default the server computes the report. With --local the expenses are
fetched and summarised on this machine in your preferred timezone.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, _ := cmd.Flags().GetString("period")
			period := analytics.ParsePeriod(raw)
			local, _ := cmd.Flags().GetBool("local")

			var (
				r   analytics.Report
				err error
			)
			if local {
				r, err = a.client.Dashboard(cmd.Context(), string(period))
			} else {
				r, err = a.client.Analytics(cmd.Context(), string(period))
			}
			if err != nil {
				return fmt.Errorf("failed to build report: %w", err)
			}
			if a.jsonOutput() {
				return a.printJSON(r)
			}
			return a.printReport(r)
		},
	}
	cmd.Flags().String("period", "month", "week, month or all")
	cmd.Flags().Bool("local", false, "summarise on this machine instead of the server")
	return cmd
}
