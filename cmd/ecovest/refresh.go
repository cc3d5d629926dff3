package main

import (
	"fmt"
	"io"
	"math"

	"github.com/spf13/cobra"

	"github.com/aristath/ecovest/internal/domain"
	"github.com/aristath/ecovest/internal/modules/impact"
	"github.com/aristath/ecovest/internal/scheduler"
)

func refreshMetricsCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "refresh-metrics",
		Short: "Recompute the per-1000 impact rates of every initiative",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, container, _, log, err := wire(cmd)
			if err != nil {
				return err
			}
			defer container.Close()

			out := cmd.OutOrStdout()
			if dryRun {
				fmt.Fprintln(out, "Running in DRY RUN mode - no changes will be saved")
			}

			job := scheduler.NewRefreshImpactMetricsJob(container.InitiativeRepo, container.Calculator, dryRun, log)
			results, err := job.Refresh(cmd.Context())
			printRefreshReport(out, results, dryRun)
			if err != nil {
				return err
			}

			if dryRun {
				fmt.Fprintln(out, "Dry run completed. No changes were made.")
			} else {
				fmt.Fprintln(out, "All initiatives updated with fresh impact metrics.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would change without writing anything")
	return cmd
}

// printRefreshReport writes one block per initiative. Dry runs show old and
// new rates side by side with the percentage change.
func printRefreshReport(w io.Writer, results []scheduler.RefreshResult, dryRun bool) {
	fmt.Fprintf(w, "Impact per %s invested, %d initiatives\n", domain.FormatAmount(impact.PreviewAmount), len(results))

	for i, r := range results {
		prefix := fmt.Sprintf("[%d/%d]", i+1, len(results))
		if r.Err != nil {
			fmt.Fprintf(w, "%s FAILED '%s' (ID: %d): %v\n", prefix, r.Title, r.InitiativeID, r.Err)
			continue
		}
		if !dryRun {
			fmt.Fprintf(w, "%s Updated '%s' with new impact metrics\n", prefix, r.Title)
			continue
		}

		fmt.Fprintf(w, "%s %s (ID: %d):\n", prefix, r.Title, r.InitiativeID)
		if r.Old != nil {
			fmt.Fprintf(w, "  OLD: %s\n", formatRates(*r.Old))
		} else {
			fmt.Fprintln(w, "  OLD: none")
		}
		fmt.Fprintf(w, "  NEW: %s\n", formatRates(r.New))
		fmt.Fprintf(w, "  CHANGE: Carbon: %s, Energy: %s, Water: %s\n",
			formatChange(r, domain.MetricCarbon),
			formatChange(r, domain.MetricEnergy),
			formatChange(r, domain.MetricWater))
	}
}

func formatRates(e domain.ImpactEstimate) string {
	return fmt.Sprintf("Carbon: %.2f kg CO₂, Energy: %.2f kWh, Water: %.2f L", e.Carbon, e.Energy, e.Water)
}

func formatChange(r scheduler.RefreshResult, m domain.Metric) string {
	pct, ok := r.PercentChange(m)
	if !ok || math.IsInf(pct, 0) {
		return "n/a"
	}
	return fmt.Sprintf("%+.1f%%", pct)
}
