package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/fairyhunter13/queue-latency-bench/internal/adapter/repo/jsonfile"
	"github.com/fairyhunter13/queue-latency-bench/internal/domain"
	"github.com/fairyhunter13/queue-latency-bench/internal/report"
)

// Compare two result files and print the improvement table.
func compareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <baseline.json> <candidate.json>",
		Short: "Compare the latency summaries of two runs.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			baseline, err := jsonfile.Load(args[0])
			if err != nil {
				return err
			}
			candidate, err := jsonfile.Load(args[1])
			if err != nil {
				return err
			}
			c := report.Compare(baseline, candidate)

			baseMetrics, err := cmd.Flags().GetString("baseline-metrics")
			if err != nil {
				return err
			}
			candMetrics, err := cmd.Flags().GetString("candidate-metrics")
			if err != nil {
				return err
			}
			if baseMetrics != "" || candMetrics != "" {
				report.AddResources(&c, loadResources(baseMetrics), loadResources(candMetrics))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s vs %s\n\n", c.BaselineLabel, c.CandidateLabel)
			return report.WriteTable(out, c)
		},
	}
	cmd.Flags().String("baseline-metrics", "", "Newline-delimited JSON resource samples recorded during the baseline run")
	cmd.Flags().String("candidate-metrics", "", "Newline-delimited JSON resource samples recorded during the candidate run")
	return cmd
}

// loadResources returns an empty summary when the file is absent or unreadable.
func loadResources(path string) report.ResourceSummary {
	if path == "" {
		return report.ResourceSummary{}
	}
	samples, err := report.LoadResourceSamples(path)
	if errors.Is(err, domain.ErrNotFound) {
		slog.Warn("resource metrics file not found; skipping", slog.String("path", path))
		return report.ResourceSummary{}
	}
	if err != nil {
		slog.Warn("failed to read resource metrics", slog.String("path", path), slog.Any("error", err))
	}
	return report.SummarizeResources(samples)
}
