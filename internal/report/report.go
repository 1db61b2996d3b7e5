// Package report compares two run summaries side by side.
package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fairyhunter13/queue-latency-bench/internal/domain"
)

// Row is one line of a comparison table.
type Row struct {
	Metric    string
	Baseline  string
	Candidate string
	// Improvement is the relative reduction from baseline to candidate in percent.
	// Empty for rows where a reduction is not meaningful.
	Improvement string
}

// Comparison is the tabular result of Compare.
type Comparison struct {
	BaselineLabel  string
	CandidateLabel string
	Rows           []Row
}

// Compare builds latency and volume rows for two runs. Lower latency is
// better, so a positive improvement means the candidate was faster.
func Compare(baseline, candidate domain.ResultSummary) Comparison {
	c := Comparison{
		BaselineLabel:  label(baseline, "baseline"),
		CandidateLabel: label(candidate, "candidate"),
	}
	latencies := []struct {
		name       string
		base, cand float64
	}{
		{"P50 Latency", baseline.P50, candidate.P50},
		{"P95 Latency", baseline.P95, candidate.P95},
		{"P99 Latency", baseline.P99, candidate.P99},
		{"Average Latency", baseline.AverageLatency, candidate.AverageLatency},
	}
	for _, l := range latencies {
		c.Rows = append(c.Rows, Row{
			Metric:      l.name,
			Baseline:    fmt.Sprintf("%.2fs", l.base),
			Candidate:   fmt.Sprintf("%.2fs", l.cand),
			Improvement: improvement(l.base, l.cand),
		})
	}
	c.Rows = append(c.Rows,
		Row{Metric: "Tasks Submitted", Baseline: fmt.Sprint(baseline.TotalSubmitted), Candidate: fmt.Sprint(candidate.TotalSubmitted)},
		Row{Metric: "Tasks Completed", Baseline: fmt.Sprint(baseline.TotalCompleted), Candidate: fmt.Sprint(candidate.TotalCompleted)},
		Row{
			Metric:    "Completion Rate",
			Baseline:  fmt.Sprintf("%.1f%%", baseline.CompletionRate*100),
			Candidate: fmt.Sprintf("%.1f%%", candidate.CompletionRate*100),
		},
	)
	return c
}

// ImprovementPercent returns (base-cand)/base*100. ok is false when base is 0.
func ImprovementPercent(base, cand float64) (pct float64, ok bool) {
	if base == 0 {
		return 0, false
	}
	return (base - cand) / base * 100, true
}

func improvement(base, cand float64) string {
	pct, ok := ImprovementPercent(base, cand)
	if !ok {
		return "N/A"
	}
	return fmt.Sprintf("%.1f%%", pct)
}

func label(s domain.ResultSummary, fallback string) string {
	if s.QueueType == "" {
		return fallback
	}
	return s.QueueType
}

// WriteTable renders the comparison as an aligned text table.
func WriteTable(w io.Writer, c Comparison) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Metric\t%s\t%s\tImprovement\n", c.BaselineLabel, c.CandidateLabel)
	fmt.Fprintf(tw, "------\t%s\t%s\t-----------\n", dashes(c.BaselineLabel), dashes(c.CandidateLabel))
	for _, r := range c.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Metric, r.Baseline, r.Candidate, r.Improvement)
	}
	return tw.Flush()
}

func dashes(s string) string { return strings.Repeat("-", len(s)) }
