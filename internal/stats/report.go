package stats

import (
	"fmt"
	"io"
	"strings"

	"github.com/fairyhunter13/queue-latency-bench/internal/domain"
)

var ruler = strings.Repeat("=", 60)

// WriteReport renders the human-readable latency analysis of a summary.
func WriteReport(w io.Writer, s domain.ResultSummary) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n%s QUEUE - FINAL LATENCY ANALYSIS\n%s\n", ruler, strings.ToUpper(s.QueueType), ruler)
	fmt.Fprintf(&b, "\nTotal completed tasks: %d / %d (%.1f%%)\n", s.TotalCompleted, s.TotalSubmitted, s.CompletionRate*100)
	if s.DrainCompleted > 0 {
		fmt.Fprintf(&b, "Completed after load stopped: %d\n", s.DrainCompleted)
	}
	fmt.Fprintf(&b, "Minimum latency: %.3fs\n", s.MinLatency)
	fmt.Fprintf(&b, "Average latency: %.3fs\n", s.AverageLatency)
	fmt.Fprintf(&b, "Maximum latency: %.3fs\n", s.MaxLatency)
	fmt.Fprintf(&b, "\nPercentiles:\n")
	fmt.Fprintf(&b, "  50th percentile: %.3fs\n", s.P50)
	fmt.Fprintf(&b, "  95th percentile: %.3fs\n", s.P95)
	fmt.Fprintf(&b, "  99th percentile: %.3fs\n", s.P99)

	for _, cat := range domain.JobCategories {
		cs, ok := s.Categories[cat]
		if !ok || cs.Count == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n--- %s Jobs (%d tasks) ---\n", titleCase(string(cat)), cs.Count)
		fmt.Fprintf(&b, "  Median: %.3fs\n", cs.Median)
		if cs.P95 != nil {
			fmt.Fprintf(&b, "  95th percentile: %.3fs\n", *cs.P95)
		}
		if cs.P99 != nil {
			fmt.Fprintf(&b, "  99th percentile: %.3fs\n", *cs.P99)
		}
	}
	fmt.Fprintf(&b, "\n%s\n", ruler)

	_, err := io.WriteString(w, b.String())
	return err
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
