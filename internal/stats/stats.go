// Package stats reduces latency observations into the run's result summary.
package stats

import (
	"fmt"
	"sort"
	"time"

	"github.com/fairyhunter13/queue-latency-bench/internal/domain"
)

// MinCategoryTailSamples is the smallest category size for which P95/P99 are reported.
const MinCategoryTailSamples = 20

// Percentile returns sorted[floor(n*k)], the index-rule percentile of an
// ascending slice. No interpolation. It panics on an empty slice.
func Percentile(sorted []float64, k float64) float64 {
	idx := int(float64(len(sorted)) * k)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

// Summarize builds the result summary for a run. With no observations it
// returns the totals (completion rate 0) together with domain.ErrNoCompletedTasks.
func Summarize(kind domain.QueueKind, observations []domain.LatencyObservation, allSubmitted int, at time.Time) (domain.ResultSummary, error) {
	s := domain.ResultSummary{
		QueueType:      kind.Label(),
		TotalSubmitted: allSubmitted,
		TotalCompleted: len(observations),
		Timestamp:      at,
	}
	if len(observations) == 0 {
		return s, fmt.Errorf("op=stats.Summarize: %w", domain.ErrNoCompletedTasks)
	}
	if allSubmitted < len(observations) {
		return s, fmt.Errorf("op=stats.Summarize: %w: %d observations for %d submitted tasks",
			domain.ErrInvalidArgument, len(observations), allSubmitted)
	}

	n := len(observations)
	sorted := make([]float64, n)
	byCategory := make(map[domain.JobCategory][]float64, len(domain.JobCategories))
	sum := 0.0
	for i, o := range observations {
		sorted[i] = o.Latency
		sum += o.Latency
		byCategory[o.Category] = append(byCategory[o.Category], o.Latency)
		if o.Phase == domain.PhaseDrain {
			s.DrainCompleted++
		}
	}
	sort.Float64s(sorted)

	s.CompletionRate = float64(n) / float64(allSubmitted)
	s.MinLatency = sorted[0]
	s.MaxLatency = sorted[n-1]
	s.AverageLatency = sum / float64(n)
	s.P50 = Percentile(sorted, 0.50)
	s.P95 = Percentile(sorted, 0.95)
	s.P99 = Percentile(sorted, 0.99)
	s.Latencies = sorted

	s.ShortTasks = len(byCategory[domain.JobShort])
	s.LongTasks = len(byCategory[domain.JobLong])
	s.Categories = make(map[domain.JobCategory]domain.CategoryStats, len(byCategory))
	for cat, lats := range byCategory {
		s.Categories[cat] = categoryStats(lats)
	}
	return s, nil
}

func categoryStats(lats []float64) domain.CategoryStats {
	sorted := append([]float64(nil), lats...)
	sort.Float64s(sorted)
	cs := domain.CategoryStats{
		Count:  len(sorted),
		Median: sorted[len(sorted)/2],
	}
	if len(sorted) >= MinCategoryTailSamples {
		p95 := Percentile(sorted, 0.95)
		p99 := Percentile(sorted, 0.99)
		cs.P95 = &p95
		cs.P99 = &p99
	}
	return cs
}
