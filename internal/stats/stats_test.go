package stats

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/queue-latency-bench/internal/domain"
)

func observations(cat domain.JobCategory, lats ...float64) []domain.LatencyObservation {
	out := make([]domain.LatencyObservation, len(lats))
	for i, l := range lats {
		out[i] = domain.LatencyObservation{TaskID: fmt.Sprintf("%s-%d", cat, i), Category: cat, Latency: l, Phase: domain.PhaseLoad}
	}
	return out
}

func TestPercentile_IndexRule(t *testing.T) {
	// 0.1, 0.2, ..., 10.0 given in reverse to exercise the sort.
	lats := make([]float64, 0, 100)
	for i := 100; i >= 1; i-- {
		lats = append(lats, float64(i)/10)
	}
	s, err := Summarize(domain.QueueFIFO, observations(domain.JobShort, lats...), 100, time.Now())
	require.NoError(t, err)

	require.Len(t, s.Latencies, 100)
	assert.Equal(t, s.Latencies[50], s.P50)
	assert.Equal(t, s.Latencies[95], s.P95)
	assert.Equal(t, s.Latencies[99], s.P99)
	assert.InDelta(t, 5.1, s.P50, 1e-9)
	assert.InDelta(t, 9.6, s.P95, 1e-9)
	assert.InDelta(t, 10.0, s.P99, 1e-9)
	assert.InDelta(t, 0.1, s.MinLatency, 1e-9)
	assert.InDelta(t, 10.0, s.MaxLatency, 1e-9)
	assert.InDelta(t, 5.05, s.AverageLatency, 1e-9)
}

func TestPercentile_SmallInputs(t *testing.T) {
	tests := []struct {
		sorted []float64
		k      float64
		want   float64
	}{
		{[]float64{7}, 0.99, 7},
		{[]float64{1, 2}, 0.50, 2},
		{[]float64{1, 2, 3}, 0.95, 3},
		{[]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.50, 6},
		{[]float64{1, 2, 3}, 1.0, 3},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d/k=%v", len(tt.sorted), tt.k), func(t *testing.T) {
			assert.Equal(t, tt.want, Percentile(tt.sorted, tt.k))
		})
	}
}

func TestSummarize_Empty(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s, err := Summarize(domain.QueuePriority, nil, 5, at)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNoCompletedTasks))
	assert.Equal(t, 5, s.TotalSubmitted)
	assert.Equal(t, 0, s.TotalCompleted)
	assert.Equal(t, 0.0, s.CompletionRate)
	assert.Equal(t, "priority", s.QueueType)
	assert.Nil(t, s.Latencies)
}

func TestSummarize_RejectsMoreObservationsThanSubmissions(t *testing.T) {
	_, err := Summarize(domain.QueueFIFO, observations(domain.JobShort, 1, 2), 1, time.Now())
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestSummarize_CompletionRateAndCategories(t *testing.T) {
	obs := observations(domain.JobShort, 0.4, 0.2, 0.3)
	obs = append(obs, observations(domain.JobLong, 5, 4)...)
	obs[4].Phase = domain.PhaseDrain

	s, err := Summarize(domain.QueueFIFO, obs, 10, time.Now())
	require.NoError(t, err)

	assert.InDelta(t, 0.5, s.CompletionRate, 1e-9)
	assert.Equal(t, 3, s.ShortTasks)
	assert.Equal(t, 2, s.LongTasks)
	assert.Equal(t, 1, s.DrainCompleted)

	short := s.Categories[domain.JobShort]
	assert.Equal(t, 3, short.Count)
	assert.Equal(t, 0.3, short.Median)
	assert.Nil(t, short.P95, "tail percentiles need enough samples")

	long := s.Categories[domain.JobLong]
	assert.Equal(t, 2, long.Count)
	assert.Equal(t, 5.0, long.Median)
}

func TestSummarize_CategoryTailsWithEnoughSamples(t *testing.T) {
	lats := make([]float64, MinCategoryTailSamples)
	for i := range lats {
		lats[i] = float64(i + 1)
	}
	s, err := Summarize(domain.QueueFIFO, observations(domain.JobLong, lats...), len(lats), time.Now())
	require.NoError(t, err)

	long := s.Categories[domain.JobLong]
	require.NotNil(t, long.P95)
	require.NotNil(t, long.P99)
	assert.Equal(t, 20.0, *long.P95) // floor(20*0.95) = 19
	assert.Equal(t, 20.0, *long.P99)
	assert.Equal(t, 11.0, long.Median)
	_, hasShort := s.Categories[domain.JobShort]
	assert.False(t, hasShort)
}

func TestSummarize_FullCompletion(t *testing.T) {
	s, err := Summarize(domain.QueueFIFO, observations(domain.JobShort, 1, 1, 1, 1), 4, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1.0, s.CompletionRate)
}

func TestWriteReport(t *testing.T) {
	obs := observations(domain.JobShort, 0.5, 1.5)
	s, err := Summarize(domain.QueuePriority, obs, 3, time.Now())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, s))
	out := buf.String()
	assert.Contains(t, out, "PRIORITY QUEUE - FINAL LATENCY ANALYSIS")
	assert.Contains(t, out, "Total completed tasks: 2 / 3 (66.7%)")
	assert.Contains(t, out, "--- Short Jobs (2 tasks) ---")
	assert.NotContains(t, out, "Long Jobs")
}
