package jsonfile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/queue-latency-bench/internal/domain"
)

func summary() domain.ResultSummary {
	return domain.ResultSummary{
		RunID:          "run-1",
		QueueType:      "fifo",
		TotalSubmitted: 3,
		TotalCompleted: 2,
		CompletionRate: 2.0 / 3.0,
		MinLatency:     1.5,
		AverageLatency: 2,
		MaxLatency:     2.5,
		P50:            2.5,
		P95:            2.5,
		P99:            2.5,
		ShortTasks:     2,
		Categories:     map[domain.JobCategory]domain.CategoryStats{domain.JobShort: {Count: 2, Median: 2.5}},
		Latencies:      []float64{1.5, 2.5},
		Timestamp:      time.Date(2025, 5, 4, 3, 2, 1, 0, time.UTC),
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "experiment_results.json")
	require.NoError(t, New(path).Save(context.Background(), summary()))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, summary(), got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestSave_FieldNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.json")
	require.NoError(t, New(path).Save(context.Background(), summary()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	for _, k := range []string{
		"queue_type", "total_tasks_submitted", "total_tasks_completed", "completion_rate",
		"min_latency", "average_latency", "max_latency", "p50", "p95", "p99",
		"short_tasks", "long_tasks", "latencies", "timestamp",
	} {
		assert.Contains(t, m, k)
	}
	assert.Contains(t, string(raw), "\n  \"queue_type\"", "indented with two spaces")
}

func TestSave_OverwritesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.json")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o600))
	s := summary()
	s.QueueType = "priority"
	require.NoError(t, New(path).Save(context.Background(), s))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "priority", got.QueueType)
}

func TestSave_Errors(t *testing.T) {
	require.ErrorIs(t, New("").Save(context.Background(), summary()), domain.ErrInvalidArgument)
	require.Error(t, New(filepath.Join(t.TempDir(), "missing-dir", "r.json")).Save(context.Background(), summary()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, New(filepath.Join(t.TempDir(), "r.json")).Save(ctx, summary()))
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.ErrorIs(t, err, domain.ErrNotFound)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))
	_, err = Load(bad)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}
