package app_test

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/queue-latency-bench/internal/adapter/repo/jsonfile"
	"github.com/fairyhunter13/queue-latency-bench/internal/adapter/stubtarget"
	"github.com/fairyhunter13/queue-latency-bench/internal/adapter/targetapi"
	"github.com/fairyhunter13/queue-latency-bench/internal/app"
	"github.com/fairyhunter13/queue-latency-bench/internal/config"
	"github.com/fairyhunter13/queue-latency-bench/internal/domain"
	"github.com/fairyhunter13/queue-latency-bench/internal/usecase"
)

func stubTarget(t *testing.T, completeAfter map[domain.JobCategory]int) *targetapi.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	srv := httptest.NewServer(stubtarget.NewServer(stubtarget.NewStore(rdb, completeAfter), 0).Router())
	t.Cleanup(srv.Close)
	return targetapi.New(srv.URL, 2*time.Second)
}

func testConfig() config.Config {
	return config.Config{
		AppEnv:             "test",
		QueueKind:          "pq",
		HTTPClientTimeout:  2 * time.Second,
		TargetHealthPath:   "/healthz",
		TargetReadyTimeout: 2 * time.Second,
		Users:              3,
		SpawnRate:          100,
		RunTime:            300 * time.Millisecond,
		WaitMin:            5 * time.Millisecond,
		WaitMax:            10 * time.Millisecond,
		WeightShort:        1,
		WeightLong:         1,
		WeightCheck:        1,
		DrainMaxWait:       3 * time.Second,
		DrainInterval:      10 * time.Millisecond,
		DrainProgressEvery: 100,
	}
}

func TestRunner_EndToEndAgainstStub(t *testing.T) {
	target := stubTarget(t, map[domain.JobCategory]int{domain.JobShort: 1, domain.JobLong: 2})
	path := filepath.Join(t.TempDir(), "results.json")
	var out bytes.Buffer

	r, err := app.NewRunner(testConfig(), target,
		[]usecase.Sink{{Name: "jsonfile", Repo: jsonfile.New(path), Primary: true}}, &out)
	require.NoError(t, err)

	summary, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, r.RunID(), summary.RunID)
	assert.Equal(t, "priority", summary.QueueType)
	assert.Positive(t, summary.TotalSubmitted)
	assert.Equal(t, summary.TotalSubmitted, summary.TotalCompleted)
	assert.Equal(t, 1.0, summary.CompletionRate)
	assert.Equal(t, summary.TotalCompleted, summary.ShortTasks+summary.LongTasks)
	assert.Contains(t, out.String(), "PRIORITY QUEUE - FINAL LATENCY ANALYSIS")

	saved, err := jsonfile.Load(path)
	require.NoError(t, err)
	assert.Equal(t, summary.RunID, saved.RunID)
	assert.Equal(t, summary.TotalCompleted, saved.TotalCompleted)

	p := r.Progress()
	assert.Equal(t, app.PhaseDone, p.Phase)
	assert.Equal(t, 0, p.Outstanding)
	assert.Equal(t, int64(summary.TotalSubmitted), p.Load.Submits)
}

func TestRunner_CancelledBeforeLoadStillFinalizes(t *testing.T) {
	target := stubTarget(t, nil)
	cfg := testConfig()
	cfg.TargetHealthPath = ""
	path := filepath.Join(t.TempDir(), "results.json")

	r, err := app.NewRunner(cfg, target,
		[]usecase.Sink{{Name: "jsonfile", Repo: jsonfile.New(path), Primary: true}}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := r.Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNoCompletedTasks))
	assert.Equal(t, 0, summary.TotalSubmitted)

	_, err = jsonfile.Load(path)
	assert.ErrorIs(t, err, domain.ErrNotFound, "no result file for an empty run")
}

func TestRunner_TargetNeverReady(t *testing.T) {
	cfg := testConfig()
	cfg.TargetReadyTimeout = 300 * time.Millisecond
	target := targetapi.New("http://127.0.0.1:1", 100*time.Millisecond)

	r, err := app.NewRunner(cfg, target, nil, nil)
	require.NoError(t, err)
	_, err = r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op=app.WaitForTarget")
	assert.Equal(t, app.PhaseStarting, r.Progress().Phase)
}

func TestNewRunner_InvalidLoadShape(t *testing.T) {
	cfg := testConfig()
	cfg.Users = 0
	_, err := app.NewRunner(cfg, stubTarget(t, nil), nil, nil)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}
