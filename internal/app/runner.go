// Package app wires the load test together: readiness, the load phase, the
// status server and finalization.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/fairyhunter13/queue-latency-bench/internal/config"
	"github.com/fairyhunter13/queue-latency-bench/internal/domain"
	"github.com/fairyhunter13/queue-latency-bench/internal/loadgen"
	obsctx "github.com/fairyhunter13/queue-latency-bench/internal/observability"
	"github.com/fairyhunter13/queue-latency-bench/internal/tracker"
	"github.com/fairyhunter13/queue-latency-bench/internal/usecase"
)

// Target is the API under test as the runner needs it.
type Target interface {
	domain.TargetAPI
	TargetPinger
}

// Runner executes one load-test run.
type Runner struct {
	cfg       config.Config
	target    Target
	runID     string
	tracker   *tracker.Tracker
	driver    *loadgen.Driver
	finalizer usecase.Finalizer
	phase     atomic.Value // string

	// ProgressInterval is how often progress is logged during the run.
	ProgressInterval time.Duration
}

// NewRunner builds the per-run state: a fresh tracker, the use cases and the load driver.
func NewRunner(cfg config.Config, target Target, sinks []usecase.Sink, out io.Writer) (*Runner, error) {
	tr := tracker.New()
	submit := usecase.NewSubmitService(target, tr, cfg.Queue(), cfg.ClientTaskIDs)
	poll := usecase.NewPollService(target, tr)

	driver, err := loadgen.New(loadgen.Config{
		Users:     cfg.Users,
		SpawnRate: cfg.SpawnRate,
		RunTime:   cfg.RunTime,
		WaitMin:   cfg.WaitMin,
		WaitMax:   cfg.WaitMax,
		Weights:   loadgen.Weights{Short: cfg.WeightShort, Long: cfg.WeightLong, Check: cfg.WeightCheck},
		Seed:      uint64(time.Now().UnixNano()),
	}, submit, poll)
	if err != nil {
		return nil, fmt.Errorf("op=app.NewRunner: %w", err)
	}

	maxElapsed, initial, maxInterval, mult := cfg.GetSaveBackoffConfig()
	runID := ulid.Make().String()
	r := &Runner{
		cfg:     cfg,
		target:  target,
		runID:   runID,
		tracker: tr,
		driver:  driver,
		finalizer: usecase.Finalizer{
			Tracker: tr,
			Drainer: usecase.NewDrainService(target, tr, cfg.DrainInterval, cfg.DrainProgressEvery),
			Queue:   cfg.Queue(),
			RunID:   runID,
			MaxWait: cfg.DrainMaxWait,
			Out:     out,
			Sinks:   sinks,
			Backoff: usecase.BackoffConfig{
				MaxElapsedTime:  maxElapsed,
				InitialInterval: initial,
				MaxInterval:     maxInterval,
				Multiplier:      mult,
			},
			Now: time.Now,
		},
		ProgressInterval: 10 * time.Second,
	}
	r.phase.Store(PhaseStarting)
	return r, nil
}

// RunID identifies this run in logs and persisted results.
func (r *Runner) RunID() string { return r.runID }

// Progress returns a snapshot for the status server.
func (r *Runner) Progress() Progress {
	st := r.tracker.Stats()
	return Progress{
		RunID:       r.runID,
		QueueKind:   string(r.cfg.Queue()),
		Phase:       r.phase.Load().(string),
		ActiveUsers: r.driver.ActiveUsers(),
		Tasks:       st,
		Outstanding: st.Outstanding(),
		Load:        r.driver.Stats(),
	}
}

// Run waits for the target, drives load until RunTime elapses or ctx is
// cancelled, then finalizes. Finalization is not cut short by ctx
// cancellation; the drain is bounded by DRAIN_MAX_WAIT instead.
func (r *Runner) Run(ctx context.Context) (domain.ResultSummary, error) {
	lg := slog.Default().With(slog.String("run_id", r.runID))
	ctx = obsctx.ContextWithLogger(obsctx.ContextWithRunID(ctx, r.runID), lg)

	if r.cfg.TargetHealthPath != "" {
		if err := WaitForTarget(ctx, r.target, r.cfg.TargetHealthPath, r.cfg.TargetReadyTimeout); err != nil {
			return domain.ResultSummary{}, fmt.Errorf("op=app.Run: %w", err)
		}
	}

	stopStatus := r.startStatusServer(lg)
	defer stopStatus()

	reporterCtx, stopReporter := context.WithCancel(ctx)
	go NewProgressReporter(r.Progress, r.ProgressInterval).Run(reporterCtx)

	lg.Info("load phase starting",
		slog.String("queue_kind", string(r.cfg.Queue())),
		slog.Int("users", r.cfg.Users),
		slog.Float64("spawn_rate", r.cfg.SpawnRate),
		slog.Duration("run_time", r.cfg.RunTime))
	r.phase.Store(PhaseLoad)
	if _, err := r.driver.Run(ctx); err != nil {
		lg.Error("load phase failed", slog.Any("error", err))
	}
	stopReporter()
	stopTime := time.Now()

	r.phase.Store(PhaseDrain)
	summary, err := r.finalizer.Finalize(context.WithoutCancel(ctx), stopTime)
	r.phase.Store(PhaseDone)
	return summary, err
}

func (r *Runner) startStatusServer(lg *slog.Logger) func() {
	if r.cfg.StatusAddr == "" {
		return func() {}
	}
	srv := &http.Server{
		Addr:              r.cfg.StatusAddr,
		Handler:           BuildStatusRouter(r.cfg, r.Progress),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		lg.Info("status server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("status server error", slog.Any("error", err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
