package usecase

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	obs "github.com/fairyhunter13/queue-latency-bench/internal/adapter/observability"
	"github.com/fairyhunter13/queue-latency-bench/internal/domain"
	logctx "github.com/fairyhunter13/queue-latency-bench/internal/observability"
	"github.com/fairyhunter13/queue-latency-bench/internal/tracker"
)

// DrainReport summarizes one drain.
type DrainReport struct {
	Considered int
	Completed  int
	Remaining  int
	Passes     int
	Checks     int
	Elapsed    time.Duration
	TimedOut   bool
}

// DrainService resolves the tasks still outstanding after the load phase.
type DrainService struct {
	API           domain.TargetAPI
	Tracker       *tracker.Tracker
	Interval      time.Duration
	ProgressEvery int
	Now           func() time.Time
	// Sleep waits between passes; it returns early with the context error.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewDrainService constructs a DrainService using the wall clock.
func NewDrainService(api domain.TargetAPI, tr *tracker.Tracker, interval time.Duration, progressEvery int) DrainService {
	if interval < 0 {
		interval = 0
	}
	if progressEvery <= 0 {
		progressEvery = 100
	}
	return DrainService{
		API:           api,
		Tracker:       tr,
		Interval:      interval,
		ProgressEvery: progressEvery,
		Now:           time.Now,
		Sleep:         sleepContext,
	}
}

// Drain checks every outstanding task in single-threaded passes until none
// remain, maxWait has elapsed, or ctx is done. Check errors leave the task in
// the working set. Tasks still unresolved are reported, not returned as an error.
func (s DrainService) Drain(ctx context.Context, maxWait time.Duration) DrainReport {
	tracer := otel.Tracer("loadtest.drain")
	ctx, span := tracer.Start(ctx, "DrainService.Drain")
	defer span.End()
	lg := logctx.LoggerFromContext(ctx)

	start := s.now()
	working := s.Tracker.Outstanding()
	rep := DrainReport{Considered: len(working)}
	span.SetAttributes(
		attribute.Int("drain.considered", rep.Considered),
		attribute.Float64("drain.max_wait_seconds", maxWait.Seconds()),
	)
	lg.Info("drain started", slog.Int("outstanding", rep.Considered), slog.Duration("max_wait", maxWait))

	checksSinceLog := 0
	for len(working) > 0 {
		if s.now().Sub(start) >= maxWait {
			rep.TimedOut = true
			break
		}
		if ctx.Err() != nil {
			break
		}

		var retired, checks int
		working, retired, checks = s.pass(ctx, working)
		rep.Passes++
		rep.Checks += checks
		rep.Completed += retired
		checksSinceLog += checks
		obs.SetDrainRemaining(len(working))

		if retired > 0 || checksSinceLog >= s.progressEvery() {
			lg.Info("drain progress",
				slog.Duration("elapsed", s.now().Sub(start)),
				slog.Int("completed", rep.Completed),
				slog.Int("total", rep.Considered),
				slog.Int("remaining", len(working)))
			checksSinceLog = 0
		}
		if len(working) == 0 {
			break
		}
		if err := s.sleep(ctx, s.Interval); err != nil {
			break
		}
	}

	rep.Remaining = len(working)
	rep.Elapsed = s.now().Sub(start)
	span.SetAttributes(
		attribute.Int("drain.completed", rep.Completed),
		attribute.Int("drain.remaining", rep.Remaining),
		attribute.Int("drain.passes", rep.Passes),
		attribute.Bool("drain.timed_out", rep.TimedOut),
	)
	if rep.Remaining > 0 {
		lg.Warn("drain finished with unresolved tasks",
			slog.Int("remaining", rep.Remaining),
			slog.Bool("timed_out", rep.TimedOut),
			slog.Duration("elapsed", rep.Elapsed))
	} else {
		lg.Info("drain finished", slog.Int("completed", rep.Completed), slog.Duration("elapsed", rep.Elapsed))
	}
	return rep
}

// pass checks each task once and returns the tasks that are still unresolved.
func (s DrainService) pass(ctx context.Context, working []domain.TaskRecord) ([]domain.TaskRecord, int, int) {
	ctx, span := otel.Tracer("loadtest.drain").Start(ctx, "DrainService.pass")
	defer span.End()

	remaining := working[:0:0]
	retired, checks := 0, 0
	for i, rec := range working {
		if ctx.Err() != nil {
			remaining = append(remaining, working[i:]...)
			break
		}
		checks++
		status, err := s.API.Status(ctx, rec.ID)
		if err != nil {
			obs.CheckStatus(OutcomeTransient.String())
			remaining = append(remaining, rec)
			continue
		}
		if !status.IsTerminal() {
			obs.CheckStatus(OutcomePending.String())
			remaining = append(remaining, rec)
			continue
		}
		obs.CheckStatus(OutcomeCompleted.String())
		if o, ok := s.Tracker.Retire(rec, s.now(), domain.PhaseDrain); ok {
			obs.CompleteTask(string(o.Category), string(o.Phase), o.Latency)
			retired++
		}
	}
	span.SetAttributes(
		attribute.Int("drain.pass_checks", checks),
		attribute.Int("drain.pass_retired", retired),
	)
	return remaining, retired, checks
}

func (s DrainService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s DrainService) sleep(ctx context.Context, d time.Duration) error {
	if s.Sleep != nil {
		return s.Sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

func (s DrainService) progressEvery() int {
	if s.ProgressEvery <= 0 {
		return 100
	}
	return s.ProgressEvery
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
