package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/queue-latency-bench/internal/domain"
	logctx "github.com/fairyhunter13/queue-latency-bench/internal/observability"
	"github.com/fairyhunter13/queue-latency-bench/internal/stats"
	"github.com/fairyhunter13/queue-latency-bench/internal/tracker"
)

// Sink is a destination for the result summary. Only a Primary sink's error
// fails the run; the others are logged.
type Sink struct {
	Name    string
	Repo    domain.SummaryRepository
	Primary bool
}

// Drainer is the drain phase as seen by the Finalizer.
type Drainer interface {
	Drain(ctx context.Context, maxWait time.Duration) DrainReport
}

// BackoffConfig bounds the retries of a sink save.
type BackoffConfig struct {
	MaxElapsedTime  time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// Finalizer runs once after the load phase stops: drain, summarize, report, persist.
type Finalizer struct {
	Tracker *tracker.Tracker
	Drainer Drainer
	Queue   domain.QueueKind
	RunID   string
	MaxWait time.Duration
	// Out receives the human-readable report; nil disables it.
	Out     io.Writer
	Sinks   []Sink
	Backoff BackoffConfig
	Now     func() time.Time
}

// Finalize drains the outstanding tasks and persists the run summary. When
// nothing completed it returns the bare totals with domain.ErrNoCompletedTasks
// and persists nothing.
func (f Finalizer) Finalize(ctx context.Context, stopTime time.Time) (domain.ResultSummary, error) {
	ctx, span := otel.Tracer("loadtest.finalize").Start(ctx, "Finalizer.Finalize")
	defer span.End()
	lg := logctx.LoggerFromContext(ctx)

	st := f.Tracker.Stats()
	lg.Info("load stopped",
		slog.Time("stop_time", stopTime),
		slog.Int("submitted", st.Submitted),
		slog.Int("completed", st.Completed),
		slog.Int("outstanding", st.Outstanding()))

	if f.Drainer != nil {
		rep := f.Drainer.Drain(ctx, f.MaxWait)
		span.SetAttributes(attribute.Int("drain.remaining", rep.Remaining))
	}

	summary, err := stats.Summarize(f.Queue, f.Tracker.Observations(), len(f.Tracker.Submitted()), f.now())
	summary.RunID = f.RunID
	if errors.Is(err, domain.ErrNoCompletedTasks) {
		lg.Warn("no completed tasks for analysis", slog.Int("submitted", summary.TotalSubmitted))
		return summary, fmt.Errorf("op=usecase.Finalize: %w", err)
	}
	if err != nil {
		span.RecordError(err)
		return summary, fmt.Errorf("op=usecase.Finalize: %w", err)
	}
	span.SetAttributes(
		attribute.Int("result.completed", summary.TotalCompleted),
		attribute.Float64("result.completion_rate", summary.CompletionRate),
	)

	if f.Out != nil {
		if err := stats.WriteReport(f.Out, summary); err != nil {
			lg.Warn("failed to write report", slog.Any("error", err))
		}
	}

	var primaryErr error
	for _, sink := range f.Sinks {
		if err := f.save(ctx, sink, summary); err != nil {
			span.RecordError(err)
			if sink.Primary {
				lg.Error("failed to save results", slog.String("sink", sink.Name), slog.Any("error", err))
				primaryErr = errors.Join(primaryErr, err)
				continue
			}
			lg.Warn("failed to save results", slog.String("sink", sink.Name), slog.Any("error", err))
			continue
		}
		lg.Info("results saved", slog.String("sink", sink.Name))
	}
	if primaryErr != nil {
		return summary, fmt.Errorf("op=usecase.Finalize: %w", primaryErr)
	}
	return summary, nil
}

func (f Finalizer) save(ctx context.Context, sink Sink, s domain.ResultSummary) error {
	op := func() error {
		err := sink.Repo.Save(ctx, s)
		if errors.Is(err, domain.ErrInvalidArgument) {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(f.backoff(), ctx)); err != nil {
		return fmt.Errorf("sink %s: %w", sink.Name, err)
	}
	return nil
}

func (f Finalizer) backoff() *backoff.ExponentialBackOff {
	expo := backoff.NewExponentialBackOff()
	if f.Backoff.MaxElapsedTime > 0 {
		expo.MaxElapsedTime = f.Backoff.MaxElapsedTime
	}
	if f.Backoff.InitialInterval > 0 {
		expo.InitialInterval = f.Backoff.InitialInterval
	}
	if f.Backoff.MaxInterval > 0 {
		expo.MaxInterval = f.Backoff.MaxInterval
	}
	if f.Backoff.Multiplier > 0 {
		expo.Multiplier = f.Backoff.Multiplier
	}
	return expo
}

func (f Finalizer) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}
