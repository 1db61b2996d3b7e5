package app

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/queue-latency-bench/internal/loadgen"
	"github.com/fairyhunter13/queue-latency-bench/internal/tracker"
)

// Phase names reported by the status server.
const (
	PhaseStarting = "starting"
	PhaseLoad     = "load"
	PhaseDrain    = "drain"
	PhaseDone     = "done"
)

// Progress is the live view served on /v1/progress.
type Progress struct {
	RunID       string        `json:"run_id"`
	QueueKind   string        `json:"queue_kind"`
	Phase       string        `json:"phase"`
	ActiveUsers int           `json:"active_users"`
	Tasks       tracker.Stats `json:"tasks"`
	Outstanding int           `json:"outstanding"`
	Load        loadgen.Stats `json:"load"`
}

// ProgressReporter periodically logs the run's progress.
type ProgressReporter struct {
	snapshot func() Progress
	interval time.Duration
}

// NewProgressReporter returns nil when snapshot is nil.
func NewProgressReporter(snapshot func() Progress, interval time.Duration) *ProgressReporter {
	if snapshot == nil {
		return nil
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &ProgressReporter{snapshot: snapshot, interval: interval}
}

// Run reports on every tick until ctx is done.
func (r *ProgressReporter) Run(ctx context.Context) {
	if r == nil {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reportOnce(ctx)
		}
	}
}

func (r *ProgressReporter) reportOnce(ctx context.Context) {
	_, span := otel.Tracer("loadtest.progress").Start(ctx, "ProgressReporter.reportOnce")
	defer span.End()

	p := r.snapshot()
	span.SetAttributes(
		attribute.String("run.phase", p.Phase),
		attribute.Int("tasks.submitted", p.Tasks.Submitted),
		attribute.Int("tasks.completed", p.Tasks.Completed),
	)
	slog.Info("load progress",
		slog.String("phase", p.Phase),
		slog.Int("users", p.ActiveUsers),
		slog.Int("submitted", p.Tasks.Submitted),
		slog.Int("completed", p.Tasks.Completed),
		slog.Int("outstanding", p.Outstanding),
		slog.Int64("submit_failures", p.Load.SubmitFailures))
}
