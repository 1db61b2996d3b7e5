package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/queue-latency-bench/internal/domain"
)

// PgxPool is the subset of pgxpool used by SummaryRepo.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const schemaSQL = `CREATE TABLE IF NOT EXISTS loadtest_results (
	run_id TEXT PRIMARY KEY,
	queue_type TEXT NOT NULL,
	total_submitted INTEGER NOT NULL,
	total_completed INTEGER NOT NULL,
	completion_rate DOUBLE PRECISION NOT NULL,
	min_latency DOUBLE PRECISION NOT NULL,
	average_latency DOUBLE PRECISION NOT NULL,
	max_latency DOUBLE PRECISION NOT NULL,
	p50 DOUBLE PRECISION NOT NULL,
	p95 DOUBLE PRECISION NOT NULL,
	p99 DOUBLE PRECISION NOT NULL,
	short_tasks INTEGER NOT NULL,
	long_tasks INTEGER NOT NULL,
	drain_completed INTEGER NOT NULL,
	categories JSONB NOT NULL DEFAULT '{}'::jsonb,
	latencies DOUBLE PRECISION[] NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL
)`

// SummaryRepo persists run summaries into loadtest_results.
type SummaryRepo struct{ Pool PgxPool }

var _ domain.SummaryRepository = (*SummaryRepo)(nil)

// NewSummaryRepo constructs a SummaryRepo with the given pool.
func NewSummaryRepo(p PgxPool) *SummaryRepo { return &SummaryRepo{Pool: p} }

// EnsureSchema creates the results table when it does not exist.
func (r *SummaryRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.Pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("op=summary.ensure_schema: %w", err)
	}
	return nil
}

// Save upserts a summary keyed by its run id.
func (r *SummaryRepo) Save(ctx context.Context, s domain.ResultSummary) error {
	tracer := otel.Tracer("repo.summaries")
	ctx, span := tracer.Start(ctx, "summaries.Save")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPSERT"),
		attribute.String("db.sql.table", "loadtest_results"),
	)
	if s.RunID == "" {
		return fmt.Errorf("op=summary.save: %w: empty run id", domain.ErrInvalidArgument)
	}
	cats, err := json.Marshal(s.Categories)
	if err != nil {
		return fmt.Errorf("op=summary.save: %w: %v", domain.ErrInvalidArgument, err)
	}
	latencies := s.Latencies
	if latencies == nil {
		latencies = []float64{}
	}
	q := `INSERT INTO loadtest_results (run_id, queue_type, total_submitted, total_completed, completion_rate,
		min_latency, average_latency, max_latency, p50, p95, p99, short_tasks, long_tasks, drain_completed,
		categories, latencies, recorded_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	ON CONFLICT (run_id)
	DO UPDATE SET queue_type=EXCLUDED.queue_type, total_submitted=EXCLUDED.total_submitted, total_completed=EXCLUDED.total_completed,
		completion_rate=EXCLUDED.completion_rate, min_latency=EXCLUDED.min_latency, average_latency=EXCLUDED.average_latency,
		max_latency=EXCLUDED.max_latency, p50=EXCLUDED.p50, p95=EXCLUDED.p95, p99=EXCLUDED.p99, short_tasks=EXCLUDED.short_tasks,
		long_tasks=EXCLUDED.long_tasks, drain_completed=EXCLUDED.drain_completed, categories=EXCLUDED.categories,
		latencies=EXCLUDED.latencies, recorded_at=EXCLUDED.recorded_at`
	_, err = r.Pool.Exec(ctx, q, s.RunID, s.QueueType, s.TotalSubmitted, s.TotalCompleted, s.CompletionRate,
		s.MinLatency, s.AverageLatency, s.MaxLatency, s.P50, s.P95, s.P99, s.ShortTasks, s.LongTasks, s.DrainCompleted,
		string(cats), latencies, s.Timestamp.UTC())
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("op=summary.save: %w", err)
	}
	return nil
}

// Get loads the summary of a run.
func (r *SummaryRepo) Get(ctx context.Context, runID string) (domain.ResultSummary, error) {
	tracer := otel.Tracer("repo.summaries")
	ctx, span := tracer.Start(ctx, "summaries.Get")
	defer span.End()
	q := `SELECT run_id, queue_type, total_submitted, total_completed, completion_rate, min_latency, average_latency,
		max_latency, p50, p95, p99, short_tasks, long_tasks, drain_completed, categories, latencies, recorded_at
	FROM loadtest_results WHERE run_id=$1`
	var (
		s    domain.ResultSummary
		cats []byte
	)
	err := r.Pool.QueryRow(ctx, q, runID).Scan(&s.RunID, &s.QueueType, &s.TotalSubmitted, &s.TotalCompleted, &s.CompletionRate,
		&s.MinLatency, &s.AverageLatency, &s.MaxLatency, &s.P50, &s.P95, &s.P99, &s.ShortTasks, &s.LongTasks, &s.DrainCompleted,
		&cats, &s.Latencies, &s.Timestamp)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ResultSummary{}, fmt.Errorf("op=summary.get: %w", domain.ErrNotFound)
		}
		return domain.ResultSummary{}, fmt.Errorf("op=summary.get: %w", err)
	}
	if len(cats) > 0 {
		if err := json.Unmarshal(cats, &s.Categories); err != nil {
			return domain.ResultSummary{}, fmt.Errorf("op=summary.get: decode categories: %w", err)
		}
	}
	return s, nil
}
