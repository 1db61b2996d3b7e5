package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/fairyhunter13/queue-latency-bench/internal/adapter/observability"
	"github.com/fairyhunter13/queue-latency-bench/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/queue-latency-bench/internal/adapter/repo/jsonfile"
	"github.com/fairyhunter13/queue-latency-bench/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/queue-latency-bench/internal/adapter/targetapi"
	"github.com/fairyhunter13/queue-latency-bench/internal/app"
	"github.com/fairyhunter13/queue-latency-bench/internal/config"
	"github.com/fairyhunter13/queue-latency-bench/internal/domain"
	"github.com/fairyhunter13/queue-latency-bench/internal/usecase"
)

// Run the load phase, drain and persist the summary.
func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a load test and write the result summary.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			slog.SetDefault(observability.SetupLogger(cfg))
			observability.InitMetrics()

			shutdownTracer, err := observability.SetupTracing(cfg)
			if err != nil {
				slog.Error("failed to setup tracing", slog.Any("error", err))
			}
			defer func() {
				if shutdownTracer != nil {
					_ = shutdownTracer(context.Background())
				}
			}()

			// SIGINT/SIGTERM ends the load phase; the drain and persistence still run.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sinks, closeSinks, err := buildSinks(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeSinks()

			target := targetapi.New(cfg.TargetBaseURL, cfg.HTTPClientTimeout)
			runner, err := app.NewRunner(cfg, target, sinks, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			summary, err := runner.Run(ctx)
			if errors.Is(err, domain.ErrNoCompletedTasks) {
				slog.Warn("run finished without completed tasks; no results written",
					slog.String("run_id", runner.RunID()),
					slog.Int("submitted", summary.TotalSubmitted))
				return nil
			}
			if err != nil {
				slog.Error("run failed", slog.String("run_id", runner.RunID()), slog.Any("error", err))
				return err
			}
			slog.Info("run finished",
				slog.String("run_id", summary.RunID),
				slog.Int("completed", summary.TotalCompleted),
				slog.Float64("completion_rate", summary.CompletionRate),
				slog.String("result_path", cfg.ResultPath))
			return nil
		},
	}
	return cmd
}

// buildSinks returns the JSON file sink plus the optional database and stream sinks.
func buildSinks(ctx context.Context, cfg config.Config) ([]usecase.Sink, func(), error) {
	sinks := []usecase.Sink{{Name: "jsonfile", Repo: jsonfile.New(cfg.ResultPath), Primary: true}}
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.ResultsDBURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.ResultsDBURL)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("op=cmd.buildSinks: %w", err)
		}
		closers = append(closers, pool.Close)
		repo := postgres.NewSummaryRepo(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("op=cmd.buildSinks: %w", err)
		}
		sinks = append(sinks, usecase.Sink{Name: "postgres", Repo: repo})
	}

	if len(cfg.KafkaBrokers) > 0 {
		pub, err := redpanda.NewSummaryPublisher(cfg.KafkaBrokers, cfg.ResultsTopic, "queue-latency-bench-"+ulid.Make().String())
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("op=cmd.buildSinks: %w", err)
		}
		closers = append(closers, pub.Close)
		sinks = append(sinks, usecase.Sink{Name: "redpanda", Repo: pub})
	}

	if len(sinks) > 1 {
		names := make([]string, 0, len(sinks))
		for _, s := range sinks {
			names = append(names, s.Name)
		}
		slog.Info("result sinks configured", slog.Any("sinks", names))
	}
	return sinks, closeAll, nil
}
