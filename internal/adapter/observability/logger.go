package observability

import (
	"io"
	"log/slog"
	"os"

	"github.com/fairyhunter13/queue-latency-bench/internal/config"
)

// SetupLogger configures a JSON slog logger on stdout.
func SetupLogger(cfg config.Config) *slog.Logger {
	return NewLogger(os.Stdout, cfg)
}

// NewLogger builds the JSON logger every record of a run goes through. Each
// record carries the service, environment and queue kind so results from
// fifo and pq runs can be separated in one log stream.
func NewLogger(w io.Writer, cfg config.Config) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel(cfg)})
	return slog.New(h).With(
		slog.String("service", cfg.OTELServiceName),
		slog.String("env", cfg.AppEnv),
		slog.String("queue_kind", cfg.QueueKind),
	)
}

func logLevel(cfg config.Config) slog.Level {
	if cfg.LogLevel != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(cfg.LogLevel)); err == nil {
			return lvl
		}
	}
	if cfg.IsDev() {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
