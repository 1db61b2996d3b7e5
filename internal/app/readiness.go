package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// TargetPinger is the minimal interface for probing the target API.
type TargetPinger interface {
	Ping(ctx context.Context, path string) error
}

// WaitForTarget polls path until the target answers with 2xx or timeout elapses.
func WaitForTarget(ctx context.Context, t TargetPinger, path string, timeout time.Duration) error {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 200 * time.Millisecond
	expo.MaxInterval = 2 * time.Second
	expo.MaxElapsedTime = timeout

	attempt := 0
	op := func() error {
		attempt++
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return t.Ping(pctx, path)
	}
	notify := func(err error, next time.Duration) {
		slog.Debug("target not ready", slog.Int("attempt", attempt), slog.Duration("retry_in", next), slog.Any("error", err))
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(expo, ctx), notify); err != nil {
		return fmt.Errorf("op=app.WaitForTarget: target not ready after %d attempts: %w", attempt, err)
	}
	slog.Info("target ready", slog.String("path", path), slog.Int("attempts", attempt))
	return nil
}
