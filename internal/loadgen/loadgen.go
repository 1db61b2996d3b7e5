// Package loadgen drives virtual users against the submit and poll use cases
// for the duration of the load phase.
package loadgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/fairyhunter13/queue-latency-bench/internal/domain"
	"github.com/fairyhunter13/queue-latency-bench/internal/usecase"
)

// Action is one thing a virtual user can do per iteration.
type Action int

const (
	ActionSubmitShort Action = iota
	ActionSubmitLong
	ActionCheck
)

func (a Action) String() string {
	switch a {
	case ActionSubmitShort:
		return "submit_short"
	case ActionSubmitLong:
		return "submit_long"
	case ActionCheck:
		return "check"
	default:
		return "unknown"
	}
}

// Weights are relative action frequencies.
type Weights struct {
	Short int
	Long  int
	Check int
}

func (w Weights) total() int { return w.Short + w.Long + w.Check }

// pick maps n in [0, total) onto an action.
func (w Weights) pick(n int) Action {
	switch {
	case n < w.Short:
		return ActionSubmitShort
	case n < w.Short+w.Long:
		return ActionSubmitLong
	default:
		return ActionCheck
	}
}

// Submitter is the submission use case.
type Submitter interface {
	Submit(ctx context.Context, category domain.JobCategory) (domain.TaskRecord, error)
}

// Checker is the polling use case.
type Checker interface {
	CheckOne(ctx context.Context) usecase.CheckOutcome
}

// Config shapes the load.
type Config struct {
	Users     int
	SpawnRate float64 // users started per second
	RunTime   time.Duration
	WaitMin   time.Duration
	WaitMax   time.Duration
	Weights   Weights
	Seed      uint64
}

// Stats counts what the virtual users did.
type Stats struct {
	Iterations     int64 `json:"iterations"`
	Submits        int64 `json:"submits"`
	SubmitFailures int64 `json:"submit_failures"`
	Checks         int64 `json:"checks"`
}

type counters struct {
	iterations, submits, submitFailures, checks atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Iterations:     c.iterations.Load(),
		Submits:        c.submits.Load(),
		SubmitFailures: c.submitFailures.Load(),
		Checks:         c.checks.Load(),
	}
}

// Driver runs the virtual users.
type Driver struct {
	cfg     Config
	submit  Submitter
	check   Checker
	counts  counters
	started atomic.Int64
}

// New validates cfg and returns a Driver.
func New(cfg Config, submit Submitter, check Checker) (*Driver, error) {
	if cfg.Users <= 0 {
		return nil, fmt.Errorf("op=loadgen.New: %w: users must be positive", domain.ErrInvalidArgument)
	}
	if cfg.SpawnRate <= 0 {
		return nil, fmt.Errorf("op=loadgen.New: %w: spawn rate must be positive", domain.ErrInvalidArgument)
	}
	if cfg.Weights.Short < 0 || cfg.Weights.Long < 0 || cfg.Weights.Check < 0 || cfg.Weights.total() == 0 {
		return nil, fmt.Errorf("op=loadgen.New: %w: invalid action weights", domain.ErrInvalidArgument)
	}
	if cfg.WaitMin < 0 || cfg.WaitMax < cfg.WaitMin {
		return nil, fmt.Errorf("op=loadgen.New: %w: invalid wait range", domain.ErrInvalidArgument)
	}
	return &Driver{cfg: cfg, submit: submit, check: check}, nil
}

// Stats returns the counters so far.
func (d *Driver) Stats() Stats { return d.counts.snapshot() }

// ActiveUsers returns how many users have been spawned.
func (d *Driver) ActiveUsers() int { return int(d.started.Load()) }

// Run spawns users at the configured rate and returns once RunTime has
// elapsed or ctx is done and every in-flight action has finished.
func (d *Driver) Run(ctx context.Context) (Stats, error) {
	runCtx := ctx
	if d.cfg.RunTime > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, d.cfg.RunTime)
		defer cancel()
	}

	limiter := rate.NewLimiter(rate.Limit(d.cfg.SpawnRate), 1)
	g, gctx := errgroup.WithContext(runCtx)
	for i := 0; i < d.cfg.Users; i++ {
		if err := limiter.Wait(runCtx); err != nil {
			break
		}
		user := uint64(i)
		d.started.Add(1)
		g.Go(func() error { return d.runUser(gctx, user) })
	}
	err := g.Wait()

	st := d.counts.snapshot()
	slog.Info("load phase finished",
		slog.Int("users", d.ActiveUsers()),
		slog.Int64("iterations", st.Iterations),
		slog.Int64("submits", st.Submits),
		slog.Int64("submit_failures", st.SubmitFailures),
		slog.Int64("checks", st.Checks))
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return st, fmt.Errorf("op=loadgen.Run: %w", err)
	}
	return st, nil
}

func (d *Driver) runUser(ctx context.Context, user uint64) error {
	rng := rand.New(rand.NewPCG(d.cfg.Seed, user))
	for ctx.Err() == nil {
		// The action finishes even if the load phase ends meanwhile so that
		// its retire or requeue lands in the tracker.
		d.perform(context.WithoutCancel(ctx), d.cfg.Weights.pick(rng.IntN(d.cfg.Weights.total())))
		d.counts.iterations.Add(1)
		if err := sleep(ctx, d.wait(rng)); err != nil {
			return nil
		}
	}
	return nil
}

func (d *Driver) perform(ctx context.Context, a Action) {
	switch a {
	case ActionSubmitShort, ActionSubmitLong:
		cat := domain.JobShort
		if a == ActionSubmitLong {
			cat = domain.JobLong
		}
		if _, err := d.submit.Submit(ctx, cat); err != nil {
			d.counts.submitFailures.Add(1)
			return
		}
		d.counts.submits.Add(1)
	case ActionCheck:
		d.check.CheckOne(ctx)
		d.counts.checks.Add(1)
	}
}

func (d *Driver) wait(rng *rand.Rand) time.Duration {
	span := d.cfg.WaitMax - d.cfg.WaitMin
	if span <= 0 {
		return d.cfg.WaitMin
	}
	return d.cfg.WaitMin + time.Duration(rng.Int64N(int64(span)+1))
}

func sleep(ctx context.Context, d time.Duration) error {
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
