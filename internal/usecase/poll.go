package usecase

import (
	"log/slog"
	"time"

	obs "github.com/fairyhunter13/queue-latency-bench/internal/adapter/observability"
	"github.com/fairyhunter13/queue-latency-bench/internal/domain"
	"github.com/fairyhunter13/queue-latency-bench/internal/tracker"
)

// CheckOutcome is the result of one polling step.
type CheckOutcome int

const (
	// OutcomeIdle means there was nothing to check.
	OutcomeIdle CheckOutcome = iota
	// OutcomeCompleted means the task was terminal and has been retired.
	OutcomeCompleted
	// OutcomePending means the task is not terminal yet and went back to the tail.
	OutcomePending
	// OutcomeTransient means the check failed and the task went back to the tail.
	OutcomeTransient
)

func (o CheckOutcome) String() string {
	switch o {
	case OutcomeIdle:
		return "idle"
	case OutcomeCompleted:
		return "completed"
	case OutcomePending:
		return "pending"
	case OutcomeTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// PollService checks the oldest outstanding task during the load phase.
type PollService struct {
	API     domain.TargetAPI
	Tracker *tracker.Tracker
	Now     func() time.Time
}

// NewPollService constructs a PollService.
func NewPollService(api domain.TargetAPI, tr *tracker.Tracker) PollService {
	return PollService{API: api, Tracker: tr, Now: time.Now}
}

// CheckOne takes the head of the registry and asks the target for its status.
// Terminal tasks are retired; everything else is requeued at the tail.
func (s PollService) CheckOne(ctx domain.Context) CheckOutcome {
	rec, ok := s.Tracker.Checkout()
	if !ok {
		return OutcomeIdle
	}
	outcome := s.check(ctx, rec)
	obs.CheckStatus(outcome.String())
	slog.Debug("status check",
		slog.String("task_id", rec.ID),
		slog.String("category", string(rec.Category)),
		slog.String("outcome", outcome.String()))
	return outcome
}

func (s PollService) check(ctx domain.Context, rec domain.TaskRecord) CheckOutcome {
	status, err := s.API.Status(ctx, rec.ID)
	if err != nil {
		s.Tracker.Requeue(rec)
		return OutcomeTransient
	}
	if !status.IsTerminal() {
		s.Tracker.Requeue(rec)
		return OutcomePending
	}
	if o, retired := s.Tracker.Retire(rec, s.now(), domain.PhaseLoad); retired {
		obs.CompleteTask(string(o.Category), string(o.Phase), o.Latency)
	}
	return OutcomeCompleted
}

func (s PollService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
