// Package usecase implements the load-test behaviour: submission, oldest-first
// polling, the bounded drain and run finalization.
package usecase

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	obs "github.com/fairyhunter13/queue-latency-bench/internal/adapter/observability"
	"github.com/fairyhunter13/queue-latency-bench/internal/domain"
	"github.com/fairyhunter13/queue-latency-bench/internal/tracker"
)

// SubmitService submits tasks of a category to the target and enrolls the accepted ones.
type SubmitService struct {
	API     domain.TargetAPI
	Tracker *tracker.Tracker
	Queue   domain.QueueKind
	// ClientIDs sends a client-generated id with each submission.
	ClientIDs bool
	Now       func() time.Time
}

// NewSubmitService constructs a SubmitService.
func NewSubmitService(api domain.TargetAPI, tr *tracker.Tracker, kind domain.QueueKind, clientIDs bool) SubmitService {
	return SubmitService{API: api, Tracker: tr, Queue: kind, ClientIDs: clientIDs, Now: time.Now}
}

// Submit sends one task. The submission time is taken before the request is
// sent. On failure nothing is enrolled and the error wraps domain.ErrSubmitFailed.
func (s SubmitService) Submit(ctx domain.Context, category domain.JobCategory) (domain.TaskRecord, error) {
	if !category.Valid() {
		return domain.TaskRecord{}, fmt.Errorf("op=usecase.Submit: %w: job category %q", domain.ErrInvalidArgument, category)
	}
	req := domain.SubmitRequest{JobType: category}
	if s.ClientIDs {
		req.ID = uuid.NewString()
	}

	submittedAt := s.now()
	id, err := s.API.Submit(ctx, s.Queue, req)
	if err != nil {
		obs.FailSubmit(string(category))
		slog.Debug("submit failed", slog.String("category", string(category)), slog.Any("error", err))
		return domain.TaskRecord{}, fmt.Errorf("op=usecase.Submit: %w", asSubmitFailure(err))
	}

	rec := domain.TaskRecord{ID: id, Category: category, SubmittedAt: submittedAt}
	if err := s.Tracker.Enroll(rec); err != nil {
		obs.FailSubmit(string(category))
		return domain.TaskRecord{}, fmt.Errorf("op=usecase.Submit: %w", err)
	}
	obs.SubmitTask(string(category))
	return rec, nil
}

func (s SubmitService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func asSubmitFailure(err error) error {
	if errors.Is(err, domain.ErrSubmitFailed) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrSubmitFailed, err)
}
