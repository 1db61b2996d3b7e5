package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fairyhunter13/queue-latency-bench/internal/domain"
)

// fakeClock only moves when Sleep or Advance is called.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Advance(d)
	return nil
}

// fakeTarget reports a task as success once it has been read
// completeAfter[category] times; 0 means never.
type fakeTarget struct {
	mu            sync.Mutex
	completeAfter map[domain.JobCategory]int
	next          int
	tasks         map[string]*fakeTask
	statusCalls   int
}

type fakeTask struct {
	category domain.JobCategory
	reads    int
}

func newFakeTarget(completeAfter map[domain.JobCategory]int) *fakeTarget {
	return &fakeTarget{completeAfter: completeAfter, tasks: map[string]*fakeTask{}}
}

func (f *fakeTarget) Submit(_ context.Context, _ domain.QueueKind, req domain.SubmitRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	id := fmt.Sprintf("task-%03d", f.next)
	f.tasks[id] = &fakeTask{category: req.JobType}
	return id, nil
}

func (f *fakeTarget) Status(_ context.Context, id string) (domain.TaskStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	t, ok := f.tasks[id]
	if !ok {
		return "", fmt.Errorf("%w: status 404", domain.ErrCheckTransient)
	}
	t.reads++
	if n := f.completeAfter[t.category]; n > 0 && t.reads >= n {
		return domain.TaskSuccess, nil
	}
	return domain.TaskQueued, nil
}

func (f *fakeTarget) StatusCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls
}
