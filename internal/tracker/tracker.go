// Package tracker holds the per-run task state shared by every virtual user:
// the outstanding registry, the all-submitted ledger and the latency observations.
package tracker

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"github.com/fairyhunter13/queue-latency-bench/internal/domain"
)

// Stats is a point-in-time view of the tracker counters.
type Stats struct {
	Submitted int `json:"submitted"`
	Completed int `json:"completed"`
	Queued    int `json:"queued"`
	InFlight  int `json:"in_flight"`
}

// Outstanding returns the number of tasks that have not been retired.
func (s Stats) Outstanding() int { return s.Submitted - s.Completed }

// Tracker is safe for concurrent use. A record is in the registry iff it has
// not been retired and is not checked out, and it is there at most once.
type Tracker struct {
	mu sync.Mutex

	queue    *list.List // of domain.TaskRecord, oldest at the front
	queued   map[string]*list.Element
	inFlight map[string]struct{}

	ledger       []domain.TaskRecord
	known        map[string]struct{}
	retired      map[string]struct{}
	observations []domain.LatencyObservation
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{
		queue:    list.New(),
		queued:   make(map[string]*list.Element),
		inFlight: make(map[string]struct{}),
		known:    make(map[string]struct{}),
		retired:  make(map[string]struct{}),
	}
}

// Enroll appends a newly submitted record to the registry tail and to the ledger.
func (t *Tracker) Enroll(rec domain.TaskRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("op=tracker.Enroll: %w: empty task id", domain.ErrInvalidArgument)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, dup := t.known[rec.ID]; dup {
		return fmt.Errorf("op=tracker.Enroll: %w: task %s already enrolled", domain.ErrConflict, rec.ID)
	}
	t.known[rec.ID] = struct{}{}
	t.ledger = append(t.ledger, rec)
	t.queued[rec.ID] = t.queue.PushBack(rec)
	return nil
}

// Checkout pops the oldest outstanding record. The caller owns it until it
// calls Requeue or Retire; no other caller can check it out meanwhile.
func (t *Tracker) Checkout() (domain.TaskRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	front := t.queue.Front()
	if front == nil {
		return domain.TaskRecord{}, false
	}
	rec := t.queue.Remove(front).(domain.TaskRecord)
	delete(t.queued, rec.ID)
	t.inFlight[rec.ID] = struct{}{}
	return rec, true
}

// Requeue returns a checked-out record to the registry tail.
// Records that are not checked out (or already retired) are ignored.
func (t *Tracker) Requeue(rec domain.TaskRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.inFlight[rec.ID]; !ok {
		return
	}
	delete(t.inFlight, rec.ID)
	t.queued[rec.ID] = t.queue.PushBack(rec)
}

// Retire records the terminal observation for rec. Only the first call for a
// given task produces an observation; later calls return false.
func (t *Tracker) Retire(rec domain.TaskRecord, observedAt time.Time, phase domain.Phase) (domain.LatencyObservation, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.known[rec.ID]; !ok {
		return domain.LatencyObservation{}, false
	}
	if _, done := t.retired[rec.ID]; done {
		return domain.LatencyObservation{}, false
	}
	t.retired[rec.ID] = struct{}{}
	delete(t.inFlight, rec.ID)
	if el, ok := t.queued[rec.ID]; ok {
		t.queue.Remove(el)
		delete(t.queued, rec.ID)
	}
	obs := domain.LatencyObservation{
		TaskID:     rec.ID,
		Category:   rec.Category,
		Latency:    observedAt.Sub(rec.SubmittedAt).Seconds(),
		ObservedAt: observedAt,
		Phase:      phase,
	}
	t.observations = append(t.observations, obs)
	return obs, true
}

// Outstanding returns every submitted record that has not been retired, in
// submission order. It is a set difference, so out-of-order completions are
// handled correctly.
func (t *Tracker) Outstanding() []domain.TaskRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.TaskRecord, 0, len(t.ledger)-len(t.retired))
	for _, rec := range t.ledger {
		if _, done := t.retired[rec.ID]; !done {
			out = append(out, rec)
		}
	}
	return out
}

// Submitted returns a copy of the all-submitted ledger.
func (t *Tracker) Submitted() []domain.TaskRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.TaskRecord, len(t.ledger))
	copy(out, t.ledger)
	return out
}

// Observations returns a copy of the latency observations in retirement order.
func (t *Tracker) Observations() []domain.LatencyObservation {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.LatencyObservation, len(t.observations))
	copy(out, t.observations)
	return out
}

// Stats returns the current counters.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{
		Submitted: len(t.ledger),
		Completed: len(t.observations),
		Queued:    t.queue.Len(),
		InFlight:  len(t.inFlight),
	}
}
