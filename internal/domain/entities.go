// Package domain defines the load-test value objects, ports and error taxonomy.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	// ErrSubmitFailed marks a task submission that was not accepted by the target API.
	ErrSubmitFailed = errors.New("submit failed")
	// ErrCheckTransient marks a status check that could not be resolved; the task stays outstanding.
	ErrCheckTransient = errors.New("status check failed")
	// ErrNoCompletedTasks is returned when a run has nothing to summarize.
	ErrNoCompletedTasks = errors.New("no completed tasks")
)

// JobCategory is the kind of work a task asks the target to do.
type JobCategory string

const (
	JobShort JobCategory = "short"
	JobLong  JobCategory = "long"
)

// JobCategories lists every category in reporting order.
var JobCategories = []JobCategory{JobShort, JobLong}

// Valid reports whether c is a known category.
func (c JobCategory) Valid() bool { return c == JobShort || c == JobLong }

// ParseJobCategory converts user input into a JobCategory.
func ParseJobCategory(s string) (JobCategory, error) {
	c := JobCategory(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: job category %q", ErrInvalidArgument, s)
	}
	return c, nil
}

// QueueKind selects the scheduling discipline endpoint of the target API.
type QueueKind string

const (
	QueueFIFO     QueueKind = "fifo"
	QueuePriority QueueKind = "pq"
)

// Valid reports whether k is a known queue kind.
func (k QueueKind) Valid() bool { return k == QueueFIFO || k == QueuePriority }

// Label is the queue_type value written to result records.
func (k QueueKind) Label() string {
	if k == QueuePriority {
		return "priority"
	}
	return string(k)
}

// TaskStatus is the status string reported by GET /task/{id}.
type TaskStatus string

const (
	TaskQueued  TaskStatus = "queued"
	TaskPending TaskStatus = "pending"
	TaskRunning TaskStatus = "running"
	TaskSuccess TaskStatus = "success"
	TaskFailed  TaskStatus = "failed"
)

// IsTerminal reports whether no further state change is expected.
func (s TaskStatus) IsTerminal() bool { return s == TaskSuccess || s == TaskFailed }

// Phase tells which part of a run retired a task.
type Phase string

const (
	PhaseLoad  Phase = "load"
	PhaseDrain Phase = "drain"
)

// TaskRecord is a submitted task the harness is waiting on.
// Invariants: ID non-empty; Category valid; immutable after creation.
type TaskRecord struct {
	ID          string
	Category    JobCategory
	SubmittedAt time.Time
}

// LatencyObservation is produced exactly once per task, when a terminal status is first seen.
type LatencyObservation struct {
	TaskID     string
	Category   JobCategory
	Latency    float64 // seconds
	ObservedAt time.Time
	Phase      Phase
}

// CategoryStats is the per-category latency breakdown.
// P95/P99 are only set for categories with enough samples to make them meaningful.
type CategoryStats struct {
	Count  int      `json:"count"`
	Median float64  `json:"median"`
	P95    *float64 `json:"p95,omitempty"`
	P99    *float64 `json:"p99,omitempty"`
}

// ResultSummary is the persisted record of one run.
type ResultSummary struct {
	RunID          string                        `json:"run_id,omitempty"`
	QueueType      string                        `json:"queue_type"`
	TotalSubmitted int                           `json:"total_tasks_submitted"`
	TotalCompleted int                           `json:"total_tasks_completed"`
	CompletionRate float64                       `json:"completion_rate"`
	MinLatency     float64                       `json:"min_latency"`
	AverageLatency float64                       `json:"average_latency"`
	MaxLatency     float64                       `json:"max_latency"`
	P50            float64                       `json:"p50"`
	P95            float64                       `json:"p95"`
	P99            float64                       `json:"p99"`
	ShortTasks     int                           `json:"short_tasks"`
	LongTasks      int                           `json:"long_tasks"`
	Categories     map[JobCategory]CategoryStats `json:"categories,omitempty"`
	DrainCompleted int                           `json:"drain_completed"`
	Latencies      []float64                     `json:"latencies"`
	Timestamp      time.Time                     `json:"timestamp"`
}

// SubmitRequest is the body of POST /task/{queueKind}.
type SubmitRequest struct {
	ID      string      `json:"id,omitempty"`
	JobType JobCategory `json:"job_type"`
	Payload string      `json:"payload,omitempty"`
}

// Ports

//go:generate mockery --config=../../.mockery.yml

// TargetAPI is the black-box task service under test.
type TargetAPI interface {
	// Submit creates a task and returns the id assigned by the target.
	Submit(ctx Context, kind QueueKind, req SubmitRequest) (string, error)
	// Status returns the current status of a task.
	Status(ctx Context, id string) (TaskStatus, error)
}

// SummaryRepository persists result summaries.
type SummaryRepository interface {
	Save(ctx Context, s ResultSummary) error
}

// Context is an alias so ports read like the rest of the domain.
type Context = context.Context
