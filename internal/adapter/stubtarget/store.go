// Package stubtarget is a deterministic stand-in for the task API under test.
// It does not model scheduling: a task reports success once it has been read
// a configured number of times.
package stubtarget

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/queue-latency-bench/internal/domain"
)

const (
	keyPrefix = "stub:task:"
	taskTTL   = 24 * time.Hour
)

// Task is the stored view of a submitted task.
type Task struct {
	ID        string             `json:"id"`
	JobType   domain.JobCategory `json:"job_type"`
	Queue     domain.QueueKind   `json:"queue"`
	Status    domain.TaskStatus  `json:"status"`
	Reads     int                `json:"-"`
	CreatedAt time.Time          `json:"created_at"`
}

// Store keeps tasks in Redis hashes.
type Store struct {
	rdb           *redis.Client
	completeAfter map[domain.JobCategory]int
}

// NewStore creates a Store. completeAfter maps a category to the number of
// reads after which its tasks are terminal; 0 means never.
func NewStore(rdb *redis.Client, completeAfter map[domain.JobCategory]int) *Store {
	return &Store{rdb: rdb, completeAfter: completeAfter}
}

// Create stores a new queued task. An existing id is a conflict.
func (s *Store) Create(ctx context.Context, id string, cat domain.JobCategory, kind domain.QueueKind, payload string) (Task, error) {
	key := keyPrefix + id
	now := time.Now().UTC()
	created, err := s.rdb.HSetNX(ctx, key, "job_type", string(cat)).Result()
	if err != nil {
		return Task{}, fmt.Errorf("op=stubtarget.Create: %w", err)
	}
	if !created {
		return Task{}, fmt.Errorf("op=stubtarget.Create: %w: task %s exists", domain.ErrConflict, id)
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key,
			"queue", string(kind),
			"payload", payload,
			"reads", 0,
			"created_at", now.Format(time.RFC3339Nano),
		)
		p.Expire(ctx, key, taskTTL)
		return nil
	})
	if err != nil {
		return Task{}, fmt.Errorf("op=stubtarget.Create: %w", err)
	}
	return Task{ID: id, JobType: cat, Queue: kind, Status: domain.TaskQueued, CreatedAt: now}, nil
}

// Read counts one status read and returns the task's resulting status.
func (s *Store) Read(ctx context.Context, id string) (Task, error) {
	key := keyPrefix + id
	fields, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return Task{}, fmt.Errorf("op=stubtarget.Read: %w", err)
	}
	if len(fields) == 0 {
		return Task{}, fmt.Errorf("op=stubtarget.Read: %w: task %s", domain.ErrNotFound, id)
	}
	reads, err := s.rdb.HIncrBy(ctx, key, "reads", 1).Result()
	if err != nil {
		return Task{}, fmt.Errorf("op=stubtarget.Read: %w", err)
	}

	t := Task{
		ID:      id,
		JobType: domain.JobCategory(fields["job_type"]),
		Queue:   domain.QueueKind(fields["queue"]),
		Reads:   int(reads),
		Status:  domain.TaskQueued,
	}
	if ts, perr := time.Parse(time.RFC3339Nano, fields["created_at"]); perr == nil {
		t.CreatedAt = ts
	}
	if n := s.completeAfter[t.JobType]; n > 0 && t.Reads >= n {
		t.Status = domain.TaskSuccess
	}
	return t, nil
}

// Ping checks the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("op=stubtarget.Ping: %w", err)
	}
	return nil
}
