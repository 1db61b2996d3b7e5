package tracker

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/queue-latency-bench/internal/domain"
)

func rec(id string, at time.Time) domain.TaskRecord {
	return domain.TaskRecord{ID: id, Category: domain.JobShort, SubmittedAt: at}
}

func TestEnroll_RejectsEmptyAndDuplicate(t *testing.T) {
	tr := New()
	now := time.Now()

	require.ErrorIs(t, tr.Enroll(rec("", now)), domain.ErrInvalidArgument)
	require.NoError(t, tr.Enroll(rec("a", now)))
	require.ErrorIs(t, tr.Enroll(rec("a", now)), domain.ErrConflict)

	st := tr.Stats()
	assert.Equal(t, 1, st.Submitted)
	assert.Equal(t, 1, st.Queued)
}

func TestCheckout_EmptyRegistry(t *testing.T) {
	tr := New()
	_, ok := tr.Checkout()
	assert.False(t, ok)
}

func TestCheckout_FIFORotation(t *testing.T) {
	tr := New()
	now := time.Now()
	ids := []string{"t0", "t1", "t2", "t3"}
	for _, id := range ids {
		require.NoError(t, tr.Enroll(rec(id, now)))
	}

	// Every check requeues; the n-th check must hit ids[n mod k].
	for n := 0; n < 3*len(ids); n++ {
		r, ok := tr.Checkout()
		require.True(t, ok)
		assert.Equal(t, ids[n%len(ids)], r.ID, "check %d", n)
		tr.Requeue(r)
	}
}

func TestCheckout_HoldsRecordExclusively(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Enroll(rec("only", time.Now())))

	r, ok := tr.Checkout()
	require.True(t, ok)
	_, ok = tr.Checkout()
	assert.False(t, ok, "a checked-out record must not be handed out twice")

	st := tr.Stats()
	assert.Equal(t, 0, st.Queued)
	assert.Equal(t, 1, st.InFlight)

	tr.Requeue(r)
	tr.Requeue(r) // second requeue is ignored
	assert.Equal(t, 1, tr.Stats().Queued)
}

func TestRetire_AtMostOnce(t *testing.T) {
	tr := New()
	submitted := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, tr.Enroll(rec("a", submitted)))

	r, ok := tr.Checkout()
	require.True(t, ok)

	obs, ok := tr.Retire(r, submitted.Add(1500*time.Millisecond), domain.PhaseLoad)
	require.True(t, ok)
	assert.InDelta(t, 1.5, obs.Latency, 1e-9)
	assert.Equal(t, domain.PhaseLoad, obs.Phase)

	_, ok = tr.Retire(r, submitted.Add(3*time.Second), domain.PhaseDrain)
	assert.False(t, ok)

	// A retired record cannot come back through Requeue.
	tr.Requeue(r)
	_, ok = tr.Checkout()
	assert.False(t, ok)

	assert.Len(t, tr.Observations(), 1)
	assert.Empty(t, tr.Outstanding())
}

func TestRetire_UnknownTask(t *testing.T) {
	tr := New()
	_, ok := tr.Retire(rec("ghost", time.Now()), time.Now(), domain.PhaseDrain)
	assert.False(t, ok)
	assert.Empty(t, tr.Observations())
}

func TestRetire_RemovesQueuedRecord(t *testing.T) {
	tr := New()
	now := time.Now()
	require.NoError(t, tr.Enroll(rec("a", now)))
	require.NoError(t, tr.Enroll(rec("b", now)))

	// Drain-style retirement without a checkout.
	_, ok := tr.Retire(rec("a", now), now.Add(time.Second), domain.PhaseDrain)
	require.True(t, ok)

	r, ok := tr.Checkout()
	require.True(t, ok)
	assert.Equal(t, "b", r.ID)
	_, ok = tr.Checkout()
	assert.False(t, ok)
}

func TestOutstanding_IsSetDifferenceNotSuffix(t *testing.T) {
	tr := New()
	now := time.Now()
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, tr.Enroll(rec(id, now)))
	}

	// Later-submitted tasks complete first.
	_, ok := tr.Retire(rec("c", now), now.Add(time.Second), domain.PhaseLoad)
	require.True(t, ok)
	_, ok = tr.Retire(rec("d", now), now.Add(time.Second), domain.PhaseLoad)
	require.True(t, ok)

	var got []string
	for _, r := range tr.Outstanding() {
		got = append(got, r.ID)
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestConcurrentCheckersNeverShareARecord(t *testing.T) {
	tr := New()
	now := time.Now()
	const tasks = 200
	for i := 0; i < tasks; i++ {
		require.NoError(t, tr.Enroll(rec(fmt.Sprintf("t%03d", i), now)))
	}

	var (
		mu      sync.Mutex
		holding = map[string]bool{}
		dupes   int
		wg      sync.WaitGroup
	)
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				r, ok := tr.Checkout()
				if !ok {
					continue
				}
				mu.Lock()
				if holding[r.ID] {
					dupes++
				}
				holding[r.ID] = true
				mu.Unlock()

				mu.Lock()
				holding[r.ID] = false
				mu.Unlock()
				if (i+w)%7 == 0 {
					tr.Retire(r, now.Add(time.Millisecond), domain.PhaseLoad)
				} else {
					tr.Requeue(r)
				}
			}
		}(w)
	}
	wg.Wait()

	assert.Zero(t, dupes)
	st := tr.Stats()
	assert.Equal(t, tasks, st.Submitted)
	assert.Zero(t, st.InFlight)
	assert.Equal(t, st.Submitted-st.Completed, st.Queued)
	assert.LessOrEqual(t, len(tr.Observations()), len(tr.Submitted()))

	seen := map[string]bool{}
	for _, o := range tr.Observations() {
		assert.False(t, seen[o.TaskID], "task %s observed twice", o.TaskID)
		seen[o.TaskID] = true
	}
}
