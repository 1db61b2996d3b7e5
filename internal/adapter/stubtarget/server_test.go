package stubtarget

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/queue-latency-bench/internal/adapter/targetapi"
	"github.com/fairyhunter13/queue-latency-bench/internal/domain"
)

func newTestServer(t *testing.T, completeAfter map[domain.JobCategory]int, rateLimit int) (*httptest.Server, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	srv := httptest.NewServer(NewServer(NewStore(rdb, completeAfter), rateLimit).Router())
	t.Cleanup(srv.Close)
	return srv, mr
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestSubmitAndPoll_CompletesAfterConfiguredReads(t *testing.T) {
	srv, _ := newTestServer(t, map[domain.JobCategory]int{domain.JobShort: 2, domain.JobLong: 3}, 0)
	c := targetapi.New(srv.URL, time.Second)
	ctx := context.Background()

	id, err := c.Submit(ctx, domain.QueuePriority, domain.SubmitRequest{JobType: domain.JobShort})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	st, err := c.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskQueued, st)

	st, err = c.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskSuccess, st)
}

func TestStatus_NeverTerminalWhenZero(t *testing.T) {
	srv, _ := newTestServer(t, map[domain.JobCategory]int{}, 0)
	c := targetapi.New(srv.URL, time.Second)
	ctx := context.Background()

	id, err := c.Submit(ctx, domain.QueueFIFO, domain.SubmitRequest{JobType: domain.JobLong})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		st, err := c.Status(ctx, id)
		require.NoError(t, err)
		assert.False(t, st.IsTerminal())
	}
}

func TestSubmit_ResponseShape(t *testing.T) {
	srv, mr := newTestServer(t, nil, 0)
	resp := post(t, srv.URL+"/task/pq", `{"job_type":"long","payload":"p"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		Task Task `json:"task"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, domain.JobLong, body.Task.JobType)
	assert.Equal(t, domain.QueuePriority, body.Task.Queue)
	assert.Equal(t, domain.TaskQueued, body.Task.Status)

	assert.Equal(t, "long", mr.HGet(keyPrefix+body.Task.ID, "job_type"))
	assert.Equal(t, "p", mr.HGet(keyPrefix+body.Task.ID, "payload"))
	assert.True(t, mr.TTL(keyPrefix+body.Task.ID) > 0)
}

func TestSubmit_Validation(t *testing.T) {
	srv, _ := newTestServer(t, nil, 0)
	tests := []struct {
		name, path, body string
		want             int
	}{
		{"unknown queue", "/task/lifo", `{"job_type":"short"}`, http.StatusBadRequest},
		{"unknown job type", "/task/fifo", `{"job_type":"medium"}`, http.StatusBadRequest},
		{"bad json", "/task/fifo", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, post(t, srv.URL+tt.path, tt.body).StatusCode)
		})
	}
}

func TestSubmit_ClientIDConflict(t *testing.T) {
	srv, _ := newTestServer(t, nil, 0)
	assert.Equal(t, http.StatusCreated, post(t, srv.URL+"/task/fifo", `{"id":"abc","job_type":"short"}`).StatusCode)
	assert.Equal(t, http.StatusConflict, post(t, srv.URL+"/task/fifo", `{"id":"abc","job_type":"short"}`).StatusCode)
}

func TestStatus_NotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil, 0)
	resp, err := http.Get(srv.URL + "/task/missing")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	srv, mr := newTestServer(t, nil, 0)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	mr.Close()
	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestSubmit_RateLimited(t *testing.T) {
	srv, _ := newTestServer(t, nil, 2)
	assert.Equal(t, http.StatusCreated, post(t, srv.URL+"/task/fifo", `{"job_type":"short"}`).StatusCode)
	assert.Equal(t, http.StatusCreated, post(t, srv.URL+"/task/fifo", `{"job_type":"short"}`).StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, post(t, srv.URL+"/task/fifo", `{"job_type":"short"}`).StatusCode)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, "reads are not rate limited")
}
