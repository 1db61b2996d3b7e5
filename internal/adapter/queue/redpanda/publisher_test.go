package redpanda

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/queue-latency-bench/internal/domain"
)

func TestNewSummaryPublisher_Validation(t *testing.T) {
	_, err := NewSummaryPublisher(nil, "results", "")
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = NewSummaryPublisher([]string{"localhost:9092"}, "", "")
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestNewSummaryPublisher_DoesNotDial(t *testing.T) {
	p, err := NewSummaryPublisher([]string{"127.0.0.1:1"}, "results", "test-tx")
	require.NoError(t, err)
	p.Close()
}

func TestSummaryRecord(t *testing.T) {
	s := domain.ResultSummary{RunID: "run-7", QueueType: "priority", TotalSubmitted: 2, TotalCompleted: 1, Latencies: []float64{0.5}, Timestamp: time.Unix(0, 0).UTC()}
	rec, err := summaryRecord("loadtest-results", s)
	require.NoError(t, err)

	assert.Equal(t, "loadtest-results", rec.Topic)
	assert.Equal(t, []byte("run-7"), rec.Key)
	require.Len(t, rec.Headers, 2)
	assert.Equal(t, "queue_type", rec.Headers[1].Key)
	assert.Equal(t, []byte("priority"), rec.Headers[1].Value)

	var got domain.ResultSummary
	require.NoError(t, json.Unmarshal(rec.Value, &got))
	assert.Equal(t, s, got)
}

func TestSummaryRecord_RequiresRunID(t *testing.T) {
	_, err := summaryRecord("t", domain.ResultSummary{})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestSave_InvalidSummaryFailsBeforeProducing(t *testing.T) {
	p, err := NewSummaryPublisher([]string{"127.0.0.1:1"}, "results", "test-tx")
	require.NoError(t, err)
	defer p.Close()

	err = p.Save(context.Background(), domain.ResultSummary{})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestEnsureTopic_Validation(t *testing.T) {
	ctx := context.Background()
	for _, spec := range []topicSpec{
		{Name: "", Partitions: 1, ReplicationFactor: 1},
		{Name: "t", Partitions: 0, ReplicationFactor: 1},
		{Name: "t", Partitions: 1, ReplicationFactor: 0},
	} {
		require.ErrorIs(t, ensureTopic(ctx, nil, spec), domain.ErrInvalidArgument)
	}
}

func TestTopicSpec_Request(t *testing.T) {
	req := topicSpec{Name: "loadtest-results", Partitions: 3, ReplicationFactor: 1, Compact: true}.request()
	require.Len(t, req.Topics, 1)
	topic := req.Topics[0]
	assert.Equal(t, "loadtest-results", topic.Topic)
	assert.Equal(t, int32(3), topic.NumPartitions)
	require.Len(t, topic.Configs, 1)
	assert.Equal(t, "cleanup.policy", topic.Configs[0].Name)
	require.NotNil(t, topic.Configs[0].Value)
	assert.Equal(t, "compact", *topic.Configs[0].Value)

	plain := topicSpec{Name: "x", Partitions: 1, ReplicationFactor: 1}.request()
	assert.Empty(t, plain.Topics[0].Configs)
}
