// Package redpanda publishes run summaries to a Redpanda/Kafka topic.
package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"

	"github.com/fairyhunter13/queue-latency-bench/internal/domain"
)

// SummaryPublisher produces one record per run summary, keyed by run id.
// It implements domain.SummaryRepository.
type SummaryPublisher struct {
	client    *kgo.Client
	topic     string
	topicOnce sync.Once
	topicErr  error
	// serializes transactions on the shared client
	transactionChan chan struct{}
}

var _ domain.SummaryRepository = (*SummaryPublisher)(nil)

// NewSummaryPublisher constructs a transactional publisher with OpenTelemetry hooks.
func NewSummaryPublisher(brokers []string, topic, transactionalID string) (*SummaryPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("op=redpanda.NewSummaryPublisher: %w: no seed brokers provided", domain.ErrInvalidArgument)
	}
	if topic == "" {
		return nil, fmt.Errorf("op=redpanda.NewSummaryPublisher: %w: empty topic", domain.ErrInvalidArgument)
	}
	if transactionalID == "" {
		transactionalID = "queue-latency-bench-publisher"
	}
	slog.Info("creating redpanda publisher", slog.Any("brokers", brokers), slog.String("topic", topic))

	kt := kotel.NewKotel(kotel.WithTracer(kotel.NewTracer()))
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.TransactionalID(transactionalID),
		kgo.RequestRetries(10),
		kgo.ProducerBatchMaxBytes(1000000),
		kgo.WithHooks(kt.Hooks()...),
	)
	if err != nil {
		return nil, fmt.Errorf("op=redpanda.NewSummaryPublisher: %w", err)
	}
	return &SummaryPublisher{
		client:          client,
		topic:           topic,
		transactionChan: make(chan struct{}, 1),
	}, nil
}

// Save publishes s inside a transaction. The topic is created on first use.
func (p *SummaryPublisher) Save(ctx context.Context, s domain.ResultSummary) error {
	rec, err := summaryRecord(p.topic, s)
	if err != nil {
		return fmt.Errorf("op=redpanda.Save: %w", err)
	}

	p.topicOnce.Do(func() {
		p.topicErr = ensureTopic(ctx, p.client, topicSpec{Name: p.topic, Partitions: 1, ReplicationFactor: 1, Compact: true})
	})
	if p.topicErr != nil {
		slog.Warn("failed to create topic, it may already exist", slog.String("topic", p.topic), slog.Any("error", p.topicErr))
	}

	select {
	case p.transactionChan <- struct{}{}:
		defer func() { <-p.transactionChan }()
	case <-ctx.Done():
		return fmt.Errorf("op=redpanda.Save: %w", ctx.Err())
	}

	if err := p.client.BeginTransaction(); err != nil {
		return fmt.Errorf("op=redpanda.Save: begin transaction: %w", err)
	}
	e := kgo.AbortingFirstErrPromise(p.client)
	p.client.Produce(ctx, rec, e.Promise())
	if err := e.Err(); err != nil {
		if abortErr := p.client.EndTransaction(ctx, kgo.TryAbort); abortErr != nil {
			slog.Error("failed to abort transaction", slog.Any("error", abortErr))
		}
		return fmt.Errorf("op=redpanda.Save: produce: %w", err)
	}
	if err := p.client.EndTransaction(ctx, kgo.TryCommit); err != nil {
		return fmt.Errorf("op=redpanda.Save: commit transaction: %w", err)
	}
	slog.Info("summary published", slog.String("topic", p.topic), slog.String("run_id", s.RunID))
	return nil
}

// Close closes the underlying client.
func (p *SummaryPublisher) Close() {
	if p.client != nil {
		p.client.Close()
	}
}

func summaryRecord(topic string, s domain.ResultSummary) (*kgo.Record, error) {
	if s.RunID == "" {
		return nil, fmt.Errorf("%w: empty run id", domain.ErrInvalidArgument)
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal summary: %v", domain.ErrInvalidArgument, err)
	}
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(s.RunID),
		Value: b,
		Headers: []kgo.RecordHeader{
			{Key: "run_id", Value: []byte(s.RunID)},
			{Key: "queue_type", Value: []byte(s.QueueType)},
		},
	}, nil
}
