package redpanda

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"

	"github.com/fairyhunter13/queue-latency-bench/internal/domain"
)

// topicSpec describes the results topic. Records are keyed by run id, so a
// compacted topic keeps the latest summary of every run.
type topicSpec struct {
	Name              string
	Partitions        int32
	ReplicationFactor int16
	Compact           bool
}

func (s topicSpec) validate() error {
	switch {
	case s.Name == "":
		return fmt.Errorf("%w: empty topic name", domain.ErrInvalidArgument)
	case s.Partitions <= 0:
		return fmt.Errorf("%w: partitions must be positive", domain.ErrInvalidArgument)
	case s.ReplicationFactor <= 0:
		return fmt.Errorf("%w: replication factor must be positive", domain.ErrInvalidArgument)
	}
	return nil
}

func (s topicSpec) request() kmsg.CreateTopicsRequest {
	req := kmsg.NewCreateTopicsRequest()
	req.TimeoutMillis = 30000

	t := kmsg.NewCreateTopicsRequestTopic()
	t.Topic = s.Name
	t.NumPartitions = s.Partitions
	t.ReplicationFactor = s.ReplicationFactor
	if s.Compact {
		c := kmsg.NewCreateTopicsRequestTopicConfig()
		c.Name = "cleanup.policy"
		policy := "compact"
		c.Value = &policy
		t.Configs = append(t.Configs, c)
	}
	req.Topics = append(req.Topics, t)
	return req
}

// ensureTopic creates the topic through the admin API. An existing topic is not an error.
func ensureTopic(ctx context.Context, client *kgo.Client, spec topicSpec) error {
	if err := spec.validate(); err != nil {
		return fmt.Errorf("op=redpanda.ensureTopic: %w", err)
	}
	req := spec.request()
	resp, err := req.RequestWith(ctx, client)
	if err != nil {
		return fmt.Errorf("op=redpanda.ensureTopic: %w", err)
	}
	for _, t := range resp.Topics {
		err := kerr.ErrorForCode(t.ErrorCode)
		if errors.Is(err, kerr.TopicAlreadyExists) {
			slog.Debug("results topic exists", slog.String("topic", t.Topic))
			continue
		}
		if err != nil {
			return fmt.Errorf("op=redpanda.ensureTopic: %s: %w", t.Topic, err)
		}
		slog.Info("results topic created", slog.String("topic", t.Topic), slog.Int("partitions", int(spec.Partitions)))
	}
	return nil
}
