// Package kafka ships audit events to a Kafka topic. It implements
// audit.Store so deployments can choose between the postgres outbox (relay
// delivery) and direct production.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/fossabot/authrim-sub007/pkg/platform/audit"
)

type Sink struct {
	client *kgo.Client
	topic  string
}

// New connects a producer to the given brokers and ensures the audit topic
// exists, using broker defaults for partitions and replication. The topic
// carries all categories; consumers route on the event's category field.
func New(ctx context.Context, brokers []string, topic string) (*Sink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka producer: %w", err)
	}

	adm := kadm.NewClient(client)
	if _, err := adm.CreateTopic(ctx, -1, -1, nil, topic); err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		client.Close()
		return nil, fmt.Errorf("ensure audit topic %q: %w", topic, err)
	}
	return &Sink{client: client, topic: topic}, nil
}

// Append produces one event synchronously. Events for the same tenant share
// a partition key so per-tenant ordering survives consumption.
func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.TenantID),
		Value: payload,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

func (s *Sink) Close() {
	s.client.Close()
}
