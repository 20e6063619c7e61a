// Package kafka publishes lifecycle events to a Kafka-compatible broker.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"vcanchor/internal/platform/config"
	audit "vcanchor/pkg/platform/audit"
	"vcanchor/pkg/platform/audit/worker"
)

// Producer writes records to the lifecycle topic. It serves both as the
// outbox relay sink and, without Postgres, as a direct audit.Store.
type Producer struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewProducer connects to the brokers and, when configured, creates the topic.
// Returns nil when no brokers are configured.
func NewProducer(ctx context.Context, cfg config.KafkaConfig, logger *slog.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProduceRequestTimeout(cfg.ProduceTimeout),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka ping failed: %w", err)
	}

	p := &Producer{client: client, topic: cfg.Topic, logger: logger}
	if cfg.CreateTopic {
		if err := p.EnsureTopic(ctx, cfg.Partitions, cfg.Replication); err != nil {
			client.Close()
			return nil, err
		}
	}
	return p, nil
}

// EnsureTopic creates the lifecycle topic if it does not exist.
func (p *Producer) EnsureTopic(ctx context.Context, partitions int32, replication int16) error {
	adm := kadm.NewClient(p.client)
	resp, err := adm.CreateTopics(ctx, partitions, replication, nil, p.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", p.topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// Publish produces the batch synchronously and fails if any record fails.
func (p *Producer) Publish(ctx context.Context, messages []worker.Message) error {
	records := make([]*kgo.Record, 0, len(messages))
	for _, m := range messages {
		rec := &kgo.Record{Topic: p.topic, Key: []byte(m.Key), Value: m.Value}
		for k, v := range m.Headers {
			rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
		}
		records = append(records, rec)
	}
	if err := p.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce %d records: %w", len(records), err)
	}
	return nil
}

// Append publishes one event directly, bypassing the outbox.
func (p *Producer) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.Publish(ctx, []worker.Message{{
		Key:   event.AggregateType + ":" + event.AggregateID,
		Value: payload,
		Headers: map[string]string{
			"event_type": string(event.Type),
			"event_id":   event.ID.String(),
		},
	}})
}

// Close flushes buffered records and closes the client.
func (p *Producer) Close() {
	p.client.Close()
}
