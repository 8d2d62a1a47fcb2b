// Package kafka publishes committed trail records to a Kafka topic so that
// downstream consumers can mirror or index the trail.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"certtrail/internal/platform/config"
	"certtrail/internal/trail"
)

// RecordEvent is the message value written for each committed record.
type RecordEvent struct {
	ID              string          `json:"id"`
	SubjectID       string          `json:"uuid"`
	Action          string          `json:"action"`
	UserFingerprint string          `json:"userFingerprint"`
	Hash            string          `json:"hash"`
	ServiceID       string          `json:"serviceId"`
	CreatedAt       time.Time       `json:"createdAt"`
	Data            json.RawMessage `json:"data,omitempty"`
}

func NewRecordEvent(rec trail.Record) RecordEvent {
	return RecordEvent{
		ID:              rec.ID.String(),
		SubjectID:       rec.SubjectID,
		Action:          string(rec.Action),
		UserFingerprint: rec.CallerFingerprint,
		Hash:            rec.Digest,
		ServiceID:       rec.AuthorID,
		CreatedAt:       rec.CreatedAt,
		Data:            rec.Payload,
	}
}

// Publisher produces RecordEvents keyed by subject, so every record of one
// subject lands on the same partition in order.
type Publisher struct {
	client            *kgo.Client
	topic             string
	partitions        int32
	replicationFactor int16
}

func NewPublisher(cfg config.KafkaConfig, opts ...kgo.Opt) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	base := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression(), kgo.NoCompression()),
		kgo.RecordDeliveryTimeout(10 * time.Second),
	}
	client, err := kgo.NewClient(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	partitions := cfg.Partitions
	if partitions < 1 {
		partitions = 1
	}
	rf := cfg.ReplicationFactor
	if rf < 1 {
		rf = 1
	}
	return &Publisher{client: client, topic: cfg.Topic, partitions: partitions, replicationFactor: rf}, nil
}

// EnsureTopic creates the topic when missing. An existing topic is fine.
func (p *Publisher) EnsureTopic(ctx context.Context) error {
	adm := kadm.NewClient(p.client)
	resp, err := adm.CreateTopic(ctx, p.partitions, p.replicationFactor, nil, p.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", p.topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", p.topic, resp.Err)
	}
	return nil
}

// Publish writes rec synchronously and returns the broker's verdict.
func (p *Publisher) Publish(ctx context.Context, rec trail.Record) error {
	value, err := json.Marshal(NewRecordEvent(rec))
	if err != nil {
		return fmt.Errorf("encode record event: %w", err)
	}
	msg := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(rec.SubjectID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "action", Value: []byte(rec.Action)},
		},
	}
	if err := p.client.ProduceSync(ctx, msg).FirstErr(); err != nil {
		return fmt.Errorf("produce record %s: %w", rec.ID, err)
	}
	return nil
}

// Ping checks broker reachability.
func (p *Publisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

func (p *Publisher) Close() {
	p.client.Close()
}
