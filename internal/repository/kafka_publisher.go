package repository

import (
	"context"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/domain/repository"
)

// Default topics.
const (
	TopicSnapshots = "marketpulse.snapshots"
	TopicAlerts    = "marketpulse.alerts"
	TopicSettings  = "marketpulse.settings"
)

// Producer is satisfied by *kafka.Producer.
type Producer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// Topics names the destination of each event kind.
type Topics struct {
	Snapshots string
	Alerts    string
	Settings  string
}

func (t Topics) withDefaults() Topics {
	if t.Snapshots == "" {
		t.Snapshots = TopicSnapshots
	}
	if t.Alerts == "" {
		t.Alerts = TopicAlerts
	}
	if t.Settings == "" {
		t.Settings = TopicSettings
	}
	return t
}

// KafkaPublisher implements EventPublisher over a Kafka producer.
// Snapshots and alerts are keyed by calendar day, settings by channel.
type KafkaPublisher struct {
	producer Producer
	topics   Topics
}

var _ repository.EventPublisher = (*KafkaPublisher)(nil)

func NewKafkaPublisher(producer Producer, topics Topics) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topics: topics.withDefaults()}
}

func dayKey(t time.Time) []byte {
	return []byte(t.Format("2006-01-02"))
}

func (p *KafkaPublisher) PublishSnapshot(ctx context.Context, s *models.Snapshot) error {
	if s == nil {
		return nil
	}
	return p.producer.Publish(ctx, p.topics.Snapshots, dayKey(s.AsOf), s)
}

func (p *KafkaPublisher) PublishAlerts(ctx context.Context, b *models.AlertBatch) error {
	if b == nil {
		return nil
	}
	return p.producer.Publish(ctx, p.topics.Alerts, dayKey(b.AsOf), b)
}

func (p *KafkaPublisher) PublishSettingsChange(ctx context.Context, c models.CredentialsChange) error {
	return p.producer.Publish(ctx, p.topics.Settings, []byte(c.Channel), c)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NopPublisher drops every event. Used when Kafka is disabled.
type NopPublisher struct{}

var _ repository.EventPublisher = NopPublisher{}

func (NopPublisher) PublishSnapshot(context.Context, *models.Snapshot) error { return nil }

func (NopPublisher) PublishAlerts(context.Context, *models.AlertBatch) error { return nil }

func (NopPublisher) PublishSettingsChange(context.Context, models.CredentialsChange) error {
	return nil
}

func (NopPublisher) Close() error { return nil }
