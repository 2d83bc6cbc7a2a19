package repository

import (
	"context"
	"time"

	"MarketPulse/internal/domain/models"
)

// SettingsStore is the settings / registry collaborator.
type SettingsStore interface {
	GetKPITargets(ctx context.Context) (models.KPITargets, error)
	SetKPIValue(ctx context.Context, key string, value float64) error
	GetCredentials(ctx context.Context, channel string) (*models.Credentials, error) // nil when absent
	SaveCredentials(ctx context.Context, channel string, creds models.Credentials) error
	DeleteCredentials(ctx context.Context, channel string) error
	HasCredentials(ctx context.Context, channel string) (bool, error)
}

// EventPublisher fans snapshots and alerts out to presentation / delivery.
type EventPublisher interface {
	PublishSnapshot(ctx context.Context, s *models.Snapshot) error
	PublishAlerts(ctx context.Context, b *models.AlertBatch) error
	PublishSettingsChange(ctx context.Context, c models.CredentialsChange) error
	Close() error
}

// HistoryStore archives per-channel daily figures.
type HistoryStore interface {
	Init(ctx context.Context) error
	StoreSnapshot(ctx context.Context, s *models.Snapshot) error
	Query(ctx context.Context, channel string, from, to time.Time) ([]models.HistoryRow, error)
	Close() error
}

// Metrics records operational counters.
type Metrics interface {
	RecordFetch(channel string, source models.Source, seconds float64)
	RecordCache(channel string, hit bool)
	RecordAlert(code models.AlertCode)
	RecordError(kind string)
}
