package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/domain/repository"
	"MarketPulse/pkg/logger"
)

// ErrClientIDRequired is returned when Ozon credentials lack a client id.
var ErrClientIDRequired = errors.New("client id is required for ozon")

// Credential change actions.
const (
	ActionSaved   = "saved"
	ActionDeleted = "deleted"
)

// Invalidator drops a channel's cached result.
type Invalidator interface {
	Invalidate(ctx context.Context, channel string)
}

// SettingsService edits KPI targets and credentials. Every credential change
// clears the channel's cache entry and is announced to other replicas.
type SettingsService struct {
	store    repository.SettingsStore
	cache    Invalidator
	pub      repository.EventPublisher
	channels []string
	log      *logger.Logger
	now      func() time.Time
}

func NewSettingsService(
	store repository.SettingsStore,
	cache Invalidator,
	pub repository.EventPublisher,
	channels []string,
	log *logger.Logger,
) *SettingsService {
	if log == nil {
		log = logger.Nop()
	}
	return &SettingsService{
		store:    store,
		cache:    cache,
		pub:      pub,
		channels: channels,
		log:      log,
		now:      time.Now,
	}
}

func (s *SettingsService) KPI(ctx context.Context) (models.KPITargets, error) {
	return s.store.GetKPITargets(ctx)
}

// SetKPI stores one target and returns the full updated set.
func (s *SettingsService) SetKPI(ctx context.Context, key string, value float64) (models.KPITargets, error) {
	if err := s.store.SetKPIValue(ctx, key, value); err != nil {
		return models.KPITargets{}, err
	}
	s.log.Info("kpi updated", logger.String("key", key), logger.Float64("value", value))
	return s.store.GetKPITargets(ctx)
}

// SaveCredentials accepts the platform aliases of NormalizeChannel and
// returns the canonical channel id.
func (s *SettingsService) SaveCredentials(ctx context.Context, platform string, creds models.Credentials) (string, error) {
	channel, err := models.NormalizeChannel(platform)
	if err != nil {
		return "", err
	}
	if channel == models.ChannelOzon && creds.ClientID == "" {
		return "", ErrClientIDRequired
	}
	if channel != models.ChannelOzon {
		creds.ClientID = ""
	}
	if err := s.store.SaveCredentials(ctx, channel, creds); err != nil {
		return "", fmt.Errorf("save credentials: %w", err)
	}
	s.changed(ctx, channel, ActionSaved)
	return channel, nil
}

func (s *SettingsService) DeleteCredentials(ctx context.Context, platform string) (string, error) {
	channel, err := models.NormalizeChannel(platform)
	if err != nil {
		return "", err
	}
	if err := s.store.DeleteCredentials(ctx, channel); err != nil {
		return "", fmt.Errorf("delete credentials: %w", err)
	}
	s.changed(ctx, channel, ActionDeleted)
	return channel, nil
}

// Status reports per channel whether credentials are configured.
func (s *SettingsService) Status(ctx context.Context) (map[string]bool, error) {
	out := make(map[string]bool, len(s.channels))
	for _, ch := range s.channels {
		has, err := s.store.HasCredentials(ctx, ch)
		if err != nil {
			return nil, err
		}
		out[ch] = has
	}
	return out, nil
}

func (s *SettingsService) changed(ctx context.Context, channel, action string) {
	s.cache.Invalidate(ctx, channel)
	s.log.Info("credentials changed", logger.String("channel", channel), logger.String("action", action))
	if s.pub == nil {
		return
	}
	change := models.CredentialsChange{Channel: channel, Action: action, ChangedAt: s.now()}
	if err := s.pub.PublishSettingsChange(ctx, change); err != nil {
		s.log.Warn("publish settings change failed", logger.String("channel", channel), logger.Error(err))
	}
}
