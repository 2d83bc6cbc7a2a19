package repository

import (
	"context"
	"sync"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/domain/repository"
)

// MemorySettingsStore keeps settings in process memory.
type MemorySettingsStore struct {
	mu    sync.RWMutex
	kpi   models.KPITargets
	creds map[string]models.Credentials
}

var _ repository.SettingsStore = (*MemorySettingsStore)(nil)

// NewMemorySettingsStore starts from the given KPI defaults.
func NewMemorySettingsStore(defaults models.KPITargets) *MemorySettingsStore {
	return &MemorySettingsStore{
		kpi:   defaults,
		creds: make(map[string]models.Credentials),
	}
}

func (s *MemorySettingsStore) GetKPITargets(_ context.Context) (models.KPITargets, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.kpi, nil
}

func (s *MemorySettingsStore) SetKPIValue(_ context.Context, key string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kpi.Set(key, value)
}

func (s *MemorySettingsStore) GetCredentials(_ context.Context, channel string) (*models.Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.creds[channel]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *MemorySettingsStore) SaveCredentials(_ context.Context, channel string, creds models.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[channel] = creds
	return nil
}

func (s *MemorySettingsStore) DeleteCredentials(_ context.Context, channel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, channel)
	return nil
}

func (s *MemorySettingsStore) HasCredentials(_ context.Context, channel string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.creds[channel]
	return ok && c.APIKey != "", nil
}

// SeedCredentials stores each seed whose channel has no credentials yet.
// Empty API keys are skipped.
func SeedCredentials(ctx context.Context, store repository.SettingsStore, seeds map[string]models.Credentials) error {
	for channel, creds := range seeds {
		if creds.APIKey == "" {
			continue
		}
		has, err := store.HasCredentials(ctx, channel)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if err := store.SaveCredentials(ctx, channel, creds); err != nil {
			return err
		}
	}
	return nil
}
