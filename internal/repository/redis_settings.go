package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/domain/repository"
)

const (
	fieldAPIKey   = "api_key"
	fieldClientID = "client_id"
)

// RedisSettingsStore keeps KPI targets in one hash and credentials in a hash
// per channel, so several replicas share the same settings.
type RedisSettingsStore struct {
	rdb      *redis.Client
	prefix   string
	defaults models.KPITargets
}

var _ repository.SettingsStore = (*RedisSettingsStore)(nil)

func NewRedisSettingsStore(rdb *redis.Client, prefix string, defaults models.KPITargets) *RedisSettingsStore {
	if prefix == "" {
		prefix = "marketpulse"
	}
	return &RedisSettingsStore{rdb: rdb, prefix: prefix, defaults: defaults}
}

func (s *RedisSettingsStore) kpiKey() string { return s.prefix + ":kpi" }

func (s *RedisSettingsStore) credsKey(channel string) string {
	return s.prefix + ":credentials:" + channel
}

// GetKPITargets seeds missing defaults with HSETNX, then reads the hash.
func (s *RedisSettingsStore) GetKPITargets(ctx context.Context) (models.KPITargets, error) {
	key := s.kpiKey()
	pipe := s.rdb.Pipeline()
	for k, v := range s.defaults.AsMap() {
		pipe.HSetNX(ctx, key, k, strconv.FormatFloat(v, 'f', -1, 64))
	}
	all := pipe.HGetAll(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return models.KPITargets{}, fmt.Errorf("read kpi: %w", err)
	}
	return parseKPI(all.Val(), s.defaults), nil
}

func parseKPI(raw map[string]string, defaults models.KPITargets) models.KPITargets {
	out := defaults
	for k, v := range raw {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			continue
		}
		// unknown keys are ignored
		_ = out.Set(k, f)
	}
	return out
}

func (s *RedisSettingsStore) SetKPIValue(ctx context.Context, key string, value float64) error {
	var check models.KPITargets
	if err := check.Set(key, value); err != nil {
		return err
	}
	if err := s.rdb.HSet(ctx, s.kpiKey(), key, strconv.FormatFloat(value, 'f', -1, 64)).Err(); err != nil {
		return fmt.Errorf("set kpi %s: %w", key, err)
	}
	return nil
}

func (s *RedisSettingsStore) GetCredentials(ctx context.Context, channel string) (*models.Credentials, error) {
	vals, err := s.rdb.HGetAll(ctx, s.credsKey(channel)).Result()
	if err != nil {
		return nil, fmt.Errorf("read credentials %s: %w", channel, err)
	}
	if vals[fieldAPIKey] == "" {
		return nil, nil
	}
	return &models.Credentials{APIKey: vals[fieldAPIKey], ClientID: vals[fieldClientID]}, nil
}

func (s *RedisSettingsStore) SaveCredentials(ctx context.Context, channel string, creds models.Credentials) error {
	key := s.credsKey(channel)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key, fieldAPIKey, creds.APIKey, fieldClientID, creds.ClientID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save credentials %s: %w", channel, err)
	}
	return nil
}

func (s *RedisSettingsStore) DeleteCredentials(ctx context.Context, channel string) error {
	if err := s.rdb.Del(ctx, s.credsKey(channel)).Err(); err != nil {
		return fmt.Errorf("delete credentials %s: %w", channel, err)
	}
	return nil
}

func (s *RedisSettingsStore) HasCredentials(ctx context.Context, channel string) (bool, error) {
	v, err := s.rdb.HGet(ctx, s.credsKey(channel), fieldAPIKey).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check credentials %s: %w", channel, err)
	}
	return v != "", nil
}
