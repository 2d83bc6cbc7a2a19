package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/domain/service"
	"MarketPulse/internal/repository"
	"MarketPulse/internal/service/cache"
)

type stubProvider struct {
	channel string
	delay   time.Duration
	result  models.FetchResult
	calls   int32

	mu        sync.Mutex
	lastCreds *models.Credentials
}

func (s *stubProvider) Channel() string { return s.channel }

func (s *stubProvider) Fetch(_ context.Context, creds *models.Credentials, _ time.Time) models.FetchResult {
	atomic.AddInt32(&s.calls, 1)
	s.mu.Lock()
	s.lastCreds = creds
	s.mu.Unlock()
	time.Sleep(s.delay)
	return s.result
}

func liveResult(channel string, revenue, orders, conversion float64) models.FetchResult {
	return models.FetchResult{
		Outcome: models.OutcomeLive,
		Metrics: models.ChannelMetrics{
			Source:  models.SourceAPI,
			Channel: channel,
			Today:   models.DayMetrics{Revenue: revenue, Orders: orders, Conversion: conversion},
		},
	}
}

var aggAt = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

func newTestAggregator(providers ...service.ChannelProvider) (*Aggregator, *repository.MemorySettingsStore) {
	store := repository.NewMemorySettingsStore(healthyKPI)
	return NewAggregator(providers, store, cache.NewSnapshotCache(), time.Minute, nil), store
}

func TestAggregator_SlowFailureDoesNotDisturbOtherChannel(t *testing.T) {
	oz := &stubProvider{
		channel: models.ChannelOzon,
		delay:   30 * time.Millisecond,
		result:  models.FetchResult{Outcome: models.OutcomeFailed, Metrics: models.Failed(models.ChannelOzon, "Invalid keys")},
	}
	wb := &stubProvider{channel: models.ChannelWildberries, result: liveResult(models.ChannelWildberries, 1000, 10, 2)}
	agg, _ := newTestAggregator(oz, wb)

	s := agg.Snapshot(context.Background(), aggAt)

	require.Len(t, s.Channels, 2)
	assert.Equal(t, models.ChannelOzon, s.Channels[0].Channel)
	assert.Equal(t, models.SourceError, s.Channels[0].Source)
	assert.Equal(t, "Invalid keys", s.Channels[0].Error)
	assert.Equal(t, models.ChannelWildberries, s.Channels[1].Channel)
	assert.Equal(t, 1000.0, s.Today.Revenue)
	assert.Equal(t, []models.Source{models.SourceError, models.SourceAPI}, s.Sources)
	assert.False(t, s.IsDemo())
	assert.Equal(t, aggAt, s.AsOf)
}

func TestAggregator_CachesSuccessButNotFailure(t *testing.T) {
	oz := &stubProvider{
		channel: models.ChannelOzon,
		result:  models.FetchResult{Outcome: models.OutcomeFailed, Metrics: models.Failed(models.ChannelOzon, "bad")},
	}
	wb := &stubProvider{channel: models.ChannelWildberries, result: liveResult(models.ChannelWildberries, 1, 1, 1)}
	agg, _ := newTestAggregator(oz, wb)

	agg.Snapshot(context.Background(), aggAt)
	agg.Snapshot(context.Background(), aggAt)

	assert.EqualValues(t, 2, atomic.LoadInt32(&oz.calls))
	assert.EqualValues(t, 1, atomic.LoadInt32(&wb.calls))

	agg.Invalidate(context.Background(), models.ChannelWildberries)
	agg.Snapshot(context.Background(), aggAt)
	assert.EqualValues(t, 2, atomic.LoadInt32(&wb.calls))
}

func TestAggregator_PassesStoredCredentials(t *testing.T) {
	oz := &stubProvider{channel: models.ChannelOzon, result: liveResult(models.ChannelOzon, 1, 1, 1)}
	agg, store := newTestAggregator(oz)
	creds := models.Credentials{APIKey: "key-12345", ClientID: "77"}
	require.NoError(t, store.SaveCredentials(context.Background(), models.ChannelOzon, creds))

	agg.Snapshot(context.Background(), aggAt)

	oz.mu.Lock()
	defer oz.mu.Unlock()
	require.NotNil(t, oz.lastCreds)
	assert.Equal(t, creds, *oz.lastCreds)
}

func TestAggregator_Channel(t *testing.T) {
	wb := &stubProvider{channel: models.ChannelWildberries, result: liveResult(models.ChannelWildberries, 5, 1, 1)}
	agg, _ := newTestAggregator(wb)

	e, err := agg.Channel(context.Background(), models.ChannelWildberries, aggAt)
	require.NoError(t, err)
	assert.False(t, e.Cached)
	assert.Equal(t, "2026-10-14", e.Day)

	e, err = agg.Channel(context.Background(), models.ChannelWildberries, aggAt)
	require.NoError(t, err)
	assert.True(t, e.Cached)

	_, err = agg.Channel(context.Background(), "amazon", aggAt)
	assert.ErrorIs(t, err, models.ErrUnknownChannel)
	assert.Equal(t, []string{models.ChannelWildberries}, agg.Channels())
}

func TestAggregator_AllDemoSnapshot(t *testing.T) {
	demo := models.FetchResult{Outcome: models.OutcomeFallback, Metrics: models.ChannelMetrics{Source: models.SourceMock}}
	agg, _ := newTestAggregator(
		&stubProvider{channel: models.ChannelOzon, result: demo},
		&stubProvider{channel: models.ChannelWildberries, result: demo},
	)

	s := agg.Snapshot(context.Background(), aggAt)
	assert.True(t, s.IsDemo())
	assert.Equal(t, []models.Source{models.SourceMock}, s.Sources)
}
