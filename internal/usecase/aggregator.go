package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/domain/repository"
	"MarketPulse/internal/domain/service"
	"MarketPulse/internal/service/cache"
	"MarketPulse/pkg/logger"
)

// Aggregator fetches every configured channel through the snapshot cache
// and merges the results.
type Aggregator struct {
	providers []service.ChannelProvider
	settings  repository.SettingsStore
	cache     *cache.SnapshotCache
	ttl       time.Duration
	log       *logger.Logger
}

func NewAggregator(
	providers []service.ChannelProvider,
	settings repository.SettingsStore,
	snapshots *cache.SnapshotCache,
	ttl time.Duration,
	log *logger.Logger,
) *Aggregator {
	if log == nil {
		log = logger.Nop()
	}
	return &Aggregator{
		providers: providers,
		settings:  settings,
		cache:     snapshots,
		ttl:       ttl,
		log:       log,
	}
}

// Channels lists the configured channel ids in merge order.
func (a *Aggregator) Channels() []string {
	out := make([]string, len(a.providers))
	for i, p := range a.providers {
		out[i] = p.Channel()
	}
	return out
}

// Snapshot never fails because of a channel: a failing channel contributes
// its error or demo result.
func (a *Aggregator) Snapshot(ctx context.Context, at time.Time) *models.Snapshot {
	type item struct {
		idx     int
		metrics models.ChannelMetrics
	}
	ch := make(chan item, len(a.providers))
	var wg sync.WaitGroup

	for i, p := range a.providers {
		wg.Add(1)
		go func(i int, p service.ChannelProvider) {
			defer wg.Done()
			ch <- item{i, a.fetch(ctx, p, at).Metrics}
		}(i, p)
	}
	go func() { wg.Wait(); close(ch) }()

	channels := make([]models.ChannelMetrics, len(a.providers))
	for it := range ch {
		channels[it.idx] = it.metrics
	}

	s := Merge(at, channels)
	a.log.Debug("snapshot built",
		logger.Any("sources", s.Sources),
		logger.Float64("revenue", s.Today.Revenue),
		logger.Float64("orders", s.Today.Orders),
	)
	return s
}

// Channel returns one channel's (possibly cached) entry.
func (a *Aggregator) Channel(ctx context.Context, channel string, at time.Time) (cache.Entry, error) {
	for _, p := range a.providers {
		if p.Channel() == channel {
			return a.fetch(ctx, p, at), nil
		}
	}
	return cache.Entry{}, fmt.Errorf("%q: %w", channel, models.ErrUnknownChannel)
}

// Invalidate drops the cached result of channel.
func (a *Aggregator) Invalidate(ctx context.Context, channel string) {
	a.cache.Invalidate(ctx, channel)
}

func (a *Aggregator) fetch(ctx context.Context, p service.ChannelProvider, at time.Time) cache.Entry {
	channel := p.Channel()
	return a.cache.GetOrFetch(ctx, channel, a.ttl, at, func(ctx context.Context) models.FetchResult {
		creds, err := a.settings.GetCredentials(ctx, channel)
		if err != nil {
			// unreadable settings are treated as unconfigured
			a.log.Warn("read credentials failed", logger.String("channel", channel), logger.Error(err))
			creds = nil
		}
		res := p.Fetch(ctx, creds, at)
		if res.Outcome == models.OutcomeFailed {
			a.log.Warn("channel failed", logger.String("channel", channel), logger.Error(res.Err))
		}
		return res
	})
}
