// Package cache memoizes per-channel provider results for a bounded time.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/domain/repository"
	"MarketPulse/pkg/cache"
	"MarketPulse/pkg/logger"

	"golang.org/x/sync/singleflight"
)

const (
	dayLayout = "2006-01-02"

	// days kept per channel; the oldest stored entry is evicted beyond it
	maxDaysPerChannel = 7
)

// FetchFunc produces a fresh result on a cache miss.
type FetchFunc func(ctx context.Context) models.FetchResult

// Entry is a cached channel result.
type Entry struct {
	Metrics  models.ChannelMetrics `json:"metrics"`
	Day      string                `json:"day"`
	StoredAt time.Time             `json:"storedAt"`
	// FetchedAt is when the provider call began, before or after an invalidation.
	FetchedAt time.Time `json:"fetchedAt"`
	// Cached is set when the entry was served without calling the provider.
	Cached bool `json:"-"`
}

// Option configures SnapshotCache.
type Option func(*SnapshotCache)

// SnapshotCache keeps the last result per channel and calendar day. Entries
// are only served within their TTL, and error-sourced results are never stored.
type SnapshotCache struct {
	mu      sync.Mutex
	entries map[string]map[string]Entry
	gen     map[string]uint64
	// invalidated records when a channel was last invalidated; shared entries
	// fetched before that belong to old credentials
	invalidated map[string]time.Time
	group       singleflight.Group

	now     func() time.Time
	shared  cache.Service
	metrics repository.Metrics
	log     *logger.Logger
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *SnapshotCache) { c.now = now }
}

// WithShared adds a second level shared between replicas (e.g. Redis).
func WithShared(s cache.Service) Option {
	return func(c *SnapshotCache) { c.shared = s }
}

func WithMetrics(m repository.Metrics) Option {
	return func(c *SnapshotCache) { c.metrics = m }
}

func WithLogger(l *logger.Logger) Option {
	return func(c *SnapshotCache) {
		if l != nil {
			c.log = l
		}
	}
}

func NewSnapshotCache(opts ...Option) *SnapshotCache {
	c := &SnapshotCache{
		entries:     make(map[string]map[string]Entry),
		gen:         make(map[string]uint64),
		invalidated: make(map[string]time.Time),
		now:         time.Now,
		log:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func sharedKey(channel, dayKey string) string {
	return cache.GenerateKey("snapshot", channel, dayKey)
}

// GetOrFetch returns the cached entry of channel for day if it is younger than
// ttl, otherwise calls fetch once for all concurrent callers and stores the result.
func (c *SnapshotCache) GetOrFetch(ctx context.Context, channel string, ttl time.Duration, day time.Time, fetch FetchFunc) Entry {
	dayKey := day.Format(dayLayout)

	if e, ok := c.lookup(ctx, channel, dayKey, ttl); ok {
		c.record(channel, true)
		e.Cached = true
		return e
	}
	c.record(channel, false)

	c.mu.Lock()
	gen := c.gen[channel]
	c.mu.Unlock()

	flightKey := fmt.Sprintf("%s|%s|%d", channel, dayKey, gen)
	v, _, _ := c.group.Do(flightKey, func() (interface{}, error) {
		// an abandoned caller must not cancel a fetch other callers share
		started := c.now()
		res := fetch(context.WithoutCancel(ctx))
		e := Entry{Metrics: res.Metrics, Day: dayKey, StoredAt: c.now(), FetchedAt: started}
		if res.Metrics.Source != models.SourceError {
			c.store(ctx, channel, gen, e)
		}
		return e, nil
	})
	return v.(Entry)
}

func (c *SnapshotCache) fresh(e Entry, dayKey string, ttl time.Duration) bool {
	return ttl > 0 &&
		e.Day == dayKey &&
		e.Metrics.Source != models.SourceError &&
		c.now().Sub(e.StoredAt) < ttl
}

func (c *SnapshotCache) lookup(ctx context.Context, channel, dayKey string, ttl time.Duration) (Entry, bool) {
	c.mu.Lock()
	e, ok := c.entries[channel][dayKey]
	c.mu.Unlock()
	if ok && c.fresh(e, dayKey, ttl) {
		return e, true
	}
	if c.shared == nil {
		return Entry{}, false
	}

	var remote Entry
	if err := c.shared.Get(ctx, sharedKey(channel, dayKey), &remote); err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.log.Warn("shared snapshot cache read failed", logger.String("channel", channel), logger.Error(err))
		}
		return Entry{}, false
	}
	if !c.fresh(remote, dayKey, ttl) {
		return Entry{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if remote.FetchedAt.Before(c.invalidated[channel]) {
		return Entry{}, false
	}
	c.put(channel, remote)
	return remote, true
}

func (c *SnapshotCache) store(ctx context.Context, channel string, gen uint64, e Entry) {
	c.mu.Lock()
	if c.gen[channel] != gen {
		// invalidated while fetching: the result belongs to old credentials
		c.mu.Unlock()
		return
	}
	c.put(channel, e)
	c.mu.Unlock()

	if c.shared != nil {
		// the shared copy may outlive this process' TTL view; readers check StoredAt
		if err := c.shared.Set(context.WithoutCancel(ctx), sharedKey(channel, e.Day), e, 24*time.Hour); err != nil {
			c.log.Warn("shared snapshot cache write failed", logger.String("channel", channel), logger.Error(err))
		}
	}
}

// put stores e under its day. Callers hold c.mu.
func (c *SnapshotCache) put(channel string, e Entry) {
	days := c.entries[channel]
	if days == nil {
		days = make(map[string]Entry)
		c.entries[channel] = days
	}
	days[e.Day] = e
	for len(days) > maxDaysPerChannel {
		oldest := ""
		for k, v := range days {
			if oldest == "" || v.StoredAt.Before(days[oldest].StoredAt) {
				oldest = k
			}
		}
		delete(days, oldest)
	}
}

// Peek returns the stored entry of channel for day regardless of age.
func (c *SnapshotCache) Peek(channel string, day time.Time) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[channel][day.Format(dayLayout)]
	return e, ok
}

// Invalidate drops every entry of channel immediately. In-flight fetches
// started before the call do not repopulate it, and shared entries fetched
// before it are ignored.
func (c *SnapshotCache) Invalidate(ctx context.Context, channel string) {
	now := c.now()
	keys := []string{sharedKey(channel, now.Format(dayLayout))}

	c.mu.Lock()
	for dayKey := range c.entries[channel] {
		if k := sharedKey(channel, dayKey); k != keys[0] {
			keys = append(keys, k)
		}
	}
	delete(c.entries, channel)
	c.gen[channel]++
	c.invalidated[channel] = now
	c.mu.Unlock()

	if c.shared != nil {
		if err := c.shared.Delete(ctx, keys...); err != nil {
			c.log.Warn("shared snapshot cache delete failed", logger.String("channel", channel), logger.Error(err))
		}
	}
	c.log.Info("snapshot cache invalidated", logger.String("channel", channel))
}

func (c *SnapshotCache) record(channel string, hit bool) {
	if c.metrics != nil {
		c.metrics.RecordCache(channel, hit)
	}
}
