// Package channel wraps a marketplace's live fetcher with the fallback policy
// shared by every channel.
package channel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/domain/repository"
	"MarketPulse/internal/service/simulator"
	xhttp "MarketPulse/pkg/http"
	"MarketPulse/pkg/logger"
)

// Fetcher issues the live calls of one marketplace.
type Fetcher interface {
	Channel() string
	// Configured reports whether creds carry everything the upstream needs.
	Configured(creds *models.Credentials) bool
	FetchLive(ctx context.Context, creds models.Credentials, at time.Time) (models.ChannelMetrics, error)
	// AuthFailureMessage is shown to the operator when credentials are rejected.
	AuthFailureMessage() string
}

// Budgeted is implemented by fetchers that know how long a full live fetch
// may take: per-call timeout times sequential calls plus pacing.
type Budgeted interface {
	Budget() time.Duration
}

// Option configures Provider.
type Option func(*Provider)

// Provider implements service.ChannelProvider on top of a Fetcher.
type Provider struct {
	fetcher  Fetcher
	timeout  time.Duration
	log      *logger.Logger
	metrics  repository.Metrics
	generate func(channel string, date time.Time) models.ChannelMetrics
}

// WithTimeout bounds the whole live fetch. Zero keeps the fetcher's budget.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.log = l
		}
	}
}

func WithMetrics(m repository.Metrics) Option {
	return func(p *Provider) { p.metrics = m }
}

func NewProvider(f Fetcher, opts ...Option) *Provider {
	p := &Provider{
		fetcher:  f,
		timeout:  15 * time.Second,
		log:      logger.Nop(),
		generate: simulator.Generate,
	}
	if b, ok := f.(Budgeted); ok && b.Budget() > 0 {
		p.timeout = b.Budget()
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With(logger.String("channel", f.Channel()))
	return p
}

func (p *Provider) Channel() string { return p.fetcher.Channel() }

// Fetch never fails: the outcome is folded into the result variant.
func (p *Provider) Fetch(ctx context.Context, creds *models.Credentials, at time.Time) (res models.FetchResult) {
	channel := p.fetcher.Channel()
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = p.fallback(at, fmt.Errorf("fetcher panic: %v", r))
		}
		if p.metrics != nil {
			p.metrics.RecordFetch(channel, res.Metrics.Source, time.Since(start).Seconds())
		}
	}()

	if !p.fetcher.Configured(creds) {
		p.log.Debug("no credentials, serving demo data")
		return models.FetchResult{
			Outcome: models.OutcomeFallback,
			Metrics: p.generate(channel, at),
			Err:     models.ErrCredentialsMissing,
		}
	}

	fctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	m, err := p.fetcher.FetchLive(fctx, *creds, at)
	switch {
	case err == nil:
		normalize(&m, channel)
		return models.FetchResult{Outcome: models.OutcomeLive, Metrics: m}
	case isAuthFailure(err):
		p.log.Warn("upstream rejected credentials", logger.Error(err))
		return models.FetchResult{
			Outcome: models.OutcomeFailed,
			Metrics: models.Failed(channel, p.fetcher.AuthFailureMessage()),
			Err:     fmt.Errorf("%s: %w", channel, models.ErrUnauthorized),
		}
	default:
		return p.fallback(at, err)
	}
}

func (p *Provider) fallback(at time.Time, err error) models.FetchResult {
	p.log.Warn("live fetch failed, serving demo data", logger.Error(err))
	if p.metrics != nil {
		p.metrics.RecordError("fetch_" + p.fetcher.Channel())
	}
	return models.FetchResult{
		Outcome: models.OutcomeFallback,
		Metrics: p.generate(p.fetcher.Channel(), at),
		Err:     err,
	}
}

func isAuthFailure(err error) bool {
	return errors.Is(err, models.ErrUnauthorized) || xhttp.IsUnauthorized(err)
}
