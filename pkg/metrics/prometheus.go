package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/domain/repository"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fetches     *prometheus.CounterVec
	fetchTime   *prometheus.HistogramVec
	cacheLookup *prometheus.CounterVec
	alerts      *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
}

var _ repository.Metrics = (*Recorder)(nil)

var (
	defaultOnce     sync.Once
	defaultRecorder *Recorder
)

// New returns the process-wide recorder registered on the default registry.
func New() *Recorder {
	defaultOnce.Do(func() {
		defaultRecorder = NewWithRegisterer(prometheus.DefaultRegisterer)
	})
	return defaultRecorder
}

// NewWithRegisterer registers the collectors on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		fetches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_channel_fetch_total",
				Help: "Provider fetches by channel and resulting source",
			},
			[]string{"channel", "source"},
		),
		fetchTime: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketpulse_channel_fetch_duration_seconds",
				Help:    "Provider fetch latency",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
			},
			[]string{"channel"},
		),
		cacheLookup: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_snapshot_cache_total",
				Help: "Snapshot cache lookups by result",
			},
			[]string{"channel", "result"},
		),
		alerts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_alerts_total",
				Help: "Alerts produced by the report job",
			},
			[]string{"code"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_errors_total",
				Help: "Errors by kind",
			},
			[]string{"type"},
		),
	}
}

func (r *Recorder) RecordFetch(channel string, source models.Source, seconds float64) {
	r.fetches.WithLabelValues(channel, string(source)).Inc()
	r.fetchTime.WithLabelValues(channel).Observe(seconds)
}

func (r *Recorder) RecordCache(channel string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookup.WithLabelValues(channel, result).Inc()
}

func (r *Recorder) RecordAlert(code models.AlertCode) {
	r.alerts.WithLabelValues(string(code)).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
