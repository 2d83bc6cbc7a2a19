package usecase

import (
	"context"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/domain/repository"
	pkgcache "MarketPulse/pkg/cache"
	"MarketPulse/pkg/logger"
)

const reportLockKey = "report:lock"

// SnapshotSource builds a merged snapshot. *Aggregator satisfies it.
type SnapshotSource interface {
	Snapshot(ctx context.Context, at time.Time) *models.Snapshot
}

// Reporter evaluates alerts on a fresh snapshot and fans the result out.
// Publisher, history and lock are optional.
type Reporter struct {
	source   SnapshotSource
	settings repository.SettingsStore
	pub      repository.EventPublisher
	history  repository.HistoryStore
	metrics  repository.Metrics
	lock     pkgcache.Service
	interval time.Duration
	loc      *time.Location
	log      *logger.Logger
	now      func() time.Time
}

// ReporterOption configures Reporter.
type ReporterOption func(*Reporter)

func WithPublisher(p repository.EventPublisher) ReporterOption {
	return func(r *Reporter) { r.pub = p }
}

func WithHistory(h repository.HistoryStore) ReporterOption {
	return func(r *Reporter) { r.history = h }
}

func WithReportMetrics(m repository.Metrics) ReporterOption {
	return func(r *Reporter) { r.metrics = m }
}

// WithReportLock makes only one replica report per interval.
func WithReportLock(c pkgcache.Service) ReporterOption {
	return func(r *Reporter) { r.lock = c }
}

func WithLocation(loc *time.Location) ReporterOption {
	return func(r *Reporter) {
		if loc != nil {
			r.loc = loc
		}
	}
}

func WithReportClock(now func() time.Time) ReporterOption {
	return func(r *Reporter) { r.now = now }
}

func NewReporter(source SnapshotSource, settings repository.SettingsStore, interval time.Duration, log *logger.Logger, opts ...ReporterOption) *Reporter {
	if log == nil {
		log = logger.Nop()
	}
	r := &Reporter{
		source:   source,
		settings: settings,
		interval: interval,
		loc:      time.Local,
		log:      log,
		now:      time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Evaluate builds a snapshot for at and evaluates the alert rules on it.
func (r *Reporter) Evaluate(ctx context.Context, at time.Time) (*models.AlertBatch, *models.Snapshot, error) {
	kpi, err := r.settings.GetKPITargets(ctx)
	if err != nil {
		return nil, nil, err
	}
	snap := r.source.Snapshot(ctx, at)
	batch := &models.AlertBatch{
		AsOf:    snap.AsOf,
		Demo:    snap.IsDemo(),
		Alerts:  Evaluate(snap, kpi),
		Sources: snap.Sources,
	}
	return batch, snap, nil
}

// RunOnce reports the current moment. It returns nil, nil when another
// replica holds the report lock.
func (r *Reporter) RunOnce(ctx context.Context) (*models.AlertBatch, error) {
	if r.lock != nil {
		ttl := r.interval * 9 / 10
		if ttl <= 0 {
			ttl = time.Minute
		}
		ok, err := r.lock.TryLock(ctx, reportLockKey, ttl)
		if err != nil {
			r.log.Warn("report lock unavailable, reporting anyway", logger.Error(err))
		} else if !ok {
			r.log.Debug("report skipped, lock held elsewhere")
			return nil, nil
		}
	}

	batch, snap, err := r.Evaluate(ctx, r.now().In(r.loc))
	if err != nil {
		return nil, err
	}
	for _, a := range batch.Alerts {
		if r.metrics != nil {
			r.metrics.RecordAlert(a.Code)
		}
	}

	if r.pub != nil {
		if err := r.pub.PublishSnapshot(ctx, snap); err != nil {
			r.log.Warn("publish snapshot failed", logger.Error(err))
		}
		if err := r.pub.PublishAlerts(ctx, batch); err != nil {
			r.log.Warn("publish alerts failed", logger.Error(err))
		}
	}
	if r.history != nil {
		if err := r.history.StoreSnapshot(ctx, snap); err != nil {
			r.log.Warn("store history failed", logger.Error(err))
			if r.metrics != nil {
				r.metrics.RecordError("history_store")
			}
		}
	}

	r.log.Info("report done",
		logger.Int("alerts", len(batch.Alerts)),
		logger.Bool("demo", batch.Demo),
		logger.Any("sources", batch.Sources))
	return batch, nil
}

// Start reports every interval until ctx is done.
func (r *Reporter) Start(ctx context.Context) {
	if r.interval <= 0 {
		r.log.Info("report job disabled")
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	r.log.Info("report job started", logger.Duration("interval", r.interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.log.Error("report failed", logger.Error(err))
			}
		}
	}
}
