package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/repository"
	pkgcache "MarketPulse/pkg/cache"
)

type fixedSource struct {
	snap *models.Snapshot
	at   []time.Time
}

func (f *fixedSource) Snapshot(_ context.Context, at time.Time) *models.Snapshot {
	f.at = append(f.at, at)
	return f.snap
}

type recHistory struct {
	stored []*models.Snapshot
	err    error
}

func (h *recHistory) Init(context.Context) error { return nil }

func (h *recHistory) StoreSnapshot(_ context.Context, s *models.Snapshot) error {
	h.stored = append(h.stored, s)
	return h.err
}

func (h *recHistory) Query(context.Context, string, time.Time, time.Time) ([]models.HistoryRow, error) {
	return nil, nil
}

func (h *recHistory) Close() error { return nil }

type recMetrics struct {
	alerts []models.AlertCode
	errors []string
}

func (m *recMetrics) RecordFetch(string, models.Source, float64) {}
func (m *recMetrics) RecordCache(string, bool)                   {}
func (m *recMetrics) RecordAlert(c models.AlertCode)             { m.alerts = append(m.alerts, c) }
func (m *recMetrics) RecordError(kind string)                    { m.errors = append(m.errors, kind) }

func laggingSnapshot() *models.Snapshot {
	s := healthySnapshot()
	s.Today.Conversion = 1.0
	s.Sources = []models.Source{models.SourceAPI}
	return s
}

func TestReporter_RunOncePublishesAndStores(t *testing.T) {
	src := &fixedSource{snap: laggingSnapshot()}
	pub := &recPublisher{}
	hist := &recHistory{err: errors.New("clickhouse down")}
	met := &recMetrics{}
	loc := time.FixedZone("MSK", 3*3600)
	now := time.Date(2026, 4, 15, 6, 0, 0, 0, time.UTC)

	r := NewReporter(src, repository.NewMemorySettingsStore(healthyKPI), time.Hour, nil,
		WithPublisher(pub), WithHistory(hist), WithReportMetrics(met),
		WithLocation(loc), WithReportClock(func() time.Time { return now }))

	batch, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, batch)

	assert.Equal(t, []models.AlertCode{models.AlertConversionLow}, codes(batch.Alerts))
	assert.False(t, batch.Demo)
	assert.Equal(t, loc, src.at[0].Location())
	assert.Len(t, pub.snapshots, 1)
	assert.Len(t, pub.batches, 1)
	assert.Len(t, hist.stored, 1)
	assert.Equal(t, []models.AlertCode{models.AlertConversionLow}, met.alerts)
	assert.Equal(t, []string{"history_store"}, met.errors)
}

func TestReporter_LockSkipsSecondRun(t *testing.T) {
	lock := pkgcache.NewMemoryCache()
	defer lock.Close()
	src := &fixedSource{snap: healthySnapshot()}
	r := NewReporter(src, repository.NewMemorySettingsStore(healthyKPI), time.Hour, nil, WithReportLock(lock))

	first, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Empty(t, first.Alerts)
	assert.True(t, first.Demo)

	second, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Nil(t, second)
	assert.Len(t, src.at, 1)
}

func TestReporter_EvaluateDoesNotPublish(t *testing.T) {
	pub := &recPublisher{}
	r := NewReporter(&fixedSource{snap: laggingSnapshot()}, repository.NewMemorySettingsStore(healthyKPI), 0, nil, WithPublisher(pub))

	batch, snap, err := r.Evaluate(context.Background(), time.Now())
	require.NoError(t, err)
	assert.NotNil(t, snap)
	assert.Len(t, batch.Alerts, 1)
	assert.Empty(t, pub.batches)
}

func TestReporter_StartDisabledReturns(t *testing.T) {
	r := NewReporter(&fixedSource{snap: healthySnapshot()}, repository.NewMemorySettingsStore(healthyKPI), 0, nil)
	done := make(chan struct{})
	go func() {
		r.Start(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start should return when interval is zero")
	}
}
