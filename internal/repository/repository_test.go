package repository

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketPulse/internal/domain/models"
)

var defaultKPI = models.KPITargets{Revenue: 5000000, Conversion: 3.5, AdBudget: 100000, DailyOrders: 100}

func TestMemorySettingsStore_KPI(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySettingsStore(defaultKPI)

	kpi, err := s.GetKPITargets(ctx)
	require.NoError(t, err)
	assert.Equal(t, defaultKPI, kpi)

	require.NoError(t, s.SetKPIValue(ctx, models.KPIConversion, 4.2))
	kpi, _ = s.GetKPITargets(ctx)
	assert.Equal(t, 4.2, kpi.Conversion)

	assert.ErrorIs(t, s.SetKPIValue(ctx, "margin", 1), models.ErrInvalidKPIKey)
}

func TestMemorySettingsStore_Credentials(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySettingsStore(defaultKPI)

	c, err := s.GetCredentials(ctx, models.ChannelOzon)
	require.NoError(t, err)
	assert.Nil(t, c)

	require.NoError(t, s.SaveCredentials(ctx, models.ChannelOzon, models.Credentials{APIKey: "key-12345", ClientID: "42"}))
	has, _ := s.HasCredentials(ctx, models.ChannelOzon)
	assert.True(t, has)
	c, _ = s.GetCredentials(ctx, models.ChannelOzon)
	require.NotNil(t, c)
	assert.Equal(t, "42", c.ClientID)

	// returned pointer is a copy
	c.APIKey = "mutated"
	again, _ := s.GetCredentials(ctx, models.ChannelOzon)
	assert.Equal(t, "key-12345", again.APIKey)

	require.NoError(t, s.DeleteCredentials(ctx, models.ChannelOzon))
	has, _ = s.HasCredentials(ctx, models.ChannelOzon)
	assert.False(t, has)
}

func TestSeedCredentials_KeepsExisting(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySettingsStore(defaultKPI)
	require.NoError(t, s.SaveCredentials(ctx, models.ChannelOzon, models.Credentials{APIKey: "stored"}))

	err := SeedCredentials(ctx, s, map[string]models.Credentials{
		models.ChannelOzon:        {APIKey: "from-env"},
		models.ChannelWildberries: {APIKey: "wb-token"},
		"empty":                   {},
	})
	require.NoError(t, err)

	oz, _ := s.GetCredentials(ctx, models.ChannelOzon)
	assert.Equal(t, "stored", oz.APIKey)
	wb, _ := s.GetCredentials(ctx, models.ChannelWildberries)
	assert.Equal(t, "wb-token", wb.APIKey)
	has, _ := s.HasCredentials(ctx, "empty")
	assert.False(t, has)
}

func TestParseKPI_IgnoresBadValues(t *testing.T) {
	kpi := parseKPI(map[string]string{
		models.KPIRevenue:     "7000000",
		models.KPIConversion:  "n/a",
		"unknown":             "1",
		models.KPIDailyOrders: "250",
	}, defaultKPI)

	assert.Equal(t, 7000000.0, kpi.Revenue)
	assert.Equal(t, 3.5, kpi.Conversion)
	assert.Equal(t, 250.0, kpi.DailyOrders)
}

func TestRedisSettingsStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	prefix := "marketpulse_test_" + time.Now().Format("150405.000000")
	defer rdb.Del(ctx, prefix+":kpi", prefix+":credentials:ozon")

	s := NewRedisSettingsStore(rdb, prefix, defaultKPI)

	kpi, err := s.GetKPITargets(ctx)
	require.NoError(t, err)
	assert.Equal(t, defaultKPI, kpi)

	require.NoError(t, s.SetKPIValue(ctx, models.KPIAdBudget, 150000))
	kpi, _ = s.GetKPITargets(ctx)
	assert.Equal(t, 150000.0, kpi.AdBudget)

	require.NoError(t, s.SaveCredentials(ctx, models.ChannelOzon, models.Credentials{APIKey: "k", ClientID: "c"}))
	c, err := s.GetCredentials(ctx, models.ChannelOzon)
	require.NoError(t, err)
	assert.Equal(t, &models.Credentials{APIKey: "k", ClientID: "c"}, c)

	require.NoError(t, s.DeleteCredentials(ctx, models.ChannelOzon))
	has, err := s.HasCredentials(ctx, models.ChannelOzon)
	require.NoError(t, err)
	assert.False(t, has)
}

type sentMessage struct {
	topic string
	key   string
	value []byte
}

type fakeProducer struct {
	sent   []sentMessage
	closed bool
}

func (f *fakeProducer) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.sent = append(f.sent, sentMessage{topic: topic, key: string(key), value: b})
	return nil
}

func (f *fakeProducer) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisher_TopicsAndKeys(t *testing.T) {
	ctx := context.Background()
	fp := &fakeProducer{}
	p := NewKafkaPublisher(fp, Topics{Alerts: "custom.alerts"})
	asOf := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	require.NoError(t, p.PublishSnapshot(ctx, &models.Snapshot{AsOf: asOf}))
	require.NoError(t, p.PublishAlerts(ctx, &models.AlertBatch{AsOf: asOf, Demo: true}))
	require.NoError(t, p.PublishSettingsChange(ctx, models.CredentialsChange{Channel: "ozon", Action: "saved"}))
	require.NoError(t, p.PublishSnapshot(ctx, nil))

	require.Len(t, fp.sent, 3)
	assert.Equal(t, TopicSnapshots, fp.sent[0].topic)
	assert.Equal(t, "2026-03-15", fp.sent[0].key)
	assert.Equal(t, "custom.alerts", fp.sent[1].topic)
	assert.Equal(t, TopicSettings, fp.sent[2].topic)
	assert.Equal(t, "ozon", fp.sent[2].key)

	var change models.CredentialsChange
	require.NoError(t, json.Unmarshal(fp.sent[2].value, &change))
	assert.Equal(t, "saved", change.Action)

	require.NoError(t, p.Close())
	assert.True(t, fp.closed)
}

func TestHistoryRows_SkipsFailedChannels(t *testing.T) {
	asOf := time.Date(2026, 3, 15, 18, 30, 0, 0, time.UTC)
	recorded := asOf.Add(time.Minute)
	s := &models.Snapshot{
		AsOf: asOf,
		Channels: []models.ChannelMetrics{
			{Channel: "ozon", Source: models.SourceAPI, Today: models.DayMetrics{Revenue: 100, Orders: 2}, Month: models.MonthMetrics{Revenue: 1500}},
			{Channel: "wildberries", Source: models.SourceError},
			{Channel: "demo", Source: models.SourceMock, Today: models.DayMetrics{AdSpend: 7}},
		},
	}

	rows := HistoryRows(s, recorded)
	require.Len(t, rows, 2)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), rows[0].Day)
	assert.Equal(t, 1500.0, rows[0].MonthRevenue)
	assert.Equal(t, models.SourceMock, rows[1].Source)
	assert.Equal(t, recorded, rows[1].RecordedAt)
	assert.Nil(t, HistoryRows(nil, recorded))
}

func TestClickHouseHistory_SchemaUsesTable(t *testing.T) {
	h := NewClickHouseHistory(nil, "", nil)
	assert.Contains(t, h.schema(), "CREATE TABLE IF NOT EXISTS "+defaultHistoryTable)
	assert.Contains(t, h.schema(), "ReplacingMergeTree(recorded_at)")
}
