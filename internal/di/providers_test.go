package di

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketPulse/internal/domain/models"
	internalrepo "MarketPulse/internal/repository"
	"MarketPulse/pkg/config"
)

func defaultConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Log.Level = "error"
	return cfg
}

func TestInitializeApp_InMemory(t *testing.T) {
	app, err := InitializeApp(defaultConfig(t))
	require.NoError(t, err)
	assert.NotNil(t, app)
}

func TestProvideProviders_RespectsEnabled(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Channels.Ozon.Enabled = false

	providers := ProvideProviders(cfg, ProvideMetrics(), nil)
	require.Len(t, providers, 1)
	assert.Equal(t, models.ChannelWildberries, providers[0].Channel())
}

func TestProvideSettingsStore_SeedsConfiguredKeys(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Channels.Ozon.APIKey = "ozon-key"
	cfg.Channels.Ozon.ClientID = "42"

	store, err := ProvideSettingsStore(cfg, nil)
	require.NoError(t, err)

	ctx := context.Background()
	creds, err := store.GetCredentials(ctx, models.ChannelOzon)
	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.Equal(t, "42", creds.ClientID)

	ok, err := store.HasCredentials(ctx, models.ChannelWildberries)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDisabledBackendsAreNil(t *testing.T) {
	cfg := defaultConfig(t)

	rc, err := ProvideRedisCache(cfg)
	require.NoError(t, err)
	assert.Nil(t, rc)

	producer, err := ProvideKafkaProducer(cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, producer)
	assert.IsType(t, internalrepo.NopPublisher{}, ProvidePublisher(cfg, producer))

	ch, err := ProvideClickHouseClient(cfg)
	require.NoError(t, err)
	assert.Nil(t, ch)
	assert.Nil(t, ProvideHistory(cfg, ch, nil))

	consumer, err := ProvideKafkaConsumer(cfg, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, consumer)
}

func TestKafkaConsumer_GroupPerReplica(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Kafka.Enabled = true
	cfg.Kafka.Brokers = []string{"localhost:9092"}
	handler := ProvideSettingsChangeHandler(cfg, nil, nil)

	a, err := ProvideKafkaConsumer(cfg, handler, nil)
	require.NoError(t, err)
	b, err := ProvideKafkaConsumer(cfg, handler, nil)
	require.NoError(t, err)
	assert.NotEqual(t, a.GroupID(), b.GroupID())
	assert.Contains(t, a.GroupID(), cfg.Kafka.Consumer.GroupID)

	cfg.Kafka.Consumer.Broadcast = false
	shared, err := ProvideKafkaConsumer(cfg, handler, nil)
	require.NoError(t, err)
	assert.Equal(t, cfg.Kafka.Consumer.GroupID, shared.GroupID())
}
