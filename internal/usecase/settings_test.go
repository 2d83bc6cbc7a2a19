package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/repository"
)

type recInvalidator struct{ channels []string }

func (r *recInvalidator) Invalidate(_ context.Context, channel string) {
	r.channels = append(r.channels, channel)
}

type recPublisher struct {
	snapshots []*models.Snapshot
	batches   []*models.AlertBatch
	changes   []models.CredentialsChange
	err       error
}

func (p *recPublisher) PublishSnapshot(_ context.Context, s *models.Snapshot) error {
	p.snapshots = append(p.snapshots, s)
	return p.err
}

func (p *recPublisher) PublishAlerts(_ context.Context, b *models.AlertBatch) error {
	p.batches = append(p.batches, b)
	return p.err
}

func (p *recPublisher) PublishSettingsChange(_ context.Context, c models.CredentialsChange) error {
	p.changes = append(p.changes, c)
	return p.err
}

func (p *recPublisher) Close() error { return nil }

func newSettingsFixture() (*SettingsService, *repository.MemorySettingsStore, *recInvalidator, *recPublisher) {
	store := repository.NewMemorySettingsStore(healthyKPI)
	inv := &recInvalidator{}
	pub := &recPublisher{}
	svc := NewSettingsService(store, inv, pub, []string{models.ChannelOzon, models.ChannelWildberries}, nil)
	return svc, store, inv, pub
}

func TestSettings_SaveNormalizesAliasAndInvalidates(t *testing.T) {
	svc, store, inv, pub := newSettingsFixture()
	ctx := context.Background()

	channel, err := svc.SaveCredentials(ctx, "wb", models.Credentials{APIKey: "wb-token-123", ClientID: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, models.ChannelWildberries, channel)

	c, _ := store.GetCredentials(ctx, models.ChannelWildberries)
	require.NotNil(t, c)
	assert.Empty(t, c.ClientID)
	assert.Equal(t, []string{models.ChannelWildberries}, inv.channels)
	require.Len(t, pub.changes, 1)
	assert.Equal(t, ActionSaved, pub.changes[0].Action)
	assert.False(t, pub.changes[0].ChangedAt.IsZero())
}

func TestSettings_OzonNeedsClientID(t *testing.T) {
	svc, _, inv, _ := newSettingsFixture()

	_, err := svc.SaveCredentials(context.Background(), models.ChannelOzon, models.Credentials{APIKey: "key-12345"})
	assert.ErrorIs(t, err, ErrClientIDRequired)
	assert.Empty(t, inv.channels)

	_, err = svc.SaveCredentials(context.Background(), "amazon", models.Credentials{APIKey: "x"})
	assert.ErrorIs(t, err, models.ErrUnknownChannel)
}

func TestSettings_DeleteAndStatus(t *testing.T) {
	svc, _, inv, pub := newSettingsFixture()
	ctx := context.Background()
	_, err := svc.SaveCredentials(ctx, models.ChannelOzon, models.Credentials{APIKey: "key-12345", ClientID: "1"})
	require.NoError(t, err)

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{models.ChannelOzon: true, models.ChannelWildberries: false}, status)

	_, err = svc.DeleteCredentials(ctx, models.ChannelOzon)
	require.NoError(t, err)
	status, _ = svc.Status(ctx)
	assert.False(t, status[models.ChannelOzon])
	assert.Equal(t, []string{models.ChannelOzon, models.ChannelOzon}, inv.channels)
	assert.Equal(t, ActionDeleted, pub.changes[1].Action)
}

func TestSettings_PublishFailureDoesNotFailSave(t *testing.T) {
	svc, _, _, pub := newSettingsFixture()
	pub.err = errors.New("kafka down")

	_, err := svc.SaveCredentials(context.Background(), models.ChannelWildberries, models.Credentials{APIKey: "wb-token-123"})
	assert.NoError(t, err)
}

func TestSettings_SetKPI(t *testing.T) {
	svc, _, _, _ := newSettingsFixture()

	kpi, err := svc.SetKPI(context.Background(), models.KPIDailyOrders, 150)
	require.NoError(t, err)
	assert.Equal(t, 150.0, kpi.DailyOrders)
	assert.Equal(t, healthyKPI.Revenue, kpi.Revenue)

	_, err = svc.SetKPI(context.Background(), "nope", 1)
	assert.ErrorIs(t, err, models.ErrInvalidKPIKey)
}

func TestSettingsChangeHandler(t *testing.T) {
	inv := &recInvalidator{}
	h := NewSettingsChangeHandler("marketpulse.settings", inv, nil)
	assert.Equal(t, "marketpulse.settings", h.Topic())

	require.NoError(t, h.Handle(context.Background(), []byte(`{"channel":"wb","action":"deleted"}`)))
	require.NoError(t, h.Handle(context.Background(), []byte(`{"channel":"amazon"}`)))
	assert.Error(t, h.Handle(context.Background(), []byte(`not json`)))

	assert.Equal(t, []string{models.ChannelWildberries}, inv.channels)
}
