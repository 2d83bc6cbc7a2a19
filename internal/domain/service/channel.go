package service

import (
	"context"
	"time"

	"MarketPulse/internal/domain/models"
)

// ChannelProvider fetches one marketplace's metrics. Fetch never returns a
// Go error: failures are folded into the result variant.
type ChannelProvider interface {
	Channel() string
	Fetch(ctx context.Context, creds *models.Credentials, at time.Time) models.FetchResult
}
