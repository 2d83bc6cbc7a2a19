package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"MarketPulse/internal/domain/models"
	"MarketPulse/pkg/logger"
)

// SettingsChangeHandler consumes credential change events published by any
// replica and clears the local cache entry of the changed channel.
type SettingsChangeHandler struct {
	topic string
	cache Invalidator
	log   *logger.Logger
}

func NewSettingsChangeHandler(topic string, cache Invalidator, log *logger.Logger) *SettingsChangeHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &SettingsChangeHandler{topic: topic, cache: cache, log: log}
}

func (h *SettingsChangeHandler) Topic() string { return h.topic }

// Handle returns an error only for undecodable payloads; unknown channels
// are logged and dropped so they are not retried.
func (h *SettingsChangeHandler) Handle(ctx context.Context, data []byte) error {
	var change models.CredentialsChange
	if err := json.Unmarshal(data, &change); err != nil {
		return fmt.Errorf("decode settings change: %w", err)
	}
	channel, err := models.NormalizeChannel(change.Channel)
	if err != nil {
		h.log.Warn("settings change for unknown channel", logger.String("channel", change.Channel))
		return nil
	}
	h.cache.Invalidate(ctx, channel)
	h.log.Debug("cache invalidated by settings change",
		logger.String("channel", channel),
		logger.String("action", change.Action))
	return nil
}
