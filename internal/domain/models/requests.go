package models

// Requests for dashboard HTTP endpoints.

type KPIUpdateRequest struct {
	Key   string   `json:"key" validate:"required,oneof=revenue conversion ad_budget daily_orders"`
	Value *float64 `json:"value" validate:"required,gte=0"`
}

type CredentialsRequest struct {
	Platform string `json:"platform" validate:"required,oneof=ozon wildberries wb"`
	APIKey   string `json:"apiKey" validate:"required,min=8"`
	ClientID string `json:"clientId" validate:"omitempty,max=64"`
}

type SnapshotRequest struct {
	Date    string `query:"date" json:"date" validate:"omitempty,datetime=2006-01-02"`
	Refresh bool   `query:"refresh" json:"refresh" default:"false"`
}

// NormalizeChannel maps the platform aliases used by clients to channel ids.
func NormalizeChannel(platform string) (string, error) {
	switch platform {
	case ChannelOzon:
		return ChannelOzon, nil
	case ChannelWildberries, "wb":
		return ChannelWildberries, nil
	default:
		return "", ErrUnknownChannel
	}
}

type HistoryRequest struct {
	Channel string `param:"channel" json:"-" validate:"required"`
	From    string `query:"from" json:"from" validate:"omitempty,datetime=2006-01-02"`
	To      string `query:"to" json:"to" validate:"omitempty,datetime=2006-01-02"`
}
