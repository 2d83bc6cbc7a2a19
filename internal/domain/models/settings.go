package models

import (
	"errors"
	"time"
)

var (
	ErrCredentialsMissing = errors.New("credentials not configured")
	ErrUnauthorized       = errors.New("upstream rejected credentials")
	ErrUnknownChannel     = errors.New("unknown channel")
	ErrInvalidKPIKey      = errors.New("invalid kpi key")
)

// KPI keys as stored by the settings collaborator.
const (
	KPIRevenue     = "revenue"
	KPIConversion  = "conversion"
	KPIAdBudget    = "ad_budget"
	KPIDailyOrders = "daily_orders"
)

// KPITargets are operator-configured goals.
type KPITargets struct {
	Revenue     float64 `json:"revenue" yaml:"revenue" default:"5000000"`
	Conversion  float64 `json:"conversion" yaml:"conversion" default:"3.5"`
	AdBudget    float64 `json:"ad_budget" yaml:"ad_budget" default:"100000"`
	DailyOrders float64 `json:"daily_orders" yaml:"daily_orders" default:"100"`
}

// Set assigns the field named by key.
func (k *KPITargets) Set(key string, value float64) error {
	switch key {
	case KPIRevenue:
		k.Revenue = value
	case KPIConversion:
		k.Conversion = value
	case KPIAdBudget:
		k.AdBudget = value
	case KPIDailyOrders:
		k.DailyOrders = value
	default:
		return ErrInvalidKPIKey
	}
	return nil
}

// AsMap returns the targets keyed the way the settings store keys them.
func (k KPITargets) AsMap() map[string]float64 {
	return map[string]float64{
		KPIRevenue:     k.Revenue,
		KPIConversion:  k.Conversion,
		KPIAdBudget:    k.AdBudget,
		KPIDailyOrders: k.DailyOrders,
	}
}

// Credentials for one channel. ClientID is only used by channels that need it.
type Credentials struct {
	APIKey   string `json:"api_key"`
	ClientID string `json:"client_id,omitempty"`
}

// CredentialsChange is emitted by the settings collaborator when keys change.
type CredentialsChange struct {
	Channel   string    `json:"channel"`
	Action    string    `json:"action"` // "saved" | "deleted"
	ChangedAt time.Time `json:"changed_at"`
}
