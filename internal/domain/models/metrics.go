package models

import "time"

// Source tells where a ChannelMetrics value came from.
type Source string

const (
	SourceAPI   Source = "api"
	SourceMock  Source = "mock"
	SourceError Source = "error"
)

// Channel identifiers.
const (
	ChannelOzon        = "ozon"
	ChannelWildberries = "wildberries"
)

// DayMetrics are the figures for the current calendar day.
type DayMetrics struct {
	Revenue    float64 `json:"revenue"`
	Orders     float64 `json:"orders"`
	Conversion float64 `json:"conversion"` // percent, not clamped to 100
	AdSpend    float64 `json:"adSpend"`
}

// MonthMetrics are month-to-date figures.
type MonthMetrics struct {
	Revenue float64 `json:"revenue"`
	Orders  float64 `json:"orders"`
	AdSpend float64 `json:"adSpend"`
}

// StockItem is one SKU with its estimated days of coverage.
type StockItem struct {
	SKU       string  `json:"sku"`
	Name      string  `json:"name"`
	Quantity  float64 `json:"qty"`
	DaysCover float64 `json:"daysCover"`
	Warehouse string  `json:"warehouseName"`
}

// Warehouse is a per-warehouse stock total.
type Warehouse struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"qty"`
}

// AtRiskProduct flags a product needing attention. Trend is "up" or "down" when known.
type AtRiskProduct struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
	Trend  string `json:"trend,omitempty"`
}

// ChannelMetrics is one channel's normalized result.
type ChannelMetrics struct {
	Source         Source          `json:"source"`
	Channel        string          `json:"channel"`
	Today          DayMetrics      `json:"today"`
	Month          MonthMetrics    `json:"month"`
	Stocks         []StockItem     `json:"stocks"`
	Warehouses     []Warehouse     `json:"warehouses"`
	AtRiskProducts []AtRiskProduct `json:"atRiskProducts"`
	Error          string          `json:"error,omitempty"`
}

// Failed builds the zero-metrics result reported on authorization failure.
func Failed(channel, message string) ChannelMetrics {
	return ChannelMetrics{
		Source:         SourceError,
		Channel:        channel,
		Stocks:         []StockItem{},
		Warehouses:     []Warehouse{},
		AtRiskProducts: []AtRiskProduct{},
		Error:          message,
	}
}

// Snapshot is the merged cross-channel result.
type Snapshot struct {
	AsOf           time.Time        `json:"asOf"`
	Channels       []ChannelMetrics `json:"channels"`
	Sources        []Source         `json:"sources"`
	Today          DayMetrics       `json:"today"`
	Month          MonthMetrics     `json:"month"`
	Stocks         []StockItem      `json:"stocks"`
	AtRiskProducts []AtRiskProduct  `json:"atRiskProducts"`
}

// IsDemo reports whether no channel delivered live data.
func (s *Snapshot) IsDemo() bool {
	for _, src := range s.Sources {
		if src == SourceAPI {
			return false
		}
	}
	return true
}

// Outcome is the variant of a provider call.
type Outcome int

const (
	OutcomeLive     Outcome = iota // live upstream data
	OutcomeFallback                // simulated data, Err carries the reason if any
	OutcomeFailed                  // hard failure, metrics are zeroed
)

// FetchResult is returned by every provider call.
type FetchResult struct {
	Outcome Outcome
	Metrics ChannelMetrics
	Err     error
}
