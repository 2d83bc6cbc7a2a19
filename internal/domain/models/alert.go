package models

import "time"

// AlertCode identifies which rule fired.
type AlertCode string

const (
	AlertConversionLow       AlertCode = "conversion_low"
	AlertAdBudgetHigh        AlertCode = "ad_budget_high"
	AlertMonthRevenueLagging AlertCode = "month_revenue_lagging"
	AlertOrdersLow           AlertCode = "orders_low"
	AlertProductAtRisk       AlertCode = "product_at_risk"
)

// AlertEvent is produced per evaluation and not retained.
type AlertEvent struct {
	Code    AlertCode `json:"code"`
	Message string    `json:"message"`
}

// AlertBatch is what the report job publishes downstream.
type AlertBatch struct {
	AsOf    time.Time    `json:"asOf"`
	Demo    bool         `json:"demo"`
	Alerts  []AlertEvent `json:"alerts"`
	Sources []Source     `json:"sources"`
}
