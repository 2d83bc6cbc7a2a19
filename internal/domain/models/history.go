package models

import "time"

// HistoryRow is one archived channel/day record.
type HistoryRow struct {
	Day          time.Time
	Channel      string
	Source       Source
	Revenue      float64
	Orders       float64
	Conversion   float64
	AdSpend      float64
	MonthRevenue float64
	MonthAdSpend float64
	RecordedAt   time.Time
}
