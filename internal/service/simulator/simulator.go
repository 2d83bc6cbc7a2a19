// Package simulator produces reproducible demo metrics. Output depends only on
// the channel and the calendar date, so restarts and tests see the same numbers.
package simulator

import (
	"math"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/pkg/util"
)

// Seed derives the base seed of a date: year*1000 + day-of-year.
func Seed(date time.Time) int {
	return date.Year()*1000 + date.YearDay()
}

// seededValue maps seed into [min, max) via frac(sin(seed)*10000).
func seededValue(seed int, min, max float64) float64 {
	x := math.Sin(float64(seed)) * 10000
	return min + (x-math.Floor(x))*(max-min)
}

func (s span) draw(seed int) float64 {
	return seededValue(seed+s.offset, s.min, s.max)
}

// Generate returns the simulated metrics of channel for the calendar day of date.
func Generate(channel string, date time.Time) models.ChannelMetrics {
	p, ok := profiles[channel]
	if !ok {
		p = fallbackProfile
	}
	seed := Seed(date) + p.seedOffset
	dayOfMonth := float64(date.Day())

	revenue := util.Round(p.revenue.draw(seed), 0)
	orders := util.Round(p.orders.draw(seed), 0)
	adSpend := util.Round(p.adSpend.draw(seed), 0)

	m := models.ChannelMetrics{
		Source:  models.SourceMock,
		Channel: channel,
		Today: models.DayMetrics{
			Revenue:    revenue,
			Orders:     orders,
			Conversion: util.Round(p.conversion.draw(seed), 2),
			AdSpend:    adSpend,
		},
		Month: models.MonthMetrics{
			Revenue: util.Round(revenue*dayOfMonth*p.monthRevenue.draw(seed), 0),
			Orders:  util.Round(orders*dayOfMonth*p.monthOrders.draw(seed), 0),
			AdSpend: util.Round(adSpend*dayOfMonth*p.monthAdSpend.draw(seed), 0),
		},
		Stocks:         make([]models.StockItem, 0, len(p.stocks)),
		Warehouses:     make([]models.Warehouse, 0, len(p.warehouses)),
		AtRiskProducts: make([]models.AtRiskProduct, 0, len(p.atRisk)),
	}

	for _, st := range p.stocks {
		m.Stocks = append(m.Stocks, models.StockItem{
			SKU:       st.sku,
			Name:      st.name,
			Quantity:  util.Round(st.qty.draw(seed), 0),
			DaysCover: util.Round(st.cover.draw(seed), 0),
			Warehouse: st.warehouse,
		})
	}
	for _, wh := range p.warehouses {
		m.Warehouses = append(m.Warehouses, models.Warehouse{
			Name:     wh.name,
			Quantity: util.Round(wh.qty.draw(seed), 0),
		})
	}
	m.AtRiskProducts = append(m.AtRiskProducts, p.atRisk...)

	return m
}
