package channel

import (
	"MarketPulse/internal/domain/models"
	"MarketPulse/pkg/util"
)

// normalize coerces a live result once at the provider boundary: numbers
// finite and non-negative, slices non-nil, provenance set.
func normalize(m *models.ChannelMetrics, channel string) {
	m.Source = models.SourceAPI
	m.Channel = channel
	m.Error = ""

	m.Today.Revenue = util.NonNegative(m.Today.Revenue)
	m.Today.Orders = util.NonNegative(m.Today.Orders)
	m.Today.Conversion = util.NonNegative(m.Today.Conversion)
	m.Today.AdSpend = util.NonNegative(m.Today.AdSpend)
	m.Month.Revenue = util.NonNegative(m.Month.Revenue)
	m.Month.Orders = util.NonNegative(m.Month.Orders)
	m.Month.AdSpend = util.NonNegative(m.Month.AdSpend)

	if m.Stocks == nil {
		m.Stocks = []models.StockItem{}
	}
	for i := range m.Stocks {
		m.Stocks[i].Quantity = util.NonNegative(m.Stocks[i].Quantity)
		m.Stocks[i].DaysCover = util.NonNegative(m.Stocks[i].DaysCover)
	}
	if m.Warehouses == nil {
		m.Warehouses = []models.Warehouse{}
	}
	for i := range m.Warehouses {
		m.Warehouses[i].Quantity = util.NonNegative(m.Warehouses[i].Quantity)
	}
	if m.AtRiskProducts == nil {
		m.AtRiskProducts = []models.AtRiskProduct{}
	}
}

// ApportionDaily estimates today's share of a month-to-date amount as
// monthTotal / dayOfMonth * weight, rounded to whole units.
func ApportionDaily(monthTotal float64, dayOfMonth int, weight float64) float64 {
	if dayOfMonth <= 0 {
		return 0
	}
	if weight <= 0 {
		weight = 1
	}
	return util.Round(monthTotal/float64(dayOfMonth)*weight, 0)
}

// CalcConversion is completed / entered * 100 with one decimal, 0 when nothing entered.
func CalcConversion(completed, entered float64) float64 {
	return util.Ratio(completed, entered)
}
