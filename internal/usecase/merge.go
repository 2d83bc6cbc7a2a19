package usecase

import (
	"sort"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/pkg/util"
)

// Merge combines channel results into one snapshot. Money and counts are
// rounded to whole units and conversion to 2 decimals, once, here.
func Merge(asOf time.Time, channels []models.ChannelMetrics) *models.Snapshot {
	s := &models.Snapshot{
		AsOf:           asOf,
		Channels:       channels,
		Sources:        []models.Source{},
		Stocks:         []models.StockItem{},
		AtRiskProducts: []models.AtRiskProduct{},
	}
	if s.Channels == nil {
		s.Channels = []models.ChannelMetrics{}
	}

	var (
		today          models.DayMetrics
		month          models.MonthMetrics
		weighted, wsum float64
		seen           = map[models.Source]bool{}
	)
	for _, ch := range channels {
		today.Revenue += util.NonNegative(ch.Today.Revenue)
		today.Orders += util.NonNegative(ch.Today.Orders)
		today.AdSpend += util.NonNegative(ch.Today.AdSpend)

		orders := util.NonNegative(ch.Today.Orders)
		weighted += util.NonNegative(ch.Today.Conversion) * orders
		wsum += orders

		month.Revenue += util.NonNegative(ch.Month.Revenue)
		month.Orders += util.NonNegative(ch.Month.Orders)
		month.AdSpend += util.NonNegative(ch.Month.AdSpend)

		s.Stocks = append(s.Stocks, ch.Stocks...)
		s.AtRiskProducts = append(s.AtRiskProducts, ch.AtRiskProducts...)

		src := ch.Source
		if src == "" {
			src = models.SourceMock
		}
		if !seen[src] {
			seen[src] = true
			s.Sources = append(s.Sources, src)
		}
	}

	if wsum > 0 {
		today.Conversion = weighted / wsum
	}

	s.Today = models.DayMetrics{
		Revenue:    util.Round(today.Revenue, 0),
		Orders:     util.Round(today.Orders, 0),
		Conversion: util.Round(today.Conversion, 2),
		AdSpend:    util.Round(today.AdSpend, 0),
	}
	s.Month = models.MonthMetrics{
		Revenue: util.Round(month.Revenue, 0),
		Orders:  util.Round(month.Orders, 0),
		AdSpend: util.Round(month.AdSpend, 0),
	}

	sort.SliceStable(s.Stocks, func(i, j int) bool {
		return s.Stocks[i].DaysCover < s.Stocks[j].DaysCover
	})
	return s
}
