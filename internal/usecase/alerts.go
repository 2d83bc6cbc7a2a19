package usecase

import (
	"fmt"
	"math"

	"MarketPulse/internal/domain/models"
	"MarketPulse/pkg/util"

	"github.com/dustin/go-humanize"
)

// Fixed distances from target that are considered alarming.
const (
	conversionLowRatio  = 0.7
	adBudgetHighRatio   = 0.85
	revenueLaggingRatio = 0.6
	ordersLowRatio      = 0.4
)

// Evaluate applies the alert rules to a snapshot. It is pure: calendar facts
// come from s.AsOf, and every rule fires independently of the others.
func Evaluate(s *models.Snapshot, kpi models.KPITargets) []models.AlertEvent {
	alerts := []models.AlertEvent{}
	if s == nil {
		return alerts
	}

	if kpi.Conversion > 0 {
		threshold := kpi.Conversion * conversionLowRatio
		if s.Today.Conversion < threshold {
			alerts = append(alerts, models.AlertEvent{
				Code: models.AlertConversionLow,
				Message: fmt.Sprintf("🔔 <b>Conversion below threshold</b>\nActual: <b>%.2f%%</b>, threshold: <b>%.2f%%</b>",
					s.Today.Conversion, threshold),
			})
		}
	}

	if kpi.AdBudget > 0 && s.Month.AdSpend >= kpi.AdBudget*adBudgetHighRatio {
		alerts = append(alerts, models.AlertEvent{
			Code: models.AlertAdBudgetHigh,
			Message: fmt.Sprintf("⚠️ <b>Ad budget almost exhausted</b>\nSpent: <b>%.0f%%</b>",
				util.Round(s.Month.AdSpend/kpi.AdBudget*100, 0)),
		})
	}

	if kpi.Revenue > 0 {
		expected := kpi.Revenue / float64(util.DaysInMonth(s.AsOf)) * float64(s.AsOf.Day())
		if s.Month.Revenue < expected*revenueLaggingRatio {
			alerts = append(alerts, models.AlertEvent{
				Code: models.AlertMonthRevenueLagging,
				Message: fmt.Sprintf("📉 <b>Revenue is behind plan</b>\nActual: <b>%s ₽</b>\nExpected by date: <b>%s ₽</b>",
					money(s.Month.Revenue), money(expected)),
			})
		}
	}

	if kpi.DailyOrders > 0 && s.Today.Orders < kpi.DailyOrders*ordersLowRatio {
		alerts = append(alerts, models.AlertEvent{
			Code: models.AlertOrdersLow,
			Message: fmt.Sprintf("📦 <b>Orders far below plan</b>\nActual: <b>%.0f</b>, plan: <b>%s</b>",
				util.Round(s.Today.Orders, 0), humanize.Ftoa(kpi.DailyOrders)),
		})
	}

	if len(s.AtRiskProducts) > 0 {
		p := s.AtRiskProducts[0]
		alerts = append(alerts, models.AlertEvent{
			Code:    models.AlertProductAtRisk,
			Message: fmt.Sprintf("🚨 <b>Product at risk</b>\n<b>%s</b>\n%s", p.Name, p.Reason),
		})
	}

	return alerts
}

func money(v float64) string {
	return humanize.Comma(int64(math.Round(util.Round(v, 0))))
}
