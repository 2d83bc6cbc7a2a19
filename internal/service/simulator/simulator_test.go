package simulator

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateIsDeterministic(t *testing.T) {
	date := time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)
	later := time.Date(2026, 10, 14, 23, 59, 0, 0, time.UTC)

	for _, ch := range []string{models.ChannelOzon, models.ChannelWildberries, "avito"} {
		a, err := json.Marshal(Generate(ch, date))
		require.NoError(t, err)
		b, err := json.Marshal(Generate(ch, later))
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b), ch)
	}
}

func TestGenerateDecorrelatesChannels(t *testing.T) {
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	oz := Generate(models.ChannelOzon, date)
	wb := Generate(models.ChannelWildberries, date)
	assert.NotEqual(t, oz.Today.Revenue, wb.Today.Revenue)
	assert.Equal(t, models.SourceMock, oz.Source)
	assert.Equal(t, models.ChannelWildberries, wb.Channel)
}

func TestMonthFollowsDaily(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 400; i++ {
		date := start.AddDate(0, 0, i)
		for _, ch := range []string{models.ChannelOzon, models.ChannelWildberries} {
			m := Generate(ch, date)
			base := m.Today.Revenue * float64(date.Day())
			require.Greater(t, base, 0.0)
			factor := m.Month.Revenue / base
			// rounding of the month total can nudge the factor by < 1/base
			assert.GreaterOrEqual(t, factor, 0.9-1/base, "%s %s", ch, date.Format("2006-01-02"))
			assert.LessOrEqual(t, factor, 1.2+1/base, "%s %s", ch, date.Format("2006-01-02"))
		}
	}
}

func TestValuesStayInRange(t *testing.T) {
	start := time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 60; i++ {
		m := Generate(models.ChannelOzon, start.AddDate(0, 0, i))
		assert.True(t, m.Today.Revenue >= 70000 && m.Today.Revenue <= 180000)
		assert.True(t, m.Today.Orders >= 45 && m.Today.Orders <= 140)
		assert.True(t, m.Today.Conversion >= 2.2 && m.Today.Conversion <= 4.3)
		assert.Equal(t, m.Today.Conversion, math.Round(m.Today.Conversion*100)/100)
		assert.Len(t, m.Stocks, 2)
		assert.Len(t, m.Warehouses, 3)
		require.Len(t, m.AtRiskProducts, 1)
		assert.Equal(t, "Winter jacket XL", m.AtRiskProducts[0].Name)
	}
}

func TestSeed(t *testing.T) {
	assert.Equal(t, 2026001, Seed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 2024366, Seed(time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)))
}
