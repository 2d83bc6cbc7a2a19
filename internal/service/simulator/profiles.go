package simulator

import "MarketPulse/internal/domain/models"

// span is a seeded draw: value = min + frac(sin(seed+offset)*10000)*(max-min).
type span struct {
	offset   int
	min, max float64
}

type stockSpec struct {
	sku, name, warehouse string
	qty, cover           span
}

type warehouseSpec struct {
	name string
	qty  span
}

// profile holds the per-channel parameters of the demo data.
type profile struct {
	seedOffset int

	revenue, orders, conversion, adSpend span
	// month multipliers applied to daily × day-of-month
	monthRevenue, monthOrders, monthAdSpend span

	stocks     []stockSpec
	warehouses []warehouseSpec
	atRisk     []models.AtRiskProduct
}

var profiles = map[string]profile{
	models.ChannelOzon: {
		seedOffset:   0,
		revenue:      span{7, 70000, 180000},
		orders:       span{11, 45, 140},
		conversion:   span{13, 2.2, 4.3},
		adSpend:      span{17, 9000, 26000},
		monthRevenue: span{19, 0.9, 1.2},
		monthOrders:  span{21, 0.9, 1.15},
		monthAdSpend: span{23, 0.85, 1.1},
		stocks: []stockSpec{
			{sku: "OZ-111", name: "Winter jacket XL", warehouse: "Moscow", qty: span{31, 12, 70}, cover: span{37, 4, 22}},
			{sku: "OZ-248", name: "Thermo mug 450ml", warehouse: "St. Petersburg", qty: span{41, 8, 120}, cover: span{43, 3, 40}},
		},
		warehouses: []warehouseSpec{
			{name: "Moscow", qty: span{51, 100, 500}},
			{name: "St. Petersburg", qty: span{53, 50, 300}},
			{name: "Yekaterinburg", qty: span{55, 30, 200}},
		},
		atRisk: []models.AtRiskProduct{
			{Name: "Winter jacket XL", Reason: "CTR dropped in 24h, no sales for 3 days", Trend: "down"},
		},
	},
	models.ChannelWildberries: {
		seedOffset:   101,
		revenue:      span{3, 80000, 210000},
		orders:       span{5, 55, 170},
		conversion:   span{9, 2.5, 4.8},
		adSpend:      span{12, 10000, 29000},
		monthRevenue: span{15, 0.9, 1.2},
		monthOrders:  span{17, 0.88, 1.16},
		monthAdSpend: span{19, 0.84, 1.12},
		stocks: []stockSpec{
			{sku: "WB-5021", name: "Knitted scarf", warehouse: "Koledino", qty: span{61, 20, 150}, cover: span{67, 5, 35}},
			{sku: "WB-7730", name: "Kids rain boots 28", warehouse: "Kazan", qty: span{71, 6, 60}, cover: span{73, 2, 18}},
		},
		warehouses: []warehouseSpec{
			{name: "Koledino", qty: span{81, 150, 600}},
			{name: "Kazan", qty: span{83, 40, 250}},
		},
	},
}

// fallbackProfile serves channels without a dedicated catalog.
var fallbackProfile = profile{
	seedOffset:   211,
	revenue:      span{7, 50000, 150000},
	orders:       span{11, 30, 120},
	conversion:   span{13, 2.0, 4.0},
	adSpend:      span{17, 5000, 20000},
	monthRevenue: span{19, 0.9, 1.2},
	monthOrders:  span{21, 0.9, 1.15},
	monthAdSpend: span{23, 0.85, 1.1},
}
