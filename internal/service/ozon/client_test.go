package ozon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/service/channel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	at    = time.Date(2026, 10, 10, 15, 0, 0, 0, time.UTC)
	creds = &models.Credentials{APIKey: "ozon-api-key", ClientID: "12345"}
)

type upstream struct {
	mu        sync.Mutex
	paths     []string
	analytics func(w http.ResponseWriter, req reportRequest)
	campaign  func(w http.ResponseWriter)
	stocks    func(w http.ResponseWriter)
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	u.paths = append(u.paths, r.URL.Path)
	u.mu.Unlock()

	if r.Header.Get("Client-Id") != "12345" || r.Header.Get("Api-Key") != "ozon-api-key" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	switch r.URL.Path {
	case "/v1/analytics/data":
		var req reportRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		u.analytics(w, req)
	case "/v1/statistics/campaign/product/report":
		u.campaign(w)
	case "/v3/product/info/stocks":
		u.stocks(w)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func healthy() *upstream {
	return &upstream{
		analytics: func(w http.ResponseWriter, req reportRequest) {
			if req.DateFrom == "2026-10-10" {
				// positional metrics: revenue, ordered_units, session_view_pdp, conv_tocart_pdp
				_, _ = w.Write([]byte(`{"result":{"data":[{"metrics":[1000.4,5,200,2.5]},{"metrics":[500,3,100,3]}]}}`))
				return
			}
			_, _ = w.Write([]byte(`{"result":{"data":[{"metrics":[{"key":"revenue","value":20000},{"key":"ordered_units","value":80}]}]}}`))
		},
		campaign: func(w http.ResponseWriter) {
			_, _ = w.Write([]byte(`{"result":{"data":[{"metrics":[{"key":"expense","value":600}]},{"metrics":[{"key":"expense","value":400}]}]}}`))
		},
		stocks: func(w http.ResponseWriter) {
			_, _ = w.Write([]byte(`{"result":{"items":[
				{"product_id":1,"offer_id":"OZ-1","name":"Jacket","stocks":[{"present":4,"warehouse_name":"Moscow"},{"present":6,"warehouse_name":"Kazan"}]},
				{"product_id":2,"offer_id":"","stocks":[{"present":0,"warehouse_name":"Moscow"}]},
				{"product_id":3,"offer_id":"OZ-3","stocks":[{"present":2}]}
			]}}`))
		},
	}
}

func newProvider(srv *httptest.Server) *channel.Provider {
	c := New(Config{BaseURL: srv.URL, Timeout: time.Second, AdSpendWeight: 1}, nil)
	return channel.NewProvider(c)
}

func TestFetchLiveComputesMetrics(t *testing.T) {
	u := healthy()
	srv := httptest.NewServer(u)
	defer srv.Close()

	res := newProvider(srv).Fetch(context.Background(), creds, at)
	require.Equal(t, models.OutcomeLive, res.Outcome, "%v", res.Err)
	m := res.Metrics

	assert.Equal(t, models.SourceAPI, m.Source)
	assert.Equal(t, 1500.0, m.Today.Revenue)
	assert.Equal(t, 8.0, m.Today.Orders)
	assert.Equal(t, 2.7, m.Today.Conversion) // 8 / 300
	assert.Equal(t, 20000.0, m.Month.Revenue)
	assert.Equal(t, 80.0, m.Month.Orders)
	assert.Equal(t, 1000.0, m.Month.AdSpend)
	assert.Equal(t, 100.0, m.Today.AdSpend) // 1000 / 10 days

	require.Len(t, m.Stocks, 2)
	assert.Equal(t, models.StockItem{SKU: "OZ-1", Name: "Jacket", Quantity: 10, Warehouse: "Kazan"}, m.Stocks[0])
	assert.Equal(t, "OZ-3", m.Stocks[1].Name)
	assert.Equal(t, []models.Warehouse{
		{Name: "Moscow", Quantity: 4},
		{Name: "Kazan", Quantity: 6},
		{Name: defaultWarehouse, Quantity: 2},
	}, m.Warehouses)

	// sequential: two analytics calls, then ad spend, then stocks
	assert.Equal(t, []string{
		"/v1/analytics/data",
		"/v1/analytics/data",
		"/v1/statistics/campaign/product/report",
		"/v3/product/info/stocks",
	}, u.paths)
}

func TestNiceToHaveFailuresDegrade(t *testing.T) {
	u := healthy()
	u.campaign = func(w http.ResponseWriter) { w.WriteHeader(http.StatusInternalServerError) }
	u.stocks = func(w http.ResponseWriter) { _, _ = w.Write([]byte(`not json`)) }
	srv := httptest.NewServer(u)
	defer srv.Close()

	res := newProvider(srv).Fetch(context.Background(), creds, at)
	require.Equal(t, models.OutcomeLive, res.Outcome)
	assert.Equal(t, models.SourceAPI, res.Metrics.Source)
	assert.Zero(t, res.Metrics.Month.AdSpend)
	assert.Zero(t, res.Metrics.Today.AdSpend)
	assert.Empty(t, res.Metrics.Stocks)
	assert.Empty(t, res.Metrics.Warehouses)
	assert.Equal(t, 1500.0, res.Metrics.Today.Revenue)
}

func TestInvalidKeysReportError(t *testing.T) {
	srv := httptest.NewServer(healthy())
	defer srv.Close()

	bad := &models.Credentials{APIKey: "wrong-key", ClientID: "12345"}
	res := newProvider(srv).Fetch(context.Background(), bad, at)

	assert.Equal(t, models.OutcomeFailed, res.Outcome)
	assert.Equal(t, models.SourceError, res.Metrics.Source)
	assert.Equal(t, "Invalid Ozon keys. Check Client-ID and API key in settings.", res.Metrics.Error)
	assert.Equal(t, models.DayMetrics{}, res.Metrics.Today)
	assert.Equal(t, models.MonthMetrics{}, res.Metrics.Month)
}

func TestServerErrorFallsBackToDemo(t *testing.T) {
	u := healthy()
	u.analytics = func(w http.ResponseWriter, _ reportRequest) { w.WriteHeader(http.StatusBadGateway) }
	srv := httptest.NewServer(u)
	defer srv.Close()

	res := newProvider(srv).Fetch(context.Background(), creds, at)
	assert.Equal(t, models.OutcomeFallback, res.Outcome)
	assert.Equal(t, models.SourceMock, res.Metrics.Source)
	assert.NotZero(t, res.Metrics.Today.Revenue)
}

func TestMissingClientIDSkipsUpstream(t *testing.T) {
	u := healthy()
	srv := httptest.NewServer(u)
	defer srv.Close()

	res := newProvider(srv).Fetch(context.Background(), &models.Credentials{APIKey: "ozon-api-key"}, at)
	assert.Equal(t, models.SourceMock, res.Metrics.Source)
	assert.Empty(t, u.paths)
}

func TestPacerSpacesSubCalls(t *testing.T) {
	srv := httptest.NewServer(healthy())
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Timeout: time.Second, CallDelay: 30 * time.Millisecond}, nil)
	start := time.Now()
	_, err := c.FetchLive(context.Background(), *creds, at)
	require.NoError(t, err)
	// four calls, three enforced gaps
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

type slowUpstream struct {
	*upstream
	delay time.Duration
}

func (s slowUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	time.Sleep(s.delay)
	s.upstream.ServeHTTP(w, r)
}

func TestSlowUpstreamWithinPerCallTimeoutStaysLive(t *testing.T) {
	srv := httptest.NewServer(slowUpstream{upstream: healthy(), delay: 150 * time.Millisecond})
	defer srv.Close()

	// each call fits the per-call timeout, the four together do not
	c := New(Config{BaseURL: srv.URL, Timeout: 300 * time.Millisecond, CallDelay: 10 * time.Millisecond, AdSpendWeight: 1}, nil)
	assert.Equal(t, 1230*time.Millisecond, c.Budget())

	res := channel.NewProvider(c).Fetch(context.Background(), creds, at)
	require.Equal(t, models.OutcomeLive, res.Outcome, "%v", res.Err)
	assert.Equal(t, models.SourceAPI, res.Metrics.Source)
	assert.Equal(t, 1000.0, res.Metrics.Month.AdSpend)
	assert.Len(t, res.Metrics.Stocks, 2)
}
