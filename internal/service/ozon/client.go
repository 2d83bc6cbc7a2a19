// Package ozon fetches seller metrics from the Ozon Seller API.
package ozon

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/service/channel"
	"MarketPulse/internal/service/ratelimit"
	xhttp "MarketPulse/pkg/http"
	"MarketPulse/pkg/logger"
	"MarketPulse/pkg/util"
)

const (
	DefaultBaseURL   = "https://api-seller.ozon.ru"
	defaultWarehouse = "Main warehouse"
	dateLayout       = "2006-01-02"

	// analytics today, analytics month, ad spend, stocks
	subCalls = 4
)

var (
	analyticsMetrics = []string{"revenue", "ordered_units", "session_view_pdp", "conv_tocart_pdp"}
	campaignMetrics  = []string{"views", "clicks", "orders", "revenue", "expense"}
)

type Config struct {
	BaseURL string
	Timeout time.Duration
	// CallDelay is the pause enforced between consecutive upstream calls.
	CallDelay     time.Duration
	AdSpendWeight float64
	StockLimit    int
}

// Client implements channel.Fetcher. Sub-calls run one after another through
// a pacer keyed by seller, as the upstream answers bursts with 429.
type Client struct {
	cfg   Config
	http  *xhttp.Client
	pacer *ratelimit.Limiter
	log   *logger.Logger
}

func New(cfg Config, log *logger.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.StockLimit <= 0 {
		cfg.StockLimit = 20
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		cfg:   cfg,
		http:  xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout)),
		pacer: ratelimit.NewPacer(cfg.CallDelay),
		log:   log.With(logger.String("channel", models.ChannelOzon)),
	}
}

func (c *Client) Channel() string { return models.ChannelOzon }

// Budget covers the sequential sub-calls, each bounded by Timeout, and the
// pauses between them.
func (c *Client) Budget() time.Duration {
	if c.cfg.Timeout <= 0 {
		return 0
	}
	return time.Duration(subCalls)*c.cfg.Timeout + time.Duration(subCalls-1)*c.cfg.CallDelay
}

func (c *Client) Configured(creds *models.Credentials) bool {
	return creds != nil && creds.APIKey != "" && creds.ClientID != ""
}

func (c *Client) AuthFailureMessage() string {
	return "Invalid Ozon keys. Check Client-ID and API key in settings."
}

func (c *Client) FetchLive(ctx context.Context, creds models.Credentials, at time.Time) (models.ChannelMetrics, error) {
	todayStart := util.StartOfDay(at)
	monthStart := util.StartOfMonth(at)

	today, err := c.analytics(ctx, creds, todayStart, at)
	if err != nil {
		return models.ChannelMetrics{}, fmt.Errorf("today analytics: %w", err)
	}
	month, err := c.analytics(ctx, creds, monthStart, at)
	if err != nil {
		return models.ChannelMetrics{}, fmt.Errorf("month analytics: %w", err)
	}

	monthAdSpend, err := c.adSpend(ctx, creds, monthStart, at)
	if err != nil {
		c.log.Debug("ad spend unavailable", logger.Error(err))
		monthAdSpend = 0
	}
	stocks, warehouses, err := c.stocks(ctx, creds)
	if err != nil {
		c.log.Debug("stocks unavailable", logger.Error(err))
		stocks, warehouses = []models.StockItem{}, []models.Warehouse{}
	}

	todayOrders := util.Round(sum(today, analyticsMetrics, "ordered_units"), 0)
	todayViews := sum(today, analyticsMetrics, "session_view_pdp")

	return models.ChannelMetrics{
		Today: models.DayMetrics{
			Revenue:    util.Round(sum(today, analyticsMetrics, "revenue"), 0),
			Orders:     todayOrders,
			Conversion: channel.CalcConversion(todayOrders, todayViews),
			AdSpend:    channel.ApportionDaily(monthAdSpend, at.Day(), c.cfg.AdSpendWeight),
		},
		Month: models.MonthMetrics{
			Revenue: util.Round(sum(month, analyticsMetrics, "revenue"), 0),
			Orders:  util.Round(sum(month, analyticsMetrics, "ordered_units"), 0),
			AdSpend: util.Round(monthAdSpend, 0),
		},
		Stocks:         stocks,
		Warehouses:     warehouses,
		AtRiskProducts: []models.AtRiskProduct{},
	}, nil
}

func (c *Client) post(ctx context.Context, creds models.Credentials, path string, body, dest interface{}) error {
	if err := c.pacer.Wait(ctx, creds.ClientID); err != nil {
		return err
	}
	return c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    c.cfg.BaseURL + path,
		Headers: map[string]string{
			"Client-Id": creds.ClientID,
			"Api-Key":   creds.APIKey,
		},
		Body: body,
	}, dest)
}

func (c *Client) analytics(ctx context.Context, creds models.Credentials, from, to time.Time) ([]analyticsRow, error) {
	var resp analyticsResponse
	err := c.post(ctx, creds, "/v1/analytics/data", reportRequest{
		DateFrom:  from.Format(dateLayout),
		DateTo:    to.Format(dateLayout),
		Metrics:   analyticsMetrics,
		Dimension: []string{"day"},
		Limit:     1000,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Result.Data, nil
}

func (c *Client) adSpend(ctx context.Context, creds models.Credentials, from, to time.Time) (float64, error) {
	var resp analyticsResponse
	err := c.post(ctx, creds, "/v1/statistics/campaign/product/report", reportRequest{
		DateFrom:  from.Format(dateLayout),
		DateTo:    to.Format(dateLayout),
		Metrics:   campaignMetrics,
		Dimension: []string{"day"},
	}, &resp)
	if err != nil {
		return 0, err
	}
	return sum(resp.Result.Data, campaignMetrics, "expense"), nil
}

func (c *Client) stocks(ctx context.Context, creds models.Credentials) ([]models.StockItem, []models.Warehouse, error) {
	req := stocksRequest{Limit: 100}
	req.Filter.Visibility = "ALL"

	var resp stocksResponse
	if err := c.post(ctx, creds, "/v3/product/info/stocks", req, &resp); err != nil {
		return nil, nil, err
	}

	var (
		stocks     = []models.StockItem{}
		warehouses = []models.Warehouse{}
		index      = map[string]int{}
	)
	for _, item := range resp.items() {
		var total, top float64
		itemWarehouse := defaultWarehouse
		for _, st := range item.Stocks {
			name := st.WarehouseName
			if name == "" {
				name = defaultWarehouse
			}
			i, ok := index[name]
			if !ok {
				i = len(warehouses)
				index[name] = i
				warehouses = append(warehouses, models.Warehouse{Name: name})
			}
			warehouses[i].Quantity += st.Present
			total += st.Present
			if st.Present > top {
				top, itemWarehouse = st.Present, name
			}
		}
		if total <= 0 || len(stocks) >= c.cfg.StockLimit {
			continue
		}

		sku := item.OfferID
		if sku == "" {
			sku = strconv.FormatInt(item.ProductID, 10)
		}
		name := item.Name
		if name == "" {
			name = sku
		}
		// the stock endpoint carries no sell-through, coverage stays unknown (0)
		stocks = append(stocks, models.StockItem{
			SKU:       sku,
			Name:      name,
			Quantity:  total,
			Warehouse: itemWarehouse,
		})
	}
	return stocks, warehouses, nil
}
