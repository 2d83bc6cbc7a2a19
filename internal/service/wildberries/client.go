// Package wildberries fetches seller metrics from the Wildberries statistics
// and advertising APIs.
package wildberries

import (
	"context"
	"fmt"
	"sort"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/service/channel"
	xhttp "MarketPulse/pkg/http"
	"MarketPulse/pkg/logger"
	"MarketPulse/pkg/util"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultStatBaseURL = "https://statistics-api.wildberries.ru/api/v1"
	DefaultAdvBaseURL  = "https://advert-api.wildberries.ru/adv/v1"

	statLayout = "2006-01-02T15:04:05"
	dayLayout  = "2006-01-02"

	// coverage reported for articles with stock but no orders this month
	maxDaysCover = 365
)

type Config struct {
	StatBaseURL   string
	AdvBaseURL    string
	Timeout       time.Duration
	AdSpendWeight float64
	StockLimit    int
}

// Client implements channel.Fetcher. The statistics API tolerates parallel
// requests, so all sub-calls are issued concurrently.
type Client struct {
	cfg  Config
	http *xhttp.Client
	log  *logger.Logger
}

func New(cfg Config, log *logger.Logger) *Client {
	if cfg.StatBaseURL == "" {
		cfg.StatBaseURL = DefaultStatBaseURL
	}
	if cfg.AdvBaseURL == "" {
		cfg.AdvBaseURL = DefaultAdvBaseURL
	}
	if cfg.StockLimit <= 0 {
		cfg.StockLimit = 20
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		cfg:  cfg,
		http: xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout)),
		log:  log.With(logger.String("channel", models.ChannelWildberries)),
	}
}

func (c *Client) Channel() string { return models.ChannelWildberries }

// Budget is a single call timeout plus slack, as the sub-calls run in parallel.
func (c *Client) Budget() time.Duration {
	if c.cfg.Timeout <= 0 {
		return 0
	}
	return c.cfg.Timeout + c.cfg.Timeout/2
}

func (c *Client) Configured(creds *models.Credentials) bool {
	return creds != nil && creds.APIKey != ""
}

func (c *Client) AuthFailureMessage() string {
	return "Invalid WB token. Check the key in settings."
}

func (c *Client) FetchLive(ctx context.Context, creds models.Credentials, at time.Time) (models.ChannelMetrics, error) {
	todayStart := util.StartOfDay(at)
	monthStart := util.StartOfMonth(at)

	var (
		todaySales, monthSales   []sale
		todayOrders, monthOrders []order
		stockRows                []stockRow
		monthAdSpend             float64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(recovered(func() (err error) {
		todaySales, err = c.sales(gctx, creds, todayStart, at)
		return wrap("today sales", err)
	}))
	g.Go(recovered(func() (err error) {
		todayOrders, err = c.orders(gctx, creds, todayStart, at)
		return wrap("today orders", err)
	}))
	g.Go(recovered(func() (err error) {
		monthSales, err = c.sales(gctx, creds, monthStart, at)
		return wrap("month sales", err)
	}))
	g.Go(recovered(func() (err error) {
		monthOrders, err = c.orders(gctx, creds, monthStart, at)
		return wrap("month orders", err)
	}))
	g.Go(recovered(func() error {
		v, err := c.adSpend(gctx, creds, monthStart, at)
		if err != nil {
			c.log.Debug("ad spend unavailable", logger.Error(err))
			return nil
		}
		monthAdSpend = v
		return nil
	}))
	g.Go(recovered(func() error {
		rows, err := c.stocks(gctx, creds, monthStart)
		if err != nil {
			c.log.Debug("stocks unavailable", logger.Error(err))
			return nil
		}
		stockRows = rows
		return nil
	}))
	if err := g.Wait(); err != nil {
		return models.ChannelMetrics{}, err
	}

	stocks, warehouses := buildStocks(stockRows, monthOrders, at.Day(), c.cfg.StockLimit)
	todayOrderCount := float64(len(todayOrders))

	return models.ChannelMetrics{
		Today: models.DayMetrics{
			Revenue:    util.Round(revenue(todaySales), 0),
			Orders:     todayOrderCount,
			Conversion: channel.CalcConversion(float64(len(todaySales)), todayOrderCount),
			AdSpend:    channel.ApportionDaily(monthAdSpend, at.Day(), c.cfg.AdSpendWeight),
		},
		Month: models.MonthMetrics{
			Revenue: util.Round(revenue(monthSales), 0),
			Orders:  float64(len(monthOrders)),
			AdSpend: util.Round(monthAdSpend, 0),
		},
		Stocks:         stocks,
		Warehouses:     warehouses,
		AtRiskProducts: []models.AtRiskProduct{},
	}, nil
}

// recovered turns a panic in a sub-call into its error, as errgroup runs it
// outside the provider's recover.
func recovered(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("sub-call panic: %v", r)
			}
		}()
		return fn()
	}
}

func wrap(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", what, err)
}

func (c *Client) get(ctx context.Context, creds models.Credentials, url string, params map[string][]string, dest interface{}) error {
	return c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         url,
		Headers:     map[string]string{"Authorization": creds.APIKey},
		QueryParams: params,
	}, dest)
}

func statParams(from, to time.Time) map[string][]string {
	return map[string][]string{
		"dateFrom": {from.Format(statLayout)},
		"dateTo":   {to.Format(statLayout)},
		"flag":     {"0"},
	}
}

func (c *Client) sales(ctx context.Context, creds models.Credentials, from, to time.Time) ([]sale, error) {
	var rows []sale
	err := c.get(ctx, creds, c.cfg.StatBaseURL+"/supplier/sales", statParams(from, to), &rows)
	return rows, err
}

func (c *Client) orders(ctx context.Context, creds models.Credentials, from, to time.Time) ([]order, error) {
	var rows []order
	err := c.get(ctx, creds, c.cfg.StatBaseURL+"/supplier/orders", statParams(from, to), &rows)
	return rows, err
}

func (c *Client) adSpend(ctx context.Context, creds models.Credentials, from, to time.Time) (float64, error) {
	var rows []advUpdate
	err := c.get(ctx, creds, c.cfg.AdvBaseURL+"/upd", map[string][]string{
		"from": {from.Format(dayLayout)},
		"to":   {to.Format(dayLayout)},
	}, &rows)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, r := range rows {
		total += util.NonNegative(r.UpdSum)
	}
	return total, nil
}

func (c *Client) stocks(ctx context.Context, creds models.Credentials, from time.Time) ([]stockRow, error) {
	var rows []stockRow
	err := c.get(ctx, creds, c.cfg.StatBaseURL+"/supplier/stocks", map[string][]string{
		"dateFrom": {from.Format(statLayout)},
	}, &rows)
	return rows, err
}

// revenue prefers the seller payout and falls back to the discounted price.
func revenue(rows []sale) float64 {
	var total float64
	for _, s := range rows {
		if s.ForPay != 0 {
			total += s.ForPay
		} else {
			total += s.PriceWithDisc
		}
	}
	return total
}

// buildStocks folds stock rows per article and estimates coverage from this
// month's order rate. The most urgent limit articles are kept.
func buildStocks(rows []stockRow, monthOrders []order, dayOfMonth, limit int) ([]models.StockItem, []models.Warehouse) {
	ordered := make(map[string]float64)
	for _, o := range monthOrders {
		if !o.IsCancel {
			ordered[o.SupplierArticle]++
		}
	}

	type agg struct {
		item models.StockItem
		top  float64
	}
	var (
		articles   []*agg
		byArticle  = map[string]*agg{}
		warehouses = []models.Warehouse{}
		whIndex    = map[string]int{}
	)
	for _, r := range rows {
		qty := util.NonNegative(r.Quantity)
		if i, ok := whIndex[r.WarehouseName]; ok {
			warehouses[i].Quantity += qty
		} else {
			whIndex[r.WarehouseName] = len(warehouses)
			warehouses = append(warehouses, models.Warehouse{Name: r.WarehouseName, Quantity: qty})
		}

		a, ok := byArticle[r.SupplierArticle]
		if !ok {
			name := r.Subject
			if name == "" {
				name = r.SupplierArticle
			}
			a = &agg{item: models.StockItem{SKU: r.SupplierArticle, Name: name}}
			byArticle[r.SupplierArticle] = a
			articles = append(articles, a)
		}
		a.item.Quantity += qty
		if qty > a.top {
			a.top, a.item.Warehouse = qty, r.WarehouseName
		}
	}

	stocks := make([]models.StockItem, 0, len(articles))
	for _, a := range articles {
		if a.item.Quantity <= 0 {
			continue
		}
		a.item.DaysCover = daysCover(a.item.Quantity, ordered[a.item.SKU], dayOfMonth)
		stocks = append(stocks, a.item)
	}
	sort.SliceStable(stocks, func(i, j int) bool { return stocks[i].DaysCover < stocks[j].DaysCover })
	if len(stocks) > limit {
		stocks = stocks[:limit]
	}
	return stocks, warehouses
}

func daysCover(qty, monthOrdered float64, dayOfMonth int) float64 {
	if monthOrdered <= 0 || dayOfMonth <= 0 {
		return maxDaysCover
	}
	perDay := monthOrdered / float64(dayOfMonth)
	return util.Round(min(qty/perDay, maxDaysCover), 0)
}
