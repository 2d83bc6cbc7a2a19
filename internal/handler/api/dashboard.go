package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/internal/service/ratelimit"
	"MarketPulse/internal/usecase"
	xhttp "MarketPulse/pkg/http"
	xlogger "MarketPulse/pkg/logger"
	"MarketPulse/pkg/util"
)

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

// DashboardHandler serves the dashboard JSON API.
type DashboardHandler struct {
	logger   *xlogger.Logger
	agg      *usecase.Aggregator
	settings *usecase.SettingsService
	reporter *usecase.Reporter
	history  domrepo.HistoryStore
	refresh  *ratelimit.Limiter
	checks   map[string]HealthCheck
	loc      *time.Location
	now      func() time.Time
}

// DashboardOption configures DashboardHandler.
type DashboardOption func(*DashboardHandler)

// WithHistory enables GET /api/history/:channel.
func WithHistory(h domrepo.HistoryStore) DashboardOption {
	return func(d *DashboardHandler) { d.history = h }
}

// WithRefreshLimit bounds forced refreshes to one per interval per client.
func WithRefreshLimit(interval time.Duration) DashboardOption {
	return func(d *DashboardHandler) { d.refresh = ratelimit.New(interval, 1) }
}

// WithHealthCheck adds a named dependency to /healthz.
func WithHealthCheck(name string, check HealthCheck) DashboardOption {
	return func(d *DashboardHandler) {
		if check != nil {
			d.checks[name] = check
		}
	}
}

// WithTimezone sets the zone calendar days are computed in.
func WithTimezone(loc *time.Location) DashboardOption {
	return func(d *DashboardHandler) {
		if loc != nil {
			d.loc = loc
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) DashboardOption {
	return func(d *DashboardHandler) { d.now = now }
}

func NewDashboardHandler(
	logger *xlogger.Logger,
	agg *usecase.Aggregator,
	settings *usecase.SettingsService,
	reporter *usecase.Reporter,
	opts ...DashboardOption,
) *DashboardHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	h := &DashboardHandler{
		logger:   logger,
		agg:      agg,
		settings: settings,
		reporter: reporter,
		refresh:  ratelimit.New(10*time.Second, 1),
		checks:   map[string]HealthCheck{},
		loc:      time.Local,
		now:      time.Now,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *DashboardHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.GET("/snapshot", h.Snapshot)
	g.GET("/data/:channel", h.ChannelData)
	g.GET("/kpi", h.GetKPI)
	g.POST("/kpi", h.SetKPI)
	g.GET("/credentials/status", h.CredentialsStatus)
	g.POST("/credentials", h.SaveCredentials)
	g.DELETE("/credentials/:channel", h.DeleteCredentials)
	g.GET("/alerts", h.Alerts)
	g.GET("/history/:channel", h.History)
}

// at resolves the moment to aggregate for: now for today, the last second
// of the day for an explicit past or future date.
func (h *DashboardHandler) at(date string) time.Time {
	now := h.now().In(h.loc)
	d := util.ParseDateIn(date, h.loc, now)
	if util.SameDay(now, d) {
		return now
	}
	return util.EndOfDay(d)
}

func (h *DashboardHandler) Snapshot(c echo.Context) error {
	req := &models.SnapshotRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()

	if req.Refresh {
		if !h.refresh.Allow(c.RealIP()) {
			return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("refresh is rate limited, try again shortly"))
		}
		for _, ch := range h.agg.Channels() {
			h.agg.Invalidate(ctx, ch)
		}
	}

	s := h.agg.Snapshot(ctx, h.at(req.Date))
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, echo.Map{
		"snapshot": s,
		"demo":     s.IsDemo(),
	})
}

func (h *DashboardHandler) ChannelData(c echo.Context) error {
	ctx := c.Request().Context()
	channel, err := models.NormalizeChannel(c.Param("channel"))
	if err != nil {
		return xhttp.AppErrorResponse(c, mapError(err))
	}

	entry, err := h.agg.Channel(ctx, channel, h.at(c.QueryParam("date")))
	if err != nil {
		return xhttp.AppErrorResponse(c, mapError(err))
	}
	kpi, err := h.settings.KPI(ctx)
	if err != nil {
		h.logger.Error("read kpi failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("settings unavailable").WithError(err))
	}
	return xhttp.SuccessResponse(c, echo.Map{
		"metrics":  entry.Metrics,
		"kpi":      kpi,
		"cached":   entry.Cached,
		"cachedAt": entry.StoredAt,
	})
}

func (h *DashboardHandler) GetKPI(c echo.Context) error {
	kpi, err := h.settings.KPI(c.Request().Context())
	if err != nil {
		h.logger.Error("read kpi failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("settings unavailable").WithError(err))
	}
	return xhttp.SuccessResponse(c, kpi)
}

func (h *DashboardHandler) SetKPI(c echo.Context) error {
	req := &models.KPIUpdateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	kpi, err := h.settings.SetKPI(c.Request().Context(), req.Key, *req.Value)
	if err != nil {
		return xhttp.AppErrorResponse(c, mapError(err))
	}
	return xhttp.SuccessResponse(c, kpi)
}

func (h *DashboardHandler) CredentialsStatus(c echo.Context) error {
	status, err := h.settings.Status(c.Request().Context())
	if err != nil {
		h.logger.Error("credentials status failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("settings unavailable").WithError(err))
	}
	return xhttp.SuccessResponse(c, status)
}

func (h *DashboardHandler) SaveCredentials(c echo.Context) error {
	req := &models.CredentialsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	channel, err := h.settings.SaveCredentials(c.Request().Context(), req.Platform, models.Credentials{
		APIKey:   req.APIKey,
		ClientID: req.ClientID,
	})
	if err != nil {
		return xhttp.AppErrorResponse(c, mapError(err))
	}
	return xhttp.DataResponse(c, http.StatusCreated, echo.Map{"channel": channel, "configured": true})
}

func (h *DashboardHandler) DeleteCredentials(c echo.Context) error {
	if _, err := h.settings.DeleteCredentials(c.Request().Context(), c.Param("channel")); err != nil {
		return xhttp.AppErrorResponse(c, mapError(err))
	}
	return xhttp.NoContentResponse(c)
}

func (h *DashboardHandler) Alerts(c echo.Context) error {
	batch, _, err := h.reporter.Evaluate(c.Request().Context(), h.at(c.QueryParam("date")))
	if err != nil {
		h.logger.Error("evaluate alerts failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("alerts unavailable").WithError(err))
	}
	return xhttp.SuccessResponse(c, batch)
}

func (h *DashboardHandler) History(c echo.Context) error {
	if h.history == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("history storage is not enabled"))
	}
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	channel, err := models.NormalizeChannel(req.Channel)
	if err != nil {
		return xhttp.AppErrorResponse(c, mapError(err))
	}

	now := h.now().In(h.loc)
	to := util.ParseDateIn(req.To, h.loc, now)
	from := util.ParseDateIn(req.From, h.loc, util.StartOfMonth(to))
	if from.After(to) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("from must not be after to"))
	}

	rows, err := h.history.Query(c.Request().Context(), channel, from, to)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.InternalError("history unavailable").WithError(err))
	}
	return xhttp.SuccessResponse(c, rows)
}

func (h *DashboardHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}
	return c.JSON(status, echo.Map{
		"status":       http.StatusText(status),
		"channels":     h.agg.Channels(),
		"dependencies": deps,
	})
}

func mapError(err error) error {
	switch {
	case errors.Is(err, models.ErrUnknownChannel):
		return xhttp.NotFoundError("unknown channel").WithError(err)
	case errors.Is(err, models.ErrInvalidKPIKey):
		return xhttp.NewAppError("ERR_ONEOF", "key", "key must be one of: revenue, conversion, ad_budget, daily_orders", http.StatusBadRequest)
	case errors.Is(err, usecase.ErrClientIDRequired):
		return xhttp.NewAppError("ERR_REQUIRED", "clientId", "clientId is required for ozon", http.StatusBadRequest)
	default:
		return xhttp.InternalError("internal error").WithError(err)
	}
}
