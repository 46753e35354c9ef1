package metricsapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/talkincode/opspulse/internal/monitor"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
	defaultTrendDays    = 7
	maxTrendDays        = 90
)

// OprLogFunc records an operator action in the audit log.
type OprLogFunc func(name, ip, action, desc string)

// MetricsAPI exposes the monitoring engine over HTTP. Handlers are thin:
// parameter parsing and envelope mapping only.
type MetricsAPI struct {
	collector  *monitor.Collector
	store      *monitor.Store
	summarizer *monitor.Summarizer
	interval   time.Duration
	oprLog     OprLogFunc
}

// Option customizes a MetricsAPI.
type Option func(*MetricsAPI)

// WithOprLog records state-changing operations in the operation log.
func WithOprLog(fn OprLogFunc) Option {
	return func(h *MetricsAPI) {
		h.oprLog = fn
	}
}

func NewMetricsAPI(collector *monitor.Collector, store *monitor.Store, summarizer *monitor.Summarizer, interval time.Duration, opts ...Option) *MetricsAPI {
	h := &MetricsAPI{
		collector:  collector,
		store:      store,
		summarizer: summarizer,
		interval:   interval,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the metrics routes on the given group.
func (h *MetricsAPI) Register(g *echo.Group) {
	g.GET("/metrics/realtime", h.GetRealtime)
	g.GET("/metrics/health", h.GetHealth)
	g.GET("/metrics/trends", h.GetTrends)
	g.GET("/metrics/history", h.GetHistory)
	g.GET("/metrics/summary", h.GetSummary)
	g.GET("/metrics/database", h.GetDatabaseSummary)
	g.GET("/metrics/errors", h.GetErrorSummary)
	g.GET("/metrics/business", h.GetBusinessSummary)
	g.POST("/metrics/monitoring", h.ToggleMonitoring)
}

// GetRealtime returns the latest snapshot.
func (h *MetricsAPI) GetRealtime(c echo.Context) error {
	snap, err := h.store.Latest()
	if errors.Is(err, monitor.ErrNoData) {
		return fail(c, http.StatusNotFound, "no metric data available")
	}
	if err != nil {
		zap.L().Error("realtime query failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "failed to fetch realtime metrics")
	}
	return ok(c, snap)
}

// GetHealth returns the health verdict of the latest snapshot.
func (h *MetricsAPI) GetHealth(c echo.Context) error {
	snap, err := h.store.Latest()
	if errors.Is(err, monitor.ErrNoData) {
		return fail(c, http.StatusNotFound, "no metric data available")
	}
	if err != nil {
		zap.L().Error("health query failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "failed to fetch health status")
	}
	return ok(c, snap.Health)
}

// GetTrends returns per-day trend buckets for the last N days (default 7).
func (h *MetricsAPI) GetTrends(c echo.Context) error {
	days := cast.ToInt(c.QueryParam("days"))
	if days <= 0 {
		days = defaultTrendDays
	}
	if days > maxTrendDays {
		days = maxTrendDays
	}
	trends, err := h.summarizer.DailyTrends(days)
	if err != nil {
		zap.L().Error("trends query failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "failed to compute trends")
	}
	return ok(c, map[string]interface{}{"days": days, "trends": trends})
}

type paginationMeta struct {
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Skip    int   `json:"skip"`
	HasMore bool  `json:"hasMore"`
}

// GetHistory returns a filtered, sorted, paginated slice of the series.
func (h *MetricsAPI) GetHistory(c echo.Context) error {
	var filter monitor.QueryFilter
	if v := c.QueryParam("startDate"); v != "" {
		t, err := parseTimeParam(v)
		if err != nil {
			return fail(c, http.StatusBadRequest, "invalid startDate")
		}
		filter.StartDate = &t
	}
	if v := c.QueryParam("endDate"); v != "" {
		t, err := parseTimeParam(v)
		if err != nil {
			return fail(c, http.StatusBadRequest, "invalid endDate")
		}
		filter.EndDate = &t
	}

	limit := cast.ToInt(c.QueryParam("limit"))
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	skip := cast.ToInt(c.QueryParam("skip"))
	if skip < 0 {
		skip = 0
	}
	sortBy := c.QueryParam("sortBy")
	if sortBy == "" {
		sortBy = "timestamp"
	}
	sortOrder := c.QueryParam("sortOrder")
	if sortOrder == "" {
		sortOrder = "desc"
	}

	snaps, total, err := h.store.Query(filter, limit, skip, sortBy, sortOrder)
	if err != nil {
		zap.L().Error("history query failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "failed to fetch metrics history")
	}

	return ok(c, map[string]interface{}{
		"metrics": snaps,
		"pagination": paginationMeta{
			Total:   total,
			Limit:   limit,
			Skip:    skip,
			HasMore: int64(skip+limit) < total,
		},
	})
}

// GetSummary returns the general performance summary for a period.
func (h *MetricsAPI) GetSummary(c echo.Context) error {
	token := periodParam(c, "24h")
	period, err := monitor.ResolvePeriod(token, "1h", "24h", "7d", "30d")
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid period, expected one of 1h, 24h, 7d, 30d")
	}
	summary, err := h.summarizer.Performance(token, period)
	if err != nil {
		zap.L().Error("summary query failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "failed to compute summary")
	}
	return ok(c, summary)
}

// GetDatabaseSummary returns the database summary for a period.
func (h *MetricsAPI) GetDatabaseSummary(c echo.Context) error {
	token := periodParam(c, "24h")
	period, err := monitor.ResolvePeriod(token, "1h", "24h", "7d")
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid period, expected one of 1h, 24h, 7d")
	}
	summary, err := h.summarizer.Database(token, period)
	if err != nil {
		zap.L().Error("database summary query failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "failed to compute database summary")
	}
	return ok(c, summary)
}

// GetErrorSummary returns the error summary for a period.
func (h *MetricsAPI) GetErrorSummary(c echo.Context) error {
	token := periodParam(c, "24h")
	period, err := monitor.ResolvePeriod(token, "1h", "24h", "7d")
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid period, expected one of 1h, 24h, 7d")
	}
	summary, err := h.summarizer.Errors(token, period)
	if err != nil {
		zap.L().Error("error summary query failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "failed to compute error summary")
	}
	return ok(c, summary)
}

// GetBusinessSummary returns the business summary for a period.
func (h *MetricsAPI) GetBusinessSummary(c echo.Context) error {
	token := periodParam(c, "30d")
	period, err := monitor.ResolvePeriod(token, "24h", "7d", "30d")
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid period, expected one of 24h, 7d, 30d")
	}
	summary, err := h.summarizer.Business(token, period)
	if err != nil {
		zap.L().Error("business summary query failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "failed to compute business summary")
	}
	return ok(c, summary)
}

type monitoringPayload struct {
	Action string `json:"action" validate:"required,oneof=start stop"`
}

// ToggleMonitoring starts or stops the collector.
func (h *MetricsAPI) ToggleMonitoring(c echo.Context) error {
	var payload monitoringPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "unable to parse request body")
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "invalid action, expected \"start\" or \"stop\"")
	}

	switch payload.Action {
	case "start":
		h.collector.Start(h.interval)
		h.logOperation(c, "monitoring start", "metrics collection started via api")
		return ok(c, map[string]interface{}{"monitoring": "started"})
	case "stop":
		h.collector.Stop()
		h.logOperation(c, "monitoring stop", "metrics collection stopped via api")
		return ok(c, map[string]interface{}{"monitoring": "stopped"})
	default:
		return fail(c, http.StatusBadRequest, "invalid action, expected \"start\" or \"stop\"")
	}
}

func (h *MetricsAPI) logOperation(c echo.Context, action, desc string) {
	if h.oprLog == nil {
		return
	}
	h.oprLog("api", c.RealIP(), action, desc)
}

func periodParam(c echo.Context, defval string) string {
	if v := c.QueryParam("period"); v != "" {
		return v
	}
	return defval
}

func parseTimeParam(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}
