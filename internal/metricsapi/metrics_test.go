package metricsapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/opspulse/config"
	"github.com/talkincode/opspulse/internal/domain"
	"github.com/talkincode/opspulse/internal/monitor"
	"github.com/talkincode/opspulse/internal/webserver"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	server *webserver.WebServer
	store  *monitor.Store
	db     *gorm.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.MetricSnapshot{}, &domain.SysOprLog{}))

	recorder := monitor.NewRecorder()
	store := monitor.NewStore(db)
	collector := monitor.NewCollector(db, store, recorder)
	summarizer := monitor.NewSummarizer(store)

	cfg := config.DefaultAppConfig
	server := webserver.NewWebServer(&cfg, recorder)
	api := NewMetricsAPI(collector, store, summarizer, time.Minute,
		WithOprLog(func(name, ip, action, desc string) {
			db.Create(&domain.SysOprLog{
				OprName:   name,
				OprIp:     ip,
				OptAction: action,
				OptDesc:   desc,
				OptTime:   time.Now(),
			})
		}))
	api.Register(server.ApiGroup())
	t.Cleanup(collector.Stop)

	return &testEnv{server: server, store: store, db: db}
}

func (env *testEnv) request(t *testing.T, method, target, body string) (*http.Response, Response) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	env.server.Echo().ServeHTTP(rec, req)

	var envelope Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return rec.Result(), envelope
}

func (env *testEnv) seed(t *testing.T, ts time.Time, mutate func(*domain.MetricSnapshot)) {
	t.Helper()
	snap := &domain.MetricSnapshot{Timestamp: ts}
	if mutate != nil {
		mutate(snap)
	}
	require.NoError(t, env.store.Save(snap))
}

func TestGetRealtimeEmpty(t *testing.T) {
	env := newTestEnv(t)

	resp, envelope := env.request(t, http.MethodGet, "/api/v1/metrics/realtime", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, envelope.Success)
	assert.Equal(t, "no metric data available", envelope.Message)
	assert.Nil(t, envelope.Data)
}

func TestGetRealtimeLatest(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, time.Now().Add(-time.Minute), func(m *domain.MetricSnapshot) { m.Server.CPU.Usage = 33 })
	env.seed(t, time.Now(), func(m *domain.MetricSnapshot) { m.Server.CPU.Usage = 44 })

	resp, envelope := env.request(t, http.MethodGet, "/api/v1/metrics/realtime", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, envelope.Success)

	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	server, ok := data["server"].(map[string]interface{})
	require.True(t, ok)
	cpu, ok := server["cpu"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 44.0, cpu["usage"])
}

func TestGetHealth(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, time.Now(), func(m *domain.MetricSnapshot) {
		m.Health = domain.HealthStatus{Overall: domain.HealthWarning}
	})

	resp, envelope := env.request(t, http.MethodGet, "/api/v1/metrics/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, envelope.Success)
	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "warning", data["overall"])
}

func TestGetHistoryPagination(t *testing.T) {
	env := newTestEnv(t)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 25; i++ {
		env.seed(t, base.Add(time.Duration(i)*time.Minute), nil)
	}

	resp, envelope := env.request(t, http.MethodGet, "/api/v1/metrics/history?limit=10&skip=20", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, envelope.Success)

	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	metrics, ok := data["metrics"].([]interface{})
	require.True(t, ok)
	assert.Len(t, metrics, 5)

	pagination, ok := data["pagination"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 25.0, pagination["total"])
	assert.Equal(t, 10.0, pagination["limit"])
	assert.Equal(t, 20.0, pagination["skip"])
	assert.Equal(t, false, pagination["hasMore"])
}

func TestGetHistoryDefaults(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, time.Now(), nil)

	resp, envelope := env.request(t, http.MethodGet, "/api/v1/metrics/history", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data := envelope.Data.(map[string]interface{})
	pagination := data["pagination"].(map[string]interface{})
	assert.Equal(t, 100.0, pagination["limit"])
	assert.Equal(t, 0.0, pagination["skip"])
}

func TestGetHistoryInvalidDate(t *testing.T) {
	env := newTestEnv(t)

	resp, envelope := env.request(t, http.MethodGet, "/api/v1/metrics/history?startDate=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, envelope.Success)
	assert.Equal(t, "invalid startDate", envelope.Message)
}

func TestGetSummaryInvalidPeriod(t *testing.T) {
	env := newTestEnv(t)

	resp, envelope := env.request(t, http.MethodGet, "/api/v1/metrics/summary?period=2w", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, envelope.Success)
	assert.Contains(t, envelope.Message, "invalid period")
}

func TestGetSummaryEmptyWindow(t *testing.T) {
	env := newTestEnv(t)

	resp, envelope := env.request(t, http.MethodGet, "/api/v1/metrics/summary?period=1h", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, envelope.Success)
	data := envelope.Data.(map[string]interface{})
	assert.Equal(t, 0.0, data["sample_count"])
	assert.Equal(t, 100.0, data["health_score"])
}

func TestGetBusinessSummaryPeriods(t *testing.T) {
	env := newTestEnv(t)

	// 1h is valid elsewhere but not for the business summary
	resp, envelope := env.request(t, http.MethodGet, "/api/v1/metrics/business?period=1h", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, envelope.Success)

	resp, envelope = env.request(t, http.MethodGet, "/api/v1/metrics/business?period=7d", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, envelope.Success)
}

func TestGetTrendsClampsDays(t *testing.T) {
	env := newTestEnv(t)

	resp, envelope := env.request(t, http.MethodGet, "/api/v1/metrics/trends?days=500", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, envelope.Success)
	data := envelope.Data.(map[string]interface{})
	assert.Equal(t, 90.0, data["days"])
}

func TestToggleMonitoring(t *testing.T) {
	env := newTestEnv(t)

	resp, envelope := env.request(t, http.MethodPost, "/api/v1/metrics/monitoring", `{"action":"start"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, envelope.Success)
	data := envelope.Data.(map[string]interface{})
	assert.Equal(t, "started", data["monitoring"])

	resp, envelope = env.request(t, http.MethodPost, "/api/v1/metrics/monitoring", `{"action":"stop"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, envelope.Success)

	// both actions leave an operation log trail
	var logs []domain.SysOprLog
	require.NoError(t, env.db.Order("id").Find(&logs).Error)
	require.Len(t, logs, 2)
	assert.Equal(t, "monitoring start", logs[0].OptAction)
	assert.Equal(t, "monitoring stop", logs[1].OptAction)
}

func TestToggleMonitoringInvalidAction(t *testing.T) {
	env := newTestEnv(t)

	resp, envelope := env.request(t, http.MethodPost, "/api/v1/metrics/monitoring", `{"action":"restart"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, envelope.Success)

	resp, envelope = env.request(t, http.MethodPost, "/api/v1/metrics/monitoring", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, envelope.Success)
}
