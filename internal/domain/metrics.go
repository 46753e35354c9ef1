package domain

import (
	"database/sql/driver"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// Metric snapshot models. One MetricSnapshot row is written per collection
// tick and never updated afterwards; the series is append-only and keyed by
// Timestamp.

// HealthState is the severity-ordered service state.
// down is part of the state space but is never produced by the evaluator;
// it is reserved for a future liveness check.
type HealthState string

const (
	HealthHealthy  HealthState = "healthy"
	HealthWarning  HealthState = "warning"
	HealthCritical HealthState = "critical"
	HealthDown     HealthState = "down"
)

// Severity returns the ordering rank: healthy < warning < critical < down.
func (s HealthState) Severity() int {
	switch s {
	case HealthWarning:
		return 1
	case HealthCritical:
		return 2
	case HealthDown:
		return 3
	default:
		return 0
	}
}

// WorseOf returns the more severe of two states.
func WorseOf(a, b HealthState) HealthState {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}

type CPUMetrics struct {
	Usage       float64    `json:"usage"`        // percent 0-100
	LoadAverage [3]float64 `json:"load_average"` // 1/5/15 minute
	Cores       int        `json:"cores"`
}

type MemoryMetrics struct {
	Used            uint64  `json:"used"`
	Free            uint64  `json:"free"`
	Total           uint64  `json:"total"`
	UsagePercentage float64 `json:"usage_percentage"`
}

type DiskMetrics struct {
	Used            uint64  `json:"used"`
	Free            uint64  `json:"free"`
	Total           uint64  `json:"total"`
	UsagePercentage float64 `json:"usage_percentage"`
}

type ServerMetrics struct {
	CPU       CPUMetrics    `json:"cpu"`
	Memory    MemoryMetrics `json:"memory"`
	Disk      DiskMetrics   `json:"disk"`
	Uptime    uint64        `json:"uptime"` // seconds
	ProcessID int32         `json:"process_id"`
}

type DatabaseMetrics struct {
	ConnectionCount   int     `json:"connection_count"`
	ActiveConnections int     `json:"active_connections"`
	QueryTime         float64 `json:"query_time"` // ms
	SlowQueries       int64   `json:"slow_queries"`
	IndexUsage        float64 `json:"index_usage"`    // percent 0-100
	CacheHitRate      float64 `json:"cache_hit_rate"` // percent 0-100
	LockWaitTime      float64 `json:"lock_wait_time"` // ms
}

type ApplicationMetrics struct {
	RequestCount int64   `json:"request_count"`
	ResponseTime float64 `json:"response_time"` // ms
	ErrorRate    float64 `json:"error_rate"`    // percent 0-100
	ActiveUsers  int64   `json:"active_users"`
	MemoryUsage  uint64  `json:"memory_usage"`
	HeapUsed     uint64  `json:"heap_used"`
	HeapTotal    uint64  `json:"heap_total"`
	EventLoopLag float64 `json:"event_loop_lag"` // ms, GC pause proxy
}

type APIMetrics struct {
	TotalRequests       int64   `json:"total_requests"`
	SuccessfulRequests  int64   `json:"successful_requests"`
	FailedRequests      int64   `json:"failed_requests"`
	AverageResponseTime float64 `json:"average_response_time"` // ms
	P95ResponseTime     float64 `json:"p95_response_time"`
	P99ResponseTime     float64 `json:"p99_response_time"`
	RequestsPerSecond   float64 `json:"requests_per_second"`
}

type BusinessMetrics struct {
	TotalUsers        int64   `json:"total_users"`
	ActiveUsers       int64   `json:"active_users"`
	NewUsers          int64   `json:"new_users"`
	TotalRevenue      float64 `json:"total_revenue"`
	DailyRevenue      float64 `json:"daily_revenue"`
	SubscriptionCount int64   `json:"subscription_count"`
	ChurnRate         float64 `json:"churn_rate"`      // percent 0-100
	ConversionRate    float64 `json:"conversion_rate"` // percent 0-100
}

type SeverityCount struct {
	Critical int64 `json:"critical"`
	High     int64 `json:"high"`
	Medium   int64 `json:"medium"`
	Low      int64 `json:"low"`
}

// Sum returns the severity total; ErrorMetrics.Total must equal it.
func (s SeverityCount) Sum() int64 {
	return s.Critical + s.High + s.Medium + s.Low
}

type RecentError struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
}

type ErrorMetrics struct {
	Total        int64            `json:"total"`
	BySeverity   SeverityCount    `json:"by_severity"`
	ByType       map[string]int64 `json:"by_type"`
	RecentErrors []RecentError    `json:"recent_errors"`
}

type SecurityMetrics struct {
	FailedLogins       int64 `json:"failed_logins"`
	BlockedRequests    int64 `json:"blocked_requests"`
	RateLimitHits      int64 `json:"rate_limit_hits"`
	SuspiciousRequests int64 `json:"suspicious_requests"`
	ActiveSessions     int64 `json:"active_sessions"`
}

type NetworkMetrics struct {
	BytesSent       uint64 `json:"bytes_sent"`
	BytesReceived   uint64 `json:"bytes_received"`
	PacketsSent     uint64 `json:"packets_sent"`
	PacketsReceived uint64 `json:"packets_received"`
	ErrorsIn        uint64 `json:"errors_in"`
	ErrorsOut       uint64 `json:"errors_out"`
}

type HealthAlert struct {
	ID        int64     `json:"id,string"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Severity  string    `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
}

type HealthStatus struct {
	Overall  HealthState   `json:"overall"`
	Database HealthState   `json:"database"`
	API      HealthState   `json:"api"`
	Cache    HealthState   `json:"cache"`
	Storage  HealthState   `json:"storage"`
	Alerts   []HealthAlert `json:"alerts"`
}

// CustomMetrics is the extension bag. Keys are validated at the recording
// site (see monitor.ValidMetricKey) to keep the namespace auditable.
type CustomMetrics map[string]float64

// MetricSnapshot is one collection tick. Fragments are stored as JSON text
// columns so the row shape is identical on postgres and sqlite.
type MetricSnapshot struct {
	ID          int64              `gorm:"primaryKey;autoIncrement" json:"id,string"`
	Timestamp   time.Time          `gorm:"index" json:"timestamp"`
	Server      ServerMetrics      `gorm:"type:text" json:"server"`
	Database    DatabaseMetrics    `gorm:"type:text" json:"database"`
	Application ApplicationMetrics `gorm:"type:text" json:"application"`
	API         APIMetrics         `gorm:"type:text" json:"api"`
	Business    BusinessMetrics    `gorm:"type:text" json:"business"`
	Errors      ErrorMetrics       `gorm:"type:text" json:"error_metrics"`
	Security    SecurityMetrics    `gorm:"type:text" json:"security"`
	Network     NetworkMetrics     `gorm:"type:text" json:"network"`
	Health      HealthStatus       `gorm:"type:text" json:"health_status"`
	Custom      CustomMetrics      `gorm:"type:text" json:"custom_metrics"`
	CreatedAt   time.Time          `json:"created_at"`
}

// TableName Specify table name
func (MetricSnapshot) TableName() string {
	return "met_snapshot"
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func jsonValue(v interface{}) (driver.Value, error) {
	return json.MarshalToString(v)
}

func jsonScan(src, dst interface{}) error {
	switch data := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(data, dst)
	case string:
		return json.UnmarshalFromString(data, dst)
	default:
		return fmt.Errorf("unsupported column type %T", src)
	}
}

func (m ServerMetrics) Value() (driver.Value, error)  { return jsonValue(m) }
func (m *ServerMetrics) Scan(src interface{}) error   { return jsonScan(src, m) }
func (m DatabaseMetrics) Value() (driver.Value, error) { return jsonValue(m) }
func (m *DatabaseMetrics) Scan(src interface{}) error  { return jsonScan(src, m) }
func (m ApplicationMetrics) Value() (driver.Value, error) { return jsonValue(m) }
func (m *ApplicationMetrics) Scan(src interface{}) error  { return jsonScan(src, m) }
func (m APIMetrics) Value() (driver.Value, error)  { return jsonValue(m) }
func (m *APIMetrics) Scan(src interface{}) error   { return jsonScan(src, m) }
func (m BusinessMetrics) Value() (driver.Value, error) { return jsonValue(m) }
func (m *BusinessMetrics) Scan(src interface{}) error  { return jsonScan(src, m) }
func (m ErrorMetrics) Value() (driver.Value, error) { return jsonValue(m) }
func (m *ErrorMetrics) Scan(src interface{}) error  { return jsonScan(src, m) }
func (m SecurityMetrics) Value() (driver.Value, error) { return jsonValue(m) }
func (m *SecurityMetrics) Scan(src interface{}) error  { return jsonScan(src, m) }
func (m NetworkMetrics) Value() (driver.Value, error) { return jsonValue(m) }
func (m *NetworkMetrics) Scan(src interface{}) error  { return jsonScan(src, m) }
func (m HealthStatus) Value() (driver.Value, error) { return jsonValue(m) }
func (m *HealthStatus) Scan(src interface{}) error  { return jsonScan(src, m) }
func (m CustomMetrics) Value() (driver.Value, error) { return jsonValue(m) }
func (m *CustomMetrics) Scan(src interface{}) error  { return jsonScan(src, m) }
