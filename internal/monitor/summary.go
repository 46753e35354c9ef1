package monitor

import (
	"time"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/talkincode/opspulse/internal/domain"
)

// ErrInvalidPeriod is returned for a period token outside the allowed set.
var ErrInvalidPeriod = errors.New("invalid period")

var periodDurations = map[string]time.Duration{
	"1h":  time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// ResolvePeriod maps a period token to its duration, restricted to the
// allowed tokens for the calling endpoint.
func ResolvePeriod(token string, allowed ...string) (time.Duration, error) {
	for _, a := range allowed {
		if token == a {
			if d, ok := periodDurations[token]; ok {
				return d, nil
			}
		}
	}
	return 0, errors.Wrapf(ErrInvalidPeriod, "%q", token)
}

// TrendPoint is one chartable sample.
type TrendPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

type PerformanceTrends struct {
	CPU          []TrendPoint `json:"cpu"`
	Memory       []TrendPoint `json:"memory"`
	ResponseTime []TrendPoint `json:"response_time"`
}

// PerformanceSummary is the general system summary over one window.
type PerformanceSummary struct {
	Period          string            `json:"period"`
	SampleCount     int               `json:"sample_count"`
	AvgCPUUsage     float64           `json:"avg_cpu_usage"`
	MaxCPUUsage     float64           `json:"max_cpu_usage"`
	AvgMemoryUsage  float64           `json:"avg_memory_usage"`
	MaxMemoryUsage  float64           `json:"max_memory_usage"`
	AvgResponseTime float64           `json:"avg_response_time"`
	MaxResponseTime float64           `json:"max_response_time"`
	HealthScore     int               `json:"health_score"`
	Uptime          uint64            `json:"uptime"`
	Trends          PerformanceTrends `json:"trends"`
}

type DatabaseTrends struct {
	QueryTime   []TrendPoint `json:"query_time"`
	Connections []TrendPoint `json:"connections"`
}

type DatabaseSummary struct {
	Period             string         `json:"period"`
	SampleCount        int            `json:"sample_count"`
	AvgQueryTime       float64        `json:"avg_query_time"`
	MaxQueryTime       float64        `json:"max_query_time"`
	AvgActiveConns     float64        `json:"avg_active_connections"`
	MaxConnectionCount float64        `json:"max_connection_count"`
	AvgCacheHitRate    float64        `json:"avg_cache_hit_rate"`
	SlowQueryCount     int64          `json:"slow_query_count"`
	Trends             DatabaseTrends `json:"trends"`
}

type ErrorTrends struct {
	ErrorRate  []TrendPoint `json:"error_rate"`
	ErrorTotal []TrendPoint `json:"error_total"`
}

type ErrorSummary struct {
	Period       string               `json:"period"`
	SampleCount  int                  `json:"sample_count"`
	TotalErrors  int64                `json:"total_errors"`
	BySeverity   domain.SeverityCount `json:"by_severity"`
	AvgErrorRate float64              `json:"avg_error_rate"`
	RecentErrors []domain.RecentError `json:"recent_errors"`
	Trends       ErrorTrends          `json:"trends"`
}

type BusinessTrends struct {
	ActiveUsers []TrendPoint `json:"active_users"`
	Revenue     []TrendPoint `json:"revenue"`
}

type BusinessSummary struct {
	Period            string         `json:"period"`
	SampleCount       int            `json:"sample_count"`
	TotalUsers        int64          `json:"total_users"`
	ActiveUsers       int64          `json:"active_users"`
	NewUsers          int64          `json:"new_users"`
	TotalRevenue      float64        `json:"total_revenue"`
	PeriodRevenue     float64        `json:"period_revenue"`
	SubscriptionCount int64          `json:"subscription_count"`
	AvgChurnRate      float64        `json:"avg_churn_rate"`
	AvgConversionRate float64        `json:"avg_conversion_rate"`
	Trends            BusinessTrends `json:"trends"`
}

// DailyTrend is one calendar-day bucket for the /trends endpoint.
type DailyTrend struct {
	Date            string  `json:"date"`
	SampleCount     int     `json:"sample_count"`
	AvgCPUUsage     float64 `json:"avg_cpu_usage"`
	AvgMemoryUsage  float64 `json:"avg_memory_usage"`
	AvgResponseTime float64 `json:"avg_response_time"`
	AvgErrorRate    float64 `json:"avg_error_rate"`
}

// Summarizer is the windowed read path over the snapshot store. All
// summaries share the same algorithm: resolve the window, pull ascending
// samples, reduce per family. An empty window yields an all-zero summary
// with empty trend arrays, never an error.
type Summarizer struct {
	store *Store
}

func NewSummarizer(store *Store) *Summarizer {
	return &Summarizer{store: store}
}

func (s *Summarizer) window(period time.Duration) ([]domain.MetricSnapshot, error) {
	return s.store.RangeSince(time.Now().Add(-period))
}

func avgOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	v, _ := stats.Mean(stats.Float64Data(values))
	return v
}

func maxOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	v, _ := stats.Max(stats.Float64Data(values))
	return v
}

// project extracts one metric across samples and its trend array in
// chronological order.
func project(samples []domain.MetricSnapshot, get func(*domain.MetricSnapshot) float64) ([]float64, []TrendPoint) {
	values := make([]float64, 0, len(samples))
	trend := make([]TrendPoint, 0, len(samples))
	for i := range samples {
		v := get(&samples[i])
		values = append(values, v)
		trend = append(trend, TrendPoint{Timestamp: samples[i].Timestamp, Value: v})
	}
	return values, trend
}

// Performance reduces the window to the general system summary.
func (s *Summarizer) Performance(token string, period time.Duration) (*PerformanceSummary, error) {
	samples, err := s.window(period)
	if err != nil {
		return nil, err
	}

	summary := &PerformanceSummary{
		Period:      token,
		SampleCount: len(samples),
		HealthScore: HealthScore(samples),
		Trends: PerformanceTrends{
			CPU:          []TrendPoint{},
			Memory:       []TrendPoint{},
			ResponseTime: []TrendPoint{},
		},
	}
	if len(samples) == 0 {
		return summary, nil
	}

	cpu, cpuTrend := project(samples, func(m *domain.MetricSnapshot) float64 { return m.Server.CPU.Usage })
	mem, memTrend := project(samples, func(m *domain.MetricSnapshot) float64 { return m.Server.Memory.UsagePercentage })
	rt, rtTrend := project(samples, func(m *domain.MetricSnapshot) float64 { return m.Application.ResponseTime })

	summary.AvgCPUUsage = avgOf(cpu)
	summary.MaxCPUUsage = maxOf(cpu)
	summary.AvgMemoryUsage = avgOf(mem)
	summary.MaxMemoryUsage = maxOf(mem)
	summary.AvgResponseTime = avgOf(rt)
	summary.MaxResponseTime = maxOf(rt)
	// Uptime is a point-in-time value; report the latest, not an aggregate.
	summary.Uptime = samples[len(samples)-1].Server.Uptime
	summary.Trends = PerformanceTrends{CPU: cpuTrend, Memory: memTrend, ResponseTime: rtTrend}
	return summary, nil
}

// Database reduces the window to the database summary.
func (s *Summarizer) Database(token string, period time.Duration) (*DatabaseSummary, error) {
	samples, err := s.window(period)
	if err != nil {
		return nil, err
	}

	summary := &DatabaseSummary{
		Period:      token,
		SampleCount: len(samples),
		Trends: DatabaseTrends{
			QueryTime:   []TrendPoint{},
			Connections: []TrendPoint{},
		},
	}
	if len(samples) == 0 {
		return summary, nil
	}

	qt, qtTrend := project(samples, func(m *domain.MetricSnapshot) float64 { return m.Database.QueryTime })
	conns, connTrend := project(samples, func(m *domain.MetricSnapshot) float64 { return float64(m.Database.ConnectionCount) })
	active, _ := project(samples, func(m *domain.MetricSnapshot) float64 { return float64(m.Database.ActiveConnections) })
	cache, _ := project(samples, func(m *domain.MetricSnapshot) float64 { return m.Database.CacheHitRate })

	summary.AvgQueryTime = avgOf(qt)
	summary.MaxQueryTime = maxOf(qt)
	summary.AvgActiveConns = avgOf(active)
	summary.MaxConnectionCount = maxOf(conns)
	summary.AvgCacheHitRate = avgOf(cache)
	// Slow query counters are per-interval, so the window total is a sum.
	for i := range samples {
		summary.SlowQueryCount += samples[i].Database.SlowQueries
	}
	summary.Trends = DatabaseTrends{QueryTime: qtTrend, Connections: connTrend}
	return summary, nil
}

// Errors reduces the window to the error summary with up to 50 recent
// errors taken from the latest sample.
func (s *Summarizer) Errors(token string, period time.Duration) (*ErrorSummary, error) {
	samples, err := s.window(period)
	if err != nil {
		return nil, err
	}

	summary := &ErrorSummary{
		Period:       token,
		SampleCount:  len(samples),
		RecentErrors: []domain.RecentError{},
		Trends: ErrorTrends{
			ErrorRate:  []TrendPoint{},
			ErrorTotal: []TrendPoint{},
		},
	}
	if len(samples) == 0 {
		return summary, nil
	}

	rate, rateTrend := project(samples, func(m *domain.MetricSnapshot) float64 { return m.Application.ErrorRate })
	_, totalTrend := project(samples, func(m *domain.MetricSnapshot) float64 { return float64(m.Errors.Total) })

	// Error counters are per-interval, so the window total is a sum.
	for i := range samples {
		summary.TotalErrors += samples[i].Errors.Total
		summary.BySeverity.Critical += samples[i].Errors.BySeverity.Critical
		summary.BySeverity.High += samples[i].Errors.BySeverity.High
		summary.BySeverity.Medium += samples[i].Errors.BySeverity.Medium
		summary.BySeverity.Low += samples[i].Errors.BySeverity.Low
	}

	latest := samples[len(samples)-1]
	summary.AvgErrorRate = avgOf(rate)
	if latest.Errors.RecentErrors != nil {
		recent := latest.Errors.RecentErrors
		if len(recent) > maxRecentErrors {
			recent = recent[len(recent)-maxRecentErrors:]
		}
		summary.RecentErrors = recent
	}
	summary.Trends = ErrorTrends{ErrorRate: rateTrend, ErrorTotal: totalTrend}
	return summary, nil
}

// Business reduces the window to the business summary. Current totals come
// from the last sample; per-period counters are summed.
func (s *Summarizer) Business(token string, period time.Duration) (*BusinessSummary, error) {
	samples, err := s.window(period)
	if err != nil {
		return nil, err
	}

	summary := &BusinessSummary{
		Period:      token,
		SampleCount: len(samples),
		Trends: BusinessTrends{
			ActiveUsers: []TrendPoint{},
			Revenue:     []TrendPoint{},
		},
	}
	if len(samples) == 0 {
		return summary, nil
	}

	churn, _ := project(samples, func(m *domain.MetricSnapshot) float64 { return m.Business.ChurnRate })
	conv, _ := project(samples, func(m *domain.MetricSnapshot) float64 { return m.Business.ConversionRate })
	_, usersTrend := project(samples, func(m *domain.MetricSnapshot) float64 { return float64(m.Business.ActiveUsers) })
	_, revenueTrend := project(samples, func(m *domain.MetricSnapshot) float64 { return m.Business.DailyRevenue })

	for i := range samples {
		summary.NewUsers += samples[i].Business.NewUsers
		summary.PeriodRevenue += samples[i].Business.DailyRevenue
	}

	latest := samples[len(samples)-1]
	summary.TotalUsers = latest.Business.TotalUsers
	summary.ActiveUsers = latest.Business.ActiveUsers
	summary.TotalRevenue = latest.Business.TotalRevenue
	summary.SubscriptionCount = latest.Business.SubscriptionCount
	summary.AvgChurnRate = avgOf(churn)
	summary.AvgConversionRate = avgOf(conv)
	summary.Trends = BusinessTrends{ActiveUsers: usersTrend, Revenue: revenueTrend}
	return summary, nil
}

// DailyTrends buckets the last days*24h of samples by calendar day.
func (s *Summarizer) DailyTrends(days int) ([]DailyTrend, error) {
	if days <= 0 {
		days = 7
	}
	samples, err := s.window(time.Duration(days) * 24 * time.Hour)
	if err != nil {
		return nil, err
	}

	type bucket struct {
		cpu, mem, rt, errRate []float64
	}
	buckets := make(map[string]*bucket)
	order := make([]string, 0, days)
	for i := range samples {
		day := samples[i].Timestamp.Format("2006-01-02")
		b, ok := buckets[day]
		if !ok {
			b = &bucket{}
			buckets[day] = b
			order = append(order, day)
		}
		b.cpu = append(b.cpu, samples[i].Server.CPU.Usage)
		b.mem = append(b.mem, samples[i].Server.Memory.UsagePercentage)
		b.rt = append(b.rt, samples[i].Application.ResponseTime)
		b.errRate = append(b.errRate, samples[i].Application.ErrorRate)
	}

	trends := make([]DailyTrend, 0, len(order))
	for _, day := range order {
		b := buckets[day]
		trends = append(trends, DailyTrend{
			Date:            day,
			SampleCount:     len(b.cpu),
			AvgCPUUsage:     avgOf(b.cpu),
			AvgMemoryUsage:  avgOf(b.mem),
			AvgResponseTime: avgOf(b.rt),
			AvgErrorRate:    avgOf(b.errRate),
		})
	}
	return trends, nil
}
