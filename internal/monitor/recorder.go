package monitor

import (
	"regexp"
	"sync"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/talkincode/opspulse/internal/domain"
)

const (
	maxDurationSamples = 4096
	maxRecentErrors    = 50
	maxErrorTypes      = 64
	maxCustomKeys      = 32
	slowQueryThreshold = 200 * time.Millisecond
)

// ValidMetricKey bounds the key namespace of the open-ended bags
// (custom metrics, error types). Anything else is dropped at the
// recording site.
var ValidMetricKey = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_.:-]{0,63}$`)

// Recorder accumulates in-process request, error, security and database
// observations between collection ticks. All methods are safe for
// concurrent use; reads produce a consistent fragment without resetting
// the counters (rates are derived from elapsed time since start).
type Recorder struct {
	mu        sync.Mutex
	startedAt time.Time

	totalRequests  int64
	failedRequests int64
	durations      []float64 // ms, bounded ring
	durIdx         int

	queryCount  int64
	queryTimeMs float64 // cumulative
	slowQueries int64

	bySeverity domain.SeverityCount
	byType     map[string]int64
	recent     []domain.RecentError

	failedLogins       int64
	blockedRequests    int64
	rateLimitHits      int64
	suspiciousRequests int64
	activeSessions     int64
	activeUsers        int64

	custom domain.CustomMetrics
}

func NewRecorder() *Recorder {
	return &Recorder{
		startedAt: time.Now(),
		byType:    make(map[string]int64),
		custom:    make(domain.CustomMetrics),
	}
}

// ObserveRequest records one served HTTP request.
func (r *Recorder) ObserveRequest(status int, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totalRequests++
	if status >= 500 {
		r.failedRequests++
	}
	ms := float64(duration.Microseconds()) / 1000.0
	if len(r.durations) < maxDurationSamples {
		r.durations = append(r.durations, ms)
	} else {
		r.durations[r.durIdx] = ms
		r.durIdx = (r.durIdx + 1) % maxDurationSamples
	}
}

// ObserveQuery records one database query execution.
func (r *Recorder) ObserveQuery(duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queryCount++
	r.queryTimeMs += float64(duration.Microseconds()) / 1000.0
	if duration >= slowQueryThreshold {
		r.slowQueries++
	}
}

// RecordError records an application error. Severity must be one of
// critical/high/medium/low; anything else is counted as low. Types
// outside the valid key namespace are folded into "other".
func (r *Recorder) RecordError(errType, severity, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch severity {
	case "critical":
		r.bySeverity.Critical++
	case "high":
		r.bySeverity.High++
	case "medium":
		r.bySeverity.Medium++
	default:
		severity = "low"
		r.bySeverity.Low++
	}
	if !ValidMetricKey.MatchString(errType) {
		errType = "other"
	}
	if _, known := r.byType[errType]; !known && len(r.byType) >= maxErrorTypes {
		errType = "other"
	}
	r.byType[errType]++
	r.recent = append(r.recent, domain.RecentError{
		Timestamp: time.Now(),
		Type:      errType,
		Severity:  severity,
		Message:   message,
	})
	if len(r.recent) > maxRecentErrors {
		r.recent = r.recent[len(r.recent)-maxRecentErrors:]
	}
}

func (r *Recorder) RecordFailedLogin()       { r.mu.Lock(); r.failedLogins++; r.mu.Unlock() }
func (r *Recorder) RecordBlockedRequest()    { r.mu.Lock(); r.blockedRequests++; r.mu.Unlock() }
func (r *Recorder) RecordRateLimitHit()      { r.mu.Lock(); r.rateLimitHits++; r.mu.Unlock() }
func (r *Recorder) RecordSuspiciousRequest() { r.mu.Lock(); r.suspiciousRequests++; r.mu.Unlock() }

// SetActiveSessions updates the concurrent session gauge.
func (r *Recorder) SetActiveSessions(n int64) {
	r.mu.Lock()
	r.activeSessions = n
	r.mu.Unlock()
}

// SetActiveUsers updates the active user gauge.
func (r *Recorder) SetActiveUsers(n int64) {
	r.mu.Lock()
	r.activeUsers = n
	r.mu.Unlock()
}

// SetCustom records a host-supplied gauge in the custom bag. Invalid keys
// are dropped, and the bag is capped at maxCustomKeys entries.
func (r *Recorder) SetCustom(key string, value float64) {
	if !ValidMetricKey.MatchString(key) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, known := r.custom[key]; !known && len(r.custom) >= maxCustomKeys {
		return
	}
	r.custom[key] = value
}

// APIMetrics builds the api fragment. TotalRequests always equals
// SuccessfulRequests+FailedRequests.
func (r *Recorder) APIMetrics() domain.APIMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := domain.APIMetrics{
		TotalRequests:  r.totalRequests,
		FailedRequests: r.failedRequests,
	}
	m.SuccessfulRequests = m.TotalRequests - m.FailedRequests

	if len(r.durations) > 0 {
		samples := stats.Float64Data(r.durations)
		m.AverageResponseTime, _ = stats.Mean(samples)
		m.P95ResponseTime, _ = stats.Percentile(samples, 95)
		m.P99ResponseTime, _ = stats.Percentile(samples, 99)
		if m.P99ResponseTime < m.P95ResponseTime {
			m.P99ResponseTime = m.P95ResponseTime
		}
	}
	if elapsed := time.Since(r.startedAt).Seconds(); elapsed > 0 {
		m.RequestsPerSecond = float64(r.totalRequests) / elapsed
	}
	return m
}

// DrainErrorMetrics builds the error fragment from the errors recorded
// since the previous drain, then resets the counters. The recent-error
// ring is copied, not cleared. Total always equals the severity sum.
func (r *Recorder) DrainErrorMetrics() domain.ErrorMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()

	byType := r.byType
	recent := make([]domain.RecentError, len(r.recent))
	copy(recent, r.recent)

	m := domain.ErrorMetrics{
		Total:        r.bySeverity.Sum(),
		BySeverity:   r.bySeverity,
		ByType:       byType,
		RecentErrors: recent,
	}
	r.bySeverity = domain.SeverityCount{}
	r.byType = make(map[string]int64)
	return m
}

// SecurityMetrics builds the security fragment.
func (r *Recorder) SecurityMetrics() domain.SecurityMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.SecurityMetrics{
		FailedLogins:       r.failedLogins,
		BlockedRequests:    r.blockedRequests,
		RateLimitHits:      r.rateLimitHits,
		SuspiciousRequests: r.suspiciousRequests,
		ActiveSessions:     r.activeSessions,
	}
}

// RequestStats returns the application level request counters.
func (r *Recorder) RequestStats() (count int64, avgMs float64, errorRate float64, activeUsers int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count = r.totalRequests
	if len(r.durations) > 0 {
		avgMs, _ = stats.Mean(stats.Float64Data(r.durations))
	}
	if r.totalRequests > 0 {
		errorRate = float64(r.failedRequests) / float64(r.totalRequests) * 100
	}
	return count, avgMs, errorRate, r.activeUsers
}

// DrainQueryStats returns the average query time (ms) and slow query
// count observed since the previous drain, then resets both. The
// collector is the only caller, so each snapshot carries per-interval
// figures and windowed summaries can sum them.
func (r *Recorder) DrainQueryStats() (avgMs float64, slow int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.queryCount > 0 {
		avgMs = r.queryTimeMs / float64(r.queryCount)
	}
	slow = r.slowQueries
	r.queryCount = 0
	r.queryTimeMs = 0
	r.slowQueries = 0
	return avgMs, slow
}

// CustomMetrics returns a copy of the custom gauge bag.
func (r *Recorder) CustomMetrics() domain.CustomMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(domain.CustomMetrics, len(r.custom))
	for k, v := range r.custom {
		out[k] = v
	}
	return out
}
