package monitor

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderRequestCounters(t *testing.T) {
	r := NewRecorder()
	r.ObserveRequest(200, 10*time.Millisecond)
	r.ObserveRequest(201, 20*time.Millisecond)
	r.ObserveRequest(500, 30*time.Millisecond)
	r.ObserveRequest(404, 40*time.Millisecond)

	m := r.APIMetrics()
	assert.Equal(t, int64(4), m.TotalRequests)
	assert.Equal(t, int64(1), m.FailedRequests)
	assert.Equal(t, m.TotalRequests, m.SuccessfulRequests+m.FailedRequests)
	assert.InDelta(t, 25.0, m.AverageResponseTime, 0.001)
	assert.GreaterOrEqual(t, m.P99ResponseTime, m.P95ResponseTime)
	assert.Greater(t, m.RequestsPerSecond, 0.0)
}

func TestRecorderErrorSeverityAndTypes(t *testing.T) {
	r := NewRecorder()
	r.RecordError("timeout", "critical", "upstream timeout")
	r.RecordError("timeout", "high", "upstream timeout")
	r.RecordError("db_conn", "medium", "pool exhausted")
	r.RecordError("misc", "bogus-severity", "treated as low")
	r.RecordError("../etc/passwd", "low", "hostile key folds to other")

	m := r.DrainErrorMetrics()
	assert.Equal(t, int64(5), m.Total)
	assert.Equal(t, m.Total, m.BySeverity.Sum())
	assert.Equal(t, int64(2), m.ByType["timeout"])
	assert.Equal(t, int64(1), m.ByType["other"])
	require.Len(t, m.RecentErrors, 5)
	assert.Equal(t, "low", m.RecentErrors[3].Severity)
}

func TestRecorderDrainResetsErrorCounters(t *testing.T) {
	r := NewRecorder()
	r.RecordError("timeout", "high", "x")
	first := r.DrainErrorMetrics()
	assert.Equal(t, int64(1), first.Total)

	second := r.DrainErrorMetrics()
	assert.Zero(t, second.Total)
	assert.Empty(t, second.ByType)
	// the recent ring survives drains
	assert.Len(t, second.RecentErrors, 1)
}

func TestRecorderRecentErrorsBounded(t *testing.T) {
	r := NewRecorder()
	for i := 0; i < maxRecentErrors+20; i++ {
		r.RecordError("timeout", "low", fmt.Sprintf("err %d", i))
	}
	m := r.DrainErrorMetrics()
	require.Len(t, m.RecentErrors, maxRecentErrors)
	// oldest entries were evicted
	assert.Equal(t, "err 20", m.RecentErrors[0].Message)
}

func TestRecorderErrorTypesBounded(t *testing.T) {
	r := NewRecorder()
	for i := 0; i < maxErrorTypes+10; i++ {
		r.RecordError(fmt.Sprintf("type_%d", i), "low", "x")
	}
	m := r.DrainErrorMetrics()
	// the overflow bucket rides above the cap
	assert.LessOrEqual(t, len(m.ByType), maxErrorTypes+1)
	assert.Equal(t, int64(10), m.ByType["other"])
}

func TestRecorderDrainQueryStats(t *testing.T) {
	r := NewRecorder()
	r.ObserveQuery(100 * time.Millisecond)
	r.ObserveQuery(300 * time.Millisecond) // slow

	avg, slow := r.DrainQueryStats()
	assert.InDelta(t, 200.0, avg, 0.001)
	assert.Equal(t, int64(1), slow)

	avg, slow = r.DrainQueryStats()
	assert.Zero(t, avg)
	assert.Zero(t, slow)
}

func TestRecorderCustomBag(t *testing.T) {
	r := NewRecorder()
	r.SetCustom("queue_depth", 7)
	r.SetCustom("bad key with spaces", 1)
	r.SetCustom("", 1)

	bag := r.CustomMetrics()
	assert.Equal(t, 7.0, bag["queue_depth"])
	assert.Len(t, bag, 1)

	for i := 0; i < maxCustomKeys+10; i++ {
		r.SetCustom(fmt.Sprintf("gauge_%d", i), float64(i))
	}
	assert.LessOrEqual(t, len(r.CustomMetrics()), maxCustomKeys)

	// existing keys stay writable at the cap
	r.SetCustom("queue_depth", 9)
	assert.Equal(t, 9.0, r.CustomMetrics()["queue_depth"])
}

func TestRecorderRequestStats(t *testing.T) {
	r := NewRecorder()
	r.ObserveRequest(200, 10*time.Millisecond)
	r.ObserveRequest(502, 10*time.Millisecond)
	r.SetActiveUsers(12)

	count, avg, errorRate, users := r.RequestStats()
	assert.Equal(t, int64(2), count)
	assert.InDelta(t, 10.0, avg, 0.001)
	assert.InDelta(t, 50.0, errorRate, 0.001)
	assert.Equal(t, int64(12), users)
}

func TestRecorderSecurityCounters(t *testing.T) {
	r := NewRecorder()
	r.RecordFailedLogin()
	r.RecordFailedLogin()
	r.RecordBlockedRequest()
	r.RecordRateLimitHit()
	r.RecordSuspiciousRequest()
	r.SetActiveSessions(3)

	m := r.SecurityMetrics()
	assert.Equal(t, int64(2), m.FailedLogins)
	assert.Equal(t, int64(1), m.BlockedRequests)
	assert.Equal(t, int64(1), m.RateLimitHits)
	assert.Equal(t, int64(1), m.SuspiciousRequests)
	assert.Equal(t, int64(3), m.ActiveSessions)
}
