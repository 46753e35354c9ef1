package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/opspulse/internal/domain"
)

func TestStoreLatestEmpty(t *testing.T) {
	store := NewStore(newTestDB(t))

	_, err := store.Latest()
	assert.ErrorIs(t, err, ErrNoData)
}

func TestStoreSaveAndLatest(t *testing.T) {
	store := NewStore(newTestDB(t))
	base := time.Now().Add(-time.Hour).Truncate(time.Second)

	seedSnapshot(t, store, base, func(s *domain.MetricSnapshot) { s.Server.CPU.Usage = 10 })
	seedSnapshot(t, store, base.Add(time.Minute), func(s *domain.MetricSnapshot) { s.Server.CPU.Usage = 20 })
	seedSnapshot(t, store, base.Add(2*time.Minute), func(s *domain.MetricSnapshot) { s.Server.CPU.Usage = 30 })

	latest, err := store.Latest()
	require.NoError(t, err)
	assert.Equal(t, 30.0, latest.Server.CPU.Usage)
}

func TestStoreFragmentsRoundTrip(t *testing.T) {
	store := NewStore(newTestDB(t))

	seedSnapshot(t, store, time.Now(), func(s *domain.MetricSnapshot) {
		s.Server.CPU.LoadAverage = [3]float64{1.5, 1.0, 0.5}
		s.API = domain.APIMetrics{TotalRequests: 10, SuccessfulRequests: 8, FailedRequests: 2}
		s.Errors = domain.ErrorMetrics{
			Total:      3,
			BySeverity: domain.SeverityCount{Critical: 1, Low: 2},
			ByType:     map[string]int64{"timeout": 3},
		}
		s.Health = domain.HealthStatus{Overall: domain.HealthWarning, Alerts: []domain.HealthAlert{}}
		s.Custom = domain.CustomMetrics{"queue_depth": 7}
	})

	latest, err := store.Latest()
	require.NoError(t, err)
	assert.Equal(t, [3]float64{1.5, 1.0, 0.5}, latest.Server.CPU.LoadAverage)
	assert.Equal(t, int64(10), latest.API.TotalRequests)
	assert.Equal(t, int64(3), latest.Errors.ByType["timeout"])
	assert.Equal(t, domain.HealthWarning, latest.Health.Overall)
	assert.Equal(t, 7.0, latest.Custom["queue_depth"])
}

func TestStoreRangeSinceAscending(t *testing.T) {
	store := NewStore(newTestDB(t))
	base := time.Now().Add(-time.Hour).Truncate(time.Second)

	// insert out of order
	seedSnapshot(t, store, base.Add(2*time.Minute), nil)
	seedSnapshot(t, store, base, nil)
	seedSnapshot(t, store, base.Add(time.Minute), nil)
	seedSnapshot(t, store, base.Add(-time.Hour), nil) // outside the range

	snaps, err := store.RangeSince(base.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	for i := 1; i < len(snaps); i++ {
		assert.False(t, snaps[i].Timestamp.Before(snaps[i-1].Timestamp))
	}
}

func TestStoreQueryPagination(t *testing.T) {
	store := NewStore(newTestDB(t))
	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	for i := 0; i < 25; i++ {
		seedSnapshot(t, store, base.Add(time.Duration(i)*time.Minute), nil)
	}

	cases := []struct {
		limit, skip int
		wantLen     int
		wantMore    bool
	}{
		{10, 0, 10, true},
		{10, 10, 10, true},
		{10, 20, 5, false},
		{100, 0, 25, false},
		{10, 30, 0, false},
	}

	for _, tc := range cases {
		snaps, total, err := store.Query(QueryFilter{}, tc.limit, tc.skip, "timestamp", "desc")
		require.NoError(t, err)
		assert.Equal(t, int64(25), total)
		assert.Len(t, snaps, tc.wantLen)
		assert.LessOrEqual(t, len(snaps), tc.limit)
		assert.Equal(t, tc.wantMore, int64(tc.skip+tc.limit) < total)
	}
}

func TestStoreQueryTimeFilter(t *testing.T) {
	store := NewStore(newTestDB(t))
	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	for i := 0; i < 10; i++ {
		seedSnapshot(t, store, base.Add(time.Duration(i)*time.Minute), nil)
	}

	start := base.Add(2 * time.Minute)
	end := base.Add(5 * time.Minute)
	snaps, total, err := store.Query(QueryFilter{StartDate: &start, EndDate: &end}, 100, 0, "timestamp", "asc")
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	require.Len(t, snaps, 4)
	assert.False(t, snaps[0].Timestamp.Before(start))
	assert.False(t, snaps[len(snaps)-1].Timestamp.After(end))
}

func TestStoreQuerySortWhitelist(t *testing.T) {
	store := NewStore(newTestDB(t))
	seedSnapshot(t, store, time.Now(), nil)

	// hostile sort column falls back to timestamp instead of erroring
	snaps, total, err := store.Query(QueryFilter{}, 10, 0, "timestamp; DROP TABLE met_snapshot", "desc")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, snaps, 1)
}

func TestStorePurgeBefore(t *testing.T) {
	store := NewStore(newTestDB(t))
	base := time.Now().Truncate(time.Second)
	seedSnapshot(t, store, base.Add(-48*time.Hour), nil)
	seedSnapshot(t, store, base.Add(-36*time.Hour), nil)
	seedSnapshot(t, store, base, nil)

	removed, err := store.PurgeBefore(base.Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	snaps, err := store.RangeSince(base.Add(-72 * time.Hour))
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}
