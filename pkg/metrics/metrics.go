// Package metrics keeps a small embedded time-series store for headline
// gauges (cpu, memory, request rate). It complements the snapshot store:
// cheap single-value series for charts that do not need the full snapshot.
package metrics

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/nakabonne/tstorage"
)

var (
	storage tstorage.Storage
	mu      sync.RWMutex
)

// InitMetrics opens the gauge storage under workdir/data/metrics.
func InitMetrics(workdir string) error {
	mu.Lock()
	defer mu.Unlock()
	s, err := tstorage.NewStorage(
		tstorage.WithDataPath(filepath.Join(workdir, "data", "metrics")),
		tstorage.WithTimestampPrecision(tstorage.Seconds),
		tstorage.WithRetention(30*24*time.Hour),
	)
	if err != nil {
		return err
	}
	storage = s
	return nil
}

// SetGauge records a single gauge value at the current time.
// A no-op before InitMetrics succeeds.
func SetGauge(name string, value int64) {
	mu.RLock()
	defer mu.RUnlock()
	if storage == nil {
		return
	}
	_ = storage.InsertRows([]tstorage.Row{
		{
			Metric:    name,
			DataPoint: tstorage.DataPoint{Timestamp: time.Now().Unix(), Value: float64(value)},
		},
	})
}

// SelectGauge returns gauge points between start and end (unix seconds).
func SelectGauge(name string, start, end int64) ([]*tstorage.DataPoint, error) {
	mu.RLock()
	defer mu.RUnlock()
	if storage == nil {
		return nil, nil
	}
	points, err := storage.Select(name, nil, start, end)
	if err != nil {
		if err == tstorage.ErrNoDataPoints {
			return nil, nil
		}
		return nil, err
	}
	return points, nil
}

// Close flushes and closes the gauge storage.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if storage == nil {
		return nil
	}
	err := storage.Close()
	storage = nil
	return err
}
