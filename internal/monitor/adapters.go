package monitor

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	gopsnet "github.com/shirou/gopsutil/v4/net"
	"github.com/talkincode/opspulse/internal/domain"
	"gorm.io/gorm"
)

// BusinessSource supplies the business fragment. Business tables belong to
// the host application, so the figures are injected rather than queried
// here; the default source reports zeros.
type BusinessSource interface {
	BusinessMetrics(ctx context.Context) (domain.BusinessMetrics, error)
}

// BusinessSourceFunc adapts a function to BusinessSource.
type BusinessSourceFunc func(ctx context.Context) (domain.BusinessMetrics, error)

func (f BusinessSourceFunc) BusinessMetrics(ctx context.Context) (domain.BusinessMetrics, error) {
	return f(ctx)
}

// NopBusinessSource returns an all-zero business fragment.
func NopBusinessSource() BusinessSource {
	return BusinessSourceFunc(func(ctx context.Context) (domain.BusinessMetrics, error) {
		return domain.BusinessMetrics{}, nil
	})
}

// adapters holds the per-family samplers. Each method is best-effort: it
// returns whatever it could sample together with the first error it hit,
// and the collector decides what to do with partial fragments.
type adapters struct {
	db       *gorm.DB
	recorder *Recorder
	business BusinessSource
}

func (a *adapters) serverMetrics(ctx context.Context) (domain.ServerMetrics, error) {
	var m domain.ServerMetrics
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	cpuuse, err := cpu.PercentWithContext(ctx, 0, false)
	keep(err)
	if err == nil && len(cpuuse) > 0 {
		m.CPU.Usage = cpuuse[0]
	}
	m.CPU.Cores = runtime.NumCPU()

	avg, err := load.AvgWithContext(ctx)
	keep(err)
	if err == nil {
		m.CPU.LoadAverage = [3]float64{avg.Load1, avg.Load5, avg.Load15}
	}

	meminfo, err := mem.VirtualMemoryWithContext(ctx)
	keep(err)
	if err == nil {
		m.Memory = domain.MemoryMetrics{
			Used:            meminfo.Used,
			Free:            meminfo.Available,
			Total:           meminfo.Total,
			UsagePercentage: meminfo.UsedPercent,
		}
	}

	diskinfo, err := disk.UsageWithContext(ctx, "/")
	keep(err)
	if err == nil {
		m.Disk = domain.DiskMetrics{
			Used:            diskinfo.Used,
			Free:            diskinfo.Free,
			Total:           diskinfo.Total,
			UsagePercentage: diskinfo.UsedPercent,
		}
	}

	uptime, err := host.UptimeWithContext(ctx)
	keep(err)
	if err == nil {
		m.Uptime = uptime
	}

	m.ProcessID = int32(os.Getpid()) //nolint:gosec // G115: PID fits in int32

	return m, firstErr
}

func (a *adapters) databaseMetrics(ctx context.Context) (domain.DatabaseMetrics, error) {
	var m domain.DatabaseMetrics
	if a.db == nil {
		return m, nil
	}

	sqlDB, err := a.db.DB()
	if err != nil {
		return m, err
	}
	poolStats := sqlDB.Stats()
	m.ConnectionCount = poolStats.OpenConnections
	m.ActiveConnections = poolStats.InUse
	m.LockWaitTime = float64(poolStats.WaitDuration.Milliseconds())

	// Probe query: round-trip time stands in for current query latency.
	start := time.Now()
	pingErr := sqlDB.PingContext(ctx)
	probe := time.Since(start)
	a.recorder.ObserveQuery(probe)

	avgMs, slow := a.recorder.DrainQueryStats()
	m.QueryTime = avgMs
	m.SlowQueries = slow

	// Planner statistics are only available on postgres.
	if a.db.Name() == "postgres" {
		var row struct {
			IndexUsage   float64
			CacheHitRate float64
		}
		err := a.db.WithContext(ctx).Raw(`
			SELECT
				COALESCE(100 * sum(idx_scan) / NULLIF(sum(idx_scan) + sum(seq_scan), 0), 0)              AS index_usage,
				COALESCE(100 * sum(blks_hit) / NULLIF(sum(blks_hit) + sum(blks_read), 0), 0)             AS cache_hit_rate
			FROM pg_stat_user_tables, pg_stat_database
			WHERE datname = current_database()`).Scan(&row).Error
		if err == nil {
			m.IndexUsage = row.IndexUsage
			m.CacheHitRate = row.CacheHitRate
		}
	}

	return m, pingErr
}

func (a *adapters) applicationMetrics(_ context.Context) (domain.ApplicationMetrics, error) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	count, avgMs, errorRate, activeUsers := a.recorder.RequestStats()

	m := domain.ApplicationMetrics{
		RequestCount: count,
		ResponseTime: avgMs,
		ErrorRate:    errorRate,
		ActiveUsers:  activeUsers,
		MemoryUsage:  memStats.Sys,
		HeapUsed:     memStats.HeapAlloc,
		HeapTotal:    memStats.HeapSys,
		// Closest runtime analogue to event loop lag: the most recent
		// stop-the-world pause.
		EventLoopLag: float64(memStats.PauseNs[(memStats.NumGC+255)%256]) / 1e6,
	}
	return m, nil
}

func (a *adapters) apiMetrics(_ context.Context) (domain.APIMetrics, error) {
	return a.recorder.APIMetrics(), nil
}

func (a *adapters) businessMetrics(ctx context.Context) (domain.BusinessMetrics, error) {
	return a.business.BusinessMetrics(ctx)
}

func (a *adapters) errorMetrics(_ context.Context) (domain.ErrorMetrics, error) {
	return a.recorder.DrainErrorMetrics(), nil
}

func (a *adapters) securityMetrics(_ context.Context) (domain.SecurityMetrics, error) {
	return a.recorder.SecurityMetrics(), nil
}

func (a *adapters) networkMetrics(ctx context.Context) (domain.NetworkMetrics, error) {
	var m domain.NetworkMetrics
	counters, err := gopsnet.IOCountersWithContext(ctx, false)
	if err != nil {
		return m, err
	}
	if len(counters) > 0 {
		m = domain.NetworkMetrics{
			BytesSent:       counters[0].BytesSent,
			BytesReceived:   counters[0].BytesRecv,
			PacketsSent:     counters[0].PacketsSent,
			PacketsReceived: counters[0].PacketsRecv,
			ErrorsIn:        counters[0].Errin,
			ErrorsOut:       counters[0].Errout,
		}
	}
	return m, nil
}
