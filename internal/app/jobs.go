package app

import (
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/talkincode/opspulse/internal/domain"
	"github.com/talkincode/opspulse/pkg/metrics"
	"go.uber.org/zap"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func (a *Application) initJob() {
	loc, _ := time.LoadLocation(a.appConfig.System.Location)
	a.sched = cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))

	var err error
	_, err = a.sched.AddFunc("@every 30s", func() {
		go a.SchedProcessMonitorTask()
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	_, err = a.sched.AddFunc("@daily", func() {
		a.SchedClearExpireData()
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	a.sched.Start()
}

// SchedProcessMonitorTask app process monitor
func (a *Application) SchedProcessMonitorTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	p, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec // G115: PID is always within int32 range
	if err != nil {
		return
	}

	// Collect process CPU usage
	cpuuse, err := p.CPUPercent()
	if err == nil {
		metrics.SetGauge("opspulse_cpuuse", int64(cpuuse*100)) // Store as percentage * 100
	}

	// Collect process memory usage
	meminfo, err := p.MemoryInfo()
	if err == nil {
		metrics.SetGauge("opspulse_memuse", int64(meminfo.RSS/1024/1024)) //nolint:gosec // G115: memory MB value fits in int64
	}
}

// SchedClearExpireData applies the retention policy: expired snapshots and
// stale operation logs are removed once a day. This is the only deletion
// path on the snapshot series.
func (a *Application) SchedClearExpireData() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	idays := a.configManager.GetInt("monitor", "retention_days")
	if idays == 0 {
		idays = a.appConfig.Monitor.RetentionDays
	}
	if idays == 0 {
		idays = 30
	}
	cutoff := time.Now().Add(-time.Hour * 24 * time.Duration(idays))
	if removed, err := a.store.PurgeBefore(cutoff); err != nil {
		zap.L().Error("snapshot retention purge failed", zap.Error(err))
	} else if removed > 0 {
		zap.L().Info("snapshot retention purge",
			zap.Int64("removed", removed),
			zap.Time("cutoff", cutoff))
	}

	logDays := a.configManager.GetInt("monitor", "oprlog_days")
	if logDays == 0 {
		logDays = 365
	}
	a.gormDB.
		Where("opt_time < ? ", time.Now().
			Add(-time.Hour*24*time.Duration(logDays))).Delete(domain.SysOprLog{})
}
