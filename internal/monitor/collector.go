package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/talkincode/opspulse/internal/domain"
	"github.com/talkincode/opspulse/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Event bus topics published by the collector.
const (
	TopicSnapshot = "monitor.snapshot"
	TopicAlert    = "monitor.alert"
)

// DefaultInterval is the collection cadence when none is configured.
const DefaultInterval = 60 * time.Second

// Collector drives the sampling cadence. It is constructed exactly once by
// the composition root and owned there; there is no package level instance.
//
// One goroutine runs the ticker loop. Within a tick the family adapters are
// fanned out concurrently and joined before the snapshot is assembled; a
// failing adapter contributes a zero fragment instead of aborting the tick.
type Collector struct {
	store    *Store
	adapters *adapters
	bus      EventBus.Bus

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	// busy guards against a tick overlapping a still-running collection
	// when collection time approaches the interval.
	busyMu sync.Mutex
	busy   bool

	tsMu          sync.Mutex
	lastTimestamp time.Time
}

// CollectorOption customizes a Collector.
type CollectorOption func(*Collector)

// WithBusinessSource plugs in the host application's business figures.
func WithBusinessSource(src BusinessSource) CollectorOption {
	return func(c *Collector) {
		c.adapters.business = src
	}
}

// WithEventBus publishes snapshots and alerts on the given bus.
func WithEventBus(bus EventBus.Bus) CollectorOption {
	return func(c *Collector) {
		c.bus = bus
	}
}

func NewCollector(db *gorm.DB, store *Store, recorder *Recorder, opts ...CollectorOption) *Collector {
	c := &Collector{
		store: store,
		adapters: &adapters{
			db:       db,
			recorder: recorder,
			business: NopBusinessSource(),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins periodic collection. Calling Start on a running collector
// logs and returns without creating a second ticker.
func (c *Collector) Start(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		zap.L().Info("metrics collection already running")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true

	go c.loop(ctx, interval)
	zap.L().Info("metrics collection started", zap.Duration("interval", interval))
}

// Stop cancels future ticks. A tick already in flight finishes on its own;
// stopping a stopped collector is a no-op.
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.cancel()
	<-c.done
	c.running = false
	zap.L().Info("metrics collection stopped")
}

// Running reports whether the ticker loop is active.
func (c *Collector) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Collector) loop(ctx context.Context, interval time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

// tick runs one guarded collection cycle. A cycle that would overlap a
// still-running one is skipped; a failing cycle is logged and the cadence
// continues.
func (c *Collector) tick(ctx context.Context) {
	c.busyMu.Lock()
	if c.busy {
		c.busyMu.Unlock()
		zap.L().Warn("previous collection still running, skipping tick")
		return
	}
	c.busy = true
	c.busyMu.Unlock()
	defer func() {
		c.busyMu.Lock()
		c.busy = false
		c.busyMu.Unlock()
	}()

	defer func() {
		if r := recover(); r != nil {
			zap.S().Error("metrics collection panic: ", r)
		}
	}()

	if _, err := c.Collect(ctx); err != nil {
		zap.L().Error("metrics collection failed", zap.Error(err))
	}
}

// Collect samples all metric families, evaluates health, persists the
// snapshot and returns it. The persisted timestamp is strictly
// non-decreasing across successive snapshots.
func (c *Collector) Collect(ctx context.Context) (*domain.MetricSnapshot, error) {
	started := time.Now()
	snap := &domain.MetricSnapshot{}

	g, gctx := errgroup.WithContext(ctx)
	collectFragment(g, gctx, "server", c.adapters.serverMetrics, &snap.Server)
	collectFragment(g, gctx, "database", c.adapters.databaseMetrics, &snap.Database)
	collectFragment(g, gctx, "application", c.adapters.applicationMetrics, &snap.Application)
	collectFragment(g, gctx, "api", c.adapters.apiMetrics, &snap.API)
	collectFragment(g, gctx, "business", c.adapters.businessMetrics, &snap.Business)
	collectFragment(g, gctx, "errors", c.adapters.errorMetrics, &snap.Errors)
	collectFragment(g, gctx, "security", c.adapters.securityMetrics, &snap.Security)
	collectFragment(g, gctx, "network", c.adapters.networkMetrics, &snap.Network)
	// collectFragment never propagates adapter errors, only panics do.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap.Custom = c.adapters.recorder.CustomMetrics()

	c.tsMu.Lock()
	ts := time.Now()
	if ts.Before(c.lastTimestamp) {
		ts = c.lastTimestamp
	}
	c.lastTimestamp = ts
	c.tsMu.Unlock()
	snap.Timestamp = ts

	snap.Health = EvaluateHealth(snap)

	// Drop policy: a failed save is logged and the snapshot discarded;
	// the next tick supersedes it. No retry, no dead-letter.
	if err := c.store.Save(snap); err != nil {
		zap.L().Error("snapshot dropped", zap.Error(err))
	}

	c.publish(snap)
	c.mirrorGauges(snap)

	zap.L().Debug("metrics collected",
		zap.Duration("elapsed", time.Since(started)),
		zap.String("overall", string(snap.Health.Overall)),
		zap.Int("alerts", len(snap.Health.Alerts)))
	return snap, nil
}

// collectFragment runs one adapter inside the errgroup with panic and
// error isolation. On failure dst keeps its zero value.
func collectFragment[T any](g *errgroup.Group, ctx context.Context, family string, sample func(context.Context) (T, error), dst *T) {
	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				zap.S().Warnf("%s adapter panic: %v", family, r)
				err = nil
			}
		}()
		value, serr := sample(ctx)
		if serr != nil {
			zap.L().Warn("metric adapter degraded",
				zap.String("family", family), zap.Error(serr))
		}
		// Best effort: keep whatever the adapter managed to sample.
		*dst = value
		return nil
	})
}

func (c *Collector) publish(snap *domain.MetricSnapshot) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(TopicSnapshot, snap)
	for _, alert := range snap.Health.Alerts {
		c.bus.Publish(TopicAlert, alert)
	}
}

// mirrorGauges writes headline values into the embedded gauge store for
// cheap single-series charts.
func (c *Collector) mirrorGauges(snap *domain.MetricSnapshot) {
	metrics.SetGauge("system_cpuuse", int64(snap.Server.CPU.Usage*100))
	metrics.SetGauge("system_memuse", int64(snap.Server.Memory.UsagePercentage*100))
	metrics.SetGauge("api_response_time", int64(snap.API.AverageResponseTime))
	metrics.SetGauge("app_error_total", snap.Errors.Total)
}
