package monitor

import (
	"fmt"
	"time"

	"github.com/talkincode/opspulse/internal/domain"
	"github.com/talkincode/opspulse/pkg/common"
)

// Fixed health thresholds. These are deliberately not adaptive: every tick
// is evaluated fresh against the same table, so a metric hovering around a
// threshold will flap between states.
const (
	cpuCriticalThreshold    = 90.0
	cpuWarningThreshold     = 80.0
	memCriticalThreshold    = 95.0
	memWarningThreshold     = 85.0
	queryCriticalThreshold  = 1000.0 // ms
	queryWarningThreshold   = 500.0  // ms
	apiRTCriticalThreshold  = 2000.0 // ms
	apiRTWarningThreshold   = 1000.0 // ms
)

// EvaluateHealth derives the health verdict for a single snapshot.
// Overall is the most severe of the performed checks; cache and storage
// have no probe and default to healthy. The down state is never produced.
func EvaluateHealth(snap *domain.MetricSnapshot) domain.HealthStatus {
	now := time.Now()
	status := domain.HealthStatus{
		Overall:  domain.HealthHealthy,
		Database: domain.HealthHealthy,
		API:      domain.HealthHealthy,
		Cache:    domain.HealthHealthy,
		Storage:  domain.HealthHealthy,
		Alerts:   []domain.HealthAlert{},
	}

	addAlert := func(alertType, message string, state domain.HealthState) {
		status.Overall = domain.WorseOf(status.Overall, state)
		status.Alerts = append(status.Alerts, domain.HealthAlert{
			ID:        common.UUIDint64(),
			Type:      alertType,
			Message:   message,
			Severity:  string(state),
			Timestamp: now,
		})
	}

	cpuUse := snap.Server.CPU.Usage
	switch {
	case cpuUse > cpuCriticalThreshold:
		addAlert("cpu", fmt.Sprintf("CPU usage critical: %.1f%%", cpuUse), domain.HealthCritical)
	case cpuUse > cpuWarningThreshold:
		addAlert("cpu", fmt.Sprintf("CPU usage high: %.1f%%", cpuUse), domain.HealthWarning)
	}

	memUse := snap.Server.Memory.UsagePercentage
	switch {
	case memUse > memCriticalThreshold:
		addAlert("memory", fmt.Sprintf("Memory usage critical: %.1f%%", memUse), domain.HealthCritical)
	case memUse > memWarningThreshold:
		addAlert("memory", fmt.Sprintf("Memory usage high: %.1f%%", memUse), domain.HealthWarning)
	}

	queryTime := snap.Database.QueryTime
	switch {
	case queryTime > queryCriticalThreshold:
		status.Database = domain.HealthCritical
		addAlert("database", fmt.Sprintf("Database query time critical: %.0fms", queryTime), domain.HealthCritical)
	case queryTime > queryWarningThreshold:
		status.Database = domain.HealthWarning
		addAlert("database", fmt.Sprintf("Database query time high: %.0fms", queryTime), domain.HealthWarning)
	}

	apiRT := snap.API.AverageResponseTime
	switch {
	case apiRT > apiRTCriticalThreshold:
		status.API = domain.HealthCritical
		addAlert("api", fmt.Sprintf("API response time critical: %.0fms", apiRT), domain.HealthCritical)
	case apiRT > apiRTWarningThreshold:
		status.API = domain.HealthWarning
		addAlert("api", fmt.Sprintf("API response time high: %.0fms", apiRT), domain.HealthWarning)
	}

	return status
}

// HealthScore reduces the most recent sample of history to a 0-100 scalar
// using tiered penalties. An empty history scores a full 100.
func HealthScore(history []domain.MetricSnapshot) int {
	if len(history) == 0 {
		return 100
	}
	latest := history[len(history)-1]
	score := 100

	switch cpuUse := latest.Server.CPU.Usage; {
	case cpuUse > 90:
		score -= 30
	case cpuUse > 80:
		score -= 15
	case cpuUse > 70:
		score -= 5
	}

	switch memUse := latest.Server.Memory.UsagePercentage; {
	case memUse > 95:
		score -= 30
	case memUse > 85:
		score -= 15
	case memUse > 75:
		score -= 5
	}

	switch rt := latest.Application.ResponseTime; {
	case rt > 2000:
		score -= 20
	case rt > 1000:
		score -= 10
	case rt > 500:
		score -= 5
	}

	switch errs := latest.Errors.Total; {
	case errs > 100:
		score -= 20
	case errs > 50:
		score -= 10
	case errs > 10:
		score -= 5
	}

	if score < 0 {
		score = 0
	}
	return score
}
