package alerts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corgi-recs/corgi/internal/metrics"
)

func observe(stats *metrics.InjectionStats, n int, e metrics.Event) {
	for i := 0; i < n; i++ {
		stats.Observe(e)
	}
}

func newEvaluator(t *testing.T) (*Evaluator, *AlertManager, *metrics.InjectionStats, *time.Time) {
	t.Helper()
	stats := metrics.NewInjectionStats()
	manager := NewAlertManager()
	e := NewEvaluator(manager, stats)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return now }
	e.InitializeDefaultRules()
	return e, manager, stats, &now
}

func TestUpstreamOutageTriggersAndResolves(t *testing.T) {
	e, manager, stats, _ := newEvaluator(t)

	observe(stats, 10, metrics.Event{Performed: true, InjectedCount: 2, UpstreamError: "connection refused"})
	e.EvaluateRules()

	active := manager.GetActiveAlerts()
	require.Len(t, active, 1)
	assert.Equal(t, AlertTypeUpstreamErrors, active[0].Type)
	assert.Equal(t, AlertLevelCritical, active[0].Level)
	assert.Equal(t, 100.0, active[0].Details["upstream_error_rate"])

	// a healthy window resolves it even though lifetime totals still show errors
	observe(stats, 20, metrics.Event{Performed: true, InjectedCount: 2})
	e.EvaluateRules()
	assert.Empty(t, manager.GetActiveAlerts())
	assert.Len(t, manager.GetAlertsByType(AlertTypeUpstreamErrors), 1)
}

func TestSmallWindowsAreSkipped(t *testing.T) {
	e, manager, stats, _ := newEvaluator(t)

	observe(stats, 3, metrics.Event{CandidateError: "timeout", Reason: "no_posts_available"})
	e.EvaluateRules()
	assert.Empty(t, manager.GetActiveAlerts())
}

func TestActiveAlertIsNotDuplicated(t *testing.T) {
	e, manager, stats, _ := newEvaluator(t)

	for i := 0; i < 3; i++ {
		observe(stats, 10, metrics.Event{Performed: true, CandidateError: "gorse down"})
		e.EvaluateRules()
	}
	assert.Len(t, manager.GetAlertsByType(AlertTypeCandidateErrors), 1)
}

func TestCooldownAfterResolve(t *testing.T) {
	e, manager, stats, now := newEvaluator(t)

	observe(stats, 10, metrics.Event{Performed: true, UpstreamError: "502"})
	e.EvaluateRules()
	observe(stats, 10, metrics.Event{Performed: true})
	e.EvaluateRules()
	require.Empty(t, manager.GetActiveAlerts())

	// flapping inside the cooldown stays quiet
	*now = now.Add(time.Minute)
	observe(stats, 10, metrics.Event{Performed: true, UpstreamError: "502"})
	e.EvaluateRules()
	assert.Empty(t, manager.GetActiveAlerts())

	*now = now.Add(10 * time.Minute)
	observe(stats, 10, metrics.Event{Performed: true, UpstreamError: "502"})
	e.EvaluateRules()
	assert.Len(t, manager.GetActiveAlerts(), 1)
}

func TestLowInjectionRate(t *testing.T) {
	e, manager, stats, _ := newEvaluator(t)

	observe(stats, 60, metrics.Event{Reason: "suppressed"})
	e.EvaluateRules()

	active := manager.GetActiveAlerts()
	require.Len(t, active, 1)
	assert.Equal(t, AlertTypeLowInjection, active[0].Type)
}

func TestSlowBuilds(t *testing.T) {
	e, manager, stats, _ := newEvaluator(t)

	observe(stats, 10, metrics.Event{Performed: true, Duration: 3 * time.Second})
	e.EvaluateRules()

	types := map[AlertType]bool{}
	for _, a := range manager.GetActiveAlerts() {
		types[a.Type] = true
	}
	assert.True(t, types[AlertTypeSlowBuilds])
}

func TestDisabledRule(t *testing.T) {
	e, manager, stats, _ := newEvaluator(t)
	manager.GetRule(string(AlertTypeUpstreamErrors)).Enabled = false

	observe(stats, 10, metrics.Event{Performed: true, UpstreamError: "down"})
	e.EvaluateRules()
	assert.Empty(t, manager.GetActiveAlerts())
}

func TestManagerStatsAndPrune(t *testing.T) {
	manager := NewAlertManager()
	manager.maxAlerts = 3
	rule := &AlertRule{Type: AlertTypeSlowBuilds, Level: AlertLevelWarning}
	manager.AddRule(rule)

	first := manager.TriggerAlert(rule, "one", nil)
	require.NoError(t, manager.ResolveAlert(first.ID))
	for i := 0; i < 3; i++ {
		manager.TriggerAlert(rule, "more", nil)
	}

	stats := manager.GetStats()
	assert.Equal(t, 3, stats.TotalAlerts)
	assert.Equal(t, 3, stats.ActiveAlerts)
	assert.Equal(t, 3, stats.WarningCount)
	assert.Equal(t, 1, stats.TotalRules)
	assert.Error(t, manager.ResolveAlert(first.ID), "resolved alerts are pruned first")
}
