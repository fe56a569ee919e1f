package alerts

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/corgi-recs/corgi/internal/logger"
	"github.com/corgi-recs/corgi/internal/metrics"
)

// StatsSource provides the injection read model
type StatsSource interface {
	Snapshot() metrics.StatsSnapshot
}

// window is the change in the read model between two evaluations
type window struct {
	requests        int64
	performed       int64
	upstreamErrors  int64
	candidateErrors int64
	p95Ms           int64
}

// Evaluator evaluates alert rules against the injection stats.
// Rates are computed over the requests since the previous evaluation so an
// outage that has ended resolves its alert.
type Evaluator struct {
	manager *AlertManager
	stats   StatsSource
	m       *metrics.Metrics

	mu   sync.Mutex
	prev *metrics.StatsSnapshot
	now  func() time.Time
}

// NewEvaluator creates a new alert evaluator
func NewEvaluator(manager *AlertManager, stats StatsSource) *Evaluator {
	return &Evaluator{
		manager: manager,
		stats:   stats,
		m:       metrics.Get(),
		now:     time.Now,
	}
}

// EvaluateRules checks all enabled rules against the requests seen since the last call
func (e *Evaluator) EvaluateRules() {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := e.stats.Snapshot()
	w := window{
		requests:        snap.TotalRequests,
		performed:       snap.PerformedRequests,
		upstreamErrors:  snap.UpstreamErrors,
		candidateErrors: snap.CandidateErrors,
		p95Ms:           snap.P95DurationMs,
	}
	if e.prev != nil && snap.TotalRequests >= e.prev.TotalRequests {
		w.requests -= e.prev.TotalRequests
		w.performed -= e.prev.PerformedRequests
		w.upstreamErrors -= e.prev.UpstreamErrors
		w.candidateErrors -= e.prev.CandidateErrors
	}
	e.prev = &snap

	now := e.now()
	for _, rule := range e.manager.GetAllRules() {
		if !rule.Enabled {
			continue
		}
		if w.requests < rule.MinRequests {
			continue
		}

		triggered, details := evaluateRule(rule, w)
		active := e.manager.ActiveForRule(rule.ID)

		switch {
		case triggered && !active:
			if rule.LastTriggered != nil && now.Sub(*rule.LastTriggered) < time.Duration(rule.CooldownSec)*time.Second {
				continue
			}
			alert := e.manager.TriggerAlert(rule, fmt.Sprintf("[%s] %s", rule.Name, rule.Condition), details)
			e.manager.markTriggered(rule.ID, now)
			e.m.AlertsTriggeredTotal.WithLabelValues(string(rule.Type), string(rule.Level)).Inc()
			e.m.AlertsActive.WithLabelValues(string(rule.Type)).Inc()
			logger.Log.Warn("Alert triggered",
				zap.String("alert_id", alert.ID),
				zap.String("type", string(rule.Type)),
				zap.String("level", string(rule.Level)),
				zap.Any("details", details))
		case !triggered && active:
			n := e.manager.ResolveRule(rule.ID)
			e.m.AlertsActive.WithLabelValues(string(rule.Type)).Sub(float64(n))
			logger.Log.Info("Alert resolved", zap.String("type", string(rule.Type)))
		}
	}
}

// evaluateRule checks a specific rule against one window
func evaluateRule(rule *AlertRule, w window) (bool, map[string]interface{}) {
	details := map[string]interface{}{
		"threshold": rule.Threshold,
		"requests":  w.requests,
	}
	if w.requests == 0 {
		return false, details
	}

	switch rule.Type {
	case AlertTypeUpstreamErrors:
		rate := percent(w.upstreamErrors, w.requests)
		details["upstream_error_rate"] = rate
		return rate >= rule.Threshold, details

	case AlertTypeCandidateErrors:
		rate := percent(w.candidateErrors, w.requests)
		details["candidate_error_rate"] = rate
		return rate >= rule.Threshold, details

	case AlertTypeSlowBuilds:
		details["p95_duration_ms"] = w.p95Ms
		return float64(w.p95Ms) >= rule.Threshold, details

	case AlertTypeLowInjection:
		rate := percent(w.performed, w.requests)
		details["injection_rate"] = rate
		return rate <= rule.Threshold, details
	}
	return false, details
}

func percent(n, total int64) float64 {
	return float64(n) / float64(total) * 100
}

// InitializeDefaultRules sets up default alert rules
func (e *Evaluator) InitializeDefaultRules() {
	rules := []*AlertRule{
		{
			Name:        "Upstream Errors",
			Type:        AlertTypeUpstreamErrors,
			Enabled:     true,
			Level:       AlertLevelCritical,
			Condition:   "Upstream fetch failures > 20% of timeline builds",
			Threshold:   20,
			MinRequests: 10,
			CooldownSec: 300, // 5 minute cooldown
		},
		{
			Name:        "Candidate Errors",
			Type:        AlertTypeCandidateErrors,
			Enabled:     true,
			Level:       AlertLevelWarning,
			Condition:   "Candidate fetch failures > 10% of timeline builds",
			Threshold:   10,
			MinRequests: 10,
			CooldownSec: 300,
		},
		{
			Name:        "Slow Timeline Builds",
			Type:        AlertTypeSlowBuilds,
			Enabled:     true,
			Level:       AlertLevelWarning,
			Condition:   "p95 timeline build > 2000ms",
			Threshold:   2000,
			MinRequests: 10,
			CooldownSec: 300,
		},
		{
			Name:        "Low Injection Rate",
			Type:        AlertTypeLowInjection,
			Enabled:     true,
			Level:       AlertLevelInfo,
			Condition:   "Injection performed on < 10% of timeline builds",
			Threshold:   10,
			MinRequests: 50,
			CooldownSec: 900,
		},
	}

	for _, rule := range rules {
		e.manager.AddRule(rule)
	}
}

// StartEvaluationLoop starts periodic evaluation of rules. Close the returned channel to stop it.
func (e *Evaluator) StartEvaluationLoop(interval time.Duration) chan struct{} {
	stop := make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				e.EvaluateRules()
			case <-stop:
				return
			}
		}
	}()

	return stop
}
