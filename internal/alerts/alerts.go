// Package alerts raises and resolves injection health alerts from the metrics read model.
package alerts

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AlertLevel represents the severity of an alert
type AlertLevel string

const (
	AlertLevelInfo     AlertLevel = "info"
	AlertLevelWarning  AlertLevel = "warning"
	AlertLevelCritical AlertLevel = "critical"
)

// AlertType represents the type of alert
type AlertType string

const (
	AlertTypeUpstreamErrors  AlertType = "high_upstream_error_rate"
	AlertTypeCandidateErrors AlertType = "high_candidate_error_rate"
	AlertTypeSlowBuilds      AlertType = "slow_timeline_builds"
	AlertTypeLowInjection    AlertType = "low_injection_rate"
)

// Alert represents a triggered alert
type Alert struct {
	ID         string                 `json:"id"`
	Type       AlertType              `json:"type"`
	Level      AlertLevel             `json:"level"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	ResolvedAt *time.Time             `json:"resolved_at,omitempty"`
	IsResolved bool                   `json:"is_resolved"`
	RuleID     string                 `json:"rule_id"`
}

// AlertRule defines the condition that triggers an alert.
// Rates are percentages of the requests seen in one evaluation window.
type AlertRule struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Type          AlertType  `json:"type"`
	Enabled       bool       `json:"enabled"`
	Level         AlertLevel `json:"level"`
	Condition     string     `json:"condition"` // Human-readable condition
	Threshold     float64    `json:"threshold"`
	MinRequests   int64      `json:"min_requests"` // windows with fewer requests are skipped
	CooldownSec   int        `json:"cooldown_sec"` // Prevent alert spamming
	LastTriggered *time.Time `json:"last_triggered,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Stats summarizes the alert manager
type Stats struct {
	TotalAlerts   int   `json:"total_alerts"`
	ActiveAlerts  int   `json:"active_alerts"`
	CriticalCount int   `json:"critical_count"`
	WarningCount  int   `json:"warning_count"`
	InfoCount     int   `json:"info_count"`
	TotalRules    int   `json:"total_rules"`
	Timestamp     int64 `json:"timestamp"`
}

// AlertManager manages alerts and rules
type AlertManager struct {
	mu        sync.RWMutex
	alerts    map[string]*Alert
	rules     map[string]*AlertRule
	maxAlerts int
}

// NewAlertManager creates a new alert manager
func NewAlertManager() *AlertManager {
	return &AlertManager{
		alerts:    make(map[string]*Alert),
		rules:     make(map[string]*AlertRule),
		maxAlerts: 500,
	}
}

// TriggerAlert creates and stores a new alert
func (am *AlertManager) TriggerAlert(rule *AlertRule, message string, details map[string]interface{}) *Alert {
	am.mu.Lock()
	defer am.mu.Unlock()

	alert := &Alert{
		ID:        uuid.NewString(),
		Type:      rule.Type,
		Level:     rule.Level,
		Message:   message,
		Details:   details,
		Timestamp: time.Now(),
		RuleID:    rule.ID,
	}
	am.alerts[alert.ID] = alert

	if len(am.alerts) > am.maxAlerts {
		am.pruneOldAlerts()
	}
	return alert
}

// ResolveAlert marks an alert as resolved
func (am *AlertManager) ResolveAlert(alertID string) error {
	am.mu.Lock()
	defer am.mu.Unlock()

	alert, exists := am.alerts[alertID]
	if !exists {
		return fmt.Errorf("alert not found: %s", alertID)
	}
	if !alert.IsResolved {
		now := time.Now()
		alert.ResolvedAt = &now
		alert.IsResolved = true
	}
	return nil
}

// ResolveRule resolves every open alert raised by a rule and returns how many were open
func (am *AlertManager) ResolveRule(ruleID string) int {
	am.mu.Lock()
	defer am.mu.Unlock()

	n := 0
	now := time.Now()
	for _, alert := range am.alerts {
		if alert.RuleID == ruleID && !alert.IsResolved {
			alert.ResolvedAt = &now
			alert.IsResolved = true
			n++
		}
	}
	return n
}

// ActiveForRule reports whether a rule has an unresolved alert
func (am *AlertManager) ActiveForRule(ruleID string) bool {
	am.mu.RLock()
	defer am.mu.RUnlock()

	for _, alert := range am.alerts {
		if alert.RuleID == ruleID && !alert.IsResolved {
			return true
		}
	}
	return false
}

// GetActiveAlerts returns unresolved alerts, newest first
func (am *AlertManager) GetActiveAlerts() []*Alert {
	am.mu.RLock()
	defer am.mu.RUnlock()

	active := make([]*Alert, 0)
	for _, alert := range am.alerts {
		if !alert.IsResolved {
			active = append(active, alert)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].Timestamp.After(active[j].Timestamp)
	})
	return active
}

// GetAlertsByType returns alerts of a specific type
func (am *AlertManager) GetAlertsByType(alertType AlertType) []*Alert {
	am.mu.RLock()
	defer am.mu.RUnlock()

	var filtered []*Alert
	for _, alert := range am.alerts {
		if alert.Type == alertType {
			filtered = append(filtered, alert)
		}
	}
	return filtered
}

// AddRule adds a new alert rule
func (am *AlertManager) AddRule(rule *AlertRule) {
	am.mu.Lock()
	defer am.mu.Unlock()

	if rule.ID == "" {
		rule.ID = string(rule.Type)
	}
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = rule.CreatedAt
	am.rules[rule.ID] = rule
}

// GetRule retrieves a rule by ID
func (am *AlertManager) GetRule(ruleID string) *AlertRule {
	am.mu.RLock()
	defer am.mu.RUnlock()

	return am.rules[ruleID]
}

// GetAllRules returns all alert rules ordered by ID
func (am *AlertManager) GetAllRules() []*AlertRule {
	am.mu.RLock()
	defer am.mu.RUnlock()

	rules := make([]*AlertRule, 0, len(am.rules))
	for _, rule := range am.rules {
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules
}

// markTriggered records when a rule last fired
func (am *AlertManager) markTriggered(ruleID string, at time.Time) {
	am.mu.Lock()
	defer am.mu.Unlock()

	if rule, ok := am.rules[ruleID]; ok {
		rule.LastTriggered = &at
	}
}

// pruneOldAlerts drops resolved alerts first, then the oldest ones
func (am *AlertManager) pruneOldAlerts() {
	alerts := make([]*Alert, 0, len(am.alerts))
	for _, alert := range am.alerts {
		alerts = append(alerts, alert)
	}
	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].IsResolved != alerts[j].IsResolved {
			return alerts[i].IsResolved
		}
		return alerts[i].Timestamp.Before(alerts[j].Timestamp)
	})

	toRemove := len(am.alerts) - am.maxAlerts
	for _, alert := range alerts[:toRemove] {
		delete(am.alerts, alert.ID)
	}
}

// GetStats returns alert statistics
func (am *AlertManager) GetStats() Stats {
	am.mu.RLock()
	defer am.mu.RUnlock()

	stats := Stats{
		TotalAlerts: len(am.alerts),
		TotalRules:  len(am.rules),
		Timestamp:   time.Now().Unix(),
	}
	for _, alert := range am.alerts {
		if alert.IsResolved {
			continue
		}
		stats.ActiveAlerts++
		switch alert.Level {
		case AlertLevelCritical:
			stats.CriticalCount++
		case AlertLevelWarning:
			stats.WarningCount++
		case AlertLevelInfo:
			stats.InfoCount++
		}
	}
	return stats
}
