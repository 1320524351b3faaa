// Package correlation clusters concurrently active alerts by rule pattern
// matching and elects a root cause per cluster.
package correlation

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/alert-triage/internal/model"
)

// DefaultWindow is the time window around the incoming alert within which
// active alerts are eligible for clustering.
const DefaultWindow = 5 * time.Minute

// Engine evaluates correlation rules over the active alert set.
type Engine struct {
	logger *zap.Logger
	rules  []*model.CorrelationRule
	window time.Duration
}

// NewEngine creates a correlation engine. A non-positive window selects
// DefaultWindow.
func NewEngine(rules []*model.CorrelationRule, window time.Duration, logger *zap.Logger) *Engine {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Engine{
		logger: logger.Named("correlation"),
		rules:  rules,
		window: window,
	}
}

// Correlate runs every rule against the incoming alert plus the currently
// active set. Matched alerts are linked to the elected root cause; one alert
// may be claimed by several rules and every resulting link is kept.
func (e *Engine) Correlate(incoming *model.Alert, active []*model.Alert) {
	candidates := make([]*model.Alert, 0, len(active)+1)
	candidates = append(candidates, incoming)
	for _, alert := range active {
		if alert.ID == incoming.ID {
			continue
		}
		candidates = append(candidates, alert)
	}

	for _, rule := range e.rules {
		matches := e.matchRule(rule, incoming.Timestamp, candidates)
		if len(matches) < rule.MinMatches {
			continue
		}

		root := electRootCause(matches)
		root.IsRootCauseCandidate = true

		for _, alert := range matches {
			if alert.ID == root.ID {
				continue
			}
			if !alert.Correlated(root.ID) {
				alert.CorrelatedAlertIDs = append(alert.CorrelatedAlertIDs, root.ID)
			}
		}

		e.logger.Info("Alert cluster formed",
			zap.String("rule", rule.Name),
			zap.String("root_cause", root.ID),
			zap.String("root_name", root.Name),
			zap.Int("matches", len(matches)))
	}
}

func (e *Engine) matchRule(rule *model.CorrelationRule, pivot time.Time, candidates []*model.Alert) []*model.Alert {
	var matches []*model.Alert
	for _, alert := range candidates {
		delta := pivot.Sub(alert.Timestamp)
		if delta < 0 {
			delta = -delta
		}
		if delta > e.window {
			continue
		}

		name := strings.ToLower(alert.Name)
		for _, pattern := range rule.Patterns {
			if strings.Contains(name, strings.ToLower(pattern)) {
				matches = append(matches, alert)
				break
			}
		}
	}
	return matches
}

// electRootCause picks the earliest alert; ties break toward the lower
// severity value, so CRITICAL dominates at equal timestamps.
func electRootCause(matches []*model.Alert) *model.Alert {
	root := matches[0]
	for _, alert := range matches[1:] {
		if alert.Timestamp.Before(root.Timestamp) {
			root = alert
			continue
		}
		if alert.Timestamp.Equal(root.Timestamp) && alert.Severity < root.Severity {
			root = alert
		}
	}
	return root
}
