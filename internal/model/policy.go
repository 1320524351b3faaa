package model

import "time"

// CorrelationRule groups concurrently active alerts whose names match a set
// of patterns. Patterns are matched case-insensitively as substrings, in the
// order listed.
type CorrelationRule struct {
	Name       string   `json:"name"`
	Patterns   []string `json:"patterns"`
	MinMatches int      `json:"min_matches"`

	// Advisory hints only. Root-cause election uses timestamp and severity,
	// not this list.
	RootCausePriority []string `json:"root_cause_priority,omitempty"`
}

// EscalationPolicy maps severities to escalation delays and to the minimum
// time a condition must persist before it is allowed to fire.
type EscalationPolicy struct {
	Delays       map[Severity]time.Duration `json:"delays"`
	MinDurations map[Severity]time.Duration `json:"min_durations"`
}

// DefaultEscalationPolicy returns the production policy: CRITICAL escalates
// immediately, lower severities wait progressively longer.
func DefaultEscalationPolicy() *EscalationPolicy {
	return &EscalationPolicy{
		Delays: map[Severity]time.Duration{
			SeverityCritical: 0,
			SeverityHigh:     5 * time.Minute,
			SeverityMedium:   30 * time.Minute,
			SeverityLow:      2 * time.Hour,
		},
		MinDurations: map[Severity]time.Duration{
			SeverityCritical: 0,
			SeverityHigh:     30 * time.Second,
			SeverityMedium:   2 * time.Minute,
			SeverityLow:      5 * time.Minute,
		},
	}
}

// Delay returns the escalation delay for a severity. Unknown severities get
// the MEDIUM delay.
func (p *EscalationPolicy) Delay(s Severity) time.Duration {
	if d, ok := p.Delays[s]; ok {
		return d
	}
	return p.Delays[SeverityMedium]
}

// MinDuration returns the minimum persistence window for a severity.
func (p *EscalationPolicy) MinDuration(s Severity) time.Duration {
	if d, ok := p.MinDurations[s]; ok {
		return d
	}
	return p.MinDurations[SeverityMedium]
}

// DefaultCorrelationRules returns the built-in root-cause clustering rules.
func DefaultCorrelationRules() []*CorrelationRule {
	return []*CorrelationRule{
		{
			Name:              "database_cascade",
			Patterns:          []string{"database", "connection_pool", "slow_query", "response_time"},
			MinMatches:        2,
			RootCausePriority: []string{"database", "connection_pool"},
		},
		{
			Name:              "resource_exhaustion",
			Patterns:          []string{"memory", "cpu", "disk", "high_error_rate"},
			MinMatches:        2,
			RootCausePriority: []string{"memory", "cpu"},
		},
		{
			Name:              "upstream_failure",
			Patterns:          []string{"upstream", "timeout", "circuit_breaker", "high_error_rate"},
			MinMatches:        2,
			RootCausePriority: []string{"upstream", "timeout"},
		},
	}
}
