package model

import (
	"strings"
	"time"
)

// Severity represents the severity level of an alert. Lower values dominate:
// a CRITICAL alert outranks everything else when electing a root cause.
type Severity int

const (
	SeverityCritical Severity = 1
	SeverityHigh     Severity = 2
	SeverityMedium   Severity = 3
	SeverityLow      Severity = 4
)

// String returns the canonical upper-case name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "CRITICAL"
	case SeverityHigh:
		return "HIGH"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityLow:
		return "LOW"
	default:
		return "UNKNOWN"
	}
}

// ParseSeverity maps a severity name to its enum value, case-insensitively.
// Unknown names are a client error and fall back to MEDIUM.
func ParseSeverity(name string) (Severity, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "CRITICAL":
		return SeverityCritical, true
	case "HIGH":
		return SeverityHigh, true
	case "MEDIUM":
		return SeverityMedium, true
	case "LOW":
		return SeverityLow, true
	default:
		return SeverityMedium, false
	}
}

// AlertState represents the lifecycle state of an alert
type AlertState string

const (
	AlertStateNew          AlertState = "new"
	AlertStateAcknowledged AlertState = "acknowledged"
	AlertStateSuppressed   AlertState = "suppressed"
	AlertStateEscalated    AlertState = "escalated"
	AlertStateResolved     AlertState = "resolved"
)

// RawAlert is the ingress payload for a reported condition
type RawAlert struct {
	ID          string  `json:"id,omitempty"`
	AlertName   string  `json:"alertname"`
	Severity    string  `json:"severity,omitempty"`
	Description string  `json:"description,omitempty"`
	Value       float64 `json:"value"`
	Threshold   float64 `json:"threshold"`
	Service     string  `json:"service,omitempty"`
}

// Alert represents one reported condition moving through the triage pipeline
type Alert struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Severity      Severity   `json:"severity"`
	Message       string     `json:"message,omitempty"`
	MetricValue   float64    `json:"metric_value"`
	Threshold     float64    `json:"threshold"`
	Timestamp     time.Time  `json:"timestamp"`
	SourceService string     `json:"source_service,omitempty"`
	State         AlertState `json:"state"`

	// Set by the gates at decision time
	Context      *OperationalContext `json:"context,omitempty"`
	AnomalyScore float64             `json:"anomaly_score"`
	Confidence   float64             `json:"confidence"`

	// Set by the correlation engine
	CorrelatedAlertIDs   []string `json:"correlated_alert_ids,omitempty"`
	IsRootCauseCandidate bool     `json:"is_root_cause_candidate"`

	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
}

// Clone returns a deep copy. The engine mutates live alerts under its own
// lock, so anything crossing that boundary (sink deliveries, decision
// payloads, read accessors) gets a detached copy.
func (a *Alert) Clone() *Alert {
	clone := *a
	if a.Context != nil {
		octx := *a.Context
		clone.Context = &octx
	}
	if a.AcknowledgedAt != nil {
		at := *a.AcknowledgedAt
		clone.AcknowledgedAt = &at
	}
	if len(a.CorrelatedAlertIDs) > 0 {
		clone.CorrelatedAlertIDs = append([]string(nil), a.CorrelatedAlertIDs...)
	}
	return &clone
}

// Correlated reports whether the given id is already linked to this alert.
func (a *Alert) Correlated(id string) bool {
	for _, existing := range a.CorrelatedAlertIDs {
		if existing == id {
			return true
		}
	}
	return false
}

// Terminal reports whether the alert has reached a state that no
// deferred escalation may act on.
func (a *Alert) Terminal() bool {
	return a.State == AlertStateAcknowledged || a.State == AlertStateResolved
}
