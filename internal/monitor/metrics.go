// Package monitor tracks triage decision counters and publishes periodic
// engine and host metrics.
package monitor

import "sync"

// Snapshot is the externally visible metrics view.
type Snapshot struct {
	TotalAlerts                       int64            `json:"total_alerts"`
	FiredAlerts                       int64            `json:"fired_alerts"`
	SuppressedAlerts                  int64            `json:"suppressed_alerts"`
	FalsePositivesAvoided             int64            `json:"false_positives_avoided"`
	SuppressedDuringDeployment        int64            `json:"suppressed_during_deployment"`
	ChildSafetyAlerts                 int64            `json:"child_safety_alerts"`
	EscalatedAlerts                   int64            `json:"escalated_alerts"`
	ProcessingErrors                  int64            `json:"processing_errors"`
	StoreErrors                       int64            `json:"store_errors"`
	ActiveAlerts                      int              `json:"active_alerts"`
	ActiveBySeverity                  map[string]int   `json:"active_by_severity"`
	MLModelTrained                    bool             `json:"ml_model_trained"`
	FalsePositiveReductionRatePercent float64          `json:"false_positive_reduction_rate_percent"`
}

// Metrics holds the engine's decision counters. All methods are safe for
// concurrent use.
type Metrics struct {
	mu                         sync.Mutex
	totalAlerts                int64
	firedAlerts                int64
	suppressedAlerts           int64
	falsePositivesAvoided      int64
	suppressedDuringDeployment int64
	childSafetyAlerts          int64
	escalatedAlerts            int64
	processingErrors           int64
	storeErrors                int64
}

// NewMetrics creates zeroed counters.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordFired counts one processed alert that passed all gates.
func (m *Metrics) RecordFired() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalAlerts++
	m.firedAlerts++
}

// RecordSuppressed counts one processed alert that did not fire.
// falsePositive marks gate suppressions (context, anomaly) as opposed to
// debounce deferrals; deployment marks deployment-rule suppressions.
func (m *Metrics) RecordSuppressed(falsePositive, deployment bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalAlerts++
	m.suppressedAlerts++
	if falsePositive {
		m.falsePositivesAvoided++
	}
	if deployment {
		m.suppressedDuringDeployment++
	}
}

// RecordChildSafety counts one priority-override alert.
func (m *Metrics) RecordChildSafety() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.childSafetyAlerts++
}

// RecordEscalated counts one escalation.
func (m *Metrics) RecordEscalated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.escalatedAlerts++
}

// RecordProcessingError counts one alert rejected at the processing boundary.
func (m *Metrics) RecordProcessingError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalAlerts++
	m.suppressedAlerts++
	m.processingErrors++
}

// RecordStoreError counts one failed history read or write. History loss
// degrades the debounce and retraining paths without affecting the firing
// decision, so it only surfaces here.
func (m *Metrics) RecordStoreError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storeErrors++
}

// Snapshot returns a consistent copy of the counters. Active-alert figures
// and the model flag are filled in by the engine.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := Snapshot{
		TotalAlerts:                m.totalAlerts,
		FiredAlerts:                m.firedAlerts,
		SuppressedAlerts:           m.suppressedAlerts,
		FalsePositivesAvoided:      m.falsePositivesAvoided,
		SuppressedDuringDeployment: m.suppressedDuringDeployment,
		ChildSafetyAlerts:          m.childSafetyAlerts,
		EscalatedAlerts:            m.escalatedAlerts,
		ProcessingErrors:           m.processingErrors,
		StoreErrors:                m.storeErrors,
	}
	if m.totalAlerts > 0 {
		snapshot.FalsePositiveReductionRatePercent =
			float64(m.falsePositivesAvoided) / float64(m.totalAlerts) * 100
	}
	return snapshot
}
