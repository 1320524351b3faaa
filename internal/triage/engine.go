// Package triage owns the alert lifecycle: gating, the active set, the state
// machine, and the hand-off to correlation and escalation.
package triage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/t77yq/alert-triage/internal/anomaly"
	"github.com/t77yq/alert-triage/internal/correlation"
	"github.com/t77yq/alert-triage/internal/model"
	"github.com/t77yq/alert-triage/internal/monitor"
	"github.com/t77yq/alert-triage/internal/storage"
)

// DefaultResolvedCapacity bounds the resolved-history ring buffer.
const DefaultResolvedCapacity = 10000

// recentWindow is the lookback used for the same-name occurrence feature.
const recentWindow = time.Hour

// Escalator is the escalation scheduler the engine hands fired alerts to.
type Escalator interface {
	Schedule(alert *model.Alert)
	Cancel(id string)
	EscalateNow(id string)
}

// Config wires an Engine.
type Config struct {
	Policy           *model.EscalationPolicy
	Threshold        *ThresholdAdjuster
	Debounce         *DebounceFilter
	Gate             *anomaly.Gate
	AnomalyEnabled   bool
	Correlator       *correlation.Engine
	Store            storage.HistoryStore
	Metrics          *monitor.Metrics
	ResolvedCapacity int
}

// Engine is the alert lifecycle manager. All shared state (active set,
// resolved ring, counters) lives behind this component; per-id mutations are
// linearized through its mutex.
type Engine struct {
	logger         *zap.Logger
	policy         *model.EscalationPolicy
	threshold      *ThresholdAdjuster
	debounce       *DebounceFilter
	gate           *anomaly.Gate
	anomalyEnabled bool
	correlator     *correlation.Engine
	store          storage.HistoryStore
	metrics        *monitor.Metrics
	escalator      Escalator

	mu          sync.RWMutex
	active      map[string]*model.Alert
	resolved    []*model.Alert
	resolvedCap int
	resolvedPos int
}

// NewEngine creates a lifecycle manager.
func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	capacity := cfg.ResolvedCapacity
	if capacity <= 0 {
		capacity = DefaultResolvedCapacity
	}

	engine := &Engine{
		logger:         logger.Named("triage"),
		policy:         cfg.Policy,
		threshold:      cfg.Threshold,
		debounce:       cfg.Debounce,
		gate:           cfg.Gate,
		anomalyEnabled: cfg.AnomalyEnabled,
		correlator:     cfg.Correlator,
		store:          cfg.Store,
		metrics:        cfg.Metrics,
		active:         make(map[string]*model.Alert),
		resolved:       make([]*model.Alert, 0, capacity),
		resolvedCap:    capacity,
	}
	if cfg.Debounce != nil {
		cfg.Debounce.SetInserter(engine)
	}
	return engine
}

// SetEscalator wires the escalation scheduler. Must be called before the
// engine sees traffic.
func (e *Engine) SetEscalator(escalator Escalator) {
	e.escalator = escalator
}

// ProcessAlert runs one raw alert through the triage pipeline and reports
// whether it fired, a detached copy of the stored alert if so, and a
// human-readable reason. Failures during gating never crash the caller.
func (e *Engine) ProcessAlert(ctx context.Context, raw *model.RawAlert) (fired bool, alert *model.Alert, reason string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Panic during alert processing", zap.Any("panic", r))
			e.metrics.RecordProcessingError()
			fired, alert, reason = false, nil, fmt.Sprintf("processing error: %v", r)
		}
	}()

	if raw == nil || raw.AlertName == "" {
		e.metrics.RecordProcessingError()
		return false, nil, "processing error: missing alertname"
	}

	candidate := e.buildAlert(raw)

	if category, ok := PriorityCategory(candidate.Name, candidate.Message); ok {
		return e.processPriorityOverride(candidate, category)
	}
	return e.processNormal(ctx, candidate)
}

// processPriorityOverride bypasses every suppression gate: safety and
// compliance alerts always fire, CRITICAL, escalated immediately.
func (e *Engine) processPriorityOverride(alert *model.Alert, category KeywordCategory) (bool, *model.Alert, string) {
	alert.Severity = model.SeverityCritical

	e.logger.Warn("Priority override triggered",
		zap.String("alert_id", alert.ID),
		zap.String("name", alert.Name),
		zap.String("category", string(category)))

	e.storeActive(alert)
	e.metrics.RecordChildSafety()
	e.metrics.RecordFired()
	e.escalator.EscalateNow(alert.ID)

	return true, e.snapshotActive(alert.ID), "priority override"
}

func (e *Engine) processNormal(ctx context.Context, alert *model.Alert) (bool, *model.Alert, string) {
	thresholdResult := e.threshold.Evaluate(ctx, alert)
	octx := thresholdResult.Context
	alert.Context = &octx

	if !thresholdResult.Fire {
		if alert.Severity != model.SeverityCritical {
			alert.State = model.AlertStateSuppressed
		}
		e.metrics.RecordSuppressed(true, thresholdResult.DeploymentSuppressed)
		return false, nil, "suppressed by context analysis"
	}

	recentCount, err := e.store.CountSince(ctx, alert.Name, alert.Timestamp.Add(-recentWindow))
	if err != nil {
		e.metrics.RecordStoreError()
		e.logger.Warn("Recent-occurrence lookup failed", zap.Error(err))
	}
	features := anomaly.Features(alert, octx, recentCount)

	if err := e.store.Append(ctx, &storage.AlertHistory{
		Name:      alert.Name,
		Timestamp: alert.Timestamp,
		Value:     alert.MetricValue,
		Features:  features,
	}); err != nil {
		e.metrics.RecordStoreError()
		e.logger.Warn("Failed to record alert occurrence", zap.Error(err))
	}

	if suppressed := e.anomalySuppressed(ctx, alert, features); suppressed {
		if alert.Severity != model.SeverityCritical {
			alert.State = model.AlertStateSuppressed
		}
		e.metrics.RecordSuppressed(true, false)
		return false, nil, "suppressed by anomaly filter"
	}

	if !e.debounce.DurationCheck(ctx, alert) {
		e.metrics.RecordSuppressed(false, false)
		return false, nil, "waiting for minimum duration"
	}

	e.storeActive(alert)
	e.metrics.RecordFired()
	e.escalator.Schedule(alert)

	return true, e.snapshotActive(alert.ID), "passed all filters"
}

// snapshotActive returns a detached copy of an active alert, taken under the
// engine lock so it never races with concurrent mutations.
func (e *Engine) snapshotActive(id string) *model.Alert {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if alert, ok := e.active[id]; ok {
		return alert.Clone()
	}
	return nil
}

// anomalySuppressed consults the anomaly gate when it is enabled, trained,
// and enough history exists. A genuine anomaly fires; an expected-magnitude
// breach of a known kind is suppressed as a likely false positive.
func (e *Engine) anomalySuppressed(ctx context.Context, alert *model.Alert, features []float64) bool {
	if !e.anomalyEnabled || e.gate == nil || !e.gate.Ready() {
		return false
	}

	total, err := e.store.Count(ctx)
	if err != nil {
		e.logger.Warn("History count failed, skipping anomaly gate", zap.Error(err))
		return false
	}
	if total < anomaly.MinTrainingSamples {
		return false
	}

	decision := e.gate.Evaluate(ctx, features)
	alert.AnomalyScore = decision.Score
	alert.Confidence = decision.Confidence

	if !decision.ShouldFire {
		e.logger.Info("Alert suppressed by anomaly filter",
			zap.String("alert_id", alert.ID),
			zap.String("name", alert.Name),
			zap.Float64("score", decision.Score),
			zap.Float64("confidence", decision.Confidence))
		return true
	}
	return false
}

// Acknowledge marks an active alert acknowledged and cancels its pending
// escalation. Unknown ids and resolved alerts are no-ops.
func (e *Engine) Acknowledge(id, who string) {
	e.mu.Lock()
	alert, ok := e.active[id]
	if !ok || alert.State == model.AlertStateResolved {
		e.mu.Unlock()
		return
	}
	now := time.Now()
	alert.State = model.AlertStateAcknowledged
	alert.AcknowledgedBy = who
	alert.AcknowledgedAt = &now
	e.mu.Unlock()

	e.escalator.Cancel(id)
	e.logger.Info("Alert acknowledged",
		zap.String("alert_id", id),
		zap.String("by", who))
}

// Resolve removes an alert from the active set, appends it to the bounded
// resolved history, and records a resolution for model retraining and
// debounce lookups. Unknown ids are no-ops.
func (e *Engine) Resolve(ctx context.Context, id string) {
	e.mu.Lock()
	alert, ok := e.active[id]
	if !ok {
		e.mu.Unlock()
		return
	}
	delete(e.active, id)
	alert.State = model.AlertStateResolved
	e.appendResolved(alert)
	e.mu.Unlock()

	e.escalator.Cancel(id)
	e.debounce.Cancel(alert.Name)

	if err := e.store.Append(ctx, &storage.AlertHistory{
		Name:      alert.Name,
		Timestamp: time.Now(),
		Value:     alert.MetricValue,
		Resolved:  true,
	}); err != nil {
		e.metrics.RecordStoreError()
		e.logger.Warn("Failed to record resolution", zap.Error(err))
	}

	e.logger.Info("Alert resolved", zap.String("alert_id", id))
}

// MarkEscalated implements escalation.Target. The transition applies only
// while the alert is active, in a non-terminal state, and not already
// escalated, which makes deferred escalation idempotent. The returned alert
// is a detached copy taken under the lock; the sink goroutine must never see
// the live object.
func (e *Engine) MarkEscalated(id string) (*model.Alert, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	alert, ok := e.active[id]
	if !ok || alert.Terminal() || alert.State == model.AlertStateEscalated {
		return nil, false
	}
	alert.State = model.AlertStateEscalated
	return alert.Clone(), true
}

// DelayedFire implements the debounce filter's delayed-firing path: the
// condition outlived its window without being re-reported, so the alert
// enters the active set directly.
func (e *Engine) DelayedFire(alert *model.Alert) {
	e.mu.Lock()
	if _, ok := e.active[alert.ID]; ok {
		e.mu.Unlock()
		return
	}
	for _, existing := range e.active {
		if existing.Name == alert.Name {
			e.mu.Unlock()
			return
		}
	}
	alert.State = model.AlertStateNew
	e.active[alert.ID] = alert
	e.mu.Unlock()

	e.logger.Info("Delayed firing",
		zap.String("alert_id", alert.ID),
		zap.String("name", alert.Name))
	e.escalator.Schedule(alert)
}

// ActiveAlerts returns detached copies of the active set.
func (e *Engine) ActiveAlerts() []*model.Alert {
	e.mu.RLock()
	defer e.mu.RUnlock()

	alerts := make([]*model.Alert, 0, len(e.active))
	for _, alert := range e.active {
		alerts = append(alerts, alert.Clone())
	}
	return alerts
}

// ActiveAlert returns a detached copy of one active alert by id.
func (e *Engine) ActiveAlert(id string) (*model.Alert, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	alert, ok := e.active[id]
	if !ok {
		return nil, false
	}
	return alert.Clone(), true
}

// ResolvedAlerts returns detached copies of the resolved-history ring,
// oldest first.
func (e *Engine) ResolvedAlerts() []*model.Alert {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*model.Alert, 0, len(e.resolved))
	if len(e.resolved) == e.resolvedCap {
		for _, alert := range e.resolved[e.resolvedPos:] {
			out = append(out, alert.Clone())
		}
		for _, alert := range e.resolved[:e.resolvedPos] {
			out = append(out, alert.Clone())
		}
	} else {
		for _, alert := range e.resolved {
			out = append(out, alert.Clone())
		}
	}
	return out
}

// GetMetrics composes the full metrics view.
func (e *Engine) GetMetrics() monitor.Snapshot {
	snapshot := e.metrics.Snapshot()

	e.mu.RLock()
	snapshot.ActiveAlerts = len(e.active)
	snapshot.ActiveBySeverity = make(map[string]int)
	for _, alert := range e.active {
		snapshot.ActiveBySeverity[alert.Severity.String()]++
	}
	e.mu.RUnlock()

	snapshot.MLModelTrained = e.gate != nil && e.gate.Ready()
	return snapshot
}

func (e *Engine) buildAlert(raw *model.RawAlert) *model.Alert {
	id := raw.ID
	if id == "" {
		id = uuid.New().String()
	}

	severity, known := model.ParseSeverity(raw.Severity)
	if !known && raw.Severity != "" {
		e.logger.Warn("Unknown severity, defaulting to MEDIUM",
			zap.String("alert_id", id),
			zap.String("severity", raw.Severity))
	}

	threshold := raw.Threshold
	if threshold == 0 {
		threshold = 1
	}

	return &model.Alert{
		ID:            id,
		Name:          raw.AlertName,
		Severity:      severity,
		Message:       raw.Description,
		MetricValue:   raw.Value,
		Threshold:     threshold,
		Timestamp:     time.Now(),
		SourceService: raw.Service,
		State:         model.AlertStateNew,
		Confidence:    1,
	}
}

// storeActive inserts the alert into the active set, running correlation
// against a snapshot of the current actives. A duplicate id is an invariant
// violation: logged, and the newer alert wins.
func (e *Engine) storeActive(alert *model.Alert) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.active[alert.ID]; ok {
		e.logger.Warn("Duplicate alert id, overwriting",
			zap.String("alert_id", alert.ID))
	}

	snapshot := make([]*model.Alert, 0, len(e.active))
	for _, existing := range e.active {
		snapshot = append(snapshot, existing)
	}
	if e.correlator != nil {
		e.correlator.Correlate(alert, snapshot)
	}

	e.active[alert.ID] = alert
}

func (e *Engine) appendResolved(alert *model.Alert) {
	if len(e.resolved) < e.resolvedCap {
		e.resolved = append(e.resolved, alert)
		return
	}
	// Ring is full: overwrite the oldest slot.
	e.resolved[e.resolvedPos] = alert
	e.resolvedPos = (e.resolvedPos + 1) % e.resolvedCap
}
