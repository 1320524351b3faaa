package triage

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/alert-triage/internal/model"
	"github.com/t77yq/alert-triage/internal/storage"
)

// LateInserter receives alerts whose debounce window elapsed without the
// alert being re-reported and fired: the delayed-firing path.
type LateInserter interface {
	DelayedFire(alert *model.Alert)
}

// DebounceFilter enforces minimum persistence per severity before an alert
// may fire. The first sighting of a name arms a cancellable re-check timer;
// a repeat sighting within the window passes.
type DebounceFilter struct {
	logger   *zap.Logger
	store    storage.HistoryStore
	policy   *model.EscalationPolicy
	inserter LateInserter

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewDebounceFilter creates a debounce filter.
func NewDebounceFilter(store storage.HistoryStore, policy *model.EscalationPolicy, logger *zap.Logger) *DebounceFilter {
	return &DebounceFilter{
		logger: logger.Named("debounce"),
		store:  store,
		policy: policy,
		timers: make(map[string]*time.Timer),
	}
}

// SetInserter wires the delayed-firing target. Must be called before the
// filter sees traffic.
func (d *DebounceFilter) SetInserter(inserter LateInserter) {
	d.inserter = inserter
}

// DurationCheck reports whether the alert's condition has persisted long
// enough to fire. CRITICAL always passes. The caller records the current
// occurrence before this check, so a count above one means a prior sighting
// exists inside the window.
func (d *DebounceFilter) DurationCheck(ctx context.Context, alert *model.Alert) bool {
	if alert.Severity == model.SeverityCritical {
		return true
	}

	minDuration := d.policy.MinDuration(alert.Severity)
	if minDuration <= 0 {
		return true
	}

	since := alert.Timestamp.Add(-minDuration)
	count, err := d.store.CountSince(ctx, alert.Name, since)
	if err != nil {
		d.logger.Warn("History lookup failed, passing alert through",
			zap.String("name", alert.Name),
			zap.Error(err))
		return true
	}
	if count > 1 {
		return true
	}

	d.scheduleRecheck(alert, minDuration)
	return false
}

// scheduleRecheck arms the delayed-firing timer for a first sighting.
// Cancellation is cooperative: DelayedFire no-ops if the alert went active
// in the meantime.
func (d *DebounceFilter) scheduleRecheck(alert *model.Alert, delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.timers[alert.Name]; ok {
		// A recheck for this name is already pending.
		return
	}

	pending := alert
	d.timers[alert.Name] = time.AfterFunc(delay, func() {
		d.mu.Lock()
		delete(d.timers, pending.Name)
		d.mu.Unlock()

		if d.inserter != nil {
			d.inserter.DelayedFire(pending)
		}
	})

	d.logger.Info("First sighting, delayed firing scheduled",
		zap.String("alert_id", alert.ID),
		zap.String("name", alert.Name),
		zap.Duration("delay", delay))
}

// Cancel drops any pending recheck for the alert name.
func (d *DebounceFilter) Cancel(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if timer, ok := d.timers[name]; ok {
		timer.Stop()
		delete(d.timers, name)
	}
}

// Stop cancels all pending rechecks.
func (d *DebounceFilter) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for name, timer := range d.timers {
		timer.Stop()
		delete(d.timers, name)
	}
}
