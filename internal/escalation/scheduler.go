package escalation

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/alert-triage/internal/model"
	"github.com/t77yq/alert-triage/internal/monitor"
)

// DefaultSinkTimeout bounds one notification delivery. The sink must never
// block the scheduler.
const DefaultSinkTimeout = 5 * time.Second

// Target is the alert store escalations act on. MarkEscalated transitions
// the alert to escalated only while it is still active and neither
// acknowledged nor resolved; the bool reports whether the transition applied.
// The returned alert is a detached copy, safe to read and marshal off the
// caller's goroutine.
type Target interface {
	MarkEscalated(id string) (*model.Alert, bool)
}

// Scheduler schedules, and can cancel, delayed escalation per alert.
// Cancellation is cooperative: a deferred task re-checks the alert's state
// at wake time, so a stale timer firing after acknowledge is a no-op.
type Scheduler struct {
	logger  *zap.Logger
	policy  *model.EscalationPolicy
	target  Target
	sink    Sink
	metrics *monitor.Metrics

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewScheduler creates an escalation scheduler.
func NewScheduler(policy *model.EscalationPolicy, target Target, sink Sink, metrics *monitor.Metrics, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		logger:  logger.Named("escalation"),
		policy:  policy,
		target:  target,
		sink:    sink,
		metrics: metrics,
		timers:  make(map[string]*time.Timer),
	}
}

// Schedule arms escalation for the alert per policy. A zero delay escalates
// immediately.
func (s *Scheduler) Schedule(alert *model.Alert) {
	delay := s.policy.Delay(alert.Severity)
	if delay == 0 {
		s.EscalateNow(alert.ID)
		return
	}

	id := alert.ID
	timer := time.AfterFunc(delay, func() {
		s.wake(id)
	})

	s.mu.Lock()
	if old, ok := s.timers[id]; ok {
		old.Stop()
	}
	s.timers[id] = timer
	s.mu.Unlock()

	s.logger.Debug("Escalation scheduled",
		zap.String("alert_id", id),
		zap.String("severity", alert.Severity.String()),
		zap.Duration("delay", delay))
}

// Cancel stops any pending escalation timer for the alert. Escalation is
// idempotent, so a timer that already fired is harmless.
func (s *Scheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
}

// EscalateNow escalates the alert immediately, bypassing any delay. Unknown
// or already-terminal alerts are no-ops.
func (s *Scheduler) EscalateNow(id string) {
	alert, ok := s.target.MarkEscalated(id)
	if !ok {
		return
	}

	s.metrics.RecordEscalated()
	s.logger.Info("Alert escalated",
		zap.String("alert_id", alert.ID),
		zap.String("name", alert.Name),
		zap.String("severity", alert.Severity.String()))

	// Fire-and-forget delivery of the detached copy. A sink failure is
	// logged, never propagated: at-least-once is the sink's problem.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultSinkTimeout)
		defer cancel()
		if err := s.sink.Escalate(ctx, alert); err != nil {
			s.logger.Error("Notification sink failed",
				zap.String("alert_id", alert.ID),
				zap.Error(err))
		}
	}()
}

// Stop cancels all pending timers.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}

func (s *Scheduler) wake(id string) {
	s.mu.Lock()
	delete(s.timers, id)
	s.mu.Unlock()

	s.EscalateNow(id)
}
