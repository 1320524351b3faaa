// Package escalation drives time-bounded escalation of active alerts until a
// human acknowledges or resolves them.
package escalation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/t77yq/alert-triage/internal/model"
)

// Sink is the notification channel escalated alerts are handed to.
// Delivery is fire-and-forget from the engine's perspective.
type Sink interface {
	Escalate(ctx context.Context, alert *model.Alert) error
}

// MultiSink fans one escalation out to several sinks. Failures are collected
// so one slow or broken channel does not hide the others.
type MultiSink []Sink

// Escalate implements Sink.
func (m MultiSink) Escalate(ctx context.Context, alert *model.Alert) error {
	var errs []string
	for _, sink := range m {
		if err := sink.Escalate(ctx, alert); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("escalation delivery failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// NATSSink publishes escalated alerts to a JetStream subject per severity.
type NATSSink struct {
	logger *zap.Logger
	js     nats.JetStreamContext
}

// NewNATSSink creates a JetStream-backed notification sink.
func NewNATSSink(js nats.JetStreamContext, logger *zap.Logger) *NATSSink {
	return &NATSSink{
		logger: logger.Named("nats-sink"),
		js:     js,
	}
}

// Escalate implements Sink. The subject is alert.escalated.<severity>.
func (s *NATSSink) Escalate(ctx context.Context, alert *model.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	subject := "alert.escalated." + strings.ToLower(alert.Severity.String())
	if _, err := s.js.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish escalation: %w", err)
	}

	s.logger.Info("Escalation published",
		zap.String("alert_id", alert.ID),
		zap.String("subject", subject))
	return nil
}
