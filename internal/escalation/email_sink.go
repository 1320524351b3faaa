package escalation

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/t77yq/alert-triage/internal/model"
)

// EmailConfig holds SMTP settings for the email sink.
type EmailConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	Recipients []string
}

// EmailSink delivers escalated alerts by email.
type EmailSink struct {
	logger *zap.Logger
	config EmailConfig
}

// NewEmailSink creates an SMTP-backed notification sink.
func NewEmailSink(config EmailConfig, logger *zap.Logger) *EmailSink {
	return &EmailSink{
		logger: logger.Named("email-sink"),
		config: config,
	}
}

// Escalate implements Sink.
func (s *EmailSink) Escalate(ctx context.Context, alert *model.Alert) error {
	if len(s.config.Recipients) == 0 {
		return fmt.Errorf("no recipients configured")
	}

	auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	subject := fmt.Sprintf("[%s] %s", alert.Severity, alert.Name)
	body := fmt.Sprintf("Alert %s escalated\n\nService: %s\nValue: %g (threshold %g)\nMessage: %s\n",
		alert.ID, alert.SourceService, alert.MetricValue, alert.Threshold, alert.Message)

	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		s.config.From,
		strings.Join(s.config.Recipients, ", "),
		subject,
		body))

	if err := smtp.SendMail(addr, auth, s.config.From, s.config.Recipients, msg); err != nil {
		return fmt.Errorf("failed to send escalation email: %w", err)
	}

	s.logger.Info("Escalation email sent",
		zap.String("alert_id", alert.ID),
		zap.Int("recipients", len(s.config.Recipients)))
	return nil
}
