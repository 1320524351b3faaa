// Package ingest receives raw alerts and management commands over JetStream
// and feeds them to the triage engine.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/t77yq/alert-triage/internal/model"
	"github.com/t77yq/alert-triage/internal/triage"
)

const (
	alertStreamName      = "ALERTS"
	alertRawSubject      = "alert.raw"
	alertDecisionSubject = "alert.decision"
	alertAckSubject      = "alert.ack"
	alertResolveSubject  = "alert.resolve"

	streamMaxAge     = 24 * time.Hour
	operationTimeout = 30 * time.Second
)

// Decision is the published outcome of one processed alert.
type Decision struct {
	Fired  bool         `json:"fired"`
	Reason string       `json:"reason"`
	Alert  *model.Alert `json:"alert,omitempty"`
}

// Consumer bridges JetStream subjects to the triage engine.
type Consumer struct {
	logger *zap.Logger
	js     nats.JetStreamContext
	engine *triage.Engine
	subs   []*nats.Subscription
}

// NewConsumer creates the consumer and ensures the alert stream exists.
func NewConsumer(js nats.JetStreamContext, engine *triage.Engine, logger *zap.Logger) (*Consumer, error) {
	consumer := &Consumer{
		logger: logger.Named("ingest"),
		js:     js,
		engine: engine,
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if err := consumer.setupStream(ctx); err != nil {
		return nil, fmt.Errorf("failed to setup stream: %w", err)
	}
	return consumer, nil
}

func (c *Consumer) setupStream(ctx context.Context) error {
	_, err := c.js.AddStream(&nats.StreamConfig{
		Name:     alertStreamName,
		Subjects: []string{"alert.>"},
		Storage:  nats.FileStorage,
		MaxAge:   streamMaxAge,
	}, nats.Context(ctx))
	if err != nil {
		if err == nats.ErrStreamNameAlreadyInUse {
			c.logger.Info("Stream already exists", zap.String("stream", alertStreamName))
			return nil
		}
		return err
	}

	c.logger.Info("Stream created", zap.String("stream", alertStreamName))
	return nil
}

// Start subscribes to the ingress and management subjects.
func (c *Consumer) Start(ctx context.Context) error {
	rawSub, err := c.js.Subscribe(alertRawSubject, func(msg *nats.Msg) {
		c.handleRaw(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", alertRawSubject, err)
	}
	c.subs = append(c.subs, rawSub)

	ackSub, err := c.js.Subscribe(alertAckSubject, c.handleAck)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", alertAckSubject, err)
	}
	c.subs = append(c.subs, ackSub)

	resolveSub, err := c.js.Subscribe(alertResolveSubject, func(msg *nats.Msg) {
		c.handleResolve(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", alertResolveSubject, err)
	}
	c.subs = append(c.subs, resolveSub)

	c.logger.Info("Ingest consumer started")
	return nil
}

// Stop unsubscribes all subjects.
func (c *Consumer) Stop() {
	for _, sub := range c.subs {
		sub.Unsubscribe()
	}
	c.subs = nil
}

func (c *Consumer) handleRaw(ctx context.Context, msg *nats.Msg) {
	var raw model.RawAlert
	if err := json.Unmarshal(msg.Data, &raw); err != nil {
		c.logger.Error("Failed to unmarshal raw alert", zap.Error(err))
		msg.Ack()
		return
	}

	fired, alert, reason := c.engine.ProcessAlert(ctx, &raw)

	decision := Decision{Fired: fired, Reason: reason, Alert: alert}
	data, err := json.Marshal(decision)
	if err != nil {
		c.logger.Error("Failed to marshal decision", zap.Error(err))
		msg.Ack()
		return
	}
	if _, err := c.js.Publish(alertDecisionSubject, data); err != nil {
		c.logger.Error("Failed to publish decision", zap.Error(err))
	}

	c.logger.Info("Alert processed",
		zap.String("name", raw.AlertName),
		zap.Bool("fired", fired),
		zap.String("reason", reason))
	msg.Ack()
}

func (c *Consumer) handleAck(msg *nats.Msg) {
	var ack struct {
		ID string `json:"id"`
		By string `json:"by"`
	}
	if err := json.Unmarshal(msg.Data, &ack); err != nil {
		c.logger.Error("Failed to unmarshal acknowledgement", zap.Error(err))
		msg.Ack()
		return
	}

	c.engine.Acknowledge(ack.ID, ack.By)
	msg.Ack()
}

func (c *Consumer) handleResolve(ctx context.Context, msg *nats.Msg) {
	var resolve struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(msg.Data, &resolve); err != nil {
		c.logger.Error("Failed to unmarshal resolve command", zap.Error(err))
		msg.Ack()
		return
	}

	c.engine.Resolve(ctx, resolve.ID)
	msg.Ack()
}
