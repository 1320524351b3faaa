package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

const (
	metricsStreamName = "METRICS"
	metricsSubject    = "metrics.triage"
	metricsMaxAge     = 24 * time.Hour
)

// SnapshotSource supplies the current engine metrics view.
type SnapshotSource interface {
	GetMetrics() Snapshot
}

// Reporter periodically publishes engine and host metrics over JetStream.
type Reporter struct {
	logger   *zap.Logger
	js       nats.JetStreamContext
	source   SnapshotSource
	interval time.Duration
	stop     chan struct{}
}

// NewReporter creates a metrics reporter.
func NewReporter(js nats.JetStreamContext, source SnapshotSource, interval time.Duration, logger *zap.Logger) *Reporter {
	return &Reporter{
		logger:   logger.Named("metrics-reporter"),
		js:       js,
		source:   source,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start ensures the metrics stream exists and starts the reporting loop.
func (r *Reporter) Start(ctx context.Context) error {
	_, err := r.js.AddStream(&nats.StreamConfig{
		Name:     metricsStreamName,
		Subjects: []string{"metrics.>"},
		Storage:  nats.FileStorage,
		MaxAge:   metricsMaxAge,
	}, nats.Context(ctx))
	if err != nil && err != nats.ErrStreamNameAlreadyInUse {
		return fmt.Errorf("failed to setup metrics stream: %w", err)
	}

	r.logger.Info("Starting metrics reporter", zap.Duration("interval", r.interval))
	go r.reportLoop(ctx)
	return nil
}

// Stop stops the reporting loop.
func (r *Reporter) Stop() {
	r.logger.Info("Stopping metrics reporter")
	close(r.stop)
}

func (r *Reporter) reportLoop(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case <-ticker.C:
			r.report()
		}
	}
}

func (r *Reporter) report() {
	report := struct {
		Timestamp   time.Time `json:"timestamp"`
		CPUUsage    float64   `json:"cpu_usage"`
		MemoryUsage float64   `json:"memory_usage"`
		Engine      Snapshot  `json:"engine"`
	}{
		Timestamp: time.Now(),
		Engine:    r.source.GetMetrics(),
	}

	if cpuPercent, err := cpu.Percent(0, false); err != nil {
		r.logger.Warn("Failed to get CPU usage", zap.Error(err))
	} else if len(cpuPercent) > 0 {
		report.CPUUsage = cpuPercent[0]
	}

	if memInfo, err := mem.VirtualMemory(); err != nil {
		r.logger.Warn("Failed to get memory usage", zap.Error(err))
	} else {
		report.MemoryUsage = memInfo.UsedPercent
	}

	data, err := json.Marshal(report)
	if err != nil {
		r.logger.Error("Failed to marshal metrics report", zap.Error(err))
		return
	}

	if _, err := r.js.Publish(metricsSubject, data); err != nil {
		r.logger.Error("Failed to publish metrics report", zap.Error(err))
		return
	}

	r.logger.Debug("Metrics reported",
		zap.Int64("total_alerts", report.Engine.TotalAlerts),
		zap.Int64("escalated", report.Engine.EscalatedAlerts))
}
