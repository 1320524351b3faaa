package triage

import (
	"context"

	"go.uber.org/zap"

	"github.com/t77yq/alert-triage/internal/model"
	"github.com/t77yq/alert-triage/internal/opscontext"
)

// contextMultipliers scales a metric type's base threshold while the given
// context flag is set. Flags contribute independently; missing entries
// contribute 1.0.
var contextMultipliers = map[string]map[MetricType]float64{
	"deployment_in_progress": {
		MetricErrorRate:     3.0,
		MetricResponseTime:  2.5,
		MetricResourceUsage: 2.0,
	},
	"load_test_active": {
		MetricErrorRate:     5.0,
		MetricResponseTime:  4.0,
		MetricResourceUsage: 3.0,
		MetricDefault:       2.0,
	},
	"peak_hours": {
		MetricErrorRate:    1.3,
		MetricResponseTime: 1.5,
	},
	"child_sleep_hours": {
		MetricLowEngagement: 3.0,
		MetricErrorRate:     1.2,
	},
}

// ThresholdResult is the outcome of one context-aware threshold evaluation.
type ThresholdResult struct {
	Fire                 bool
	Context              model.OperationalContext
	AdjustedThreshold    float64
	DeploymentSuppressed bool
}

// ThresholdAdjuster computes an effective firing threshold from the base
// threshold, the alert's metric category, and the operational context.
type ThresholdAdjuster struct {
	logger   *zap.Logger
	provider opscontext.Provider
}

// NewThresholdAdjuster creates a threshold adjuster. The provider is
// expected to be failure-wrapped (opscontext.Safe).
func NewThresholdAdjuster(provider opscontext.Provider, logger *zap.Logger) *ThresholdAdjuster {
	return &ThresholdAdjuster{
		logger:   logger.Named("threshold"),
		provider: provider,
	}
}

// Evaluate decides whether the alert clears its context-adjusted threshold.
func (t *ThresholdAdjuster) Evaluate(ctx context.Context, alert *model.Alert) ThresholdResult {
	octx, err := t.provider.GetCurrentContext(ctx)
	if err != nil {
		// A bare provider may fail; treat it like the Safe fallback.
		octx = model.OperationalContext{}
	}

	result := ThresholdResult{Context: octx, AdjustedThreshold: alert.Threshold}

	if octx.MaintenanceWindow && alert.Severity != model.SeverityCritical {
		t.logger.Info("Alert suppressed during maintenance window",
			zap.String("alert_id", alert.ID),
			zap.String("name", alert.Name))
		return result
	}

	if octx.DeploymentInProgress && IsPerformanceAlert(alert.Name) {
		result.DeploymentSuppressed = true
		t.logger.Info("Performance alert suppressed during deployment",
			zap.String("alert_id", alert.ID),
			zap.String("name", alert.Name))
		return result
	}

	metricType := ClassifyMetric(alert.Name)
	multiplier := 1.0
	for _, flag := range activeFlags(octx) {
		if m, ok := contextMultipliers[flag][metricType]; ok {
			multiplier *= m
		}
	}

	result.AdjustedThreshold = alert.Threshold * multiplier
	result.Fire = alert.MetricValue >= result.AdjustedThreshold

	if !result.Fire {
		t.logger.Info("Alert below context-adjusted threshold",
			zap.String("alert_id", alert.ID),
			zap.String("name", alert.Name),
			zap.String("metric_type", string(metricType)),
			zap.Float64("value", alert.MetricValue),
			zap.Float64("adjusted_threshold", result.AdjustedThreshold))
	}
	return result
}

func activeFlags(octx model.OperationalContext) []string {
	var flags []string
	if octx.DeploymentInProgress {
		flags = append(flags, "deployment_in_progress")
	}
	if octx.LoadTestActive {
		flags = append(flags, "load_test_active")
	}
	if octx.PeakHours {
		flags = append(flags, "peak_hours")
	}
	if octx.ChildSleepHours {
		flags = append(flags, "child_sleep_hours")
	}
	return flags
}
