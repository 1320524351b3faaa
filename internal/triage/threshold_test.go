package triage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/t77yq/alert-triage/internal/model"
)

func testAlert(name string, severity model.Severity, value, threshold float64) *model.Alert {
	return &model.Alert{
		ID:          "test-" + name,
		Name:        name,
		Severity:    severity,
		MetricValue: value,
		Threshold:   threshold,
		Timestamp:   time.Now(),
		State:       model.AlertStateNew,
	}
}

func TestThresholdAdjuster_MaintenanceWindow(t *testing.T) {
	adjuster := NewThresholdAdjuster(staticProvider{octx: model.OperationalContext{
		MaintenanceWindow: true,
	}}, zap.NewNop())

	result := adjuster.Evaluate(context.Background(), testAlert("disk_full", model.SeverityHigh, 10, 1))
	assert.False(t, result.Fire, "non-critical alerts are suppressed during maintenance")

	result = adjuster.Evaluate(context.Background(), testAlert("disk_full", model.SeverityCritical, 10, 1))
	assert.True(t, result.Fire, "critical alerts fire through maintenance windows")
}

func TestThresholdAdjuster_DeploymentSuppression(t *testing.T) {
	adjuster := NewThresholdAdjuster(staticProvider{octx: model.OperationalContext{
		DeploymentInProgress: true,
	}}, zap.NewNop())

	// Performance-category alert during deployment is suppressed outright.
	result := adjuster.Evaluate(context.Background(), testAlert("high_error_rate", model.SeverityHigh, 0.05, 0.02))
	assert.False(t, result.Fire)
	assert.True(t, result.DeploymentSuppressed)

	// Same alert without a deployment clears its threshold.
	calm := NewThresholdAdjuster(staticProvider{}, zap.NewNop())
	result = calm.Evaluate(context.Background(), testAlert("high_error_rate", model.SeverityHigh, 0.05, 0.02))
	assert.True(t, result.Fire)
	assert.False(t, result.DeploymentSuppressed)
}

func TestThresholdAdjuster_Multipliers(t *testing.T) {
	adjuster := NewThresholdAdjuster(staticProvider{octx: model.OperationalContext{
		LoadTestActive: true,
		PeakHours:      true,
	}}, zap.NewNop())

	// error_rate: 5.0 (load test) * 1.3 (peak) = 6.5x base threshold.
	alert := testAlert("error_rate_spike", model.SeverityMedium, 0.06, 0.01)
	result := adjuster.Evaluate(context.Background(), alert)
	assert.InDelta(t, 0.065, result.AdjustedThreshold, 1e-9)
	assert.False(t, result.Fire)

	alert = testAlert("error_rate_spike", model.SeverityMedium, 0.07, 0.01)
	result = adjuster.Evaluate(context.Background(), alert)
	assert.True(t, result.Fire)
}

func TestThresholdAdjuster_UnknownMetricUnscaled(t *testing.T) {
	adjuster := NewThresholdAdjuster(staticProvider{octx: model.OperationalContext{
		PeakHours: true,
	}}, zap.NewNop())

	// No peak-hours entry for the default metric type.
	result := adjuster.Evaluate(context.Background(), testAlert("queue_depth", model.SeverityMedium, 1.5, 1))
	assert.InDelta(t, 1.0, result.AdjustedThreshold, 1e-9)
	assert.True(t, result.Fire)
}
