package triage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriorityCategory(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		category KeywordCategory
		match    bool
	}{
		{"child_safety_report_spike", "", CategoryChildSafety, true},
		{"login_failures", "possible predatory behavior detected", CategoryChildSafety, true},
		{"parental_consent_expired", "", CategoryChildSafety, true},
		{"coppa_violation_detected", "", CategoryCompliance, true},
		{"data_retention_breach", "", CategoryCompliance, true},
		{"COPPA_Audit_Failure", "", CategoryCompliance, true},
		{"high_error_rate", "errors above threshold", "", false},
		{"slow_response_time", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			category, match := PriorityCategory(tt.name, tt.message)
			assert.Equal(t, tt.match, match)
			assert.Equal(t, tt.category, category)
		})
	}
}

func TestClassifyMetric(t *testing.T) {
	tests := []struct {
		name string
		want MetricType
	}{
		{"high_error_rate", MetricErrorRate},
		{"slow_response_time", MetricResponseTime},
		{"high_memory_usage", MetricResourceUsage},
		{"low_engagement_teens", MetricLowEngagement},
		{"disk_full", MetricDefault},
		{"ERROR_RATE_spike", MetricErrorRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyMetric(tt.name))
		})
	}
}

func TestIsPerformanceAlert(t *testing.T) {
	assert.True(t, IsPerformanceAlert("high_error_rate"))
	assert.True(t, IsPerformanceAlert("slow_response_time"))
	assert.True(t, IsPerformanceAlert("high_memory_usage"))
	assert.True(t, IsPerformanceAlert("database_connection_pool_exhausted"))
	assert.False(t, IsPerformanceAlert("low_engagement"))
	assert.False(t, IsPerformanceAlert("child_safety_report_spike"))
}
