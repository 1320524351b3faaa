package triage

import "strings"

// KeywordCategory classifies an alert name by keyword.
type KeywordCategory string

const (
	CategoryChildSafety KeywordCategory = "child_safety"
	CategoryCompliance  KeywordCategory = "compliance"
)

// priorityPatterns is the ordered keyword list that triggers the priority
// override. First match wins. Alerts in these categories bypass every
// suppression gate.
var priorityPatterns = []struct {
	Pattern  string
	Category KeywordCategory
}{
	{"child_safety", CategoryChildSafety},
	{"predatory", CategoryChildSafety},
	{"parental_consent", CategoryChildSafety},
	{"coppa", CategoryCompliance},
	{"data_retention", CategoryCompliance},
}

// PriorityCategory reports whether the alert's name or message contains a
// priority keyword, and which category matched.
func PriorityCategory(name, message string) (KeywordCategory, bool) {
	haystack := strings.ToLower(name) + " " + strings.ToLower(message)
	for _, entry := range priorityPatterns {
		if strings.Contains(haystack, entry.Pattern) {
			return entry.Category, true
		}
	}
	return "", false
}

// MetricType classifies what kind of metric an alert reports on, from its
// name. Matched in order; the first hit wins.
type MetricType string

const (
	MetricErrorRate     MetricType = "error_rate"
	MetricResponseTime  MetricType = "response_time"
	MetricResourceUsage MetricType = "resource_usage"
	MetricLowEngagement MetricType = "low_engagement"
	MetricDefault       MetricType = "default"
)

var metricPatterns = []struct {
	Pattern string
	Type    MetricType
}{
	{"error_rate", MetricErrorRate},
	{"response_time", MetricResponseTime},
	{"memory", MetricResourceUsage},
	{"engagement", MetricLowEngagement},
}

// ClassifyMetric returns the metric type for an alert name.
func ClassifyMetric(name string) MetricType {
	lower := strings.ToLower(name)
	for _, entry := range metricPatterns {
		if strings.Contains(lower, entry.Pattern) {
			return entry.Type
		}
	}
	return MetricDefault
}

// performancePatterns are alert kinds that routinely misfire while a
// deployment is rolling out.
var performancePatterns = []string{
	"high_error_rate",
	"slow_response_time",
	"high_memory_usage",
	"database_connection_pool",
}

// IsPerformanceAlert reports whether the alert name belongs to the
// performance category suppressed during deployments.
func IsPerformanceAlert(name string) bool {
	lower := strings.ToLower(name)
	for _, pattern := range performancePatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
