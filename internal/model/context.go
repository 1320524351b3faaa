package model

// OperationalContext is a point-in-time snapshot of environment flags used
// by the threshold adjuster and the anomaly feature vector. The zero value
// (all flags false) is the safe default when the provider is unreachable.
type OperationalContext struct {
	DeploymentInProgress bool `json:"deployment_in_progress"`
	MaintenanceWindow    bool `json:"maintenance_window"`
	LoadTestActive       bool `json:"load_test_active"`
	WeekendMode          bool `json:"weekend_mode"`
	PeakHours            bool `json:"peak_hours"`
	ChildSleepHours      bool `json:"child_sleep_hours"`
	SchoolHours          bool `json:"school_hours"`

	// Baseline rates, kept as reference for operators and model features.
	TypicalErrorRate       float64 `json:"typical_error_rate"`
	TypicalResponseTime    float64 `json:"typical_response_time"`
	TypicalConcurrentUsers float64 `json:"typical_concurrent_users"`
}
