package dto

import "time"

// HealthReport is the automation engine's observability read model.
// The score is a soft signal for dashboards; it never gates new runs.
type HealthReport struct {
	HealthScore     int       `json:"healthScore"` // 0-100
	StuckRuns       int       `json:"stuckRuns"`
	FailedLastHour  int       `json:"failedLastHour"`
	RunningCount    int       `json:"runningCount"`
	SuccessRate24h  float64   `json:"successRate24h"`
	NeedsAttention  bool      `json:"needsAttention"`
	Recommendations []string  `json:"recommendations"`
	CheckedAt       time.Time `json:"checkedAt"`
}
