package dto

import "time"

// RunStatus represents the lifecycle state of an automation run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RunSource identifies what triggered an automation cycle
type RunSource string

const (
	RunSourceScheduled RunSource = "scheduled"
	RunSourceManual    RunSource = "manual"
	RunSourceCleanup   RunSource = "cleanup"
)

// AutomationRun is one coordinator invocation, persisted for observability
// and stuck-run reclamation
type AutomationRun struct {
	ID              string     `json:"id"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	Status          RunStatus  `json:"status"`
	Source          RunSource  `json:"source"`
	LeadsProcessed  int        `json:"leads_processed"`
	LeadsSuccessful int        `json:"leads_successful"`
	LeadsFailed     int        `json:"leads_failed"`
	ErrorMessage    *string    `json:"error_message,omitempty"`
}

// AutomationLock is a TTL lease row guaranteeing at most one active run.
// This is soft admission control, not a fenced distributed lock: two racing
// invocations may both pass, and the idempotent per-lead pipeline absorbs it.
type AutomationLock struct {
	ResourceKey string    `json:"resource_key"`
	AcquiredAt  time.Time `json:"acquired_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// LockResourceKey is the single resource guarded by the automation lock
const LockResourceKey = "ai_automation"

// AutomationSettings is the typed run configuration read at cycle start
type AutomationSettings struct {
	BatchSize               int  `json:"batch_size"`
	MaxConcurrentSends      int  `json:"max_concurrent_sends"`
	DailyMessageLimit       int  `json:"daily_message_limit_per_lead"`
	AutoUnpauseStaleLeads   bool `json:"auto_unpause_stale_leads"`
	StalePauseThresholdDays int  `json:"stale_pause_threshold_days"`
}

// DefaultAutomationSettings returns the documented defaults, used when the
// settings table is missing rows or holds unparseable values
func DefaultAutomationSettings() *AutomationSettings {
	return &AutomationSettings{
		BatchSize:               50,
		MaxConcurrentSends:      5,
		DailyMessageLimit:       8,
		AutoUnpauseStaleLeads:   false,
		StalePauseThresholdDays: 7,
	}
}

// LeadOutcome is the terminal result of one per-lead pipeline pass
type LeadOutcome string

const (
	OutcomeSent    LeadOutcome = "sent"
	OutcomePaused  LeadOutcome = "paused"
	OutcomeSkipped LeadOutcome = "skipped"
	OutcomeError   LeadOutcome = "error"
)

// LeadResult holds the outcome of processing a single lead in a cycle
type LeadResult struct {
	LeadID  string      `json:"lead_id"`
	Outcome LeadOutcome `json:"outcome"`
	Error   string      `json:"error,omitempty"`
}

// TriggerRequest is the manual-trigger invocation body
type TriggerRequest struct {
	Automated bool      `json:"automated"`
	Source    RunSource `json:"source"`
	Priority  string    `json:"priority,omitempty"`
	Enhanced  bool      `json:"enhanced,omitempty"`
}

// RunSummary is returned to trigger callers after a cycle finishes
type RunSummary struct {
	Processed      int   `json:"processed"`
	Successful     int   `json:"successful"`
	Failed         int   `json:"failed"`
	QueueSize      int   `json:"queueSize"`
	ProcessingTime int64 `json:"processingTime"` // milliseconds
	Enhanced       bool  `json:"enhanced"`
}

// ErrorResponse is the generic error payload returned by the API
type ErrorResponse struct {
	Error string `json:"error"`
}
